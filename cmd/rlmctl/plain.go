package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
)

// plainPrinter renders the event stream as plain colored lines, the
// fallback for non-TTY environments (grounded on the teacher's
// DeepCoding*-style color.New(...).SprintFunc() helpers in
// cmd/cobra_cli.go).
type plainPrinter struct {
	info  func(a ...any) string
	good  func(a ...any) string
	warn  func(a ...any) string
	bad   func(a ...any) string
	faint func(a ...any) string
}

func newPlainPrinter() *plainPrinter {
	return &plainPrinter{
		info:  color.New(color.FgBlue).SprintFunc(),
		good:  color.New(color.FgGreen).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		bad:   color.New(color.FgRed).SprintFunc(),
		faint: color.New(color.FgHiBlack).SprintFunc(),
	}
}

func (p *plainPrinter) onEvent(ev wireEvent) {
	switch ev.Type {
	case "iteration-start":
		var d struct {
			Iteration int    `json:"Iteration"`
			TaskGoal  string `json:"TaskGoal"`
		}
		_ = json.Unmarshal(ev.Data, &d)
		fmt.Println(p.info(fmt.Sprintf("— iteration %d —", d.Iteration)))
	case "stream-token":
		var d struct {
			Token string `json:"Token"`
		}
		_ = json.Unmarshal(ev.Data, &d)
		fmt.Print(d.Token)
	case "code-generated":
		var d struct {
			Code       string `json:"Code"`
			BlockIndex int    `json:"BlockIndex"`
		}
		_ = json.Unmarshal(ev.Data, &d)
		fmt.Println()
		fmt.Println(p.faint(fmt.Sprintf("[block %d]", d.BlockIndex)))
		fmt.Println(d.Code)
	case "code-result":
		var d struct {
			Metadata   string `json:"Metadata"`
			BlockIndex int    `json:"BlockIndex"`
			Error      string `json:"Error"`
		}
		_ = json.Unmarshal(ev.Data, &d)
		if d.Error != "" {
			fmt.Println(p.bad("  ✗ " + d.Error))
		} else {
			fmt.Println(p.faint("  -> " + d.Metadata))
		}
	case "sub-llm-start":
		var d struct {
			Prompt       string `json:"Prompt"`
			SubCallIndex int    `json:"SubCallIndex"`
		}
		_ = json.Unmarshal(ev.Data, &d)
		fmt.Println(p.warn(fmt.Sprintf("  [sub-call %d] %s", d.SubCallIndex, d.Prompt)))
	case "sub-llm-complete":
		var d struct {
			ResultMeta   string `json:"ResultMeta"`
			SubCallIndex int    `json:"SubCallIndex"`
		}
		_ = json.Unmarshal(ev.Data, &d)
		fmt.Println(p.faint(fmt.Sprintf("  [sub-call %d done] %s", d.SubCallIndex, d.ResultMeta)))
	case "page-changes":
		fmt.Println(p.faint("  (page changed)"))
	case "log":
		var d struct {
			Message string `json:"Message"`
		}
		_ = json.Unmarshal(ev.Data, &d)
		fmt.Println(p.faint("  log: " + d.Message))
	case "error":
		var d struct {
			Err string `json:"Err"`
		}
		_ = json.Unmarshal(ev.Data, &d)
		fmt.Println(p.bad("error: " + d.Err))
	case "complete":
		var d struct {
			Final any `json:"Final"`
		}
		_ = json.Unmarshal(ev.Data, &d)
		fmt.Println()
		fmt.Println(p.good(fmt.Sprintf("done: %v", d.Final)))
	}
}

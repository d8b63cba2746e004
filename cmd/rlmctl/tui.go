package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	tuiStyleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	tuiStyleFaint  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tuiStyleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	tuiStyleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	tuiStyleGood   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// tuiEventMsg wraps one decoded event for delivery into the Bubble Tea
// Update loop.
type tuiEventMsg struct{ ev wireEvent }

// tuiWatchDoneMsg signals the websocket watch goroutine exited.
type tuiWatchDoneMsg struct{ err error }

// model is the Bubble Tea model driving rlmctl's live view, grounded on
// the teacher's cmd/alex/tui_bubbletea.go bubbleChatUI shape: a viewport
// holding the rendered transcript plus a running/complete status line.
type model struct {
	cli       *client
	events    <-chan wireEvent
	done      <-chan error
	viewport  viewport.Model
	md        *glamour.TermRenderer
	lines     []string
	statusMsg string
	complete  bool
	width     int
	height    int
}

func newTUIModel(cli *client, events <-chan wireEvent, done <-chan error) *model {
	md, _ := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(100))
	vp := viewport.New(80, 20)
	return &model{cli: cli, events: events, done: done, viewport: vp, md: md, statusMsg: "running"}
}

func (m *model) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m *model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-m.events:
			if !ok {
				return tuiWatchDoneMsg{}
			}
			return tuiEventMsg{ev: ev}
		case err := <-m.done:
			return tuiWatchDoneMsg{err: err}
		}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 2
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "x":
			_ = m.cli.cancel()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tuiEventMsg:
		m.applyEvent(msg.ev)
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
		if m.complete {
			return m, nil
		}
		return m, m.waitForEvent()

	case tuiWatchDoneMsg:
		m.complete = true
		if msg.err != nil {
			m.statusMsg = "disconnected: " + msg.err.Error()
		}
		return m, nil
	}
	return m, nil
}

func (m *model) applyEvent(ev wireEvent) {
	switch ev.Type {
	case "iteration-start":
		var d struct{ Iteration int }
		_ = json.Unmarshal(ev.Data, &d)
		m.lines = append(m.lines, tuiStyleHeader.Render(fmt.Sprintf("— iteration %d —", d.Iteration)))
	case "code-generated":
		var d struct {
			Code       string
			BlockIndex int
		}
		_ = json.Unmarshal(ev.Data, &d)
		m.lines = append(m.lines, tuiStyleFaint.Render(fmt.Sprintf("[block %d]", d.BlockIndex)), d.Code)
	case "code-result":
		var d struct {
			Metadata string
			Error    string
		}
		_ = json.Unmarshal(ev.Data, &d)
		if d.Error != "" {
			m.lines = append(m.lines, tuiStyleError.Render("  ✗ "+d.Error))
		} else {
			m.lines = append(m.lines, tuiStyleFaint.Render("  -> "+d.Metadata))
		}
	case "sub-llm-start":
		var d struct {
			Prompt       string
			SubCallIndex int
		}
		_ = json.Unmarshal(ev.Data, &d)
		m.lines = append(m.lines, tuiStyleWarn.Render(fmt.Sprintf("  [sub-call %d] %s", d.SubCallIndex, d.Prompt)))
	case "log":
		var d struct{ Message string }
		_ = json.Unmarshal(ev.Data, &d)
		m.lines = append(m.lines, tuiStyleFaint.Render("  log: "+d.Message))
	case "error":
		var d struct{ Err string }
		_ = json.Unmarshal(ev.Data, &d)
		m.lines = append(m.lines, tuiStyleError.Render("error: "+d.Err))
		m.statusMsg = "error"
	case "complete":
		var d struct{ Final any }
		_ = json.Unmarshal(ev.Data, &d)
		rendered := fmt.Sprintf("%v", d.Final)
		if m.md != nil {
			if out, err := m.md.Render(rendered); err == nil {
				rendered = out
			}
		}
		m.lines = append(m.lines, "", tuiStyleGood.Render("done:"), rendered)
		m.statusMsg = "complete"
		m.complete = true
	}
}

func (m *model) View() string {
	status := m.statusMsg
	if !m.complete {
		status = tuiStyleWarn.Render(status) + tuiStyleFaint.Render("  (q: quit, x: cancel)")
	}
	header := tuiStyleHeader.Render("rlmctl") + "  " + status
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View())
}

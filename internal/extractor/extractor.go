// Package extractor implements the deterministic multi-strategy fallback
// chain that pulls executable code blocks out of model text (spec.md §4.5).
// Strategy 3 leans on kaptinlin/jsonrepair the same way the teacher's tool
// layer repairs near-miss JSON emitted by a model before parsing it.
package extractor

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Block is one extracted code block, in source order.
type Block struct {
	Code string
}

var (
	replFenceRe = regexp.MustCompile("(?s)```repl\\s*\\n(.*?)```")
	anyFenceRe  = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*\\s*\\n(.*?)```")

	bareLineStartRe = regexp.MustCompile(
		`^\s*(const|let|var|await|return|if|for|while|try|catch|function|class|env\.|log\(|setFinal\(|//)`)
	knownCallRe = regexp.MustCompile(
		`\b(openTab|closeTab|navigate|switchTab|waitForLoad|waitForSelector|execInTab|getText|getDOM|getLinks|getInputs|querySelector|querySelectorAll|getSearchResults|getWikiTables|click|type|scroll|parseHTML|parsePage|domQueryAll|domQueryOne|domQueryText|freeDoc|llm_query|llm_batch|sleep)\s*\(`)
)

// Extract runs the four-strategy fallback chain and returns the first
// non-empty result. An empty slice is a valid result (spec.md §4.5).
func Extract(text string) []Block {
	if blocks := extractFenced(replFenceRe, text); len(blocks) > 0 {
		return blocks
	}
	if blocks := extractFenced(anyFenceRe, text); len(blocks) > 0 {
		return blocks
	}
	if blocks := extractJSONPayload(text); len(blocks) > 0 {
		return blocks
	}
	return extractHeuristic(text)
}

func extractFenced(re *regexp.Regexp, text string) []Block {
	matches := re.FindAllStringSubmatch(text, -1)
	var out []Block
	for _, m := range matches {
		code := strings.TrimRight(m[1], "\n")
		if strings.TrimSpace(code) == "" {
			continue
		}
		out = append(out, Block{Code: code})
	}
	return out
}

// jsonPayload is the shape strategy 3 looks for: a top-level JSON object
// with a "code" string field, either as the whole text or embedded in it.
type jsonPayload struct {
	Code string `json:"code"`
}

func extractJSONPayload(text string) []Block {
	candidates := []string{strings.TrimSpace(text)}
	if obj := firstJSONObject(text); obj != "" {
		candidates = append(candidates, obj)
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		repaired, err := jsonrepair.JSONRepair(c)
		if err != nil {
			continue
		}
		var payload jsonPayload
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			continue
		}
		if strings.TrimSpace(payload.Code) != "" {
			return []Block{{Code: payload.Code}}
		}
	}
	return nil
}

// firstJSONObject finds the first balanced-brace substring starting at '{'.
func firstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// extractHeuristic scans for lines beginning with recognized JS constructs
// or calls to a known API identifier, joining adjacent code lines, blank
// lines and brace-continuation lines into one block; any other line ends
// the block.
func extractHeuristic(text string) []Block {
	lines := strings.Split(text, "\n")
	var out []Block
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		code := strings.TrimRight(strings.Join(current, "\n"), "\n")
		if strings.TrimSpace(code) != "" {
			out = append(out, Block{Code: code})
		}
		current = nil
	}

	inBlock := false
	for _, line := range lines {
		isCode := bareLineStartRe.MatchString(line) || knownCallRe.MatchString(line)
		trimmed := strings.TrimSpace(line)
		isContinuation := inBlock && (trimmed == "" || isBraceContinuation(trimmed))

		switch {
		case isCode:
			current = append(current, line)
			inBlock = true
		case isContinuation:
			current = append(current, line)
		default:
			flush()
			inBlock = false
		}
	}
	flush()
	return out
}

func isBraceContinuation(trimmed string) bool {
	if trimmed == "" {
		return true
	}
	first := trimmed[0]
	last := trimmed[len(trimmed)-1]
	return first == '}' || first == ')' || last == '{' || last == '(' || last == ','
}

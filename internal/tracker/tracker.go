// Package tracker accumulates IterationRecords and produces the
// reinforcement block and sub-agent progress summary (spec.md §4.6).
// One-liner synthesis is grounded on the teacher's
// internal/context/manager_compress.go buildCompressionSummary keyword/
// snippet pattern, adapted from summarizing chat turns to summarizing a
// code block's intent.
package tracker

import (
	"fmt"
	"strings"

	"rlm/internal/task"
)

// Tracker accumulates iteration records for one Task.
type Tracker struct {
	records []task.IterationRecord
}

// New builds an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Append records one completed iteration.
func (t *Tracker) Append(r task.IterationRecord) {
	t.records = append(t.records, r)
}

// Records returns all recorded iterations, in order.
func (t *Tracker) Records() []task.IterationRecord {
	return t.records
}

// Reinforcement builds the Task Reinforcement block (spec.md §4.3 section 1):
// the original message, the current/cap iteration count, and a bullet list
// of one-liner summaries derived mechanically from the tracker — never from
// log() calls.
func (t *Tracker) Reinforcement(originalMessage string, iteration, cap int) string {
	var b strings.Builder
	b.WriteString("# Task\n")
	b.WriteString(originalMessage)
	b.WriteString(fmt.Sprintf("\n\nIteration %d of %d\n", iteration, cap))
	if len(t.records) > 0 {
		b.WriteString("\nProgress so far:\n")
		for _, r := range t.records {
			b.WriteString(fmt.Sprintf("- Iter %d: %s\n", r.Index, r.OneLiner))
		}
	}
	return b.String()
}

// SubAgentProgressSummary concatenates the last three one-liners, used to
// brief a spawned sub-agent on what the parent has done so far.
func (t *Tracker) SubAgentProgressSummary() string {
	n := len(t.records)
	if n == 0 {
		return ""
	}
	start := n - 3
	if start < 0 {
		start = 0
	}
	var lines []string
	for _, r := range t.records[start:] {
		lines = append(lines, fmt.Sprintf("Iter %d: %s", r.Index, r.OneLiner))
	}
	return strings.Join(lines, "\n")
}

// keyword -> phrase, scanned in a fixed priority order so the first match
// wins (mirrors the teacher's single-pass keyword scan style).
var keywordPhrases = []struct {
	keyword string
	phrase  string
}{
	{"setFinal(", "finalized the answer"},
	{"llm_batch(", "ran a batch of sub-agent queries"},
	{"llm_query(", "delegated a sub-task"},
	{"openTab(", "opened a new tab"},
	{"navigate(", "navigated a tab"},
	{"click(", "clicked an element"},
	{"type(", "typed into a field"},
	{"execInTab(", "ran script in a tab"},
	{"getText(", "read page text"},
	{"getDOM(", "inspected the DOM"},
	{"querySelector", "queried the DOM"},
	{"parseHTML(", "parsed HTML"},
	{"waitForLoad(", "waited for a page load"},
	{"waitForSelector(", "waited for an element"},
	{"sleep(", "paused briefly"},
	{"env.", "updated env state"},
}

// OneLiner synthesizes a <=1-line summary of a block's code via a keyword
// scan, with an error suffix when the block failed.
func OneLiner(code string, errMsg string) string {
	summary := "ran a code block"
	for _, kp := range keywordPhrases {
		if strings.Contains(code, kp.keyword) {
			summary = kp.phrase
			break
		}
	}
	if errMsg != "" {
		summary += " (error: " + truncate(errMsg, 120) + ")"
	}
	return summary
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

package context

import (
	"encoding/json"
	"fmt"
	"strings"

	"rlm/internal/repl"
	"rlm/internal/tabdiff"
	"rlm/internal/task"
	"rlm/internal/tracker"
)

// reminderText is the standing reminder shown from iteration 2 onward
// (spec.md §4.3 section 5).
const reminderText = "Reminder: call setFinal(value) as soon as you know the answer."

// Builder assembles each iteration's next user turn from the five ordered
// sections of spec.md §4.3.
type Builder struct {
	HistoryBudget int
}

// NewBuilder constructs a Builder with the default history token budget.
func NewBuilder() *Builder {
	return &Builder{HistoryBudget: HistoryTokenBudget}
}

// Input bundles everything the Builder needs for one iteration; it takes no
// dependency on the engine or driver packages directly so it stays testable
// in isolation.
type Input struct {
	Task        *task.Task
	Tracker     *tracker.Tracker
	Iteration   int
	PageChanges []task.PageChange
	Env         repl.EnvSnapshot
	TabCount    int
	ActiveTabID string
}

// Build returns the ordered message content for the next user turn. Each
// section is present iff non-empty.
func (b *Builder) Build(in Input) string {
	var sections []string

	sections = append(sections, in.Tracker.Reinforcement(in.Task.OriginalMessage, in.Iteration, in.Task.MaxIterations))

	if len(in.PageChanges) > 0 {
		sections = append(sections, renderPageChanges(in.PageChanges))
	}

	sections = append(sections, renderEnvMetadata(in.TabCount, in.ActiveTabID, in.Env))

	history := CompactHistory(in.Tracker.Records(), b.HistoryBudget)
	if strings.TrimSpace(history) != "" {
		sections = append(sections, "# Action History\n"+history)
	}

	if in.Iteration >= 2 {
		sections = append(sections, reminderText)
	}

	return strings.Join(sections, "\n\n")
}

func renderPageChanges(changes []task.PageChange) string {
	var b strings.Builder
	b.WriteString("# Page Changes\n")
	for _, c := range changes {
		b.WriteString(tabdiff.RenderChange(c))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEnvMetadata(tabCount int, activeTab string, env repl.EnvSnapshot) string {
	var b strings.Builder
	b.WriteString("# Environment\n")
	b.WriteString(fmt.Sprintf("tabs: %d, active: %s\n", tabCount, activeTab))
	encoded, err := json.Marshal(env)
	if err == nil {
		b.WriteString(string(encoded))
	}
	return strings.TrimRight(b.String(), "\n")
}

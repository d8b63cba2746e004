package context

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rlm/internal/repl"
	"rlm/internal/task"
	"rlm/internal/tracker"
)

func TestBuilderOrdersSectionsAndOmitsEmptyOnes(t *testing.T) {
	b := NewBuilder()
	tr := tracker.New()
	tsk := task.NewTask("t1", "find the cheapest flight", 10, 5)

	out := b.Build(Input{
		Task:        tsk,
		Tracker:     tr,
		Iteration:   1,
		PageChanges: nil,
		Env:         repl.EnvSnapshot{},
		TabCount:    1,
		ActiveTabID: "tab-1",
	})

	require.Contains(t, out, "# Task")
	require.Contains(t, out, "find the cheapest flight")
	require.Contains(t, out, "Iteration 1 of 10")
	require.Contains(t, out, "# Environment")
	require.NotContains(t, out, "# Page Changes")
	require.NotContains(t, out, "# Action History")
	require.NotContains(t, out, "Reminder:")
}

func TestBuilderIncludesReminderFromSecondIteration(t *testing.T) {
	b := NewBuilder()
	tr := tracker.New()
	tsk := task.NewTask("t1", "task", 10, 5)

	out := b.Build(Input{Task: tsk, Tracker: tr, Iteration: 2, Env: repl.EnvSnapshot{}})
	require.Contains(t, out, "Reminder:")
}

func TestBuilderIncludesPageChangesWhenPresent(t *testing.T) {
	b := NewBuilder()
	tr := tracker.New()
	tsk := task.NewTask("t1", "task", 10, 5)

	out := b.Build(Input{
		Task:        tsk,
		Tracker:     tr,
		Iteration:   1,
		PageChanges: []task.PageChange{{TabID: "tab-1", Field: task.FieldTitle, Old: "a", New: "b"}},
		Env:         repl.EnvSnapshot{},
	})
	require.Contains(t, out, "# Page Changes")
	require.Contains(t, out, "tab-1")
}

func TestBuilderIncludesActionHistoryAfterIterations(t *testing.T) {
	b := NewBuilder()
	tr := tracker.New()
	tr.Append(task.IterationRecord{Index: 1, FullMetadata: "did something", OneLiner: "did something"})
	tsk := task.NewTask("t1", "task", 10, 5)

	out := b.Build(Input{Task: tsk, Tracker: tr, Iteration: 2, Env: repl.EnvSnapshot{}})
	require.Contains(t, out, "# Action History")
	require.Contains(t, out, "did something")
}

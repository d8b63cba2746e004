// Package task holds the engine's data model: Task, IterationRecord,
// BlockResult, and the tab Snapshot/PageChange types. These are plain value
// objects with no external dependencies, mirroring the teacher's domain
// value types.
package task

import (
	"sync"
	"time"
)

// Status is the Task lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

func (s Status) String() string { return string(s) }

// BlockResult captures one executed code block.
type BlockResult struct {
	Code     string
	Metadata string // structural summary only, never raw output
	Error    string // empty if the block succeeded
}

// IterationRecord captures one model -> execute cycle.
type IterationRecord struct {
	Index        int // 1-based
	StartedAt    time.Time
	Duration     time.Duration
	Blocks       []BlockResult
	OneLiner     string
	FullMetadata string
	PageChanges  []PageChange
	NoCode       bool
}

// Task is the unit of work the engine executes. Status, Iterations,
// FinalValue and FinalSet are mutated by the goroutine running
// Loop.Run while a concurrent caller may read them through get_state()
// (spec.md §6); mu guards exactly those fields. Callers that only ever
// touch a Task from one goroutine (tests driving Loop.Run synchronously,
// the engine package's own single-threaded mutation sites) may keep
// reading/writing the fields directly — it's the cross-goroutine
// read-vs-write pattern in internal/httpapi that requires going through
// the locked accessors below.
type Task struct {
	ID              string
	OriginalMessage string
	MaxIterations   int
	MaxSubCalls     int
	Status          Status
	Iterations      []IterationRecord
	SubCallsUsed    int
	FinalValue      any
	FinalSet        bool
	CreatedAt       time.Time

	mu sync.Mutex
}

// NewTask constructs a fresh idle Task.
func NewTask(id, message string, maxIterations, maxSubCalls int) *Task {
	return &Task{
		ID:              id,
		OriginalMessage: message,
		MaxIterations:   maxIterations,
		MaxSubCalls:     maxSubCalls,
		Status:          StatusIdle,
		CreatedAt:       time.Now(),
	}
}

// SetStatus sets Status under lock, safe to call concurrently with
// Snapshot from another goroutine.
func (t *Task) SetStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = s
}

// AppendIteration appends an IterationRecord under lock.
func (t *Task) AppendIteration(r IterationRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Iterations = append(t.Iterations, r)
}

// SetFinal records the Task's final value under lock.
func (t *Task) SetFinal(v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.FinalValue = v
	t.FinalSet = true
}

// StateSnapshot is a point-in-time, lock-guarded copy of the fields a
// concurrent get_state() caller needs (spec.md §6).
type StateSnapshot struct {
	Status     Status
	Iterations int
	FinalValue any
	FinalSet   bool
}

// Snapshot returns a StateSnapshot safe to read from a goroutine other
// than the one driving Loop.Run.
func (t *Task) Snapshot() StateSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return StateSnapshot{
		Status:     t.Status,
		Iterations: len(t.Iterations),
		FinalValue: t.FinalValue,
		FinalSet:   t.FinalSet,
	}
}

// Field identifies which tab attribute changed between snapshots.
type Field string

const (
	FieldURL    Field = "url"
	FieldTitle  Field = "title"
	FieldStatus Field = "status"
)

// TabState is the portion of tab metadata tracked for diffing.
type TabState struct {
	URL    string
	Title  string
	Status string
}

// Snapshot maps tab id to its observed state at a point in time.
type Snapshot map[string]TabState

// PageChange is one changed field on one tab between two snapshots.
type PageChange struct {
	TabID string
	Field Field
	Old   string
	New   string
}

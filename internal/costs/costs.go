// Package costs implements per-Task/per-iteration token accounting
// (SPEC_FULL.md §2.2 Domain Stack), grounded on the teacher's
// internal/agent/app/cost_tracker.go: the same UsageRecord/summary shape,
// adapted from a persisted, exportable ledger to an in-memory per-Task
// running total exposed through internal/metrics. Real token counts come
// from pkoukk/tiktoken-go rather than the chars/4 heuristic internal/context
// uses for history compaction — that estimate is deliberately cheap and
// approximate; this one is for billing and needs to be accurate.
package costs

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Usage is one LLM call's token counts, reported by internal/llm.Usage or,
// when a provider omits usage on a streamed response, estimated by Count.
type Usage struct {
	Model        string
	Provider     string
	InputTokens  int
	OutputTokens int
}

// Summary aggregates Usage across every call recorded for one Task.
type Summary struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	TotalCost    float64
	RequestCount int
	ByModel      map[string]float64
}

func newSummary() *Summary {
	return &Summary{ByModel: make(map[string]float64)}
}

// Recorder receives per-call Prometheus observations. internal/metrics
// implements it; costs.Tracker never imports internal/metrics directly so
// the two packages stay decoupled (mirrors the teacher's ports.CostTracker/
// ports.CostStore split, minus the persistence layer).
type Recorder interface {
	ObserveLLMUsage(provider, model string, inputTokens, outputTokens int, cost float64)
}

// nopRecorder discards observations; used when Tracker is built without a
// Recorder so callers never need a nil check.
type nopRecorder struct{}

func (nopRecorder) ObserveLLMUsage(string, string, int, int, float64) {}

// Tracker accumulates per-Task cost summaries and counts tokens for text
// that didn't come with a provider-reported Usage.
type Tracker struct {
	recorder Recorder

	mu        sync.Mutex
	summaries map[string]*Summary

	encCacheMu sync.Mutex
	encCache   map[string]*tiktoken.Tiktoken
}

// NewTracker builds a Tracker. Pass nil for rec to disable metrics export
// (e.g. in tests).
func NewTracker(rec Recorder) *Tracker {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Tracker{
		recorder:  rec,
		summaries: make(map[string]*Summary),
		encCache:  make(map[string]*tiktoken.Tiktoken),
	}
}

// Record attributes usage to taskID, updates the running Summary, and
// reports the call to the Recorder.
func (t *Tracker) Record(taskID string, u Usage) {
	_, _, totalCost := Calculate(u.InputTokens, u.OutputTokens, u.Model)

	t.mu.Lock()
	s, ok := t.summaries[taskID]
	if !ok {
		s = newSummary()
		t.summaries[taskID] = s
	}
	s.InputTokens += u.InputTokens
	s.OutputTokens += u.OutputTokens
	s.TotalTokens += u.InputTokens + u.OutputTokens
	s.TotalCost += totalCost
	s.RequestCount++
	s.ByModel[u.Model] += totalCost
	t.mu.Unlock()

	t.recorder.ObserveLLMUsage(u.Provider, u.Model, u.InputTokens, u.OutputTokens, totalCost)
}

// Summary returns taskID's running totals, or a zero Summary if nothing has
// been recorded yet.
func (t *Tracker) Summary(taskID string) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.summaries[taskID]; ok {
		cp := *s
		cp.ByModel = make(map[string]float64, len(s.ByModel))
		for k, v := range s.ByModel {
			cp.ByModel[k] = v
		}
		return cp
	}
	return *newSummary()
}

// Forget drops taskID's running totals, e.g. once its Task reaches a
// terminal state and its cost has been reported upstream.
func (t *Tracker) Forget(taskID string) {
	t.mu.Lock()
	delete(t.summaries, taskID)
	t.mu.Unlock()
}

// Count estimates the token count of text under model's tokenizer. Falls
// back to cl100k_base for any model tiktoken-go doesn't recognize by name
// (local/vLLM model ids, mostly), since an approximate count from the
// nearest known tokenizer beats no count at all.
func (t *Tracker) Count(model, text string) int {
	enc := t.encodingFor(model)
	if enc == nil {
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

func (t *Tracker) encodingFor(model string) *tiktoken.Tiktoken {
	t.encCacheMu.Lock()
	defer t.encCacheMu.Unlock()
	if enc, ok := t.encCache[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			t.encCache[model] = nil
			return nil
		}
	}
	t.encCache[model] = enc
	return enc
}

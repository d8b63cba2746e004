package costs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	calls int
	last  struct {
		provider, model         string
		inputTokens, outputTokens int
		cost                    float64
	}
}

func (f *fakeRecorder) ObserveLLMUsage(provider, model string, inputTokens, outputTokens int, cost float64) {
	f.calls++
	f.last.provider, f.last.model = provider, model
	f.last.inputTokens, f.last.outputTokens = inputTokens, outputTokens
	f.last.cost = cost
}

func TestCalculateUsesKnownModelPricing(t *testing.T) {
	in, out, total := Calculate(1000, 1000, "claude-sonnet-4")
	require.InDelta(t, 0.003, in, 1e-9)
	require.InDelta(t, 0.015, out, 1e-9)
	require.InDelta(t, 0.018, total, 1e-9)
}

func TestCalculateFallsBackToDefaultPricingForUnknownModel(t *testing.T) {
	_, _, total := Calculate(1000, 1000, "some-local-model")
	require.InDelta(t, 0.003, total, 1e-9)
}

func TestTrackerRecordAccumulatesPerTask(t *testing.T) {
	rec := &fakeRecorder{}
	tr := NewTracker(rec)

	tr.Record("task-1", Usage{Model: "gpt-4o", Provider: "openai", InputTokens: 100, OutputTokens: 50})
	tr.Record("task-1", Usage{Model: "gpt-4o", Provider: "openai", InputTokens: 200, OutputTokens: 100})
	tr.Record("task-2", Usage{Model: "gpt-4o", Provider: "openai", InputTokens: 10, OutputTokens: 5})

	s1 := tr.Summary("task-1")
	require.Equal(t, 300, s1.InputTokens)
	require.Equal(t, 150, s1.OutputTokens)
	require.Equal(t, 2, s1.RequestCount)
	require.Greater(t, s1.TotalCost, 0.0)

	s2 := tr.Summary("task-2")
	require.Equal(t, 10, s2.InputTokens)

	require.Equal(t, 3, rec.calls)
}

func TestTrackerSummaryUnknownTaskIsZeroValue(t *testing.T) {
	tr := NewTracker(nil)
	s := tr.Summary("nope")
	require.Equal(t, 0, s.RequestCount)
	require.Equal(t, 0.0, s.TotalCost)
}

func TestTrackerForgetDropsSummary(t *testing.T) {
	tr := NewTracker(nil)
	tr.Record("t", Usage{Model: "gpt-4o", InputTokens: 10, OutputTokens: 5})
	require.Equal(t, 1, tr.Summary("t").RequestCount)

	tr.Forget("t")
	require.Equal(t, 0, tr.Summary("t").RequestCount)
}

func TestTrackerNilRecorderDoesNotPanic(t *testing.T) {
	tr := NewTracker(nil)
	require.NotPanics(t, func() {
		tr.Record("t", Usage{Model: "gpt-4o", InputTokens: 10, OutputTokens: 5})
	})
}

func TestTrackerCountEstimatesPositiveTokenCount(t *testing.T) {
	tr := NewTracker(nil)
	n := tr.Count("gpt-4o", "hello world, this is a test sentence")
	require.Greater(t, n, 0)
}

func TestTrackerCountCachesEncodingAcrossCalls(t *testing.T) {
	tr := NewTracker(nil)
	a := tr.Count("gpt-4o", "short")
	b := tr.Count("gpt-4o", "short")
	require.Equal(t, a, b)
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.RecordIteration("ok", 1.5)
	r.RecordSubCall("fulfilled")
	r.RecordREPLEvaluation("ok")
	r.RecordTruncation("exec-result")
	r.ObserveLLMUsage("anthropic", "claude-sonnet-4", 100, 50, 0.01)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"rlm_iterations_total", "rlm_sub_calls_total", "rlm_repl_evaluations_total",
		"rlm_truncations_total", "rlm_iteration_duration_seconds",
		"rlm_llm_tokens_total", "rlm_llm_cost_usd_total",
	} {
		require.True(t, names[want], "missing metric family %s", want)
	}
}

func TestNilRegistryMethodsAreNoOps(t *testing.T) {
	var r *Registry
	require.NotPanics(t, func() {
		r.RecordIteration("ok", 1.0)
		r.RecordSubCall("fulfilled")
		r.RecordREPLEvaluation("ok")
		r.RecordTruncation("exec-result")
		r.ObserveLLMUsage("anthropic", "claude-sonnet-4", 1, 1, 0.01)
	})
}

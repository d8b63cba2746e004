// Package metrics registers the Prometheus collectors SPEC_FULL.md's
// Observability section calls for: iteration/sub-call/REPL-evaluation
// counts and truncation events, plus the LLM token/cost counters costs.Tracker
// reports through the Recorder interface. Grounded on the teacher's
// pervasive client_golang usage across internal/observability (one
// package-level Registry holding CounterVec/HistogramVec fields,
// constructed once at startup and passed down by reference) rather than
// the package-global prometheus.MustRegister pattern some libraries use.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every collector the engine exposes on /metrics.
type Registry struct {
	Iterations       *prometheus.CounterVec
	SubCalls         *prometheus.CounterVec
	REPLEvaluations  *prometheus.CounterVec
	Truncations      *prometheus.CounterVec
	IterationLatency *prometheus.HistogramVec

	LLMTokens *prometheus.CounterVec
	LLMCost   *prometheus.CounterVec
}

// NewRegistry builds and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		Iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rlm_iterations_total",
			Help: "Loop Controller iterations, labeled by outcome.",
		}, []string{"outcome"}),
		SubCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rlm_sub_calls_total",
			Help: "Sub-agent invocations (llm_query/llm_batch), labeled by outcome.",
		}, []string{"outcome"}),
		REPLEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rlm_repl_evaluations_total",
			Help: "REPL code block executions, labeled by whether they errored.",
		}, []string{"result"}),
		Truncations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rlm_truncations_total",
			Help: "Values replaced by a truncation sentinel, labeled by site.",
		}, []string{"site"}),
		IterationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rlm_iteration_duration_seconds",
			Help:    "Wall-clock duration of one Loop Controller iteration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		LLMTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rlm_llm_tokens_total",
			Help: "Tokens consumed per LLM call, labeled by provider/model/direction.",
		}, []string{"provider", "model", "direction"}),
		LLMCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rlm_llm_cost_usd_total",
			Help: "Estimated USD cost of LLM calls, labeled by provider/model.",
		}, []string{"provider", "model"}),
	}

	reg.MustRegister(
		r.Iterations, r.SubCalls, r.REPLEvaluations, r.Truncations,
		r.IterationLatency, r.LLMTokens, r.LLMCost,
	)
	return r
}

// ObserveLLMUsage implements costs.Recorder. A nil Registry is a valid
// no-op receiver so callers (tests, sub-agents with metrics disabled) never
// need a nil check of their own.
func (r *Registry) ObserveLLMUsage(provider, model string, inputTokens, outputTokens int, cost float64) {
	if r == nil {
		return
	}
	r.LLMTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	r.LLMTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	r.LLMCost.WithLabelValues(provider, model).Add(cost)
}

// RecordIteration increments the iteration counter and latency histogram.
func (r *Registry) RecordIteration(outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.Iterations.WithLabelValues(outcome).Inc()
	r.IterationLatency.WithLabelValues(outcome).Observe(seconds)
}

// RecordSubCall increments the sub-call counter (outcome: "fulfilled",
// "rejected", "cancelled").
func (r *Registry) RecordSubCall(outcome string) {
	if r == nil {
		return
	}
	r.SubCalls.WithLabelValues(outcome).Inc()
}

// RecordREPLEvaluation increments the REPL evaluation counter (result: "ok"
// or "error").
func (r *Registry) RecordREPLEvaluation(result string) {
	if r == nil {
		return
	}
	r.REPLEvaluations.WithLabelValues(result).Inc()
}

// RecordTruncation increments the truncation counter for site (e.g.
// "exec-result", "log", "var-preview").
func (r *Registry) RecordTruncation(site string) {
	if r == nil {
		return
	}
	r.Truncations.WithLabelValues(site).Inc()
}

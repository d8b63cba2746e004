package repl

import "context"

// EngineCallbacks breaks the cyclic ownership between the Loop Controller
// (which owns the REPL's lifecycle) and the REPL (which calls back into the
// engine for logs, setFinal, and sub-agent spawns). Spec.md §9 Design Notes
// names exactly this seam: the REPL holds an abstract callbacks handle, the
// engine provides the implementation, and the cycle is trivially mockable.
type EngineCallbacks interface {
	OnLog(message string)
	OnSetFinal(value any)
	// OnSubCall runs one sub-agent loop and returns its stringified result.
	// Never returns an error — failures are encoded as "[SUB-CALL ERROR] ..."
	// strings per spec.md §4.1.
	OnSubCall(ctx context.Context, prompt string, data any) string
	// OnSubBatch runs len(prompts) sub-agent loops concurrently with
	// allSettled semantics.
	OnSubBatch(ctx context.Context, prompts []string) []BatchOutcome
}

// BatchOutcome is one element of llm_batch's result array.
type BatchOutcome struct {
	Status string `json:"status"` // "fulfilled" | "rejected"
	Value  string `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

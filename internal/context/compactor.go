// Package context implements the Context Builder (spec.md §4.3) and the
// History Compactor (spec.md §4.4). The token-estimation and threshold
// logic is adapted from the teacher's internal/context/manager_compress.go
// (EstimateTokens/ShouldCompress/Compress), generalized from chat Messages
// to the engine's own IterationRecords.
package context

import (
	"fmt"

	"rlm/internal/task"
)

// HistoryTokenBudget is the default token budget for compacted history
// (spec.md §4.4, §6).
const HistoryTokenBudget = 8000

// CompactThreshold is the fraction of the budget at which compaction
// triggers (80%).
const CompactThreshold = 0.8

// EstimateTokens approximates token usage as ceil(chars/4), the same
// char-count heuristic the teacher's context manager uses for its own
// token-budget check.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// CompactHistory implements spec.md §4.4's adaptive algorithm: return the
// full concatenation unchanged while under 80% of budget; otherwise keep
// the last min(3, total) records verbatim and condense older ones to a
// single "Iter N: <one-liner>" line, truncating the condensed prefix
// further if the result still exceeds the budget.
func CompactHistory(records []task.IterationRecord, budget int) string {
	if budget <= 0 {
		budget = HistoryTokenBudget
	}
	full := concatenate(records)
	if EstimateTokens(full) <= int(float64(budget)*CompactThreshold) {
		return full
	}

	verbatimCount := 3
	if len(records) < verbatimCount {
		verbatimCount = len(records)
	}
	splitAt := len(records) - verbatimCount

	var condensed string
	for _, r := range records[:splitAt] {
		condensed += fmt.Sprintf("Iter %d: %s\n", r.Index, r.OneLiner)
	}
	tail := concatenate(records[splitAt:])

	result := condensed + tail
	if EstimateTokens(result) <= budget {
		return result
	}

	// Still over budget: truncate the condensed prefix to fit, preserving
	// the verbatim tail in full.
	tailTokens := EstimateTokens(tail)
	remaining := budget - tailTokens
	if remaining < 0 {
		remaining = 0
	}
	maxChars := remaining * 4
	if maxChars < 0 {
		maxChars = 0
	}
	if len(condensed) > maxChars {
		condensed = condensed[:maxChars]
	}
	return condensed + tail
}

func concatenate(records []task.IterationRecord) string {
	var out string
	for _, r := range records {
		out += r.FullMetadata
	}
	return out
}

package context

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"rlm/internal/task"
)

func TestCompactHistoryReturnsFullUnderThreshold(t *testing.T) {
	records := []task.IterationRecord{
		{Index: 1, FullMetadata: "short", OneLiner: "did a thing"},
	}
	out := CompactHistory(records, HistoryTokenBudget)
	require.Equal(t, "short", out)
}

func TestCompactHistoryCondensesOlderRecordsOverThreshold(t *testing.T) {
	big := strings.Repeat("x", 40)
	var records []task.IterationRecord
	for i := 1; i <= 10; i++ {
		records = append(records, task.IterationRecord{Index: i, FullMetadata: big, OneLiner: "did thing"})
	}
	out := CompactHistory(records, 50)
	require.Contains(t, out, "Iter 1: did thing")
	require.True(t, strings.Count(out, big) <= 3, "at most the last 3 records should be kept verbatim")
}

func TestCompactHistoryNeverExceedsBudgetByMuch(t *testing.T) {
	big := strings.Repeat("y", 5000)
	var records []task.IterationRecord
	for i := 1; i <= 20; i++ {
		records = append(records, task.IterationRecord{Index: i, FullMetadata: big, OneLiner: "did thing"})
	}
	out := CompactHistory(records, 100)
	// The verbatim tail (last 3 records) can't be shrunk further, so the
	// invariant is that the condensed prefix never grows the result, not
	// that the absolute budget is met when the tail alone exceeds it.
	require.LessOrEqual(t, EstimateTokens(out), EstimateTokens(concatenate(records[len(records)-3:]))+1)
}

func TestEstimateTokensRoundsUp(t *testing.T) {
	require.Equal(t, 1, EstimateTokens("abc"))
	require.Equal(t, 2, EstimateTokens("abcde"))
	require.Equal(t, 0, EstimateTokens(""))
}

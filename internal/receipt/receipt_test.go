package receipt

import (
	"testing"

	"github.com/openclaw/openclaw-mem/internal/pack"
	"github.com/openclaw/openclaw-mem/internal/policy"
	"github.com/openclaw/openclaw-mem/internal/retrieval"
	"github.com/openclaw/openclaw-mem/internal/store"
	"github.com/stretchr/testify/require"
)

func TestNewRecallLowVerbosityOmitsTierCounts(t *testing.T) {
	result := retrieval.Result{
		IDs: []int64{1, 2},
		Receipt: retrieval.Receipt{
			Scope: "global",
			Mode:  "global",
			Tiers: []retrieval.TierReceipt{
				{Tier: "must", Candidates: 3, Selected: 2, FTSTop: []store.ScoredID{{ID: 1, Score: 0.9}}, FusedTop: []int64{1, 2}},
			},
		},
	}
	r := NewRecall(result, 2, "")
	require.Equal(t, "recall.receipt.v1", r.Schema)
	require.Equal(t, VerbosityLow, r.Verbosity)
	require.Empty(t, r.TierCounts)
	require.Equal(t, 2, r.FinalCount)
}

func TestNewRecallHighVerbosityIncludesTierCounts(t *testing.T) {
	result := retrieval.Result{
		Receipt: retrieval.Receipt{
			Tiers: []retrieval.TierReceipt{{Tier: "must", Candidates: 5, Selected: 1}},
		},
	}
	r := NewRecall(result, 1, VerbosityHigh)
	require.Len(t, r.TierCounts, 1)
	require.Equal(t, 5, r.TierCounts[0].Candidates)
}

func TestNewRecallRecordsEmbedFailureReason(t *testing.T) {
	result := retrieval.Result{
		Receipt: retrieval.Receipt{EmbedFailed: true, EmbedReason: "provider_unavailable"},
	}
	r := NewRecall(result, 0, "")
	require.Contains(t, r.Rejected, "provider_unavailable")
}

func TestNewRecallTopArraysAreBoundedToTen(t *testing.T) {
	var fts []store.ScoredID
	for i := 0; i < 25; i++ {
		fts = append(fts, store.ScoredID{ID: int64(i), Score: float64(i)})
	}
	result := retrieval.Result{
		Receipt: retrieval.Receipt{
			Tiers: []retrieval.TierReceipt{{Tier: "must", FTSTop: fts}},
		},
	}
	r := NewRecall(result, 0, "")
	require.LessOrEqual(t, len(r.FTSTop), maxTopN)
}

func TestNewSkippedRecallSetsSkipReason(t *testing.T) {
	r := NewSkippedRecall("trivial_prompt", "")
	require.True(t, r.Skipped)
	require.Equal(t, "trivial_prompt", r.SkipReason)
	require.Equal(t, 0, r.FinalCount)
}

func TestNewAutoCaptureBucketsRejectionReasons(t *testing.T) {
	candidates := []policy.CaptureCandidate{
		{Text: "a", Rejected: false, Category: policy.CategoryTodo},
		{Text: "b", Rejected: true, Reason: "tool_output_like"},
		{Text: "c", Rejected: true, Reason: "secrets_like"},
		{Text: "d", Rejected: true, Reason: "duplicate_text"},
		{Text: "e", Rejected: true, Reason: "duplicate_vector"},
	}
	r := NewAutoCapture(candidates, "")
	require.Equal(t, "autoCapture.receipt.v1", r.Schema)
	require.Equal(t, 5, r.CandidateExtractionCount)
	require.Equal(t, 1, r.StoredCount)
	require.Equal(t, 1, r.FilteredOut.ToolOutput)
	require.Equal(t, 1, r.FilteredOut.SecretLike)
	require.Equal(t, 2, r.FilteredOut.Duplicate)
}

func TestNewPackTraceComputesL2CountAndTraceIDOnlyAtHighVerbosity(t *testing.T) {
	trace := pack.Trace{
		LanesSearched: []string{"hot", "must"},
		Included: []pack.IncludedItem{
			{RecordRef: "obs:1", Layer: "L1"},
			{RecordRef: "obs:1", Layer: "L2"},
		},
		Excluded: []pack.ExcludedItem{{RecordRef: "obs:2", Reason: "budget_tokens"}},
	}
	budgets := pack.Budgets{BudgetTokens: 2000}

	low := NewPackTrace(trace, budgets, "what did we decide", "global", "2026-07-31T00:00:00Z", "1", 12, "")
	require.Equal(t, "pack.trace.v1", low.Schema)
	require.Empty(t, low.TraceID)
	require.Equal(t, 2, low.Output.IncludedCount)
	require.Equal(t, 1, low.Output.ExcludedCount)
	require.Equal(t, 1, low.Output.L2IncludedCount)

	high := NewPackTrace(trace, budgets, "what did we decide", "global", "2026-07-31T00:00:00Z", "1", 12, VerbosityHigh)
	require.NotEmpty(t, high.TraceID)
}

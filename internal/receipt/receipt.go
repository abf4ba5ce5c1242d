// Package receipt renders the three versioned, redaction-safe JSON
// shapes every lifecycle operation emits: recall.receipt.v1,
// autoCapture.receipt.v1, and pack.trace.v1. Field order is fixed by
// each struct's declaration order, which encoding/json preserves for
// objects (map-valued fields aside). NewRecall cuts each tier's
// ftsTop/vecTop/fusedTop to at most ten entries; every other array is
// passed through as the caller bounded it.
package receipt

import (
	"github.com/google/uuid"
	"github.com/openclaw/openclaw-mem/internal/pack"
	"github.com/openclaw/openclaw-mem/internal/policy"
	"github.com/openclaw/openclaw-mem/internal/retrieval"
	"github.com/openclaw/openclaw-mem/internal/store"
)

// Verbosity selects how much of a receipt is populated.
const (
	VerbosityLow  = "low"
	VerbosityHigh = "high"
)

const maxTopN = 10

func clampTopN(n int) int {
	if n <= 0 {
		return maxTopN
	}
	if n > maxTopN {
		return maxTopN
	}
	return n
}

// Recall is the recall.receipt.v1 shape.
type Recall struct {
	Schema       string            `json:"schema"`
	Verbosity    string            `json:"verbosity"`
	Skipped       bool             `json:"skipped"`
	SkipReason    string           `json:"skipReason,omitempty"`
	Rejected      []string         `json:"rejected,omitempty"`
	Scope         string           `json:"scope"`
	ScopeMode     string           `json:"scopeMode"`
	TiersSearched []string         `json:"tiersSearched,omitempty"`
	TierCounts    []TierCount      `json:"tierCounts,omitempty"`
	FTSTop        []store.ScoredID `json:"ftsTop,omitempty"`
	VecTop        []store.ScoredID `json:"vecTop,omitempty"`
	FusedTop      []int64          `json:"fusedTop,omitempty"`
	FinalCount    int              `json:"finalCount"`
	InjectedCount int              `json:"injectedCount"`
}

// TierCount is one tier's candidate/selected pair, included only at
// verbosity=high.
type TierCount struct {
	Tier       string `json:"tier"`
	Candidates int    `json:"candidates"`
	Selected   int    `json:"selected"`
}

// NewRecall builds a recall.receipt.v1 from one retrieval.Result.
// It never sets skipped/skipReason: a call the trivial-prompt gate
// short-circuits gets its receipt from NewSkippedRecall instead (with
// finalCount 0).
func NewRecall(result retrieval.Result, injectedCount int, verbosity string) Recall {
	if verbosity == "" {
		verbosity = VerbosityLow
	}
	r := Recall{
		Schema:        "recall.receipt.v1",
		Verbosity:     verbosity,
		Scope:         result.Receipt.Scope,
		ScopeMode:     result.Receipt.Mode,
		FinalCount:    len(result.IDs),
		InjectedCount: injectedCount,
	}
	if result.Receipt.EmbedFailed {
		r.Rejected = append(r.Rejected, result.Receipt.EmbedReason)
	}

	n := clampTopN(0)
	for _, t := range result.Receipt.Tiers {
		r.TiersSearched = append(r.TiersSearched, t.Tier)
		r.FTSTop = append(r.FTSTop, truncateScored(t.FTSTop, n)...)
		r.VecTop = append(r.VecTop, truncateScored(t.VecTop, n)...)
		r.FusedTop = append(r.FusedTop, truncateIDs(t.FusedTop, n)...)

		if verbosity == VerbosityHigh {
			r.TierCounts = append(r.TierCounts, TierCount{
				Tier:       t.Tier,
				Candidates: t.Candidates,
				Selected:   t.Selected,
			})
		}
	}
	return r
}

// NewSkippedRecall builds a recall.receipt.v1 for a call the policy
// engine gated before retrieval ran at all.
func NewSkippedRecall(reason, verbosity string) Recall {
	if verbosity == "" {
		verbosity = VerbosityLow
	}
	return Recall{
		Schema:     "recall.receipt.v1",
		Verbosity:  verbosity,
		Skipped:    true,
		SkipReason: reason,
	}
}

func truncateScored(in []store.ScoredID, n int) []store.ScoredID {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

func truncateIDs(in []int64, n int) []int64 {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

// AutoCapture is the autoCapture.receipt.v1 shape.
type AutoCapture struct {
	Schema                  string         `json:"schema"`
	Verbosity               string         `json:"verbosity"`
	CandidateExtractionCount int           `json:"candidateExtractionCount"`
	FilteredOut             FilteredCounts `json:"filteredOut"`
	StoredCount             int            `json:"storedCount"`
}

// FilteredCounts buckets rejected auto-capture candidates by reason
// family; the rejection reasons tool_output_like, secrets_like,
// duplicate_text and duplicate_vector collapse into these three
// buckets so the receipt never leaks a raw candidate reason that could
// hint at rejected content. Candidates rejected for any other reason
// are counted in none of the buckets.
type FilteredCounts struct {
	ToolOutput int `json:"tool_output"`
	SecretLike int `json:"secrets_like"`
	Duplicate  int `json:"duplicate"`
}

// NewAutoCapture builds an autoCapture.receipt.v1 from one
// AutoCapture classification run's candidates.
func NewAutoCapture(candidates []policy.CaptureCandidate, verbosity string) AutoCapture {
	if verbosity == "" {
		verbosity = VerbosityLow
	}
	r := AutoCapture{
		Schema:                   "autoCapture.receipt.v1",
		Verbosity:                verbosity,
		CandidateExtractionCount: len(candidates),
	}
	for _, c := range candidates {
		switch {
		case !c.Rejected:
			r.StoredCount++
		case c.Reason == "tool_output_like":
			r.FilteredOut.ToolOutput++
		case c.Reason == "secrets_like":
			r.FilteredOut.SecretLike++
		case c.Reason == "duplicate_text" || c.Reason == "duplicate_vector":
			r.FilteredOut.Duplicate++
		}
	}
	return r
}

// PackTrace is the pack.trace.v1 shape.
type PackTrace struct {
	Schema  string       `json:"schema"`
	TS      string       `json:"ts"`
	Version string       `json:"version"`
	Query   PackQuery    `json:"query"`
	Budgets pack.Budgets `json:"budgets"`
	Lanes   []string     `json:"lanes"`
	Output  PackOutput   `json:"output"`
	Timing  PackTiming   `json:"timing"`
	// TraceID is populated only at verbosity=high.
	TraceID string `json:"traceId,omitempty"`
}

// PackQuery is the query identity recorded in a pack trace. Text is the
// caller's raw query string, which is not secret (the caller already
// has it) but is kept out of the low-verbosity summary fields above it.
type PackQuery struct {
	Text  string `json:"text"`
	Scope string `json:"scope"`
}

// PackOutput is the final bundle shape summary.
type PackOutput struct {
	IncludedCount   int `json:"includedCount"`
	ExcludedCount   int `json:"excludedCount"`
	L2IncludedCount int `json:"l2IncludedCount"`
	CitationsCount  int `json:"citationsCount"`
}

// PackTiming records wall-clock duration for the pack call.
type PackTiming struct {
	DurationMs int64 `json:"durationMs"`
}

// NewPackTrace adapts pack.Trace (the packer's own internal trace) into
// the external pack.trace.v1 shape, stamping ts/version/query/timing
// fields the packer itself does not carry.
func NewPackTrace(trace pack.Trace, budgets pack.Budgets, queryText, scope, ts, version string, durationMs int64, verbosity string) PackTrace {
	if verbosity == "" {
		verbosity = VerbosityLow
	}

	l2Count := 0
	for _, item := range trace.Included {
		if item.Layer == "L2" {
			l2Count++
		}
	}

	out := PackTrace{
		Schema:  "pack.trace.v1",
		TS:      ts,
		Version: version,
		Query:   PackQuery{Text: queryText, Scope: scope},
		Budgets: budgets,
		Lanes:   trace.LanesSearched,
		Output: PackOutput{
			IncludedCount:   len(trace.Included),
			ExcludedCount:   len(trace.Excluded),
			L2IncludedCount: l2Count,
			CitationsCount:  len(trace.Included),
		},
		Timing: PackTiming{DurationMs: durationMs},
	}

	if verbosity == VerbosityHigh {
		out.TraceID = uuid.NewString()
	}

	return out
}

// Package pack assembles a bounded, cited context bundle from
// retrieval output, enforcing a token budget and recording a trace
// receipt of every inclusion/exclusion decision.
package pack

import (
	"fmt"

	"github.com/openclaw/openclaw-mem/internal/store"
)

// Budgets bounds one pack call.
type Budgets struct {
	BudgetTokens int `json:"budget_tokens"`
	MaxItems     int `json:"max_items"`
	MaxL2Items   int `json:"max_l2_items"`
	NiceCap      int `json:"nice_cap"`
	// IncludeL2 requests raw-detail (L2) items in addition to L1
	// summaries. IncludeUnknownIgnore allows the unknown/ignore tiers
	// to contribute items when explicitly requested by the caller.
	IncludeL2            bool `json:"include_l2"`
	IncludeUnknownIgnore bool `json:"include_unknown_ignore"`
}

func defaultBudgets(b Budgets) Budgets {
	if b.BudgetTokens <= 0 {
		b.BudgetTokens = 2000
	}
	if b.MaxItems <= 0 {
		b.MaxItems = 20
	}
	if b.NiceCap <= 0 {
		b.NiceCap = 10
	}
	return b
}

// IncludedItem is one item placed into the bundle, with its citation
// tuple.
type IncludedItem struct {
	RecordRef      string   `json:"recordRef"`
	Tier           string   `json:"tier"`
	Layer          string   `json:"layer"`
	Text           string   `json:"text"`
	Tokens         int      `json:"tokens"`
	RationaleCodes []string `json:"rationale_codes"`
}

// ExcludedItem records why a candidate did not make the bundle.
type ExcludedItem struct {
	RecordRef string `json:"recordRef"`
	Reason    string `json:"reason"`
}

// Trace is the pack.trace.v1 output.
type Trace struct {
	LanesSearched        []string       `json:"lanes_searched"`
	CandidatesConsidered int            `json:"candidates_considered"`
	Included             []IncludedItem `json:"included"`
	Excluded             []ExcludedItem `json:"excluded"`
	FinalCounts          map[string]int `json:"final_counts"`
	// TraceID is left empty by Pack so pack stays verbosity-agnostic;
	// receipt.NewPackTrace stamps its own traceId on the pack.trace.v1
	// shape at verbosity=high.
	TraceID string `json:"traceId,omitempty"`
}

// Bundle is the assembled, prompt-injectable output.
type Bundle struct {
	BundleText string         `json:"bundle_text"`
	Included   []IncludedItem `json:"included"`
}

// estimateTokens is the declared char/4 estimator, floored at 1 for
// any non-empty text.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Pack assembles the bundle. hot is the protected fresh-tail (recent
// session snippets preserved unmodified, in order); candidates is the
// retrieval output in rank order. Each candidate's tier is derived from
// its own importance label so pack never needs retrieval's internal
// bucketing.
func Pack(hot []string, candidates []*store.Observation, budgets Budgets) (Bundle, Trace) {
	budgets = defaultBudgets(budgets)

	trace := Trace{
		LanesSearched:        []string{"hot", "must", "nice", "unknown_ignore"},
		CandidatesConsidered: len(hot) + len(candidates),
		FinalCounts:          map[string]int{},
	}

	var included []IncludedItem
	budgetLeft := budgets.BudgetTokens
	niceUsed := 0

	addItem := func(recordRef, tier, layer, text string, codes []string) bool {
		if len(included) >= budgets.MaxItems {
			trace.Excluded = append(trace.Excluded, ExcludedItem{RecordRef: recordRef, Reason: "max_items"})
			return false
		}
		tokens := estimateTokens(text)
		if tokens > budgetLeft {
			trace.Excluded = append(trace.Excluded, ExcludedItem{RecordRef: recordRef, Reason: "budget_tokens"})
			return false
		}
		included = append(included, IncludedItem{
			RecordRef:      recordRef,
			Tier:           tier,
			Layer:          layer,
			Text:           text,
			Tokens:         tokens,
			RationaleCodes: codes,
		})
		budgetLeft -= tokens
		return true
	}

	// Protected fresh-tail: added ahead of every other tier, consuming
	// budget first; a hot snippet still goes through the same max-items
	// and token-budget checks as any other item.
	for i, h := range hot {
		addItem(fmt.Sprintf("hot:%d", i), "hot", "L1", h, []string{"protected_fresh_tail"})
	}

	var must, nice, unknownIgnore []*store.Observation
	for _, obs := range candidates {
		switch obs.ImportanceLabel() {
		case store.LabelMustRemember:
			must = append(must, obs)
		case store.LabelNiceToHave:
			nice = append(nice, obs)
		default:
			unknownIgnore = append(unknownIgnore, obs)
		}
	}

	for _, obs := range must {
		addItem(recordRef(obs.ID), "must", "L1", obs.Summary, []string{"must_remember"})
	}
	for _, obs := range nice {
		if niceUsed >= budgets.NiceCap {
			trace.Excluded = append(trace.Excluded, ExcludedItem{RecordRef: recordRef(obs.ID), Reason: "nice_cap"})
			continue
		}
		if addItem(recordRef(obs.ID), "nice", "L1", obs.Summary, []string{"nice_to_have"}) {
			niceUsed++
		}
	}
	if budgets.IncludeUnknownIgnore {
		for _, obs := range unknownIgnore {
			addItem(recordRef(obs.ID), obs.ImportanceLabel(), "L1", obs.Summary, []string{"explicit_unknown_or_ignore"})
		}
	} else {
		for _, obs := range unknownIgnore {
			trace.Excluded = append(trace.Excluded, ExcludedItem{RecordRef: recordRef(obs.ID), Reason: "tier_not_explicit"})
		}
	}

	if budgets.IncludeL2 {
		l2Used := 0
		for _, obs := range append(append([]*store.Observation{}, must...), nice...) {
			if l2Used >= budgets.MaxL2Items {
				break
			}
			if len(obs.Detail) == 0 {
				continue
			}
			if addItem(recordRef(obs.ID), obs.ImportanceLabel(), "L2", string(obs.Detail), []string{"raw_detail"}) {
				l2Used++
			}
		}
	}

	bundleText := ""
	for _, item := range included {
		if bundleText != "" {
			bundleText += "\n"
		}
		bundleText += item.Text
	}

	trace.Included = included
	trace.FinalCounts["included"] = len(included)
	trace.FinalCounts["excluded"] = len(trace.Excluded)

	return Bundle{BundleText: bundleText, Included: included}, trace
}

func recordRef(id int64) string {
	return fmt.Sprintf("obs:%d", id)
}

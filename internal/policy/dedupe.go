package policy

import (
	"context"
	"strings"

	"github.com/openclaw/openclaw-mem/internal/embed"
	"github.com/openclaw/openclaw-mem/internal/store"
)

// TokenJaccard computes the Jaccard similarity of the whitespace-token
// sets of two normalized strings.
func TokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(Normalize(s)))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// DedupeAgainstText marks a candidate rejected when its text-Jaccard
// similarity against any of priorTexts meets or exceeds threshold.
// priorTexts covers both this turn's already-accepted candidates and
// existing store content the caller chooses to compare against.
func DedupeAgainstText(candidates []CaptureCandidate, priorTexts []string, threshold float64) []CaptureCandidate {
	if threshold <= 0 {
		threshold = 0.92
	}
	accepted := append([]string{}, priorTexts...)
	out := make([]CaptureCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = c
		if c.Rejected {
			continue
		}
		dup := false
		for _, prior := range accepted {
			if TokenJaccard(c.Text, prior) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			out[i].Rejected = true
			out[i].Reason = "duplicate_text"
			continue
		}
		accepted = append(accepted, c.Text)
	}
	return out
}

// DedupeAgainstVectorIndex rejects a candidate when the embedding
// provider is reachable and the nearest existing observation's cosine
// score meets or exceeds minScore. A provider failure fails open: the
// candidate is neither accepted nor rejected by this check, it simply
// isn't run (the text-Jaccard pass is still authoritative).
func DedupeAgainstVectorIndex(ctx context.Context, candidates []CaptureCandidate, s *store.Store, client *embed.Client, model string, minScore float64) []CaptureCandidate {
	if minScore <= 0 {
		minScore = 0.94
	}
	out := make([]CaptureCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = c
		if c.Rejected || client == nil {
			continue
		}
		vec, _, err := client.Embed(ctx, c.Text)
		if err != nil {
			continue
		}
		hits, err := s.SearchVector(vec, 1, model, store.Filter{IncludeArchived: true})
		if err != nil || len(hits) == 0 {
			continue
		}
		if hits[0].Score >= minScore {
			out[i].Rejected = true
			out[i].Reason = "duplicate_vector"
		}
	}
	return out
}

// ApplyTurnCap rejects every accepted candidate past MaxItemsPerTurn,
// preserving input order so the first MaxItemsPerTurn accepted
// candidates win.
func ApplyTurnCap(candidates []CaptureCandidate, maxItemsPerTurn int) []CaptureCandidate {
	if maxItemsPerTurn <= 0 {
		maxItemsPerTurn = 2
	}
	out := make([]CaptureCandidate, len(candidates))
	accepted := 0
	for i, c := range candidates {
		out[i] = c
		if c.Rejected {
			continue
		}
		if accepted >= maxItemsPerTurn {
			out[i].Rejected = true
			out[i].Reason = "max_items_per_turn"
			continue
		}
		accepted++
	}
	return out
}

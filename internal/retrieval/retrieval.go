// Package retrieval implements deterministic hybrid retrieval: a
// tiered, policy-aware plan over the ledger's lexical and vector
// channels, fused by reciprocal rank fusion.
package retrieval

import (
	"context"
	"errors"
	"sort"

	"github.com/openclaw/openclaw-mem/internal/embed"
	"github.com/openclaw/openclaw-mem/internal/errs"
	"github.com/openclaw/openclaw-mem/internal/store"
	"golang.org/x/sync/errgroup"
)

// rrfK is the reciprocal-rank-fusion constant from the fusion formula
// score(id) = sum(1 / (rrfK + rank(id))).
const rrfK = 60

const defaultMultiplier = 2
const maxMultiplierK = 50

// Options controls one retrieval call.
type Options struct {
	Limit            int
	Scope            string
	ImportanceLabels []string
	TrustTiers       []string
	Multiplier       int
	Model            string
}

// tierPlan pairs a tier name with the importance labels it covers, in
// the fixed fallback order: must, nice, unknown, ignore.
type tierPlan struct {
	name   string
	labels []string
}

var defaultTiers = []tierPlan{
	{"must", []string{store.LabelMustRemember}},
	{"nice", []string{store.LabelNiceToHave}},
	{"unknown", []string{store.LabelUnknown}},
	{"ignore", []string{store.LabelIgnore}},
}

// TierReceipt reports one tier's search and fusion outcome.
type TierReceipt struct {
	Tier       string        `json:"tier"`
	Labels     []string      `json:"labels"`
	Candidates int           `json:"candidates"`
	Selected   int           `json:"selected"`
	FTSTop     []store.ScoredID `json:"fts_top"`
	VecTop     []store.ScoredID `json:"vec_top"`
	FusedTop   []int64       `json:"fused_top"`
	Rejections []string      `json:"rejections,omitempty"`
}

// Receipt is the full retrieval trace for one call.
type Receipt struct {
	Scope       string        `json:"scope"`
	Mode        string        `json:"mode"`
	EmbedFailed bool          `json:"embed_failed,omitempty"`
	EmbedReason string        `json:"embed_reason,omitempty"`
	Tiers       []TierReceipt `json:"tiers"`
}

// Result is the selected ids plus the receipt explaining how they were
// chosen.
type Result struct {
	IDs     []int64
	Receipt Receipt
}

// Run executes the tiered retrieval plan against s. queryVec is
// computed once (via client.Embed) and reused across tiers; a failed
// embed call is recorded in the receipt and the run falls back to
// FTS-only for every tier (fail-open).
func Run(ctx context.Context, s *store.Store, client *embed.Client, queryText string, opts Options) (Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	multiplier := opts.Multiplier
	if multiplier <= 0 {
		multiplier = defaultMultiplier
	}

	scope, mode := ResolveScope(queryText, opts.Scope)
	receipt := Receipt{Scope: scope, Mode: mode}

	var queryVec []float32
	if client != nil {
		vec, _, err := client.Embed(ctx, queryText)
		if err != nil {
			receipt.EmbedFailed = true
			switch {
			case errors.Is(err, errs.ErrEmbeddingInputTooLong):
				receipt.EmbedReason = "embedding_input_too_long"
			default:
				receipt.EmbedReason = "provider_unavailable"
			}
		} else {
			queryVec = vec
		}
	} else {
		receipt.EmbedFailed = true
		receipt.EmbedReason = "no_embedding_client"
	}

	selected := make([]int64, 0, limit)
	seen := make(map[int64]bool, limit)

	tiers := defaultTiers
	if len(opts.ImportanceLabels) > 0 {
		tiers = filterTiers(defaultTiers, opts.ImportanceLabels)
	}

	for _, tier := range tiers {
		if len(selected) >= limit {
			receipt.Tiers = append(receipt.Tiers, TierReceipt{
				Tier:       tier.name,
				Labels:     tier.labels,
				Rejections: []string{"budget_cap"},
			})
			continue
		}

		filter := store.Filter{
			Scope:            scope,
			ImportanceLabels: tier.labels,
			TrustTiers:       opts.TrustTiers,
		}
		k := limit * multiplier
		if k > maxMultiplierK {
			k = maxMultiplierK
		}

		ftsHits, vecHits, err := searchTier(ctx, s, queryVec, queryText, opts.Model, k, filter)
		if err != nil {
			return Result{}, err
		}

		fused := fuse(ftsHits, vecHits)
		tierReceipt := TierReceipt{
			Tier:       tier.name,
			Labels:     tier.labels,
			Candidates: len(fused),
			FTSTop:     ftsHits,
			VecTop:     vecHits,
		}

		for _, id := range fused {
			if len(selected) >= limit {
				break
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			selected = append(selected, id)
			tierReceipt.FusedTop = append(tierReceipt.FusedTop, id)
		}
		tierReceipt.Selected = len(tierReceipt.FusedTop)
		receipt.Tiers = append(receipt.Tiers, tierReceipt)
	}

	return Result{IDs: selected, Receipt: receipt}, nil
}

// searchTier runs search_fts and search_vector concurrently, since
// neither depends on the other's result; the vector channel is skipped
// entirely (not merely empty) when queryVec is nil.
func searchTier(ctx context.Context, s *store.Store, queryVec []float32, queryText, model string, k int, filter store.Filter) ([]store.ScoredID, []store.ScoredID, error) {
	var ftsHits, vecHits []store.ScoredID

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.SearchFTS(queryText, k, filter)
		if err != nil {
			return err
		}
		ftsHits = hits
		return nil
	})
	if queryVec != nil {
		g.Go(func() error {
			hits, err := s.SearchVector(queryVec, k, model, filter)
			if err != nil {
				return err
			}
			vecHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ftsHits, vecHits, nil
}

// fuse applies reciprocal rank fusion over the fts and vector result
// lists (each already ordered best-first) and returns ids ordered by
// fused score descending, tie-broken by lower id.
func fuse(fts, vec []store.ScoredID) []int64 {
	scores := make(map[int64]float64)
	addRanks(scores, fts)
	addRanks(scores, vec)

	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := scores[ids[i]], scores[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
	return ids
}

func addRanks(scores map[int64]float64, hits []store.ScoredID) {
	for rank, hit := range hits {
		scores[hit.ID] += 1.0 / float64(rrfK+rank+1)
	}
}

// filterTiers narrows the fixed tier plan to only the tiers whose
// labels intersect the caller's requested importance labels, used when
// a caller explicitly restricts importance_labels.
func filterTiers(all []tierPlan, labels []string) []tierPlan {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	var out []tierPlan
	for _, t := range all {
		for _, l := range t.labels {
			if want[l] {
				out = append(out, t)
				break
			}
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

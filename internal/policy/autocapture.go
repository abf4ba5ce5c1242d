package policy

import (
	"context"

	"github.com/openclaw/openclaw-mem/internal/embed"
	"github.com/openclaw/openclaw-mem/internal/store"
)

// AutoCapture runs the full pipeline over one turn's user-role text:
// split, classify, dedupe (text then vector), and cap. s and client
// may be nil, in which case the vector dedupe pass is skipped (fail-
// open, per the embedding client's own failure semantics).
func AutoCapture(ctx context.Context, text string, existingTexts []string, s *store.Store, client *embed.Client, model string, opts Options) []CaptureCandidate {
	opts = defaultOptions(opts)

	candidates := SplitCandidates(text)
	classified := ClassifyCandidates(candidates, opts)
	deduped := DedupeAgainstText(classified, existingTexts, opts.DedupeSimilarityThreshold)
	if s != nil && client != nil {
		deduped = DedupeAgainstVectorIndex(ctx, deduped, s, client, model, opts.DuplicateSearchMinScore)
	}
	return ApplyTurnCap(deduped, opts.MaxItemsPerTurn)
}

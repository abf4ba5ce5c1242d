// Package ingest drives batch insertion of capture events into the
// ledger, with optional embedding of newly inserted rows, producing the
// aggregate receipts operators and the CLI rely on.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/openclaw/openclaw-mem/internal/capture"
	"github.com/openclaw/openclaw-mem/internal/embed"
	"github.com/openclaw/openclaw-mem/internal/errs"
	"github.com/openclaw/openclaw-mem/internal/store"
	"golang.org/x/sync/errgroup"
)

// Options controls a single ingest or harvest run.
type Options struct {
	// ImportanceScorer selects the autograde method. "heuristic-v1" or
	// "off". Empty defaults to "heuristic-v1".
	ImportanceScorer string
	// Embed requests embedding of newly inserted rows (harvest only).
	Embed bool
	// EmbedBatchSize bounds how many rows are embedded per batch;
	// cancellation of ctx is checked between batches. Default 16.
	EmbedBatchSize int
	// SessionKey and AgentID tag every row inserted from this run.
	SessionKey string
	AgentID    string
}

// Receipt reports the outcome of one ingest/harvest run. Field order
// matches spec's documented receipt shape.
type Receipt struct {
	TotalSeen      int            `json:"total_seen"`
	Inserted       int            `json:"inserted"`
	IDs            []int64        `json:"ids"`
	SkippedExisting int           `json:"skipped_existing"`
	SkippedDisabled int           `json:"skipped_disabled"`
	ScorerErrors   int            `json:"scorer_errors"`
	ParseErrors    int            `json:"parse_errors"`
	LabelCounts    map[string]int `json:"label_counts"`
	EmbeddingErrors int           `json:"embedding_errors,omitempty"`
	Embedded       int            `json:"embedded,omitempty"`
}

func defaultOptions(opts Options) Options {
	if opts.ImportanceScorer == "" {
		opts.ImportanceScorer = "heuristic-v1"
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 16
	}
	return opts
}

// Ingest parses r as JSONL, applies redaction and autograde, and
// inserts each new row into s. Malformed lines and duplicates are
// skipped, not fatal: the receipt's counters record what happened.
func Ingest(s *store.Store, r io.Reader, opts Options) (Receipt, error) {
	opts = defaultOptions(opts)
	parsed, err := capture.Parse(r)
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{
		TotalSeen:   parsed.TotalSeen,
		ParseErrors: parsed.ParseErrors,
		LabelCounts: map[string]int{},
		IDs:         make([]int64, 0, len(parsed.Events)),
	}

	for _, ev := range parsed.Events {
		id, label, err := insertOne(s, ev, opts)
		switch {
		case err == nil:
			receipt.Inserted++
			receipt.IDs = append(receipt.IDs, id)
			receipt.LabelCounts[label]++
		case errors.Is(err, errs.ErrDuplicate):
			receipt.SkippedExisting++
		case errors.Is(err, errs.ErrSchemaViolation):
			receipt.ScorerErrors++
		default:
			return receipt, err
		}
	}

	return receipt, nil
}

// insertOne redacts, grades, and inserts a single capture event,
// returning the new row's id and its resolved importance label.
func insertOne(s *store.Store, ev capture.Event, opts Options) (int64, string, error) {
	summary := capture.Redact(ev.Summary)
	hash := capture.ContentHash(ev.Kind, ev.ToolName, summary, ev.TS)

	var gov store.Governance
	if existing, err := (&store.Observation{Detail: ev.Detail}).Governance(); err == nil {
		gov = existing
	}
	if opts.ImportanceScorer != "off" && gov.Importance == nil {
		imp := capture.GradeHeuristicV1(ev.Kind, ev.ToolName, summary)
		gov.Importance = &imp
	}
	detail, err := buildDetail(ev.Detail, gov)
	if err != nil {
		return 0, "", err
	}

	id, err := s.InsertObservation(store.NewObservation{
		TS:          ev.TS,
		Kind:        ev.Kind,
		ToolName:    ev.ToolName,
		Summary:     summary,
		Detail:      detail,
		ContentHash: hash,
		SessionKey:  firstNonEmpty(ev.SessionKey, opts.SessionKey),
		AgentID:     firstNonEmpty(ev.AgentID, opts.AgentID),
	})
	if err != nil {
		return 0, "", err
	}

	label := store.LabelUnknown
	if gov.Importance != nil {
		label = gov.Importance.Label
	}
	return id, label, nil
}

// buildDetail nests gov under "governance" inside the caller-supplied
// detail blob, leaving any other top-level fields untouched.
func buildDetail(raw json.RawMessage, gov store.Governance) (json.RawMessage, error) {
	var out map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			out = map[string]json.RawMessage{}
		}
	} else {
		out = map[string]json.RawMessage{}
	}
	encoded, err := json.Marshal(gov)
	if err != nil {
		return nil, err
	}
	out["governance"] = encoded
	return json.Marshal(out)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Harvest runs Ingest, then embeds newly inserted rows in insertion
// order when opts.Embed is set. Embedding failures are recorded but
// never abort the run: a row without an embedding remains searchable
// via FTS.
func Harvest(ctx context.Context, s *store.Store, client *embed.Client, model string, r io.Reader, opts Options) (Receipt, error) {
	opts = defaultOptions(opts)
	receipt, err := Ingest(s, r, opts)
	if err != nil {
		return receipt, err
	}
	if !opts.Embed || client == nil {
		return receipt, nil
	}

	ids := receipt.IDs
	for start := 0; start < len(ids); start += opts.EmbedBatchSize {
		end := start + opts.EmbedBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		if err := embedBatch(ctx, s, client, model, batch, &receipt); err != nil {
			return receipt, err
		}

		// Between batches, stop early when ctx has been cancelled.
		select {
		case <-ctx.Done():
			return receipt, ctx.Err()
		default:
		}
	}

	return receipt, nil
}

// embedBatch embeds one batch concurrently, writing results into a
// pre-sized slice indexed by position so the caller's id ordering is
// never disturbed by goroutine completion order.
func embedBatch(ctx context.Context, s *store.Store, client *embed.Client, model string, ids []int64, receipt *Receipt) error {
	rows, err := s.GetByIDs(ids)
	if err != nil {
		return err
	}

	vectors := make([][]float32, len(rows))
	errsOut := make([]error, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if row == nil {
				return nil
			}
			vec, _, err := client.Embed(gctx, row.Summary)
			if err != nil {
				errsOut[i] = err
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, row := range rows {
		if row == nil {
			continue
		}
		if errsOut[i] != nil {
			receipt.EmbeddingErrors++
			continue
		}
		if err := s.UpsertEmbedding(row.ID, model, vectors[i], len(vectors[i]), "", ""); err != nil {
			receipt.EmbeddingErrors++
			continue
		}
		receipt.Embedded++
	}
	return nil
}

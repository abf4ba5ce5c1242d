package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/openclaw/openclaw-mem/internal/config"
	"github.com/openclaw/openclaw-mem/internal/policy"
	"github.com/openclaw/openclaw-mem/internal/receipt"
	"github.com/openclaw/openclaw-mem/internal/retrieval"
	"github.com/openclaw/openclaw-mem/internal/store"
)

// searchOutput wraps the resolved rows alongside the recall receipt,
// the shape every one of search/vsearch/hybrid renders.
type searchOutput struct {
	Receipt      receipt.Recall       `json:"receipt"`
	Observations []*store.Observation `json:"observations"`
	// RecallBlock is the observations rendered as the untrusted,
	// escaped <relevant-memories> block a caller would splice straight
	// into an agent's context; empty when the recall was skipped.
	RecallBlock string `json:"recallBlock,omitempty"`
}

func printObservations(rows []*store.Observation) {
	for _, o := range rows {
		fmt.Printf("  [%d] %-8s %-25s %s\n", o.ID, o.Kind, o.TS.Format("2006-01-02T15:04:05Z"), o.Summary)
	}
}

// summariesOf joins each row's summary onto its own line, the plain-text
// form that goes into the escaped recall block a caller splices into an
// agent's context.
func summariesOf(rows []*store.Observation) string {
	lines := make([]string, len(rows))
	for i, o := range rows {
		lines[i] = o.Summary
	}
	return strings.Join(lines, "\n")
}

func commonRetrievalFlags(fs *flag.FlagSet, cfg *config.Config) (limit *int, scope *string, labels *[]string, verbosity *string) {
	limit = fs.Int("limit", cfg.Retrieval.DefaultLimit, "max results")
	scope = fs.String("scope", "", "explicit scope override")
	labels = fs.StringSlice("label", nil, "restrict to these importance labels")
	verbosity = fs.String("verbosity", cfg.Receipt.Verbosity, "low|high")
	return
}

// recallSkipReason applies the auto-recall gate ahead of any tier
// search: an empty query never reaches retrieval.Run at all, and a
// trivial one (a greeting, an ack, a heartbeat token, ...) is gated by
// policy.IsTrivial. Returns "" when the
// query should proceed to retrieval.
func recallSkipReason(query string, cfg *config.Config) string {
	if strings.TrimSpace(query) == "" {
		return "no_query"
	}
	if policy.IsTrivial(query, cfg.Policy.TrivialMinChars) {
		return "trivial_prompt"
	}
	return ""
}

// renderSkippedRecall emits a recall.receipt.v1 with skipped=true and
// no observations, without ever calling retrieval.Run.
func renderSkippedRecall(globals globalFlags, reason, verbosity string) int {
	out := searchOutput{Receipt: receipt.NewSkippedRecall(reason, verbosity)}
	return emit(globals, out, func() {
		fmt.Printf("recall skipped: %s\n", reason)
	})
}

func runSearch(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit, scope, labels, verbosity := commonRetrievalFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}
	query := strings.Join(fs.Args(), " ")
	if reason := recallSkipReason(query, cfg); reason != "" {
		return renderSkippedRecall(globals, reason, *verbosity)
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	// FTS-only recall: no embedding client, so retrieval.Run falls
	// back to lexical search for every tier.
	result, err := retrieval.Run(context.Background(), s, nil, query, retrieval.Options{
		Limit: *limit, Scope: *scope, ImportanceLabels: *labels,
	})
	if err != nil {
		return fatal("search: %v", err)
	}
	return renderRecall(globals, s, result, *verbosity)
}

func runHybrid(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("hybrid", flag.ContinueOnError)
	limit, scope, labels, verbosity := commonRetrievalFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}
	query := strings.Join(fs.Args(), " ")
	if reason := recallSkipReason(query, cfg); reason != "" {
		return renderSkippedRecall(globals, reason, *verbosity)
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	client := embedClient(cfg)
	result, err := retrieval.Run(context.Background(), s, client, query, retrieval.Options{
		Limit: *limit, Scope: *scope, ImportanceLabels: *labels, Model: cfg.Embedding.Model,
	})
	if err != nil {
		return fatal("hybrid: %v", err)
	}
	return renderRecall(globals, s, result, *verbosity)
}

func runVSearch(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("vsearch", flag.ContinueOnError)
	vecFile := fs.String("query-vector-file", "", "path to a JSON array of floats")
	vecJSON := fs.String("query-vector-json", "", "a JSON array of floats given inline")
	limit := fs.Int("limit", cfg.Retrieval.DefaultLimit, "max results")
	scope := fs.String("scope", "", "explicit scope override")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}

	var raw string
	switch {
	case *vecFile != "":
		data, err := os.ReadFile(*vecFile)
		if err != nil {
			return fatal("reading %s: %v", *vecFile, err)
		}
		raw = string(data)
	case *vecJSON != "":
		raw = *vecJSON
	default:
		return fatal("vsearch: one of --query-vector-file or --query-vector-json is required")
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return fatal("vsearch: decoding query vector: %v", err)
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	filter := store.Filter{Scope: *scope}
	hits, err := s.SearchVector(vec, *limit, cfg.Embedding.Model, filter)
	if err != nil {
		return fatal("vsearch: %v", err)
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	rows, err := s.GetByIDs(ids)
	if err != nil {
		return fatal("vsearch: %v", err)
	}

	result := retrieval.Result{
		IDs: ids,
		Receipt: retrieval.Receipt{
			Scope: *scope,
			Mode:  retrieval.ModeExplicit,
			Tiers: []retrieval.TierReceipt{{Tier: "vector", VecTop: hits, Selected: len(ids)}},
		},
	}
	return renderRecall(globals, s, result, "")
}

func renderRecall(globals globalFlags, s *store.Store, result retrieval.Result, verbosity string) int {
	rows, err := s.GetByIDs(result.IDs)
	if err != nil {
		return fatal("fetching results: %v", err)
	}
	out := searchOutput{
		Receipt:      receipt.NewRecall(result, len(rows), verbosity),
		Observations: rows,
		RecallBlock:  policy.EscapeRecallOutput(summariesOf(rows)),
	}
	return emit(globals, out, func() {
		printObservations(rows)
	})
}

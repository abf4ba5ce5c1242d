package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/openclaw/openclaw-mem/internal/config"
	"github.com/openclaw/openclaw-mem/internal/pack"
	"github.com/openclaw/openclaw-mem/internal/receipt"
	"github.com/openclaw/openclaw-mem/internal/retrieval"
)

type packOutput struct {
	Bundle pack.Bundle       `json:"bundle"`
	Trace  receipt.PackTrace `json:"trace"`
}

func runPack(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	query := fs.String("query", "", "recall query driving this pack")
	scope := fs.String("scope", "", "explicit scope override")
	budgetTokens := fs.Int("budget-tokens", cfg.Pack.BudgetTokens, "token budget")
	maxItems := fs.Int("max-items", cfg.Pack.MaxItems, "max included items")
	maxL2Items := fs.Int("max-l2-items", cfg.Pack.MaxL2Items, "max L2 raw-detail items")
	niceCap := fs.Int("nice-cap", cfg.Pack.NiceCap, "max nice_to_have items")
	includeL2 := fs.Bool("include-l2", false, "include raw-detail L2 items")
	includeUnknownIgnore := fs.Bool("include-unknown-ignore", false, "include unknown/ignore tier items")
	verbosity := fs.String("verbosity", cfg.Receipt.Verbosity, "low|high")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}
	if *query == "" {
		*query = strings.Join(fs.Args(), " ")
	}
	if *query == "" {
		return fatal("pack: --query is required")
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	start := time.Now()
	client := embedClient(cfg)
	result, err := retrieval.Run(context.Background(), s, client, *query, retrieval.Options{
		Limit: cfg.Retrieval.DefaultLimit, Scope: *scope, Model: cfg.Embedding.Model,
	})
	if err != nil {
		return fatal("pack: recall: %v", err)
	}

	candidates, err := s.GetByIDs(result.IDs)
	if err != nil {
		return fatal("pack: %v", err)
	}

	budgets := pack.Budgets{
		BudgetTokens:         *budgetTokens,
		MaxItems:             *maxItems,
		MaxL2Items:           *maxL2Items,
		NiceCap:              *niceCap,
		IncludeL2:            *includeL2,
		IncludeUnknownIgnore: *includeUnknownIgnore,
	}
	bundle, trace := pack.Pack(nil, candidates, budgets)

	durationMs := time.Since(start).Milliseconds()
	packTrace := receipt.NewPackTrace(trace, budgets, *query, result.Receipt.Scope, nowRFC3339(), "1", durationMs, *verbosity)

	out := packOutput{Bundle: bundle, Trace: packTrace}
	return emit(globals, out, func() {
		fmt.Println(bundle.BundleText)
		fmt.Printf("\n--- %d included, %d excluded, %dms ---\n",
			packTrace.Output.IncludedCount, packTrace.Output.ExcludedCount, packTrace.Timing.DurationMs)
	})
}

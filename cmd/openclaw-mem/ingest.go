package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/openclaw/openclaw-mem/internal/config"
	"github.com/openclaw/openclaw-mem/internal/ingest"
)

func runIngest(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	file := fs.String("file", "-", "JSONL capture stream path, or - for stdin")
	scorer := fs.String("importance-scorer", cfg.General.ImportanceScorer, "heuristic-v1|off")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	r := os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fatal("opening %s: %v", *file, err)
		}
		defer f.Close()
		r = f
	}

	receipt, err := ingest.Ingest(s, r, ingest.Options{ImportanceScorer: *scorer})
	if err != nil {
		return fatal("ingest: %v", err)
	}

	return emit(globals, receipt, func() {
		fmt.Printf("ingested: seen=%d inserted=%d skipped_existing=%d parse_errors=%d\n",
			receipt.TotalSeen, receipt.Inserted, receipt.SkippedExisting, receipt.ParseErrors)
	})
}

func runHarvest(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("harvest", flag.ContinueOnError)
	file := fs.String("file", "-", "JSONL capture stream path, or - for stdin")
	doEmbed := fs.Bool("embed", false, "embed newly inserted rows after ingesting")
	scorer := fs.String("importance-scorer", cfg.General.ImportanceScorer, "heuristic-v1|off")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	r := os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fatal("opening %s: %v", *file, err)
		}
		defer f.Close()
		r = f
	}

	client := embedClient(cfg)
	receipt, err := ingest.Harvest(context.Background(), s, client, cfg.Embedding.Model, r, ingest.Options{
		ImportanceScorer: *scorer,
		Embed:            *doEmbed,
		EmbedBatchSize:   cfg.Embedding.BatchSize,
	})
	if err != nil {
		return fatal("harvest: %v", err)
	}

	return emit(globals, receipt, func() {
		fmt.Printf("harvested: seen=%d inserted=%d embedded=%d embedding_errors=%d\n",
			receipt.TotalSeen, receipt.Inserted, receipt.Embedded, receipt.EmbeddingErrors)
	})
}

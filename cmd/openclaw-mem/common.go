package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/openclaw/openclaw-mem/internal/config"
	"github.com/openclaw/openclaw-mem/internal/embed"
	"github.com/openclaw/openclaw-mem/internal/store"
)

// openStore opens the ledger database named by globals/cfg, applying
// the configured busy timeout and idempotency dedupe window.
func openStore(globals globalFlags, cfg *config.Config) (*store.Store, error) {
	path := globals.DB
	if path == "" {
		path = cfg.General.StateDB
	}
	return store.Open(path, cfg.General.BusyTimeout.Duration, cfg.General.IdempotencyWindow.Duration)
}

// embedClient builds an embedding client from cfg, or nil when
// embedding is disabled (every caller must handle a nil client by
// falling back to FTS-only, matching retrieval's own fail-open policy).
func embedClient(cfg *config.Config) *embed.Client {
	if !cfg.Embedding.Enabled {
		return nil
	}
	return embed.New(embed.Config{
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		APIKey:            os.Getenv(cfg.Embedding.APIKeyEnv),
		Dimension:         cfg.Embedding.Dimension,
		Timeout:           cfg.Embedding.Timeout.Duration,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		MaxChars:          cfg.Embedding.MaxChars,
		HeadChars:         cfg.Embedding.HeadChars,
		MaxBytes:          cfg.Embedding.MaxBytes,
	})
}

// emit writes v as pretty JSON to stdout when globals.JSON is set;
// otherwise it calls human, which renders the same value for a
// terminal reader.
func emit(globals globalFlags, v any, human func()) int {
	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fmt.Fprintf(os.Stderr, "openclaw-mem: encoding output: %v\n", err)
			return 1
		}
		return 0
	}
	human()
	return 0
}

func fatal(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "openclaw-mem: "+format+"\n", args...)
	return 1
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// parseTime parses a timestamp in any of the layouts the store and
// capture packages write, for commands that render it for a human.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

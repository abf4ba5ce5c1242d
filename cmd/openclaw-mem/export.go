package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/openclaw/openclaw-mem/internal/config"
	"github.com/openclaw/openclaw-mem/internal/errs"
	"github.com/openclaw/openclaw-mem/internal/store"
)

// runExport dumps observations to a file as JSON lines. A durable,
// caller-facing export always requires --yes: without it the command
// refuses with ErrConsentRequired rather than silently writing a file
// the caller may not have meant to create.
func runExport(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	to := fs.String("to", "", "destination file path")
	yes := fs.Bool("yes", false, "confirm this durable export")
	scope := fs.String("scope", "", "restrict export to this scope")
	includeArchived := fs.Bool("include-archived", false, "include archived observations")
	limit := fs.Int("limit", 0, "max rows exported (0 means unbounded)")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}
	if *to == "" {
		return fatal("export: --to is required")
	}
	if !*yes {
		return fatal("export: %v (pass --yes to confirm)", errs.ErrConsentRequired)
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	exportLimit := *limit
	if exportLimit <= 0 {
		exportLimit = 1 << 30 // unbounded in practice
	}
	rows, err := s.ListScalars(store.Filter{Scope: *scope, IncludeArchived: *includeArchived}, exportLimit)
	if err != nil {
		return fatal("export: %v", err)
	}

	f, err := os.Create(*to)
	if err != nil {
		return fatal("export: creating %s: %v", *to, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fatal("export: writing %s: %v", *to, err)
		}
	}

	result := struct {
		To    string `json:"to"`
		Count int    `json:"count"`
	}{*to, len(rows)}

	return emit(globals, result, func() {
		fmt.Printf("exported %d observation(s) to %s\n", len(rows), *to)
	})
}

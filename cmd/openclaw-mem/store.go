package main

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/openclaw/openclaw-mem/internal/config"
	"github.com/openclaw/openclaw-mem/internal/ingest"
)

func runStore(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("store", flag.ContinueOnError)
	scope := fs.String("scope", "", "scope tag for this row")
	lang := fs.String("lang", "", "ISO language tag")
	category := fs.String("category", "", "capture category")
	importance := fs.Float64("importance", 0, "explicit importance score (0 to grade by heuristic)")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}
	text := strings.Join(fs.Args(), " ")
	if text == "" {
		return fatal("store: text is required")
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	id, label, err := ingest.StoreExplicit(s, text, ingest.StoreOptions{
		Lang:       *lang,
		Category:   *category,
		Importance: *importance,
		Scope:      *scope,
	})
	if err != nil {
		return fatal("store: %v", err)
	}

	result := struct {
		ID    int64  `json:"id"`
		Label string `json:"label"`
	}{id, label}

	return emit(globals, result, func() {
		fmt.Printf("stored id=%d label=%s\n", id, label)
	})
}

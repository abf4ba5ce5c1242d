package main

import (
	"fmt"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/openclaw/openclaw-mem/internal/config"
)

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid observation id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runTimeline(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("timeline", flag.ContinueOnError)
	window := fs.Duration("window", 10*time.Minute, "+/- window around each anchor id")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}
	ids, err := parseIDs(fs.Args())
	if err != nil || len(ids) == 0 {
		return fatal("timeline: one or more observation ids are required")
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	byAnchor, err := s.Timeline(ids, *window)
	if err != nil {
		return fatal("timeline: %v", err)
	}

	return emit(globals, byAnchor, func() {
		for _, id := range ids {
			fmt.Printf("anchor %d:\n", id)
			printObservations(byAnchor[id])
		}
	})
}

func runGet(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}
	ids, err := parseIDs(fs.Args())
	if err != nil || len(ids) == 0 {
		return fatal("get: one or more observation ids are required")
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	rows, err := s.GetByIDs(ids)
	if err != nil {
		return fatal("get: %v", err)
	}

	return emit(globals, rows, func() {
		printObservations(rows)
	})
}

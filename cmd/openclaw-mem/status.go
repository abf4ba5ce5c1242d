package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/openclaw/openclaw-mem/internal/config"
)

// statusReport is the `status` command's JSON shape.
type statusReport struct {
	DBPath           string         `json:"db_path"`
	DBSizeBytes      int64          `json:"db_size_bytes"`
	ObservationCount int            `json:"observation_count"`
	EmbeddingCount   int            `json:"embedding_count"`
	LabelCounts      map[string]int `json:"label_counts"`
	LastIngestTS     string         `json:"last_ingest_ts,omitempty"`
}

func runStatus(args []string, globals globalFlags, cfg *config.Config) int {
	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	report := statusReport{DBPath: globals.DB, LabelCounts: map[string]int{}}
	if report.DBPath == "" {
		report.DBPath = cfg.General.StateDB
	}
	if info, err := os.Stat(report.DBPath); err == nil {
		report.DBSizeBytes = info.Size()
	}

	row := s.DB().QueryRow(`SELECT COUNT(*) FROM observations WHERE archived = 0`)
	_ = row.Scan(&report.ObservationCount)

	row = s.DB().QueryRow(`SELECT COUNT(*) FROM embeddings`)
	_ = row.Scan(&report.EmbeddingCount)

	rows, err := s.DB().Query(`SELECT COALESCE(json_extract(detail, '$.governance.importance.label'), 'unknown') AS label, COUNT(*)
		FROM observations WHERE archived = 0 GROUP BY label`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var label string
			var count int
			if rows.Scan(&label, &count) == nil {
				report.LabelCounts[label] = count
			}
		}
	}

	row = s.DB().QueryRow(`SELECT ts FROM observations ORDER BY ts DESC, id DESC LIMIT 1`)
	_ = row.Scan(&report.LastIngestTS)

	return emit(globals, report, func() {
		bold := color.New(color.Bold)
		bold.Println("openclaw-mem status")
		fmt.Printf("  db:           %s (%s)\n", report.DBPath, humanize.Bytes(uint64(report.DBSizeBytes)))
		fmt.Printf("  observations: %s\n", humanize.Comma(int64(report.ObservationCount)))
		fmt.Printf("  embeddings:   %s\n", humanize.Comma(int64(report.EmbeddingCount)))
		for label, count := range report.LabelCounts {
			fmt.Printf("    %-16s %s\n", label, humanize.Comma(int64(count)))
		}
		if report.LastIngestTS != "" {
			if ts, err := parseTime(report.LastIngestTS); err == nil {
				fmt.Printf("  last ingest:  %s (%s)\n", report.LastIngestTS, humanize.Time(ts))
			} else {
				fmt.Printf("  last ingest:  %s\n", report.LastIngestTS)
			}
		}
	})
}

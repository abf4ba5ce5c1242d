package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/openclaw/openclaw-mem/internal/config"
	"github.com/openclaw/openclaw-mem/internal/triage"
)

func runTriage(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("triage", flag.ContinueOnError)
	mode := fs.String("mode", triage.ModeHeartbeat, "heartbeat|cron-errors|tasks")
	stateDir := fs.String("state-dir", cfg.Triage.StateDir, "directory holding per-mode triage state files")
	cronStatePath := fs.String("cron-state-file", cfg.Triage.CronStateFile, "external cron state JSON path")
	scanLimit := fs.Int("scan-limit", cfg.Triage.RecentWindow, "max recent observations scanned")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	summary, exitCode, err := triage.Run(*mode, triage.Options{
		StateDir:      *stateDir,
		Store:         s,
		CronStatePath: *cronStatePath,
		ScanLimit:     *scanLimit,
	})
	if err != nil {
		return fatal("triage: %v", err)
	}

	emit(globals, summary, func() {
		if summary.New == 0 {
			fmt.Printf("triage[%s]: ok, nothing new\n", summary.Mode)
			return
		}
		fmt.Printf("triage[%s]: %d new item(s)\n", summary.Mode, summary.New)
		for _, t := range summary.NewTasks {
			fmt.Printf("  task  [%d] %s\n", t.ObservationID, t.Summary)
		}
		for _, j := range summary.NewErrors {
			fmt.Printf("  cron  %s: %s\n", j.Name, j.LastStatus)
		}
	})
	return exitCode
}

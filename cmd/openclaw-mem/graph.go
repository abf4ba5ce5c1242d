package main

import (
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/openclaw/openclaw-mem/internal/config"
	"github.com/openclaw/openclaw-mem/internal/graphcapture"
)

// runGraph dispatches the two periodic, index-only capture jobs: commit
// history (capture-git) and markdown headings (capture-md). These are
// not part of the stable day-to-day command set but are invoked the
// same way from a cron entry or a manual backfill.
func runGraph(args []string, globals globalFlags, cfg *config.Config) int {
	if len(args) == 0 {
		return fatal("graph: a sub-action (capture-git|capture-md) is required")
	}
	action, rest := args[0], args[1:]
	switch action {
	case "capture-git":
		return runGraphCaptureGit(rest, globals, cfg)
	case "capture-md":
		return runGraphCaptureMarkdown(rest, globals, cfg)
	default:
		return fatal("graph: unknown sub-action %q", action)
	}
}

func runGraphCaptureGit(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("graph capture-git", flag.ContinueOnError)
	repo := fs.String("repo", "", "git repository directory to scan")
	lookback := fs.Duration("lookback", time.Duration(cfg.Graph.CommitSinceHours)*time.Hour, "how far back to scan on a repo's first capture")
	stateDir := fs.String("state-dir", cfg.Triage.StateDir, "directory holding the capture cursor/seen-set state file")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}
	if *repo == "" {
		return fatal("graph capture-git: --repo is required")
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	r, err := graphcapture.CaptureGit(s, *repo, graphcapture.CommitOptions{StateDir: *stateDir, Lookback: *lookback})
	if err != nil {
		return fatal("graph capture-git: %v", err)
	}

	return emit(globals, r, func() {
		fmt.Printf("capture-git[%s]: scanned=%d inserted=%d skipped_existing=%d errors=%d\n",
			r.Repo, r.ScannedCommits, r.Inserted, r.SkippedExisting, r.Errors)
	})
}

func runGraphCaptureMarkdown(args []string, globals globalFlags, cfg *config.Config) int {
	fs := flag.NewFlagSet("graph capture-md", flag.ContinueOnError)
	root := fs.String("root", "", "directory tree to scan for markdown files")
	stateDir := fs.String("state-dir", cfg.Triage.StateDir, "directory holding the capture cursor/seen-set state file")
	includeExt := fs.StringSlice("include-ext", cfg.Graph.IncludeExt, "file extensions to scan")
	excludeGlobs := fs.StringSlice("exclude-glob", cfg.Graph.ExcludeGlobs, "basename globs to skip")
	minHeadingLevel := fs.Int("min-heading-level", cfg.Graph.MinHeadingLevel, "shallowest heading level captured")
	sinceHours := fs.Int("since-hours", cfg.Graph.SinceHours, "lookback bound for a file's first capture")
	if err := fs.Parse(args); err != nil {
		return fatal("%v", err)
	}
	if *root == "" {
		return fatal("graph capture-md: --root is required")
	}

	s, err := openStore(globals, cfg)
	if err != nil {
		return fatal("opening store: %v", err)
	}
	defer s.Close()

	r, err := graphcapture.CaptureMarkdown(s, *root, graphcapture.MarkdownOptions{
		StateDir:        *stateDir,
		IncludeExts:     *includeExt,
		ExcludeGlobs:    *excludeGlobs,
		MinHeadingLevel: *minHeadingLevel,
		SinceHours:      time.Duration(*sinceHours) * time.Hour,
	})
	if err != nil {
		return fatal("graph capture-md: %v", err)
	}

	return emit(globals, r, func() {
		fmt.Printf("capture-md: scanned_files=%d changed_files=%d inserted=%d skipped_existing=%d errors=%d\n",
			r.ScannedFiles, r.ChangedFiles, r.Inserted, r.SkippedExisting, r.Errors)
	})
}

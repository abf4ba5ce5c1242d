package graphcapture

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/openclaw/openclaw-mem/internal/capture"
	"github.com/openclaw/openclaw-mem/internal/errs"
	"github.com/openclaw/openclaw-mem/internal/git"
	"github.com/openclaw/openclaw-mem/internal/statefile"
	"github.com/openclaw/openclaw-mem/internal/store"
)

const defaultGitLookback = 24 * time.Hour

// CommitReceipt is the bounded summary of one commit-capture run.
type CommitReceipt struct {
	Repo            string `json:"repo"`
	ScannedCommits  int    `json:"scanned_commits"`
	Inserted        int    `json:"inserted"`
	SkippedExisting int    `json:"skipped_existing"`
	Errors          int    `json:"errors"`
}

// CommitOptions configures one commit-capture run.
type CommitOptions struct {
	StateDir string
	Lookback time.Duration
}

func defaultCommitOptions(o CommitOptions) CommitOptions {
	if o.Lookback <= 0 {
		o.Lookback = defaultGitLookback
	}
	return o
}

type commitDetail struct {
	Repo     string    `json:"repo"`
	SHA      string    `json:"sha"`
	AuthorTS time.Time `json:"author_ts"`
	Files    []string  `json:"files"`
}

// CaptureGit scans repoDir for commits newer than the stored cursor (or
// the fallback lookback window on a first run), inserting one
// observation per new commit. Idempotency is enforced first by an
// in-state (repo, sha) seen-set, then by the ledger's own content-hash
// dedupe window.
func CaptureGit(s *store.Store, repoDir string, opts CommitOptions) (CommitReceipt, error) {
	opts = defaultCommitOptions(opts)
	statePath := filepath.Join(opts.StateDir, "graph-capture-state.json")

	repo := git.RepoLabel(repoDir)
	receipt := CommitReceipt{Repo: repo}

	err := statefile.WithLock(statePath, func() error {
		state, err := LoadGitState(statePath)
		if err != nil {
			return fmt.Errorf("graphcapture: load git state: %w", err)
		}

		cursor := state.Cursors[repo]
		commits, err := git.CommitsSince(repoDir, cursor, opts.Lookback)
		if err != nil {
			return fmt.Errorf("graphcapture: commits since: %w", err)
		}
		receipt.ScannedCommits = len(commits)

		var latest time.Time
		for _, c := range commits {
			key := repo + "@" + c.Hash
			if state.Seen[key] {
				receipt.SkippedExisting++
				continue
			}

			detail, err := json.Marshal(commitDetail{
				Repo:     repo,
				SHA:      c.Hash,
				AuthorTS: c.Date,
				Files:    c.Files,
			})
			if err != nil {
				receipt.Errors++
				continue
			}

			summary := fmt.Sprintf("[GIT] %s %s %s", repo, git.ShortHash(c.Hash), c.Subject)
			hash := capture.ContentHash(store.KindNote, "graph.capture-git", summary, c.Date)

			_, err = s.InsertObservation(store.NewObservation{
				TS:          c.Date,
				Kind:        store.KindNote,
				ToolName:    "graph.capture-git",
				Summary:     summary,
				Detail:      detail,
				ContentHash: hash,
			})
			if err != nil && !errors.Is(err, errs.ErrDuplicate) {
				receipt.Errors++
				continue
			}

			state.Seen[key] = true
			receipt.Inserted++
			if c.Date.After(latest) {
				latest = c.Date
			}
		}

		if !latest.IsZero() {
			state.Cursors[repo] = latest
		}
		return state.Save(statePath)
	})

	return receipt, err
}

// Package triage runs deterministic scans over the ledger and an
// external cron state file, producing a bounded JSON summary and an
// exit signal (0 = ok, 10 = attention) for a cron-invoked caller.
package triage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openclaw/openclaw-mem/internal/statefile"
	"github.com/openclaw/openclaw-mem/internal/store"
)

// Mode enumerates the triage scan modes.
const (
	ModeHeartbeat  = "heartbeat"
	ModeCronErrors = "cron-errors"
	ModeTasks      = "tasks"
)

// ExitOK and ExitAttention are the two triage exit codes.
const (
	ExitOK        = 0
	ExitAttention = 10
)

// CronJob is one entry of the external cron state file being
// monitored.
type CronJob struct {
	Name       string `json:"name"`
	LastStatus string `json:"lastStatus"`
}

type cronState struct {
	Jobs []CronJob `json:"jobs"`
}

// TaskHit is one newly observed task-pattern match.
type TaskHit struct {
	ObservationID int64  `json:"observation_id"`
	Summary       string `json:"summary"`
}

// Summary is the bounded JSON output of one triage run.
type Summary struct {
	Mode      string    `json:"mode"`
	NewTasks  []TaskHit `json:"new_tasks,omitempty"`
	NewErrors []CronJob `json:"new_cron_errors,omitempty"`
	New       int       `json:"new"`
}

// Options configures one triage run.
type Options struct {
	StateDir      string
	Store         *store.Store
	CronStatePath string
	ScanLimit     int
}

func defaultOptions(o Options) Options {
	if o.ScanLimit <= 0 {
		o.ScanLimit = 200
	}
	return o
}

// Run executes mode under an exclusive lock on its state file and
// returns the bounded summary plus the exit code a cron caller should
// use.
func Run(mode string, opts Options) (Summary, int, error) {
	opts = defaultOptions(opts)
	statePath := filepath.Join(opts.StateDir, mode+"-state.json")

	var summary Summary
	summary.Mode = mode

	err := statefile.WithLock(statePath, func() error {
		state, err := LoadState(statePath)
		if err != nil {
			return fmt.Errorf("triage: load state: %w", err)
		}

		switch mode {
		case ModeTasks:
			hits, err := scanTasks(opts, state)
			if err != nil {
				return err
			}
			summary.NewTasks = hits
			summary.New += len(hits)
		case ModeCronErrors:
			jobs, err := scanCronErrors(opts, state)
			if err != nil {
				return err
			}
			summary.NewErrors = jobs
			summary.New += len(jobs)
		case ModeHeartbeat:
			hits, err := scanTasks(opts, state)
			if err != nil {
				return err
			}
			summary.NewTasks = hits
			summary.New += len(hits)

			if opts.CronStatePath != "" {
				jobs, err := scanCronErrors(opts, state)
				if err != nil {
					return err
				}
				summary.NewErrors = jobs
				summary.New += len(jobs)
			}
		default:
			return fmt.Errorf("triage: unknown mode %q", mode)
		}

		return state.Save(statePath)
	})
	if err != nil {
		return summary, ExitOK, err
	}

	exitCode := ExitOK
	if summary.New > 0 {
		exitCode = ExitAttention
	}
	return summary, exitCode, nil
}

// scanTasks lists recent observations and reports task-pattern matches
// not already in the alerted-hash set.
func scanTasks(opts Options, state *State) ([]TaskHit, error) {
	if opts.Store == nil {
		return nil, nil
	}
	rows, err := opts.Store.ListScalars(store.Filter{}, opts.ScanLimit)
	if err != nil {
		return nil, err
	}

	var hits []TaskHit
	for _, row := range rows {
		if !MatchesTaskPattern(row.Kind, row.Summary) {
			continue
		}
		fp := taskFingerprint(row.Summary)
		if state.IsAlerted(fp) {
			continue
		}
		state.MarkAlerted(fp)
		hits = append(hits, TaskHit{ObservationID: row.ID, Summary: row.Summary})
	}
	return hits, nil
}

// scanCronErrors reads the external cron state file and reports jobs
// whose lastStatus is not "ok" and have not yet been alerted.
func scanCronErrors(opts Options, state *State) ([]CronJob, error) {
	if opts.CronStatePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(opts.CronStatePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("triage: read cron state: %w", err)
	}

	var cs cronState
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("triage: decode cron state: %w", err)
	}

	var newJobs []CronJob
	for _, job := range cs.Jobs {
		if job.LastStatus == "ok" {
			continue
		}
		fp := "cron:" + job.Name
		if state.IsAlerted(fp) {
			continue
		}
		state.MarkAlerted(fp)
		newJobs = append(newJobs, job)
	}
	return newJobs, nil
}

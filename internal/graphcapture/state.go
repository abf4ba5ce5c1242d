// Package graphcapture performs index-only capture of source-control
// commits and markdown headings into the ledger, each guarded by its
// own on-disk cursor/seen-set state file so repeated runs over
// unchanged sources are no-ops.
package graphcapture

import (
	"encoding/json"
	"os"
	"time"
)

// GitState is the persisted cursor for the commit source: the
// author-timestamp of the last commit captured per repository, plus a
// (repo, sha) seen-set that guards idempotency independent of the
// ledger's own time-windowed content-hash dedupe.
type GitState struct {
	Cursors map[string]time.Time `json:"cursors"`
	Seen    map[string]bool      `json:"seen"`
}

// LoadGitState reads path, returning an empty state if the file does
// not yet exist.
func LoadGitState(path string) (*GitState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &GitState{Cursors: map[string]time.Time{}, Seen: map[string]bool{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var s GitState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Cursors == nil {
		s.Cursors = map[string]time.Time{}
	}
	if s.Seen == nil {
		s.Seen = map[string]bool{}
	}
	return &s, nil
}

// Save writes s to path as JSON.
func (s *GitState) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// MarkdownState is the persisted cursor for the markdown-heading
// source: the mtime at which each file was last scanned, plus a
// section-fingerprint seen-set.
type MarkdownState struct {
	FileMTimes map[string]time.Time `json:"file_mtimes"`
	Seen       map[string]bool      `json:"seen"`
}

// LoadMarkdownState reads path, returning an empty state if the file
// does not yet exist.
func LoadMarkdownState(path string) (*MarkdownState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &MarkdownState{FileMTimes: map[string]time.Time{}, Seen: map[string]bool{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var s MarkdownState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.FileMTimes == nil {
		s.FileMTimes = map[string]time.Time{}
	}
	if s.Seen == nil {
		s.Seen = map[string]bool{}
	}
	return &s, nil
}

// Save writes s to path as JSON.
func (s *MarkdownState) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

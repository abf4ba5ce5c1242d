// Package git shells out to the git CLI to enumerate commit metadata
// for the graph-capture commit source. It deliberately avoids linking a
// full Git implementation, matching the reference tool's approach for a
// local, operator-run process.
package git

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Commit is one entry in a repository's history, trimmed to the fields
// graph-capture needs.
type Commit struct {
	Hash      string
	ShortHash string
	Subject   string
	Author    string
	Date      time.Time
	Files     []string
}

// CommitsSince enumerates commits newer than since (exclusive), oldest
// first, so callers can advance their cursor by the last commit's Date.
// If since is zero, fallback bounds the scan to the given lookback
// window instead.
func CommitsSince(repoDir string, since time.Time, fallback time.Duration) ([]Commit, error) {
	var sinceArg string
	if !since.IsZero() {
		sinceArg = "--since=" + since.Add(time.Second).UTC().Format(time.RFC3339)
	} else {
		sinceArg = fmt.Sprintf("--since=%d.seconds.ago", int(fallback.Seconds()))
	}

	cmd := exec.Command("git", "log", sinceArg, "--pretty=format:%H|%h|%s|%an|%aI", "--no-merges", "--reverse")
	cmd.Dir = repoDir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git: log %s: %w (%s)", repoDir, err, strings.TrimSpace(string(out)))
	}

	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil, nil
	}

	lines := strings.Split(trimmed, "\n")
	commits := make([]Commit, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 5)
		if len(parts) != 5 {
			continue
		}
		date, err := time.Parse(time.RFC3339, parts[4])
		if err != nil {
			continue
		}
		commits = append(commits, Commit{
			Hash:      parts[0],
			ShortHash: parts[1],
			Subject:   parts[2],
			Author:    parts[3],
			Date:      date,
		})
	}

	for i := range commits {
		files, err := changedFiles(repoDir, commits[i].Hash)
		if err == nil {
			commits[i].Files = files
		}
	}

	return commits, nil
}

func changedFiles(repoDir, hash string) ([]string, error) {
	cmd := exec.Command("git", "show", "--name-only", "--pretty=format:", hash)
	cmd.Dir = repoDir

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git: show %s: %w", hash, err)
	}

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// RepoLabel returns a short, stable label for a repository directory,
// used in observation summaries (`[GIT] <repo> <sha7> <subject>`). It
// prefers the basename of the resolved toplevel path so the same repo
// always yields the same label regardless of the path used to invoke
// the scan.
func RepoLabel(repoDir string) string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = repoDir
	out, err := cmd.Output()
	if err != nil {
		return strings.TrimSuffix(repoDir, "/")
	}
	top := strings.TrimSpace(string(out))
	parts := strings.Split(strings.TrimRight(top, "/"), "/")
	if len(parts) == 0 {
		return top
	}
	return parts[len(parts)-1]
}

// shortHashLen is the conventional length used in commit summaries.
const shortHashLen = 7

// ShortHash trims hash to the standard 7-character display form,
// falling back to the full hash if it is shorter.
func ShortHash(hash string) string {
	if len(hash) <= shortHashLen {
		return hash
	}
	return hash[:shortHashLen]
}

// ParseCursorSeconds parses a stored Unix-seconds cursor value, treating
// an empty string as "no cursor yet".
func ParseCursorSeconds(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("git: parse cursor %q: %w", raw, err)
	}
	return time.Unix(sec, 0).UTC(), nil
}

package graphcapture

import (
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaw/openclaw-mem/internal/store"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "ledger.db"), 5*time.Second, 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")

	writeAndCommit := func(name, content, msg string) {
		path := filepath.Join(dir, name)
		require.NoError(t, exec.Command("sh", "-c", "echo '"+content+"' > "+path).Run())
		run("add", name)
		run("commit", "-q", "-m", msg)
	}

	writeAndCommit("a.txt", "one", "first commit")
	writeAndCommit("b.txt", "two", "second commit")

	return dir
}

func TestCaptureGitInsertsOneObservationPerCommit(t *testing.T) {
	s := openTestStore(t)
	repoDir := initTestRepo(t)
	stateDir := t.TempDir()

	receipt, err := CaptureGit(s, repoDir, CommitOptions{StateDir: stateDir})
	require.NoError(t, err)
	require.Equal(t, 2, receipt.ScannedCommits)
	require.Equal(t, 2, receipt.Inserted)
	require.Equal(t, 0, receipt.SkippedExisting)
}

func TestCaptureGitSecondRunIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	repoDir := initTestRepo(t)
	stateDir := t.TempDir()

	_, err := CaptureGit(s, repoDir, CommitOptions{StateDir: stateDir})
	require.NoError(t, err)

	receipt, err := CaptureGit(s, repoDir, CommitOptions{StateDir: stateDir})
	require.NoError(t, err)
	require.Equal(t, 0, receipt.ScannedCommits)
	require.Equal(t, 0, receipt.Inserted)
}

func TestCaptureGitPicksUpNewCommitAfterFirstRun(t *testing.T) {
	s := openTestStore(t)
	repoDir := initTestRepo(t)
	stateDir := t.TempDir()

	_, err := CaptureGit(s, repoDir, CommitOptions{StateDir: stateDir})
	require.NoError(t, err)

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = repoDir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	path := filepath.Join(repoDir, "c.txt")
	require.NoError(t, exec.Command("sh", "-c", "echo three > "+path).Run())
	run("add", "c.txt")
	run("commit", "-q", "-m", "third commit")

	receipt, err := CaptureGit(s, repoDir, CommitOptions{StateDir: stateDir})
	require.NoError(t, err)
	require.Equal(t, 1, receipt.Inserted)
}

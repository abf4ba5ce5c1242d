package graphcapture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCaptureMarkdownInsertsOneObservationPerHeading(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	stateDir := t.TempDir()

	content := "# Title\n\nIntro text.\n\n## First Section\n\nBody one.\n\n## Second Section\n\nBody two.\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte(content), 0644))

	receipt, err := CaptureMarkdown(s, root, MarkdownOptions{StateDir: stateDir, MinHeadingLevel: 2, SinceHours: 24 * time.Hour})
	require.NoError(t, err)
	require.Equal(t, 1, receipt.ScannedFiles)
	require.Equal(t, 1, receipt.ChangedFiles)
	require.Equal(t, 2, receipt.Inserted)
}

func TestCaptureMarkdownSecondRunWithoutChangesIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	stateDir := t.TempDir()

	content := "## One\n\nbody\n\n## Two\n\nbody\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte(content), 0644))

	_, err := CaptureMarkdown(s, root, MarkdownOptions{StateDir: stateDir, MinHeadingLevel: 2, SinceHours: 24 * time.Hour})
	require.NoError(t, err)

	receipt, err := CaptureMarkdown(s, root, MarkdownOptions{StateDir: stateDir, MinHeadingLevel: 2, SinceHours: 24 * time.Hour})
	require.NoError(t, err)
	require.Equal(t, 0, receipt.ChangedFiles)
	require.Equal(t, 0, receipt.Inserted)
}

func TestCaptureMarkdownExcludesGlobMatchedFiles(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	stateDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "CHANGELOG.md"), []byte("## Skip me\n\nbody\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("## Keep me\n\nbody\n"), 0644))

	receipt, err := CaptureMarkdown(s, root, MarkdownOptions{
		StateDir:        stateDir,
		MinHeadingLevel: 2,
		SinceHours:      24 * time.Hour,
		ExcludeGlobs:    []string{"CHANGELOG.md"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, receipt.ScannedFiles)
	require.Equal(t, 1, receipt.Inserted)
}

func TestCaptureMarkdownSkipsFirstSeenFileOutsideLookback(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	stateDir := t.TempDir()

	path := filepath.Join(root, "old.md")
	require.NoError(t, os.WriteFile(path, []byte("## Old heading\n\nbody\n"), 0644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	receipt, err := CaptureMarkdown(s, root, MarkdownOptions{StateDir: stateDir, MinHeadingLevel: 2, SinceHours: 1 * time.Hour})
	require.NoError(t, err)
	require.Equal(t, 0, receipt.ChangedFiles)
	require.Equal(t, 0, receipt.Inserted)
}

func TestCaptureMarkdownRescansOnMTimeAdvance(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	stateDir := t.TempDir()

	path := filepath.Join(root, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("## One\n\nbody\n"), 0644))

	_, err := CaptureMarkdown(s, root, MarkdownOptions{StateDir: stateDir, MinHeadingLevel: 2, SinceHours: 24 * time.Hour})
	require.NoError(t, err)

	future := time.Now().Add(2 * time.Hour)
	require.NoError(t, os.WriteFile(path, []byte("## One\n\nbody\n\n## Two\n\nbody\n"), 0644))
	require.NoError(t, os.Chtimes(path, future, future))

	receipt, err := CaptureMarkdown(s, root, MarkdownOptions{StateDir: stateDir, MinHeadingLevel: 2, SinceHours: 24 * time.Hour})
	require.NoError(t, err)
	require.Equal(t, 1, receipt.ChangedFiles)
	require.Equal(t, 1, receipt.Inserted)
	require.Equal(t, 1, receipt.SkippedExisting)
}

package statefile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage-tasks-state.json")

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NotNil(t, lock)

	lock.Release()
}

func TestAcquireFailsWhenAlreadyLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage-tasks-state.json")

	first, err := Acquire(path)
	require.NoError(t, err)
	defer first.Release()

	_, err = Acquire(path)
	require.Error(t, err)
}

func TestWithLockReleasesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph-capture-state.json")

	err := WithLock(path, func() error {
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	// Lock must have been released; a second acquire should succeed.
	lock, err := Acquire(path)
	require.NoError(t, err)
	lock.Release()
}

var errBoom = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

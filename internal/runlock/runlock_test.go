package runlock_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/job-listing-ingest/internal/runlock"
)

func TestAcquireExclusive(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "locks", "jobingest.lock")

	first, err := runlock.Acquire(path)
	require.NoError(t, err)

	_, err = runlock.Acquire(path)
	require.ErrorIs(t, err, runlock.ErrLocked)

	require.NoError(t, first.Release())

	again, err := runlock.Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestAcquireEmptyPath(t *testing.T) {
	t.Parallel()

	l, err := runlock.Acquire("")
	require.NoError(t, err)
	assert.NoError(t, l.Release())

	var nilLock *runlock.Lock
	assert.NoError(t, nilLock.Release())
}

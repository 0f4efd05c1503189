package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func record(url string) jobs.JobRecord {
	return jobs.JobRecord{Title: "Data Analyst", Company: "Acme", Location: "Remote", URL: url, SalaryInfo: jobs.SalaryUnspecified}
}

func TestJobStoreUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	n, err := store.UpsertBatch(ctx, []jobs.JobRecord{record("https://a")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	first := record("https://a")
	first.Title = "Changed"
	n, err = store.UpsertBatch(ctx, []jobs.JobRecord{first})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, store.Len())

	row, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Data Analyst", row.Title)
	assert.False(t, row.ScrapedAt.IsZero())
}

func TestJobStoreBatchWithStoredDuplicate(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	_, err := store.UpsertBatch(ctx, []jobs.JobRecord{record("https://dup")})
	require.NoError(t, err)

	n, err := store.UpsertBatch(ctx, []jobs.JobRecord{record("https://x"), record("https://dup"), record("https://y")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestJobStoreRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	_, err := store.UpsertBatch(context.Background(), []jobs.JobRecord{record("https://ok"), record("")})
	require.ErrorIs(t, err, jobs.ErrInvalidRecord)
	assert.Zero(t, store.Len())
}

func TestJobStorePendingOrderAndUpdate(t *testing.T) {
	t.Parallel()

	store := NewJobStore(WithClock(&stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}))
	ctx := context.Background()
	_, err := store.UpsertBatch(ctx, []jobs.JobRecord{record("https://1"), record("https://2"), record("https://3")})
	require.NoError(t, err)

	pending, err := store.FetchPendingDescriptions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{pending[0].ID, pending[1].ID, pending[2].ID})

	require.NoError(t, store.UpdateDescription(ctx, 3, "filled"))
	pending, err = store.FetchPendingDescriptions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, jobs.PendingItem{ID: 2, URL: "https://2"}, pending[0])

	row, ok := store.Get(3)
	require.True(t, ok)
	require.NotNil(t, row.Description)
	assert.Equal(t, "filled", *row.Description)

	require.Error(t, store.UpdateDescription(ctx, 99, "x"))
}

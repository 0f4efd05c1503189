package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
	"github.com/JakeFAU/job-listing-ingest/internal/normalize"
	"github.com/JakeFAU/job-listing-ingest/internal/source"
	"github.com/JakeFAU/job-listing-ingest/internal/storage/memory"
)

type stubAcquirer struct {
	result source.Result
	terms  []string
}

func (s *stubAcquirer) Acquire(_ context.Context, terms []string) source.Result {
	s.terms = terms
	return s.result
}

type failingGateway struct {
	jobs.Gateway
}

func (failingGateway) UpsertBatch(context.Context, []jobs.JobRecord) (int, error) {
	return 0, errors.New("connection reset")
}

func listing(url string) normalize.PlainListing {
	return normalize.PlainListing{Title: "Data Analyst", Company: "Acme", URL: url, Source: jobs.SourceWeWorkRemotely}
}

func TestRunCountsOnlyNewRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	_, err := store.UpsertBatch(ctx, []jobs.JobRecord{{URL: "https://dup", Title: "Existing"}})
	require.NoError(t, err)

	acq := &stubAcquirer{result: source.Result{
		Tier: source.TierWeWorkRemotely,
		Records: []normalize.RawRecord{
			listing("https://one"),
			listing("https://dup"),
			listing("https://two"),
		},
	}}
	p := New(acq, store, WithLogger(zap.NewNop()))
	n, err := p.Run(ctx, []string{"Data Analyst"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, []string{"Data Analyst"}, acq.terms)
}

func TestExecuteDropsUnusableRecords(t *testing.T) {
	t.Parallel()

	acq := &stubAcquirer{result: source.Result{
		Tier: source.TierWellfound,
		Records: []normalize.RawRecord{
			normalize.UnknownRecord{Typename: "Ad"},
			normalize.StartupResult{Startup: normalize.Startup{Slug: "acme", Listings: []normalize.Listing{{ID: "1"}}}},
			normalize.FeaturedGroup{},
		},
	}}
	report, err := New(acq, memory.NewJobStore()).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Report{Tier: source.TierWellfound, Acquired: 3, Normalized: 1, Inserted: 1}, report)
	assert.Equal(t, DefaultSearchTerms, acq.terms)
}

func TestRunEmptyAcquisitionIsSuccess(t *testing.T) {
	t.Parallel()

	acq := &stubAcquirer{}
	n, err := New(acq, failingGateway{}, WithDefaultTerms([]string{"Go"})).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"Go"}, acq.terms)
}

func TestRunPropagatesGatewayErrors(t *testing.T) {
	t.Parallel()

	acq := &stubAcquirer{result: source.Result{Records: []normalize.RawRecord{listing("https://x")}}}
	_, err := New(acq, failingGateway{}).Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist listings")
}

func TestRunWithSyntheticChain(t *testing.T) {
	t.Parallel()

	chain := source.NewChain(zap.NewNop(), source.Synthetic{})
	store := memory.NewJobStore()
	p := New(chain, store)

	n, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

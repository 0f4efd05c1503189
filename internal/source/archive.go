package source

import (
	"bytes"
	"context"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

// Archive writes raw provider payloads to a blob store under
// {prefix}/{run_id}/{tier}.{ext}. A nil Archive discards everything.
type Archive struct {
	store  jobs.BlobStore
	prefix string
	logger *zap.Logger
}

// NewArchive returns nil when store is nil.
func NewArchive(store jobs.BlobStore, prefix string, logger *zap.Logger) *Archive {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{store: store, prefix: prefix, logger: logger}
}

// Save stores body and logs, but never returns, failures.
func (a *Archive) Save(ctx context.Context, tier, ext string, body []byte) {
	if a == nil || len(body) == 0 {
		return
	}
	runID := jobs.RunIDFromContext(ctx)
	if runID == "" {
		runID = "adhoc"
	}
	key := path.Join(a.prefix, runID, tier+"."+ext)
	uri, err := a.store.PutObject(ctx, key, contentTypeFor(ext), bytes.NewReader(body))
	if err != nil {
		a.logger.Warn("archive raw payload failed", zap.String("tier", tier), zap.String("path", key), zap.Error(err))
		return
	}
	a.logger.Debug("archived raw payload", zap.String("tier", tier), zap.String("uri", uri))
}

func contentTypeFor(ext string) string {
	switch ext {
	case "json":
		return "application/json"
	case "html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

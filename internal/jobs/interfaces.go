package jobs

import (
	"context"
	"io"
	"time"
)

// Gateway is the persistence boundary for both phases.
type Gateway interface {
	// EnsureSchema provisions the listings table if it does not exist.
	EnsureSchema(ctx context.Context) error
	// UpsertBatch inserts records, silently skipping URLs that already exist,
	// and reports how many rows were newly inserted.
	UpsertBatch(ctx context.Context, records []JobRecord) (int, error)
	// FetchPendingDescriptions returns up to limit rows with no description, newest first.
	FetchPendingDescriptions(ctx context.Context, limit int) ([]PendingItem, error)
	// UpdateDescription sets the description of one row by id.
	UpdateDescription(ctx context.Context, id int64, description string) error
	// Close releases the underlying connection resources.
	Close()
}

// BlobStore archives raw source payloads and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run summaries to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

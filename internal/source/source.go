// Package source acquires raw listing records through an ordered fallback of
// remote and synthetic providers.
package source

import (
	"context"
	"errors"
	"net/url"

	collyfetcher "github.com/JakeFAU/job-listing-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/job-listing-ingest/internal/normalize"
)

// Tier names, in fallback order.
const (
	TierWellfound      = "wellfound"
	TierWeWorkRemotely = "weworkremotely"
	TierSynthetic      = "synthetic"
)

// ErrBlocked signals an access-denied answer from a provider. The chain
// treats it as an empty result.
var ErrBlocked = errors.New("source blocked the request")

// Fetcher performs one HTTP request.
type Fetcher interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// Provider produces raw records for a set of search terms.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, terms []string) ([]normalize.RawRecord, error)
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

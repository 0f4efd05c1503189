// Package render drives a headless browser for pages that need JavaScript.
package render

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates that no browser could be started or rendering is disabled.
var ErrUnavailable = errors.New("renderer unavailable")

// Renderer is a single browser tab owned by one enrichment run.
type Renderer interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// ElementText waits up to timeout for selector and returns its visible text.
	ElementText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	// BodyText returns the visible text of the whole page body.
	BodyText(ctx context.Context) (string, error)
	// Close releases the tab and the browser process.
	Close()
}

// Factory starts a Renderer.
type Factory func(ctx context.Context) (Renderer, error)

// Disabled is a Factory that never starts a browser.
func Disabled(context.Context) (Renderer, error) {
	return nil, ErrUnavailable
}

package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/fallback"
	"github.com/JakeFAU/job-listing-ingest/internal/render"
)

// Description outcomes, also used as metric labels.
const (
	OutcomeRendered  = "rendered"
	OutcomeBody      = "body"
	OutcomeMarker    = "marker"
	OutcomeError     = "error"
	OutcomeSynthetic = "synthetic"
)

// MarkerText is written when a page rendered but yielded no text at all.
const MarkerText = "Description could not be extracted from this URL"

const errorPrefix = "Job description could not be extracted. Error: "

// DefaultSelectors are probed in order; the first long enough match wins.
var DefaultSelectors = []string{
	`[data-test="job-description"]`,
	".job-description",
	"#job-description",
	".description",
	`[class*="description"]`,
	"main",
	".content",
}

// extractor pulls description text from a page already loaded in a renderer.
type extractor struct {
	selectors       []string
	selectorTimeout time.Duration
	minTextLength   int
	maxBodyLength   int
	logger          *zap.Logger
}

type extracted struct {
	Text    string
	Outcome string
}

// extract walks selectors, then the page body, then the marker string.
// Selector matching is first-match: the first selector whose text is longer
// than minTextLength is used even if a later one would be longer.
func (e extractor) extract(ctx context.Context, r render.Renderer) extracted {
	tiers := make([]fallback.Tier[extracted], 0, len(e.selectors)+2)
	for _, sel := range e.selectors {
		tiers = append(tiers, fallback.Tier[extracted]{
			Name:    sel,
			Produce: e.selectorTier(r, sel),
		})
	}
	tiers = append(tiers,
		fallback.Tier[extracted]{Name: OutcomeBody, Produce: e.bodyTier(r)},
		fallback.Tier[extracted]{Name: OutcomeMarker, Produce: func(context.Context) (extracted, error) {
			return extracted{Text: MarkerText, Outcome: OutcomeMarker}, nil
		}},
	)
	res := fallback.New(func(v extracted) bool { return v.Text != "" }, e.logger, tiers...).Run(ctx)
	return res.Value
}

func (e extractor) selectorTier(r render.Renderer, selector string) func(context.Context) (extracted, error) {
	return func(ctx context.Context) (extracted, error) {
		text, err := r.ElementText(ctx, selector, e.selectorTimeout)
		if err != nil {
			return extracted{}, fmt.Errorf("%w: %v", fallback.ErrSkip, err)
		}
		text = strings.TrimSpace(text)
		if utf8.RuneCountInString(text) <= e.minTextLength {
			return extracted{}, nil
		}
		return extracted{Text: text, Outcome: OutcomeRendered}, nil
	}
}

func (e extractor) bodyTier(r render.Renderer) func(context.Context) (extracted, error) {
	return func(ctx context.Context) (extracted, error) {
		text, err := r.BodyText(ctx)
		if err != nil {
			return extracted{}, err
		}
		return extracted{Text: truncateRunes(strings.TrimSpace(text), e.maxBodyLength), Outcome: OutcomeBody}, nil
	}
}

// errorDescription turns a render failure into the stored description.
func errorDescription(err error) string {
	return errorPrefix + truncateRunes(err.Error(), 100)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

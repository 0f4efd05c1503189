package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/job-listing-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
	"github.com/JakeFAU/job-listing-ingest/internal/normalize"
)

// DefaultWeWorkRemotelyURL is the category page scraped by the markup provider.
const DefaultWeWorkRemotelyURL = "https://weworkremotely.com/categories/remote-programming-jobs"

// DefaultKeywords filter markup listings by title.
var DefaultKeywords = []string{"data", "analyst", "python", "scientist"}

// WeWorkRemotelyConfig configures the markup provider.
type WeWorkRemotelyConfig struct {
	URL       string
	Keywords  []string
	MaxItems  int
	UserAgent string
}

// WeWorkRemotely parses listing items out of a category page.
type WeWorkRemotely struct {
	cfg     WeWorkRemotelyConfig
	origin  string
	fetcher Fetcher
	archive *Archive
	logger  *zap.Logger
}

// NewWeWorkRemotely builds the secondary provider.
func NewWeWorkRemotely(cfg WeWorkRemotelyConfig, fetcher Fetcher, archive *Archive, logger *zap.Logger) *WeWorkRemotely {
	if cfg.URL == "" {
		cfg.URL = DefaultWeWorkRemotelyURL
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultKeywords
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, k := range cfg.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	cfg.Keywords = keywords
	return &WeWorkRemotely{
		cfg:     cfg,
		origin:  originOf(cfg.URL),
		fetcher: fetcher,
		archive: archive,
		logger:  logger,
	}
}

// Name implements Provider.
func (w *WeWorkRemotely) Name() string { return TierWeWorkRemotely }

// Fetch implements Provider. Search terms are ignored: the page is a fixed category.
func (w *WeWorkRemotely) Fetch(ctx context.Context, _ []string) ([]normalize.RawRecord, error) {
	req := collyfetcher.Request{URL: w.cfg.URL}
	if w.cfg.UserAgent != "" {
		req.Headers = map[string][]string{"User-Agent": {w.cfg.UserAgent}}
	}
	resp, err := w.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("weworkremotely page: %w", err)
	}
	w.archive.Save(ctx, TierWeWorkRemotely, "html", resp.Body)
	return w.parse(resp.Body)
}

func (w *WeWorkRemotely) parse(body []byte) ([]normalize.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}
	var out []normalize.RawRecord
	doc.Find("li.feature").Each(func(i int, li *goquery.Selection) {
		if i >= w.cfg.MaxItems {
			return
		}
		link := li.Find("a").First()
		if link.Length() == 0 {
			return
		}
		title := link.Find("span.title").First()
		company := link.Find("span.company").First()
		if title.Length() == 0 || company.Length() == 0 {
			return
		}
		titleText := strings.TrimSpace(title.Text())
		if !w.relevant(titleText) {
			w.logger.Debug("skipping irrelevant listing", zap.String("title", titleText))
			return
		}
		href, _ := link.Attr("href")
		out = append(out, normalize.PlainListing{
			Title:      titleText,
			Company:    strings.TrimSpace(company.Text()),
			Location:   jobs.DefaultLocation,
			URL:        w.origin + href,
			SalaryInfo: jobs.SalaryUnspecified,
			Source:     jobs.SourceWeWorkRemotely,
		})
	})
	return out, nil
}

func (w *WeWorkRemotely) relevant(title string) bool {
	lower := strings.ToLower(title)
	for _, k := range w.cfg.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

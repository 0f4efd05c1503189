package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/job-listing-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/job-listing-ingest/internal/normalize"
)

// Defaults for the structured search endpoint.
const (
	DefaultWellfoundURL         = "https://wellfound.com/graphql"
	DefaultWellfoundOperationID = "tfe/2aeb9d7cc572a94adfe2b888b32e64eb8b7fb77215b168ba4256b08f9a94f37b"

	wellfoundOperationName = "JobSearchResultsX"
	remotePreferenceOpen   = "REMOTE_OPEN"
)

// WellfoundConfig configures the persisted-query provider.
type WellfoundConfig struct {
	URL         string
	OperationID string
	UserAgent   string
}

// Wellfound issues one persisted search query and decodes the result nodes.
type Wellfound struct {
	cfg     WellfoundConfig
	fetcher Fetcher
	archive *Archive
	logger  *zap.Logger
}

// NewWellfound builds the primary provider.
func NewWellfound(cfg WellfoundConfig, fetcher Fetcher, archive *Archive, logger *zap.Logger) *Wellfound {
	if cfg.URL == "" {
		cfg.URL = DefaultWellfoundURL
	}
	if cfg.OperationID == "" {
		cfg.OperationID = DefaultWellfoundOperationID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wellfound{cfg: cfg, fetcher: fetcher, archive: archive, logger: logger}
}

// Name implements Provider.
func (w *Wellfound) Name() string { return TierWellfound }

type rangeFilter struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type filterConfiguration struct {
	Page             int         `json:"page"`
	CustomJobTitles  []string    `json:"customJobTitles"`
	Equity           rangeFilter `json:"equity"`
	RemotePreference string      `json:"remotePreference"`
	Salary           rangeFilter `json:"salary"`
	YearsExperience  rangeFilter `json:"yearsExperience"`
}

type searchQuery struct {
	OperationName string `json:"operationName"`
	Variables     struct {
		FilterConfigurationInput filterConfiguration `json:"filterConfigurationInput"`
	} `json:"variables"`
	Extensions struct {
		OperationID string `json:"operationId"`
	} `json:"extensions"`
}

type searchResponse struct {
	Data struct {
		Talent struct {
			JobSearchResults struct {
				Startups struct {
					Edges []struct {
						Node json.RawMessage `json:"node"`
					} `json:"edges"`
				} `json:"startups"`
			} `json:"jobSearchResults"`
		} `json:"talent"`
	} `json:"data"`
}

func (w *Wellfound) buildQuery(terms []string) ([]byte, error) {
	var q searchQuery
	q.OperationName = wellfoundOperationName
	q.Variables.FilterConfigurationInput = filterConfiguration{
		Page:             1,
		CustomJobTitles:  append([]string{}, terms...),
		RemotePreference: remotePreferenceOpen,
	}
	q.Extensions.OperationID = w.cfg.OperationID
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}
	return body, nil
}

func (w *Wellfound) headers() http.Header {
	origin := originOf(w.cfg.URL)
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-GB,en;q=0.7")
	h.Set("Apollographql-Client-Name", "talent-web")
	h.Set("Content-Type", "application/json")
	h.Set("Origin", origin)
	h.Set("Referer", origin+"/jobs")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "same-origin")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("X-Angellist-D-Client-Referrer-Resource", "/jobs")
	h.Set("X-Apollo-Operation-Name", wellfoundOperationName)
	h.Set("X-Requested-With", "XMLHttpRequest")
	if w.cfg.UserAgent != "" {
		h.Set("User-Agent", w.cfg.UserAgent)
	}
	return h
}

// Fetch implements Provider. A 403 answer returns ErrBlocked.
func (w *Wellfound) Fetch(ctx context.Context, terms []string) ([]normalize.RawRecord, error) {
	body, err := w.buildQuery(terms)
	if err != nil {
		return nil, err
	}
	resp, err := w.fetcher.Fetch(ctx, collyfetcher.Request{
		Method:  http.MethodPost,
		URL:     w.cfg.URL,
		Headers: w.headers(),
		Cookies: []*http.Cookie{
			{Name: "ajs_anonymous_id", Value: "job-listing-ingest"},
			{Name: "logged_in", Value: "false"},
		},
		Body: body,
	})
	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrBlocked
	}
	if err != nil {
		return nil, fmt.Errorf("wellfound search: %w", err)
	}
	w.archive.Save(ctx, TierWellfound, "json", resp.Body)
	return w.decode(resp.Body)
}

func (w *Wellfound) decode(body []byte) ([]normalize.RawRecord, error) {
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	edges := parsed.Data.Talent.JobSearchResults.Startups.Edges
	out := make([]normalize.RawRecord, 0, len(edges))
	for i, edge := range edges {
		if len(edge.Node) == 0 || string(edge.Node) == "null" {
			continue
		}
		rec, err := normalize.DecodeNode(edge.Node)
		if err != nil {
			w.logger.Debug("skipping undecodable node", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

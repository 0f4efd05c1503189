// Package normalize maps raw source records of several shapes into jobs.JobRecord.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Discriminator values used by the structured search source.
const (
	TypeStartupResult  = "StartupSearchResult"
	TypePromotedResult = "PromotedResult"
	TypeFeaturedGroup  = "FeaturedStartups"
)

// RawRecord is a raw source record. The set of variants is closed:
// StartupResult, PromotedResult, FeaturedGroup, PlainListing and UnknownRecord.
type RawRecord interface {
	rawRecord()
}

// Startup carries company level fields plus its highlighted listings.
type Startup struct {
	Name     string
	Slug     string
	Location string
	// Listings is nil when the source omitted them, which yields a record
	// with default job fields. An empty non-nil slice yields no record.
	Listings []Listing
}

// Listing is one highlighted job inside a Startup.
type Listing struct {
	ID           string
	Title        string
	Compensation *Compensation
}

// StartupResult is a direct listing: job fields live one level below the record.
type StartupResult struct {
	Startup
}

// PromotedResult nests the target startup under Promoted. When Promoted is nil
// the outer Startup is used instead.
type PromotedResult struct {
	Startup
	Promoted *Startup
}

// FeaturedGroup holds several nested listings; only the first is used.
type FeaturedGroup struct {
	Entries []PromotedResult
}

// PlainListing is an already-flat record from the markup source or the synthetic catalog.
type PlainListing struct {
	Title      string
	Company    string
	Location   string
	URL        string
	SalaryInfo string
	Source     string
}

// UnknownRecord stands for any discriminator this package does not understand.
type UnknownRecord struct {
	Typename string
}

func (StartupResult) rawRecord()  {}
func (PromotedResult) rawRecord() {}
func (FeaturedGroup) rawRecord()  {}
func (PlainListing) rawRecord()   {}
func (UnknownRecord) rawRecord()  {}

// wireStartup decodes field by field: a mistyped optional field keeps its
// default instead of failing the whole node.
type wireStartup struct {
	Name     string
	Slug     string
	Location string
	// Listings is nil when the key is absent or unusable and non-nil (possibly
	// empty) when the source sent an array.
	Listings []wireListing
}

func (w *wireStartup) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	w.Name = looseString(fields["name"])
	w.Slug = looseString(fields["slug"])
	w.Location = looseString(fields["location"])

	var items []json.RawMessage
	if raw, ok := fields["highlightedJobListings"]; ok && json.Unmarshal(raw, &items) == nil && items != nil {
		w.Listings = make([]wireListing, 0, len(items))
		for _, item := range items {
			var l wireListing
			_ = l.UnmarshalJSON(item)
			w.Listings = append(w.Listings, l)
		}
	}
	return nil
}

type wireListing struct {
	ID           string
	Title        string
	Compensation *Compensation
}

func (w *wireListing) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	var id flexibleString
	if raw, ok := fields["id"]; ok && id.UnmarshalJSON(raw) == nil {
		w.ID = string(id)
	}
	w.Title = looseString(fields["title"])
	w.Compensation = decodeCompensation(fields["compensation"])
	return nil
}

type wireFeatured struct {
	wireStartup
	PromotedStartup *wireStartup
}

func (w *wireFeatured) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	if err := w.wireStartup.UnmarshalJSON(data); err != nil {
		return err
	}
	w.PromotedStartup = optionalStartup(fields["promotedStartup"])
	return nil
}

// DecodeNode turns one search result node into a RawRecord using its __typename.
// Only a node that is not a JSON object is an error; mistyped fields fall back
// to their defaults.
func DecodeNode(data []byte) (RawRecord, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode search node: %w", err)
	}
	typename := looseString(fields["__typename"])
	var outer wireStartup
	_ = outer.UnmarshalJSON(data)

	switch typename {
	case TypeStartupResult:
		return StartupResult{Startup: outer.toStartup()}, nil
	case TypePromotedResult:
		return toPromoted(outer, optionalStartup(fields["promotedStartup"])), nil
	case TypeFeaturedGroup:
		var items []json.RawMessage
		_ = json.Unmarshal(fields["featuredStartups"], &items)
		group := FeaturedGroup{Entries: make([]PromotedResult, 0, len(items))}
		for _, item := range items {
			var entry wireFeatured
			if err := entry.UnmarshalJSON(item); err != nil {
				continue
			}
			group.Entries = append(group.Entries, toPromoted(entry.wireStartup, entry.PromotedStartup))
		}
		return group, nil
	default:
		return UnknownRecord{Typename: typename}, nil
	}
}

func toPromoted(outer wireStartup, promoted *wireStartup) PromotedResult {
	out := PromotedResult{Startup: outer.toStartup()}
	if promoted != nil {
		inner := promoted.toStartup()
		out.Promoted = &inner
	}
	return out
}

func (w wireStartup) toStartup() Startup {
	s := Startup{
		Name:     w.Name,
		Slug:     w.Slug,
		Location: w.Location,
	}
	if w.Listings != nil {
		s.Listings = make([]Listing, 0, len(w.Listings))
	}
	for _, l := range w.Listings {
		s.Listings = append(s.Listings, Listing(l))
	}
	return s
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("expected a JSON object, got null")
	}
	return fields, nil
}

func optionalStartup(raw json.RawMessage) *wireStartup {
	if len(raw) == 0 {
		return nil
	}
	var s wireStartup
	if err := s.UnmarshalJSON(raw); err != nil {
		return nil
	}
	return &s
}

// looseString returns the JSON string in raw, or "" for any other value.
func looseString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// flexibleString accepts JSON strings and numbers.
type flexibleString string

func (f *flexibleString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*f = flexibleString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return fmt.Errorf("decode id %s: %w", raw, err)
	}
	*f = flexibleString(raw)
	return nil
}

// decodeCompensation accepts a structured object or a preformatted string.
// Anything it cannot read yields nil, which formats as unspecified.
func decodeCompensation(raw json.RawMessage) *Compensation {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if json.Unmarshal(raw, &text) != nil || text == "" {
			return nil
		}
		return &Compensation{Text: text}
	}
	var c Compensation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil
	}
	return &c
}

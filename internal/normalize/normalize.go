package normalize

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

const listingURLFormat = "https://wellfound.com/company/%s/jobs/%s"

// Normalize maps a raw record to a JobRecord. The boolean is false when the
// record is malformed or of an unknown kind; callers drop those.
func Normalize(raw RawRecord) (jobs.JobRecord, bool) {
	switch r := raw.(type) {
	case StartupResult:
		return fromStartup(r.Startup)
	case *StartupResult:
		if r == nil {
			return jobs.JobRecord{}, false
		}
		return fromStartup(r.Startup)
	case PromotedResult:
		return fromPromoted(r)
	case *PromotedResult:
		if r == nil {
			return jobs.JobRecord{}, false
		}
		return fromPromoted(*r)
	case FeaturedGroup:
		return fromFeatured(r)
	case *FeaturedGroup:
		if r == nil {
			return jobs.JobRecord{}, false
		}
		return fromFeatured(*r)
	case PlainListing:
		return fromPlain(r)
	case *PlainListing:
		if r == nil {
			return jobs.JobRecord{}, false
		}
		return fromPlain(*r)
	default:
		return jobs.JobRecord{}, false
	}
}

// NormalizeAll applies Normalize and keeps only the present results, in order.
func NormalizeAll(raws []RawRecord) []jobs.JobRecord {
	out := make([]jobs.JobRecord, 0, len(raws))
	for _, raw := range raws {
		if rec, ok := Normalize(raw); ok {
			out = append(out, rec)
		}
	}
	return out
}

func fromPromoted(r PromotedResult) (jobs.JobRecord, bool) {
	if r.Promoted != nil {
		return fromStartup(*r.Promoted)
	}
	return fromStartup(r.Startup)
}

func fromFeatured(g FeaturedGroup) (jobs.JobRecord, bool) {
	if len(g.Entries) == 0 {
		return jobs.JobRecord{}, false
	}
	return fromPromoted(g.Entries[0])
}

func fromStartup(s Startup) (jobs.JobRecord, bool) {
	if s.Listings != nil && len(s.Listings) == 0 {
		return jobs.JobRecord{}, false
	}
	var listing Listing
	if len(s.Listings) > 0 {
		listing = s.Listings[0]
	}
	slug := strings.TrimSpace(s.Slug)
	listingID := strings.TrimSpace(listing.ID)
	if slug == "" && listingID == "" {
		return jobs.JobRecord{}, false
	}
	return jobs.JobRecord{
		Title:      orDefault(listing.Title, jobs.DefaultTitle),
		Company:    orDefault(s.Name, jobs.DefaultCompany),
		Location:   orDefault(s.Location, jobs.DefaultLocation),
		URL:        fmt.Sprintf(listingURLFormat, slug, listingID),
		SalaryInfo: FormatSalary(listing.Compensation),
		SourceSite: jobs.SourceWellfound,
	}, true
}

func fromPlain(p PlainListing) (jobs.JobRecord, bool) {
	url := strings.TrimSpace(p.URL)
	if url == "" {
		return jobs.JobRecord{}, false
	}
	salary := strings.TrimSpace(p.SalaryInfo)
	if salary == "" {
		salary = jobs.SalaryUnspecified
	}
	return jobs.JobRecord{
		Title:      orDefault(p.Title, jobs.DefaultTitle),
		Company:    orDefault(p.Company, jobs.DefaultCompany),
		Location:   orDefault(p.Location, jobs.DefaultLocation),
		URL:        url,
		SalaryInfo: salary,
		SourceSite: orDefault(p.Source, jobs.SourceWeWorkRemotely),
	}, true
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

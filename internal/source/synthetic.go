package source

import (
	"context"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
	"github.com/JakeFAU/job-listing-ingest/internal/normalize"
)

var syntheticCatalog = []normalize.PlainListing{
	{
		Title:      "Senior Data Analyst",
		Company:    "TechCorp International",
		Location:   "Remote, UK",
		SalaryInfo: "£45,000 - £65,000",
		URL:        "https://example.com/job/senior-data-analyst-1",
	},
	{
		Title:      "Python Developer",
		Company:    "DataFlow Solutions",
		Location:   "London, UK",
		SalaryInfo: "£50,000 - £70,000",
		URL:        "https://example.com/job/python-developer-2",
	},
	{
		Title:      "Business Data Scientist",
		Company:    "Analytics Pro Ltd",
		Location:   "Manchester, UK",
		SalaryInfo: "£55,000 - £75,000",
		URL:        "https://example.com/job/data-scientist-3",
	},
	{
		Title:      "Junior Data Analyst",
		Company:    "StartupTech",
		Location:   "Remote",
		SalaryInfo: "£30,000 - £45,000",
		URL:        "https://example.com/job/junior-analyst-4",
	},
	{
		Title:      "Senior Python Engineer",
		Company:    "FinTech Innovations",
		Location:   "Edinburgh, UK",
		SalaryInfo: "£60,000 - £80,000",
		URL:        "https://example.com/job/python-engineer-5",
	},
}

// Synthetic emits a fixed demonstration catalog tagged with synthetic provenance.
type Synthetic struct{}

// Name implements Provider.
func (Synthetic) Name() string { return TierSynthetic }

// Fetch implements Provider and always succeeds.
func (Synthetic) Fetch(context.Context, []string) ([]normalize.RawRecord, error) {
	out := make([]normalize.RawRecord, 0, len(syntheticCatalog))
	for _, item := range syntheticCatalog {
		item.Source = jobs.SourceSynthetic
		out = append(out, item)
	}
	return out, nil
}

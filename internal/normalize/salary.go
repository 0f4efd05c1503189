package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

const defaultCurrency = "USD"

// Compensation is the structured pay block attached to a listing.
type Compensation struct {
	MinSalary *float64     `json:"minSalary"`
	MaxSalary *float64     `json:"maxSalary"`
	Currency  string       `json:"currency"`
	Equity    *EquityRange `json:"equity"`
	// Text is set when the source only supplied a preformatted string.
	Text string `json:"-"`
}

// EquityRange is a percentage range.
type EquityRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

var amountPrinter = message.NewPrinter(language.English)

// FormatSalary renders compensation as "<cur> <min> - <max>" and/or
// "Equity: <min>-<max>%", joined by " | ". It returns "Not specified"
// when nothing usable is present.
func FormatSalary(c *Compensation) string {
	if c == nil {
		return jobs.SalaryUnspecified
	}
	parts := make([]string, 0, 2)
	if nonZero(c.MinSalary) && nonZero(c.MaxSalary) {
		currency := c.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		parts = append(parts, currency+" "+formatAmount(*c.MinSalary)+" - "+formatAmount(*c.MaxSalary))
	}
	if c.Equity != nil && c.Equity.Min != nil && c.Equity.Max != nil {
		parts = append(parts, "Equity: "+formatPercent(*c.Equity.Min)+"-"+formatPercent(*c.Equity.Max)+"%")
	}
	if len(parts) == 0 {
		if text := strings.TrimSpace(c.Text); text != "" {
			return text
		}
		return jobs.SalaryUnspecified
	}
	return strings.Join(parts, " | ")
}

func nonZero(v *float64) bool {
	return v != nil && *v != 0
}

// formatAmount groups thousands and keeps only the fractional digits that matter.
func formatAmount(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := strconv.FormatFloat(v, 'f', -1, 64)
	whole, frac, _ := strings.Cut(digits, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return sign + digits
	}
	out := amountPrinter.Sprintf("%d", n)
	if frac != "" {
		out += "." + frac
	}
	return sign + out
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

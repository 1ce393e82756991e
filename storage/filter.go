package storage

import (
	"strings"

	"travel-package-scraper/models"
)

// SearchFilter narrows the candidate set before ranking. Zero values mean
// "no constraint".
type SearchFilter struct {
	Destinations []string // any overlap, case-insensitive
	MinPrice     float64
	MaxPrice     float64
	MinDays      int
	MaxDays      int
	Limit        int
}

// defaultSearchLimit bounds how many candidates are handed to the ranker
const defaultSearchLimit = 100

// NewSearchFilter derives the candidate prefilter from an intent: price
// between 50% and 130% of budget, duration within the flexibility band.
func NewSearchFilter(intent models.Intent) SearchFilter {
	f := SearchFilter{Destinations: intent.Destinations, Limit: defaultSearchLimit}
	if intent.BudgetPerPerson > 0 {
		f.MinPrice = intent.BudgetPerPerson * 0.5
		f.MaxPrice = intent.BudgetPerPerson * 1.3
	}
	if intent.DurationDays > 0 {
		f.MinDays = max(1, intent.DurationDays-intent.DurationFlexibilityDays)
		f.MaxDays = intent.DurationDays + intent.DurationFlexibilityDays
	}
	return f
}

// Matches applies the filter to one package. Packages with unknown price or
// duration are kept so destination-only matches still reach the ranker.
func (f SearchFilter) Matches(p models.Package) bool {
	if !p.IsActive {
		return false
	}
	if p.PriceINR > 0 {
		if f.MinPrice > 0 && p.PriceINR < f.MinPrice {
			return false
		}
		if f.MaxPrice > 0 && p.PriceINR > f.MaxPrice {
			return false
		}
	}
	if p.DurationDays > 0 {
		if f.MinDays > 0 && p.DurationDays < f.MinDays {
			return false
		}
		if f.MaxDays > 0 && p.DurationDays > f.MaxDays {
			return false
		}
	}
	if len(f.Destinations) == 0 {
		return true
	}
	for _, want := range f.Destinations {
		for _, have := range p.Destinations {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

func (f SearchFilter) limit() int {
	if f.Limit <= 0 {
		return defaultSearchLimit
	}
	return f.Limit
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

package models

import "time"

// InsightReport summarizes a set of catalog packages
type InsightReport struct {
	TotalPackages         int
	PricedPackages        int
	AveragePrice          float64 // over priced packages only
	MinPrice              float64
	MaxPrice              float64
	MostExpensive         *Package
	PackagesByDestination map[string]int
	TopRated              []Package
}

// AgencyRunStat is the per-agency outcome of one ingestion run
type AgencyRunStat struct {
	Agency     AgencyRef
	Skipped    bool // still in cooldown, not scraped
	Success    bool
	Error      string
	Mode       string
	Tier       string
	Found      int // raw records extracted
	Normalized int
	Inserted   int
	Duplicates int
}

// RunSummary is the outcome of one ingestion run
type RunSummary struct {
	JobID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Agencies   []AgencyRunStat
}

// Totals sums the per-agency counters
func (r RunSummary) Totals() (found, normalized, inserted, failed int) {
	for _, a := range r.Agencies {
		if a.Skipped {
			continue
		}
		found += a.Found
		normalized += a.Normalized
		inserted += a.Inserted
		if !a.Success {
			failed++
		}
	}
	return found, normalized, inserted, failed
}

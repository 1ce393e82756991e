package models

import "time"

// DefaultFlexibilityDays is the +/- day tolerance applied when an intent does not set one
const DefaultFlexibilityDays = 2

// Tier modes reported on a ScrapeResult
const (
	ModeBrowser  = "browser"
	ModeRequests = "requests"
)

// RawListing represents one unprocessed record produced by a single extraction tier
type RawListing struct {
	Title         string
	PriceText     string  // e.g. "₹19,500 per person"
	PriceValue    float64 // set when the tier already produced a number
	DurationText  string  // e.g. "4N/5D"
	DurationValue int
	Destinations  []string
	Countries     []string
	URL           string // possibly relative
	Inclusions    []string
	Exclusions    []string
	Highlights    []string
	Rating        *float64
	ReviewsCount  int
	Confidence    *float64 // nil when the tier did not attach one
	ScrapedAt     time.Time
}

// Package represents a normalized, storable travel offer
type Package struct {
	ID                    int64
	AgencyID              int64
	Title                 string
	URL                   string
	PriceINR              float64
	DurationDays          int
	DurationNights        int
	Destinations          []string
	Countries             []string
	Inclusions            []string
	Exclusions            []string
	Highlights            []string
	Rating                *float64
	ReviewsCount          int
	SourceConfidenceScore float64
	IsActive              bool
	ScrapedAt             time.Time
}

// AgencyRef is the minimal agency reference consumed by normalization and ranking
type AgencyRef struct {
	ID         int64
	Name       string
	URL        string
	Country    string
	TrustScore float64
}

// ScrapeResult is the structured outcome of scraping one agency URL
type ScrapeResult struct {
	URL        string
	AgencyName string
	Success    bool
	Packages   []RawListing
	Error      string
	Mode       string // ModeBrowser or ModeRequests
	Tier       string // name of the extraction tier that produced Packages
	HTMLLength int
}

// Float returns a pointer to v, for optional fields
func Float(v float64) *float64 {
	return &v
}

// InsertStats counts the outcome of a dedup-aware bulk insert
type InsertStats struct {
	Inserted   int
	Duplicates int
	Failed     int
}

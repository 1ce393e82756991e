package services

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

const (
	minTitleLength    = 5
	maxTitleLength    = 200
	defaultConfidence = 0.5
	defaultCountry    = "India"
)

var (
	currencyRegex   = regexp.MustCompile(`(?i)₹|\$|\brs\.?|\binr\b|,`)
	numberRegex     = regexp.MustCompile(`\d+(?:\.\d+)?`)
	nightsDaysRegex = regexp.MustCompile(`(?i)(\d+)\s*n(?:ights?)?\s*/\s*(\d+)\s*d`)
	leadingIntRegex = regexp.MustCompile(`\d+`)
	spaceRegex      = regexp.MustCompile(`\s+`)
)

// Normalizer converts raw extracted listings into storable packages
type Normalizer struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger, now: time.Now}
}

// Normalize validates and coerces one raw listing. The only rejection is a
// title shorter than five characters; every other field falls back to a default.
func (n *Normalizer) Normalize(raw models.RawListing, agency models.AgencyRef) (models.Package, error) {
	title := spaceRegex.ReplaceAllString(strings.TrimSpace(raw.Title), " ")
	if utf8.RuneCountInString(title) < minTitleLength {
		return models.Package{}, models.NewError(models.KindValidation,
			fmt.Sprintf("title %q shorter than %d characters", title, minTitleLength), nil)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = strings.TrimSpace(string([]rune(title)[:maxTitleLength]))
	}

	days := raw.DurationValue
	if days <= 0 {
		days = parseDurationDays(raw.DurationText)
	}
	price := raw.PriceValue
	if price <= 0 {
		price = parsePrice(raw.PriceText)
	}

	destinations := cleanList(raw.Destinations)
	caser := cases.Title(language.Und)
	for i, d := range destinations {
		destinations[i] = caser.String(d)
	}
	countries := cleanList(raw.Countries)
	if len(countries) == 0 {
		country := strings.TrimSpace(agency.Country)
		if country == "" {
			country = defaultCountry
		}
		countries = []string{country}
	}

	p := models.Package{
		AgencyID:              agency.ID,
		Title:                 title,
		URL:                   cleanURL(raw.URL),
		PriceINR:              price,
		DurationDays:          days,
		DurationNights:        max(days-1, 0),
		Destinations:          destinations,
		Countries:             countries,
		Inclusions:            cleanList(raw.Inclusions),
		Exclusions:            cleanList(raw.Exclusions),
		Highlights:            cleanList(raw.Highlights),
		Rating:                cleanRating(raw.Rating),
		ReviewsCount:          max(raw.ReviewsCount, 0),
		SourceConfidenceScore: clampConfidence(raw.Confidence),
		IsActive:              true,
		ScrapedAt:             raw.ScrapedAt,
	}
	if p.ScrapedAt.IsZero() {
		p.ScrapedAt = n.now()
	}
	return p, nil
}

// NormalizeBatch normalizes raw, logging and skipping records that fail validation
func (n *Normalizer) NormalizeBatch(raw []models.RawListing, agency models.AgencyRef) []models.Package {
	out := make([]models.Package, 0, len(raw))
	for _, r := range raw {
		p, err := n.Normalize(r, agency)
		if err != nil {
			n.logger.Debug("Skipping listing from %s: %v", agency.Name, err)
			continue
		}
		out = append(out, p)
	}
	n.logger.Info("Normalized %d packages from %d raw records (%s)", len(out), len(raw), agency.Name)
	return out
}

// parsePrice strips currency markers and thousands separators and reads the
// first number, e.g. "₹19,500 per person" -> 19500
func parsePrice(raw string) float64 {
	cleaned := currencyRegex.ReplaceAllString(raw, "")
	m := numberRegex.FindString(cleaned)
	if m == "" {
		return 0
	}
	val, err := strconv.ParseFloat(m, 64)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

// parseDurationDays reads the day count from "4N/5D" style text, otherwise
// the leading integer, e.g. "5 days" -> 5
func parseDurationDays(raw string) int {
	if m := nightsDaysRegex.FindStringSubmatch(raw); m != nil {
		if d, err := strconv.Atoi(m[2]); err == nil {
			return d
		}
	}
	m := leadingIntRegex.FindString(raw)
	if m == "" {
		return 0
	}
	d, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return d
}

// cleanList trims entries and drops blanks and case-insensitive repeats,
// keeping first-seen order
func cleanList(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = spaceRegex.ReplaceAllString(strings.TrimSpace(v), " ")
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// cleanURL keeps only absolute http(s) URLs with a host
func cleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return raw
}

func cleanRating(r *float64) *float64 {
	if r == nil || *r < 0 || *r > 5 {
		return nil
	}
	return models.Float(*r)
}

func clampConfidence(c *float64) float64 {
	if c == nil || math.IsNaN(*c) {
		return defaultConfidence
	}
	return min(max(*c, 0), 1)
}

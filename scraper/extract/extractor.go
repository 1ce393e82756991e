// Package extract turns captured agency HTML into raw listing records. Each
// tier implements Extractor; the agency scraper runs them in order and keeps
// the first tier that yields at least one well-formed record.
package extract

import (
	"context"
	"strings"
	"time"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

// Tier confidence scores, highest fidelity first
const (
	ConfidenceRenderedStructured = 0.85
	ConfidenceStaticStructured   = 0.75
	ConfidenceHeuristic          = 0.55
	ConfidenceGlobalRegex        = 0.35
)

// maxListingsPerPage caps the fallback tiers
const maxListingsPerPage = 30

// Page is captured HTML plus where it came from
type Page struct {
	HTML     string
	URL      string
	Rendered bool // captured by the headless browser
}

// Extractor is one tier of the cascade
type Extractor interface {
	Name() string
	// Extract returns the tier's listings and the confidence it assigns them
	Extract(ctx context.Context, page Page) ([]models.RawListing, float64, error)
}

// DefaultCascade returns the tiers in fallback order. The structured tier is
// omitted when gen is nil.
func DefaultCascade(gen Generator, cfg StructuredConfig, logger *utils.Logger) []Extractor {
	var tiers []Extractor
	if gen != nil {
		tiers = append(tiers, NewStructuredExtractor(gen, cfg, logger))
	}
	return append(tiers, NewHeuristicExtractor(), NewRegexExtractor())
}

// WellFormed keeps listings that have a non-blank title
func WellFormed(listings []models.RawListing) []models.RawListing {
	out := listings[:0:0]
	for _, l := range listings {
		if strings.TrimSpace(l.Title) != "" {
			out = append(out, l)
		}
	}
	return out
}

func stamp(l *models.RawListing, confidence float64) {
	if l.Confidence == nil {
		l.Confidence = models.Float(confidence)
	}
	if l.ScrapedAt.IsZero() {
		l.ScrapedAt = time.Now().UTC()
	}
}

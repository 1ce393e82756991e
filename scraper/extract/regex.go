package extract

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"travel-package-scraper/models"
)

// titleRegex matches a run of capitalized words ending in a trip keyword,
// e.g. "Manali Kasol Backpacking Trip"
var titleRegex = regexp.MustCompile(`(?:[A-Z][A-Za-z'&]*\s+){1,6}(?i:tours?|trips?|packages?|treks?|holidays?|expeditions?|camps?|getaways?)\b`)

var durationTextRegex = regexp.MustCompile(`(?i)\d{1,2}\s*n\s*/\s*\d{1,2}\s*d\b|\d{1,2}\s*(?:days?|nights?)\b`)

// RegexExtractor is the last-resort tier: it flattens the page to text and
// pairs titles with prices and durations by position
type RegexExtractor struct{}

// NewRegexExtractor creates the global regex tier
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

func (e *RegexExtractor) Name() string { return "global_regex" }

func (e *RegexExtractor) Extract(_ context.Context, page Page) ([]models.RawListing, float64, error) {
	text := page.HTML
	if doc, err := html.Parse(strings.NewReader(page.HTML)); err == nil {
		text = nodeText(doc)
	}

	titles := titleRegex.FindAllString(text, -1)
	prices := priceRegex.FindAllStringSubmatch(text, -1)
	durations := durationTextRegex.FindAllString(text, -1)

	seen := make(map[string]bool)
	var listings []models.RawListing
	for i, raw := range titles {
		title := trimLeadingNoise(collapseSpace(raw))
		key := strings.ToLower(title)
		if len(title) < 6 || seen[key] {
			continue
		}
		seen[key] = true

		l := models.RawListing{
			Title:        title,
			Destinations: guessDestinations(title),
		}
		if i < len(prices) {
			l.PriceText = prices[i][1]
		}
		if i < len(durations) {
			l.DurationValue = findDuration(durations[i])
		}
		stamp(&l, ConfidenceGlobalRegex)
		listings = append(listings, l)

		if len(listings) >= maxListingsPerPage {
			break
		}
	}
	return listings, ConfidenceGlobalRegex, nil
}

// leadingNoise are capitalized words that end a price/duration run rather
// than start a title ("5 Days Goa Beach Holiday")
var leadingNoise = map[string]bool{"days": true, "day": true, "nights": true, "night": true, "rs": true, "inr": true, "only": true, "from": true}

func trimLeadingNoise(title string) string {
	words := strings.Fields(title)
	for len(words) > 1 && leadingNoise[strings.ToLower(strings.Trim(words[0], ".,"))] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

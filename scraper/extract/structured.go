package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

// Generator is the external structured-extraction service
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StructuredConfig bounds the structured-extraction tier
type StructuredConfig struct {
	HTMLBudget  int           // characters of HTML sent per request
	MaxAttempts int           // attempts on rate-limit errors
	BaseDelay   time.Duration // backoff base; delay = base * 2^retry
}

// DefaultStructuredConfig mirrors the production limits
func DefaultStructuredConfig() StructuredConfig {
	return StructuredConfig{HTMLBudget: 22000, MaxAttempts: 3, BaseDelay: 3 * time.Second}
}

const extractionPrompt = `You are a STRICT travel package extractor.

Return ONLY a valid JSON array. No markdown. No explanation.

Each object MUST contain:
- package_title: string
- price_in_inr: number (0 if unknown)
- duration_days: integer (0 if unknown)
- destinations: array of strings (empty if unknown)
- url: string (absolute if possible, empty if unknown)
Optional: inclusions, exclusions, highlights (arrays of strings), rating (0-5), reviews_count (integer).

Rules:
- Extract every package visible in the HTML.
- Ignore navigation links.
- Use the visible tour/package titles.

HTML:
`

// StructuredExtractor asks the external service for a JSON array of listings
type StructuredExtractor struct {
	gen    Generator
	cfg    StructuredConfig
	logger *utils.Logger
}

// NewStructuredExtractor creates the structured-extraction tier
func NewStructuredExtractor(gen Generator, cfg StructuredConfig, logger *utils.Logger) *StructuredExtractor {
	if cfg.HTMLBudget <= 0 {
		cfg.HTMLBudget = DefaultStructuredConfig().HTMLBudget
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &StructuredExtractor{gen: gen, cfg: cfg, logger: logger}
}

func (e *StructuredExtractor) Name() string { return "structured" }

// Extract retries only on rate-limit errors. Any other failure, including
// output that is not a JSON array, abandons the tier immediately.
func (e *StructuredExtractor) Extract(ctx context.Context, page Page) ([]models.RawListing, float64, error) {
	confidence := ConfidenceStaticStructured
	if page.Rendered {
		confidence = ConfidenceRenderedStructured
	}
	prompt := extractionPrompt + truncate(page.HTML, e.cfg.HTMLBudget)

	var text string
	policy := utils.RetryPolicy{
		MaxAttempts: e.cfg.MaxAttempts,
		BaseDelay:   e.cfg.BaseDelay,
		Retryable: func(err error) bool {
			return models.IsKind(err, models.KindRateLimit)
		},
	}
	err := utils.RetryWithBackoff(ctx, policy, func(int) error {
		out, err := e.gen.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, e.logger)
	if err != nil {
		return nil, confidence, fmt.Errorf("structured extraction: %w", err)
	}

	items, err := parseListingArray(text)
	if err != nil {
		return nil, confidence, err
	}

	listings := make([]models.RawListing, 0, len(items))
	for _, item := range items {
		l, ok := listingFromItem(item, page.URL)
		if !ok {
			continue
		}
		stamp(&l, confidence)
		listings = append(listings, l)
	}
	e.logger.Info("Structured extraction returned %d listings from %s", len(listings), page.URL)
	return listings, confidence, nil
}

// parseListingArray decodes model output, tolerating code fences around it
func parseListingArray(text string) ([]map[string]interface{}, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, models.NewError(models.KindMalformedOutput, "extraction output is not JSON", err)
	}
	arr, ok := raw.([]interface{})
	if !ok {
		return nil, models.NewError(models.KindMalformedOutput, "extraction output is not a JSON array", nil)
	}

	items := make([]map[string]interface{}, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]interface{}); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

func listingFromItem(item map[string]interface{}, pageURL string) (models.RawListing, bool) {
	title := firstString(item, "package_title", "title", "name")
	if strings.TrimSpace(title) == "" {
		return models.RawListing{}, false
	}

	l := models.RawListing{
		Title:        title,
		Destinations: stringList(item["destinations"]),
		Countries:    stringList(item["countries"]),
		Inclusions:   stringList(item["inclusions"]),
		Exclusions:   stringList(item["exclusions"]),
		Highlights:   stringList(item["highlights"]),
		ReviewsCount: int(number(item["reviews_count"])),
	}

	switch v := firstValue(item, "price_in_inr", "price").(type) {
	case float64:
		l.PriceValue = v
	case string:
		l.PriceText = v
	}
	switch v := firstValue(item, "duration_days", "days", "duration").(type) {
	case float64:
		l.DurationValue = int(v)
	case string:
		l.DurationText = v
	}

	if href := firstString(item, "url", "link"); href != "" {
		l.URL = resolveURL(pageURL, href)
	}
	if r, ok := item["rating"].(float64); ok && r > 0 {
		l.Rating = models.Float(r)
	}
	if c, ok := item["source_confidence_score"].(float64); ok {
		l.Confidence = models.Float(c)
	}
	return l, true
}

func firstValue(item map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(item map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := item[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// stringList coerces any non-list value to an empty list
func stringList(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		switch s := e.(type) {
		case string:
			out = append(out, s)
		case float64:
			out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
		}
	}
	return out
}

func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(strings.ReplaceAll(n, ",", ""), 64)
		return f
	}
	return 0
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

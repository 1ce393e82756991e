package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

const cardsHTML = `<html><body>
<nav><a href="/contact">Contact Us</a><a href="/about">About our company</a></nav>
<div class="card package-card">
  <a href="/tours/manali-kasol"><h3>Manali Kasol Backpacking Trip</h3></a>
  <span class="price">Starting ₹12,999 per person</span>
  <span>4N/5D</span>
</div>
<div class="card package-card">
  <h3>Goa Beach Holiday</h3>
  <p>INR 9,499 | 3 Days</p>
  <a href="https://other.example.com/goa">Details</a>
</div>
<div class="card package-card">
  <h3>Goa Beach Holiday</h3>
  <p>duplicate card</p>
</div>
<div class="card"><h3>Newsletter signup</h3></div>
<script>var x = "<div class='tour'><h3>Fake Tour</h3></div>";</script>
</body></html>`

func TestHeuristicExtractor_Cards(t *testing.T) {
	listings, conf, err := NewHeuristicExtractor().Extract(context.Background(), Page{HTML: cardsHTML, URL: "https://agency.example.com/packages"})
	require.NoError(t, err)
	assert.Equal(t, ConfidenceHeuristic, conf)
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, "Manali Kasol Backpacking Trip", first.Title)
	assert.Equal(t, "12,999", first.PriceText)
	assert.Equal(t, 5, first.DurationValue)
	assert.Equal(t, "https://agency.example.com/tours/manali-kasol", first.URL)
	assert.Equal(t, []string{"Manali", "Kasol"}, first.Destinations)
	require.NotNil(t, first.Confidence)
	assert.Equal(t, ConfidenceHeuristic, *first.Confidence)

	second := listings[1]
	assert.Equal(t, "Goa Beach Holiday", second.Title)
	assert.Equal(t, "9,499", second.PriceText)
	assert.Equal(t, 3, second.DurationValue)
	assert.Equal(t, "https://other.example.com/goa", second.URL)
}

func TestHeuristicExtractor_NestedContainersKeepOwnFields(t *testing.T) {
	page := Page{
		HTML: `<html><body>
<ul class="nav"><li class="menu-item"><a href="/holiday-packages">Holiday Packages</a></li></ul>
<section class="tour">
  <div class="tour-list">
    <div class="card"><h3>Manali Snow Trip</h3><a href="/manali-snow">View</a></div>
    <div class="card"><h3>Goa Beach Holiday</h3><p>₹8,000 | 3 Days</p></div>
  </div>
</section>
</body></html>`,
		URL: "https://agency.example.com/",
	}
	listings, _, err := NewHeuristicExtractor().Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "Manali Snow Trip", listings[0].Title)
	assert.Empty(t, listings[0].PriceText)
	assert.Zero(t, listings[0].DurationValue)
	assert.Equal(t, "https://agency.example.com/manali-snow", listings[0].URL)

	assert.Equal(t, "Goa Beach Holiday", listings[1].Title)
	assert.Equal(t, "8,000", listings[1].PriceText)
	assert.Equal(t, 3, listings[1].DurationValue)
}

func TestHasListingClass_WholeTokensOnly(t *testing.T) {
	tests := map[string]bool{
		"card":             true,
		"promo tour":       true,
		"Package featured": true,
		"menu-item":        false,
		"tour-list":        false,
		"packages-grid":    false,
		"cards":            false,
	}
	for class, want := range tests {
		n := &html.Node{Type: html.ElementNode, Data: "div", Attr: []html.Attribute{{Key: "class", Val: class}}}
		assert.Equal(t, want, hasListingClass(n), class)
	}
}

func TestHeuristicExtractor_FallsBackToAnchors(t *testing.T) {
	page := Page{
		HTML: `<ul><li><a href="spiti-trek.html">Spiti Valley Trek 7 Days</a></li>
<li><a href="#">Home</a></li><li><a href="/blog">Read our blog</a></li></ul>`,
		URL: "https://agency.example.com/treks/",
	}
	listings, _, err := NewHeuristicExtractor().Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Spiti Valley Trek 7 Days", listings[0].Title)
	assert.Equal(t, 7, listings[0].DurationValue)
	assert.Equal(t, "https://agency.example.com/treks/spiti-trek.html", listings[0].URL)
}

func TestRegexExtractor_PairsByPosition(t *testing.T) {
	page := Page{HTML: `<div><p>Manali Kasol Trip</p><p>₹ 12,999</p><p>5 Days</p>
<p>Goa Beach Holiday</p><p>Rs. 8,500</p><p>4 Days</p></div>`}
	listings, conf, err := NewRegexExtractor().Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceGlobalRegex, conf)
	require.Len(t, listings, 2)
	assert.Equal(t, "Manali Kasol Trip", listings[0].Title)
	assert.Equal(t, "12,999", listings[0].PriceText)
	assert.Equal(t, 5, listings[0].DurationValue)
	assert.Equal(t, "Goa Beach Holiday", listings[1].Title)
	assert.Equal(t, "8,500", listings[1].PriceText)
	assert.Equal(t, 4, listings[1].DurationValue)
}

func TestTierConfidenceOrdering(t *testing.T) {
	assert.Greater(t, ConfidenceRenderedStructured, ConfidenceStaticStructured)
	assert.Greater(t, ConfidenceStaticStructured, ConfidenceHeuristic)
	assert.Greater(t, ConfidenceHeuristic, ConfidenceGlobalRegex)
}

func TestFindDuration(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"4N/5D", 5},
		{"4 N / 5 D", 5},
		{"7 Days", 7},
		{"1 day trip", 1},
		{"3 Nights", 4},
		{"call us", 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, findDuration(tt.text))
		})
	}
}

type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "[]", nil
}

func rateLimited() error {
	return models.NewError(models.KindRateLimit, "quota", errors.New("429"))
}

func testStructuredConfig() StructuredConfig {
	return StructuredConfig{HTMLBudget: 1000, MaxAttempts: 3, BaseDelay: time.Millisecond}
}

const structuredJSON = "```json\n" + `[
 {"package_title": "Manali Kasol Trip", "price_in_inr": 19500, "duration_days": 5,
  "destinations": ["Manali", "Kasol"], "url": "/p/manali-kasol", "inclusions": ["Hotel", "Meals"], "rating": 4.6},
 {"title": "Jaipur Heritage Tour", "price": "₹14,000", "days": "3 days", "destinations": "Jaipur"},
 {"price_in_inr": 5000},
 "not an object"
]` + "\n```"

func TestStructuredExtractor_RetriesRateLimitThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{
		errs:      []error{rateLimited(), rateLimited(), nil},
		responses: []string{"", "", structuredJSON},
	}
	ex := NewStructuredExtractor(gen, testStructuredConfig(), utils.NopLogger())

	listings, conf, err := ex.Extract(context.Background(), Page{HTML: "<html></html>", URL: "https://agency.example.com/", Rendered: true})
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, ConfidenceRenderedStructured, conf)
	require.Len(t, listings, 2)

	assert.Equal(t, "Manali Kasol Trip", listings[0].Title)
	assert.Equal(t, 19500.0, listings[0].PriceValue)
	assert.Equal(t, 5, listings[0].DurationValue)
	assert.Equal(t, "https://agency.example.com/p/manali-kasol", listings[0].URL)
	require.NotNil(t, listings[0].Rating)
	assert.Equal(t, 4.6, *listings[0].Rating)

	assert.Equal(t, "Jaipur Heritage Tour", listings[1].Title)
	assert.Equal(t, "₹14,000", listings[1].PriceText)
	assert.Equal(t, "3 days", listings[1].DurationText)
	assert.Empty(t, listings[1].Destinations)
	assert.Empty(t, listings[1].URL)
}

func TestStructuredExtractor_GivesUpAfterRateLimitCeiling(t *testing.T) {
	gen := &fakeGenerator{errs: []error{rateLimited(), rateLimited(), rateLimited(), nil}}
	ex := NewStructuredExtractor(gen, testStructuredConfig(), utils.NopLogger())

	_, _, err := ex.Extract(context.Background(), Page{HTML: "<html></html>"})
	require.Error(t, err)
	assert.Equal(t, 3, gen.calls)
	assert.True(t, models.IsKind(err, models.KindRateLimit))
}

func TestStructuredExtractor_NoRetryOnOtherErrors(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("invalid argument")}}
	ex := NewStructuredExtractor(gen, testStructuredConfig(), utils.NopLogger())

	_, _, err := ex.Extract(context.Background(), Page{HTML: "<html></html>"})
	require.Error(t, err)
	assert.Equal(t, 1, gen.calls)
}

func TestStructuredExtractor_MalformedOutput(t *testing.T) {
	for _, out := range []string{"Sure! Here are the packages", `{"package_title": "Not an array"}`} {
		gen := &fakeGenerator{responses: []string{out}}
		ex := NewStructuredExtractor(gen, testStructuredConfig(), utils.NopLogger())

		_, _, err := ex.Extract(context.Background(), Page{HTML: "<html></html>"})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.KindMalformedOutput))
		assert.Equal(t, 1, gen.calls)
	}
}

func TestTruncate_RespectsRuneBoundary(t *testing.T) {
	s := "ab₹cd" // ₹ is 3 bytes at offset 2
	assert.Equal(t, "ab", truncate(s, 3))
	assert.Equal(t, "ab₹", truncate(s, 5))
	assert.Equal(t, s, truncate(s, 100))
}

func TestWellFormed(t *testing.T) {
	in := []models.RawListing{{Title: "  "}, {Title: "Goa Trip"}, {}}
	out := WellFormed(in)
	require.Len(t, out, 1)
	assert.Equal(t, "Goa Trip", out[0].Title)
}

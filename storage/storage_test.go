package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

func pkg(title, url string, days int, price float64, dests ...string) models.Package {
	return models.Package{
		Title:        title,
		URL:          url,
		DurationDays: days,
		PriceINR:     price,
		Destinations: dests,
		IsActive:     true,
	}
}

func newStore() *MemoryStore {
	return NewMemoryStore(utils.NopLogger(),
		models.AgencyRef{ID: 1, Name: "Himalayan Hikers", URL: "https://hikers.example.com"},
		models.AgencyRef{ID: 2, Name: "Coastal Trails", URL: "https://coastal.example.com"},
	)
}

func TestBulkInsert_SameURLIsDuplicate(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	stats, err := s.BulkInsert(ctx, 1, []models.Package{
		pkg("Manali Kasol Backpacking Trip", "https://hikers.example.com/manali", 5, 19500),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	stats, err = s.BulkInsert(ctx, 1, []models.Package{
		pkg("Manali Kasol Trip (Updated)", "https://hikers.example.com/manali", 6, 21000),
	})
	require.NoError(t, err)
	assert.Equal(t, models.InsertStats{Duplicates: 1}, stats)
}

func TestBulkInsert_SameTitleAndDurationWithoutURL(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	stats, err := s.BulkInsert(ctx, 1, []models.Package{
		pkg("Spiti Valley Road Trip", "", 7, 24000),
		pkg("Spiti Valley Road Trip", "", 7, 23000),
		pkg("Spiti Valley Road Trip", "", 8, 26000),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestBulkInsert_ShortURLFallsBackToTitleKey(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	stats, err := s.BulkInsert(ctx, 1, []models.Package{
		pkg("Goa Beach Holiday", "http://a.b", 4, 15000),
		pkg("Kerala Backwaters Tour", "http://a.b", 4, 18000),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted, "URLs of 10 chars or less must not dedup on their own")
}

func TestBulkInsert_DedupIsScopedToAgency(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	p := pkg("Manali Kasol Backpacking Trip", "https://shared.example.com/manali", 5, 19500)

	_, err := s.BulkInsert(ctx, 1, []models.Package{p})
	require.NoError(t, err)
	stats, err := s.BulkInsert(ctx, 2, []models.Package{p})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
}

func TestBulkInsert_BadRecordDoesNotAbortBatch(t *testing.T) {
	s := newStore()
	stats, err := s.BulkInsert(context.Background(), 1, []models.Package{
		pkg("Ladakh Bike Expedition", "https://hikers.example.com/ladakh", 9, 45000),
		pkg("  ", "", 0, 0),
		pkg("Rishikesh Rafting Camp", "https://hikers.example.com/rafting", 3, 6500),
	})
	require.NoError(t, err)
	assert.Equal(t, models.InsertStats{Inserted: 2, Failed: 1}, stats)
}

func TestNewSearchFilter_Bands(t *testing.T) {
	intent := models.NewIntent([]string{"Manali"},
		models.WithDuration(5), models.WithFlexibility(2), models.WithBudget(20000))

	f := NewSearchFilter(intent)
	assert.Equal(t, 10000.0, f.MinPrice)
	assert.Equal(t, 26000.0, f.MaxPrice)
	assert.Equal(t, 3, f.MinDays)
	assert.Equal(t, 7, f.MaxDays)
	assert.Equal(t, defaultSearchLimit, f.Limit)

	short := NewSearchFilter(models.NewIntent(nil, models.WithDuration(2), models.WithFlexibility(3)))
	assert.Equal(t, 1, short.MinDays)
}

func TestSearch_FiltersAndOrders(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	_, err := s.BulkInsert(ctx, 1, []models.Package{
		pkg("Manali Kasol Backpacking Trip", "https://hikers.example.com/a", 5, 19500, "Manali", "Kasol"),
		pkg("Manali Luxury Escape Package", "https://hikers.example.com/b", 5, 60000, "Manali"),
		pkg("Manali Weekend Getaway Trip", "https://hikers.example.com/c", 2, 8000, "Manali"),
		pkg("Goa Beach Holiday Package", "https://hikers.example.com/d", 5, 15000, "Goa"),
		pkg("Manali Snow Adventure Tour", "https://hikers.example.com/e", 0, 0, "manali"),
	})
	require.NoError(t, err)

	intent := models.NewIntent([]string{"Manali"},
		models.WithDuration(5), models.WithFlexibility(2), models.WithBudget(20000))
	got, err := s.Search(ctx, NewSearchFilter(intent))
	require.NoError(t, err)

	var titles []string
	for _, p := range got {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"Manali Snow Adventure Tour", "Manali Kasol Backpacking Trip"}, titles)
}

func TestSearch_SkipsInactive(t *testing.T) {
	s := newStore()
	p := pkg("Manali Kasol Backpacking Trip", "https://hikers.example.com/a", 5, 19500, "Manali")
	p.IsActive = false
	_, err := s.BulkInsert(context.Background(), 1, []models.Package{p})
	require.NoError(t, err)

	got, err := s.Search(context.Background(), SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordScrape(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	require.NoError(t, s.RecordScrape(ctx, 1, true, 4))
	require.NoError(t, s.RecordScrape(ctx, 1, false, 0))
	assert.Error(t, s.RecordScrape(ctx, 99, true, 1))

	st, ok := s.Status(1)
	require.True(t, ok)
	assert.Equal(t, 1, st.SuccessCount)
	assert.Equal(t, 1, st.FailureCount)
	assert.Equal(t, 0, st.LastPackagesFound)
}

func TestCSVWriter_AppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "raw.csv")
	w := NewCSVWriter(path, utils.NopLogger())

	res := models.ScrapeResult{
		URL:        "https://hikers.example.com",
		AgencyName: "Himalayan Hikers",
		Tier:       "heuristic_dom",
		Packages: []models.RawListing{{
			Title:        "Manali Kasol Backpacking Trip",
			PriceText:    "₹19,500",
			DurationText: "4N/5D",
			Destinations: []string{"Manali", "Kasol"},
			Confidence:   models.Float(0.55),
			ScrapedAt:    time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		}},
	}
	require.NoError(t, w.WriteResult(res))
	require.NoError(t, w.WriteResult(res))
	require.NoError(t, w.WriteResult(models.ScrapeResult{}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "Manali|Kasol", rows[1][6])
	assert.Equal(t, "0.55", rows[1][8])
	assert.Equal(t, "2026-05-01T10:00:00Z", rows[2][9])
}

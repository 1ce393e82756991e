package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

// isDockerAvailable reports whether a docker daemon answers within a few seconds
func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}

func skipWithoutDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}
	if !isDockerAvailable() {
		t.Skip("Docker is not available")
	}
}

// startPostgres runs a throwaway postgres, creates the schema and registers
// one agency. The container is terminated when the test ends.
func startPostgres(t *testing.T) (*PostgresStore, models.AgencyRef) {
	t.Helper()
	skipWithoutDocker(t)
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("travel_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "Failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgresStore(ctx, connStr, utils.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.CreateSchema(ctx))
	agency, err := store.UpsertAgency(ctx, models.AgencyRef{
		Name:       "Himalayan Hikers",
		URL:        "https://hikers.example.com",
		Country:    "India",
		TrustScore: 0.8,
	})
	require.NoError(t, err)
	require.NotZero(t, agency.ID)
	return store, agency
}

func TestPostgresStore_BulkInsertDedup(t *testing.T) {
	store, agency := startPostgres(t)
	ctx := context.Background()

	first := []models.Package{
		pkg("Manali Escape", "https://hikers.example.com/manali", 5, 18000, "Manali"),
		pkg("Goa Beach Break", "", 3, 9000, "Goa"),
	}
	stats, err := store.BulkInsert(ctx, agency.ID, first)
	require.NoError(t, err)
	assert.Equal(t, models.InsertStats{Inserted: 2}, stats)

	second := []models.Package{
		// same URL, different title
		pkg("Manali Escape Deluxe", "https://hikers.example.com/manali", 6, 24000, "Manali"),
		// same title and duration, no URL
		pkg("Goa Beach Break", "", 3, 9500, "Goa"),
		// same title, different duration
		pkg("Goa Beach Break", "", 4, 11000, "Goa"),
	}
	stats, err = store.BulkInsert(ctx, agency.ID, second)
	require.NoError(t, err)
	assert.Equal(t, models.InsertStats{Inserted: 1, Duplicates: 2}, stats)

	all, err := store.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPostgresStore_BulkInsertFailingRecordMidBatch(t *testing.T) {
	store, agency := startPostgres(t)
	ctx := context.Background()

	batch := []models.Package{
		pkg("Kerala Backwaters", "https://hikers.example.com/kerala", 4, 15000, "Kerala"),
		// postgres rejects NUL bytes in text columns
		pkg("Broken\x00Tour", "https://hikers.example.com/broken", 2, 5000, "Nowhere"),
		pkg("Ladakh Ride", "https://hikers.example.com/ladakh", 7, 32000, "Ladakh"),
	}
	stats, err := store.BulkInsert(ctx, agency.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, models.InsertStats{Inserted: 2, Failed: 1}, stats)

	all, err := store.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	titles := make([]string, 0, len(all))
	for _, p := range all {
		titles = append(titles, p.Title)
	}
	assert.ElementsMatch(t, []string{"Kerala Backwaters", "Ladakh Ride"}, titles)
}

func TestPostgresStore_ConcurrentBulkInsertKeepsOneRow(t *testing.T) {
	store, agency := startPostgres(t)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total models.InsertStats
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := store.BulkInsert(ctx, agency.ID, []models.Package{
				pkg("Rishikesh Rafting", "https://hikers.example.com/rafting", 2, 6000, "Rishikesh"),
			})
			assert.NoError(t, err)
			mu.Lock()
			total.Inserted += stats.Inserted
			total.Duplicates += stats.Duplicates
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total.Inserted)
	assert.Equal(t, 3, total.Duplicates)

	all, err := store.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPostgresStore_SearchPrefilter(t *testing.T) {
	store, agency := startPostgres(t)
	ctx := context.Background()

	rating := models.Float(4.6)
	inRange := pkg("Manali Escape", "https://hikers.example.com/manali", 5, 18000, "Manali", "Solang")
	inRange.Countries = []string{"India"}
	inRange.Inclusions = []string{"Hotel", "Breakfast"}
	inRange.Rating = rating
	inRange.ReviewsCount = 120
	inRange.SourceConfidenceScore = 0.9
	inRange.ScrapedAt = time.Now().UTC()

	inactive := pkg("Manali Closed", "https://hikers.example.com/closed", 5, 17000, "Manali")
	inactive.IsActive = false

	batch := []models.Package{
		inRange,
		pkg("Manali Unknown Price", "https://hikers.example.com/unknown-price", 5, 0, "manali"),
		pkg("Manali Open Dates", "https://hikers.example.com/open-dates", 0, 20000, "MANALI"),
		pkg("Manali Luxury", "https://hikers.example.com/luxury", 5, 90000, "Manali"),
		pkg("Manali Marathon", "https://hikers.example.com/marathon", 15, 19000, "Manali"),
		pkg("Goa Beach Break", "https://hikers.example.com/goa", 5, 18000, "Goa"),
		inactive,
	}
	stats, err := store.BulkInsert(ctx, agency.ID, batch)
	require.NoError(t, err)
	require.Equal(t, len(batch), stats.Inserted)

	filter := NewSearchFilter(models.Intent{
		Destinations:            []string{"Manali"},
		BudgetPerPerson:         20000,
		DurationDays:            5,
		DurationFlexibilityDays: 1,
	})
	got, err := store.Search(ctx, filter)
	require.NoError(t, err)

	titles := make([]string, 0, len(got))
	for _, p := range got {
		titles = append(titles, p.Title)
	}
	// cheapest first; unknown price sorts as zero
	assert.Equal(t, []string{"Manali Unknown Price", "Manali Escape", "Manali Open Dates"}, titles)

	escape := got[1]
	assert.Equal(t, agency.ID, escape.AgencyID)
	assert.Equal(t, []string{"Manali", "Solang"}, escape.Destinations)
	assert.Equal(t, []string{"India"}, escape.Countries)
	assert.Equal(t, []string{"Hotel", "Breakfast"}, escape.Inclusions)
	assert.Empty(t, escape.Exclusions)
	require.NotNil(t, escape.Rating)
	assert.InDelta(t, 4.6, *escape.Rating, 0.001)
	assert.Equal(t, 120, escape.ReviewsCount)
	assert.InDelta(t, 0.9, escape.SourceConfidenceScore, 0.001)

	// every row the database returns also passes the in-memory filter
	for _, p := range got {
		assert.True(t, filter.Matches(p), p.Title)
	}
}

func TestPostgresStore_AgenciesAndRecordScrape(t *testing.T) {
	store, first := startPostgres(t)
	ctx := context.Background()

	second, err := store.UpsertAgency(ctx, models.AgencyRef{
		Name: "Coastal Trails", URL: "https://coastal.example.com", Country: "India", TrustScore: 0.6,
	})
	require.NoError(t, err)

	again, err := store.UpsertAgency(ctx, models.AgencyRef{
		Name: "Himalayan Hikers Ltd", URL: "https://hikers.example.com", Country: "India", TrustScore: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.InDelta(t, 0.8, again.TrustScore, 0.001, "upsert keeps the stored trust score")

	require.NoError(t, store.RecordScrape(ctx, first.ID, true, 4))

	agencies, err := store.Agencies(ctx)
	require.NoError(t, err)
	require.Len(t, agencies, 2)
	// never-scraped agencies come first
	assert.Equal(t, second.ID, agencies[0].ID)
	assert.Equal(t, first.ID, agencies[1].ID)
	assert.Equal(t, "Himalayan Hikers Ltd", agencies[1].Name)
}

func TestRedisCooldownTracker_Claim(t *testing.T) {
	skipWithoutDocker(t)
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "Failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	tracker, err := NewRedisCooldownTracker(ctx, addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })

	ok, err := tracker.Claim(ctx, "https://hikers.example.com")
	require.NoError(t, err)
	assert.True(t, ok, "first claim wins")

	ok, err = tracker.Claim(ctx, "HTTPS://Hikers.Example.com/")
	require.NoError(t, err)
	assert.False(t, ok, "same agency in cooldown regardless of case or trailing slash")

	ok, err = tracker.Claim(ctx, "https://coastal.example.com")
	require.NoError(t, err)
	assert.True(t, ok, "other agencies are independent")

	assert.Eventually(t, func() bool {
		ok, err := tracker.Claim(ctx, "https://hikers.example.com")
		return err == nil && ok
	}, 5*time.Second, 200*time.Millisecond, "claim is available again after the ttl")
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"travel-package-scraper/models"
	"travel-package-scraper/scraper/agency"
	"travel-package-scraper/storage"
	"travel-package-scraper/utils"
)

// AgencyScraper scrapes a set of agencies in bounded batches
type AgencyScraper interface {
	ScrapeMany(ctx context.Context, agencies []models.AgencyRef, opts agency.BatchOptions) []models.ScrapeResult
}

// IngestionService runs one scrape -> normalize -> dedup-insert pass
type IngestionService struct {
	scraper    AgencyScraper
	normalizer *Normalizer
	store      storage.PackageStore
	cooldown   storage.CooldownTracker // nil disables the cooldown
	rawDump    *storage.CSVWriter      // nil disables the CSV dump
	batch      agency.BatchOptions
	logger     *utils.Logger
}

// IngestionOption configures an IngestionService
type IngestionOption func(*IngestionService)

// WithCooldown skips agencies scraped within the tracker's window
func WithCooldown(t storage.CooldownTracker) IngestionOption {
	return func(s *IngestionService) { s.cooldown = t }
}

// WithRawDump appends every raw extracted record to a CSV file
func WithRawDump(w *storage.CSVWriter) IngestionOption {
	return func(s *IngestionService) { s.rawDump = w }
}

// NewIngestionService creates an IngestionService
func NewIngestionService(sc AgencyScraper, store storage.PackageStore, batch agency.BatchOptions, logger *utils.Logger, opts ...IngestionOption) *IngestionService {
	s := &IngestionService{
		scraper:    sc,
		normalizer: NewNormalizer(logger),
		store:      store,
		batch:      batch,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scrapes up to maxAgencies agencies that are out of cooldown, then
// normalizes and stores what each one yielded. A failing agency never stops
// the run; only a storage failure or cancellation returns an error.
func (s *IngestionService) Run(ctx context.Context, agencies []models.AgencyRef, maxAgencies int) (*models.RunSummary, error) {
	summary := &models.RunSummary{JobID: uuid.NewString(), StartedAt: time.Now()}
	log := s.logger.With("job_id", summary.JobID)

	var selected []models.AgencyRef
	for _, a := range agencies {
		if maxAgencies > 0 && len(selected) >= maxAgencies {
			break
		}
		if s.cooldown != nil {
			ok, err := s.cooldown.Claim(ctx, a.URL)
			if err != nil {
				log.Warn("Cooldown check failed for %s, scraping anyway: %v", a.URL, err)
			} else if !ok {
				log.Info("Skipping %s: scraped recently", a.Name)
				summary.Agencies = append(summary.Agencies, models.AgencyRunStat{Agency: a, Skipped: true})
				continue
			}
		}
		selected = append(selected, a)
	}

	log.Info("Scraping %d agencies (concurrency %d)", len(selected), s.batch.Concurrency)
	results := s.scraper.ScrapeMany(ctx, selected, s.batch)

	for i, res := range results {
		stat, err := s.ingestResult(ctx, selected[i], res, log)
		summary.Agencies = append(summary.Agencies, stat)
		if err != nil {
			summary.FinishedAt = time.Now()
			return summary, err
		}
	}

	summary.FinishedAt = time.Now()
	found, normalized, inserted, failed := summary.Totals()
	log.Info("Run complete: %d raw, %d normalized, %d stored, %d agencies failed", found, normalized, inserted, failed)
	return summary, nil
}

func (s *IngestionService) ingestResult(ctx context.Context, a models.AgencyRef, res models.ScrapeResult, log *utils.Logger) (models.AgencyRunStat, error) {
	stat := models.AgencyRunStat{
		Agency:  a,
		Success: res.Success && len(res.Packages) > 0,
		Error:   res.Error,
		Mode:    res.Mode,
		Tier:    res.Tier,
		Found:   len(res.Packages),
	}
	if res.Success && len(res.Packages) == 0 {
		stat.Error = "no packages extracted"
	}

	if s.rawDump != nil {
		if err := s.rawDump.WriteResult(res); err != nil {
			log.Error("Failed to write CSV: %v", err)
		}
	}

	if stat.Success {
		pkgs := s.normalizer.NormalizeBatch(res.Packages, a)
		stat.Normalized = len(pkgs)
		ins, err := s.store.BulkInsert(ctx, a.ID, pkgs)
		if err != nil {
			return stat, fmt.Errorf("storing packages for %s: %w", a.Name, err)
		}
		stat.Inserted = ins.Inserted
		stat.Duplicates = ins.Duplicates
	} else {
		log.Warn("Agency %s yielded nothing: %s", a.Name, stat.Error)
	}

	if err := s.store.RecordScrape(ctx, a.ID, stat.Success, stat.Found); err != nil {
		log.Warn("Failed to record scrape status for %s: %v", a.Name, err)
	}
	return stat, nil
}

// CandidateService loads candidates for an intent and ranks them
type CandidateService struct {
	store  storage.PackageStore
	ranker *Ranker
	logger *utils.Logger
}

// NewCandidateService creates a CandidateService
func NewCandidateService(store storage.PackageStore, ranker *Ranker, logger *utils.Logger) *CandidateService {
	return &CandidateService{store: store, ranker: ranker, logger: logger}
}

// Match prefilters stored packages for intent and ranks the survivors.
// It also returns the candidate set for reporting.
func (c *CandidateService) Match(ctx context.Context, intent models.Intent, maxResults int) (models.RankResult, []models.Package, error) {
	candidates, err := c.store.Search(ctx, storage.NewSearchFilter(intent))
	if err != nil {
		return models.RankResult{}, nil, err
	}
	agencies, err := c.store.Agencies(ctx)
	if err != nil {
		return models.RankResult{}, nil, err
	}
	byID := make(map[int64]models.AgencyRef, len(agencies))
	for _, a := range agencies {
		byID[a.ID] = a
	}
	c.logger.Debug("Prefilter kept %d candidates", len(candidates))
	return c.ranker.Rank(intent, candidates, byID, maxResults), candidates, nil
}

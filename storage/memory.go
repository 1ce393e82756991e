package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

// AgencyStatus is the scrape bookkeeping kept per agency
type AgencyStatus struct {
	LastScrapedAt     time.Time
	SuccessCount      int
	FailureCount      int
	LastPackagesFound int
}

// MemoryStore is an in-process PackageStore, used when no DATABASE_URL is set
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	agencies []models.AgencyRef
	status   map[int64]*AgencyStatus
	packages map[int64][]models.Package
	logger   *utils.Logger
}

// NewMemoryStore creates a MemoryStore seeded with agencies
func NewMemoryStore(logger *utils.Logger, agencies ...models.AgencyRef) *MemoryStore {
	return &MemoryStore{
		agencies: agencies,
		status:   make(map[int64]*AgencyStatus),
		packages: make(map[int64][]models.Package),
		logger:   logger,
	}
}

// BulkInsert stores pkgs for agencyID, skipping duplicates against both
// stored packages and earlier records of the same batch
func (s *MemoryStore) BulkInsert(ctx context.Context, agencyID int64, pkgs []models.Package) (models.InsertStats, error) {
	var stats models.InsertStats
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range pkgs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if strings.TrimSpace(p.Title) == "" {
			s.logger.Warn("Skipping insert for package without title (agency %d)", agencyID)
			stats.Failed++
			continue
		}
		if isDuplicate(s.packages[agencyID], p) {
			stats.Duplicates++
			continue
		}
		s.nextID++
		p.ID = s.nextID
		p.AgencyID = agencyID
		s.packages[agencyID] = append(s.packages[agencyID], p)
		stats.Inserted++
	}

	s.logger.Info("Inserted %d/%d packages for agency %d (%d duplicates)", stats.Inserted, len(pkgs), agencyID, stats.Duplicates)
	return stats, nil
}

// Search returns active packages matching filter, cheapest first
func (s *MemoryStore) Search(ctx context.Context, filter SearchFilter) ([]models.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Package
	for _, pkgs := range s.packages {
		for _, p := range pkgs {
			if filter.Matches(p) {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriceINR != out[j].PriceINR {
			return out[i].PriceINR < out[j].PriceINR
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

// Agencies returns the seeded agencies
func (s *MemoryStore) Agencies(ctx context.Context) ([]models.AgencyRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AgencyRef(nil), s.agencies...), nil
}

// RecordScrape updates scrape counters for agencyID
func (s *MemoryStore) RecordScrape(_ context.Context, agencyID int64, success bool, packagesFound int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.known(agencyID) {
		return errors.New("unknown agency")
	}
	st, ok := s.status[agencyID]
	if !ok {
		st = &AgencyStatus{}
		s.status[agencyID] = st
	}
	st.LastScrapedAt = time.Now()
	st.LastPackagesFound = packagesFound
	if success {
		st.SuccessCount++
	} else {
		st.FailureCount++
	}
	return nil
}

// Status returns a copy of the scrape bookkeeping for agencyID
func (s *MemoryStore) Status(agencyID int64) (AgencyStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[agencyID]
	if !ok {
		return AgencyStatus{}, false
	}
	return *st, true
}

func (s *MemoryStore) known(agencyID int64) bool {
	for _, a := range s.agencies {
		if a.ID == agencyID {
			return true
		}
	}
	return false
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

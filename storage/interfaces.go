package storage

import (
	"context"

	"travel-package-scraper/models"
)

// PackageStore persists normalized packages and agency scrape bookkeeping
type PackageStore interface {
	// BulkInsert stores pkgs for one agency, skipping duplicates. A record
	// that fails to insert is logged and skipped; the rest are committed.
	BulkInsert(ctx context.Context, agencyID int64, pkgs []models.Package) (models.InsertStats, error)
	Search(ctx context.Context, filter SearchFilter) ([]models.Package, error)
	Agencies(ctx context.Context) ([]models.AgencyRef, error)
	RecordScrape(ctx context.Context, agencyID int64, success bool, packagesFound int) error
	Close() error
}

// CooldownTracker decides whether an agency URL may be scraped now. Claim
// returns false while a previous claim is still within its cooldown window.
type CooldownTracker interface {
	Claim(ctx context.Context, agencyURL string) (bool, error)
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"

	"github.com/lib/pq"
)

// PostgresStore persists agencies and packages in PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens the pool and pings the DB
func NewPostgresStore(ctx context.Context, connStr string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	logger.Info("Connected to PostgreSQL successfully")
	return &PostgresStore{db: db, logger: logger}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS agencies (
	id                   BIGSERIAL PRIMARY KEY,
	name                 TEXT          NOT NULL,
	url                  TEXT          NOT NULL UNIQUE,
	country              TEXT          NOT NULL DEFAULT '',
	trust_score          NUMERIC(4,3)  NOT NULL DEFAULT 0.5,
	is_active            BOOLEAN       NOT NULL DEFAULT TRUE,
	scraping_enabled     BOOLEAN       NOT NULL DEFAULT TRUE,
	last_scraped_at      TIMESTAMPTZ,
	scrape_success_count INTEGER       NOT NULL DEFAULT 0,
	scrape_failure_count INTEGER       NOT NULL DEFAULT 0,
	last_packages_found  INTEGER       NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS travel_packages (
	id                      BIGSERIAL PRIMARY KEY,
	agency_id               BIGINT        NOT NULL REFERENCES agencies (id),
	package_title           TEXT          NOT NULL,
	url                     TEXT          NOT NULL DEFAULT '',
	price_in_inr            NUMERIC(12,2) NOT NULL DEFAULT 0,
	duration_days           INTEGER       NOT NULL DEFAULT 0,
	duration_nights         INTEGER       NOT NULL DEFAULT 0,
	destinations            JSONB         NOT NULL DEFAULT '[]',
	countries               JSONB         NOT NULL DEFAULT '[]',
	inclusions              JSONB         NOT NULL DEFAULT '[]',
	exclusions              JSONB         NOT NULL DEFAULT '[]',
	highlights              JSONB         NOT NULL DEFAULT '[]',
	rating                  NUMERIC(3,2),
	reviews_count           INTEGER       NOT NULL DEFAULT 0,
	source_confidence_score NUMERIC(4,3)  NOT NULL DEFAULT 0.5,
	is_active               BOOLEAN       NOT NULL DEFAULT TRUE,
	scraped_at              TIMESTAMPTZ   NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_packages_agency_url   ON travel_packages (agency_id, url);
CREATE INDEX IF NOT EXISTS idx_packages_agency_title ON travel_packages (agency_id, package_title, duration_days);
CREATE INDEX IF NOT EXISTS idx_packages_price        ON travel_packages (price_in_inr);
CREATE INDEX IF NOT EXISTS idx_packages_duration     ON travel_packages (duration_days);
`

// CreateSchema creates the agencies and travel_packages tables if missing
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.logger.Info("Tables 'agencies' and 'travel_packages' are ready")
	return nil
}

// UpsertAgency registers an agency by URL and returns it with its ID
func (s *PostgresStore) UpsertAgency(ctx context.Context, a models.AgencyRef) (models.AgencyRef, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO agencies (name, url, country, trust_score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO UPDATE SET name = EXCLUDED.name, country = EXCLUDED.country
		RETURNING id, trust_score
	`, a.Name, a.URL, a.Country, a.TrustScore).Scan(&a.ID, &a.TrustScore)
	if err != nil {
		return a, fmt.Errorf("failed to upsert agency %s: %w", a.URL, err)
	}
	return a, nil
}

// Agencies lists active, scraping-enabled agencies
func (s *PostgresStore) Agencies(ctx context.Context) ([]models.AgencyRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, country, trust_score
		FROM agencies
		WHERE is_active AND scraping_enabled
		ORDER BY last_scraped_at ASC NULLS FIRST, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}
	defer rows.Close()

	var out []models.AgencyRef
	for rows.Next() {
		var a models.AgencyRef
		if err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.Country, &a.TrustScore); err != nil {
			return nil, fmt.Errorf("failed to scan agency: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordScrape updates the agency's scrape status counters
func (s *PostgresStore) RecordScrape(ctx context.Context, agencyID int64, success bool, packagesFound int) error {
	counter := "scrape_failure_count"
	if success {
		counter = "scrape_success_count"
	}
	query := fmt.Sprintf(`
		UPDATE agencies
		SET last_scraped_at = NOW(), %[1]s = %[1]s + 1, last_packages_found = $2
		WHERE id = $1
	`, counter)
	if _, err := s.db.ExecContext(ctx, query, agencyID, packagesFound); err != nil {
		return fmt.Errorf("failed to record scrape for agency %d: %w", agencyID, err)
	}
	return nil
}

// BulkInsert inserts pkgs in a single transaction. Each record runs under
// its own savepoint so one bad row does not abort the batch. An advisory
// lock on the agency serializes concurrent dedup checks for it.
func (s *PostgresStore) BulkInsert(ctx context.Context, agencyID int64, pkgs []models.Package) (stats models.InsertStats, err error) {
	if len(pkgs) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, agencyID); err != nil {
		return stats, fmt.Errorf("failed to lock agency %d: %w", agencyID, err)
	}

	for _, p := range pkgs {
		dup, insErr := s.insertOne(ctx, tx, agencyID, p)
		switch {
		case insErr != nil:
			s.logger.Warn("Skipping insert for '%s': %v", p.Title, insErr)
			stats.Failed++
			if ctx.Err() != nil {
				err = ctx.Err()
				return stats, err
			}
		case dup:
			stats.Duplicates++
		default:
			stats.Inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Inserted %d/%d packages for agency %d (%d duplicates)", stats.Inserted, len(pkgs), agencyID, stats.Duplicates)
	return stats, nil
}

func (s *PostgresStore) insertOne(ctx context.Context, tx *sql.Tx, agencyID int64, p models.Package) (duplicate bool, err error) {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT pkg`); err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_, _ = tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT pkg`)
			return
		}
		_, err = tx.ExecContext(ctx, `RELEASE SAVEPOINT pkg`)
	}()

	duplicate, err = s.exists(ctx, tx, agencyID, p)
	if err != nil || duplicate {
		return duplicate, err
	}

	lists := make([]string, 0, 5)
	for _, l := range [][]string{p.Destinations, p.Countries, p.Inclusions, p.Exclusions, p.Highlights} {
		encoded, err := encodeList(l)
		if err != nil {
			return false, err
		}
		lists = append(lists, encoded)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO travel_packages (
			agency_id, package_title, url, price_in_inr, duration_days, duration_nights,
			destinations, countries, inclusions, exclusions, highlights,
			rating, reviews_count, source_confidence_score, is_active, scraped_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		agencyID, p.Title, p.URL, p.PriceINR, p.DurationDays, p.DurationNights,
		lists[0], lists[1], lists[2], lists[3], lists[4],
		p.Rating, p.ReviewsCount, p.SourceConfidenceScore, p.IsActive, p.ScrapedAt,
	)
	return false, err
}

// exists mirrors isDuplicate in SQL against the rows already visible in tx
func (s *PostgresStore) exists(ctx context.Context, tx *sql.Tx, agencyID int64, p models.Package) (bool, error) {
	var found bool
	if hasURLIdentity(p) {
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM travel_packages WHERE agency_id = $1 AND url = $2)`,
			agencyID, p.URL).Scan(&found)
		if err != nil || found {
			return found, err
		}
	}
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM travel_packages WHERE agency_id = $1 AND package_title = $2 AND duration_days = $3)`,
		agencyID, p.Title, p.DurationDays).Scan(&found)
	return found, err
}

// Search returns active packages matching filter, cheapest first
func (s *PostgresStore) Search(ctx context.Context, filter SearchFilter) ([]models.Package, error) {
	var (
		where = []string{"is_active"}
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.MinPrice > 0 || filter.MaxPrice > 0 {
		where = append(where, fmt.Sprintf("(price_in_inr = 0 OR price_in_inr BETWEEN %s AND %s)",
			arg(filter.MinPrice), arg(filter.MaxPrice)))
	}
	if filter.MinDays > 0 || filter.MaxDays > 0 {
		where = append(where, fmt.Sprintf("(duration_days = 0 OR duration_days BETWEEN %s AND %s)",
			arg(filter.MinDays), arg(filter.MaxDays)))
	}
	if len(filter.Destinations) > 0 {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(destinations) d WHERE lower(d) = ANY(%s))",
			arg(pq.Array(lowerAll(filter.Destinations)))))
	}

	query := fmt.Sprintf(`
		SELECT id, agency_id, package_title, url, price_in_inr, duration_days, duration_nights,
		       destinations, countries, inclusions, exclusions, highlights,
		       rating, reviews_count, source_confidence_score, is_active, scraped_at
		FROM travel_packages
		WHERE %s
		ORDER BY price_in_inr ASC, id
		LIMIT %s
	`, strings.Join(where, " AND "), arg(filter.limit()))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search packages: %w", err)
	}
	defer rows.Close()

	var out []models.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPackage(rows *sql.Rows) (models.Package, error) {
	var (
		p      models.Package
		rating sql.NullFloat64
		lists  [5][]byte
	)
	err := rows.Scan(
		&p.ID, &p.AgencyID, &p.Title, &p.URL, &p.PriceINR, &p.DurationDays, &p.DurationNights,
		&lists[0], &lists[1], &lists[2], &lists[3], &lists[4],
		&rating, &p.ReviewsCount, &p.SourceConfidenceScore, &p.IsActive, &p.ScrapedAt,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan package: %w", err)
	}
	if rating.Valid {
		p.Rating = models.Float(rating.Float64)
	}
	targets := []*[]string{&p.Destinations, &p.Countries, &p.Inclusions, &p.Exclusions, &p.Highlights}
	for i, raw := range lists {
		if err := json.Unmarshal(raw, targets[i]); err != nil {
			return p, fmt.Errorf("failed to decode package %d lists: %w", p.ID, err)
		}
	}
	return p, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

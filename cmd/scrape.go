package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"travel-package-scraper/llm"
	"travel-package-scraper/models"
	"travel-package-scraper/scraper/agency"
	"travel-package-scraper/scraper/extract"
	"travel-package-scraper/services"
	"travel-package-scraper/storage"
	"travel-package-scraper/utils"
)

var (
	scrapeAgencies []string
	scrapeCountry  string
	scrapeMax      int
	scrapeMemory   bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape agencies and store their packages",
	Long: `Scrape every registered agency that is out of cooldown, up to --max per run.
Agencies passed with --agency are registered first. Use --memory to run
without PostgreSQL; packages are then only reported, not kept.`,
	Example: `  travel-scraper scrape --agency "Himalayan Hikers=https://hikers.example.com/packages"
  travel-scraper scrape --memory --agency https://trips.example.com --max 1`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringArrayVarP(&scrapeAgencies, "agency", "a", nil, `agency as "Name=URL" or a bare URL (repeatable)`)
	scrapeCmd.Flags().StringVar(&scrapeCountry, "country", "", "country for agencies passed with --agency")
	scrapeCmd.Flags().IntVar(&scrapeMax, "max", 0, "agencies to scrape this run (default MAX_AGENCIES_PER_RUN)")
	scrapeCmd.Flags().BoolVar(&scrapeMemory, "memory", false, "use an in-memory store instead of PostgreSQL")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refs, err := parseAgencies(scrapeAgencies, scrapeCountry)
	if err != nil {
		return err
	}

	var (
		store    storage.PackageStore
		agencies []models.AgencyRef
	)
	if scrapeMemory {
		for i := range refs {
			refs[i].ID = int64(i + 1)
		}
		store = storage.NewMemoryStore(logger, refs...)
		agencies = refs
	} else {
		pg, err := openPostgres(ctx)
		if err != nil {
			return err
		}
		for _, r := range refs {
			if _, err := pg.UpsertAgency(ctx, r); err != nil {
				_ = pg.Close()
				return err
			}
		}
		if agencies, err = pg.Agencies(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		store = pg
	}
	defer store.Close()

	if len(agencies) == 0 {
		logger.Warn("No agencies to scrape; pass --agency or register agencies in the database")
		return nil
	}

	var gen extract.Generator
	if cfg.StructuredEnabled {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return err
		}
		defer client.Close()
		gen = client
		logger.Info("Structured extraction enabled (%s)", client.Model())
	}

	sc := agency.NewFromConfig(cfg, gen, logger)
	defer sc.Close()
	logger.Info("Scraper ready in %s mode | concurrency %d | retries %d", sc.Mode(), cfg.MaxConcurrency, cfg.MaxRetries)

	opts := []services.IngestionOption{services.WithCooldown(cooldownTracker(ctx))}
	if cfg.CSVFilePath != "" {
		opts = append(opts, services.WithRawDump(storage.NewCSVWriter(cfg.CSVFilePath, logger)))
	}
	ingest := services.NewIngestionService(sc, store, agency.BatchOptions{
		Concurrency: cfg.MaxConcurrency,
		Pause:       cfg.BatchPause,
		RateLimiter: utils.NewRateLimiter(cfg.RateLimitDelay),
	}, logger, opts...)

	limit := scrapeMax
	if limit <= 0 {
		limit = cfg.MaxAgenciesRun
	}
	summary, err := ingest.Run(ctx, agencies, limit)
	if summary != nil {
		services.PrintRunSummary(cmd.OutOrStdout(), summary)
	}
	return err
}

// cooldownTracker prefers Redis so concurrent runs share the cooldown, and
// falls back to a process-local tracker
func cooldownTracker(ctx context.Context) storage.CooldownTracker {
	if cfg.RedisAddr != "" {
		t, err := storage.NewRedisCooldownTracker(ctx, cfg.RedisAddr, cfg.ScrapeCooldown)
		if err == nil {
			return t
		}
		logger.Warn("Redis unavailable, using in-process cooldown: %v", err)
	}
	return utils.NewURLTracker(cfg.ScrapeCooldown)
}

// parseAgencies reads "Name=URL" or bare-URL agency flags. A bare URL is
// named after its host.
func parseAgencies(values []string, country string) ([]models.AgencyRef, error) {
	refs := make([]models.AgencyRef, 0, len(values))
	for _, v := range values {
		name, raw := "", strings.TrimSpace(v)
		if i := strings.Index(raw, "="); i > 0 && !strings.Contains(raw[:i], "://") {
			name, raw = strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:])
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("invalid agency URL %q", v)
		}
		if name == "" {
			name = strings.TrimPrefix(u.Hostname(), "www.")
		}
		refs = append(refs, models.AgencyRef{Name: name, URL: raw, Country: country, TrustScore: 0.5})
	}
	return refs, nil
}

// Package agency scrapes travel-agency listing pages through a tiered
// extraction cascade.
package agency

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"travel-package-scraper/config"
	"travel-package-scraper/models"
	"travel-package-scraper/scraper/extract"
	"travel-package-scraper/utils"
)

// Options bounds a single Scrape call
type Options struct {
	MaxRetries     int           // navigation attempts on transient failures
	RetryBaseDelay time.Duration // backoff = base * 2^retry
	HTMLDumpPath   string        // last captured HTML per agency is written next to this path when set
}

// Scraper runs the extraction cascade for one agency URL at a time. It is
// safe for concurrent use.
type Scraper struct {
	opts       Options
	browser    Fetcher // nil when the browser could not be launched
	static     Fetcher
	extractors []extract.Extractor
	logger     *utils.Logger
	closeFn    func()
}

// New wires a Scraper from explicit parts. browser may be nil.
func New(opts Options, browser, static Fetcher, extractors []extract.Extractor, logger *utils.Logger) *Scraper {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Scraper{
		opts:       opts,
		browser:    browser,
		static:     static,
		extractors: extractors,
		logger:     logger,
	}
}

// NewFromConfig launches the shared browser (falling back to static mode if
// the launch fails) and builds the default cascade. gen may be nil to skip
// structured extraction. Close must be called at shutdown.
func NewFromConfig(cfg *config.Config, gen extract.Generator, logger *utils.Logger) *Scraper {
	static := NewStaticFetcher(cfg.PageTimeout, cfg.UserAgent, logger)
	tiers := extract.DefaultCascade(gen, extract.StructuredConfig{
		HTMLBudget:  cfg.LLMHTMLBudget,
		MaxAttempts: cfg.LLMMaxRetries,
		BaseDelay:   cfg.LLMBaseDelay,
	}, logger)
	opts := Options{
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		HTMLDumpPath:   cfg.HTMLDumpPath,
	}

	browser, err := StartBrowser(BrowserConfig{
		Headless:    cfg.Headless,
		UserAgent:   cfg.UserAgent,
		PageTimeout: cfg.PageTimeout,
		ScrollSteps: cfg.ScrollSteps,
		ScrollPause: cfg.ScrollPause,
	}, logger)
	if err != nil {
		logger.Warn("Browser unavailable, using requests mode: %v", err)
		return New(opts, nil, static, tiers, logger)
	}

	s := New(opts, browser, static, tiers, logger)
	s.closeFn = browser.Close
	return s
}

// Mode reports which fetcher the scraper starts with
func (s *Scraper) Mode() string {
	if s.browser != nil {
		return models.ModeBrowser
	}
	return models.ModeRequests
}

// Close releases the browser process, if any
func (s *Scraper) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Scrape fetches pageURL and runs the extraction cascade. It never returns an
// error: failures are reported with Success=false and an Error reason so the
// caller can move on to the next agency.
func (s *Scraper) Scrape(ctx context.Context, pageURL, agencyName string) models.ScrapeResult {
	log := s.logger.With("agency", agencyName)
	result := models.ScrapeResult{
		URL:        pageURL,
		AgencyName: agencyName,
		Mode:       s.Mode(),
	}

	var page extract.Page
	policy := utils.RetryPolicy{
		MaxAttempts: s.opts.MaxRetries,
		BaseDelay:   s.opts.RetryBaseDelay,
		Retryable:   isTransient,
	}
	err := utils.RetryWithBackoff(ctx, policy, func(attempt int) error {
		log.Info("Scraping %s (attempt %d/%d) mode=%s", pageURL, attempt+1, s.opts.MaxRetries, result.Mode)
		p, err := s.fetch(ctx, pageURL, log)
		if err != nil {
			return err
		}
		page = p
		return nil
	}, log)
	if err != nil {
		result.Error = failureReason(ctx, err)
		log.Error("Scrape failed for %s: %s", pageURL, result.Error)
		return result
	}

	if !page.Rendered {
		result.Mode = models.ModeRequests
	}
	result.HTMLLength = len(page.HTML)
	s.dumpHTML(agencyName, page.HTML, log)

	for _, tier := range s.extractors {
		if ctx.Err() != nil {
			result.Error = failureReason(ctx, ctx.Err())
			return result
		}
		listings, _, err := tier.Extract(ctx, page)
		if err != nil {
			log.Warn("Tier %s failed, cascading: %v", tier.Name(), err)
			continue
		}
		listings = extract.WellFormed(listings)
		if len(listings) == 0 {
			log.Info("Tier %s found no listings, cascading", tier.Name())
			continue
		}
		result.Packages = listings
		result.Tier = tier.Name()
		break
	}

	result.Success = true
	log.Info("Found %d packages from %s (tier=%s, mode=%s)", len(result.Packages), pageURL, result.Tier, result.Mode)
	return result
}

// fetch tries the browser first. A navigation timeout is returned for retry;
// any other browser failure falls through to a static GET.
func (s *Scraper) fetch(ctx context.Context, pageURL string, log *utils.Logger) (extract.Page, error) {
	if s.browser != nil {
		html, err := s.browser.Fetch(ctx, pageURL)
		if err == nil {
			return extract.Page{HTML: html, URL: pageURL, Rendered: true}, nil
		}
		if ctx.Err() != nil || isTransient(err) {
			return extract.Page{}, err
		}
		log.Warn("Browser navigation failed, falling back to static fetch: %v", err)
	}

	html, err := s.static.Fetch(ctx, pageURL)
	if err != nil {
		return extract.Page{}, err
	}
	return extract.Page{HTML: html, URL: pageURL}, nil
}

func (s *Scraper) dumpHTML(agencyName, html string, log *utils.Logger) {
	if s.opts.HTMLDumpPath == "" {
		return
	}
	path := dumpPath(s.opts.HTMLDumpPath, agencyName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
		err = os.WriteFile(path, []byte(html), 0644)
		if err == nil {
			return
		}
	}
	log.Debug("Could not write HTML dump to %s", path)
}

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// dumpPath gives each agency its own dump file next to the configured path,
// e.g. "out/last.html" + "Himalayan Hikers" -> "out/last-himalayan-hikers.html"
func dumpPath(base, agencyName string) string {
	slug := strings.Trim(slugRegex.ReplaceAllString(strings.ToLower(agencyName), "-"), "-")
	if slug == "" {
		slug = "agency"
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + slug + ext
}

func failureReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return "cancelled"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "deadline exceeded"
	case isTransient(err):
		return fmt.Sprintf("timeout: %v", err)
	}
	return err.Error()
}

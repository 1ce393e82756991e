package agency

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

// BatchOptions controls multi-agency scraping
type BatchOptions struct {
	Concurrency int           // scrapes in flight per batch
	Pause       time.Duration // sleep between batches
	RateLimiter *utils.RateLimiter
}

// ScrapeMany scrapes agencies in sequential batches of at most Concurrency
// parallel scrapes. Results are returned in input order; a cancelled context
// yields failure results for the agencies not yet started.
func (s *Scraper) ScrapeMany(ctx context.Context, agencies []models.AgencyRef, opts BatchOptions) []models.ScrapeResult {
	size := opts.Concurrency
	if size < 1 {
		size = 1
	}
	results := make([]models.ScrapeResult, len(agencies))

	for start := 0; start < len(agencies); start += size {
		end := min(start+size, len(agencies))

		if ctx.Err() != nil {
			for i := start; i < len(agencies); i++ {
				results[i] = cancelledResult(ctx, agencies[i], s.Mode())
			}
			break
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			a := agencies[i]
			idx := i
			g.Go(func() error {
				if opts.RateLimiter != nil {
					if err := opts.RateLimiter.Wait(ctx); err != nil {
						results[idx] = cancelledResult(ctx, a, s.Mode())
						return nil
					}
				}
				results[idx] = s.Scrape(ctx, a.URL, a.Name)
				return nil
			})
		}
		_ = g.Wait()

		s.logger.Info("Batch %d-%d of %d agencies done", start+1, end, len(agencies))
		if end < len(agencies) && opts.Pause > 0 {
			_ = utils.Sleep(ctx, opts.Pause)
		}
	}
	return results
}

func cancelledResult(ctx context.Context, a models.AgencyRef, mode string) models.ScrapeResult {
	return models.ScrapeResult{
		URL:        a.URL,
		AgencyName: a.Name,
		Mode:       mode,
		Error:      failureReason(ctx, ctx.Err()),
	}
}

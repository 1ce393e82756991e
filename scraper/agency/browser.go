package agency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

// BrowserConfig controls the rendered fetch
type BrowserConfig struct {
	Headless    bool
	UserAgent   string
	PageTimeout time.Duration // bound on navigation + DOM readiness
	ScrollSteps int
	ScrollPause time.Duration
}

// BrowserFetcher renders pages in headless Chrome. The browser process is
// launched once by Start and shared; every Fetch runs in its own incognito
// browser context that is torn down before Fetch returns.
type BrowserFetcher struct {
	cfg         BrowserConfig
	logger      *utils.Logger
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelBrow  context.CancelFunc
}

// StartBrowser launches the shared browser process. An error means the
// browser is unavailable and callers should use the static fetcher.
func StartBrowser(cfg BrowserConfig, logger *utils.Logger) (*BrowserFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("log-level", "3"), // suppress Chrome logs
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1366, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrow := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Run with no actions forces the process to start
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrow()
		cancelAlloc()
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}

	logger.Info("Headless browser launched (headless=%v)", cfg.Headless)
	return &BrowserFetcher{
		cfg:         cfg,
		logger:      logger,
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelBrow:  cancelBrow,
	}, nil
}

// Fetch navigates to pageURL, scrolls and clicks "load more" to materialize
// lazy content, then returns the final document HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	defer cancelTab()

	// Caller cancellation aborts the navigation and releases the tab
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	navCtx, cancelNav := context.WithTimeout(tabCtx, b.cfg.PageTimeout)
	defer cancelNav()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || navCtx.Err() == context.DeadlineExceeded {
			return "", models.NewError(models.KindTransientNetwork, "navigation timed out", err)
		}
		return "", fmt.Errorf("navigation failed: %w", err)
	}

	b.autoScroll(tabCtx)

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("capture failed: %w", err)
	}
	return html, nil
}

const loadMoreJS = `(function() {
	var labels = ['load more', 'show more', 'view more', 'more'];
	var nodes = document.querySelectorAll('button, a, [role="button"]');
	for (var i = 0; i < nodes.length; i++) {
		var t = (nodes[i].innerText || '').trim().toLowerCase();
		if (labels.indexOf(t) === -1) continue;
		if (nodes[i].offsetParent === null) continue;
		nodes[i].scrollIntoView({block: 'center'});
		nodes[i].click();
		return true;
	}
	return false;
})()`

// autoScroll runs a bounded number of click-and-scroll cycles. Failures are
// logged and end the loop; whatever has rendered so far is still captured.
func (b *BrowserFetcher) autoScroll(ctx context.Context) {
	for step := 0; step < b.cfg.ScrollSteps; step++ {
		var clicked bool
		err := chromedp.Run(ctx,
			chromedp.Evaluate(loadMoreJS, &clicked),
			chromedp.Evaluate(`window.scrollBy(0, 4000)`, nil),
			chromedp.Sleep(b.cfg.ScrollPause),
		)
		if err != nil {
			b.logger.Warn("Auto-scroll stopped at step %d: %v", step+1, err)
			return
		}
		if clicked {
			b.logger.Debug("Clicked load-more button (step %d)", step+1)
		}
	}
	b.logger.Debug("Auto-scroll completed (%d steps)", b.cfg.ScrollSteps)
}

// Close shuts down the browser process
func (b *BrowserFetcher) Close() {
	b.cancelBrow()
	b.cancelAlloc()
	b.logger.Info("Headless browser closed")
}

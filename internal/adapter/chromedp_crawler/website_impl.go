package chromedp_crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/navicare/facility-sync/internal/repository"
)

type WebsiteRenderer struct {
	allocatorPool *sync.Pool
	timeout       time.Duration
}

// NewWebsiteRenderer creates a headless renderer for facility websites
// using chromedp.
func NewWebsiteRenderer(maxConcurrency int, pageLoadTimeout time.Duration) (repository.WebsiteRepository, error) {
	pool := &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`),
			)
			allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
			return allocCtx
		},
	}

	// Pre-warm the pool
	for i := 0; i < maxConcurrency; i++ {
		allocCtx := pool.Get().(context.Context)
		pool.Put(allocCtx)
	}

	return &WebsiteRenderer{
		allocatorPool: pool,
		timeout:       pageLoadTimeout,
	}, nil
}

// Render loads the site in a headless browser and returns its title and
// visible text. Clinic sites are frequently JS-rendered, so a plain GET
// would see an empty shell.
func (c *WebsiteRenderer) Render(ctx context.Context, url string) (*repository.RenderedSite, error) {
	allocCtx := c.allocatorPool.Get().(context.Context)
	defer c.allocatorPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	taskCtx, cancel = context.WithTimeout(taskCtx, c.timeout)
	defer cancel()

	var title, bodyText string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
		chromedp.Text("body", &bodyText, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", repository.ErrRenderTimeout, url)
		}
		slog.Warn("Failed to render website", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
	}

	return &repository.RenderedSite{
		URL:      url,
		Title:    title,
		BodyText: bodyText,
	}, nil
}

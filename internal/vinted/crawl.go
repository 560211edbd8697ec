package vinted

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bricked-up/brickscout/internal/model"
	"github.com/bricked-up/brickscout/internal/session"
)

// PageFetcher retrieves one page of catalog results for a catalog id.
type PageFetcher interface {
	FetchPage(ctx context.Context, legoID string, page int) ([]byte, error)
}

// CrawlOptions configures the crawl across catalog ids.
type CrawlOptions struct {
	// Delay is the pause between consecutive API requests. Sub-crawls are
	// strictly serial; parallel hits trip the source's defenses.
	Delay time.Duration
	// MaxPages caps one sub-crawl regardless of what pagination reports.
	MaxPages int
}

// Crawler walks the catalog API for a set of catalog ids.
type Crawler struct {
	client PageFetcher
	opts   CrawlOptions
	log    *zap.Logger
}

// NewCrawler creates a Crawler.
func NewCrawler(client PageFetcher, opts CrawlOptions) *Crawler {
	if opts.Delay == 0 {
		opts.Delay = 1500 * time.Millisecond
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 20
	}
	return &Crawler{
		client: client,
		opts:   opts,
		log:    zap.L().Named("vinted"),
	}
}

// Prepare acquires a session credential and returns a ready Crawler. The
// credential is bound to a fresh Client for the crawl's lifetime.
func Prepare(ctx context.Context, provider session.Provider, opts ClientOptions, crawlOpts CrawlOptions) (*Crawler, error) {
	cred, err := provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(opts, cred)
	if err != nil {
		return nil, err
	}
	return NewCrawler(client, crawlOpts), nil
}

// CrawlSet collects every listing for one catalog id. The walk follows the
// source's reported total page count but also stops at the first empty
// page. A fetch error ends the sub-crawl and keeps the pages already
// collected; partial evidence is better than none for scoring.
func (c *Crawler) CrawlSet(ctx context.Context, legoID string) ([]model.Sale, error) {
	var sales []model.Sale

	for page := 1; page <= c.opts.MaxPages; page++ {
		if page > 1 {
			if err := c.pause(ctx); err != nil {
				return sales, err
			}
		}

		payload, err := c.client.FetchPage(ctx, legoID, page)
		if err != nil {
			c.log.Warn("sub-crawl aborted, keeping partial listings",
				zap.String("lego_id", legoID),
				zap.Int("page", page),
				zap.Int("sales_so_far", len(sales)),
				zap.Error(err),
			)
			return sales, err
		}

		pageSales, totalPages, err := ParsePage(payload, legoID)
		if err != nil {
			c.log.Warn("sub-crawl aborted on malformed page",
				zap.String("lego_id", legoID),
				zap.Int("page", page),
				zap.Error(err),
			)
			return sales, err
		}
		if len(pageSales) == 0 {
			break
		}
		sales = append(sales, pageSales...)
		if page >= totalPages {
			break
		}
	}

	return sales, nil
}

// CrawlAll runs one sub-crawl per catalog id, serially, pausing between
// requests. A failed sub-crawl does not stop the others; whatever each id
// yielded is kept. Context cancellation stops the whole walk.
func (c *Crawler) CrawlAll(ctx context.Context, legoIDs []string) ([]model.Sale, error) {
	var all []model.Sale

	for i, id := range legoIDs {
		if !model.ValidLegoID(id) {
			c.log.Debug("skipping invalid catalog id", zap.String("lego_id", id))
			continue
		}
		if i > 0 {
			if err := c.pause(ctx); err != nil {
				return all, err
			}
		}

		sales, err := c.CrawlSet(ctx, id)
		all = append(all, sales...)
		if err != nil {
			if ctx.Err() != nil {
				return all, err
			}
			continue
		}
		c.log.Info("catalog id crawled",
			zap.String("lego_id", id),
			zap.Int("sales", len(sales)),
		)
	}

	c.log.Info("resale crawl finished",
		zap.Int("lego_ids", len(legoIDs)),
		zap.Int("sales", len(all)),
	)
	return all, nil
}

func (c *Crawler) pause(ctx context.Context) error {
	t := time.NewTimer(c.opts.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

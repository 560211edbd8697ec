package dealabs

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/bricked-up/brickscout/internal/model"
)

// Fetcher retrieves one listing page.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Options configures a crawl of the deal-sharing source.
type Options struct {
	// BaseURL is the source origin, without a trailing slash.
	BaseURL string
	// Query is the search term, e.g. "lego".
	Query string
	// MaxPages caps the pagination walk as a safety net against the source
	// serving endless result pages.
	MaxPages int
}

// Crawler walks the source's paginated search results and assembles deals.
type Crawler struct {
	fetcher Fetcher
	opts    Options
	log     *zap.Logger
}

// NewCrawler creates a Crawler.
func NewCrawler(fetcher Fetcher, opts Options) *Crawler {
	if opts.Query == "" {
		opts.Query = "lego"
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 25
	}
	return &Crawler{
		fetcher: fetcher,
		opts:    opts,
		log:     zap.L().Named("dealabs"),
	}
}

func (c *Crawler) pageURL(page int) string {
	return fmt.Sprintf("%s/search?q=%s&page=%d", c.opts.BaseURL, url.QueryEscape(c.opts.Query), page)
}

// Crawl fetches search result pages in order until one comes back without
// any parseable article, then returns every deal collected so far. A fetch
// or parse error on page N keeps the deals from pages 1..N-1 and reports the
// error alongside them, so the caller can decide whether a partial batch is
// acceptable.
func (c *Crawler) Crawl(ctx context.Context) ([]model.Deal, error) {
	var deals []model.Deal
	seen := make(map[string]struct{})

	for page := 1; page <= c.opts.MaxPages; page++ {
		payload, err := c.fetcher.Get(ctx, c.pageURL(page))
		if err != nil {
			c.log.Error("page fetch failed, keeping partial batch",
				zap.Int("page", page),
				zap.Int("deals_so_far", len(deals)),
				zap.Error(err),
			)
			return deals, err
		}

		candidates, err := Parse(payload)
		if err != nil {
			c.log.Error("page parse failed, keeping partial batch",
				zap.Int("page", page),
				zap.Int("deals_so_far", len(deals)),
				zap.Error(err),
			)
			return deals, err
		}
		if len(candidates) == 0 {
			c.log.Info("pagination exhausted",
				zap.Int("pages", page-1),
				zap.Int("deals", len(deals)),
			)
			return deals, nil
		}

		for _, cand := range candidates {
			// Only listings tied to a catalog set are useful downstream.
			if cand.LegoID == "" {
				continue
			}
			d := buildDeal(cand)
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			deals = append(deals, d)
		}
	}

	c.log.Warn("page cap reached before pagination ended",
		zap.Int("max_pages", c.opts.MaxPages),
		zap.Int("deals", len(deals)),
	)
	return deals, nil
}

func buildDeal(c model.Candidate) model.Deal {
	id := c.SourceID
	if id == "" {
		id = model.ContentID(c.Title, c.Link)
	}
	return model.Deal{
		ID:             id,
		Title:          c.Title,
		LegoID:         c.LegoID,
		Price:          c.Price,
		NextBestPrice:  c.NextBestPrice,
		Discount:       model.Discount(c.Price, c.NextBestPrice),
		Link:           c.Link,
		MerchantLink:   c.MerchantLink,
		ImgURL:         c.ImgURL,
		Comments:       c.Comments,
		Temperature:    c.Temperature,
		Publication:    c.Publication,
		ExpirationDate: c.ExpirationDate,
	}
}

// Package refresh replaces the live catalog with a freshly crawled
// generation, archiving the previous one first.
package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bricked-up/brickscout/internal/model"
	"github.com/bricked-up/brickscout/internal/session"
	"github.com/bricked-up/brickscout/internal/store"
	"github.com/bricked-up/brickscout/internal/vinted"
)

// ErrRefreshInFlight is returned when a refresh is requested while another
// one is still running. Refreshes never interleave.
var ErrRefreshInFlight = eris.New("refresh: already in flight")

// DealCrawler produces the new deal generation.
type DealCrawler interface {
	Crawl(ctx context.Context) ([]model.Deal, error)
}

// SaleCrawlerFactory prepares the resale crawler. Preparation includes
// session acquisition, which is slow, so it runs concurrently with the
// deal crawl.
type SaleCrawlerFactory interface {
	Prepare(ctx context.Context) (SaleCrawler, error)
}

// SaleCrawler walks the resale source for a set of catalog ids.
type SaleCrawler interface {
	CrawlAll(ctx context.Context, legoIDs []string) ([]model.Sale, error)
}

// SaleCrawlerFactoryFunc adapts a function to SaleCrawlerFactory.
type SaleCrawlerFactoryFunc func(ctx context.Context) (SaleCrawler, error)

func (f SaleCrawlerFactoryFunc) Prepare(ctx context.Context) (SaleCrawler, error) {
	return f(ctx)
}

// VintedFactory builds the production resale crawler: acquire a session,
// bind it to a client, return the crawler.
func VintedFactory(provider session.Provider, clientOpts vinted.ClientOptions, crawlOpts vinted.CrawlOptions) SaleCrawlerFactory {
	return SaleCrawlerFactoryFunc(func(ctx context.Context) (SaleCrawler, error) {
		return vinted.Prepare(ctx, provider, clientOpts, crawlOpts)
	})
}

// Result summarizes one completed refresh run.
type Result struct {
	RunID    string        `json:"runId"`
	Deals    int           `json:"deals"`
	Sales    int           `json:"sales"`
	LegoIDs  int           `json:"legoIds"`
	Archived bool          `json:"archived"`
	Duration time.Duration `json:"duration"`
}

// Orchestrator runs the archive, crawl, clear and insert steps in order.
type Orchestrator struct {
	store    store.Store
	deals    DealCrawler
	sales    SaleCrawlerFactory
	inFlight atomic.Bool
	now      func() time.Time
	log      *zap.Logger
}

// New creates an Orchestrator.
func New(st store.Store, deals DealCrawler, sales SaleCrawlerFactory) *Orchestrator {
	return &Orchestrator{
		store: st,
		deals: deals,
		sales: sales,
		now:   time.Now,
		log:   zap.L().Named("refresh"),
	}
}

// Run executes one refresh cycle. The previous generation is archived
// before anything is deleted, and the live tables are cleared only once
// both crawls have succeeded, keeping the clear-to-insert window as short
// as the storage layer allows. A deal crawl that dies mid-pagination but
// has pages in hand commits the partial batch; session, resale-crawl and
// store failures abort the run. The archive is the manual recovery point,
// never an automatic rollback source.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRefreshInFlight
	}
	defer o.inFlight.Store(false)

	start := o.now()
	runID := uuid.New().String()
	log := o.log.With(zap.String("run_id", runID))
	log.Info("refresh started")

	nDeals, err := o.store.CountDeals(ctx)
	if err != nil {
		return nil, err
	}
	nSales, err := o.store.CountSales(ctx)
	if err != nil {
		return nil, err
	}

	archived := nDeals > 0 || nSales > 0
	if archived {
		if err := o.store.Archive(ctx, start); err != nil {
			return nil, err
		}
		log.Info("previous generation archived",
			zap.Int("deals", nDeals),
			zap.Int("sales", nSales),
			zap.String("suffix", store.ArchiveSuffix(start)),
		)
	}

	// Session acquisition and the deal crawl are independent; the resale
	// crawl needs the deal crawl's output, so it follows sequentially.
	var deals []model.Deal
	var saleCrawler SaleCrawler

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		deals, err = o.deals.Crawl(gctx)
		if err != nil && len(deals) > 0 {
			// A dead page mid-pagination truncates the batch; the pages
			// already collected still make a valid generation.
			log.Warn("deal crawl ended early, keeping partial batch",
				zap.Int("deals", len(deals)),
				zap.Error(err),
			)
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "refresh: deal crawl")
		}
		if len(deals) == 0 {
			return eris.New("refresh: deal crawl returned nothing, refusing to replace the catalog")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		saleCrawler, err = o.sales.Prepare(gctx)
		if err != nil {
			// A refresh with only one source would silently degrade
			// relevance scoring, so a dead session kills the whole run.
			return eris.Wrap(err, "refresh: resale session")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	legoIDs := distinctLegoIDs(deals)
	log.Info("deal crawl finished",
		zap.Int("deals", len(deals)),
		zap.Int("lego_ids", len(legoIDs)),
	)

	sales, err := saleCrawler.CrawlAll(ctx, legoIDs)
	if err != nil {
		return nil, eris.Wrap(err, "refresh: resale crawl")
	}

	if err := o.store.Clear(ctx); err != nil {
		return nil, err
	}
	if err := o.store.InsertDeals(ctx, deals); err != nil {
		return nil, err
	}
	if err := o.store.InsertSales(ctx, sales); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:    runID,
		Deals:    len(deals),
		Sales:    len(sales),
		LegoIDs:  len(legoIDs),
		Archived: archived,
		Duration: o.now().Sub(start),
	}
	log.Info("refresh committed",
		zap.Int("deals", res.Deals),
		zap.Int("sales", res.Sales),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func distinctLegoIDs(deals []model.Deal) []string {
	seen := make(map[string]struct{}, len(deals))
	var ids []string
	for _, d := range deals {
		if d.LegoID == "" {
			continue
		}
		if _, ok := seen[d.LegoID]; ok {
			continue
		}
		seen[d.LegoID] = struct{}{}
		ids = append(ids, d.LegoID)
	}
	return ids
}

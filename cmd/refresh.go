package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bricked-up/brickscout/internal/dealabs"
	"github.com/bricked-up/brickscout/internal/fetcher"
	"github.com/bricked-up/brickscout/internal/refresh"
	"github.com/bricked-up/brickscout/internal/vinted"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Crawl both sources and replace the live catalog",
	Long:  "Archives the current generation, crawls the deal and resale sources, then clears and repopulates the catalog. Any failure aborts with a nonzero exit; the archive is the recovery point.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:          time.Duration(cfg.Dealabs.TimeoutSecs) * time.Second,
			RateLimiters:     fetcher.DefaultRateLimiters(),
			CloudflareBypass: true,
			Headers:          dealabsHeaders(),
		})
		dealCrawler := dealabs.NewCrawler(httpFetcher, dealabs.Options{
			BaseURL:  cfg.Dealabs.BaseURL,
			Query:    cfg.Dealabs.SearchQuery,
			MaxPages: cfg.Dealabs.MaxPages,
		})

		saleFactory := refresh.VintedFactory(
			sessionProvider(cfg),
			vinted.ClientOptions{
				BaseURL: cfg.Vinted.BaseURL,
				BrandID: cfg.Vinted.BrandID,
				Timeout: time.Duration(cfg.Vinted.TimeoutSecs) * time.Second,
			},
			vinted.CrawlOptions{
				Delay: time.Duration(cfg.Vinted.DelayMs) * time.Millisecond,
			},
		)

		res, err := refresh.New(st, dealCrawler, saleFactory).Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("refresh finished",
			zap.String("run_id", res.RunID),
			zap.Int("deals", res.Deals),
			zap.Int("sales", res.Sales),
			zap.Int("lego_ids", res.LegoIDs),
			zap.Bool("archived", res.Archived),
			zap.Duration("duration", res.Duration),
		)
		return nil
	},
}

func dealabsHeaders() map[string]string {
	if cfg.Dealabs.Cookie == "" {
		return nil
	}
	return map[string]string{"Cookie": cfg.Dealabs.Cookie}
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bricked-up/brickscout/internal/model"
	"github.com/bricked-up/brickscout/internal/scorer"
	"github.com/bricked-up/brickscout/internal/store"
)

var salesFlags struct {
	legoID    string
	recent    int
	dealPrice float64
}

var salesCmd = &cobra.Command{
	Use:   "sales",
	Short: "List resale observations and price indicators for one set",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !model.ValidLegoID(salesFlags.legoID) {
			return eris.Errorf("invalid catalog id %q", salesFlags.legoID)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		q := store.SaleQuery{LegoID: salesFlags.legoID, Limit: 500}
		if salesFlags.recent > 0 {
			since := time.Now().AddDate(0, 0, -salesFlags.recent).Unix()
			q.Since = &since
		}
		page, err := st.Sales(ctx, q)
		if err != nil {
			return err
		}

		renderSales(page.Sales)
		renderIndicators(scorer.Indicators(page.Sales))
		return nil
	},
}

func renderSales(sales []model.Sale) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRICE\tPROFIT\tPUBLISHED\tTITLE")
	for _, s := range sales {
		profit := "-"
		if pct, ok := scorer.ProfitabilityPercent(salesFlags.dealPrice, s.Price); ok {
			profit = fmt.Sprintf("%+.2f%%", pct)
		}
		published := "-"
		if s.PublicationDate > 0 {
			published = time.Unix(s.PublicationDate, 0).UTC().Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%s\n", s.ID, s.Price, profit, published, s.Title)
	}
	w.Flush() //nolint:errcheck
}

func renderIndicators(stats model.PriceStats) {
	if !stats.Ok {
		fmt.Println("\nno price data")
		return
	}
	fmt.Printf("\n%d listings  avg %.2f  p5 %.2f  p25 %.2f  p50 %.2f  p95 %.2f  p99 %.2f\n",
		stats.Count, stats.Average, stats.P5, stats.P25, stats.P50, stats.P95, stats.P99)
}

func init() {
	salesCmd.Flags().StringVar(&salesFlags.legoID, "lego-id", "", "catalog id to inspect (required)")
	salesCmd.Flags().IntVar(&salesFlags.recent, "recent", 0, "only listings published in the last N days")
	salesCmd.Flags().Float64Var(&salesFlags.dealPrice, "deal-price", 0, "deal price to compute per-listing profitability against")
	_ = salesCmd.MarkFlagRequired("lego-id")
	rootCmd.AddCommand(salesCmd)
}

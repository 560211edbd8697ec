package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bricked-up/brickscout/internal/model"
	"github.com/bricked-up/brickscout/internal/store"
)

var dealsFlags struct {
	filter   string
	sortKey  string
	asc      bool
	legoID   string
	minPrice float64
	maxPrice float64
	sinceDay int
	page     int
	limit    int
}

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "List scored deals from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}

		q := store.Query{
			Preset: store.Preset(dealsFlags.filter),
			LegoID: dealsFlags.legoID,
			Sort:   store.Sort(dealsFlags.sortKey),
			Asc:    dealsFlags.asc,
			Page:   dealsFlags.page,
			Limit:  dealsFlags.limit,
		}
		if dealsFlags.minPrice > 0 {
			q.MinPrice = &dealsFlags.minPrice
		}
		if dealsFlags.maxPrice > 0 {
			q.MaxPrice = &dealsFlags.maxPrice
		}
		if dealsFlags.sinceDay > 0 {
			since := time.Now().AddDate(0, 0, -dealsFlags.sinceDay).Unix()
			q.Since = &since
		}

		page, err := st.Deals(ctx, q)
		if err != nil {
			return err
		}

		scored := make([]model.ScoredDeal, 0, len(page.Deals))
		for _, d := range page.Deals {
			sales, err := st.SalesByLegoID(ctx, d.LegoID)
			if err != nil {
				return err
			}
			scored = append(scored, model.ScoredDeal{Deal: d, Scores: engine.Score(d, sales)})
		}
		// Relevance re-ranks within the fetched page; pagination follows
		// publication order so page boundaries stay deterministic.
		if q.Sort == store.SortRelevance {
			sort.SliceStable(scored, func(i, j int) bool {
				if q.Asc {
					return scored[i].Scores.Relevance < scored[j].Scores.Relevance
				}
				return scored[i].Scores.Relevance > scored[j].Scores.Relevance
			})
		}

		renderDeals(scored, page.Total)
		return nil
	},
}

func renderDeals(deals []model.ScoredDeal, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SET\tPRICE\tDISCOUNT\tTEMP\tCOMMENTS\tRELEVANCE\tTITLE")
	for _, d := range deals {
		discount := "-"
		if d.Discount != nil {
			discount = fmt.Sprintf("%d%%", *d.Discount)
		}
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%d\t%d\t%.3f\t%s\n",
			d.LegoID, d.Price, discount, d.Temperature, d.Comments, d.Scores.Relevance, d.Title)
	}
	w.Flush() //nolint:errcheck
	fmt.Printf("\n%d of %d deals\n", len(deals), total)
}

func init() {
	dealsCmd.Flags().StringVar(&dealsFlags.filter, "filter", "", "preset filter: best-discount|most-commented|hot-deals|ending-soon")
	dealsCmd.Flags().StringVar(&dealsFlags.sortKey, "sort", "relevance", "sort key: price|date|relevance")
	dealsCmd.Flags().BoolVar(&dealsFlags.asc, "asc", false, "sort ascending")
	dealsCmd.Flags().StringVar(&dealsFlags.legoID, "lego-id", "", "restrict to one catalog id")
	dealsCmd.Flags().Float64Var(&dealsFlags.minPrice, "min-price", 0, "minimum price")
	dealsCmd.Flags().Float64Var(&dealsFlags.maxPrice, "max-price", 0, "maximum price")
	dealsCmd.Flags().IntVar(&dealsFlags.sinceDay, "since", 0, "only deals published in the last N days")
	dealsCmd.Flags().IntVar(&dealsFlags.page, "page", 1, "result page")
	dealsCmd.Flags().IntVar(&dealsFlags.limit, "limit", 25, "page size")
	rootCmd.AddCommand(dealsCmd)
}

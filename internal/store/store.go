// Package store persists the deal and sale catalogs behind a backend-neutral
// interface. SQLite is the default backend; Postgres is the deployment one.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/bricked-up/brickscout/internal/model"
)

// Preset is a named query shortcut with a numeric threshold baked in.
type Preset string

const (
	PresetNone          Preset = ""
	PresetBestDiscount  Preset = "best-discount"
	PresetMostCommented Preset = "most-commented"
	PresetHotDeals      Preset = "hot-deals"
	PresetEndingSoon    Preset = "ending-soon"
)

// Preset thresholds. Tuned against what the sources actually serve; a
// temperature of 100 is roughly the "hot" badge cutoff.
const (
	MinDiscountPercent = 30
	MinComments        = 100
	MinTemperature     = 100
	EndingSoonWindow   = 7 * 24 * time.Hour
	RecentSalesWindow  = 21 * 24 * time.Hour
)

// Sort keys for deal queries.
type Sort string

const (
	SortDate      Sort = "date"
	SortPrice     Sort = "price"
	SortRelevance Sort = "relevance"
)

// Query specifies criteria for listing deals. Zero values mean "no
// constraint". Relevance ordering is applied by the caller after scoring;
// the store treats it as date ordering so pagination stays deterministic.
type Query struct {
	Preset   Preset   `json:"preset,omitempty"`
	LegoID   string   `json:"legoId,omitempty"`
	MinPrice *float64 `json:"minPrice,omitempty"`
	MaxPrice *float64 `json:"maxPrice,omitempty"`
	// Since/Until bound the publication timestamp (unix seconds).
	Since *int64 `json:"since,omitempty"`
	Until *int64 `json:"until,omitempty"`
	Sort  Sort   `json:"sort,omitempty"`
	Asc   bool   `json:"asc,omitempty"`
	Page  int    `json:"page,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// SaleQuery specifies criteria for listing resale observations.
type SaleQuery struct {
	LegoID string `json:"legoId,omitempty"`
	// Since bounds the listing publication timestamp (unix seconds).
	Since *int64 `json:"since,omitempty"`
	Page  int    `json:"page,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// DealPage is one page of deal results plus the unpaged match count.
type DealPage struct {
	Deals []model.Deal `json:"deals"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// SalePage is one page of sale results plus the unpaged match count.
type SalePage struct {
	Sales []model.Sale `json:"sales"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// Store defines the persistence interface for the catalog.
type Store interface {
	// Writes. Inserts are idempotent on the record key so a batch that
	// carries a duplicate cannot abort a refresh.
	InsertDeals(ctx context.Context, deals []model.Deal) error
	InsertSales(ctx context.Context, sales []model.Sale) error

	// Reads
	Deals(ctx context.Context, q Query) (*DealPage, error)
	Sales(ctx context.Context, q SaleQuery) (*SalePage, error)
	SalesByLegoID(ctx context.Context, legoID string) ([]model.Sale, error)
	DistinctLegoIDs(ctx context.Context) ([]string, error)
	CountDeals(ctx context.Context) (int, error)
	CountSales(ctx context.Context) (int, error)

	// Refresh lifecycle. Archive snapshots both live tables under
	// timestamped names; an empty table is skipped. Clear empties both
	// live tables.
	Archive(ctx context.Context, ts time.Time) error
	Clear(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const (
	dealsTable = "deals"
	salesTable = "sales"
)

// archiveSanitizer strips the characters an ISO-8601 UTC timestamp carries
// that are illegal in an unquoted SQL identifier.
var archiveSanitizer = strings.NewReplacer(":", "_", "-", "_", ".", "_", "+", "_")

// ArchiveSuffix renders ts as an identifier-safe UTC timestamp for archive
// table names, e.g. deals_archive_2026_08_31T02_15_04Z.
func ArchiveSuffix(ts time.Time) string {
	return archiveSanitizer.Replace(ts.UTC().Format(time.RFC3339))
}

func archiveTableNames(ts time.Time) (string, string) {
	suffix := ArchiveSuffix(ts)
	return dealsTable + "_archive_" + suffix, salesTable + "_archive_" + suffix
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return page, limit
}

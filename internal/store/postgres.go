package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/bricked-up/brickscout/internal/db"
	"github.com/bricked-up/brickscout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	lego_id         TEXT NOT NULL,
	price           DOUBLE PRECISION NOT NULL,
	next_best_price DOUBLE PRECISION,
	discount        INTEGER,
	link            TEXT NOT NULL,
	merchant_link   TEXT,
	img_url         TEXT,
	comments        INTEGER NOT NULL DEFAULT 0,
	temperature     INTEGER NOT NULL DEFAULT 0,
	publication     BIGINT NOT NULL DEFAULT 0,
	expiration_date BIGINT
);

CREATE TABLE IF NOT EXISTS sales (
	id               TEXT NOT NULL,
	lego_id          TEXT NOT NULL,
	title            TEXT NOT NULL,
	price            DOUBLE PRECISION NOT NULL,
	img_url          TEXT,
	link             TEXT NOT NULL,
	publication_date BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (id, lego_id)
);

CREATE INDEX IF NOT EXISTS idx_deals_lego_id ON deals(lego_id);
CREATE INDEX IF NOT EXISTS idx_deals_publication ON deals(publication);
CREATE INDEX IF NOT EXISTS idx_deals_discount ON deals(discount);
CREATE INDEX IF NOT EXISTS idx_sales_lego_id ON sales(lego_id);
CREATE INDEX IF NOT EXISTS idx_sales_publication_date ON sales(publication_date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var dealColumnList = []string{
	"id", "title", "lego_id", "price", "next_best_price", "discount", "link",
	"merchant_link", "img_url", "comments", "temperature", "publication", "expiration_date",
}

var saleColumnList = []string{
	"id", "lego_id", "title", "price", "img_url", "link", "publication_date",
}

func (s *PostgresStore) InsertDeals(ctx context.Context, deals []model.Deal) error {
	rows := make([][]any, 0, len(deals))
	for _, d := range deals {
		rows = append(rows, []any{
			d.ID, d.Title, d.LegoID, d.Price, d.NextBestPrice, d.Discount, d.Link,
			d.MerchantLink, d.ImgURL, d.Comments, d.Temperature, d.Publication, d.ExpirationDate,
		})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        dealsTable,
		Columns:      dealColumnList,
		ConflictKeys: []string{"id"},
	}, rows)
	return err
}

func (s *PostgresStore) InsertSales(ctx context.Context, sales []model.Sale) error {
	rows := make([][]any, 0, len(sales))
	for _, sale := range sales {
		rows = append(rows, []any{
			sale.ID, sale.LegoID, sale.Title, sale.Price, sale.ImgURL, sale.Link, sale.PublicationDate,
		})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        salesTable,
		Columns:      saleColumnList,
		ConflictKeys: []string{"id", "lego_id"},
	}, rows)
	return err
}

// pgFilter renders the deal filter with $n placeholders.
func pgFilter(q Query, now time.Time) (string, []any) {
	var clauses []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch q.Preset {
	case PresetBestDiscount:
		clauses = append(clauses, "discount IS NOT NULL AND discount >= "+arg(MinDiscountPercent))
	case PresetMostCommented:
		clauses = append(clauses, "comments >= "+arg(MinComments))
	case PresetHotDeals:
		clauses = append(clauses, "temperature >= "+arg(MinTemperature))
	case PresetEndingSoon:
		clauses = append(clauses,
			"expiration_date IS NOT NULL AND expiration_date >= "+arg(now.Unix())+
				" AND expiration_date < "+arg(now.Add(EndingSoonWindow).Unix()))
	}
	if q.LegoID != "" {
		clauses = append(clauses, "lego_id = "+arg(q.LegoID))
	}
	if q.MinPrice != nil {
		clauses = append(clauses, "price >= "+arg(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		clauses = append(clauses, "price <= "+arg(*q.MaxPrice))
	}
	if q.Since != nil {
		clauses = append(clauses, "publication >= "+arg(*q.Since))
	}
	if q.Until != nil {
		clauses = append(clauses, "publication <= "+arg(*q.Until))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *PostgresStore) Deals(ctx context.Context, q Query) (*DealPage, error) {
	where, args := pgFilter(q, time.Now())

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deals`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "postgres: count deals")
	}

	page, limit := normalizePage(q.Page, q.Limit)
	query := fmt.Sprintf(`SELECT %s FROM deals%s%s LIMIT $%d OFFSET $%d`,
		strings.Join(dealColumnList, ", "), where, dealOrderSQL(q), len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query deals")
	}
	defer rows.Close()

	deals := []model.Deal{}
	for rows.Next() {
		var d model.Deal
		if err := rows.Scan(&d.ID, &d.Title, &d.LegoID, &d.Price, &d.NextBestPrice, &d.Discount,
			&d.Link, &d.MerchantLink, &d.ImgURL, &d.Comments, &d.Temperature, &d.Publication,
			&d.ExpirationDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan deal")
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate deals")
	}
	return &DealPage{Deals: deals, Total: total, Page: page, Limit: limit}, nil
}

func (s *PostgresStore) Sales(ctx context.Context, q SaleQuery) (*SalePage, error) {
	var clauses []string
	var args []any
	if q.LegoID != "" {
		args = append(args, q.LegoID)
		clauses = append(clauses, fmt.Sprintf("lego_id = $%d", len(args)))
	}
	if q.Since != nil {
		args = append(args, *q.Since)
		clauses = append(clauses, fmt.Sprintf("publication_date >= $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "postgres: count sales")
	}

	page, limit := normalizePage(q.Page, q.Limit)
	query := fmt.Sprintf(`SELECT %s FROM sales%s ORDER BY publication_date DESC LIMIT $%d OFFSET $%d`,
		strings.Join(saleColumnList, ", "), where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query sales")
	}
	defer rows.Close()

	sales := []model.Sale{}
	for rows.Next() {
		var sale model.Sale
		if err := rows.Scan(&sale.ID, &sale.LegoID, &sale.Title, &sale.Price,
			&sale.ImgURL, &sale.Link, &sale.PublicationDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sale")
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate sales")
	}
	return &SalePage{Sales: sales, Total: total, Page: page, Limit: limit}, nil
}

func (s *PostgresStore) SalesByLegoID(ctx context.Context, legoID string) ([]model.Sale, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lego_id, title, price, img_url, link, publication_date
		 FROM sales WHERE lego_id = $1 ORDER BY publication_date DESC`, legoID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: sales for %s", legoID)
	}
	defer rows.Close()

	var sales []model.Sale
	for rows.Next() {
		var sale model.Sale
		if err := rows.Scan(&sale.ID, &sale.LegoID, &sale.Title, &sale.Price,
			&sale.ImgURL, &sale.Link, &sale.PublicationDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sale")
		}
		sales = append(sales, sale)
	}
	return sales, eris.Wrap(rows.Err(), "postgres: iterate sales")
}

func (s *PostgresStore) DistinctLegoIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT lego_id FROM deals ORDER BY lego_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: distinct lego ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lego id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate lego ids")
}

func (s *PostgresStore) CountDeals(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deals`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count deals")
}

func (s *PostgresStore) CountSales(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count sales")
}

func (s *PostgresStore) Archive(ctx context.Context, ts time.Time) error {
	dealsArchive, salesArchive := archiveTableNames(ts)
	if err := s.archiveTable(ctx, dealsTable, dealsArchive); err != nil {
		return err
	}
	return s.archiveTable(ctx, salesTable, salesArchive)
}

func (s *PostgresStore) archiveTable(ctx context.Context, from, to string) error {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+from).Scan(&n); err != nil {
		return eris.Wrapf(err, "postgres: count %s before archive", from)
	}
	if n == 0 {
		return nil
	}
	sql := fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM %s`,
		pgx.Identifier{to}.Sanitize(), pgx.Identifier{from}.Sanitize())
	_, err := s.pool.Exec(ctx, sql)
	return eris.Wrapf(err, "postgres: archive %s into %s", from, to)
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM deals`); err != nil {
		return eris.Wrap(err, "postgres: clear deals")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM sales`)
	return eris.Wrap(err, "postgres: clear sales")
}

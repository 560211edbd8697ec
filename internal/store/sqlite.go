package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/bricked-up/brickscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	lego_id         TEXT NOT NULL,
	price           REAL NOT NULL,
	next_best_price REAL,
	discount        INTEGER,
	link            TEXT NOT NULL,
	merchant_link   TEXT,
	img_url         TEXT,
	comments        INTEGER NOT NULL DEFAULT 0,
	temperature     INTEGER NOT NULL DEFAULT 0,
	publication     INTEGER NOT NULL DEFAULT 0,
	expiration_date INTEGER
);

CREATE TABLE IF NOT EXISTS sales (
	id               TEXT NOT NULL,
	lego_id          TEXT NOT NULL,
	title            TEXT NOT NULL,
	price            REAL NOT NULL,
	img_url          TEXT,
	link             TEXT NOT NULL,
	publication_date INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (id, lego_id)
);

CREATE INDEX IF NOT EXISTS idx_deals_lego_id ON deals(lego_id);
CREATE INDEX IF NOT EXISTS idx_deals_publication ON deals(publication);
CREATE INDEX IF NOT EXISTS idx_deals_discount ON deals(discount);
CREATE INDEX IF NOT EXISTS idx_sales_lego_id ON sales(lego_id);
CREATE INDEX IF NOT EXISTS idx_sales_publication_date ON sales(publication_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertDeals(ctx context.Context, deals []model.Deal) error {
	if len(deals) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert deals")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deals (id, title, lego_id, price, next_best_price, discount, link,
			merchant_link, img_url, comments, temperature, publication, expiration_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, lego_id = excluded.lego_id, price = excluded.price,
			next_best_price = excluded.next_best_price, discount = excluded.discount,
			link = excluded.link, merchant_link = excluded.merchant_link,
			img_url = excluded.img_url, comments = excluded.comments,
			temperature = excluded.temperature, publication = excluded.publication,
			expiration_date = excluded.expiration_date`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert deals")
	}
	defer stmt.Close()

	for _, d := range deals {
		if _, err := stmt.ExecContext(ctx,
			d.ID, d.Title, d.LegoID, d.Price, d.NextBestPrice, d.Discount, d.Link,
			d.MerchantLink, d.ImgURL, d.Comments, d.Temperature, d.Publication, d.ExpirationDate,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert deal %s", d.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert deals")
}

func (s *SQLiteStore) InsertSales(ctx context.Context, sales []model.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert sales")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sales (id, lego_id, title, price, img_url, link, publication_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, lego_id) DO UPDATE SET
			title = excluded.title, price = excluded.price, img_url = excluded.img_url,
			link = excluded.link, publication_date = excluded.publication_date`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert sales")
	}
	defer stmt.Close()

	for _, sale := range sales {
		if _, err := stmt.ExecContext(ctx,
			sale.ID, sale.LegoID, sale.Title, sale.Price, sale.ImgURL, sale.Link, sale.PublicationDate,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert sale %s/%s", sale.ID, sale.LegoID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert sales")
}

// dealFilterSQL translates q into a WHERE clause with ? placeholders.
func dealFilterSQL(q Query, now time.Time) (string, []any) {
	where := ` WHERE 1=1`
	var args []any

	switch q.Preset {
	case PresetBestDiscount:
		where += ` AND discount IS NOT NULL AND discount >= ?`
		args = append(args, MinDiscountPercent)
	case PresetMostCommented:
		where += ` AND comments >= ?`
		args = append(args, MinComments)
	case PresetHotDeals:
		where += ` AND temperature >= ?`
		args = append(args, MinTemperature)
	case PresetEndingSoon:
		where += ` AND expiration_date IS NOT NULL AND expiration_date >= ? AND expiration_date < ?`
		args = append(args, now.Unix(), now.Add(EndingSoonWindow).Unix())
	}

	if q.LegoID != "" {
		where += ` AND lego_id = ?`
		args = append(args, q.LegoID)
	}
	if q.MinPrice != nil {
		where += ` AND price >= ?`
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where += ` AND price <= ?`
		args = append(args, *q.MaxPrice)
	}
	if q.Since != nil {
		where += ` AND publication >= ?`
		args = append(args, *q.Since)
	}
	if q.Until != nil {
		where += ` AND publication <= ?`
		args = append(args, *q.Until)
	}
	return where, args
}

// dealOrderSQL picks the ORDER BY clause. Preset queries default to ordering
// by their own threshold column, mirroring what callers expect of them.
func dealOrderSQL(q Query) string {
	dir := "DESC"
	if q.Asc {
		dir = "ASC"
	}
	switch q.Sort {
	case SortPrice:
		return ` ORDER BY price ` + dir
	case SortDate:
		return ` ORDER BY publication ` + dir
	case SortRelevance:
		// Relevance is computed after the rows leave the store; a stable
		// date order keeps pagination deterministic underneath it.
		return ` ORDER BY publication ` + dir
	}
	switch q.Preset {
	case PresetBestDiscount:
		return ` ORDER BY discount ` + dir
	case PresetMostCommented:
		return ` ORDER BY comments ` + dir
	case PresetHotDeals:
		return ` ORDER BY temperature ` + dir
	case PresetEndingSoon:
		return ` ORDER BY expiration_date ` + dir
	}
	return ` ORDER BY publication ` + dir
}

const dealColumns = `id, title, lego_id, price, next_best_price, discount, link,
	merchant_link, img_url, comments, temperature, publication, expiration_date`

func (s *SQLiteStore) Deals(ctx context.Context, q Query) (*DealPage, error) {
	where, args := dealFilterSQL(q, time.Now())

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deals`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count deals")
	}

	page, limit := normalizePage(q.Page, q.Limit)
	query := `SELECT ` + dealColumns + ` FROM deals` + where + dealOrderSQL(q) + ` LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query deals")
	}
	defer rows.Close()

	deals := []model.Deal{}
	for rows.Next() {
		var d model.Deal
		if err := rows.Scan(&d.ID, &d.Title, &d.LegoID, &d.Price, &d.NextBestPrice, &d.Discount,
			&d.Link, &d.MerchantLink, &d.ImgURL, &d.Comments, &d.Temperature, &d.Publication,
			&d.ExpirationDate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan deal")
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate deals")
	}
	return &DealPage{Deals: deals, Total: total, Page: page, Limit: limit}, nil
}

func (s *SQLiteStore) Sales(ctx context.Context, q SaleQuery) (*SalePage, error) {
	where := ` WHERE 1=1`
	var args []any
	if q.LegoID != "" {
		where += ` AND lego_id = ?`
		args = append(args, q.LegoID)
	}
	if q.Since != nil {
		where += ` AND publication_date >= ?`
		args = append(args, *q.Since)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count sales")
	}

	page, limit := normalizePage(q.Page, q.Limit)
	query := `SELECT id, lego_id, title, price, img_url, link, publication_date FROM sales` +
		where + ` ORDER BY publication_date DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query sales")
	}
	defer rows.Close()

	sales := []model.Sale{}
	for rows.Next() {
		var sale model.Sale
		if err := rows.Scan(&sale.ID, &sale.LegoID, &sale.Title, &sale.Price,
			&sale.ImgURL, &sale.Link, &sale.PublicationDate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sale")
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate sales")
	}
	return &SalePage{Sales: sales, Total: total, Page: page, Limit: limit}, nil
}

func (s *SQLiteStore) SalesByLegoID(ctx context.Context, legoID string) ([]model.Sale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lego_id, title, price, img_url, link, publication_date
		 FROM sales WHERE lego_id = ? ORDER BY publication_date DESC`, legoID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: sales for %s", legoID)
	}
	defer rows.Close()

	var sales []model.Sale
	for rows.Next() {
		var sale model.Sale
		if err := rows.Scan(&sale.ID, &sale.LegoID, &sale.Title, &sale.Price,
			&sale.ImgURL, &sale.Link, &sale.PublicationDate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sale")
		}
		sales = append(sales, sale)
	}
	return sales, eris.Wrap(rows.Err(), "sqlite: iterate sales")
}

func (s *SQLiteStore) DistinctLegoIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT lego_id FROM deals ORDER BY lego_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: distinct lego ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lego id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate lego ids")
}

func (s *SQLiteStore) CountDeals(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deals`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count deals")
}

func (s *SQLiteStore) CountSales(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count sales")
}

func (s *SQLiteStore) Archive(ctx context.Context, ts time.Time) error {
	dealsArchive, salesArchive := archiveTableNames(ts)
	if err := s.archiveTable(ctx, dealsTable, dealsArchive); err != nil {
		return err
	}
	return s.archiveTable(ctx, salesTable, salesArchive)
}

func (s *SQLiteStore) archiveTable(ctx context.Context, from, to string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+from).Scan(&n); err != nil {
		return eris.Wrapf(err, "sqlite: count %s before archive", from)
	}
	if n == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %q AS SELECT * FROM %s`, to, from))
	return eris.Wrapf(err, "sqlite: archive %s into %s", from, to)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deals`); err != nil {
		return eris.Wrap(err, "sqlite: clear deals")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sales`)
	return eris.Wrap(err, "sqlite: clear sales")
}

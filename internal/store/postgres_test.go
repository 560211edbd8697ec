package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricked-up/brickscout/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_InsertDeals(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_deals"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_deals"}, dealColumnList).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "deals"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := st.InsertDeals(context.Background(), []model.Deal{testDeal("1", "43230")})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertSales(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_sales"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_sales"}, saleColumnList).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "sales"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	err := st.InsertSales(context.Background(), []model.Sale{
		testSale("101", "43230", 45.5),
		testSale("102", "43230", 39.0),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Deals(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM deals`).
		WithArgs("43230").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, title, lego_id, .+ FROM deals WHERE lego_id = \$1`).
		WithArgs("43230", 100, 0).
		WillReturnRows(pgxmock.NewRows(dealColumnList).AddRow(
			"1", "LEGO 43230 Set", "43230", 49.99, nil, nil,
			"https://www.dealabs.com/bons-plans/1", "", "", 0, 0, int64(1714000000), nil,
		))

	page, err := st.Deals(context.Background(), Query{LegoID: "43230"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Deals, 1)
	assert.Equal(t, "43230", page.Deals[0].LegoID)
	assert.Nil(t, page.Deals[0].Discount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DistinctLegoIDs(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT DISTINCT lego_id FROM deals`).
		WillReturnRows(pgxmock.NewRows([]string{"lego_id"}).AddRow("10311").AddRow("43230"))

	ids, err := st.DistinctLegoIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"10311", "43230"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ArchiveSkipsEmptyAndSnapshotsFull(t *testing.T) {
	st, mock := newMockPostgres(t)
	ts := time.Date(2026, 8, 31, 2, 15, 4, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM deals`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(`CREATE TABLE "deals_archive_2026_08_31T02_15_04Z" AS SELECT \* FROM "deals"`).
		WillReturnResult(pgxmock.NewResult("SELECT", 3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sales`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	require.NoError(t, st.Archive(context.Background(), ts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Clear(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec(`DELETE FROM deals`).WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`DELETE FROM sales`).WillReturnResult(pgxmock.NewResult("DELETE", 9))

	require.NoError(t, st.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS deals`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

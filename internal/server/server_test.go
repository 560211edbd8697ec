package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricked-up/brickscout/internal/config"
	"github.com/bricked-up/brickscout/internal/model"
	"github.com/bricked-up/brickscout/internal/scorer"
	"github.com/bricked-up/brickscout/internal/store"
)

// stubStore serves canned data and can be forced to fail.
type stubStore struct {
	deals []model.Deal
	sales []model.Sale
	fail  bool
}

func (s *stubStore) InsertDeals(ctx context.Context, deals []model.Deal) error { return nil }
func (s *stubStore) InsertSales(ctx context.Context, sales []model.Sale) error { return nil }

func (s *stubStore) Deals(ctx context.Context, q store.Query) (*store.DealPage, error) {
	if s.fail {
		return nil, errors.New("connection refused to internal database host 10.0.0.7")
	}
	return &store.DealPage{Deals: s.deals, Total: len(s.deals), Page: 1, Limit: 100}, nil
}

func (s *stubStore) Sales(ctx context.Context, q store.SaleQuery) (*store.SalePage, error) {
	if s.fail {
		return nil, errors.New("boom")
	}
	out := s.sales
	if q.LegoID != "" {
		out = nil
		for _, sale := range s.sales {
			if sale.LegoID == q.LegoID {
				out = append(out, sale)
			}
		}
	}
	return &store.SalePage{Sales: out, Total: len(out), Page: 1, Limit: 100}, nil
}

func (s *stubStore) SalesByLegoID(ctx context.Context, legoID string) ([]model.Sale, error) {
	if s.fail {
		return nil, errors.New("boom")
	}
	var out []model.Sale
	for _, sale := range s.sales {
		if sale.LegoID == legoID {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *stubStore) DistinctLegoIDs(ctx context.Context) ([]string, error) { return nil, nil }
func (s *stubStore) CountDeals(ctx context.Context) (int, error)           { return len(s.deals), nil }
func (s *stubStore) CountSales(ctx context.Context) (int, error)           { return len(s.sales), nil }
func (s *stubStore) Archive(ctx context.Context, ts time.Time) error       { return nil }
func (s *stubStore) Clear(ctx context.Context) error                       { return nil }
func (s *stubStore) Migrate(ctx context.Context) error                     { return nil }
func (s *stubStore) Close() error                                          { return nil }

func testServer(t *testing.T, st store.Store) *httptest.Server {
	t.Helper()
	engine, err := scorer.New(config.ScorerConfig{
		DiscountWeight: 0.2, PopularityWeight: 0.2, FreshnessWeight: 0.15,
		ExpiryWeight: 0.05, HeatWeight: 0.1, ResalabilityWeight: 0.3,
		ProfitabilityWeight: 0.5, DemandWeight: 0.3, VelocityWeight: 0.2,
		MaxComments: 100, MaxAgeDays: 30, MaxTemperature: 500,
		MaxListings: 50, MaxWeeklySales: 10,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(New(st, engine).Router())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := testServer(t, &stubStore{})

	var body map[string]string
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestDealSearchScoresResults(t *testing.T) {
	now := time.Now().Unix()
	st := &stubStore{
		deals: []model.Deal{
			{ID: "1", Title: "LEGO 43230", LegoID: "43230", Price: 50, Publication: now},
		},
		sales: []model.Sale{
			{ID: "101", LegoID: "43230", Price: 75, PublicationDate: now},
		},
	}
	srv := testServer(t, st)

	var body dealSearchResponse
	code := getJSON(t, srv.URL+"/v1/deals/search", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Results, 1)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "43230", body.Results[0].LegoID)
	assert.InDelta(t, 0.5, body.Results[0].Scores.Profitability, 1e-9)
	assert.Greater(t, body.Results[0].Scores.Relevance, 0.0)
}

func TestDealSearchRelevanceSort(t *testing.T) {
	now := time.Now().Unix()
	st := &stubStore{
		deals: []model.Deal{
			{ID: "dull", LegoID: "11111", Price: 50, Publication: 0},
			{ID: "rich", LegoID: "43230", Price: 50, Publication: now},
		},
		sales: []model.Sale{
			{ID: "101", LegoID: "43230", Price: 100, PublicationDate: now},
		},
	}
	srv := testServer(t, st)

	var body dealSearchResponse
	code := getJSON(t, srv.URL+"/v1/deals/search?sort=relevance", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "rich", body.Results[0].ID)

	code = getJSON(t, srv.URL+"/v1/deals/search?sort=relevance&order=asc", &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dull", body.Results[0].ID)
}

func TestDealSearchRejectsBadParams(t *testing.T) {
	srv := testServer(t, &stubStore{})

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/deals/search?filter=nonsense", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/deals/search?sort=nonsense", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/deals/search?minPrice=abc", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/deals/search?since=abc", &body))
}

func TestDealSearchHidesInternalErrors(t *testing.T) {
	srv := testServer(t, &stubStore{fail: true})

	var body map[string]string
	code := getJSON(t, srv.URL+"/v1/deals/search", &body)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "search failed", body["error"])
	assert.NotContains(t, body["error"], "10.0.0.7", "raw store errors must not leak to clients")
}

func TestSaleSearch(t *testing.T) {
	st := &stubStore{sales: []model.Sale{
		{ID: "101", LegoID: "43230", Price: 45.5},
		{ID: "102", LegoID: "10311", Price: 60},
	}}
	srv := testServer(t, st)

	var body store.SalePage
	code := getJSON(t, srv.URL+"/v1/sales/search?legoId=43230", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Sales, 1)
	assert.Equal(t, "101", body.Sales[0].ID)
}

func TestSaleIndicators(t *testing.T) {
	st := &stubStore{sales: []model.Sale{
		{ID: "101", LegoID: "43230", Price: 40},
		{ID: "102", LegoID: "43230", Price: 60},
	}}
	srv := testServer(t, st)

	var body indicatorsResponse
	code := getJSON(t, srv.URL+"/v1/sales/43230/indicators", &body)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Stats.Ok)
	assert.Equal(t, 2, body.Stats.Count)
	assert.InDelta(t, 50.0, body.Stats.Average, 1e-9)
	assert.InDelta(t, 50.0, body.Stats.P50, 1e-9)
}

func TestSaleIndicatorsInvalidID(t *testing.T) {
	srv := testServer(t, &stubStore{})

	var body map[string]string
	code := getJSON(t, srv.URL+"/v1/sales/abc/indicators", &body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSaleIndicatorsNoData(t *testing.T) {
	srv := testServer(t, &stubStore{})

	var body indicatorsResponse
	code := getJSON(t, srv.URL+"/v1/sales/43230/indicators", &body)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, body.Stats.Ok)
}

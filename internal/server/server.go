// Package server exposes the catalog over a thin REST layer. All real
// logic lives in the store and the scorer; handlers only translate query
// parameters and shapes.
package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/bricked-up/brickscout/internal/model"
	"github.com/bricked-up/brickscout/internal/scorer"
	"github.com/bricked-up/brickscout/internal/store"
)

// Server serves read-only catalog queries.
type Server struct {
	store  store.Store
	engine *scorer.Engine
	log    *zap.Logger
}

// New creates a Server.
func New(st store.Store, engine *scorer.Engine) *Server {
	return &Server{
		store:  st,
		engine: engine,
		log:    zap.L().Named("server"),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/deals/search", s.handleDealSearch)
		r.Get("/sales/search", s.handleSaleSearch)
		r.Get("/sales/{legoID}/indicators", s.handleSaleIndicators)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dealSearchResponse keeps the Deal shape stable for clients; scores ride
// alongside, so retuning weights never breaks a consumer.
type dealSearchResponse struct {
	Results []model.ScoredDeal `json:"results"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
}

// handleDealSearch pages in publication order and scores the fetched page.
// With sort=relevance the re-ranking applies within the returned page, not
// across the whole filtered set; page boundaries stay stable between
// requests while weights are retuned.
func (s *Server) handleDealSearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseDealQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.store.Deals(r.Context(), q)
	if err != nil {
		s.log.Error("deal search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	scored := make([]model.ScoredDeal, 0, len(page.Deals))
	for _, d := range page.Deals {
		sales, err := s.store.SalesByLegoID(r.Context(), d.LegoID)
		if err != nil {
			s.log.Error("sales lookup failed", zap.String("lego_id", d.LegoID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "search failed")
			return
		}
		scored = append(scored, model.ScoredDeal{Deal: d, Scores: s.engine.Score(d, sales)})
	}

	if q.Sort == store.SortRelevance {
		sort.SliceStable(scored, func(i, j int) bool {
			if q.Asc {
				return scored[i].Scores.Relevance < scored[j].Scores.Relevance
			}
			return scored[i].Scores.Relevance > scored[j].Scores.Relevance
		})
	}

	writeJSON(w, http.StatusOK, dealSearchResponse{
		Results: scored,
		Total:   page.Total,
		Page:    page.Page,
		Limit:   page.Limit,
	})
}

func (s *Server) handleSaleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseSaleQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.store.Sales(r.Context(), q)
	if err != nil {
		s.log.Error("sale search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type indicatorsResponse struct {
	LegoID string           `json:"legoId"`
	Stats  model.PriceStats `json:"stats"`
}

func (s *Server) handleSaleIndicators(w http.ResponseWriter, r *http.Request) {
	legoID := chi.URLParam(r, "legoID")
	if !model.ValidLegoID(legoID) {
		writeError(w, http.StatusBadRequest, "invalid catalog id")
		return
	}

	sales, err := s.store.SalesByLegoID(r.Context(), legoID)
	if err != nil {
		s.log.Error("indicators lookup failed", zap.String("lego_id", legoID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, indicatorsResponse{
		LegoID: legoID,
		Stats:  scorer.Indicators(sales),
	})
}

func parseDealQuery(r *http.Request) (store.Query, error) {
	v := r.URL.Query()
	q := store.Query{
		Preset: store.Preset(v.Get("filter")),
		LegoID: v.Get("legoId"),
		Sort:   store.Sort(v.Get("sort")),
		Asc:    v.Get("order") == "asc",
	}

	switch q.Preset {
	case store.PresetNone, store.PresetBestDiscount, store.PresetMostCommented,
		store.PresetHotDeals, store.PresetEndingSoon:
	default:
		return store.Query{}, errBadParam("filter")
	}
	switch q.Sort {
	case "", store.SortPrice, store.SortDate, store.SortRelevance:
	default:
		return store.Query{}, errBadParam("sort")
	}

	var err error
	if q.MinPrice, err = floatParam(v.Get("minPrice")); err != nil {
		return store.Query{}, errBadParam("minPrice")
	}
	if q.MaxPrice, err = floatParam(v.Get("maxPrice")); err != nil {
		return store.Query{}, errBadParam("maxPrice")
	}
	if q.Since, err = intParam(v.Get("since")); err != nil {
		return store.Query{}, errBadParam("since")
	}
	if q.Until, err = intParam(v.Get("until")); err != nil {
		return store.Query{}, errBadParam("until")
	}
	q.Page, _ = strconv.Atoi(v.Get("page"))
	q.Limit, _ = strconv.Atoi(v.Get("limit"))
	return q, nil
}

func parseSaleQuery(r *http.Request) (store.SaleQuery, error) {
	v := r.URL.Query()
	q := store.SaleQuery{LegoID: v.Get("legoId")}

	var err error
	if q.Since, err = intParam(v.Get("since")); err != nil {
		return store.SaleQuery{}, errBadParam("since")
	}
	q.Page, _ = strconv.Atoi(v.Get("page"))
	q.Limit, _ = strconv.Atoi(v.Get("limit"))
	return q, nil
}

type paramError string

func (e paramError) Error() string { return "invalid parameter: " + string(e) }

func errBadParam(name string) error { return paramError(name) }

func floatParam(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func intParam(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

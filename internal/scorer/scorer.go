// Package scorer computes per-deal relevance from a deal's own signals and
// its linked resale observations. Everything is a pure function over
// (Deal, []Sale) so scoring can run on read or on write interchangeably.
package scorer

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bricked-up/brickscout/internal/config"
	"github.com/bricked-up/brickscout/internal/model"
)

// weightTolerance is how far each weight group may drift from summing to 1
// before the configuration is rejected.
const weightTolerance = 1e-6

// Weights holds the relevance blend and its sub-blend for resalability.
type Weights struct {
	Discount     float64
	Popularity   float64
	Freshness    float64
	Expiry       float64
	Heat         float64
	Resalability float64

	Profitability float64
	Demand        float64
	Velocity      float64
}

// Limits holds the saturation constants used to normalize raw signals.
type Limits struct {
	MaxComments    int
	MaxAgeDays     float64
	MaxTemperature float64
	MaxListings    int
	MaxWeeklySales int
}

// Engine scores deals. The zero Engine is not usable; construct with New.
type Engine struct {
	weights Weights
	limits  Limits
	now     func() time.Time
}

// New builds an Engine from configuration.
func New(cfg config.ScorerConfig) (*Engine, error) {
	w := Weights{
		Discount:      cfg.DiscountWeight,
		Popularity:    cfg.PopularityWeight,
		Freshness:     cfg.FreshnessWeight,
		Expiry:        cfg.ExpiryWeight,
		Heat:          cfg.HeatWeight,
		Resalability:  cfg.ResalabilityWeight,
		Profitability: cfg.ProfitabilityWeight,
		Demand:        cfg.DemandWeight,
		Velocity:      cfg.VelocityWeight,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	l := Limits{
		MaxComments:    cfg.MaxComments,
		MaxAgeDays:     cfg.MaxAgeDays,
		MaxTemperature: cfg.MaxTemperature,
		MaxListings:    cfg.MaxListings,
		MaxWeeklySales: cfg.MaxWeeklySales,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		weights: w,
		limits:  l,
		now:     time.Now,
	}, nil
}

// Validate checks that every weight is non-negative and that both blends
// sum to 1, which is what keeps the composite scores inside [0,1].
func (w Weights) Validate() error {
	for _, v := range []float64{
		w.Discount, w.Popularity, w.Freshness, w.Expiry, w.Heat, w.Resalability,
		w.Profitability, w.Demand, w.Velocity,
	} {
		if v < 0 {
			return eris.New("scorer: negative weight")
		}
	}
	relevanceSum := w.Discount + w.Popularity + w.Freshness + w.Expiry + w.Heat + w.Resalability
	if math.Abs(relevanceSum-1) > weightTolerance {
		return eris.Errorf("scorer: relevance weights sum to %.6f, want 1", relevanceSum)
	}
	resaleSum := w.Profitability + w.Demand + w.Velocity
	if math.Abs(resaleSum-1) > weightTolerance {
		return eris.Errorf("scorer: resalability weights sum to %.6f, want 1", resaleSum)
	}
	return nil
}

// Validate checks that every saturation constant is positive. Each one is
// a divisor during normalization, so a zero would push NaN through clamp01
// and into the composite scores.
func (l Limits) Validate() error {
	if l.MaxComments <= 0 {
		return eris.New("scorer: max comments must be positive")
	}
	if l.MaxAgeDays <= 0 {
		return eris.New("scorer: max age days must be positive")
	}
	if l.MaxTemperature <= 0 {
		return eris.New("scorer: max temperature must be positive")
	}
	if l.MaxListings <= 0 {
		return eris.New("scorer: max listings must be positive")
	}
	if l.MaxWeeklySales <= 0 {
		return eris.New("scorer: max weekly sales must be positive")
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

// Score computes the full bundle for one deal against its linked sales.
// Sales whose LegoID does not match the deal are ignored.
func (e *Engine) Score(deal model.Deal, sales []model.Sale) model.ScoreBundle {
	now := e.now()
	var b model.ScoreBundle

	if deal.Discount != nil {
		b.Discount = clamp01(float64(*deal.Discount) / 100)
	}
	b.Popularity = clamp01(float64(deal.Comments) / float64(e.limits.MaxComments))

	ageDays := now.Sub(time.Unix(deal.Publication, 0)).Hours() / 24
	b.Freshness = clamp01(1 - ageDays/e.limits.MaxAgeDays)

	b.Expiry = 1
	if deal.ExpirationDate != nil {
		exp := time.Unix(*deal.ExpirationDate, 0)
		if exp.After(now) && exp.Before(now.Add(7*24*time.Hour)) {
			b.Expiry = 0.5
		}
	}

	b.Heat = clamp01(float64(deal.Temperature) / e.limits.MaxTemperature)

	linked := linkedSales(deal.LegoID, sales)
	// Zero linked sales means zero resale evidence: profitability, demand
	// and velocity all read 0 rather than an optimistic default.
	if len(linked) > 0 {
		if avg, ok := Average(salePrices(linked)); ok && deal.Price > 0 {
			b.Profitability = clamp01((avg - deal.Price) / deal.Price)
		} else if deal.Price <= 0 {
			b.Profitability = 1
		}
		b.Demand = clamp01(float64(len(linked)) / float64(e.limits.MaxListings))

		weekAgo := now.Add(-7 * 24 * time.Hour).Unix()
		recent := 0
		for _, s := range linked {
			if s.PublicationDate >= weekAgo {
				recent++
			}
		}
		b.Velocity = clamp01(float64(recent) / float64(e.limits.MaxWeeklySales))
	}

	b.Resalability = e.weights.Profitability*b.Profitability +
		e.weights.Demand*b.Demand +
		e.weights.Velocity*b.Velocity

	b.Relevance = e.weights.Discount*b.Discount +
		e.weights.Popularity*b.Popularity +
		e.weights.Freshness*b.Freshness +
		e.weights.Expiry*b.Expiry +
		e.weights.Heat*b.Heat +
		e.weights.Resalability*b.Resalability

	return b
}

// ScoreAll scores a batch of deals against a shared sales pool.
func (e *Engine) ScoreAll(deals []model.Deal, sales []model.Sale) []model.ScoredDeal {
	byLego := make(map[string][]model.Sale)
	for _, s := range sales {
		byLego[s.LegoID] = append(byLego[s.LegoID], s)
	}
	out := make([]model.ScoredDeal, 0, len(deals))
	for _, d := range deals {
		out = append(out, model.ScoredDeal{
			Deal:   d,
			Scores: e.Score(d, byLego[d.LegoID]),
		})
	}
	return out
}

func linkedSales(legoID string, sales []model.Sale) []model.Sale {
	if legoID == "" {
		return nil
	}
	var linked []model.Sale
	for _, s := range sales {
		if s.LegoID == legoID {
			linked = append(linked, s)
		}
	}
	return linked
}

func salePrices(sales []model.Sale) []float64 {
	prices := make([]float64, 0, len(sales))
	for _, s := range sales {
		prices = append(prices, s.Price)
	}
	return prices
}

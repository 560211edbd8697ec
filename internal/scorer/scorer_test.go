package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricked-up/brickscout/internal/config"
	"github.com/bricked-up/brickscout/internal/model"
)

func testConfig() config.ScorerConfig {
	return config.ScorerConfig{
		DiscountWeight:      0.2,
		PopularityWeight:    0.2,
		FreshnessWeight:     0.15,
		ExpiryWeight:        0.05,
		HeatWeight:          0.1,
		ResalabilityWeight:  0.3,
		ProfitabilityWeight: 0.5,
		DemandWeight:        0.3,
		VelocityWeight:      0.2,
		MaxComments:         100,
		MaxAgeDays:          30,
		MaxTemperature:      500,
		MaxListings:         50,
		MaxWeeklySales:      10,
	}
}

var scoreNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testConfig())
	require.NoError(t, err)
	e.now = func() time.Time { return scoreNow }
	return e
}

func intPtr(i int) *int     { return &i }
func i64Ptr(i int64) *int64 { return &i }

func baseDeal() model.Deal {
	return model.Deal{
		ID:          "1",
		Title:       "LEGO 43230",
		LegoID:      "43230",
		Price:       50,
		Publication: scoreNow.Unix(),
	}
}

func linkedSale(price float64, age time.Duration) model.Sale {
	return model.Sale{
		ID:              "s",
		LegoID:          "43230",
		Price:           price,
		PublicationDate: scoreNow.Add(-age).Unix(),
	}
}

func TestWeightsValidate(t *testing.T) {
	w := Weights{
		Discount: 0.2, Popularity: 0.2, Freshness: 0.15, Expiry: 0.05, Heat: 0.1, Resalability: 0.3,
		Profitability: 0.5, Demand: 0.3, Velocity: 0.2,
	}
	require.NoError(t, w.Validate())

	bad := w
	bad.Discount = 0.5
	require.Error(t, bad.Validate())

	neg := w
	neg.Heat = -0.1
	neg.Discount = 0.4
	require.Error(t, neg.Validate())

	badResale := w
	badResale.Velocity = 0.4
	require.Error(t, badResale.Validate())
}

func TestScoreZeroSales(t *testing.T) {
	e := testEngine(t)

	b := e.Score(baseDeal(), nil)
	assert.Zero(t, b.Profitability)
	assert.Zero(t, b.Demand)
	assert.Zero(t, b.Velocity)
	assert.Zero(t, b.Resalability)
	assert.False(t, b.Relevance != b.Relevance, "relevance must not be NaN")
}

func TestScoreSubScores(t *testing.T) {
	e := testEngine(t)

	d := baseDeal()
	d.Discount = intPtr(25)
	d.Comments = 50
	d.Temperature = 250
	d.Publication = scoreNow.Add(-15 * 24 * time.Hour).Unix()

	sales := []model.Sale{
		linkedSale(70, 2*24*time.Hour),
		linkedSale(80, 10*24*time.Hour),
	}

	b := e.Score(d, sales)
	assert.InDelta(t, 0.25, b.Discount, 1e-9)
	assert.InDelta(t, 0.5, b.Popularity, 1e-9)
	assert.InDelta(t, 0.5, b.Freshness, 1e-9)
	assert.InDelta(t, 0.5, b.Heat, 1e-9)
	assert.Equal(t, 1.0, b.Expiry)
	// avg resale 75 against price 50: +50% profit.
	assert.InDelta(t, 0.5, b.Profitability, 1e-9)
	assert.InDelta(t, 2.0/50, b.Demand, 1e-9)
	// one sale inside the last week against a weekly cap of ten.
	assert.InDelta(t, 0.1, b.Velocity, 1e-9)

	wantResale := 0.5*0.5 + 0.3*(2.0/50) + 0.2*0.1
	assert.InDelta(t, wantResale, b.Resalability, 1e-9)
	wantRelevance := 0.2*0.25 + 0.2*0.5 + 0.15*0.5 + 0.05*1 + 0.1*0.5 + 0.3*wantResale
	assert.InDelta(t, wantRelevance, b.Relevance, 1e-9)
}

func TestScoreExpiryPenalty(t *testing.T) {
	e := testEngine(t)

	soon := baseDeal()
	soon.ExpirationDate = i64Ptr(scoreNow.Add(48 * time.Hour).Unix())
	assert.Equal(t, 0.5, e.Score(soon, nil).Expiry)

	far := baseDeal()
	far.ExpirationDate = i64Ptr(scoreNow.Add(30 * 24 * time.Hour).Unix())
	assert.Equal(t, 1.0, e.Score(far, nil).Expiry)

	expired := baseDeal()
	expired.ExpirationDate = i64Ptr(scoreNow.Add(-time.Hour).Unix())
	assert.Equal(t, 1.0, e.Score(expired, nil).Expiry)
}

func TestScoreClamping(t *testing.T) {
	e := testEngine(t)

	d := baseDeal()
	d.Discount = intPtr(150)
	d.Comments = 100000
	d.Temperature = 100000
	d.Publication = scoreNow.Add(-365 * 24 * time.Hour).Unix()

	// Resale prices far above the deal price push profitability past the cap.
	sales := make([]model.Sale, 0, 200)
	for range 200 {
		sales = append(sales, linkedSale(500, time.Hour))
	}

	b := e.Score(d, sales)
	assert.Equal(t, 1.0, b.Discount)
	assert.Equal(t, 1.0, b.Popularity)
	assert.Equal(t, 0.0, b.Freshness)
	assert.Equal(t, 1.0, b.Heat)
	assert.Equal(t, 1.0, b.Profitability)
	assert.Equal(t, 1.0, b.Demand)
	assert.Equal(t, 1.0, b.Velocity)
	assert.Equal(t, 1.0, b.Resalability)
	assert.LessOrEqual(t, b.Relevance, 1.0)
	assert.GreaterOrEqual(t, b.Relevance, 0.0)
}

func TestScoreUnprofitableClampsToZero(t *testing.T) {
	e := testEngine(t)

	d := baseDeal()
	sales := []model.Sale{linkedSale(20, time.Hour)}
	b := e.Score(d, sales)
	assert.Zero(t, b.Profitability)
}

func TestScoreIgnoresUnlinkedSales(t *testing.T) {
	e := testEngine(t)

	other := linkedSale(500, time.Hour)
	other.LegoID = "99999"
	b := e.Score(baseDeal(), []model.Sale{other})
	assert.Zero(t, b.Demand)
}

func TestScoreRelevanceBoundsAtExtremes(t *testing.T) {
	e := testEngine(t)

	// All signals at their floor.
	dead := model.Deal{LegoID: "43230", Price: 50, Publication: 0}
	low := e.Score(dead, nil)
	assert.GreaterOrEqual(t, low.Relevance, 0.0)
	assert.LessOrEqual(t, low.Relevance, 1.0)

	// Only the expiry term contributes for a signal-free deal.
	assert.InDelta(t, 0.05, low.Relevance, 1e-9)
}

func TestScoreAll(t *testing.T) {
	e := testEngine(t)

	deals := []model.Deal{baseDeal(), {ID: "2", LegoID: "10311", Price: 30, Publication: scoreNow.Unix()}}
	sales := []model.Sale{linkedSale(70, time.Hour)}

	scored := e.ScoreAll(deals, sales)
	require.Len(t, scored, 2)
	assert.Greater(t, scored[0].Scores.Profitability, 0.0)
	assert.Zero(t, scored[1].Scores.Profitability)
}

func TestNewRejectsBadWeights(t *testing.T) {
	cfg := testConfig()
	cfg.ResalabilityWeight = 0.9
	_, err := New(cfg)
	require.Error(t, err)
}

func TestLimitsValidate(t *testing.T) {
	l := Limits{MaxComments: 100, MaxAgeDays: 30, MaxTemperature: 500, MaxListings: 50, MaxWeeklySales: 10}
	require.NoError(t, l.Validate())

	for name, mutate := range map[string]func(*Limits){
		"comments":     func(l *Limits) { l.MaxComments = 0 },
		"age":          func(l *Limits) { l.MaxAgeDays = 0 },
		"temperature":  func(l *Limits) { l.MaxTemperature = -1 },
		"listings":     func(l *Limits) { l.MaxListings = 0 },
		"weekly sales": func(l *Limits) { l.MaxWeeklySales = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			bad := l
			mutate(&bad)
			require.Error(t, bad.Validate())
		})
	}
}

func TestNewRejectsZeroSaturationLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxComments = 0
	_, err := New(cfg)
	require.Error(t, err, "a zero divisor would turn popularity into NaN")
}

package scorer

import (
	"math"
	"sort"

	"github.com/bricked-up/brickscout/internal/model"
)

// Average returns the mean of the valid prices. Prices that are negative,
// NaN or infinite are excluded. ok is false when nothing valid remains.
func Average(prices []float64) (avg float64, ok bool) {
	var sum float64
	var n int
	for _, p := range prices {
		if !validPrice(p) {
			continue
		}
		sum += p
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Percentile computes the q-th percentile (0-100) of prices by linear
// interpolation between closest ranks. ok is false for empty input.
func Percentile(prices []float64, q float64) (value float64, ok bool) {
	valid := make([]float64, 0, len(prices))
	for _, p := range prices {
		if validPrice(p) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return 0, false
	}
	sort.Float64s(valid)

	pos := float64(len(valid)-1) * q / 100
	base := int(math.Floor(pos))
	remainder := pos - float64(base)
	if base+1 < len(valid) {
		return valid[base] + remainder*(valid[base+1]-valid[base]), true
	}
	return valid[base], true
}

// Indicators summarizes a resale price distribution for display.
func Indicators(sales []model.Sale) model.PriceStats {
	prices := salePrices(sales)
	avg, ok := Average(prices)
	if !ok {
		return model.PriceStats{}
	}

	stats := model.PriceStats{Ok: true, Average: avg}
	for _, p := range prices {
		if validPrice(p) {
			stats.Count++
		}
	}
	stats.P5, _ = Percentile(prices, 5)
	stats.P25, _ = Percentile(prices, 25)
	stats.P50, _ = Percentile(prices, 50)
	stats.P95, _ = Percentile(prices, 95)
	stats.P99, _ = Percentile(prices, 99)
	return stats
}

// ProfitabilityPercent ranks one resale listing against one deal price,
// as a percentage rounded to two decimals. ok is false when dealPrice is
// not positive.
func ProfitabilityPercent(dealPrice, salePrice float64) (pct float64, ok bool) {
	if dealPrice <= 0 || !validPrice(salePrice) {
		return 0, false
	}
	raw := (salePrice - dealPrice) / dealPrice * 100
	return math.Round(raw*100) / 100, true
}

func validPrice(p float64) bool {
	return p >= 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

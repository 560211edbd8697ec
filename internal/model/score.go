package model

// ScoreBundle holds the per-deal normalized sub-scores and the composite
// relevance score. It is derived state: always recomputed from the current
// Deal and its linked Sales, never persisted as source of truth.
type ScoreBundle struct {
	Discount      float64 `json:"discountScore"`
	Popularity    float64 `json:"popularityScore"`
	Freshness     float64 `json:"freshnessScore"`
	Expiry        float64 `json:"expiryScore"`
	Heat          float64 `json:"heatScore"`
	Profitability float64 `json:"profitabilityScore"`
	Demand        float64 `json:"demandScore"`
	Velocity      float64 `json:"velocityScore"`
	Resalability  float64 `json:"resalabilityScore"`
	Relevance     float64 `json:"relevanceScore"`
}

// ScoredDeal pairs a Deal with its computed scores for query responses.
type ScoredDeal struct {
	Deal
	Scores ScoreBundle `json:"scores"`
}

// PriceStats summarizes the resale price distribution for one catalog id.
// Ok is false when there was no usable price data; the numeric fields are
// then meaningless and must not be rendered.
type PriceStats struct {
	Ok      bool    `json:"ok"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	P5      float64 `json:"p5"`
	P25     float64 `json:"p25"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
}

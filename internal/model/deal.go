// Package model holds the canonical catalog records shared by the
// crawlers, the store and the scorer.
package model

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"regexp"
)

// Deal is a promotional listing for a LEGO set on the deal-sharing source.
// A Deal is immutable for the lifetime of its refresh generation.
type Deal struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	LegoID         string   `json:"legoId"`
	Price          float64  `json:"price"`
	NextBestPrice  *float64 `json:"nextBestPrice,omitempty"`
	Discount       *int     `json:"discount,omitempty"`
	Link           string   `json:"link"`
	MerchantLink   string   `json:"merchantLink,omitempty"`
	ImgURL         string   `json:"imgUrl,omitempty"`
	Comments       int      `json:"comments"`
	Temperature    int      `json:"temperature"`
	Publication    int64    `json:"publication"`
	ExpirationDate *int64   `json:"expirationDate,omitempty"`
}

// Candidate is a pre-filter parse result. The parser emits candidates even
// when no catalog identifier was found; dropping those is the crawler's job,
// which keeps the extraction pattern testable in isolation.
type Candidate struct {
	SourceID       string
	Title          string
	LegoID         string
	Price          float64
	NextBestPrice  *float64
	Link           string
	MerchantLink   string
	ImgURL         string
	Comments       int
	Temperature    int
	Publication    int64
	ExpirationDate *int64
}

var legoIDPattern = regexp.MustCompile(`\b(\d{5})\b`)

// ExtractLegoID recovers the catalog identifier from a listing title.
// The first five-digit run wins; an empty string means no match.
func ExtractLegoID(title string) string {
	m := legoIDPattern.FindStringSubmatch(title)
	if m == nil {
		return ""
	}
	return m[1]
}

// Discount derives the rounded discount percentage from a price pair.
// It returns nil when the reference price is absent or non-positive, so a
// missing reference can never surface as NaN or Inf downstream.
func Discount(price float64, nextBestPrice *float64) *int {
	if nextBestPrice == nil || *nextBestPrice <= 0 {
		return nil
	}
	d := int(math.Round(100 * (1 - price / *nextBestPrice)))
	return &d
}

// ContentID returns a deterministic identifier for records whose source
// does not provide a stable one.
func ContentID(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:24]
}

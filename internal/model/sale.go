package model

import (
	"regexp"
)

// Sale is a resale-marketplace observation for a given catalog identifier.
// The whole Sale set for a legoId is replaced on every refresh; there is no
// incremental merge.
type Sale struct {
	ID              string  `json:"id"`
	LegoID          string  `json:"legoId"`
	Title           string  `json:"title"`
	Price           float64 `json:"price"`
	ImgURL          string  `json:"imgUrl,omitempty"`
	Link            string  `json:"link"`
	PublicationDate int64   `json:"publicationDate"`
}

var listingURLID = regexp.MustCompile(`/items/(\d+)`)

// SaleID derives a stable identifier from a listing URL so re-scrapes of
// the same listing produce the same record id.
func SaleID(link string) string {
	if m := listingURLID.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ContentID(link)
}

// ValidLegoID loosely validates a catalog identifier: five digits.
func ValidLegoID(id string) bool {
	return legoIDPattern.MatchString(id)
}

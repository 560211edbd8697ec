// Package vinted crawls the resale marketplace's catalog API for sold-style
// listings of specific LEGO sets.
package vinted

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bricked-up/brickscout/internal/model"
)

// catalogPage mirrors the catalog endpoint envelope. Items are kept raw so
// one malformed item cannot sink the page.
type catalogPage struct {
	Items      []json.RawMessage `json:"items"`
	Pagination struct {
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

type catalogItem struct {
	ID             json.Number `json:"id"`
	Title          string      `json:"title"`
	URL            string      `json:"url"`
	TotalItemPrice flexPrice   `json:"total_item_price"`
	Price          flexPrice   `json:"price"`
	Photo          *struct {
		URL            string `json:"url"`
		HighResolution *struct {
			Timestamp int64 `json:"timestamp"`
		} `json:"high_resolution"`
	} `json:"photo"`
}

// flexPrice tolerates the three shapes the API has served over time: a bare
// number, a numeric string, and an object with an "amount" string.
type flexPrice struct {
	value float64
	ok    bool
}

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		return nil
	}
	if s[0] == '{' {
		var obj struct {
			Amount json.Number `json:"amount"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		if f, err := obj.Amount.Float64(); err == nil {
			p.value, p.ok = f, true
		}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return nil
	}
	if f, err := strconv.ParseFloat(num.String(), 64); err == nil {
		p.value, p.ok = f, true
	}
	return nil
}

// ParsePage decodes one catalog API response into sales tied to legoID,
// along with the total page count reported by the source. Malformed items
// are skipped; a malformed envelope is an error.
func ParsePage(payload []byte, legoID string) ([]model.Sale, int, error) {
	var page catalogPage
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, 0, eris.Wrap(err, "vinted: decode catalog page")
	}

	sales := make([]model.Sale, 0, len(page.Items))
	for _, raw := range page.Items {
		var item catalogItem
		if err := json.Unmarshal(raw, &item); err != nil {
			zap.L().Debug("vinted: skipping malformed item", zap.Error(err))
			continue
		}
		s := model.Sale{
			LegoID: legoID,
			Title:  item.Title,
			Link:   item.URL,
		}
		switch {
		case item.TotalItemPrice.ok:
			s.Price = item.TotalItemPrice.value
		case item.Price.ok:
			s.Price = item.Price.value
		}
		if item.Photo != nil {
			s.ImgURL = item.Photo.URL
			if item.Photo.HighResolution != nil {
				s.PublicationDate = item.Photo.HighResolution.Timestamp
			}
		}
		if id := item.ID.String(); id != "" && id != "0" {
			s.ID = id
		} else {
			s.ID = model.SaleID(item.URL)
		}
		if s.Title == "" && s.Link == "" {
			continue
		}
		sales = append(sales, s)
	}
	return sales, page.Pagination.TotalPages, nil
}

package vinted

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	payload := `{
		"items": [
			{
				"id": 4216796305,
				"title": "Lego 10311 Orchidée",
				"url": "https://www.vinted.fr/items/4216796305-lego-10311",
				"total_item_price": 45.5,
				"photo": {
					"url": "https://images.vinted.net/t/abc.jpg",
					"high_resolution": {"timestamp": 1714000000}
				}
			},
			{
				"id": 4216796306,
				"title": "LEGO 10311",
				"url": "https://www.vinted.fr/items/4216796306",
				"total_item_price": {"amount": "39.00", "currency_code": "EUR"}
			}
		],
		"pagination": {"total_pages": 3}
	}`

	sales, totalPages, err := ParsePage([]byte(payload), "10311")
	require.NoError(t, err)
	assert.Equal(t, 3, totalPages)
	require.Len(t, sales, 2)

	assert.Equal(t, "4216796305", sales[0].ID)
	assert.Equal(t, "10311", sales[0].LegoID)
	assert.Equal(t, 45.5, sales[0].Price)
	assert.Equal(t, "https://images.vinted.net/t/abc.jpg", sales[0].ImgURL)
	assert.Equal(t, int64(1714000000), sales[0].PublicationDate)

	assert.Equal(t, 39.0, sales[1].Price)
	assert.Empty(t, sales[1].ImgURL)
}

func TestParsePageSkipsMalformedItems(t *testing.T) {
	payload := `{
		"items": [
			{"id": "not-an-object-id", "title": 12345},
			{"id": 7, "title": "Lego 42151", "url": "https://www.vinted.fr/items/7", "total_item_price": "19.99"}
		],
		"pagination": {"total_pages": 1}
	}`

	sales, _, err := ParsePage([]byte(payload), "42151")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "7", sales[0].ID)
	assert.Equal(t, 19.99, sales[0].Price)
}

func TestParsePageDerivesIDFromURL(t *testing.T) {
	payload := `{
		"items": [{"title": "Lego 31058", "url": "https://www.vinted.fr/items/555000111-lego-31058", "price": 8}],
		"pagination": {"total_pages": 1}
	}`

	sales, _, err := ParsePage([]byte(payload), "31058")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "555000111", sales[0].ID)
	assert.Equal(t, 8.0, sales[0].Price)
}

func TestParsePageMalformedEnvelope(t *testing.T) {
	_, _, err := ParsePage([]byte(`<!DOCTYPE html><html>blocked</html>`), "10311")
	require.Error(t, err)
}

func TestParsePageEmpty(t *testing.T) {
	sales, totalPages, err := ParsePage([]byte(`{"items": [], "pagination": {"total_pages": 0}}`), "10311")
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.Zero(t, totalPages)
}

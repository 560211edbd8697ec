package dealabs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricked-up/brickscout/internal/fetcher"
)

func searchArticle(threadID int, legoID string) string {
	blob := fmt.Sprintf(
		`{"props":{"thread":{"threadId":%d,"title":"LEGO %s Set","price":49.99,"nextBestPrice":99.99,"link":"https://www.dealabs.com/bons-plans/%d"}}}`,
		threadID, legoID, threadID,
	)
	return articleWithBlob(blob)
}

func newTestFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1})
}

func TestCrawlStopsOnEmptyPage(t *testing.T) {
	pages := map[string]string{
		"1": fmt.Sprintf(pageShell, searchArticle(100, "43230")+searchArticle(101, "75367")),
		"2": fmt.Sprintf(pageShell, searchArticle(102, "10311")),
		"3": fmt.Sprintf(pageShell, ""),
	}
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		fmt.Fprint(w, pages[page])
	}))
	defer srv.Close()

	c := NewCrawler(newTestFetcher(), Options{BaseURL: srv.URL, Query: "lego", MaxPages: 10})
	deals, err := c.Crawl(context.Background())
	require.NoError(t, err)

	require.Len(t, deals, 3)
	assert.Equal(t, []string{"1", "2", "3"}, requested, "the walk must stop at the first empty page")
	assert.Equal(t, "100", deals[0].ID)
	assert.Equal(t, "43230", deals[0].LegoID)
	require.NotNil(t, deals[0].Discount)
	assert.Equal(t, 50, *deals[0].Discount)
}

func TestCrawlKeepsPartialBatchOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprintf(w, pageShell, searchArticle(200, "31058"))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewCrawler(newTestFetcher(), Options{BaseURL: srv.URL, MaxPages: 10})
	deals, err := c.Crawl(context.Background())
	require.Error(t, err)
	require.Len(t, deals, 1, "pages fetched before the failure survive")
	assert.Equal(t, "31058", deals[0].LegoID)
}

func TestCrawlFiltersNonCatalogListings(t *testing.T) {
	noID := articleWithBlob(`{"props":{"thread":{"threadId":300,"title":"Lego en vrac","price":5,"link":"https://www.dealabs.com/bons-plans/300"}}}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprintf(w, pageShell, noID+searchArticle(301, "21345"))
			return
		}
		fmt.Fprintf(w, pageShell, "")
	}))
	defer srv.Close()

	c := NewCrawler(newTestFetcher(), Options{BaseURL: srv.URL, MaxPages: 10})
	deals, err := c.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "21345", deals[0].LegoID)
}

func TestCrawlDeduplicatesAcrossPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1", "2":
			fmt.Fprintf(w, pageShell, searchArticle(400, "60337"))
		default:
			fmt.Fprintf(w, pageShell, "")
		}
	}))
	defer srv.Close()

	c := NewCrawler(newTestFetcher(), Options{BaseURL: srv.URL, MaxPages: 10})
	deals, err := c.Crawl(context.Background())
	require.NoError(t, err)
	assert.Len(t, deals, 1)
}

func TestCrawlRespectsPageCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every page has content; only the cap can stop the walk.
		fmt.Fprintf(w, pageShell, searchArticle(500, "10497"))
	}))
	defer srv.Close()

	c := NewCrawler(newTestFetcher(), Options{BaseURL: srv.URL, MaxPages: 3})
	deals, err := c.Crawl(context.Background())
	require.NoError(t, err)
	assert.Len(t, deals, 1)
}

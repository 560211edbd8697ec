package vinted

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"github.com/bricked-up/brickscout/internal/fetcher"
	"github.com/bricked-up/brickscout/internal/session"
)

// perPage is the largest page size the catalog endpoint honors.
const perPage = 96

// ClientOptions configures the catalog API client.
type ClientOptions struct {
	BaseURL string
	// BrandID narrows results to the LEGO brand on the marketplace.
	BrandID string
	Timeout time.Duration
}

// Client talks to the marketplace catalog API with a harvested session
// credential. The endpoint refuses requests without the anti-bot cookies.
type Client struct {
	http *resty.Client
	opts ClientOptions
}

// NewClient creates a catalog Client carrying cred on every request.
func NewClient(opts ClientOptions, cred *session.Credential) (*Client, error) {
	if cred == nil || cred.Cookie == "" {
		return nil, eris.New("vinted: credential required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "vinted: cookie jar")
	}

	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetCookieJar(jar).
		SetTimeout(opts.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2*time.Second).
		SetHeader("User-Agent", fetcher.BrowserUserAgent).
		SetHeader("Accept", "application/json, text/plain, */*").
		SetHeader("Cookie", cred.Cookie)
	if cred.CSRFToken != "" {
		c.SetHeader("X-CSRF-Token", cred.CSRFToken)
	}

	return &Client{http: c, opts: opts}, nil
}

// FetchPage retrieves one page of catalog results for legoID.
func (c *Client) FetchPage(ctx context.Context, legoID string, page int) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"page":        fmt.Sprintf("%d", page),
			"per_page":    fmt.Sprintf("%d", perPage),
			"time":        fmt.Sprintf("%d", time.Now().Unix()),
			"search_text": legoID,
			"brand_ids":   c.opts.BrandID,
		}).
		Get("/api/v2/catalog/items")
	if err != nil {
		return nil, eris.Wrapf(err, "vinted: fetch page %d for %s", page, legoID)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, eris.Errorf("vinted: status %d fetching page %d for %s", resp.StatusCode(), page, legoID)
	}
	return resp.Body(), nil
}

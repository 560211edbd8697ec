// Package session acquires the transport credential the resale source
// requires before it serves catalog data.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bricked-up/brickscout/internal/fetcher"
	"github.com/bricked-up/brickscout/internal/resilience"
)

// Credential is the opaque transport token attached to resale API requests.
type Credential struct {
	// Cookie is the serialized cookie header harvested from the browser jar.
	Cookie string
	// CSRFToken is the anti-forgery token exposed on the home page, when
	// present. Not all endpoints require it.
	CSRFToken string
}

// Provider yields a credential for one crawl run.
type Provider interface {
	Acquire(ctx context.Context) (*Credential, error)
}

// StaticProvider returns a fixed credential. Used for tests and for the
// config override that skips the browser step entirely.
type StaticProvider struct {
	Cookie string
}

func (p StaticProvider) Acquire(ctx context.Context) (*Credential, error) {
	if p.Cookie == "" {
		return nil, eris.New("session: empty static cookie")
	}
	return &Credential{Cookie: p.Cookie}, nil
}

// BrowserOptions configures the headless-browser visit.
type BrowserOptions struct {
	HomeURL    string
	Headless   bool
	BrowserBin string
	Timeout    time.Duration
}

// BrowserProvider drives a headless browser to the source's home page and
// harvests the resulting cookie jar. The anti-automation cookies the site
// sets during that visit are what make subsequent API calls acceptable.
type BrowserProvider struct {
	opts BrowserOptions
}

// NewBrowserProvider creates a BrowserProvider.
func NewBrowserProvider(opts BrowserOptions) *BrowserProvider {
	if opts.Timeout == 0 {
		opts.Timeout = 90 * time.Second
	}
	return &BrowserProvider{opts: opts}
}

func (p *BrowserProvider) Acquire(ctx context.Context) (*Credential, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("session", "acquire")
	return resilience.DoVal(ctx, cfg, p.acquireOnce)
}

func (p *BrowserProvider) acquireOnce(ctx context.Context) (*Credential, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(fetcher.BrowserUserAgent),
	)
	if p.opts.BrowserBin != "" {
		opts = append(opts, chromedp.ExecPath(p.opts.BrowserBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, p.opts.Timeout)
	defer cancelTimeout()

	var cookieHeader string
	var csrfToken string

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(p.opts.HomeURL),
		// Give the anti-bot scripts time to set their cookies.
		chromedp.Sleep(5*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().WithUrls([]string{p.opts.HomeURL}).Do(ctx)
			if err != nil {
				return err
			}
			parts := make([]string, 0, len(cookies))
			for _, c := range cookies {
				parts = append(parts, c.Name+"="+c.Value)
			}
			cookieHeader = strings.Join(parts, "; ")
			return nil
		}),
		chromedp.Evaluate(`(function() {
			var meta = document.querySelector('meta[name="csrf-token"]');
			return meta ? meta.content : "";
		})()`, &csrfToken),
	)
	if err != nil {
		return nil, eris.Wrap(err, "session: browser visit")
	}
	if cookieHeader == "" {
		return nil, eris.Errorf("session: no cookies harvested from %s", p.opts.HomeURL)
	}

	zap.L().Info("session acquired",
		zap.String("home_url", p.opts.HomeURL),
		zap.Int("cookie_header_len", len(cookieHeader)),
		zap.Bool("csrf_token", csrfToken != ""),
	)

	return &Credential{Cookie: cookieHeader, CSRFToken: csrfToken}, nil
}

// Cached wraps a Provider so the credential is acquired at most once per
// crawl run. Session churn is both slow and a tripwire for the source's
// anti-automation defenses.
func Cached(p Provider) Provider {
	return &cachedProvider{inner: p}
}

type cachedProvider struct {
	inner Provider

	mu   sync.Mutex
	cred *Credential
}

func (c *cachedProvider) Acquire(ctx context.Context) (*Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cred != nil {
		return c.cred, nil
	}
	cred, err := c.inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	c.cred = cred
	return cred, nil
}

package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/bricked-up/brickscout/internal/config"
	"github.com/bricked-up/brickscout/internal/scorer"
	"github.com/bricked-up/brickscout/internal/session"
	"github.com/bricked-up/brickscout/internal/store"
)

// openStore picks the backend from configuration and runs migrations.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DSN)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DSN, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newEngine builds the scoring engine from configuration.
func newEngine(cfg *config.Config) (*scorer.Engine, error) {
	return scorer.New(cfg.Scorer)
}

// sessionProvider picks the credential source: a config-injected cookie
// when present, the headless browser otherwise. Either way the credential
// is acquired at most once per run.
func sessionProvider(cfg *config.Config) session.Provider {
	if cfg.Vinted.Cookie != "" {
		return session.Cached(session.StaticProvider{Cookie: cfg.Vinted.Cookie})
	}
	return session.Cached(session.NewBrowserProvider(session.BrowserOptions{
		HomeURL:    cfg.Vinted.BaseURL,
		Headless:   cfg.Vinted.Headless,
		BrowserBin: cfg.Vinted.BrowserBin,
	}))
}

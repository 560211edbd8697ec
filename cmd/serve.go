package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bricked-up/brickscout/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the deal query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.New(st, engine).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("api listening", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return eris.Wrap(err, "api server")
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "shutting down api server")
		}
		zap.L().Info("api stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

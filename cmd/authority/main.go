// Package main provides a development authority: an in-memory server that
// accepts pushes from ledger devices, derives balances and serves pulls.
// Devices reach it on AUTHORITY_ADDR with tokens from `ledgersync token`.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kshitijomkar/ledger/internal/config"
	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/remote/authority"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(os.Stderr, logging.LogLevel(cfg.Log.Level), logging.Format(cfg.Log.Format))

	if cfg.Authority.JWTSecret == "" {
		return errors.New("AUTHORITY_JWT_SECRET is not set")
	}

	gin.SetMode(gin.ReleaseMode)
	store := authority.NewStore(cfg.Authority.PageSize)
	srv := &http.Server{
		Addr:              cfg.Authority.Addr,
		Handler:           authority.SetupRouter(authority.NewHandler(store), cfg.Authority.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Authority listening", map[string]interface{}{"addr": cfg.Authority.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logging.Info("Authority stopped")
	return nil
}

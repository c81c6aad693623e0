package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/statusfeed"
	"github.com/kshitijomkar/ledger/internal/sync/connectivity"
	"github.com/kshitijomkar/ledger/internal/sync/scheduler"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the ledger in sync and serve the status feed",
		Long: `Run the sync daemon. The authority's health endpoint is probed to
detect connectivity; a sync runs whenever the authority becomes reachable,
on every LEDGER_SYNC_INTERVAL while it stays reachable, and on request.

The status feed serves:
  GET  /api/v1/status      orchestrator and connectivity state
  POST /api/v1/sync        run a sync and return its result
  GET  /api/v1/conflicts   conflicts awaiting a decision
  GET  /ws                 live state and sync events`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = opts.Config.Feed.Addr
			}
			return runDaemon(cmd, opts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "status feed listen address (default LEDGER_FEED_ADDR)")
	return cmd
}

func runDaemon(cmd *cobra.Command, opts *RootOptions, addr string) error {
	cfg := opts.Config

	a, err := opts.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if n, err := a.queue.PendingCount(ctx); err == nil {
		a.observer.SetPendingCount(n)
	}

	hub := statusfeed.NewHub(cfg.Feed.AllowedOrigins)
	a.engine.SetEventHandler(hub)
	go hub.Run(ctx)
	go hub.Forward(ctx, a.observer)

	sched := scheduler.NewScheduler(a.engine, a.observer, a.queue, &scheduler.SchedulerConfig{
		SyncInterval: cfg.Sync.Interval,
		Retention:    cfg.Sync.Retention,
	})
	sched.Start(ctx)
	defer sched.Stop()

	prober := connectivity.NewProber(a.client, a.observer, cfg.Sync.ProbeInterval)
	go prober.Run(ctx)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           statusfeed.New(statusfeed.NewHandler(sched, a.engine), hub, cfg.Feed.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	logging.Info("Sync daemon started", map[string]interface{}{
		"feed_addr": listener.Addr().String(),
		"remote":    cfg.Remote.URL,
		"device_id": cfg.DeviceID,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Status feed listening on %s. Press Ctrl-C to stop.\n", listener.Addr())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "status feed stopped", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Status feed shutdown failed", err)
	}
	logging.Info("Sync daemon stopped")
	return nil
}

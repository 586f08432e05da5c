package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familyxp/internal/metrics"
	"github.com/dukerupert/familyxp/internal/points"
	"github.com/dukerupert/familyxp/internal/server"
	"github.com/dukerupert/familyxp/internal/sweep"
	ws "github.com/dukerupert/familyxp/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the expiry sweep",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, db, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	hub := ws.NewHub(logger.With("component", "websocket"))
	m := metrics.New(hub.ClientCount)

	svc, err := points.New(db, cfg, points.Options{
		Notifier: hub,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to build service", "error", err)
		return err
	}

	srv := server.New(svc, hub, m, cfg.Server, logger)

	sched := sweep.NewScheduler(svc, cfg.Approval.SweepInterval, logger)
	sched.Start(ctx)
	defer sched.Stop()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("familyxp listening", "addr", httpServer.Addr, "timezone", cfg.Server.Timezone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

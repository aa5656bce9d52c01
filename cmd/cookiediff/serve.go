package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/cookiediff/api"
	"github.com/use-agent/cookiediff/cache"
	"github.com/use-agent/cookiediff/metrics"
	"github.com/use-agent/cookiediff/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the comparison and results API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Listen host")
	serveCmd.Flags().IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "Listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	slog.Info("cookiediff starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"database", cfg.Store.Path,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("authentication enabled but no API keys configured; every protected request will be rejected")
	}

	// ── 1. Results database ─────────────────────────────────────────
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	// ── 2. Differences cache ────────────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Stop()

	// ── 3. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(cfg, api.Deps{
		Store:   st,
		Cache:   cc,
		Metrics: metrics.New(nil),
	}, startTime)

	// ── 4. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	// ── 5. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errc:
		return fmt.Errorf("HTTP server: %w", err)
	}

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	slog.Info("cookiediff stopped")
	return nil
}

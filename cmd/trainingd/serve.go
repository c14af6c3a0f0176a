package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quantumtrader/academy/internal/notify"
	"github.com/quantumtrader/academy/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the training page",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "Port to listen on (overrides TRAINING_SERVER_PORT, default 7555)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	loader, contentFS, err := newLoader(cfg.Content)
	if err != nil {
		return err
	}
	d, err := openDeps(ctx, cfg)
	if err != nil {
		slog.Error("failed to open progress storage", "driver", cfg.Storage.Driver, "error", err)
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			slog.Error("closing storage", "error", err)
		}
	}()
	checkManifest(ctx, loader)

	s := server.New(server.Config{
		Loader:      loader,
		Backend:     d.backend,
		Content:     contentFS,
		Events:      d.events,
		Hub:         notify.NewHub(),
		CORSOrigins: cfg.Server.CORSOrigins,
		MaxSessions: cfg.Server.MaxSessions,
		SessionIdle: cfg.Server.SessionIdle,
	})
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // progress streams stay open
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		return err
	}
	return nil
}

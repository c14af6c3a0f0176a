// Command trainingd serves the trading academy training page and tracks
// learner progress.
package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantumtrader/academy/content"
	"github.com/quantumtrader/academy/internal/course"
	"github.com/quantumtrader/academy/internal/platform/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "trainingd",
		Short:        "Trading academy training server",
		Long:         "trainingd serves the trading platform training course and records each learner's progress.",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("content", "", "Course directory (overrides TRAINING_CONTENT_DIR)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newExportCmd())
	return root
}

// loadConfig reads the environment, applies the persistent flags and
// configures the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dir, _ := cmd.Flags().GetString("content"); dir != "" {
		cfg.Content.Dir = dir
		cfg.Content.URL = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Log, cmd.ErrOrStderr()))
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// newLoader returns the course loader and, for local content, the file
// system served under /content.
func newLoader(cfg config.ContentConfig) (*course.Loader, fs.FS, error) {
	switch {
	case cfg.URL != "":
		f, err := course.NewHTTPFetcher(cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		return course.NewLoader(f), nil, nil
	case cfg.Dir != "":
		info, err := os.Stat(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("content directory: %w", err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("content directory: %s is not a directory", cfg.Dir)
		}
		fsys := os.DirFS(cfg.Dir)
		return course.NewLoader(course.NewFSFetcher(fsys)), fsys, nil
	}
	fsys := content.Course()
	return course.NewLoader(course.NewFSFetcher(fsys)), fsys, nil
}

// checkManifest logs whether the course manifest can be loaded. A broken
// manifest is not fatal; pages report it per learner.
func checkManifest(ctx context.Context, loader *course.Loader) {
	m, err := loader.Manifest(ctx)
	if err != nil {
		slog.Warn("course manifest unavailable", "error", err)
		return
	}
	slog.Info("course ready", "title", m.Title, "levels", len(m.Levels))
}

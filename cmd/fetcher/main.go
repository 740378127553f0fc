package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"covidcli/internal/config"
	"covidcli/internal/dataset"
)

func main() {
	outDir := flag.String("out", "", "base directory for the data layout (defaults to the executable directory)")
	url := flag.String("url", "", "dataset URL (defaults to the OWID compact CSV)")
	force := flag.Bool("force", false, "discard the fetch manifest and download in full")
	timeout := flag.Duration("timeout", 0, "fetch timeout (defaults to the configured value)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logger := newLogger(*verbose)
	slog.SetDefault(logger)

	cfg := config.Default()
	if *url != "" {
		cfg.Dataset.URL = *url
	}
	if *timeout > 0 {
		cfg.Dataset.FetchTimeout = *timeout
	}

	paths, err := resolvePaths(*outDir)
	if err != nil {
		logger.Error("failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("failed to create data directories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *force {
		if err := os.Remove(paths.FetchManifestJSON); err != nil && !os.IsNotExist(err) {
			logger.Error("failed to discard fetch manifest", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dataset.FetchTimeout)
	defer cancel()

	fetcher := dataset.NewFetcher(cfg.Dataset, paths, logger, nil)

	logger.Info("fetching dataset", slog.String("url", cfg.Dataset.URL))
	result, err := fetcher.Fetch(ctx)
	if err != nil {
		logger.Error("fetch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if result.Unchanged {
		fmt.Printf("Upstream unchanged, reusing %s\n", result.Path)
		return
	}
	fmt.Printf("Downloaded %.1f MB to %s in %s\n",
		float64(result.Bytes)/(1024*1024), result.Path, result.Duration.Round(time.Millisecond))
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func resolvePaths(outDir string) (*config.Paths, error) {
	if outDir != "" {
		return config.PathsAt(outDir), nil
	}
	return config.GetPaths()
}

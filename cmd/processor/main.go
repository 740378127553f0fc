package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"covidcli/internal/analytics"
	"covidcli/internal/config"
	"covidcli/internal/dataset"
	"covidcli/internal/exporter"
)

func main() {
	inPath := flag.String("in", "", "raw dataset CSV (defaults to data/raw/owid-covid-data.csv)")
	outDir := flag.String("out", "", "base directory for the data layout (defaults to the executable directory)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config.Default()

	var paths *config.Paths
	var err error
	if *outDir != "" {
		paths = config.PathsAt(*outDir)
	} else if paths, err = config.GetPaths(); err != nil {
		logger.Error("failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("failed to create data directories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	input := *inPath
	if input == "" {
		input = paths.RawDatasetCSV
	}
	if !config.FileExists(input) {
		logger.Error("raw dataset not found, run the fetcher first", slog.String("path", input))
		os.Exit(1)
	}

	ctx := context.Background()

	parser := dataset.NewParser(cfg.Dataset, logger)
	parser.OnProgress(func(rows int) {
		if rows%500000 == 0 {
			logger.Info("parsing", slog.Int("rows", rows))
		}
	})

	ds, err := parser.ParseFile(ctx, input)
	if err != nil {
		logger.Error("parse failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rowsParsed := len(ds.Records)

	analysis := exporter.NewAnalysisExporter(paths)
	if err := analysis.ExportProfile(analytics.Profile(ds)); err != nil {
		logger.Error("profile export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	result := dataset.NewCleaner().Clean(ds)
	records := append(result.Countries, result.Aggregates...)

	if err := exporter.NewCleanExporter(paths).ExportCleanData(ctx, records); err != nil {
		logger.Error("clean export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	filled := result.Stats.DailyCellsFilled + result.Stats.CumulativeCellsFilled
	fmt.Printf("Processed %d rows (%d country, %d aggregate), filled %d cells\n",
		rowsParsed, result.Stats.CountryRows, result.Stats.AggregateRows, filled)
	fmt.Printf("Clean dataset: %s\n", paths.CleanDataCSV)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"covidcli/internal/analytics"
	"covidcli/internal/charts"
	"covidcli/internal/config"
	"covidcli/internal/exporter"
	"covidcli/internal/operations"
	"covidcli/pkg/contracts/domain"
)

func main() {
	outDir := flag.String("out", "", "base directory for the data layout (defaults to the executable directory)")
	theme := flag.String("theme", "", "chart theme (defaults to the configured theme)")
	topN := flag.Int("top", 10, "number of locations per ranking chart")
	png := flag.Bool("png", false, "capture a PNG snapshot of each chart (needs a Chrome install)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *theme != "" {
		cfg.Charts.Theme = *theme
	}
	cfg.Charts.TopN = *topN

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

	in, err := loadInputs(paths, *topN)
	if err != nil {
		logger.Error("failed to load analysis artifacts, run the analyzer first",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	generator := charts.NewGenerator(cfg.Charts, paths, logger)
	tracker := operations.NewProgressTracker("render", charts.CatalogueSize())
	generator.OnProgress(func(done, total int) {
		tracker.Set(done, "")
		logger.Info("rendering", slog.String("progress", tracker.String()))
	})

	index, err := generator.RenderAll(ctx, in, nil)
	if err != nil {
		logger.Error("chart rendering failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("Generated %d charts in %s (%s)\n", len(index.Charts), paths.ChartsDir, tracker.Elapsed().Round(time.Millisecond))

	if *png {
		snapshotter := charts.NewSnapshotter(cfg.Charts, logger, nil)
		if err := snapshotter.SnapshotAll(ctx, index); err != nil {
			logger.Error("png snapshot capture failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("Captured %d PNG snapshots\n", len(index.Charts))
	}
}

// loadInputs reassembles the chart inputs from the analysis artifacts.
func loadInputs(paths *config.Paths, topN int) (*charts.RenderInputs, error) {
	snapshot, err := exporter.LoadSnapshot(paths.SnapshotCSV)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	trends, err := exporter.LoadGlobalTrends(paths.GlobalTrendsCSV)
	if err != nil {
		return nil, fmt.Errorf("load global trends: %w", err)
	}
	ds, err := exporter.LoadCleanData(paths.CleanDataCSV)
	if err != nil {
		return nil, fmt.Errorf("load clean data: %w", err)
	}
	var corr domain.CorrelationSnapshot
	if err := exporter.ReadJSON(paths.CorrelationsJSON, &corr); err != nil {
		return nil, fmt.Errorf("load correlations: %w", err)
	}

	in := &charts.RenderInputs{
		Trends:       trends,
		Snapshot:     snapshot,
		Rankings:     analytics.Rankings(snapshot, topN),
		Countries:    ds.Countries(),
		Correlations: &corr,
	}
	if len(trends) > 0 {
		in.DatasetDate = trends[len(trends)-1].Date
	}
	return in, nil
}

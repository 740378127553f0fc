package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"covidcli/internal/analytics"
	"covidcli/internal/config"
	"covidcli/internal/exporter"
)

func main() {
	outDir := flag.String("out", "", "base directory for the data layout (defaults to the executable directory)")
	topN := flag.Int("top", 10, "number of locations per ranking")
	report := flag.Bool("report", false, "also write the insights summary and the Excel workbook")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

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

	if !config.FileExists(paths.CleanDataCSV) {
		logger.Error("clean dataset not found, run the processor first",
			slog.String("path", paths.CleanDataCSV))
		os.Exit(1)
	}

	ds, err := exporter.LoadCleanData(paths.CleanDataCSV)
	if err != nil {
		logger.Error("failed to load clean dataset", slog.String("error", err.Error()))
		os.Exit(1)
	}
	countries := ds.Countries()
	world := ds.LocationRows(analytics.WorldLocation)

	analysis := exporter.NewAnalysisExporter(paths)

	snapshot := analytics.LatestSnapshot(countries)
	if err := analysis.ExportSnapshot(snapshot); err != nil {
		fail(logger, "export snapshot", err)
	}

	trends := analytics.GlobalTrends(world, countries)
	if err := analysis.ExportGlobalTrends(trends); err != nil {
		fail(logger, "export global trends", err)
	}

	rankings := analytics.Rankings(snapshot, *topN)
	if err := analysis.ExportRankings(rankings); err != nil {
		fail(logger, "export rankings", err)
	}

	corr := analytics.CorrelationSnapshot(countries)
	if err := analysis.ExportCorrelations(corr); err != nil {
		fail(logger, "export correlations", err)
	}

	fmt.Printf("Analyzed %d locations across %d trend days\n", len(snapshot), len(trends))

	if *report {
		ins := analytics.BuildInsights(trends, snapshot, rankings, corr)
		if err := analysis.ExportInsights(ins); err != nil {
			fail(logger, "export insights", err)
		}
		if err := exporter.NewWorkbookWriter(paths).Write(snapshot, trends, rankings); err != nil {
			fail(logger, "write workbook", err)
		}
		fmt.Printf("Report ready: %d observations, workbook at %s\n",
			len(ins.Observations), paths.WorkbookXLSX)
		fmt.Println()
		fmt.Print(exporter.RenderInsightsText(ins))
	}
}

func fail(logger *slog.Logger, step string, err error) {
	logger.Error(step+" failed", slog.String("error", err.Error()))
	os.Exit(1)
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	ExecutableDir string
	DataDir       string
	RawDir        string
	ProcessedDir  string
	AnalyticsDir  string
	ChartsDir     string
	CacheDir      string
	LogsDir       string

	// Well-known artifact files
	RawDatasetCSV     string
	FetchManifestJSON string
	CleanDataCSV      string
	SnapshotCSV       string
	GlobalTrendsCSV   string
	ProfileJSON       string
	RankingsCSV       string
	CorrelationsJSON  string
	InsightsTXT       string
	InsightsJSON      string
	WorkbookXLSX      string
	ChartIndexJSON    string
	OperationManifest string
}

// GetPaths returns the application paths relative to the executable location.
// All paths are ALWAYS relative to the executable directory, never the
// current working directory.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return PathsAt(filepath.Dir(exe)), nil
}

// PathsAt builds the path layout under an explicit base directory. The
// CLI -output flag and tests use this instead of the executable location.
//
// Directory structure:
//
//	base/
//	  ├── data/
//	  │   ├── raw/          (downloaded OWID dataset + fetch manifest)
//	  │   ├── processed/    (clean CSV, snapshot, trends, profile)
//	  │   ├── analytics/    (rankings, correlations, insights, workbook)
//	  │   ├── charts/       (HTML charts, PNG snapshots, index)
//	  │   └── cache/        (temporary files)
//	  └── logs/             (application logs)
func PathsAt(baseDir string) *Paths {
	dataDir := filepath.Join(baseDir, "data")
	rawDir := filepath.Join(dataDir, "raw")
	processedDir := filepath.Join(dataDir, "processed")
	analyticsDir := filepath.Join(dataDir, "analytics")
	chartsDir := filepath.Join(dataDir, "charts")

	return &Paths{
		ExecutableDir: baseDir,
		DataDir:       dataDir,
		RawDir:        rawDir,
		ProcessedDir:  processedDir,
		AnalyticsDir:  analyticsDir,
		ChartsDir:     chartsDir,
		CacheDir:      filepath.Join(dataDir, "cache"),
		LogsDir:       filepath.Join(baseDir, "logs"),

		RawDatasetCSV:     filepath.Join(rawDir, "owid-covid-data.csv"),
		FetchManifestJSON: filepath.Join(rawDir, "manifest.json"),
		CleanDataCSV:      filepath.Join(processedDir, "owid_clean.csv"),
		SnapshotCSV:       filepath.Join(processedDir, "latest_snapshot.csv"),
		GlobalTrendsCSV:   filepath.Join(processedDir, "global_trends.csv"),
		ProfileJSON:       filepath.Join(processedDir, "dataset_profile.json"),
		RankingsCSV:       filepath.Join(analyticsDir, "rankings.csv"),
		CorrelationsJSON:  filepath.Join(analyticsDir, "correlations.json"),
		InsightsTXT:       filepath.Join(analyticsDir, "insights.txt"),
		InsightsJSON:      filepath.Join(analyticsDir, "insights.json"),
		WorkbookXLSX:      filepath.Join(analyticsDir, "covid_analytics.xlsx"),
		ChartIndexJSON:    filepath.Join(chartsDir, "index.json"),
		OperationManifest: filepath.Join(dataDir, "operation_manifest.json"),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.RawDir,
		p.ProcessedDir,
		p.AnalyticsDir,
		p.ChartsDir,
		p.CacheDir,
		p.LogsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}

		if logger != nil {
			logger.Debug("Ensured directory exists",
				slog.String("directory", dir))
		}
	}

	return nil
}

// GetRelativePath returns a path relative to the executable directory
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.ExecutableDir, subpath)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetRawPath returns the path for a raw dataset file
func (p *Paths) GetRawPath(filename string) string {
	return filepath.Join(p.RawDir, filename)
}

// GetProcessedPath returns the path for a processed artifact
func (p *Paths) GetProcessedPath(filename string) string {
	return filepath.Join(p.ProcessedDir, filename)
}

// GetAnalyticsPath returns the path for an analytics artifact
func (p *Paths) GetAnalyticsPath(filename string) string {
	return filepath.Join(p.AnalyticsDir, filename)
}

// GetChartPath returns the path for a chart file
func (p *Paths) GetChartPath(filename string) string {
	return filepath.Join(p.ChartsDir, filename)
}

// GetChartHTMLPath returns the HTML path for a chart name
func (p *Paths) GetChartHTMLPath(name string) string {
	return filepath.Join(p.ChartsDir, name+".html")
}

// GetChartPNGPath returns the PNG path for a chart name
func (p *Paths) GetChartPNGPath(name string) string {
	return filepath.Join(p.ChartsDir, name+".png")
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetCachePath returns the path for a cache file
func (p *Paths) GetCachePath(filename string) string {
	return filepath.Join(p.CacheDir, filename)
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution() {
	logger := slog.Default()
	if logger == nil {
		return
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("raw", p.RawDir),
			slog.String("processed", p.ProcessedDir),
			slog.String("analytics", p.AnalyticsDir),
			slog.String("charts", p.ChartsDir),
			slog.String("cache", p.CacheDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("artifact_files",
			slog.String("raw_dataset", p.RawDatasetCSV),
			slog.String("clean_data", p.CleanDataCSV),
			slog.String("snapshot", p.SnapshotCSV),
			slog.String("global_trends", p.GlobalTrendsCSV),
			slog.String("rankings", p.RankingsCSV),
			slog.String("workbook", p.WorkbookXLSX),
			slog.String("chart_index", p.ChartIndexJSON),
		))
}

// ValidateRequiredFiles checks if the artifacts a serving component needs
// exist and returns detailed error information.
func (p *Paths) ValidateRequiredFiles() error {
	requiredFiles := map[string]string{
		"Clean dataset": p.CleanDataCSV,
		"Snapshot":      p.SnapshotCSV,
	}

	var missingFiles []string
	for name, path := range requiredFiles {
		if !FileExists(path) {
			missingFiles = append(missingFiles, fmt.Sprintf("%s (%s)", name, path))
		}
	}

	if len(missingFiles) > 0 {
		return fmt.Errorf("required files missing: %s", strings.Join(missingFiles, ", "))
	}

	return nil
}

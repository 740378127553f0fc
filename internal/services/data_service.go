package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"covidcli/internal/charts"
	"covidcli/internal/config"
	"covidcli/internal/exporter"
	"covidcli/pkg/contracts/domain"
)

// DataService serves the pipeline artifacts to the HTTP layer. Reads go
// through a TTL cache so the dashboard does not re-parse the snapshot and
// trend CSVs on every request; the cache is invalidated when a pipeline
// run completes.
type DataService struct {
	config *config.Config
	paths  *config.Paths
	logger *slog.Logger

	mu    sync.Mutex
	cache artifactCache
}

// artifactCache holds the parsed artifacts with a single load timestamp.
// A zero loadedAt means nothing is cached.
type artifactCache struct {
	loadedAt time.Time
	snapshot []domain.LocationSnapshot
	trends   []domain.GlobalTrendPoint
	dataset  *domain.Dataset
}

// SnapshotQuery narrows and orders the latest per-location rows.
type SnapshotQuery struct {
	Continent string
	Sort      string
	Limit     int
}

// SnapshotResult is the snapshot rows plus the snapshot date.
type SnapshotResult struct {
	Date      time.Time
	Locations []domain.LocationSnapshot
}

// LocationSeriesPoint is one (date, value) observation of a location series.
type LocationSeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// LocationSeries is one location's series for the requested metric.
type LocationSeries struct {
	Location string                `json:"location"`
	ISOCode  string                `json:"iso_code"`
	Points   []LocationSeriesPoint `json:"points"`
}

// NewDataService creates a data service over the artifact directories.
func NewDataService(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("DataService initialized with paths",
		slog.String("data_dir", paths.DataDir),
		slog.String("processed_dir", paths.ProcessedDir),
		slog.String("analytics_dir", paths.AnalyticsDir),
		slog.String("charts_dir", paths.ChartsDir))

	return &DataService{
		config: cfg,
		paths:  paths,
		logger: logger,
	}
}

// Profile returns the raw-dataset exploration profile.
func (ds *DataService) Profile(ctx context.Context) (*domain.DatasetProfile, error) {
	var profile domain.DatasetProfile
	if err := ds.readArtifactJSON(ds.paths.ProfileJSON, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Snapshot returns the latest per-location rows, filtered and ordered per
// the query. An empty sort keeps the alphabetical artifact order.
func (ds *DataService) Snapshot(ctx context.Context, q SnapshotQuery) (*SnapshotResult, error) {
	rows, err := ds.cachedSnapshot()
	if err != nil {
		return nil, err
	}

	if q.Continent != "" {
		filtered := make([]domain.LocationSnapshot, 0, len(rows))
		for _, row := range rows {
			if strings.EqualFold(row.Continent, q.Continent) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	} else {
		rows = append([]domain.LocationSnapshot(nil), rows...)
	}

	if q.Sort != "" {
		metric, err := domain.ParseMetric(q.Sort)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, q.Sort)
		}
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].MetricValue(metric) > rows[j].MetricValue(metric)
		})
	}

	if q.Limit > 0 && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}

	result := &SnapshotResult{Locations: rows}
	for _, row := range rows {
		if row.Date.After(result.Date) {
			result.Date = row.Date
		}
	}

	ds.logger.DebugContext(ctx, "snapshot served",
		slog.String("continent", q.Continent),
		slog.String("sort", q.Sort),
		slog.Int("rows", len(rows)))

	return result, nil
}

// GlobalTrends returns the worldwide daily series. Metric is accepted for
// validation only; the artifact carries every series and clients pick the
// column they asked for.
func (ds *DataService) GlobalTrends(ctx context.Context, metric string) ([]domain.GlobalTrendPoint, error) {
	if metric != "" {
		if _, err := domain.ParseMetric(metric); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
		}
	}
	return ds.cachedTrends()
}

// Series returns per-location series of one metric for comparison charts.
// Every requested location must exist in the cleaned dataset.
func (ds *DataService) Series(ctx context.Context, locations []string, metric string) ([]LocationSeries, error) {
	if len(locations) == 0 {
		return nil, ErrNoLocations
	}
	m := domain.MetricNewCasesSmoothed
	if metric != "" {
		parsed, err := domain.ParseMetric(metric)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
		}
		m = parsed
	}

	dataset, err := ds.cachedDataset()
	if err != nil {
		return nil, err
	}

	out := make([]LocationSeries, 0, len(locations))
	for _, location := range locations {
		rows := dataset.LocationRows(location)
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
		}
		series := LocationSeries{
			Location: location,
			ISOCode:  rows[0].ISOCode,
			Points:   make([]LocationSeriesPoint, 0, len(rows)),
		}
		for i := range rows {
			series.Points = append(series.Points, LocationSeriesPoint{
				Date:  rows[i].Date,
				Value: recordMetricValue(&rows[i], m),
			})
		}
		out = append(out, series)
	}
	return out, nil
}

// Rankings returns the top-N locations for one metric, recomputed from the
// cached snapshot so any valid metric can be ranked, not only the metrics
// the rankings artifact pre-computes.
func (ds *DataService) Rankings(ctx context.Context, metric string, limit int) ([]domain.RankingEntry, error) {
	m, err := domain.ParseMetric(metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	if limit <= 0 {
		limit = ds.config.Charts.TopN
	}

	snapshot, err := ds.cachedSnapshot()
	if err != nil {
		return nil, err
	}
	return topNFromSnapshot(snapshot, m, limit), nil
}

// Correlations returns the latest-date correlation snapshot.
func (ds *DataService) Correlations(ctx context.Context) (*domain.CorrelationSnapshot, error) {
	var corr domain.CorrelationSnapshot
	if err := ds.readArtifactJSON(ds.paths.CorrelationsJSON, &corr); err != nil {
		return nil, err
	}
	return &corr, nil
}

// Insights returns the generated summary report.
func (ds *DataService) Insights(ctx context.Context) (*domain.Insights, error) {
	var ins domain.Insights
	if err := ds.readArtifactJSON(ds.paths.InsightsJSON, &ins); err != nil {
		return nil, err
	}
	return &ins, nil
}

// ChartIndex returns the machine-readable list of generated charts.
func (ds *DataService) ChartIndex(ctx context.Context) (*domain.ChartIndex, error) {
	index, err := charts.LoadIndex(ds.paths.ChartIndexJSON)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("load chart index: %w", err)
	}
	return index, nil
}

// DownloadArtifact serves one artifact file for download. The file type
// selects the directory; the filename may not escape it.
func (ds *DataService) DownloadArtifact(ctx context.Context, w http.ResponseWriter, r *http.Request, fileType, filename string) error {
	var dir string
	switch fileType {
	case "raw":
		dir = ds.paths.RawDir
	case "processed":
		dir = ds.paths.ProcessedDir
	case "analytics":
		dir = ds.paths.AnalyticsDir
	case "charts":
		dir = ds.paths.ChartsDir
	default:
		return ErrInvalidFileType
	}

	cleaned := filepath.FromSlash(filepath.Clean(filename))
	full, err := filepath.Abs(filepath.Join(dir, cleaned))
	if err != nil {
		return ErrInvalidFilePath
	}
	base, err := filepath.Abs(dir)
	if err != nil {
		return ErrInvalidFilePath
	}
	// Reject traversal outside the artifact directory
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		ds.logger.WarnContext(ctx, "artifact download path escaped base directory",
			slog.String("requested", filename),
			slog.String("resolved", full))
		return ErrInvalidFilePath
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		logDataError(ctx, "download_artifact", "failed to stat artifact",
			slog.String("path", full),
			slog.String("error", err.Error()))
		return fmt.Errorf("stat artifact: %w", err)
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(cleaned)))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, full)
	return nil
}

// InvalidateCache drops the cached artifacts. Called after a pipeline run
// rewrites the files on disk.
func (ds *DataService) InvalidateCache() {
	ds.mu.Lock()
	ds.cache = artifactCache{}
	ds.mu.Unlock()

	ds.logger.Debug("artifact cache invalidated")
}

// cachedSnapshot loads the latest snapshot artifact through the cache.
func (ds *DataService) cachedSnapshot() ([]domain.LocationSnapshot, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.cacheFresh() && ds.cache.snapshot != nil {
		return ds.cache.snapshot, nil
	}
	rows, err := exporter.LoadSnapshot(ds.paths.SnapshotCSV)
	if err != nil {
		return nil, ds.artifactError("snapshot", err)
	}
	ds.touchCache()
	ds.cache.snapshot = rows
	return rows, nil
}

// cachedTrends loads the global trends artifact through the cache.
func (ds *DataService) cachedTrends() ([]domain.GlobalTrendPoint, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.cacheFresh() && ds.cache.trends != nil {
		return ds.cache.trends, nil
	}
	trends, err := exporter.LoadGlobalTrends(ds.paths.GlobalTrendsCSV)
	if err != nil {
		return nil, ds.artifactError("global trends", err)
	}
	ds.touchCache()
	ds.cache.trends = trends
	return trends, nil
}

// cachedDataset loads the cleaned dataset through the cache. This is the
// expensive artifact, loaded only for per-location series requests.
func (ds *DataService) cachedDataset() (*domain.Dataset, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.cacheFresh() && ds.cache.dataset != nil {
		return ds.cache.dataset, nil
	}
	dataset, err := exporter.LoadCleanData(ds.paths.CleanDataCSV)
	if err != nil {
		return nil, ds.artifactError("clean data", err)
	}
	ds.touchCache()
	ds.cache.dataset = dataset
	return dataset, nil
}

// cacheFresh reports whether the cached artifacts are within the TTL.
// Callers must hold the mutex.
func (ds *DataService) cacheFresh() bool {
	return !ds.cache.loadedAt.IsZero() && time.Since(ds.cache.loadedAt) < config.DataCacheDuration
}

// touchCache stamps the cache load time, clearing stale entries first.
// Callers must hold the mutex.
func (ds *DataService) touchCache() {
	if !ds.cacheFresh() {
		ds.cache = artifactCache{}
	}
	if ds.cache.loadedAt.IsZero() {
		ds.cache.loadedAt = time.Now()
	}
}

// readArtifactJSON reads a JSON artifact, mapping a missing file to
// ErrArtifactNotFound.
func (ds *DataService) readArtifactJSON(path string, v any) error {
	if err := exporter.ReadJSON(path, v); err != nil {
		return ds.artifactError(filepath.Base(path), err)
	}
	return nil
}

// artifactError maps a missing artifact to the sentinel the handlers
// translate into 404, keeping other failures verbatim.
func (ds *DataService) artifactError(name string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	return fmt.Errorf("load %s: %w", name, err)
}

// recordMetricValue reads a metric off a cleaned record. Cleaned records
// carry plain values for filled columns and derived metrics.
func recordMetricValue(r *domain.Record, m domain.Metric) float64 {
	switch m {
	case domain.MetricTotalCases:
		return r.TotalCases.Float64()
	case domain.MetricTotalDeaths:
		return r.TotalDeaths.Float64()
	case domain.MetricNewCases:
		return r.NewCases.Float64()
	case domain.MetricNewDeaths:
		return r.NewDeaths.Float64()
	case domain.MetricNewCasesSmoothed:
		return r.NewCasesSmoothed.Float64()
	case domain.MetricNewDeathsSmoothed:
		return r.NewDeathsSmoothed.Float64()
	case domain.MetricTotalVaccinations:
		return r.TotalVaccinations.Float64()
	case domain.MetricVaccinationRate:
		return r.VaccinationRatePerHundred
	case domain.MetricFullyVaccinatedPerHundred:
		return r.FullyVaccinatedPerHundred
	case domain.MetricCaseFatalityRate:
		return r.CaseFatalityRate
	case domain.MetricTotalCasesPerMillion:
		return r.TotalCasesPerMillion
	case domain.MetricTotalDeathsPerMillion:
		return r.TotalDeathsPerMillion
	}
	return 0
}

// topNFromSnapshot ranks the snapshot by a metric, descending, ties broken
// by location name. Mirrors the analyze stage's ranking rule so the API
// and the rankings artifact agree.
func topNFromSnapshot(snapshot []domain.LocationSnapshot, m domain.Metric, n int) []domain.RankingEntry {
	type scored struct {
		location string
		iso      string
		value    float64
	}
	rows := make([]scored, 0, len(snapshot))
	for i := range snapshot {
		rows = append(rows, scored{
			location: snapshot[i].Location,
			iso:      snapshot[i].ISOCode,
			value:    snapshot[i].MetricValue(m),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].value != rows[j].value {
			return rows[i].value > rows[j].value
		}
		return rows[i].location < rows[j].location
	})
	if n > len(rows) {
		n = len(rows)
	}
	out := make([]domain.RankingEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.RankingEntry{
			Rank:     i + 1,
			Location: rows[i].location,
			ISOCode:  rows[i].iso,
			Metric:   m,
			Value:    rows[i].value,
		})
	}
	return out
}

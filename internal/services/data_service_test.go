package services

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/config"
	"covidcli/internal/exporter"
	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

func testServiceSnapshot() []domain.LocationSnapshot {
	return []domain.LocationSnapshot{
		{
			ISOCode: "BRA", Continent: "South America", Location: "Brazil",
			Date:       time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC),
			TotalCases: 7750000, TotalDeaths: 196000,
			NewCasesSmoothed: 48500, CaseFatalityRate: 2.529,
		},
		{
			ISOCode: "USA", Continent: "North America", Location: "United States",
			Date:       time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC),
			TotalCases: 20150000, TotalDeaths: 352000,
			NewCasesSmoothed: 146000, CaseFatalityRate: 1.746,
		},
	}
}

func testServiceTrends() []domain.GlobalTrendPoint {
	return []domain.GlobalTrendPoint{
		{
			Date:     time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			NewCases: 600000, NewDeaths: 10000,
			NewCasesAvg7: 580000, TotalCases: 83000000,
		},
		{
			Date:     time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC),
			NewCases: 600000, NewDeaths: 10000,
			NewCasesAvg7: 585000, TotalCases: 83600000,
		},
	}
}

// newTestDataService builds a data service over a temp artifact tree
// populated with the fixture dataset.
func newTestDataService(t *testing.T) (*DataService, *config.Paths) {
	t.Helper()

	paths := config.PathsAt(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	exp := exporter.NewAnalysisExporter(paths)
	require.NoError(t, exp.ExportSnapshot(testServiceSnapshot()))
	require.NoError(t, exp.ExportGlobalTrends(testServiceTrends()))
	require.NoError(t, exp.ExportProfile(&domain.DatasetProfile{
		RowCount:      7,
		LocationCount: 3,
		AggregateRows: 2,
		GeneratedAt:   time.Now().UTC(),
	}))
	require.NoError(t, exp.ExportCorrelations(&domain.CorrelationSnapshot{
		Date:                time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC),
		StringencyNewCasesR: 0.41,
	}))

	fixtures := testutil.NewDatasetFixtures(t.TempDir())
	clean := exporter.NewCleanExporter(paths)
	require.NoError(t, clean.ExportCleanData(context.Background(), fixtures.SampleRecords()))

	return NewDataService(config.Default(), paths, testLogger()), paths
}

func TestDataServiceProfile(t *testing.T) {
	svc, _ := newTestDataService(t)

	profile, err := svc.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, profile.RowCount)
	assert.Equal(t, 3, profile.LocationCount)
}

func TestDataServiceProfileMissingArtifact(t *testing.T) {
	paths := config.PathsAt(t.TempDir())
	svc := NewDataService(config.Default(), paths, testLogger())

	_, err := svc.Profile(context.Background())
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestDataServiceSnapshot(t *testing.T) {
	svc, _ := newTestDataService(t)
	ctx := context.Background()

	t.Run("all locations", func(t *testing.T) {
		result, err := svc.Snapshot(ctx, SnapshotQuery{})
		require.NoError(t, err)
		assert.Len(t, result.Locations, 2)
		assert.Equal(t, time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC), result.Date)
	})

	t.Run("continent filter", func(t *testing.T) {
		result, err := svc.Snapshot(ctx, SnapshotQuery{Continent: "South America"})
		require.NoError(t, err)
		require.Len(t, result.Locations, 1)
		assert.Equal(t, "Brazil", result.Locations[0].Location)
	})

	t.Run("sort by metric descending", func(t *testing.T) {
		result, err := svc.Snapshot(ctx, SnapshotQuery{Sort: "total_cases"})
		require.NoError(t, err)
		require.Len(t, result.Locations, 2)
		assert.Equal(t, "United States", result.Locations[0].Location)
	})

	t.Run("limit", func(t *testing.T) {
		result, err := svc.Snapshot(ctx, SnapshotQuery{Sort: "total_deaths", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, result.Locations, 1)
	})

	t.Run("unknown sort metric", func(t *testing.T) {
		_, err := svc.Snapshot(ctx, SnapshotQuery{Sort: "volume"})
		assert.ErrorIs(t, err, ErrUnknownMetric)
	})
}

func TestDataServiceGlobalTrends(t *testing.T) {
	svc, _ := newTestDataService(t)

	trends, err := svc.GlobalTrends(context.Background(), "new_cases")
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, float64(585000), trends[1].NewCasesAvg7)

	_, err = svc.GlobalTrends(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestDataServiceSeries(t *testing.T) {
	svc, _ := newTestDataService(t)
	ctx := context.Background()

	t.Run("known locations", func(t *testing.T) {
		series, err := svc.Series(ctx, []string{"United States", "Brazil"}, "new_cases")
		require.NoError(t, err)
		require.Len(t, series, 2)
		assert.Equal(t, "United States", series[0].Location)
		assert.Equal(t, "USA", series[0].ISOCode)
		assert.Len(t, series[0].Points, 3)
		assert.Equal(t, float64(150000), series[0].Points[0].Value)
	})

	t.Run("unknown location", func(t *testing.T) {
		_, err := svc.Series(ctx, []string{"Atlantis"}, "new_cases")
		assert.ErrorIs(t, err, ErrLocationNotFound)
	})

	t.Run("no locations", func(t *testing.T) {
		_, err := svc.Series(ctx, nil, "new_cases")
		assert.ErrorIs(t, err, ErrNoLocations)
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := svc.Series(ctx, []string{"Brazil"}, "bogus")
		assert.ErrorIs(t, err, ErrUnknownMetric)
	})
}

func TestDataServiceRankings(t *testing.T) {
	svc, _ := newTestDataService(t)

	entries, err := svc.Rankings(context.Background(), "total_cases", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "United States", entries[0].Location)
	assert.Equal(t, "Brazil", entries[1].Location)

	_, err = svc.Rankings(context.Background(), "bogus", 2)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestDataServiceCorrelations(t *testing.T) {
	svc, _ := newTestDataService(t)

	corr, err := svc.Correlations(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.41, corr.StringencyNewCasesR, 1e-9)
}

func TestDataServiceCacheInvalidation(t *testing.T) {
	svc, paths := newTestDataService(t)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, SnapshotQuery{})
	require.NoError(t, err)
	require.Len(t, first.Locations, 2)

	// Rewrite the artifact behind the cache's back
	exp := exporter.NewAnalysisExporter(paths)
	require.NoError(t, exp.ExportSnapshot(testServiceSnapshot()[:1]))

	cached, err := svc.Snapshot(ctx, SnapshotQuery{})
	require.NoError(t, err)
	assert.Len(t, cached.Locations, 2, "TTL cache should keep serving the old rows")

	svc.InvalidateCache()

	fresh, err := svc.Snapshot(ctx, SnapshotQuery{})
	require.NoError(t, err)
	assert.Len(t, fresh.Locations, 1)
}

func TestDataServiceDownloadArtifact(t *testing.T) {
	svc, paths := newTestDataService(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(paths.ProcessedDir, "note.csv"), []byte("a,b\n"), 0o644))

	t.Run("serves file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/download/processed/note.csv", nil)
		err := svc.DownloadArtifact(ctx, rec, req, "processed", "note.csv")
		require.NoError(t, err)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "note.csv")
	})

	t.Run("rejects traversal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/download/processed/escape", nil)
		err := svc.DownloadArtifact(ctx, rec, req, "processed", "../raw/owid-covid-data.csv")
		assert.ErrorIs(t, err, ErrInvalidFilePath)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/download/secrets/x", nil)
		err := svc.DownloadArtifact(ctx, rec, req, "secrets", "x")
		assert.ErrorIs(t, err, ErrInvalidFileType)
	})

	t.Run("missing file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/download/processed/none.csv", nil)
		err := svc.DownloadArtifact(ctx, rec, req, "processed", "none.csv")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})
}

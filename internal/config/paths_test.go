package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPathsAt verifies the directory layout under an explicit base
func TestPathsAt(t *testing.T) {
	base := t.TempDir()
	paths := PathsAt(base)
	require.NotNil(t, paths)

	assert.Equal(t, base, paths.ExecutableDir)
	assert.Equal(t, filepath.Join(base, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(base, "data", "raw"), paths.RawDir)
	assert.Equal(t, filepath.Join(base, "data", "processed"), paths.ProcessedDir)
	assert.Equal(t, filepath.Join(base, "data", "analytics"), paths.AnalyticsDir)
	assert.Equal(t, filepath.Join(base, "data", "charts"), paths.ChartsDir)
	assert.Equal(t, filepath.Join(base, "data", "cache"), paths.CacheDir)
	assert.Equal(t, filepath.Join(base, "logs"), paths.LogsDir)

	assert.Equal(t, filepath.Join(paths.RawDir, "owid-covid-data.csv"), paths.RawDatasetCSV)
	assert.Equal(t, filepath.Join(paths.RawDir, "manifest.json"), paths.FetchManifestJSON)
	assert.Equal(t, filepath.Join(paths.ProcessedDir, "owid_clean.csv"), paths.CleanDataCSV)
	assert.Equal(t, filepath.Join(paths.ProcessedDir, "latest_snapshot.csv"), paths.SnapshotCSV)
	assert.Equal(t, filepath.Join(paths.ProcessedDir, "global_trends.csv"), paths.GlobalTrendsCSV)
	assert.Equal(t, filepath.Join(paths.AnalyticsDir, "rankings.csv"), paths.RankingsCSV)
	assert.Equal(t, filepath.Join(paths.AnalyticsDir, "covid_analytics.xlsx"), paths.WorkbookXLSX)
	assert.Equal(t, filepath.Join(paths.ChartsDir, "index.json"), paths.ChartIndexJSON)
}

// TestGetPaths verifies executable-relative resolution
func TestGetPaths(t *testing.T) {
	paths, err := GetPaths()
	require.NoError(t, err)
	require.NotNil(t, paths)

	// Everything roots under the executable directory
	assert.True(t, filepath.IsAbs(paths.ExecutableDir))
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "logs"), paths.LogsDir)
}

// TestEnsureDirectories verifies directory creation is idempotent
func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	paths := PathsAt(base)

	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{
		paths.DataDir, paths.RawDir, paths.ProcessedDir,
		paths.AnalyticsDir, paths.ChartsDir, paths.CacheDir, paths.LogsDir,
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err, "directory %s should exist", dir)
		assert.True(t, info.IsDir())
	}

	// Second call must not fail
	require.NoError(t, paths.EnsureDirectories())
}

// TestPathHelpers verifies the Get*Path helpers
func TestPathHelpers(t *testing.T) {
	paths := PathsAt("/base")

	assert.Equal(t, filepath.Join("/base", "data", "raw", "x.csv"), paths.GetRawPath("x.csv"))
	assert.Equal(t, filepath.Join("/base", "data", "processed", "y.csv"), paths.GetProcessedPath("y.csv"))
	assert.Equal(t, filepath.Join("/base", "data", "analytics", "z.json"), paths.GetAnalyticsPath("z.json"))
	assert.Equal(t, filepath.Join("/base", "data", "charts", "a.html"), paths.GetChartPath("a.html"))
	assert.Equal(t, filepath.Join("/base", "data", "charts", "trend.html"), paths.GetChartHTMLPath("trend"))
	assert.Equal(t, filepath.Join("/base", "data", "charts", "trend.png"), paths.GetChartPNGPath("trend"))
	assert.Equal(t, filepath.Join("/base", "logs", "app.log"), paths.GetLogPath("app.log"))
	assert.Equal(t, filepath.Join("/base", "data", "cache", "tmp.bin"), paths.GetCachePath("tmp.bin"))
	assert.Equal(t, filepath.Join("/base", "sub"), paths.GetRelativePath("sub"))
}

// TestFileExists verifies existence checks
func TestFileExists(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "exists.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	assert.True(t, FileExists(tmpFile))
	assert.False(t, FileExists(tmpFile+".missing"))
}

// TestValidateRequiredFiles verifies missing artifacts are reported
func TestValidateRequiredFiles(t *testing.T) {
	base := t.TempDir()
	paths := PathsAt(base)
	require.NoError(t, paths.EnsureDirectories())

	err := paths.ValidateRequiredFiles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required files missing")

	require.NoError(t, os.WriteFile(paths.CleanDataCSV, []byte("h\n"), 0644))
	require.NoError(t, os.WriteFile(paths.SnapshotCSV, []byte("h\n"), 0644))

	assert.NoError(t, paths.ValidateRequiredFiles())
}

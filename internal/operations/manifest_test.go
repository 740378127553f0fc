package operations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/config"
)

func TestPipelineManifest(t *testing.T) {
	t.Run("NewManifest", func(t *testing.T) {
		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")

		assert.NotNil(t, manifest)
		assert.Equal(t, "op-123", manifest.OperationID)
		assert.Equal(t, "2021-01-01", manifest.FromDate)
		assert.Equal(t, "2021-06-30", manifest.ToDate)
		assert.Equal(t, ModeFull, manifest.Mode)
		assert.Equal(t, "pending", manifest.Status)
		assert.NotNil(t, manifest.AvailableData)
		assert.Empty(t, manifest.CompletedStages)
	})

	t.Run("AddData", func(t *testing.T) {
		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")

		manifest.AddData(DataTypeRawDataset, &DataInfo{
			Type:      DataTypeRawDataset,
			Location:  "data/raw",
			FileCount: 1,
			Files:     []string{"owid-covid-data.csv"},
		})

		assert.True(t, manifest.HasData(DataTypeRawDataset))
		data, exists := manifest.GetData(DataTypeRawDataset)
		assert.True(t, exists)
		assert.Equal(t, 1, data.FileCount)
		assert.Equal(t, 1, len(data.Files))
		assert.False(t, data.CreatedAt.IsZero())

		assert.False(t, manifest.HasData(DataTypeCharts))
	})

	t.Run("IsStageCompleted", func(t *testing.T) {
		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")

		assert.False(t, manifest.IsStageCompleted(StageIDFetch))

		manifest.CompletedStages = append(manifest.CompletedStages, StageExecution{
			StageID:   StageIDFetch,
			StageName: StageNameFetch,
			Status:    "running",
		})
		assert.False(t, manifest.IsStageCompleted(StageIDFetch))

		manifest.CompletedStages[0].Status = "completed"
		assert.True(t, manifest.IsStageCompleted(StageIDFetch))
	})

	t.Run("ScanDataDirectory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "rankings.csv"), []byte("rank\n"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "correlations.json"), []byte("{}"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "workbook.xlsx"), []byte("x"), 0644))

		manifest := NewPipelineManifest("op-123", "", "")

		require.NoError(t, manifest.ScanDataDirectory(DataTypeAnalytics, dir, "*.csv"))
		data, exists := manifest.GetData(DataTypeAnalytics)
		require.True(t, exists)
		assert.Equal(t, 1, data.FileCount)
		assert.Contains(t, data.Files, "rankings.csv")

		err := manifest.ScanDataDirectory(DataTypeCharts, filepath.Join(dir, "missing"), "*.html")
		assert.ErrorContains(t, err, "directory does not exist")
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "operation_manifest.json")

		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")
		manifest.AddData(DataTypeRawDataset, &DataInfo{
			Type:      DataTypeRawDataset,
			Location:  "data/raw",
			FileCount: 1,
			Files:     []string{"owid-covid-data.csv"},
		})
		manifest.CompletedStages = append(manifest.CompletedStages, StageExecution{
			StageID:    StageIDFetch,
			StageName:  StageNameFetch,
			Status:     "completed",
			OutputData: []string{DataTypeRawDataset},
		})

		require.NoError(t, manifest.SaveToFile(path))

		loaded, err := LoadManifestFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "op-123", loaded.OperationID)
		assert.Equal(t, "2021-01-01", loaded.FromDate)
		assert.True(t, loaded.HasData(DataTypeRawDataset))
		assert.True(t, loaded.IsStageCompleted(StageIDFetch))

		_, err = LoadManifestFromFile(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}

func TestStageCanRun(t *testing.T) {
	cfg := config.Default()
	paths := config.PathsAt(t.TempDir())

	t.Run("FetchStage_CanAlwaysRun", func(t *testing.T) {
		stage := NewFetchStage(cfg, paths, nil, nil, nil)
		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")

		assert.True(t, stage.CanRun(manifest))
		assert.True(t, stage.CanRun(nil))
	})

	t.Run("ProcessStage_RequiresRawDataset", func(t *testing.T) {
		stage := NewProcessStage(cfg, paths, nil, nil, nil)
		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")

		assert.False(t, stage.CanRun(manifest))

		manifest.AddData(DataTypeRawDataset, &DataInfo{
			Type:      DataTypeRawDataset,
			Location:  paths.RawDir,
			FileCount: 1,
		})

		assert.True(t, stage.CanRun(manifest))
	})

	t.Run("ProcessStage_FallsBackToDisk", func(t *testing.T) {
		diskPaths := config.PathsAt(t.TempDir())
		stage := NewProcessStage(cfg, diskPaths, nil, nil, nil)
		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")

		assert.False(t, stage.CanRun(manifest))

		// A dataset left by a previous run satisfies the requirement
		// even when the manifest does not mention it.
		require.NoError(t, os.MkdirAll(diskPaths.RawDir, 0755))
		require.NoError(t, os.WriteFile(diskPaths.RawDatasetCSV, []byte("location,date\n"), 0644))

		assert.True(t, stage.CanRun(manifest))
	})

	t.Run("AnalyzeStage_RequiresCleanData", func(t *testing.T) {
		stage := NewAnalyzeStage(cfg, paths, nil, nil, nil)
		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")

		assert.False(t, stage.CanRun(manifest))

		manifest.AddData(DataTypeCleanData, &DataInfo{
			Type:      DataTypeCleanData,
			Location:  paths.ProcessedDir,
			FileCount: 1,
		})

		assert.True(t, stage.CanRun(manifest))
	})

	t.Run("VisualizeStage_RequiresAnalytics", func(t *testing.T) {
		stage := NewVisualizeStage(cfg, paths, nil, nil, nil)
		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")

		assert.False(t, stage.CanRun(manifest))

		manifest.AddData(DataTypeAnalytics, &DataInfo{
			Type:      DataTypeAnalytics,
			Location:  paths.AnalyticsDir,
			FileCount: 4,
		})

		assert.True(t, stage.CanRun(manifest))
	})

	t.Run("ReportStage_RequiresAnalytics", func(t *testing.T) {
		stage := NewReportStage(cfg, paths, nil, nil, nil)
		manifest := NewPipelineManifest("op-123", "2021-01-01", "2021-06-30")

		assert.False(t, stage.CanRun(manifest))

		manifest.AddData(DataTypeAnalytics, &DataInfo{
			Type:      DataTypeAnalytics,
			Location:  paths.AnalyticsDir,
			FileCount: 4,
		})

		assert.True(t, stage.CanRun(manifest))
	})
}

func TestDataRequirements(t *testing.T) {
	cfg := config.Default()
	paths := config.PathsAt(t.TempDir())

	t.Run("FetchStage_RequirementsAndOutputs", func(t *testing.T) {
		stage := NewFetchStage(cfg, paths, nil, nil, nil)

		requirements := stage.RequiredInputs()
		assert.Empty(t, requirements)

		outputs := stage.ProducedOutputs()
		assert.Len(t, outputs, 1)
		assert.Equal(t, DataTypeRawDataset, outputs[0].Type)
		assert.Equal(t, paths.RawDir, outputs[0].Location)
		assert.Equal(t, "*.csv", outputs[0].Pattern)
	})

	t.Run("ProcessStage_RequirementsAndOutputs", func(t *testing.T) {
		stage := NewProcessStage(cfg, paths, nil, nil, nil)

		requirements := stage.RequiredInputs()
		assert.Len(t, requirements, 1)
		assert.Equal(t, DataTypeRawDataset, requirements[0].Type)
		assert.Equal(t, 1, requirements[0].MinCount)
		assert.False(t, requirements[0].Optional)

		outputs := stage.ProducedOutputs()
		assert.Len(t, outputs, 1)
		assert.Equal(t, DataTypeCleanData, outputs[0].Type)
		assert.Equal(t, paths.ProcessedDir, outputs[0].Location)
		assert.Equal(t, "*.csv", outputs[0].Pattern)
	})

	t.Run("AnalyzeStage_RequirementsAndOutputs", func(t *testing.T) {
		stage := NewAnalyzeStage(cfg, paths, nil, nil, nil)

		requirements := stage.RequiredInputs()
		assert.Len(t, requirements, 1)
		assert.Equal(t, DataTypeCleanData, requirements[0].Type)
		assert.Equal(t, 1, requirements[0].MinCount)

		outputs := stage.ProducedOutputs()
		assert.Len(t, outputs, 1)
		assert.Equal(t, DataTypeAnalytics, outputs[0].Type)
		assert.Equal(t, paths.AnalyticsDir, outputs[0].Location)
		assert.Equal(t, "*.csv", outputs[0].Pattern)
	})

	t.Run("VisualizeStage_RequirementsAndOutputs", func(t *testing.T) {
		stage := NewVisualizeStage(cfg, paths, nil, nil, nil)

		// Charts need both the analysis artifacts and the clean dataset
		requirements := stage.RequiredInputs()
		assert.Len(t, requirements, 2)
		assert.Equal(t, DataTypeAnalytics, requirements[0].Type)
		assert.Equal(t, DataTypeCleanData, requirements[1].Type)

		outputs := stage.ProducedOutputs()
		assert.Len(t, outputs, 1)
		assert.Equal(t, DataTypeCharts, outputs[0].Type)
		assert.Equal(t, paths.ChartsDir, outputs[0].Location)
		assert.Equal(t, "*.html", outputs[0].Pattern)
	})

	t.Run("ReportStage_RequirementsAndOutputs", func(t *testing.T) {
		stage := NewReportStage(cfg, paths, nil, nil, nil)

		requirements := stage.RequiredInputs()
		assert.Len(t, requirements, 2)
		assert.Equal(t, DataTypeAnalytics, requirements[0].Type)
		assert.False(t, requirements[0].Optional)
		assert.Equal(t, DataTypeCharts, requirements[1].Type)
		assert.True(t, requirements[1].Optional)

		outputs := stage.ProducedOutputs()
		assert.Len(t, outputs, 1)
		assert.Equal(t, DataTypeReportBundles, outputs[0].Type)
		assert.Equal(t, paths.AnalyticsDir, outputs[0].Location)
		assert.Equal(t, "*.xlsx", outputs[0].Pattern)
	})
}

package operations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/charts"
	"covidcli/internal/config"
	"covidcli/internal/exporter"
	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

// stageEnv is an isolated pipeline directory with the sample raw
// dataset in place and an operation state ready for direct Execute
// calls.
type stageEnv struct {
	cfg   *config.Config
	paths *config.Paths
	state *OperationState
}

func newStageEnv(t *testing.T) *stageEnv {
	t.Helper()

	paths := config.PathsAt(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	fixtures := testutil.NewDatasetFixtures("")
	_, err := fixtures.WriteSampleCSV(paths.RawDir)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Charts.RenderPNG = false
	cfg.Charts.SelectedCountries = []string{"United States", "Brazil"}

	state := NewOperationState("op-stages")
	for id, name := range map[string]string{
		StageIDFetch:     StageNameFetch,
		StageIDProcess:   StageNameProcess,
		StageIDAnalyze:   StageNameAnalyze,
		StageIDVisualize: StageNameVisualize,
		StageIDReport:    StageNameReport,
	} {
		state.SetStage(id, NewStageState(id, name))
	}

	return &stageEnv{cfg: cfg, paths: paths, state: state}
}

func (e *stageEnv) runProcess(t *testing.T) {
	t.Helper()
	stage := NewProcessStage(e.cfg, e.paths, nil, nil, nil)
	require.NoError(t, stage.Execute(context.Background(), e.state))
}

func (e *stageEnv) runAnalyze(t *testing.T) {
	t.Helper()
	stage := NewAnalyzeStage(e.cfg, e.paths, nil, nil, nil)
	require.NoError(t, stage.Execute(context.Background(), e.state))
}

func TestProcessStage_Execute(t *testing.T) {
	env := newStageEnv(t)
	stage := NewProcessStage(env.cfg, env.paths, nil, nil, nil)

	require.NoError(t, stage.Validate(env.state))
	require.NoError(t, stage.Execute(context.Background(), env.state))

	assert.True(t, config.FileExists(env.paths.CleanDataCSV))
	assert.True(t, config.FileExists(env.paths.ProfileJSON))

	rows, ok := env.state.GetContext(ContextKeyRowsParsed)
	require.True(t, ok)
	assert.Equal(t, 7, rows)

	date, ok := env.state.GetContext(ContextKeyDatasetDate)
	require.True(t, ok)
	assert.Equal(t, "2021-01-03", date)

	countryRows, _ := env.state.GetContext(ContextKeyCountryRows)
	assert.Equal(t, 5, countryRows)
	aggregateRows, _ := env.state.GetContext(ContextKeyAggregateRows)
	assert.Equal(t, 2, aggregateRows)

	ds, err := exporter.LoadCleanData(env.paths.CleanDataCSV)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 7)

	stageState := env.state.GetStage(StageIDProcess)
	assert.Equal(t, 7, stageState.Metadata["rows_parsed"])
	assert.Equal(t, env.paths.CleanDataCSV, stageState.Metadata["output_path"])
	assert.Equal(t, float64(100), stageState.Progress)
}

func TestProcessStage_Execute_DateWindow(t *testing.T) {
	t.Run("filters to the window", func(t *testing.T) {
		env := newStageEnv(t)
		env.state.SetConfig(ContextKeyFromDate, "2021-01-02")
		env.state.SetConfig(ContextKeyToDate, "2021-01-02")

		env.runProcess(t)

		ds, err := exporter.LoadCleanData(env.paths.CleanDataCSV)
		require.NoError(t, err)
		require.Len(t, ds.Records, 3)
		for _, rec := range ds.Records {
			assert.Equal(t, testutil.Day(2021, 1, 2), rec.Date)
		}
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		env := newStageEnv(t)
		env.state.SetConfig(ContextKeyFromDate, "02-01-2021")

		stage := NewProcessStage(env.cfg, env.paths, nil, nil, nil)
		err := stage.Execute(context.Background(), env.state)
		require.Error(t, err)
		assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	})

	t.Run("rejects an empty window", func(t *testing.T) {
		env := newStageEnv(t)
		env.state.SetConfig(ContextKeyFromDate, "2020-01-01")
		env.state.SetConfig(ContextKeyToDate, "2020-06-30")

		stage := NewProcessStage(env.cfg, env.paths, nil, nil, nil)
		err := stage.Execute(context.Background(), env.state)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no rows fall inside")
	})
}

func TestProcessStage_Validate(t *testing.T) {
	t.Run("missing raw dataset", func(t *testing.T) {
		paths := config.PathsAt(t.TempDir())
		stage := NewProcessStage(config.Default(), paths, nil, nil, nil)

		err := stage.Validate(NewOperationState("op-1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run the fetch stage first")
	})

	t.Run("dataset path from the fetch stage wins", func(t *testing.T) {
		env := newStageEnv(t)
		stage := NewProcessStage(env.cfg, env.paths, nil, nil, nil)

		env.state.SetContext(ContextKeyDatasetPath, env.paths.RawDatasetCSV)
		assert.NoError(t, stage.Validate(env.state))

		env.state.SetContext(ContextKeyDatasetPath, "/nonexistent/owid.csv")
		assert.Error(t, stage.Validate(env.state))
	})
}

func TestAnalyzeStage_Execute(t *testing.T) {
	env := newStageEnv(t)
	env.runProcess(t)

	stage := NewAnalyzeStage(env.cfg, env.paths, nil, nil, nil)
	require.NoError(t, stage.Validate(env.state))
	require.NoError(t, stage.Execute(context.Background(), env.state))

	for _, path := range []string{
		env.paths.SnapshotCSV,
		env.paths.GlobalTrendsCSV,
		env.paths.RankingsCSV,
		env.paths.CorrelationsJSON,
	} {
		assert.True(t, config.FileExists(path), "expected artifact at %s", path)
	}

	snapshot, err := exporter.LoadSnapshot(env.paths.SnapshotCSV)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "Brazil", snapshot[0].Location)
	assert.Equal(t, "United States", snapshot[1].Location)

	trends, err := exporter.LoadGlobalTrends(env.paths.GlobalTrendsCSV)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.True(t, trends[0].Date.Before(trends[1].Date))

	locations, _ := env.state.GetContext(ContextKeyLocations)
	assert.Equal(t, 2, locations)
}

func TestAnalyzeStage_Validate_MissingCleanData(t *testing.T) {
	env := newStageEnv(t)
	stage := NewAnalyzeStage(env.cfg, env.paths, nil, nil, nil)

	err := stage.Validate(env.state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the process stage first")
}

func TestVisualizeStage_Execute(t *testing.T) {
	env := newStageEnv(t)
	env.runProcess(t)
	env.runAnalyze(t)

	stage := NewVisualizeStage(env.cfg, env.paths, nil, nil, nil)
	require.NoError(t, stage.Validate(env.state))
	require.NoError(t, stage.Execute(context.Background(), env.state))

	assert.True(t, config.FileExists(env.paths.ChartIndexJSON))

	var index domain.ChartIndex
	require.NoError(t, exporter.ReadJSON(env.paths.ChartIndexJSON, &index))
	require.Len(t, index.Charts, charts.CatalogueSize())
	for _, artifact := range index.Charts {
		assert.True(t, config.FileExists(artifact.HTMLPath), "chart %s missing", artifact.Name)
	}

	rendered, ok := env.state.GetContext(ContextKeyChartsRendered)
	require.True(t, ok)
	assert.Equal(t, charts.CatalogueSize(), rendered)

	// PNG capture is off, so no snapshot metadata may appear
	stageState := env.state.GetStage(StageIDVisualize)
	_, hasSnapshots := stageState.Metadata["snapshots"]
	assert.False(t, hasSnapshots)
}

func TestVisualizeStage_Validate_MissingArtifacts(t *testing.T) {
	env := newStageEnv(t)

	stage := NewVisualizeStage(env.cfg, env.paths, nil, nil, nil)
	err := stage.Validate(env.state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the process and analyze stages first")
}

func TestReportStage_Execute(t *testing.T) {
	env := newStageEnv(t)
	env.runProcess(t)
	env.runAnalyze(t)

	// Mark the stages the manager would have completed before reporting
	for _, id := range []string{StageIDFetch, StageIDProcess, StageIDAnalyze} {
		ss := env.state.GetStage(id)
		ss.Start()
		ss.Complete()
	}
	env.state.SetConfig(ContextKeyFromDate, "2021-01-01")
	env.state.SetConfig(ContextKeyToDate, "2021-06-30")
	env.state.SetConfig(ContextKeyMode, ModeFull)

	stage := NewReportStage(env.cfg, env.paths, nil, nil, nil)
	require.NoError(t, stage.Validate(env.state))
	require.NoError(t, stage.Execute(context.Background(), env.state))

	for _, path := range []string{
		env.paths.InsightsTXT,
		env.paths.InsightsJSON,
		env.paths.WorkbookXLSX,
		env.paths.OperationManifest,
	} {
		assert.True(t, config.FileExists(path), "expected deliverable at %s", path)
	}

	manifest, err := LoadManifestFromFile(env.paths.OperationManifest)
	require.NoError(t, err)
	assert.Equal(t, "completed", manifest.Status)
	assert.Equal(t, "2021-01-01", manifest.FromDate)
	assert.Equal(t, ModeFull, manifest.Mode)
	assert.True(t, manifest.HasData(DataTypeRawDataset))
	assert.True(t, manifest.HasData(DataTypeCleanData))
	assert.True(t, manifest.IsStageCompleted(StageIDProcess))

	artifacts, ok := env.state.GetContext(ContextKeyArtifacts)
	require.True(t, ok)
	assert.Greater(t, artifacts.(int), 0)

	stageState := env.state.GetStage(StageIDReport)
	assert.Equal(t, env.paths.WorkbookXLSX, stageState.Metadata["workbook_path"])
}

func TestReportStage_Validate_MissingArtifacts(t *testing.T) {
	env := newStageEnv(t)

	stage := NewReportStage(env.cfg, env.paths, nil, nil, nil)
	err := stage.Validate(env.state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the analyze stage first")
}

func TestReportingWindow(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		wantFrom time.Time
		wantTo   time.Time
		wantErr  string
	}{
		{
			name: "no window configured",
		},
		{
			name:     "both bounds",
			from:     "2021-01-01",
			to:       "2021-06-30",
			wantFrom: testutil.Day(2021, 1, 1),
			wantTo:   testutil.Day(2021, 6, 30),
		},
		{
			name:     "open ended",
			from:     "2021-03-15",
			wantFrom: testutil.Day(2021, 3, 15),
		},
		{
			name:    "malformed from date",
			from:    "15/03/2021",
			wantErr: "invalid from date",
		},
		{
			name:    "malformed to date",
			from:    "2021-01-01",
			to:      "June 30th",
			wantErr: "invalid to date",
		},
		{
			name:    "inverted window",
			from:    "2021-06-30",
			to:      "2021-01-01",
			wantErr: "date window ends before it starts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewOperationState("op-window")
			if tt.from != "" {
				state.SetConfig(ContextKeyFromDate, tt.from)
			}
			if tt.to != "" {
				state.SetConfig(ContextKeyToDate, tt.to)
			}

			from, to, err := reportingWindow(state)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestFilterWindow(t *testing.T) {
	fixtures := testutil.NewDatasetFixtures("")
	records := fixtures.SampleRecords()

	t.Run("closed interval keeps boundary dates", func(t *testing.T) {
		kept := filterWindow(append([]domain.Record(nil), records...),
			testutil.Day(2021, 1, 2), testutil.Day(2021, 1, 3))

		require.Len(t, kept, 4)
		for _, rec := range kept {
			assert.False(t, rec.Date.Before(testutil.Day(2021, 1, 2)))
			assert.False(t, rec.Date.After(testutil.Day(2021, 1, 3)))
		}
	})

	t.Run("zero bounds leave that side open", func(t *testing.T) {
		kept := filterWindow(append([]domain.Record(nil), records...),
			time.Time{}, testutil.Day(2021, 1, 1))

		require.Len(t, kept, 3)
		for _, rec := range kept {
			assert.Equal(t, testutil.Day(2021, 1, 1), rec.Date)
		}
	})
}

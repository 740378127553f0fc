package operations_test

import (
	"testing"
	"time"

	"covidcli/internal/operations"
	"covidcli/internal/operations/testutil"
)

func TestNewStageState(t *testing.T) {
	id := "fetch"
	name := "Dataset Download"

	state := operations.NewStageState(id, name)

	testutil.AssertEqual(t, state.ID, id)
	testutil.AssertEqual(t, state.Name, name)
	testutil.AssertStageStatus(t, state, operations.StageStatusPending)
	testutil.AssertProgress(t, state, 0)
	testutil.AssertNotNil(t, state.Metadata)

	if state.StartTime != nil {
		t.Error("StartTime should be nil initially")
	}
	if state.EndTime != nil {
		t.Error("EndTime should be nil initially")
	}
	if state.Error != nil {
		t.Error("Error should be nil initially")
	}
}

func TestStageStateTransitions(t *testing.T) {
	tests := []struct {
		name         string
		transition   func(*operations.StageState)
		wantStatus   operations.StageStatus
		wantProgress float64
		checkTime    func(*operations.StageState) bool
	}{
		{
			name: "Start",
			transition: func(s *operations.StageState) {
				s.Start()
			},
			wantStatus:   operations.StageStatusActive,
			wantProgress: 0,
			checkTime: func(s *operations.StageState) bool {
				return s.StartTime != nil && s.EndTime == nil
			},
		},
		{
			name: "Complete",
			transition: func(s *operations.StageState) {
				s.Complete()
			},
			wantStatus:   operations.StageStatusCompleted,
			wantProgress: 100,
			checkTime: func(s *operations.StageState) bool {
				return s.EndTime != nil
			},
		},
		{
			name: "Fail",
			transition: func(s *operations.StageState) {
				s.Fail(operations.NewExecutionError("test", nil, false))
			},
			wantStatus: operations.StageStatusFailed,
			checkTime: func(s *operations.StageState) bool {
				return s.EndTime != nil && s.Error != nil
			},
		},
		{
			name: "Skip",
			transition: func(s *operations.StageState) {
				s.Skip("Dependencies not met")
			},
			wantStatus: operations.StageStatusSkipped,
			checkTime: func(s *operations.StageState) bool {
				return s.EndTime != nil && s.Message == "Dependencies not met"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := operations.NewStageState("test", "Test")

			tt.transition(state)

			testutil.AssertStageStatus(t, state, tt.wantStatus)
			if tt.wantProgress > 0 {
				testutil.AssertProgress(t, state, tt.wantProgress)
			}
			if !tt.checkTime(state) {
				t.Error("time fields not set correctly")
			}
		})
	}
}

func TestStageStateUpdateProgress(t *testing.T) {
	state := operations.NewStageState("test", "Test")

	updates := []struct {
		progress float64
		message  string
	}{
		{25, "Starting"},
		{50, "Halfway"},
		{75, "Almost done"},
		{100, "Completed"},
	}

	for _, update := range updates {
		state.UpdateProgress(update.progress, update.message)
		testutil.AssertProgress(t, state, update.progress)
		testutil.AssertEqual(t, state.Message, update.message)
	}
}

func TestStageStateDuration(t *testing.T) {
	state := operations.NewStageState("test", "Test")

	if state.Duration() != 0 {
		t.Error("Duration should be 0 before start")
	}

	state.Start()
	time.Sleep(50 * time.Millisecond)

	duration := state.Duration()
	if duration <= 0 {
		t.Error("Duration should be > 0 while running")
	}

	state.Complete()
	finalDuration := state.Duration()

	// Duration is fixed once the stage ends
	time.Sleep(10 * time.Millisecond)
	if state.Duration() != finalDuration {
		t.Error("Duration should not change after completion")
	}

	testutil.AssertDuration(t, finalDuration, 50*time.Millisecond, 20*time.Millisecond)
}

func TestBaseStage(t *testing.T) {
	id := "process"
	name := "Data Cleaning"
	deps := []string{"fetch"}

	base := operations.NewBaseStage(id, name, deps)

	testutil.AssertEqual(t, base.ID(), id)
	testutil.AssertEqual(t, base.Name(), name)

	gotDeps := base.GetDependencies()
	if len(gotDeps) != len(deps) {
		t.Errorf("dependencies count = %d, want %d", len(gotDeps), len(deps))
	}
	for i, dep := range gotDeps {
		if dep != deps[i] {
			t.Errorf("dependency[%d] = %s, want %s", i, dep, deps[i])
		}
	}

	// Default validation always passes
	state := operations.NewOperationState("test")
	testutil.AssertNoError(t, base.Validate(state))

	// No declared inputs means the stage can always run
	if !base.CanRun(nil) {
		t.Error("CanRun should be true for a stage without requirements")
	}
}

func TestBaseStageNilDependencies(t *testing.T) {
	base := operations.NewBaseStage("test", "Test", nil)

	deps := base.GetDependencies()
	if deps == nil {
		t.Error("GetDependencies should return empty slice, not nil")
	}
	if len(deps) != 0 {
		t.Errorf("dependencies count = %d, want 0", len(deps))
	}
}

func TestStageStateMetadata(t *testing.T) {
	state := operations.NewStageState("test", "Test")

	state.SetMetadata("rows_parsed", 429435)
	state.SetMetadata("output_path", "data/processed/clean_data.csv")
	state.SetMetadata("unchanged", true)

	if state.Metadata["rows_parsed"] != 429435 {
		t.Error("metadata rows_parsed not set correctly")
	}
	if state.Metadata["output_path"] != "data/processed/clean_data.csv" {
		t.Error("metadata output_path not set correctly")
	}
	if state.Metadata["unchanged"] != true {
		t.Error("metadata unchanged not set correctly")
	}
}

func TestStageStateErrorHandling(t *testing.T) {
	failures := []error{
		operations.NewExecutionError("test", nil, true),
		operations.NewTimeoutError("test", "30s"),
		operations.NewValidationError("test", "invalid input"),
	}

	for _, err := range failures {
		s := operations.NewStageState("test", "Test")
		s.Fail(err)

		testutil.AssertStageStatus(t, s, operations.StageStatusFailed)
		if s.Error == nil {
			t.Error("Error should be set after Fail")
		}
		if s.EndTime == nil {
			t.Error("EndTime should be set after Fail")
		}
	}
}

func TestRequirementsSatisfied(t *testing.T) {
	manifest := operations.NewPipelineManifest("op-1", "", "")
	manifest.AddData(operations.DataTypeRawDataset, &operations.DataInfo{
		Type:      operations.DataTypeRawDataset,
		Location:  "data/raw",
		FileCount: 1,
	})
	manifest.AddData(operations.DataTypeAnalytics, &operations.DataInfo{
		Type:      operations.DataTypeAnalytics,
		Location:  "data/analytics",
		FileCount: 4,
	})

	tests := []struct {
		name         string
		manifest     *operations.PipelineManifest
		requirements []operations.DataRequirement
		want         bool
	}{
		{
			name:         "no requirements",
			manifest:     manifest,
			requirements: nil,
			want:         true,
		},
		{
			name:     "satisfied requirement",
			manifest: manifest,
			requirements: []operations.DataRequirement{
				{Type: operations.DataTypeRawDataset, MinCount: 1},
			},
			want: true,
		},
		{
			name:     "missing data type",
			manifest: manifest,
			requirements: []operations.DataRequirement{
				{Type: operations.DataTypeCleanData, MinCount: 1},
			},
			want: false,
		},
		{
			name:     "insufficient file count",
			manifest: manifest,
			requirements: []operations.DataRequirement{
				{Type: operations.DataTypeAnalytics, MinCount: 5},
			},
			want: false,
		},
		{
			name:     "optional requirement missing",
			manifest: manifest,
			requirements: []operations.DataRequirement{
				{Type: operations.DataTypeRawDataset, MinCount: 1},
				{Type: operations.DataTypeCharts, MinCount: 1, Optional: true},
			},
			want: true,
		},
		{
			name:     "nil manifest fails non-optional requirements",
			manifest: nil,
			requirements: []operations.DataRequirement{
				{Type: operations.DataTypeRawDataset, MinCount: 1},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := operations.RequirementsSatisfied(tt.manifest, tt.requirements)
			testutil.AssertEqual(t, got, tt.want)
		})
	}
}

package operations_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"covidcli/internal/operations"
	"covidcli/internal/operations/testutil"
)

func TestNewOperationState(t *testing.T) {
	id := "test-operation"
	state := operations.NewOperationState(id)

	testutil.AssertEqual(t, state.ID, id)
	testutil.AssertOperationStatus(t, state, operations.OperationStatusPending)
	testutil.AssertNotNil(t, state.Stages)
	testutil.AssertNotNil(t, state.Context)
	testutil.AssertNotNil(t, state.Config)

	if state.EndTime != nil {
		t.Error("EndTime should be nil initially")
	}
	if state.Error != nil {
		t.Error("Error should be nil initially")
	}

	if state.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestOperationStateTransitions(t *testing.T) {
	tests := []struct {
		name       string
		transition func(*operations.OperationState)
		wantStatus operations.OperationStatusValue
		checkEnd   bool
		checkError bool
	}{
		{
			name: "Start",
			transition: func(p *operations.OperationState) {
				p.Start()
			},
			wantStatus: operations.OperationStatusRunning,
			checkEnd:   false,
		},
		{
			name: "Complete",
			transition: func(p *operations.OperationState) {
				p.Complete()
			},
			wantStatus: operations.OperationStatusCompleted,
			checkEnd:   true,
		},
		{
			name: "Fail",
			transition: func(p *operations.OperationState) {
				p.Fail(errors.New("test error"))
			},
			wantStatus: operations.OperationStatusFailed,
			checkEnd:   true,
			checkError: true,
		},
		{
			name: "Cancel",
			transition: func(p *operations.OperationState) {
				p.Cancel()
			},
			wantStatus: operations.OperationStatusCancelled,
			checkEnd:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := operations.NewOperationState("test")

			tt.transition(state)

			testutil.AssertOperationStatus(t, state, tt.wantStatus)

			if tt.checkEnd && state.EndTime == nil {
				t.Error("EndTime should be set")
			}
			if !tt.checkEnd && state.EndTime != nil {
				t.Error("EndTime should not be set")
			}
			if tt.checkError && state.Error == nil {
				t.Error("Error should be set")
			}
		})
	}
}

func TestOperationStateStageManagement(t *testing.T) {
	state := operations.NewOperationState("test")

	stage1 := operations.NewStageState("fetch", "Dataset Download")
	stage2 := operations.NewStageState("process", "Data Cleaning")
	stage3 := operations.NewStageState("analyze", "Statistical Analysis")

	state.SetStage("fetch", stage1)
	state.SetStage("process", stage2)
	state.SetStage("analyze", stage3)

	got1 := state.GetStage("fetch")
	got2 := state.GetStage("process")
	got3 := state.GetStage("analyze")
	gotNil := state.GetStage("nonexistent")

	if got1 != stage1 {
		t.Error("fetch stage not retrieved correctly")
	}
	if got2 != stage2 {
		t.Error("process stage not retrieved correctly")
	}
	if got3 != stage3 {
		t.Error("analyze stage not retrieved correctly")
	}
	if gotNil != nil {
		t.Error("nonexistent stage should return nil")
	}
}

func TestOperationStateContext(t *testing.T) {
	state := operations.NewOperationState("test")

	state.SetContext(operations.ContextKeyDatasetPath, "data/raw/owid-covid-data.csv")
	state.SetContext(operations.ContextKeyRowsParsed, 429435)
	state.SetContext("refreshed", true)

	val1, ok1 := state.GetContext(operations.ContextKeyDatasetPath)
	val2, ok2 := state.GetContext(operations.ContextKeyRowsParsed)
	val3, ok3 := state.GetContext("refreshed")
	_, ok4 := state.GetContext("nonexistent")

	if !ok1 || val1 != "data/raw/owid-covid-data.csv" {
		t.Error("context dataset path not retrieved correctly")
	}
	if !ok2 || val2 != 429435 {
		t.Error("context rows parsed not retrieved correctly")
	}
	if !ok3 || val3 != true {
		t.Error("context refreshed not retrieved correctly")
	}
	if ok4 {
		t.Error("nonexistent key should return false")
	}
}

func TestOperationStateConfig(t *testing.T) {
	state := operations.NewOperationState("test")

	state.SetConfig(operations.ContextKeyMode, operations.ModeFull)
	state.SetConfig("timeout", 30)
	state.SetConfig("retry", true)

	val1, ok1 := state.GetConfig(operations.ContextKeyMode)
	val2, ok2 := state.GetConfig("timeout")
	val3, ok3 := state.GetConfig("retry")
	_, ok4 := state.GetConfig("nonexistent")

	if !ok1 || val1 != operations.ModeFull {
		t.Error("config mode not retrieved correctly")
	}
	if !ok2 || val2 != 30 {
		t.Error("config timeout not retrieved correctly")
	}
	if !ok3 || val3 != true {
		t.Error("config retry not retrieved correctly")
	}
	if ok4 {
		t.Error("nonexistent key should return false")
	}
}

func TestOperationStateDuration(t *testing.T) {
	state := operations.NewOperationState("test")

	state.Start()
	time.Sleep(50 * time.Millisecond)

	duration := state.Duration()
	if duration <= 0 {
		t.Error("Duration should be > 0 while running")
	}

	state.Complete()
	finalDuration := state.Duration()

	// Duration is fixed once the operation ends
	time.Sleep(10 * time.Millisecond)
	if state.Duration() != finalDuration {
		t.Error("Duration should not change after completion")
	}

	testutil.AssertDuration(t, finalDuration, 50*time.Millisecond, 20*time.Millisecond)
}

func TestOperationStateStageQueries(t *testing.T) {
	state := operations.NewOperationState("test")

	active1 := operations.NewStageState("active1", "Active 1")
	active1.Status = operations.StageStatusActive

	active2 := operations.NewStageState("active2", "Active 2")
	active2.Status = operations.StageStatusActive

	completed := operations.NewStageState("completed", "Completed")
	completed.Status = operations.StageStatusCompleted

	failed := operations.NewStageState("failed", "Failed")
	failed.Status = operations.StageStatusFailed

	pending := operations.NewStageState("pending", "Pending")
	pending.Status = operations.StageStatusPending

	state.SetStage("active1", active1)
	state.SetStage("active2", active2)
	state.SetStage("completed", completed)
	state.SetStage("failed", failed)
	state.SetStage("pending", pending)

	completedStages := state.GetCompletedStages()
	if len(completedStages) != 1 {
		t.Errorf("completed stages count = %d, want 1", len(completedStages))
	}

	failedStages := state.GetFailedStages()
	if len(failedStages) != 1 {
		t.Errorf("failed stages count = %d, want 1", len(failedStages))
	}
}

func TestOperationStateHasFailures(t *testing.T) {
	tests := []struct {
		name   string
		stages map[string]operations.StageStatus
		want   bool
	}{
		{
			name: "No failures",
			stages: map[string]operations.StageStatus{
				"s1": operations.StageStatusCompleted,
				"s2": operations.StageStatusCompleted,
			},
			want: false,
		},
		{
			name: "Has failure",
			stages: map[string]operations.StageStatus{
				"s1": operations.StageStatusCompleted,
				"s2": operations.StageStatusFailed,
			},
			want: true,
		},
		{
			name: "Multiple failures",
			stages: map[string]operations.StageStatus{
				"s1": operations.StageStatusFailed,
				"s2": operations.StageStatusFailed,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := operations.NewOperationState("test")

			for id, status := range tt.stages {
				stage := operations.NewStageState(id, id)
				stage.Status = status
				state.SetStage(id, stage)
			}

			got := state.HasFailures()
			if got != tt.want {
				t.Errorf("HasFailures() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperationStateClone(t *testing.T) {
	original := operations.NewOperationState("test")
	original.Status = operations.OperationStatusRunning
	original.SetContext(operations.ContextKeyDatasetDate, "2023-04-05")
	original.SetConfig(operations.ContextKeyFromDate, "2021-01-01")

	stage1 := operations.NewStageState("fetch", "Dataset Download")
	stage1.Status = operations.StageStatusCompleted
	stage1.SetMetadata("dataset_path", "data/raw/owid-covid-data.csv")
	original.SetStage("fetch", stage1)

	clone := original.Clone()

	testutil.AssertEqual(t, clone.ID, original.ID)
	testutil.AssertOperationStatus(t, clone, original.Status)

	val, ok := clone.GetContext(operations.ContextKeyDatasetDate)
	if !ok || val != "2023-04-05" {
		t.Error("context not cloned correctly")
	}

	val, ok = clone.GetConfig(operations.ContextKeyFromDate)
	if !ok || val != "2021-01-01" {
		t.Error("config not cloned correctly")
	}

	clonedStage := clone.GetStage("fetch")
	if clonedStage == nil || clonedStage.Status != operations.StageStatusCompleted {
		t.Error("stages not cloned correctly")
	}
	if clonedStage.Metadata["dataset_path"] != "data/raw/owid-covid-data.csv" {
		t.Error("stage metadata not cloned correctly")
	}

	// Modifications to the clone do not leak back
	clone.SetContext("extra", "value")
	_, ok = original.GetContext("extra")
	if ok {
		t.Error("clone modifications affected original")
	}
}

func TestOperationStateConcurrency(t *testing.T) {
	state := operations.NewOperationState("test")

	var wg sync.WaitGroup
	ops := 100

	// Concurrent context writes
	wg.Add(ops)
	for i := 0; i < ops; i++ {
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", n)
			state.SetContext(key, n)
		}(i)
	}

	// Concurrent config writes
	wg.Add(ops)
	for i := 0; i < ops; i++ {
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("config%d", n)
			state.SetConfig(key, n)
		}(i)
	}

	// Concurrent stage writes
	wg.Add(ops)
	for i := 0; i < ops; i++ {
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("stage%d", n)
			stage := operations.NewStageState(id, id)
			state.SetStage(id, stage)
		}(i)
	}

	// Concurrent reads
	wg.Add(ops)
	for i := 0; i < ops; i++ {
		go func(n int) {
			defer wg.Done()
			state.GetStatus()
			state.GetCompletedStages()
			state.GetFailedStages()
			state.HasFailures()
			state.Duration()
		}(i)
	}

	wg.Wait()

	// All writes landed
	for i := 0; i < ops; i++ {
		key := fmt.Sprintf("key%d", i)
		val, ok := state.GetContext(key)
		if !ok || val != i {
			t.Errorf("context %s not set correctly", key)
		}

		key = fmt.Sprintf("config%d", i)
		val, ok = state.GetConfig(key)
		if !ok || val != i {
			t.Errorf("config %s not set correctly", key)
		}

		id := fmt.Sprintf("stage%d", i)
		stage := state.GetStage(id)
		if stage == nil {
			t.Errorf("stage %s not set correctly", id)
		}
	}
}

package testutil

import (
	"math"
	"strings"
	"testing"
	"time"

	"covidcli/internal/operations"
)

// AssertStageStatus verifies a stage has the expected status
func AssertStageStatus(t *testing.T, stage *operations.StageState, expected operations.StageStatus) {
	t.Helper()
	if stage == nil {
		t.Fatal("stage state is nil")
	}
	if stage.Status != expected {
		t.Errorf("stage %s status = %v, want %v", stage.ID, stage.Status, expected)
	}
}

// AssertOperationStatus verifies an operation has the expected status
func AssertOperationStatus(t *testing.T, p *operations.OperationState, expected operations.OperationStatusValue) {
	t.Helper()
	if p == nil {
		t.Fatal("operation state is nil")
	}
	if p.Status != expected {
		t.Errorf("operation status = %v, want %v", p.Status, expected)
	}
}

// AssertWebSocketMessage verifies a WebSocket message was sent
func AssertWebSocketMessage(t *testing.T, hub *MockWebSocketHub, eventType string) {
	t.Helper()
	messages := hub.GetMessagesByType(eventType)
	if len(messages) == 0 {
		t.Errorf("no WebSocket message of type %s found", eventType)
	}
}

// AssertWebSocketMessageCount verifies the number of WebSocket messages
func AssertWebSocketMessageCount(t *testing.T, hub *MockWebSocketHub, eventType string, expected int) {
	t.Helper()
	messages := hub.GetMessagesByType(eventType)
	if len(messages) != expected {
		t.Errorf("WebSocket message count for %s = %d, want %d", eventType, len(messages), expected)
	}
}

// AssertStageCompleted verifies a stage completed successfully
func AssertStageCompleted(t *testing.T, p *operations.OperationState, stageID string) {
	t.Helper()
	stage := p.GetStage(stageID)
	if stage == nil {
		t.Fatalf("stage %s not found", stageID)
	}
	AssertStageStatus(t, stage, operations.StageStatusCompleted)
	AssertProgress(t, stage, 100)
}

// AssertStageFailed verifies a stage failed
func AssertStageFailed(t *testing.T, p *operations.OperationState, stageID string) {
	t.Helper()
	stage := p.GetStage(stageID)
	if stage == nil {
		t.Fatalf("stage %s not found", stageID)
	}
	AssertStageStatus(t, stage, operations.StageStatusFailed)
	if stage.Error == nil {
		t.Errorf("stage %s failed but carries no error", stageID)
	}
}

// AssertStageSkipped verifies a stage was skipped
func AssertStageSkipped(t *testing.T, p *operations.OperationState, stageID string) {
	t.Helper()
	stage := p.GetStage(stageID)
	if stage == nil {
		t.Fatalf("stage %s not found", stageID)
	}
	AssertStageStatus(t, stage, operations.StageStatusSkipped)
}

// AssertDuration verifies a duration is within tolerance
func AssertDuration(t *testing.T, actual, expected, tolerance time.Duration) {
	t.Helper()
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		t.Errorf("duration = %v, want %v ± %v", actual, expected, tolerance)
	}
}

// AssertProgress verifies stage progress
func AssertProgress(t *testing.T, stage *operations.StageState, expected float64) {
	t.Helper()
	if stage == nil {
		t.Fatal("stage state is nil")
	}
	if math.Abs(stage.Progress-expected) > 0.01 {
		t.Errorf("stage %s progress = %v, want %v", stage.ID, stage.Progress, expected)
	}
}

// AssertError verifies an error matches expected
func AssertError(t *testing.T, err error, wantErr bool) {
	t.Helper()
	if (err != nil) != wantErr {
		t.Errorf("error = %v, wantErr %v", err, wantErr)
	}
}

// AssertErrorContains verifies an error contains a substring
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error containing %q, got nil", substr)
		return
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("error = %v, want error containing %q", err, substr)
	}
}

// AssertErrorType verifies the type of an operation error
func AssertErrorType(t *testing.T, err error, expectedType operations.ErrorType) {
	t.Helper()
	if err == nil {
		t.Fatal("error is nil")
	}
	got := operations.GetErrorType(err)
	if got != expectedType {
		t.Errorf("error type = %v, want %v", got, expectedType)
	}
}

// AssertNoError fails if there is an error
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertEqual verifies two values are equal
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertNotNil verifies a value is not nil
func AssertNotNil(t *testing.T, v interface{}) {
	t.Helper()
	if v == nil {
		t.Fatal("value is nil")
	}
}

// AssertStageOrder verifies stages were executed in the expected order
func AssertStageOrder(t *testing.T, stages []*MockStage, expectedOrder []string) {
	t.Helper()

	type execution struct {
		id   string
		time time.Time
	}

	var executions []execution
	for _, stage := range stages {
		if len(stage.ExecuteArgs) > 0 {
			executions = append(executions, execution{
				id:   stage.ID(),
				time: stage.ExecuteArgs[0].Time,
			})
		}
	}

	for i := 0; i < len(executions)-1; i++ {
		for j := i + 1; j < len(executions); j++ {
			if executions[j].time.Before(executions[i].time) {
				executions[i], executions[j] = executions[j], executions[i]
			}
		}
	}

	if len(executions) != len(expectedOrder) {
		t.Errorf("executed %d stages, expected %d", len(executions), len(expectedOrder))
		return
	}

	for i, exec := range executions {
		if exec.id != expectedOrder[i] {
			t.Errorf("execution order[%d] = %s, want %s", i, exec.id, expectedOrder[i])
		}
	}
}

// AssertContextValue verifies a shared operation context value
func AssertContextValue(t *testing.T, state *operations.OperationState, key string, expected interface{}) {
	t.Helper()
	val, ok := state.GetContext(key)
	if !ok {
		t.Errorf("context key %q not found", key)
		return
	}
	if val != expected {
		t.Errorf("context[%q] = %v, want %v", key, val, expected)
	}
}

// AssertConfigValue verifies an operation config value
func AssertConfigValue(t *testing.T, state *operations.OperationState, key string, expected interface{}) {
	t.Helper()
	val, ok := state.GetConfig(key)
	if !ok {
		t.Errorf("config key %q not found", key)
		return
	}
	if val != expected {
		t.Errorf("config[%q] = %v, want %v", key, val, expected)
	}
}

package testutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"covidcli/internal/operations"
)

// CreateTestOperationState creates an operation state for testing
func CreateTestOperationState(id string) *operations.OperationState {
	state := operations.NewOperationState(id)
	state.SetConfig(operations.ContextKeyFromDate, "2021-01-01")
	state.SetConfig(operations.ContextKeyToDate, "2021-06-30")
	state.SetConfig(operations.ContextKeyMode, operations.ModeFull)
	return state
}

// CreateTestStageState creates a stage state for testing
func CreateTestStageState(id, name string) *operations.StageState {
	return operations.NewStageState(id, name)
}

// CreateTestConfig creates a test configuration with short timeouts
func CreateTestConfig() *operations.Config {
	return operations.NewConfigBuilder().
		WithExecutionMode(operations.ExecutionModeSequential).
		WithRetryConfig(operations.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     100 * time.Millisecond,
			Multiplier:   2.0,
		}).
		WithStageTimeout(operations.StageIDFetch, 1*time.Second).
		WithStageTimeout(operations.StageIDProcess, 1*time.Second).
		WithStageTimeout(operations.StageIDAnalyze, 1*time.Second).
		WithStageTimeout(operations.StageIDVisualize, 1*time.Second).
		WithStageTimeout(operations.StageIDReport, 1*time.Second).
		Build()
}

// CreateTestRegistry creates a registry with three independent stages
func CreateTestRegistry() *operations.Registry {
	registry := operations.NewRegistry()

	registry.Register(CreateSuccessfulStage("stage1", "Stage 1"))
	registry.Register(CreateSuccessfulStage("stage2", "Stage 2"))
	registry.Register(CreateSuccessfulStage("stage3", "Stage 3"))

	return registry
}

// CreateSuccessfulStage creates a stage that always succeeds
func CreateSuccessfulStage(id, name string, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			stageState := state.GetStage(id)
			if stageState != nil {
				stageState.UpdateProgress(50, "Processing...")
				timer := time.NewTimer(10 * time.Millisecond)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}
				stageState.UpdateProgress(100, "Completed")
			}
			return nil
		},
	}
}

// CreateFailingStage creates a stage that always fails
func CreateFailingStage(id, name string, err error, deps ...string) *MockStage {
	if err == nil {
		err = errors.New("stage failed")
	}

	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			return err
		},
	}
}

// CreateRetryableStage creates a stage that fails failCount times then succeeds
func CreateRetryableStage(id, name string, failCount int, deps ...string) *MockStage {
	attempts := 0

	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			attempts++
			if attempts <= failCount {
				return operations.NewExecutionError(id, errors.New("temporary failure"), true)
			}
			return nil
		},
	}
}

// CreateSlowStage creates a stage that takes a specific duration
func CreateSlowStage(id, name string, duration time.Duration, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			select {
			case <-time.After(duration):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// CreateValidationFailingStage creates a stage that fails validation
func CreateValidationFailingStage(id, name string, validationErr error, deps ...string) *MockStage {
	if validationErr == nil {
		validationErr = errors.New("validation failed")
	}

	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ValidateFunc: func(state *operations.OperationState) error {
			return validationErr
		},
	}
}

// CreateContextAwareStage creates a stage that writes a shared context value
func CreateContextAwareStage(id, name string, writeKey string, writeValue interface{}, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			if writeKey != "" {
				state.SetContext(writeKey, writeValue)
			}
			return nil
		},
	}
}

// CreateComplexPipelineStages creates stages with a diamond dependency
// pattern: A feeds B and C, which both feed D.
func CreateComplexPipelineStages() []operations.Stage {
	stageA := CreateSuccessfulStage("A", "Stage A")
	stageB := CreateSuccessfulStage("B", "Stage B", "A")
	stageC := CreateSuccessfulStage("C", "Stage C", "A")
	stageD := CreateSuccessfulStage("D", "Stage D", "B", "C")

	return []operations.Stage{stageA, stageB, stageC, stageD}
}

// CreateOperationRequest creates a test operation request
func CreateOperationRequest(mode string) operations.OperationRequest {
	return operations.OperationRequest{
		ID:       fmt.Sprintf("test-operation-%d", time.Now().UnixNano()),
		Mode:     mode,
		FromDate: "2021-01-01",
		ToDate:   "2021-06-30",
		Parameters: map[string]interface{}{
			"test": true,
		},
	}
}

// StageBuilder provides a fluent interface for creating test stages
type StageBuilder struct {
	stage *MockStage
}

// NewStageBuilder creates a new stage builder
func NewStageBuilder(id, name string) *StageBuilder {
	return &StageBuilder{
		stage: &MockStage{
			IDValue:   id,
			NameValue: name,
		},
	}
}

// WithDependencies sets the stage dependencies
func (b *StageBuilder) WithDependencies(deps ...string) *StageBuilder {
	b.stage.DependenciesValue = deps
	return b
}

// WithExecute sets the execute function
func (b *StageBuilder) WithExecute(fn func(context.Context, *operations.OperationState) error) *StageBuilder {
	b.stage.ExecuteFunc = fn
	return b
}

// WithValidate sets the validate function
func (b *StageBuilder) WithValidate(fn func(*operations.OperationState) error) *StageBuilder {
	b.stage.ValidateFunc = fn
	return b
}

// Build returns the constructed stage
func (b *StageBuilder) Build() *MockStage {
	return b.stage
}

package operations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Manager orchestrates operation execution
type Manager struct {
	registry    *Registry
	config      *Config
	hub         WebSocketHub
	broadcaster *StatusBroadcaster

	// Active operations
	mu         sync.RWMutex
	operations map[string]*OperationState
}

// NewManager creates a new operation manager with dependency injection
func NewManager(hub WebSocketHub, registry *Registry, config *Config) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	// Centralized status management for all WebSocket updates
	broadcaster := NewStatusBroadcaster(hub, slog.Default())

	return &Manager{
		registry:    registry,
		config:      config,
		hub:         hub,
		broadcaster: broadcaster,
		operations:  make(map[string]*OperationState),
	}
}

// RegisterStage registers a stage with the pipeline
func (m *Manager) RegisterStage(stage Stage) error {
	return m.registry.Register(stage)
}

// SetConfig updates the operation configuration
func (m *Manager) SetConfig(config *Config) {
	if config != nil {
		m.config = config
	}
}

// GetRegistry returns the registry for accessing registered stages
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster for centralized status updates
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// Execute runs an operation with the given request
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	// Generate operation ID if not provided
	if req.ID == "" {
		req.ID = fmt.Sprintf("operation-%d", time.Now().Unix())
	}

	// Create operation state
	state := NewOperationState(req.ID)

	// Set configuration from request
	if req.FromDate != "" {
		state.SetConfig(ContextKeyFromDate, req.FromDate)
	}
	if req.ToDate != "" {
		state.SetConfig(ContextKeyToDate, req.ToDate)
	}
	if req.Mode != "" {
		state.SetConfig(ContextKeyMode, req.Mode)
	}

	// Copy additional parameters
	for k, v := range req.Parameters {
		state.SetConfig(k, v)
	}

	// Store operation state
	m.storeOperation(state)
	defer m.removeOperation(req.ID)

	m.logOperationStart(ctx, req.ID, req)

	var span trace.Span
	if tracer := GetOperationTracer(); tracer != nil {
		ctx, span = tracer.TraceOperationExecution(ctx, req.ID, req)
		defer span.End()
	}

	// Determine which stages to run based on request
	var stages []Stage
	stageParam, hasStage := req.Parameters["stage"].(string)
	subset := stageSubset(req.Parameters["stages"])

	if hasStage && stageParam != "" && stageParam != "full_pipeline" {
		// Single stage requested
		requestedStage, err := m.registry.Get(stageParam)
		if err != nil || requestedStage == nil {
			if err == nil {
				err = fmt.Errorf("requested stage not found: %s", stageParam)
			}
			m.logOperationError(ctx, req.ID, err)
			state.Fail(err)
			return m.createResponse(state), err
		}
		stages = []Stage{requestedStage}

		slog.InfoContext(ctx, "executing_single_stage",
			slog.String("stage_id", stageParam),
			slog.String("operation_id", req.ID))
	} else if len(subset) > 0 {
		// A subset keeps the dependency order of the full chain. Stages
		// missing from the run validate their inputs on disk, so a
		// visualize-only run still works against a previous run's output.
		all, err := m.registry.GetDependencyOrder()
		if err != nil {
			m.logOperationError(ctx, req.ID, fmt.Errorf("failed to get dependency order: %w", err))
			state.Fail(err)
			return m.createResponse(state), err
		}
		for _, stage := range all {
			if _, ok := subset[stage.ID()]; ok {
				stages = append(stages, stage)
				delete(subset, stage.ID())
			}
		}
		if len(subset) > 0 {
			for id := range subset {
				err = fmt.Errorf("requested stage not found: %s", id)
				break
			}
			m.logOperationError(ctx, req.ID, err)
			state.Fail(err)
			return m.createResponse(state), err
		}

		slog.InfoContext(ctx, "executing_stage_subset",
			slog.Int("stage_count", len(stages)),
			slog.String("operation_id", req.ID))
	} else {
		// Full pipeline requested or no stage specified
		var err error
		stages, err = m.registry.GetDependencyOrder()
		if err != nil {
			m.logOperationError(ctx, req.ID, fmt.Errorf("failed to get dependency order: %w", err))
			state.Fail(err)
			return m.createResponse(state), err
		}

		slog.InfoContext(ctx, "executing_full_pipeline",
			slog.Int("stage_count", len(stages)),
			slog.String("operation_id", req.ID))
	}

	// Initialize stage states.
	// Broadcaster snapshot entries are keyed by stage ID so that subsequent
	// UpdateStageProgress calls (which use Stage.ID()) match existing entries.
	// The human-readable name is still carried inside the in-memory StageState.
	stageIDs := make([]string, len(stages))
	for i, stage := range stages {
		stageState := NewStageState(stage.ID(), stage.Name())
		state.SetStage(stage.ID(), stageState)
		stageIDs[i] = stage.ID()
	}

	// Create the operation in the broadcaster with all stages
	m.broadcaster.CreateOperation(req.ID, stageIDs)

	// Start operation execution
	state.Start()
	m.broadcaster.StartOperation(req.ID)

	// Execute stages based on execution mode
	var err error
	if m.config.ExecutionMode == ExecutionModeSequential {
		err = m.executeSequential(ctx, state, stages)
	} else {
		err = m.executeParallel(ctx, state, stages)
	}

	// Update final operation state
	if err != nil {
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
		if tracer := GetOperationTracer(); tracer != nil {
			if GetErrorType(err) == ErrorTypeCancellation {
				tracer.RecordOperationCancellation(ctx, req.ID)
			}
			tracer.RecordOperationError(ctx, req.ID, err)
		}
	} else {
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, "Operation completed successfully")
	}

	if tracer := GetOperationTracer(); tracer != nil && span != nil {
		tracer.RecordOperationCompletion(ctx, span, req.ID, state.Duration(), string(state.Status))
	}
	m.logOperationComplete(ctx, req.ID, state.Duration(), string(state.Status))

	return m.createResponse(state), err
}

// executeSequential executes stages one by one
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, stages []Stage) error {
	slog.InfoContext(ctx, "sequential_execution_start",
		slog.String("operation_id", state.ID),
		slog.Int("stage_count", len(stages)))
	for i, stage := range stages {
		select {
		case <-ctx.Done():
			slog.WarnContext(ctx, "operation_cancelled",
				slog.String("operation_id", state.ID),
				slog.String("stage", stage.ID()))
			return NewCancellationError(stage.ID())
		default:
			// Skip stages whose dependencies already failed
			stageState := state.GetStage(stage.ID())
			if stageState != nil && stageState.Status == StageStatusSkipped {
				slog.InfoContext(ctx, "stage_skipped",
					slog.String("operation_id", state.ID),
					slog.String("stage", stage.ID()),
					slog.Int("stage_number", i+1),
					slog.Int("total_stages", len(stages)))
				continue
			}

			// Sequential execution requires the previous stage to have finished
			if i > 0 {
				prevStage := stages[i-1]
				prevState := state.GetStage(prevStage.ID())
				if prevState != nil && prevState.Status != StageStatusCompleted && prevState.Status != StageStatusSkipped {
					if m.config.ContinueOnError && prevState.Status == StageStatusFailed {
						slog.InfoContext(ctx, "continuing_after_failed_stage",
							slog.String("operation_id", state.ID),
							slog.String("stage", stage.ID()),
							slog.String("previous_stage", prevStage.ID()),
							slog.String("previous_status", string(prevState.Status)))
					} else {
						slog.ErrorContext(ctx, "previous_stage_incomplete",
							slog.String("operation_id", state.ID),
							slog.String("stage", stage.ID()),
							slog.String("previous_stage", prevStage.ID()),
							slog.String("previous_status", string(prevState.Status)))
						stageState.Skip(fmt.Sprintf("Previous stage %s not completed", prevStage.ID()))
						m.broadcaster.UpdateStageProgress(state.ID, stage.ID(), int(stageState.Progress), fmt.Sprintf("Skipped: previous stage %s not completed", prevStage.ID()))
						continue
					}
				}
			}

			slog.InfoContext(ctx, "executing_stage",
				slog.String("operation_id", state.ID),
				slog.String("stage", stage.ID()),
				slog.Int("stage_number", i+1),
				slog.Int("total_stages", len(stages)))
			if err := m.executeStage(ctx, state, stage); err != nil {
				m.logStageError(ctx, state.ID, stage.ID(), err)
				if !m.config.ContinueOnError {
					// Skip all dependent stages
					m.skipDependentStages(state, stages, stage.ID())
					return err
				}
				slog.WarnContext(ctx, "stage_failed_continuing",
					slog.String("operation_id", state.ID),
					slog.String("stage", stage.ID()),
					slog.String("error", err.Error()))
			} else {
				// Verify the stage actually completed
				updatedState := state.GetStage(stage.ID())
				if updatedState.Status == StageStatusCompleted {
					slog.InfoContext(ctx, "stage_completed_successfully",
						slog.String("operation_id", state.ID),
						slog.String("stage", stage.ID()))
				} else {
					slog.WarnContext(ctx, "stage_finished_wrong_status",
						slog.String("operation_id", state.ID),
						slog.String("stage", stage.ID()),
						slog.String("status", string(updatedState.Status)))
				}
			}
		}
	}
	// With ContinueOnError the loop runs to the end even after failures;
	// the run itself must still report them.
	if state.HasFailures() {
		failed := &ErrorList{}
		for _, st := range state.GetFailedStages() {
			failed.Add(WrapError(st.Error, st.ID, "stage failed"))
		}
		if failed.HasErrors() {
			return failed
		}
	}

	slog.InfoContext(ctx, "all_stages_completed",
		slog.String("operation_id", state.ID))
	return nil
}

// executeParallel executes independent stages in parallel
func (m *Manager) executeParallel(ctx context.Context, state *OperationState, stages []Stage) error {
	// NOTE: Parallel execution is intentionally not implemented. The
	// analysis pipeline must remain sequential because each stage consumes
	// the output of the previous one:
	// 1. Fetch downloads the raw OWID dataset
	// 2. Process cleans the raw CSV (requires the download from stage 1)
	// 3. Analyze computes statistics (requires clean data from stage 2)
	// 4. Visualize renders charts (requires analytics from stage 3)
	// 5. Report bundles insights and the manifest (requires everything above)
	return m.executeSequential(ctx, state, stages)
}

// executeStage executes a single stage with retry logic
func (m *Manager) executeStage(ctx context.Context, state *OperationState, stage Stage) error {
	m.logStageStart(ctx, state.ID, stage.ID())
	stageState := state.GetStage(stage.ID())
	if stageState == nil {
		slog.ErrorContext(ctx, "stage_state_not_found",
			slog.String("operation_id", state.ID),
			slog.String("stage", stage.ID()))
		return NewFatalError("stage state not found", nil)
	}

	// Check dependencies
	slog.DebugContext(ctx, "checking_dependencies",
		slog.String("operation_id", state.ID),
		slog.String("stage", stage.ID()))
	if err := m.checkDependencies(state, stage); err != nil {
		slog.WarnContext(ctx, "dependencies_not_met",
			slog.String("operation_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.String("error", err.Error()))
		stageState.Skip(fmt.Sprintf("Dependencies not met: %v", err))
		m.broadcaster.UpdateStageProgress(state.ID, stage.ID(), int(stageState.Progress), fmt.Sprintf("Skipped: dependencies not met - %v", err))
		return err
	}

	// Validate stage
	slog.DebugContext(ctx, "validating_stage",
		slog.String("operation_id", state.ID),
		slog.String("stage", stage.ID()))
	if err := stage.Validate(state); err != nil {
		slog.WarnContext(ctx, "validation_failed",
			slog.String("operation_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.String("error", err.Error()))
		stageState.Skip(fmt.Sprintf("Validation failed: %v", err))
		m.broadcaster.UpdateStageProgress(state.ID, stage.ID(), int(stageState.Progress), fmt.Sprintf("Skipped: validation failed - %v", err))
		return NewValidationError(stage.ID(), err.Error())
	}

	// Stage timeout
	timeout := m.config.GetStageTimeout(stage.ID())
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Execute with retries
	retryConfig := m.config.RetryConfig
	var lastErr error

	for attempt := 1; attempt <= retryConfig.MaxAttempts; attempt++ {
		stageState.Start()
		// All updates go through the broadcaster, the single source of truth
		m.broadcaster.UpdateStageProgress(state.ID, stage.ID(), int(stageState.Progress), "Stage started")

		slog.InfoContext(ctx, "calling_execute",
			slog.String("operation_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.Int("attempt", attempt))

		var stageSpan trace.Span
		execCtx := stageCtx
		if tracer := GetOperationTracer(); tracer != nil {
			execCtx, stageSpan = tracer.TraceStageExecution(stageCtx, state.ID, stage.ID(), stage.Name())
		}

		startTime := time.Now()
		err := stage.Execute(execCtx, state)
		duration := time.Since(startTime)

		if tracer := GetOperationTracer(); tracer != nil && stageSpan != nil {
			tracer.RecordStageCompletion(execCtx, stageSpan, state.ID, stage.ID(), duration, err == nil)
			stageSpan.End()
		}

		if err == nil {
			m.logStageComplete(ctx, state.ID, stage.ID(), duration)
			stageState.Complete()
			m.broadcaster.CompleteStage(state.ID, stage.ID(), "Stage completed successfully")

			return nil
		}

		slog.ErrorContext(ctx, "stage_execution_failed",
			slog.String("operation_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))

		// Log stage metadata for debugging
		if stageState.Metadata != nil {
			if metaJSON, err := json.Marshal(stageState.Metadata); err == nil {
				slog.ErrorContext(ctx, "stage_metadata",
					slog.String("operation_id", state.ID),
					slog.String("stage", stage.ID()),
					slog.String("metadata", string(metaJSON)))
			}
		}

		if tracer := GetOperationTracer(); tracer != nil {
			tracer.RecordStageError(ctx, state.ID, stage.ID(), err)
		}

		lastErr = err

		// Check if error is retryable
		if !IsRetryable(err) || attempt >= retryConfig.MaxAttempts {
			stageState.Fail(err)
			m.broadcaster.UpdateStageProgress(state.ID, stage.ID(), int(stageState.Progress), fmt.Sprintf("Stage failed: %v", err))
			return WrapError(err, stage.ID(), "stage execution failed")
		}

		// Calculate retry delay
		delay := m.calculateRetryDelay(attempt, retryConfig)
		slog.WarnContext(ctx, "stage_retry",
			slog.String("operation_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", retryConfig.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		// Wait before retry
		select {
		case <-time.After(delay):
			// Continue to next attempt
		case <-stageCtx.Done():
			stageState.Fail(NewTimeoutError(stage.ID(), timeout.String()))
			m.broadcaster.UpdateStageProgress(state.ID, stage.ID(), int(stageState.Progress), fmt.Sprintf("Stage timed out after %s", timeout))
			return NewTimeoutError(stage.ID(), timeout.String())
		}
	}

	// All retries exhausted
	stageState.Fail(lastErr)
	m.broadcaster.UpdateStageProgress(state.ID, stage.ID(), int(stageState.Progress), fmt.Sprintf("Stage failed after %d retries: %v", retryConfig.MaxAttempts, lastErr))
	return WrapError(lastErr, stage.ID(), "stage execution failed after retries")
}

// skipDependentStages marks all stages that depend on the failed stage as skipped
func (m *Manager) skipDependentStages(state *OperationState, stages []Stage, failedStageID string) {
	for _, stage := range stages {
		for _, dep := range stage.GetDependencies() {
			if dep == failedStageID {
				stageState := state.GetStage(stage.ID())
				if stageState != nil && stageState.Status == StageStatusPending {
					stageState.Skip(fmt.Sprintf("Dependency %s failed", failedStageID))
					m.broadcaster.UpdateStageProgress(state.ID, stage.ID(), int(stageState.Progress), fmt.Sprintf("Skipped: dependency %s failed", failedStageID))
					// Recursively skip stages that depend on this one
					m.skipDependentStages(state, stages, stage.ID())
				}
				break
			}
		}
	}
}

// checkDependencies verifies that all dependencies are satisfied.
// A dependency that is not part of this run is assumed to have been
// satisfied by an earlier run; stages verify their inputs on disk in
// Validate before executing.
func (m *Manager) checkDependencies(state *OperationState, stage Stage) error {
	for _, dep := range stage.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil {
			continue
		}
		if depState.Status != StageStatusCompleted {
			return fmt.Errorf("dependency %s not completed (status: %s)", dep, depState.Status)
		}
	}
	return nil
}

// calculateRetryDelay calculates the delay before the next retry
func (m *Manager) calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay * time.Duration(float64(attempt-1)*config.Multiplier)
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// createResponse creates an operation response from state
func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	resp := &OperationResponse{
		ID:       state.ID,
		Status:   state.Status,
		Duration: state.Duration(),
		Stages:   state.Stages,
	}

	if state.Error != nil {
		resp.Error = state.Error.Error()
	}

	return resp
}

// GetOperation retrieves the state of a running operation
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.operations[id]
	if !exists {
		return nil, fmt.Errorf("operation %s not found", id)
	}

	return state.Clone(), nil
}

// ListOperations returns all active operations
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]*OperationState, 0, len(m.operations))
	for _, state := range m.operations {
		operations = append(operations, state.Clone())
	}

	return operations
}

// CancelOperation cancels a running operation
func (m *Manager) CancelOperation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.operations[id]
	if !exists {
		return ErrOperationNotFound
	}
	if status := state.GetStatus(); status != OperationStatusRunning && status != OperationStatusPending {
		return ErrOperationNotRunning
	}

	state.Cancel()
	m.broadcaster.FailOperation(id, fmt.Errorf("operation cancelled by user"))
	return nil
}

// storeOperation stores an operation state
func (m *Manager) storeOperation(state *OperationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = state
}

// removeOperation removes an operation state
func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// stageSubset normalizes the optional "stages" request parameter, which
// arrives as []string from code and []interface{} from decoded JSON.
func stageSubset(v interface{}) map[string]struct{} {
	out := make(map[string]struct{})
	switch ids := v.(type) {
	case []string:
		for _, id := range ids {
			if id != "" {
				out[id] = struct{}{}
			}
		}
	case []interface{}:
		for _, raw := range ids {
			if id, ok := raw.(string); ok && id != "" {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

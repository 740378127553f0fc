package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"covidcli/internal/config"
	"covidcli/internal/infrastructure"
	"covidcli/internal/operations"
	"covidcli/pkg/contracts/domain"
)

// maxRunHistory caps how many finished runs the service remembers. The
// manager forgets a run the moment it finishes, so the history ring is
// what GET /api/operations lists after the fact.
const maxRunHistory = 20

// stageOrder is the canonical pipeline order used when presenting runs.
var stageOrder = []string{
	operations.StageIDFetch,
	operations.StageIDProcess,
	operations.StageIDAnalyze,
	operations.StageIDVisualize,
	operations.StageIDReport,
}

// RunOptions selects what a pipeline run does. An empty Stages list runs
// the full fetch-to-report chain.
type RunOptions struct {
	Stages      []string
	ForceFetch  bool
	RenderPNG   bool
	Trigger     string
	Description string
}

// runRecord is one finished run kept in the history ring.
type runRecord struct {
	summary domain.OperationSummary
}

// OperationService owns pipeline execution: it registers the stages with
// the operations manager, enforces the single-active-run rule, runs the
// pipeline in the background, and remembers recent runs.
type OperationService struct {
	manager *operations.Manager
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	active  string
	cancels map[string]context.CancelFunc
	history []runRecord
	onDone  []func(domain.OperationSummary)
}

// NewOperationService builds the service and registers the five pipeline
// stages. The hub receives stage progress over WebSocket; metrics may be
// nil in tests.
func NewOperationService(cfg *config.Config, paths *config.Paths, logger *slog.Logger, hub operations.WebSocketHub, metrics *infrastructure.BusinessMetrics) (*OperationService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	manager := operations.NewManager(hub, nil, nil)

	stageOptions := &operations.StageOptions{
		EnableProgress:    true,
		WebSocketManager:  hub,
		StatusBroadcaster: manager.GetBroadcaster(),
	}

	registry := manager.GetRegistry()
	stages := []operations.Stage{
		operations.NewFetchStage(cfg, paths, logger, metrics, stageOptions),
		operations.NewProcessStage(cfg, paths, logger, metrics, stageOptions),
		operations.NewAnalyzeStage(cfg, paths, logger, metrics, stageOptions),
		operations.NewVisualizeStage(cfg, paths, logger, metrics, stageOptions),
		operations.NewReportStage(cfg, paths, logger, metrics, stageOptions),
	}
	for _, stage := range stages {
		if err := registry.Register(stage); err != nil {
			return nil, fmt.Errorf("register stage %s: %w", stage.ID(), err)
		}
	}

	timeout := cfg.Server.OperationTimeout
	if timeout <= 0 {
		timeout = time.Hour
	}

	logger.Info("OperationService initialized",
		slog.Int("stages", registry.Count()),
		slog.Duration("run_timeout", timeout))

	return &OperationService{
		manager: manager,
		logger:  logger,
		timeout: timeout,
		cancels: make(map[string]context.CancelFunc),
	}, nil
}

// OnRunComplete registers a callback invoked after every run finishes,
// regardless of outcome. Used to invalidate the data cache and notify
// WebSocket clients.
func (s *OperationService) OnRunComplete(fn func(domain.OperationSummary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = append(s.onDone, fn)
}

// Start launches a pipeline run in the background and returns its pending
// summary. Only one run may be active at a time; a second request fails
// with operations.ErrOperationInProgress.
func (s *OperationService) Start(ctx context.Context, opts RunOptions) (*domain.OperationSummary, error) {
	trigger := opts.Trigger
	if trigger == "" {
		trigger = "manual"
	}

	id := uuid.NewString()

	s.mu.Lock()
	if s.active != "" {
		s.mu.Unlock()
		return nil, operations.ErrOperationInProgress
	}
	s.active = id
	s.mu.Unlock()

	params := map[string]interface{}{
		"trigger": trigger,
	}
	if len(opts.Stages) > 0 {
		params["stages"] = opts.Stages
	}
	if opts.ForceFetch {
		params[operations.ContextKeyForceFetch] = true
	}
	if opts.RenderPNG {
		params[operations.ContextKeyRenderPNG] = true
	}
	if opts.Description != "" {
		params["description"] = opts.Description
	}

	req := operations.OperationRequest{
		ID:         id,
		Mode:       operations.ModeFull,
		Parameters: params,
	}

	s.logger.InfoContext(ctx, "starting pipeline run",
		slog.String("id", id),
		slog.String("trigger", trigger),
		slog.Any("stages", opts.Stages),
		slog.Bool("force_fetch", opts.ForceFetch))

	summary := s.pendingSummary(id, trigger, opts.Stages)

	go s.run(req, trigger)

	return summary, nil
}

// run executes a pipeline request to completion on its own context so the
// run survives the HTTP request that started it.
func (s *OperationService) run(req operations.OperationRequest, trigger string) {
	runCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.mu.Lock()
	s.cancels[req.ID] = cancel
	s.mu.Unlock()
	defer cancel()

	resp, err := s.manager.Execute(runCtx, req)

	summary := summaryFromResponse(resp, trigger)
	if err != nil && summary.Error == "" {
		summary.Error = err.Error()
	}

	s.mu.Lock()
	if s.active == req.ID {
		s.active = ""
	}
	delete(s.cancels, req.ID)
	s.history = append([]runRecord{{summary: summary}}, s.history...)
	if len(s.history) > maxRunHistory {
		s.history = s.history[:maxRunHistory]
	}
	hooks := append([]func(domain.OperationSummary){}, s.onDone...)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("pipeline run failed",
			slog.String("id", req.ID),
			slog.String("status", string(summary.Status)),
			slog.String("error", err.Error()))
	} else {
		s.logger.Info("pipeline run completed",
			slog.String("id", req.ID),
			slog.String("status", string(summary.Status)))
	}

	for _, fn := range hooks {
		fn(summary)
	}
}

// Status returns the state of one run, live runs first, then the history.
func (s *OperationService) Status(ctx context.Context, id string) (*domain.OperationSummary, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: operation id is required", ErrInvalidInput)
	}

	if state, err := s.manager.GetOperation(id); err == nil {
		summary := summaryFromState(state)
		return &summary, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.history {
		if rec.summary.ID == id {
			summary := rec.summary
			return &summary, nil
		}
	}
	return nil, operations.ErrOperationNotFound
}

// List returns the active run followed by recent finished runs, newest
// first, optionally filtered by status.
func (s *OperationService) List(ctx context.Context, status string, limit int) ([]domain.OperationSummary, error) {
	if limit <= 0 || limit > maxRunHistory+1 {
		limit = maxRunHistory
	}

	var out []domain.OperationSummary
	for _, state := range s.manager.ListOperations() {
		out = append(out, summaryFromState(state))
	}

	s.mu.Lock()
	for _, rec := range s.history {
		out = append(out, rec.summary)
	}
	s.mu.Unlock()

	if status != "" {
		filtered := out[:0]
		for _, summary := range out {
			if string(summary.Status) == status {
				filtered = append(filtered, summary)
			}
		}
		out = filtered
	}
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.OperationSummary{}
	}
	return out, nil
}

// Cancel stops a running operation. Finished runs report
// operations.ErrOperationCompleted so the handler can answer 409.
func (s *OperationService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	cancel, running := s.cancels[id]
	var finished bool
	if !running {
		for _, rec := range s.history {
			if rec.summary.ID == id {
				finished = true
				break
			}
		}
	}
	s.mu.Unlock()

	if finished {
		return operations.ErrOperationCompleted
	}
	if !running {
		return operations.ErrOperationNotFound
	}

	if err := s.manager.CancelOperation(id); err != nil {
		return err
	}
	cancel()

	s.logger.InfoContext(ctx, "pipeline run cancelled", slog.String("id", id))
	return nil
}

// ActiveRunID returns the in-flight run's ID, empty when idle.
func (s *OperationService) ActiveRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// GetManager exposes the underlying manager for WebSocket snapshot replay.
func (s *OperationService) GetManager() *operations.Manager {
	return s.manager
}

// StageCatalogue describes the registered stages for the dashboard's run
// dialog.
func (s *OperationService) StageCatalogue() []operations.OperationType {
	stages := s.manager.GetRegistry().List()

	types := make([]operations.OperationType, 0, len(stages))
	for _, stage := range stages {
		types = append(types, operations.OperationType{
			ID:           stage.ID(),
			Name:         stage.Name(),
			Description:  stageDescription(stage.ID()),
			Dependencies: stage.GetDependencies(),
			CanRunAlone:  len(stage.GetDependencies()) == 0,
		})
	}
	return types
}

// stageDescription returns the dashboard-facing description of a stage.
func stageDescription(stageID string) string {
	switch stageID {
	case operations.StageIDFetch:
		return "Download the OWID COVID-19 dataset snapshot"
	case operations.StageIDProcess:
		return "Parse and clean the raw dataset, filling reporting gaps"
	case operations.StageIDAnalyze:
		return "Compute global trends, rankings and correlations"
	case operations.StageIDVisualize:
		return "Render the interactive chart catalogue"
	case operations.StageIDReport:
		return "Export insights, the Excel workbook and the run manifest"
	}
	return "Pipeline stage"
}

// pendingSummary is the summary returned to the caller before the run's
// first stage starts.
func (s *OperationService) pendingSummary(id, trigger string, requested []string) *domain.OperationSummary {
	ids := requested
	if len(ids) == 0 {
		ids = stageOrder
	}

	summary := &domain.OperationSummary{
		ID:        id,
		Trigger:   trigger,
		Status:    domain.OperationStatusPending,
		StartedAt: time.Now(),
	}
	for _, stageID := range stageOrder {
		if !containsStage(ids, stageID) {
			continue
		}
		summary.Stages = append(summary.Stages, domain.StageSummary{
			ID:     stageID,
			Name:   stageDisplayName(stageID),
			Status: domain.StageStatusPending,
		})
	}
	return summary
}

func containsStage(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func stageDisplayName(stageID string) string {
	switch stageID {
	case operations.StageIDFetch:
		return operations.StageNameFetch
	case operations.StageIDProcess:
		return operations.StageNameProcess
	case operations.StageIDAnalyze:
		return operations.StageNameAnalyze
	case operations.StageIDVisualize:
		return operations.StageNameVisualize
	case operations.StageIDReport:
		return operations.StageNameReport
	}
	return stageID
}

// summaryFromState converts live manager state into the API shape.
func summaryFromState(state *operations.OperationState) domain.OperationSummary {
	summary := domain.OperationSummary{
		ID:          state.ID,
		Trigger:     configTrigger(state),
		Status:      domain.OperationStatus(state.Status),
		StartedAt:   state.StartTime,
		CompletedAt: state.EndTime,
	}
	if state.Error != nil {
		summary.Error = state.Error.Error()
	}
	summary.Stages = stageSummaries(state.Stages)
	return summary
}

// summaryFromResponse converts a finished run's response into the API
// shape for the history ring.
func summaryFromResponse(resp *operations.OperationResponse, trigger string) domain.OperationSummary {
	summary := domain.OperationSummary{
		ID:      resp.ID,
		Trigger: trigger,
		Status:  domain.OperationStatus(resp.Status),
		Error:   resp.Error,
	}
	summary.Stages = stageSummaries(resp.Stages)

	// Recover the run window from the stage timings
	for _, stage := range summary.Stages {
		if stage.StartedAt != nil && (summary.StartedAt.IsZero() || stage.StartedAt.Before(summary.StartedAt)) {
			summary.StartedAt = *stage.StartedAt
		}
		if stage.CompletedAt != nil && (summary.CompletedAt == nil || stage.CompletedAt.After(*summary.CompletedAt)) {
			end := *stage.CompletedAt
			summary.CompletedAt = &end
		}
	}
	if summary.StartedAt.IsZero() {
		summary.StartedAt = time.Now().Add(-resp.Duration)
	}
	return summary
}

// stageSummaries orders stage states canonically and flattens them.
func stageSummaries(states map[string]*operations.StageState) []domain.StageSummary {
	var out []domain.StageSummary
	for _, stageID := range stageOrder {
		ss, ok := states[stageID]
		if !ok {
			continue
		}
		summary := domain.StageSummary{
			ID:          ss.ID,
			Name:        ss.Name,
			Status:      stageStatus(ss.Status),
			Progress:    ss.Progress,
			Message:     ss.Message,
			StartedAt:   ss.StartTime,
			CompletedAt: ss.EndTime,
		}
		if ss.Error != nil {
			summary.Error = ss.Error.Error()
		}
		out = append(out, summary)
	}
	return out
}

// stageStatus maps the manager's stage status onto the API vocabulary.
func stageStatus(s operations.StageStatus) domain.StageStatus {
	switch s {
	case operations.StageStatusActive:
		return domain.StageStatusRunning
	case operations.StageStatusCompleted:
		return domain.StageStatusCompleted
	case operations.StageStatusFailed:
		return domain.StageStatusFailed
	case operations.StageStatusSkipped:
		return domain.StageStatusSkipped
	}
	return domain.StageStatusPending
}

// configTrigger reads the trigger recorded on the run's config.
func configTrigger(state *operations.OperationState) string {
	if v, ok := state.GetConfig("trigger"); ok {
		if trigger, ok := v.(string); ok && trigger != "" {
			return trigger
		}
	}
	return "manual"
}

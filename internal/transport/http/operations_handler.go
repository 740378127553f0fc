package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "covidcli/internal/errors"
	"covidcli/internal/infrastructure"
	"covidcli/internal/middleware"
	"covidcli/internal/operations"
	"covidcli/internal/services"
	v1 "covidcli/pkg/contracts/api/v1"
)

// OperationsHandler handles pipeline run HTTP requests
type OperationsHandler struct {
	service OperationServiceInterface
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(service OperationServiceInterface, logger *slog.Logger) *OperationsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OperationsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "operations")),
	}
}

// SetMetrics sets the business metrics for the handler
func (h *OperationsHandler) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	h.metrics = metrics
}

// StartRequest wraps the contract request with render.Binder validation
type StartRequest struct {
	v1.OperationStartRequest
}

var validStages = map[string]bool{
	operations.StageIDFetch:     true,
	operations.StageIDProcess:   true,
	operations.StageIDAnalyze:   true,
	operations.StageIDVisualize: true,
	operations.StageIDReport:    true,
}

// Bind implements the render.Binder interface for request validation
func (req *StartRequest) Bind(r *http.Request) error {
	seen := make(map[string]bool)
	for _, stage := range req.Stages {
		if !validStages[stage] {
			return fmt.Errorf("unknown stage: %s", stage)
		}
		if seen[stage] {
			return fmt.Errorf("duplicate stage: %s", stage)
		}
		seen[stage] = true
	}

	switch req.Trigger {
	case "", "manual", "scheduled", "startup":
	default:
		return fmt.Errorf("invalid trigger: %s", req.Trigger)
	}

	if len(req.Description) > 200 {
		return errors.New("description exceeds 200 characters")
	}

	return nil
}

// Routes returns a chi router for operations endpoints
func (h *OperationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Apply timeout middleware to all operations routes
	r.Use(middleware.Timeout(60*time.Second, h.logger))

	r.Get("/types", h.GetStageTypes)
	r.Post("/", h.StartOperation)
	r.Get("/", h.ListOperations)
	r.Get("/{id}", h.GetOperationStatus)
	r.Delete("/{id}", h.CancelOperation)

	return r
}

// StartOperation handles POST /api/operations
func (h *OperationsHandler) StartOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("operations-handler")

	ctx, span := tracer.Start(ctx, "operations_handler.start_operation",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations"),
			attribute.String("request_id", reqID),
			attribute.String("component", "operations_handler"),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "pipeline run request",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
	)

	data := &StartRequest{}
	if err := render.Bind(r, data); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "request_validation"))

		h.logger.ErrorContext(ctx, "failed to bind run request",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		problem := apierrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation_failed",
			"validation_failed",
			err.Error(),
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	opts := services.RunOptions{
		Stages:      data.Stages,
		ForceFetch:  data.ForceFetch,
		RenderPNG:   data.RenderPNG,
		Trigger:     data.Trigger,
		Description: data.Description,
	}

	span.SetAttributes(
		attribute.Int("operation.stages_count", len(opts.Stages)),
		attribute.String("operation.trigger", opts.Trigger),
		attribute.Bool("operation.force_fetch", opts.ForceFetch),
	)

	summary, err := h.service.Start(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run start failed")

		h.logger.ErrorContext(ctx, "failed to start pipeline run",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		if errors.Is(err, operations.ErrOperationInProgress) {
			problem := apierrors.NewProblemDetails(
				http.StatusConflict,
				"/errors/operation_in_progress",
				"operation_in_progress",
				"A pipeline run is already active",
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
				WithExtension("active_run_id", h.service.ActiveRunID())

			render.Render(w, r, problem)
			return
		}

		problem := apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/operation_failed",
			"operation_failed",
			"Failed to start pipeline run: "+err.Error(),
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	span.SetAttributes(attribute.String("operation.id", summary.ID))

	h.logger.InfoContext(ctx, "pipeline run accepted",
		slog.String("run_id", summary.ID),
		slog.String("trigger", summary.Trigger),
		slog.String("request_id", reqID))

	// The run executes in the background; progress streams over the
	// WebSocket hub.
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, v1.OperationResponse{Operation: *summary})
}

// GetOperationStatus handles GET /api/operations/{id}
func (h *OperationsHandler) GetOperationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("operations-handler")

	ctx, span := tracer.Start(ctx, "operations_handler.get_status",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/{id}"),
			attribute.String("operation.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "run status request",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	summary, err := h.service.Status(statusCtx, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status retrieval failed")

		h.logger.ErrorContext(ctx, "failed to get run status",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.handleError(w, r, err, map[string]interface{}{
			"run_id": runID,
		})
		return
	}

	span.SetAttributes(
		attribute.String("operation.status", string(summary.Status)),
		attribute.Int("operation.stages_count", len(summary.Stages)),
	)

	render.JSON(w, r, v1.OperationResponse{Operation: *summary})
}

// ListOperations handles GET /api/operations
func (h *OperationsHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("operations-handler")

	ctx, span := tracer.Start(ctx, "operations_handler.list_operations",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		validStatuses := map[string]bool{
			"pending":   true,
			"running":   true,
			"completed": true,
			"failed":    true,
			"cancelled": true,
		}
		if !validStatuses[statusFilter] {
			problem := apierrors.NewProblemDetails(
				http.StatusBadRequest,
				"/errors/validation_failed",
				"validation_failed",
				fmt.Sprintf("Invalid status filter: %s", statusFilter),
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
				WithExtension("valid_statuses", []string{"pending", "running", "completed", "failed", "cancelled"})

			render.Render(w, r, problem)
			return
		}
		span.SetAttributes(attribute.String("filter.status", statusFilter))
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			span.SetAttributes(attribute.Int("filter.limit", limit))
		}
	}

	h.logger.DebugContext(ctx, "listing runs",
		slog.String("status_filter", statusFilter),
		slog.Int("limit", limit),
		slog.String("request_id", reqID))

	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	runs, err := h.service.List(listCtx, statusFilter, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list runs failed")

		h.logger.ErrorContext(ctx, "failed to list runs",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		problem := apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/list_failed",
			"list_failed",
			"Failed to list pipeline runs",
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	span.SetAttributes(attribute.Int("operations.count", len(runs)))

	render.JSON(w, r, map[string]interface{}{
		"operations": runs,
		"count":      len(runs),
	})
}

// CancelOperation handles DELETE /api/operations/{id}
func (h *OperationsHandler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("operations-handler")

	ctx, span := tracer.Start(ctx, "operations_handler.cancel_operation",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/{id}"),
			attribute.String("operation.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "run cancel request",
		slog.String("run_id", runID),
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cancelStart := time.Now()
	err := h.service.Cancel(cancelCtx, runID)
	cancelDuration := time.Since(cancelStart)

	if err == nil && h.metrics != nil {
		infrastructure.RecordOperationCancellation(ctx, h.metrics, runID, "user_requested")
	}

	span.SetAttributes(
		attribute.Float64("cancellation.duration_ms", float64(cancelDuration.Milliseconds())),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run cancellation failed")

		h.logger.ErrorContext(ctx, "failed to cancel run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.handleError(w, r, err, map[string]interface{}{
			"run_id": runID,
		})
		return
	}

	h.logger.InfoContext(ctx, "run cancelled",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	render.JSON(w, r, map[string]string{
		"message": "Pipeline run cancelled",
	})
}

// GetStageTypes handles GET /api/operations/types
func (h *OperationsHandler) GetStageTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("operations-handler")

	_, span := tracer.Start(ctx, "operations_handler.get_stage_types",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/types"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	types := h.service.StageCatalogue()
	span.SetAttributes(attribute.Int("stage_types.count", len(types)))

	h.logger.DebugContext(ctx, "stage catalogue retrieved",
		slog.Int("count", len(types)),
		slog.String("request_id", reqID))

	render.JSON(w, r, types)
}

// handleError centralizes error handling for the handler
func (h *OperationsHandler) handleError(w http.ResponseWriter, r *http.Request, err error, extensions map[string]interface{}) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	traceID := infrastructure.TraceIDFromContext(ctx)

	h.logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method))

	var problem *apierrors.ProblemDetails

	switch {
	case errors.Is(err, operations.ErrOperationNotFound):
		problem = apierrors.NewProblemDetails(
			http.StatusNotFound,
			"/errors/not_found",
			"not_found",
			"Pipeline run not found",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, operations.ErrOperationCompleted):
		problem = apierrors.NewProblemDetails(
			http.StatusConflict,
			"/errors/invalid_state",
			"invalid_state",
			"Pipeline run has already completed and cannot be cancelled",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, services.ErrInvalidInput):
		problem = apierrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation_failed",
			"validation_failed",
			err.Error(),
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, context.DeadlineExceeded):
		problem = apierrors.NewProblemDetails(
			http.StatusGatewayTimeout,
			"/errors/timeout",
			"Request Timeout",
			"The request timed out while processing",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, context.Canceled):
		problem = apierrors.NewProblemDetails(
			http.StatusRequestTimeout,
			"/errors/request_canceled",
			"Request Canceled",
			"The request was canceled",
			r.URL.Path+"#"+reqID,
		)

	default:
		problem = apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal_error",
			"Internal Server Error",
			"An unexpected error occurred",
			r.URL.Path+"#"+reqID,
		)
	}

	problem.WithExtension("trace_id", traceID).
		WithExtension("timestamp", time.Now().UTC()).
		WithExtension("request_id", reqID)

	for k, v := range extensions {
		problem.WithExtension(k, v)
	}

	render.Render(w, r, problem)
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"covidcli/internal/infrastructure"
	"covidcli/internal/middleware"
	"covidcli/pkg/contracts/domain"
)

// OperationsMetricsHandler exposes run statistics for the dashboard's
// metrics panel.
type OperationsMetricsHandler struct {
	service OperationServiceInterface
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter

	// Metrics collectors
	httpRequestDuration metric.Float64Histogram
	httpRequestsTotal   metric.Int64Counter
	httpActiveRequests  metric.Int64UpDownCounter
}

// NewOperationsMetricsHandler creates a new operations metrics handler
func NewOperationsMetricsHandler(service OperationServiceInterface, logger *slog.Logger) (*OperationsMetricsHandler, error) {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tracer := otel.Tracer("operations-metrics-handler")
	meter := otel.Meter("operations-metrics-handler")

	httpRequestDuration, err := meter.Float64Histogram(
		"operations_handler_request_duration_seconds",
		metric.WithDescription("HTTP request duration for operations endpoints in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestsTotal, err := meter.Int64Counter(
		"operations_handler_requests_total",
		metric.WithDescription("Total number of HTTP requests to operations endpoints"),
	)
	if err != nil {
		return nil, err
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"operations_handler_active_requests",
		metric.WithDescription("Number of active HTTP requests to operations endpoints"),
	)
	if err != nil {
		return nil, err
	}

	return &OperationsMetricsHandler{
		service:             service,
		logger:              logger.With(slog.String("handler", "operations_metrics")),
		tracer:              tracer,
		meter:               meter,
		httpRequestDuration: httpRequestDuration,
		httpRequestsTotal:   httpRequestsTotal,
		httpActiveRequests:  httpActiveRequests,
	}, nil
}

// Routes returns a chi router for run metrics endpoints
func (h *OperationsMetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.instrumentMiddleware)

	r.Get("/summary", h.GetRunsSummary)
	r.Get("/performance", h.GetPerformanceMetrics)
	r.Get("/health", h.GetRunsHealth)

	return r
}

// instrumentMiddleware adds OpenTelemetry instrumentation to requests
func (h *OperationsMetricsHandler) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		route := chi.RouteContext(ctx).RoutePattern()

		h.httpActiveRequests.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
			),
		)
		defer h.httpActiveRequests.Add(ctx, -1,
			metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
			),
		)

		startTime := time.Now()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(startTime)

		h.httpRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.Int("status", ww.Status()),
			),
		)

		h.httpRequestDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.Int("status", ww.Status()),
			),
		)
	})
}

// GetRunsSummary returns a summary of recorded pipeline runs
func (h *OperationsMetricsHandler) GetRunsSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	ctx, span := h.tracer.Start(ctx, "metrics.get_runs_summary",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/metrics/summary"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "retrieving runs summary",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	runs, err := h.service.List(ctx, "", 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list runs")

		h.logger.ErrorContext(ctx, "failed to list runs",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{
			"error": "Failed to retrieve pipeline runs",
		})
		return
	}

	summary := calculateRunsSummary(runs)

	span.SetAttributes(
		attribute.Int("runs.total", summary["total"].(int)),
		attribute.Int("runs.completed", summary["completed"].(int)),
		attribute.Int("runs.failed", summary["failed"].(int)),
	)

	render.JSON(w, r, summary)
}

// GetPerformanceMetrics returns duration and success statistics over the
// recorded runs
func (h *OperationsMetricsHandler) GetPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	ctx, span := h.tracer.Start(ctx, "metrics.get_performance_metrics",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/metrics/performance"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "retrieving performance metrics",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	runs, err := h.service.List(ctx, "", 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list runs")

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{
			"error": "Failed to retrieve pipeline runs",
		})
		return
	}

	metrics := calculateRunPerformance(runs)

	span.SetAttributes(
		attribute.Float64("performance.avg_duration_seconds", metrics["avg_duration_seconds"].(float64)),
		attribute.Float64("performance.success_rate", metrics["success_rate"].(float64)),
	)

	render.JSON(w, r, metrics)
}

// GetRunsHealth returns health status of the pipeline run system
func (h *OperationsMetricsHandler) GetRunsHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	ctx, span := h.tracer.Start(ctx, "metrics.get_runs_health",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/metrics/health"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	runs, err := h.service.List(ctx, "", 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list runs")

		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]interface{}{
			"status": "unhealthy",
			"error":  "Cannot retrieve run status",
		})
		return
	}

	health := calculateRunsHealth(runs, h.service.ActiveRunID())

	span.SetAttributes(
		attribute.String("health.status", health["status"].(string)),
		attribute.Bool("health.is_healthy", health["status"].(string) == "healthy"),
	)

	statusCode := http.StatusOK
	if health["status"] != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	render.Status(r, statusCode)
	render.JSON(w, r, health)
}

// calculateRunsSummary tallies runs by status
func calculateRunsSummary(runs []domain.OperationSummary) map[string]interface{} {
	counts := map[domain.OperationStatus]int{}
	for _, run := range runs {
		counts[run.Status]++
	}

	return map[string]interface{}{
		"total":     len(runs),
		"pending":   counts[domain.OperationStatusPending],
		"running":   counts[domain.OperationStatusRunning],
		"completed": counts[domain.OperationStatusCompleted],
		"failed":    counts[domain.OperationStatusFailed],
		"cancelled": counts[domain.OperationStatusCancelled],
		"timestamp": time.Now().UTC(),
	}
}

// calculateRunPerformance derives duration and success statistics from
// terminal runs
func calculateRunPerformance(runs []domain.OperationSummary) map[string]interface{} {
	var (
		terminal    int
		succeeded   int
		totalDur    time.Duration
		longestDur  time.Duration
		shortestDur time.Duration
	)

	for _, run := range runs {
		if !run.Status.IsTerminal() || run.CompletedAt == nil {
			continue
		}
		terminal++
		if run.Status == domain.OperationStatusCompleted {
			succeeded++
		}

		dur := run.CompletedAt.Sub(run.StartedAt)
		totalDur += dur
		if dur > longestDur {
			longestDur = dur
		}
		if shortestDur == 0 || dur < shortestDur {
			shortestDur = dur
		}
	}

	avgSeconds := 0.0
	successRate := 0.0
	if terminal > 0 {
		avgSeconds = totalDur.Seconds() / float64(terminal)
		successRate = float64(succeeded) / float64(terminal)
	}

	return map[string]interface{}{
		"runs_measured":            terminal,
		"avg_duration_seconds":     avgSeconds,
		"longest_duration_seconds": longestDur.Seconds(),
		"shortest_duration_seconds": shortestDur.Seconds(),
		"success_rate":             successRate,
		"timestamp":                time.Now().UTC(),
	}
}

// calculateRunsHealth flags the run system as degraded when recent runs
// keep failing
func calculateRunsHealth(runs []domain.OperationSummary, activeRunID string) map[string]interface{} {
	health := map[string]interface{}{
		"status":     "healthy",
		"active_run": activeRunID,
		"timestamp":  time.Now().UTC(),
	}

	// Look at the most recent runs only; history is newest-first
	recentFailures := 0
	checked := 0
	for _, run := range runs {
		if !run.Status.IsTerminal() {
			continue
		}
		checked++
		if run.Status == domain.OperationStatusFailed {
			recentFailures++
		}
		if checked == 5 {
			break
		}
	}

	health["recent_failures"] = recentFailures
	if checked > 0 && recentFailures == checked {
		health["status"] = "unhealthy"
		health["reason"] = "all recent runs failed"
	} else if recentFailures > checked/2 {
		health["status"] = "degraded"
		health["reason"] = "more than half of recent runs failed"
	}

	return health
}

package operations

import (
	"context"
	"fmt"
	"time"

	"covidcli/internal/infrastructure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "covidcli.operation"
)

// OperationTracer provides OpenTelemetry instrumentation for pipeline runs
type OperationTracer struct {
	tracer          trace.Tracer
	meter           metric.Meter
	businessMetrics *infrastructure.BusinessMetrics
}

// NewOperationTracer creates a new operation tracer
func NewOperationTracer(providers *infrastructure.OTelProviders) (*OperationTracer, error) {
	businessMetrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return &OperationTracer{
		tracer:          otel.Tracer(TracerName),
		meter:           providers.Meter,
		businessMetrics: businessMetrics,
	}, nil
}

// TraceOperationExecution creates a span for the entire pipeline run
func (pt *OperationTracer) TraceOperationExecution(ctx context.Context, operationID string, req OperationRequest) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("operation.execute.%s", req.Mode)
	ctx, span := pt.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("operation.mode", req.Mode),
			attribute.String("operation.from_date", req.FromDate),
			attribute.String("operation.to_date", req.ToDate),
		),
	)

	pt.businessMetrics.OperationExecutionsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation_mode", req.Mode),
		),
	)

	pt.businessMetrics.OperationActiveOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation_mode", req.Mode),
		),
	)

	return ctx, span
}

// TraceStageExecution creates a span for an individual stage execution
func (pt *OperationTracer) TraceStageExecution(ctx context.Context, operationID, stageID, stageName string) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("operation.stage.%s", stageID)
	ctx, span := pt.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("stage.id", stageID),
			attribute.String("stage.name", stageName),
		),
	)

	pt.businessMetrics.OperationStagesTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage_id", stageID),
		),
	)

	return ctx, span
}

// RecordOperationCompletion records the result of a pipeline run on the span
// and the business metrics. Call exactly once per run; it balances the active
// run gauge incremented by TraceOperationExecution.
func (pt *OperationTracer) RecordOperationCompletion(ctx context.Context, span trace.Span, operationID string, duration time.Duration, status string) {
	span.SetAttributes(
		attribute.String("operation.status", status),
		attribute.Float64("operation.duration_seconds", duration.Seconds()),
	)

	pt.businessMetrics.OperationExecutionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)

	pt.businessMetrics.OperationActiveOperations.Add(ctx, -1)

	infrastructure.AddSpanEvent(ctx, "operation.completed", map[string]interface{}{
		"operation_id": operationID,
		"status":       status,
		"duration":     duration.Seconds(),
	})

	if status == string(OperationStatusCompleted) {
		span.SetStatus(codes.Ok, "operation completed successfully")
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("operation finished with status: %s", status))
	}
}

// RecordStageCompletion records stage completion with metrics and span events
func (pt *OperationTracer) RecordStageCompletion(ctx context.Context, span trace.Span, operationID, stageID string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("stage.status", status),
		attribute.Float64("stage.duration_seconds", duration.Seconds()),
	)

	pt.businessMetrics.OperationStageDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("stage_id", stageID),
			attribute.String("status", status),
		),
	)

	infrastructure.AddSpanEvent(ctx, "stage.completed", map[string]interface{}{
		"stage_id": stageID,
		"status":   status,
		"duration": duration.Seconds(),
	})

	if success {
		span.SetStatus(codes.Ok, "stage completed successfully")
	} else {
		span.SetStatus(codes.Error, "stage execution failed")
	}
}

// RecordStageProgress records stage progress as span events
func (pt *OperationTracer) RecordStageProgress(ctx context.Context, operationID, stageID string, progress int, message string) {
	infrastructure.AddSpanEvent(ctx, "stage.progress", map[string]interface{}{
		"stage_id": stageID,
		"progress": progress,
		"message":  message,
	})

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.Int("stage.progress_percent", progress),
			attribute.String("stage.progress_message", message),
		)
	}
}

// RecordStageError records stage errors with proper error tracking
func (pt *OperationTracer) RecordStageError(ctx context.Context, operationID, stageID string, err error) {
	infrastructure.RecordError(ctx, err,
		trace.WithAttributes(
			attribute.String("stage_id", stageID),
			attribute.String("error.type", "stage_execution_error"),
		),
	)

	pt.businessMetrics.OperationErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage_id", stageID),
		),
	)
}

// RecordOperationError records operation-level errors. The active run gauge
// is decremented by RecordOperationCompletion, not here.
func (pt *OperationTracer) RecordOperationError(ctx context.Context, operationID string, err error) {
	infrastructure.RecordError(ctx, err,
		trace.WithAttributes(
			attribute.String("operation_id", operationID),
			attribute.String("error.type", "operation_execution_error"),
		),
	)

	pt.businessMetrics.OperationErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", "operation"),
		),
	)
}

// RecordOperationCancellation counts a cancelled pipeline run
func (pt *OperationTracer) RecordOperationCancellation(ctx context.Context, operationID string) {
	pt.businessMetrics.OperationCancellations.Add(ctx, 1)

	infrastructure.AddSpanEvent(ctx, "operation.cancelled", map[string]interface{}{
		"operation_id": operationID,
	})
}

// TraceDataProcessing creates a span for bulk data processing work such as
// CSV parsing or cleaning inside a stage
func (pt *OperationTracer) TraceDataProcessing(ctx context.Context, operationType string, itemCount int) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("operation.data.%s", operationType)
	ctx, span := pt.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("data.operation", operationType),
			attribute.Int("data.item_count", itemCount),
		),
	)

	return ctx, span
}

// RecordDataProcessingCompletion records completion of data processing work
func (pt *OperationTracer) RecordDataProcessingCompletion(ctx context.Context, span trace.Span, operationType string, itemsProcessed, bytesProcessed int64, duration time.Duration) {
	span.SetAttributes(
		attribute.Int64("data.items_processed", itemsProcessed),
		attribute.Int64("data.bytes_processed", bytesProcessed),
		attribute.Float64("data.duration_seconds", duration.Seconds()),
	)
	if duration > 0 {
		span.SetAttributes(
			attribute.Float64("data.throughput_items_per_second", float64(itemsProcessed)/duration.Seconds()),
		)
	}

	infrastructure.AddSpanEvent(ctx, "data.processing.completed", map[string]interface{}{
		"operation":       operationType,
		"items_processed": itemsProcessed,
		"bytes_processed": bytesProcessed,
		"duration":        duration.Seconds(),
	})

	span.SetStatus(codes.Ok, fmt.Sprintf("Processed %d items in %v", itemsProcessed, duration))
}

// TraceChromeOperation creates a span for Chrome/CDP snapshot operations
func (pt *OperationTracer) TraceChromeOperation(ctx context.Context, operation string) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("operation.chrome.%s", operation)
	ctx, span := pt.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("chrome.operation", operation),
			attribute.String("browser.name", "chromium"),
		),
	)

	return ctx, span
}

// RecordChromeOperationCompletion records Chrome operation completion
func (pt *OperationTracer) RecordChromeOperationCompletion(ctx context.Context, span trace.Span, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("chrome.status", status),
		attribute.Float64("chrome.duration_seconds", duration.Seconds()),
	)

	if success {
		span.SetStatus(codes.Ok, fmt.Sprintf("Chrome %s completed successfully", operation))
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("Chrome %s failed", operation))
	}
}

// globalOperationTracer is the process-wide tracer used by the manager when
// telemetry has been initialized. A nil tracer disables instrumentation.
var globalOperationTracer *OperationTracer

// InitGlobalOperationTracer initializes the global operation tracer
func InitGlobalOperationTracer(providers *infrastructure.OTelProviders) error {
	tracer, err := NewOperationTracer(providers)
	if err != nil {
		return err
	}
	globalOperationTracer = tracer
	return nil
}

// GetOperationTracer returns the global operation tracer
func GetOperationTracer() *OperationTracer {
	return globalOperationTracer
}

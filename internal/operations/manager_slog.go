package operations

import (
	"context"
	"log/slog"
	"time"
)

// Run lifecycle logging. The manager logs through the process default
// logger, which main wires to the JSON handler, so these records carry
// the trace id injected by the infrastructure handler.

func (m *Manager) logOperationStart(ctx context.Context, operationID string, req OperationRequest) {
	slog.InfoContext(ctx, "pipeline run started",
		slog.String("operation_id", operationID),
		slog.String("mode", req.Mode),
		slog.String("from_date", req.FromDate),
		slog.String("to_date", req.ToDate),
		slog.Any("parameters", req.Parameters))
}

func (m *Manager) logOperationComplete(ctx context.Context, operationID string, duration time.Duration, status string) {
	slog.InfoContext(ctx, "pipeline run finished",
		slog.String("operation_id", operationID),
		slog.String("status", status),
		slog.Duration("duration", duration))
}

func (m *Manager) logOperationError(ctx context.Context, operationID string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	slog.ErrorContext(ctx, "pipeline run failed",
		slog.String("operation_id", operationID),
		slog.String("error", msg))
}

func (m *Manager) logStageStart(ctx context.Context, operationID, stageID string) {
	slog.InfoContext(ctx, "stage started",
		slog.String("operation_id", operationID),
		slog.String("stage", stageID))
}

func (m *Manager) logStageComplete(ctx context.Context, operationID, stageID string, duration time.Duration) {
	slog.InfoContext(ctx, "stage finished",
		slog.String("operation_id", operationID),
		slog.String("stage", stageID),
		slog.Duration("duration", duration))
}

func (m *Manager) logStageError(ctx context.Context, operationID, stageID string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	slog.ErrorContext(ctx, "stage failed",
		slog.String("operation_id", operationID),
		slog.String("stage", stageID),
		slog.String("error", msg))
}

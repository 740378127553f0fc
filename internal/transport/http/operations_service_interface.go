package http

import (
	"context"

	"covidcli/internal/operations"
	"covidcli/internal/services"
	"covidcli/pkg/contracts/domain"
)

// OperationServiceInterface defines the pipeline run operations the
// operations handler needs.
type OperationServiceInterface interface {
	Start(ctx context.Context, opts services.RunOptions) (*domain.OperationSummary, error)
	Status(ctx context.Context, id string) (*domain.OperationSummary, error)
	List(ctx context.Context, status string, limit int) ([]domain.OperationSummary, error)
	Cancel(ctx context.Context, id string) error
	StageCatalogue() []operations.OperationType
	ActiveRunID() string
}

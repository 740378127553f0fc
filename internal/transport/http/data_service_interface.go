package http

import (
	"context"
	"net/http"

	"covidcli/internal/services"
	"covidcli/pkg/contracts/domain"
)

// DataServiceInterface defines the artifact read operations the data
// handler needs. The concrete implementation is services.DataService.
type DataServiceInterface interface {
	Profile(ctx context.Context) (*domain.DatasetProfile, error)
	Snapshot(ctx context.Context, q services.SnapshotQuery) (*services.SnapshotResult, error)
	GlobalTrends(ctx context.Context, metric string) ([]domain.GlobalTrendPoint, error)
	Series(ctx context.Context, locations []string, metric string) ([]services.LocationSeries, error)
	Rankings(ctx context.Context, metric string, limit int) ([]domain.RankingEntry, error)
	Correlations(ctx context.Context) (*domain.CorrelationSnapshot, error)
	Insights(ctx context.Context) (*domain.Insights, error)
	ChartIndex(ctx context.Context) (*domain.ChartIndex, error)
	DownloadArtifact(ctx context.Context, w http.ResponseWriter, r *http.Request, fileType, filename string) error
}

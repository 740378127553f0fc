package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "covidcli/internal/errors"
	"covidcli/internal/services"
	"covidcli/pkg/contracts/domain"
)

// MockDataService is a mock implementation of DataServiceInterface
type MockDataService struct {
	mock.Mock
}

func (m *MockDataService) Profile(ctx context.Context) (*domain.DatasetProfile, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DatasetProfile), args.Error(1)
}

func (m *MockDataService) Snapshot(ctx context.Context, q services.SnapshotQuery) (*services.SnapshotResult, error) {
	args := m.Called(q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SnapshotResult), args.Error(1)
}

func (m *MockDataService) GlobalTrends(ctx context.Context, metric string) ([]domain.GlobalTrendPoint, error) {
	args := m.Called(metric)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.GlobalTrendPoint), args.Error(1)
}

func (m *MockDataService) Series(ctx context.Context, locations []string, metric string) ([]services.LocationSeries, error) {
	args := m.Called(locations, metric)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.LocationSeries), args.Error(1)
}

func (m *MockDataService) Rankings(ctx context.Context, metric string, limit int) ([]domain.RankingEntry, error) {
	args := m.Called(metric, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RankingEntry), args.Error(1)
}

func (m *MockDataService) Correlations(ctx context.Context) (*domain.CorrelationSnapshot, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CorrelationSnapshot), args.Error(1)
}

func (m *MockDataService) Insights(ctx context.Context) (*domain.Insights, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Insights), args.Error(1)
}

func (m *MockDataService) ChartIndex(ctx context.Context) (*domain.ChartIndex, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChartIndex), args.Error(1)
}

func (m *MockDataService) DownloadArtifact(ctx context.Context, w http.ResponseWriter, r *http.Request, fileType, filename string) error {
	args := m.Called(fileType, filename)
	return args.Error(0)
}

func newTestDataHandler(service DataServiceInterface) *DataHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDataHandler(service, logger, apierrors.NewErrorHandler(logger, false))
}

func serveDataRequest(t *testing.T, handler *DataHandler, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Mount("/api", handler.Routes())

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestDataHandlerGetProfile(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockDataService)
		expectedStatus int
	}{
		{
			name: "profile available",
			setupMock: func(m *MockDataService) {
				m.On("Profile").Return(&domain.DatasetProfile{
					RowCount:      400000,
					LocationCount: 240,
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "pipeline has not run yet",
			setupMock: func(m *MockDataService) {
				m.On("Profile").Return(nil, services.ErrArtifactNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			rec := serveDataRequest(t, newTestDataHandler(mockService), http.MethodGet, "/api/dataset/profile")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandlerGetSnapshot(t *testing.T) {
	date := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockDataService)
		expectedStatus int
	}{
		{
			name:   "plain snapshot",
			target: "/api/snapshot",
			setupMock: func(m *MockDataService) {
				m.On("Snapshot", services.SnapshotQuery{}).Return(&services.SnapshotResult{
					Date: date,
					Locations: []domain.LocationSnapshot{
						{Location: "United States", ISOCode: "USA"},
					},
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "query parameters forwarded",
			target: "/api/snapshot?continent=Europe&sort=total_cases&limit=5",
			setupMock: func(m *MockDataService) {
				m.On("Snapshot", services.SnapshotQuery{
					Continent: "Europe",
					Sort:      "total_cases",
					Limit:     5,
				}).Return(&services.SnapshotResult{Date: date}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "limit out of range",
			target:         "/api/snapshot?limit=9999",
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "unknown sort metric",
			target: "/api/snapshot?sort=bogus",
			setupMock: func(m *MockDataService) {
				m.On("Snapshot", services.SnapshotQuery{Sort: "bogus"}).
					Return(nil, services.ErrUnknownMetric)
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			rec := serveDataRequest(t, newTestDataHandler(mockService), http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandlerGetSnapshotBody(t *testing.T) {
	mockService := new(MockDataService)
	mockService.On("Snapshot", services.SnapshotQuery{}).Return(&services.SnapshotResult{
		Date: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		Locations: []domain.LocationSnapshot{
			{Location: "Brazil", ISOCode: "BRA"},
			{Location: "United States", ISOCode: "USA"},
		},
	}, nil)

	rec := serveDataRequest(t, newTestDataHandler(mockService), http.MethodGet, "/api/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
		Data   struct {
			Date string `json:"date"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "2021-06-01", body.Data.Date)
}

func TestDataHandlerGetLocationSeries(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockDataService)
		expectedStatus int
	}{
		{
			name:   "comma separated locations",
			target: "/api/trends/locations?locations=Brazil,United%20States&metric=new_cases_smoothed",
			setupMock: func(m *MockDataService) {
				m.On("Series", []string{"Brazil", "United States"}, "new_cases_smoothed").
					Return([]services.LocationSeries{
						{Location: "Brazil", ISOCode: "BRA"},
						{Location: "United States", ISOCode: "USA"},
					}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing locations parameter",
			target:         "/api/trends/locations",
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "unknown location",
			target: "/api/trends/locations?locations=Atlantis",
			setupMock: func(m *MockDataService) {
				m.On("Series", []string{"Atlantis"}, "").
					Return(nil, services.ErrLocationNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			rec := serveDataRequest(t, newTestDataHandler(mockService), http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandlerGetRankings(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockDataService)
		expectedStatus int
	}{
		{
			name:   "top ten by total cases",
			target: "/api/rankings?metric=total_cases&limit=10",
			setupMock: func(m *MockDataService) {
				m.On("Rankings", "total_cases", 10).Return([]domain.RankingEntry{
					{Rank: 1, Location: "United States", Metric: "total_cases", Value: 33000000},
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "metric required",
			target:         "/api/rankings",
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "limit over cap",
			target:         "/api/rankings?metric=total_cases&limit=100",
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			rec := serveDataRequest(t, newTestDataHandler(mockService), http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandlerDownloadArtifact(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockDataService)
		expectedStatus int
	}{
		{
			name:   "valid download delegates to service",
			target: "/api/download/analytics/latest_snapshot.csv",
			setupMock: func(m *MockDataService) {
				m.On("DownloadArtifact", "analytics", "latest_snapshot.csv").Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown artifact type rejected before service",
			target:         "/api/download/secrets/owid-covid-data.csv",
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "missing file",
			target: "/api/download/charts/nope.html",
			setupMock: func(m *MockDataService) {
				m.On("DownloadArtifact", "charts", "nope.html").Return(services.ErrFileNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			rec := serveDataRequest(t, newTestDataHandler(mockService), http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestSplitLocations(t *testing.T) {
	assert.Nil(t, splitLocations(""))
	assert.Equal(t, []string{"Brazil"}, splitLocations("Brazil"))
	assert.Equal(t, []string{"Brazil", "United States"}, splitLocations("Brazil, United States"))
	assert.Equal(t, []string{"Brazil"}, splitLocations(",Brazil,,"))
}

package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemDetails_MarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		problem *ProblemDetails
		want    map[string]interface{}
	}{
		{
			name: "standard fields only",
			problem: NewProblemDetails(
				http.StatusNotFound,
				TypeDataNotFound,
				"Dataset Not Found",
				"No processed dataset found.",
				"/api/snapshot",
			),
			want: map[string]interface{}{
				"type":     TypeDataNotFound,
				"title":    "Dataset Not Found",
				"status":   float64(http.StatusNotFound),
				"detail":   "No processed dataset found.",
				"instance": "/api/snapshot",
			},
		},
		{
			name: "with extensions",
			problem: NewProblemDetails(
				http.StatusConflict,
				TypeOperationRunning,
				"Operation Already Running",
				"",
				"",
			).WithExtension("trace_id", "abc-123").
				WithExtension("operation_id", "op-7"),
			want: map[string]interface{}{
				"type":         TypeOperationRunning,
				"title":        "Operation Already Running",
				"status":       float64(http.StatusConflict),
				"trace_id":     "abc-123",
				"operation_id": "op-7",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.problem)
			require.NoError(t, err)

			var got map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProblemDetails_Render(t *testing.T) {
	problem := NewProblemDetails(http.StatusBadGateway, TypeUpstream, "Bad Gateway", "fetch failed", "/api/operations")

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/operations", nil)

	err := problem.Render(w, r)
	assert.NoError(t, err)
}

func TestMapDataError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{
			name:       "dataset missing",
			err:        ErrDatasetMissing,
			wantStatus: http.StatusNotFound,
			wantType:   TypeDataNotFound,
			wantCode:   "DATASET_NOT_FOUND",
		},
		{
			name:       "empty dataset",
			err:        ErrEmptyDataset,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeDataCorrupted,
			wantCode:   "EMPTY_DATASET",
		},
		{
			name:       "active operation",
			err:        ErrActiveOperation,
			wantStatus: http.StatusConflict,
			wantType:   TypeOperationRunning,
			wantCode:   "OPERATION_RUNNING",
		},
		{
			name:       "no active operation",
			err:        ErrNoActiveOperation,
			wantStatus: http.StatusNotFound,
			wantType:   TypeOperationNotFound,
			wantCode:   "NO_ACTIVE_OPERATION",
		},
		{
			name:       "unknown location",
			err:        ErrLocationUnknown,
			wantStatus: http.StatusNotFound,
			wantType:   TypeDataNotFound,
			wantCode:   "LOCATION_UNKNOWN",
		},
		{
			name:       "unknown metric",
			err:        ErrMetricUnknown,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantCode:   "METRIC_UNKNOWN",
		},
		{
			name:       "wrapped sentinel",
			err:        fmt.Errorf("loading snapshot: %w", ErrDatasetMissing),
			wantStatus: http.StatusNotFound,
			wantType:   TypeDataNotFound,
			wantCode:   "DATASET_NOT_FOUND",
		},
		{
			name:       "generic error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := MapDataError(tt.err, "trace-1")

			problem, ok := renderer.(*ProblemDetails)
			require.True(t, ok, "renderer should be ProblemDetails")

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, tt.wantCode, problem.Extensions["error_code"])
			assert.Equal(t, "trace-1", problem.Extensions["trace_id"])
		})
	}
}

func TestMapDataError_AppError(t *testing.T) {
	appErr := NewNetworkError("fetch failed", fmt.Errorf("dial tcp: timeout")).
		WithContext("url", "https://example.com/data.csv")

	renderer := MapDataError(appErr, "trace-2")
	problem, ok := renderer.(*ProblemDetails)
	require.True(t, ok)

	assert.Equal(t, http.StatusBadGateway, problem.Status)
	assert.Equal(t, TypeUpstream, problem.Type)
	assert.Equal(t, "NETWORK", problem.Extensions["error_code"])
	assert.Equal(t, "https://example.com/data.csv", problem.Extensions["url"])
}

func TestMapDataError_APIError(t *testing.T) {
	apiErr := New(http.StatusConflict, "OPERATION_RUNNING", "an operation is already running")

	renderer := MapDataError(apiErr, "trace-3")
	problem, ok := renderer.(*ProblemDetails)
	require.True(t, ok)

	assert.Equal(t, http.StatusConflict, problem.Status)
	assert.Equal(t, "OPERATION_RUNNING", problem.Extensions["error_code"])
	assert.Equal(t, "an operation is already running", problem.Detail)
}

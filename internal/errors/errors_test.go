package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorImplementsError(t *testing.T) {
	err := New(http.StatusNotFound, "ARTIFACT_NOT_FOUND", "Artifact not generated yet. Run the pipeline first.")

	assert.Equal(t, "Artifact not generated yet. Run the pipeline first.", err.Error())
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "ARTIFACT_NOT_FOUND", err.ErrorCode)
	assert.Nil(t, err.Details)
}

func TestNewWithDetails(t *testing.T) {
	err := NewWithDetails(http.StatusBadGateway, "UPSTREAM_FETCH_FAILED", "Dataset download failed", map[string]interface{}{
		"url":    "https://covid.ourworldindata.org/data/owid-covid-data.csv",
		"status": 503,
	})

	assert.Equal(t, http.StatusBadGateway, err.StatusCode)
	details, ok := err.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 503, details["status"])
}

func TestErrValidationCarriesField(t *testing.T) {
	err := ErrValidation("limit", "limit must be between 1 and 500")

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", err.ErrorCode)

	ve, ok := err.Details.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "limit", ve.Field)
	assert.Equal(t, "limit must be between 1 and 500", ve.Message)
}

func TestNewValidationErrorsBundlesFields(t *testing.T) {
	err := NewValidationErrors([]ValidationError{
		{Field: "metric", Message: "metric is required"},
		{Field: "locations", Message: "at most 12 locations per request"},
	})

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	bundle, ok := err.Details.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, bundle.Errors, 2)
	assert.Equal(t, "metric", bundle.Errors[0].Field)
	assert.Equal(t, "locations", bundle.Errors[1].Field)
}

func TestInvalidRequestWithError(t *testing.T) {
	err := InvalidRequestWithError(assert.AnError)

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", err.ErrorCode)
	assert.Equal(t, assert.AnError.Error(), err.Details)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NewValidationError("Message is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.ErrorCode)
	assert.Equal(t, "Message is required", resp.Error.Message)
}

func TestAPIErrorJSONShape(t *testing.T) {
	raw, err := json.Marshal(ErrValidation("sort", "unknown sort column"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, float64(http.StatusBadRequest), decoded["status_code"])
	assert.Equal(t, "VALIDATION_FAILED", decoded["error_code"])
	assert.Contains(t, decoded, "details")
}

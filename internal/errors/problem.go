package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Dataset and operation sentinel errors (using errors package for sentinel errors)
var (
	ErrDatasetMissing    = errors.New("dataset not found")
	ErrEmptyDataset      = errors.New("dataset contains no rows")
	ErrSourceUnchanged   = errors.New("dataset source unchanged")
	ErrActiveOperation   = errors.New("an operation is already running")
	ErrNoActiveOperation = errors.New("no active operation")
	ErrLocationUnknown   = errors.New("location not present in dataset")
	ErrMetricUnknown     = errors.New("unknown metric")
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Additional fields for extensibility
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON custom marshaler to include extensions
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})

	// Add standard fields
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status

	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	// Add extensions
	for k, v := range pd.Extensions {
		data[k] = v
	}

	// Use standard JSON marshaling
	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// MapDataError maps dataset and operation errors to HTTP problem details
func MapDataError(err error, traceID string) render.Renderer {
	instance := fmt.Sprintf("/api#trace-%s", traceID)

	// Check if it's an APIError from errors.go
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return NewProblemDetails(
			apiErr.StatusCode,
			"/errors/"+apiErr.ErrorCode,
			http.StatusText(apiErr.StatusCode),
			apiErr.Message,
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", apiErr.ErrorCode)
	}

	// AppError carries the taxonomy that drives the status mapping
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := StatusForErrorType(appErr.Type)
		problem := NewProblemDetails(
			status,
			ProblemTypeForErrorType(appErr.Type),
			http.StatusText(status),
			appErr.Message,
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", string(appErr.Type))
		for k, v := range appErr.Context {
			problem.WithExtension(k, v)
		}
		return problem
	}

	switch {
	case errors.Is(err, ErrDatasetMissing):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeDataNotFound,
			"Dataset Not Found",
			"No processed dataset found. Run the pipeline to fetch and process the data first.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "DATASET_NOT_FOUND")

	case errors.Is(err, ErrEmptyDataset):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeDataCorrupted,
			"Empty Dataset",
			"The processed dataset contains no rows.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "EMPTY_DATASET")

	case errors.Is(err, ErrActiveOperation):
		return NewProblemDetails(
			http.StatusConflict,
			TypeOperationRunning,
			"Operation Already Running",
			"Another operation is already running. Wait for it to finish or cancel it.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "OPERATION_RUNNING")

	case errors.Is(err, ErrNoActiveOperation):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeOperationNotFound,
			"No Active Operation",
			"There is no operation currently running.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "NO_ACTIVE_OPERATION")

	case errors.Is(err, ErrLocationUnknown):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeDataNotFound,
			"Location Not Found",
			"One or more requested locations are not present in the dataset.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "LOCATION_UNKNOWN")

	case errors.Is(err, ErrMetricUnknown):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Unknown Metric",
			"The requested metric is not supported.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "METRIC_UNKNOWN")

	default:
		// Generic error
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INTERNAL_ERROR")
	}
}

// StatusForErrorType maps the application error taxonomy to HTTP status codes
func StatusForErrorType(t ErrorType) int {
	switch t {
	case ErrTypeNetwork:
		return http.StatusBadGateway
	case ErrTypeParsing, ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ProblemTypeForErrorType maps the application error taxonomy to problem type URIs
func ProblemTypeForErrorType(t ErrorType) string {
	switch t {
	case ErrTypeNetwork:
		return TypeUpstream
	case ErrTypeParsing:
		return TypeDataCorrupted
	case ErrTypeValidation:
		return TypeValidation
	case ErrTypeNotFound:
		return TypeNotFound
	case ErrTypeConflict:
		return TypeConflict
	case ErrTypeConfig:
		return TypeConfig
	default:
		return TypeInternal
	}
}

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeConflict,
				Message: "an operation is already running",
				Cause:   nil,
			},
			wantMessage: "[CONFLICT] an operation is already running",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeNetwork,
				Message: "Failed to fetch dataset",
				Cause:   fmt.Errorf("connection refused"),
			},
			wantMessage: "[NETWORK] Failed to fetch dataset: connection refused",
		},
		{
			name: "error with complex cause",
			appError: &AppError{
				Type:    ErrTypeStorage,
				Message: "Failed to write snapshot",
				Cause:   errors.New("disk full"),
			},
			wantMessage: "[STORAGE] Failed to write snapshot: disk full",
		},
		{
			name: "error with empty message",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "",
				Cause:   nil,
			},
			wantMessage: "[VALIDATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			assert.Equal(t, tt.wantMessage, got)
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		wantErr  error
	}{
		{
			name: "unwrap with cause",
			appError: &AppError{
				Type:    ErrTypeParsing,
				Message: "Parse error",
				Cause:   fmt.Errorf("original error"),
			},
			wantErr: fmt.Errorf("original error"),
		},
		{
			name: "unwrap without cause",
			appError: &AppError{
				Type:    ErrTypeNetwork,
				Message: "Network error",
				Cause:   nil,
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Unwrap()
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr.Error(), got.Error())
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestAppError_WithContext(t *testing.T) {
	tests := []struct {
		name          string
		appError      *AppError
		key           string
		value         interface{}
		expectedValue interface{}
	}{
		{
			name: "add string context",
			appError: &AppError{
				Type:    ErrTypeParsing,
				Message: "Parse error",
			},
			key:           "location",
			value:         "Brazil",
			expectedValue: "Brazil",
		},
		{
			name: "add integer context",
			appError: &AppError{
				Type:    ErrTypeNetwork,
				Message: "Network error",
			},
			key:           "retry_count",
			value:         3,
			expectedValue: 3,
		},
		{
			name: "add complex object context",
			appError: &AppError{
				Type:    ErrTypeStorage,
				Message: "Storage error",
			},
			key:           "artifact",
			value:         map[string]string{"name": "latest_snapshot.csv", "dir": "processed"},
			expectedValue: map[string]string{"name": "latest_snapshot.csv", "dir": "processed"},
		},
		{
			name: "add context to error with existing context",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "Validation error",
				Context: map[string]interface{}{"field": "metric"},
			},
			key:           "value",
			value:         "not_a_metric",
			expectedValue: "not_a_metric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.appError.WithContext(tt.key, tt.value)

			// Should return the same instance
			assert.Same(t, tt.appError, result)

			// Should have the context value
			require.Contains(t, result.Context, tt.key)
			assert.Equal(t, tt.expectedValue, result.Context[tt.key])

			// Should initialize context if it was nil
			assert.NotNil(t, result.Context)
		})
	}
}

func TestAppError_WithContext_NilContext(t *testing.T) {
	t.Run("add context to error with nil context", func(t *testing.T) {
		appError := &AppError{
			Type:    ErrTypeParsing,
			Message: "Test error",
			Context: nil,
		}

		result := appError.WithContext("test_key", "test_value")

		assert.NotNil(t, result.Context)
		assert.Equal(t, "test_value", result.Context["test_key"])
	})
}

func TestNewAppError(t *testing.T) {
	tests := []struct {
		name      string
		errType   ErrorType
		message   string
		cause     error
		wantType  ErrorType
		wantMsg   string
		wantCause error
	}{
		{
			name:      "create parsing error",
			errType:   ErrTypeParsing,
			message:   "row has invalid date",
			cause:     fmt.Errorf("cannot parse"),
			wantType:  ErrTypeParsing,
			wantMsg:   "row has invalid date",
			wantCause: fmt.Errorf("cannot parse"),
		},
		{
			name:      "create error without cause",
			errType:   ErrTypeNetwork,
			message:   "Connection failed",
			cause:     nil,
			wantType:  ErrTypeNetwork,
			wantMsg:   "Connection failed",
			wantCause: nil,
		},
		{
			name:      "create validation error",
			errType:   ErrTypeValidation,
			message:   "Invalid input",
			cause:     errors.New("field required"),
			wantType:  ErrTypeValidation,
			wantMsg:   "Invalid input",
			wantCause: errors.New("field required"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAppError(tt.errType, tt.message, tt.cause)

			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantMsg, got.Message)

			if tt.wantCause != nil {
				require.NotNil(t, got.Cause)
				assert.Equal(t, tt.wantCause.Error(), got.Cause.Error())
			} else {
				assert.Nil(t, got.Cause)
			}

			// Should initialize empty context
			assert.NotNil(t, got.Context)
			assert.Empty(t, got.Context)
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	cause := fmt.Errorf("upstream failure")

	tests := []struct {
		name      string
		err       *AppError
		wantType  ErrorType
		wantMsg   string
		wantCause error
	}{
		{
			name:      "network",
			err:       NewNetworkError("failed to reach dataset host", cause),
			wantType:  ErrTypeNetwork,
			wantMsg:   "failed to reach dataset host",
			wantCause: cause,
		},
		{
			name:      "parsing",
			err:       NewParsingError("failed to parse CSV row", cause),
			wantType:  ErrTypeParsing,
			wantMsg:   "failed to parse CSV row",
			wantCause: cause,
		},
		{
			name:      "storage",
			err:       NewStorageError("failed to write clean dataset", nil),
			wantType:  ErrTypeStorage,
			wantMsg:   "failed to write clean dataset",
			wantCause: nil,
		},
		{
			name:      "validation",
			err:       NewAppValidationError("metric is not in the catalogue"),
			wantType:  ErrTypeValidation,
			wantMsg:   "metric is not in the catalogue",
			wantCause: nil,
		},
		{
			name:      "not found builds the message from the resource",
			err:       NewNotFoundError("chart"),
			wantType:  ErrTypeNotFound,
			wantMsg:   "chart not found",
			wantCause: nil,
		},
		{
			name:      "conflict",
			err:       NewConflictError("an operation is already running"),
			wantType:  ErrTypeConflict,
			wantMsg:   "an operation is already running",
			wantCause: nil,
		},
		{
			name:      "config",
			err:       NewConfigError("failed to load configuration", cause),
			wantType:  ErrTypeConfig,
			wantMsg:   "failed to load configuration",
			wantCause: cause,
		},
		{
			name:      "internal",
			err:       NewInternalAppError("stage registry empty", nil),
			wantType:  ErrTypeInternal,
			wantMsg:   "stage registry empty",
			wantCause: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Message)
			assert.Equal(t, tt.wantCause, tt.err.Cause)
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestAppError_ErrorsIntegration(t *testing.T) {
	t.Run("errors.Is works with AppError", func(t *testing.T) {
		originalErr := fmt.Errorf("original error")
		appErr := NewNetworkError("Fetch failed", originalErr)

		// Should work with errors.Is
		assert.True(t, errors.Is(appErr, originalErr))

		// Should not match different error
		otherErr := fmt.Errorf("other error")
		assert.False(t, errors.Is(appErr, otherErr))
	})

	t.Run("errors.As works with AppError", func(t *testing.T) {
		originalErr := &AppError{
			Type:    ErrTypeNetwork,
			Message: "Network error",
		}
		wrappedErr := fmt.Errorf("wrapped: %w", originalErr)

		var appErr *AppError
		assert.True(t, errors.As(wrappedErr, &appErr))
		assert.Equal(t, ErrTypeNetwork, appErr.Type)
		assert.Equal(t, "Network error", appErr.Message)
	})
}

func TestAppError_ContextChaining(t *testing.T) {
	t.Run("chain multiple context values", func(t *testing.T) {
		appErr := NewParsingError("row rejected", nil)

		result := appErr.
			WithContext("line", 1042).
			WithContext("column", "total_cases").
			WithContext("attempt", 3)

		// Should be the same instance
		assert.Same(t, appErr, result)

		// Should have all context values
		assert.Equal(t, 1042, result.Context["line"])
		assert.Equal(t, "total_cases", result.Context["column"])
		assert.Equal(t, 3, result.Context["attempt"])
	})

	t.Run("overwrite existing context value", func(t *testing.T) {
		appErr := NewNetworkError("Connection failed", nil)

		result := appErr.
			WithContext("retry_count", 1).
			WithContext("retry_count", 2) // Overwrite

		assert.Equal(t, 2, result.Context["retry_count"])
	})
}

func TestAppError_ComplexScenarios(t *testing.T) {
	t.Run("nested error unwrapping", func(t *testing.T) {
		// Create a chain of errors
		rootErr := fmt.Errorf("root cause")
		appErr1 := NewStorageError("write failed", rootErr)
		appErr2 := NewNetworkError("fetch failed", appErr1)

		// Should unwrap correctly
		assert.True(t, errors.Is(appErr2, appErr1))
		assert.True(t, errors.Is(appErr2, rootErr))

		// Should match AppError types
		var storageErr *AppError
		assert.True(t, errors.As(appErr2, &storageErr))
		assert.Equal(t, ErrTypeStorage, storageErr.Type)
	})

	t.Run("error with rich context", func(t *testing.T) {
		appErr := NewParsingError("Failed to parse CSV", fmt.Errorf("invalid syntax")).
			WithContext("file_path", "/data/raw/owid-covid-data.csv").
			WithContext("line_number", 42).
			WithContext("column", 15).
			WithContext("format_version", "v1")

		expected := "[PARSING] Failed to parse CSV: invalid syntax"
		assert.Equal(t, expected, appErr.Error())

		// Verify context is preserved
		assert.Equal(t, "/data/raw/owid-covid-data.csv", appErr.Context["file_path"])
		assert.Equal(t, 42, appErr.Context["line_number"])
		assert.Equal(t, 15, appErr.Context["column"])
		assert.Equal(t, "v1", appErr.Context["format_version"])
	})
}

func TestAppError_EdgeCases(t *testing.T) {
	t.Run("nil cause unwrap", func(t *testing.T) {
		appErr := &AppError{
			Type:    ErrTypeValidation,
			Message: "Validation failed",
			Cause:   nil,
		}

		assert.Nil(t, appErr.Unwrap())
	})

	t.Run("empty context handling", func(t *testing.T) {
		appErr := &AppError{
			Type:    ErrTypeConfig,
			Message: "Config error",
			Context: make(map[string]interface{}),
		}

		result := appErr.WithContext("key", "value")
		assert.Equal(t, "value", result.Context["key"])
	})

	t.Run("context with nil values", func(t *testing.T) {
		appErr := NewStorageError("write error", nil)

		result := appErr.WithContext("nullable_field", nil)
		assert.Contains(t, result.Context, "nullable_field")
		assert.Nil(t, result.Context["nullable_field"])
	})
}

func TestStatusForErrorType(t *testing.T) {
	tests := []struct {
		errType    ErrorType
		wantStatus int
	}{
		{ErrTypeNetwork, 502},
		{ErrTypeParsing, 400},
		{ErrTypeValidation, 400},
		{ErrTypeStorage, 500},
		{ErrTypeNotFound, 404},
		{ErrTypeConflict, 409},
		{ErrTypeConfig, 500},
		{ErrTypeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, StatusForErrorType(tt.errType))
		})
	}
}

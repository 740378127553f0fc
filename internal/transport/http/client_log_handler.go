package http

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"covidcli/internal/errors"
)

// StructValidator checks a decoded request body against its validate tags.
type StructValidator interface {
	ValidateStruct(v interface{}) error
}

// ClientLogHandler forwards dashboard browser logs into the server log
// stream so frontend failures show up next to backend ones.
type ClientLogHandler struct {
	logger   *slog.Logger
	validate StructValidator
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger, validate StructValidator) *ClientLogHandler {
	return &ClientLogHandler{
		logger:   logger.With(slog.String("handler", "client_log")),
		validate: validate,
	}
}

// LogRequest represents a client log entry
type LogRequest struct {
	Level   string                 `json:"level" validate:"omitempty,max=16"`
	Message string                 `json:"message" validate:"required,max=2000"`
	Page    string                 `json:"page,omitempty" validate:"omitempty,max=200"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Source  string                 `json:"source,omitempty" validate:"omitempty,max=64"`
}

// Handle processes client logging requests
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req LogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.NewValidationError("Invalid request format"))
		return
	}
	if err := h.validate.ValidateStruct(&req); err != nil {
		var apiErr *errors.APIError
		if !stderrors.As(err, &apiErr) {
			apiErr = errors.NewValidationError(err.Error())
		}
		errors.WriteError(w, apiErr)
		return
	}
	if req.Source == "" {
		req.Source = "dashboard"
	}

	var level slog.Level
	switch req.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	attrs := []slog.Attr{
		slog.String("client_source", req.Source),
		slog.String("user_agent", r.UserAgent()),
		slog.String("timestamp", time.Now().Format(time.RFC3339)),
	}
	if req.Page != "" {
		attrs = append(attrs, slog.String("page", req.Page))
	}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}

	h.logger.LogAttrs(r.Context(), level, req.Message, attrs...)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "covidcli/internal/errors"
	custommw "covidcli/internal/middleware"
	"covidcli/internal/services"
	v1 "covidcli/pkg/contracts/api/v1"
)

// DataHandler handles dataset and artifact HTTP requests with RFC 7807
// compliance
type DataHandler struct {
	service      DataServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	query        *custommw.QueryParamValidator
}

// NewDataHandler creates a new data handler with RFC 7807 error handling
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
		query:        custommw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the data routes with proper Chi patterns
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Use render for consistent JSON responses
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Resource routes following REST patterns
	r.Get("/dataset/profile", h.GetProfile)
	r.Get("/snapshot", h.GetSnapshot)
	r.Get("/trends/global", h.GetGlobalTrends)
	r.Get("/trends/locations", h.GetLocationSeries)
	r.Get("/rankings", h.GetRankings)
	r.Get("/correlations", h.GetCorrelations)
	r.Get("/insights", h.GetInsights)
	r.Get("/charts", h.GetChartIndex)

	// Download routes
	r.Route("/download/{type}/{filename}", func(r chi.Router) {
		r.Use(h.DownloadCtx) // Validate download parameters
		r.Get("/", h.DownloadArtifact)
	})

	return r
}

// DownloadCtx middleware validates download parameters
func (h *DataHandler) DownloadCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fileType := chi.URLParam(r, "type")
		filename := chi.URLParam(r, "filename")

		// File type selects the artifact directory
		validTypes := map[string]bool{
			"raw":       true,
			"processed": true,
			"analytics": true,
			"charts":    true,
		}

		if !validTypes[fileType] {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("type", fmt.Sprintf("Invalid artifact type: %s", fileType)))
			return
		}

		if filename == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename", "Filename is required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetProfile handles GET /api/dataset/profile with RFC 7807 errors
func (h *DataHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching dataset profile",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	profile, err := h.service.Profile(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get dataset profile",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.handleDataError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   profile,
	})
}

// GetSnapshot handles GET /api/snapshot with RFC 7807 errors
func (h *DataHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 500, 0)
	if !ok {
		return
	}
	query := services.SnapshotQuery{
		Continent: r.URL.Query().Get("continent"),
		Sort:      r.URL.Query().Get("sort"),
		Limit:     limit,
	}

	h.logger.InfoContext(r.Context(), "fetching snapshot",
		slog.String("request_id", reqID),
		slog.String("continent", query.Continent),
		slog.String("sort", query.Sort),
		slog.Int("limit", query.Limit),
	)

	result, err := h.service.Snapshot(r.Context(), query)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get snapshot",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.handleDataError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": v1.SnapshotResponse{
			Date:      result.Date.Format("2006-01-02"),
			Count:     len(result.Locations),
			Locations: result.Locations,
		},
		"count": len(result.Locations),
	})
}

// GetGlobalTrends handles GET /api/trends/global with RFC 7807 errors
func (h *DataHandler) GetGlobalTrends(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	metric := r.URL.Query().Get("metric")

	h.logger.InfoContext(r.Context(), "fetching global trends",
		slog.String("request_id", reqID),
		slog.String("metric", metric),
	)

	points, err := h.service.GlobalTrends(r.Context(), metric)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get global trends",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.handleDataError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": v1.TrendsResponse{
			Metric: metric,
			Points: points,
		},
		"count": len(points),
	})
}

// GetLocationSeries handles GET /api/trends/locations with RFC 7807 errors.
// Locations come in as a comma-separated query parameter.
func (h *DataHandler) GetLocationSeries(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	locations := splitLocations(r.URL.Query().Get("locations"))
	if len(locations) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("locations", "At least one location is required"))
		return
	}
	if len(locations) > 12 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("locations", "At most 12 locations per request"))
		return
	}
	metric := r.URL.Query().Get("metric")

	h.logger.InfoContext(r.Context(), "fetching location series",
		slog.String("request_id", reqID),
		slog.Int("locations", len(locations)),
		slog.String("metric", metric),
	)

	series, err := h.service.Series(r.Context(), locations, metric)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get location series",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.handleDataError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   series,
		"count":  len(series),
	})
}

// GetRankings handles GET /api/rankings with RFC 7807 errors
func (h *DataHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("metric", "Metric is required"))
		return
	}

	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 50, 0)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "fetching rankings",
		slog.String("request_id", reqID),
		slog.String("metric", metric),
		slog.Int("limit", limit),
	)

	entries, err := h.service.Rankings(r.Context(), metric, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get rankings",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.handleDataError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": v1.RankingsResponse{
			Metric:  metric,
			Entries: entries,
		},
		"count": len(entries),
	})
}

// GetCorrelations handles GET /api/correlations with RFC 7807 errors
func (h *DataHandler) GetCorrelations(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching correlations",
		slog.String("request_id", reqID),
	)

	correlations, err := h.service.Correlations(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get correlations",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.handleDataError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   correlations,
	})
}

// GetInsights handles GET /api/insights with RFC 7807 errors
func (h *DataHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching insights",
		slog.String("request_id", reqID),
	)

	insights, err := h.service.Insights(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get insights",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.handleDataError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   insights,
	})
}

// GetChartIndex handles GET /api/charts with RFC 7807 errors
func (h *DataHandler) GetChartIndex(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching chart index",
		slog.String("request_id", reqID),
	)

	index, err := h.service.ChartIndex(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get chart index",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.handleDataError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   index,
		"count":  len(index.Charts),
	})
}

// DownloadArtifact handles GET /api/download/{type}/{filename}
func (h *DataHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	fileType := chi.URLParam(r, "type")
	filename := chi.URLParam(r, "filename")

	h.logger.InfoContext(r.Context(), "artifact download request",
		slog.String("request_id", reqID),
		slog.String("type", fileType),
		slog.String("filename", filename),
	)

	err := h.service.DownloadArtifact(r.Context(), w, r, fileType, filename)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to download artifact",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("filename", filename),
		)

		// ServeFile may have started writing already
		if isResponseWritten(w) {
			return
		}
		h.handleDataError(w, r, err)
	}
}

// handleDataError maps service sentinel errors to API errors and falls
// back to the shared RFC 7807 handler.
func (h *DataHandler) handleDataError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrArtifactNotFound):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"ARTIFACT_NOT_FOUND",
			"Artifact not generated yet. Run the pipeline first.",
		))
	case errors.Is(err, services.ErrUnknownMetric):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest,
			"UNKNOWN_METRIC",
			"Unknown metric name",
		))
	case errors.Is(err, services.ErrNoLocations):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest,
			"NO_LOCATIONS",
			"At least one location is required",
		))
	case errors.Is(err, services.ErrLocationNotFound):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"LOCATION_NOT_FOUND",
			"Location not found in dataset",
		))
	case errors.Is(err, services.ErrFileNotFound):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"FILE_NOT_FOUND",
			"Requested file does not exist",
		))
	case errors.Is(err, services.ErrInvalidFileType):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest,
			"INVALID_FILE_TYPE",
			"Invalid artifact type",
		))
	case errors.Is(err, services.ErrInvalidFilePath):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest,
			"INVALID_FILE_PATH",
			"Invalid file path",
		))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// splitLocations parses a comma-separated locations parameter, dropping
// empty entries.
func splitLocations(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	locations := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			locations = append(locations, trimmed)
		}
	}
	return locations
}

// isResponseWritten reports whether the handler already wrote a response
// body, in which case error rendering would corrupt the stream.
func isResponseWritten(w http.ResponseWriter) bool {
	if ww, ok := w.(middleware.WrapResponseWriter); ok {
		return ww.BytesWritten() > 0
	}
	return false
}

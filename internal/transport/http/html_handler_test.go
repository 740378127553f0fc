package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeChartPage(t *testing.T) {
	chartsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(chartsDir, "global_trends.html"),
		[]byte("<html><body>chart</body></html>"), 0o644))

	r := chi.NewRouter()
	r.Get("/charts/{name}", ServeChartPage(chartsDir))

	tests := []struct {
		name           string
		target         string
		expectedStatus int
	}{
		{"by name without extension", "/charts/global_trends", http.StatusOK},
		{"by full filename", "/charts/global_trends.html", http.StatusOK},
		{"missing chart", "/charts/nope", http.StatusNotFound},
		{"traversal rejected", "/charts/..%2Fsecret", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestServeDashboardMissingIndex(t *testing.T) {
	handler := ServeDashboard(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeDashboard(t *testing.T) {
	webDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "index.html"),
		[]byte("<html><body>dashboard</body></html>"), 0o644))

	handler := ServeDashboard(webDir)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dashboard")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

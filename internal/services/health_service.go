package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"covidcli/internal/config"
	"covidcli/internal/infrastructure"
	ws "covidcli/internal/websocket"
	"covidcli/pkg/contracts"
)

// HealthService answers the health, readiness and version endpoints. It
// checks the things the dashboard actually depends on: writable artifact
// directories, a dataset that is not stale, and the WebSocket hub.
type HealthService struct {
	paths        *config.Paths
	dataset      config.DatasetConfig
	operations   *OperationService
	webSocketHub *ws.Hub
	collector    *infrastructure.SystemMetricsCollector
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// DatasetHealth describes the dataset the dashboard is serving.
type DatasetHealth struct {
	Present     bool      `json:"present"`
	LastFetched time.Time `json:"last_fetched,omitempty"`
	AgeHours    float64   `json:"age_hours,omitempty"`
	Stale       bool      `json:"stale"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
}

// SystemStats represents runtime and artifact statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	ArtifactFiles    int     `json:"artifact_files"`
	ArtifactBytes    int64   `json:"artifact_bytes"`
	ChartFiles       int     `json:"chart_files"`
	WebSocketClients int     `json:"websocket_clients"`
	ActiveRun        string  `json:"active_run,omitempty"`
	Goroutines       int64   `json:"goroutines"`
	MemoryUsageMB    int64   `json:"memory_usage_mb"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// NewHealthService creates a health service with injected dependencies.
// The metrics collector is optional; without it the runtime figures fall
// back to direct runtime reads.
func NewHealthService(paths *config.Paths, dataset config.DatasetConfig, operations *OperationService, webSocketHub *ws.Hub, collector *infrastructure.SystemMetricsCollector, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version),
		slog.String("data_dir", paths.DataDir))

	return &HealthService{
		paths:        paths,
		dataset:      dataset,
		operations:   operations,
		webSocketHub: webSocketHub,
		collector:    collector,
		startTime:    time.Now(),
		logger:       logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.Debug("HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services:  make(map[string]interface{}),
	}

	status.Services["storage"] = hs.checkStorageHealth()
	status.Services["dataset"] = hs.checkDatasetHealth()
	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["operations"] = hs.checkOperationsHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      info.Version,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"data_format":  info.DataFormat,
		"api_version":  info.APIVersion,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

// DatasetStatus reports on the raw dataset snapshot backing the pipeline.
func (hs *HealthService) DatasetStatus(ctx context.Context) DatasetHealth {
	info, err := os.Stat(hs.paths.RawDatasetCSV)
	if err != nil {
		return DatasetHealth{Present: false, Stale: true}
	}

	age := time.Since(info.ModTime())
	maxAge := hs.dataset.MaxSnapshotAge
	if maxAge <= 0 {
		maxAge = 48 * time.Hour
	}

	return DatasetHealth{
		Present:     true,
		LastFetched: info.ModTime(),
		AgeHours:    age.Hours(),
		Stale:       age > maxAge,
		SizeBytes:   info.Size(),
	}
}

// SystemStats returns runtime figures plus artifact counts
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	var totalFiles int
	var totalSize int64
	filepath.Walk(hs.paths.DataDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			totalFiles++
			totalSize += info.Size()
		}
		return nil
	})

	chartFiles := 0
	if entries, err := os.ReadDir(hs.paths.ChartsDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".html" {
				chartFiles++
			}
		}
	}

	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		ArtifactFiles: totalFiles,
		ArtifactBytes: totalSize,
		ChartFiles:    chartFiles,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}

	if hs.webSocketHub != nil {
		stats.WebSocketClients = hs.webSocketHub.ClientCount()
	}
	if hs.operations != nil {
		stats.ActiveRun = hs.operations.ActiveRunID()
	}

	if hs.collector != nil {
		sys := hs.collector.GetCurrentStats(ctx)
		stats.Goroutines = sys.GoRoutines
		stats.MemoryUsageMB = sys.MemoryUsage / 1024 / 1024
	} else {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		stats.Goroutines = int64(runtime.NumGoroutine())
		stats.MemoryUsageMB = int64(mem.Alloc) / 1024 / 1024
	}

	return stats, nil
}

// checkStorageHealth verifies the artifact directories are writable
func (hs *HealthService) checkStorageHealth() ServiceHealth {
	if _, err := os.Stat(hs.paths.DataDir); os.IsNotExist(err) {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Data directory not found: %s", hs.paths.DataDir),
		}
	}

	probe := filepath.Join(hs.paths.DataDir, ".health")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cannot write to data directory: %v", err),
		}
	}
	os.Remove(probe)

	return ServiceHealth{
		Status:  "ready",
		Message: "Artifact storage is writable",
	}
}

// checkDatasetHealth reports whether a dataset snapshot exists. A stale
// snapshot degrades the message but does not block readiness; the
// scheduler refreshes it on its own.
func (hs *HealthService) checkDatasetHealth() ServiceHealth {
	ds := hs.DatasetStatus(context.Background())
	if !ds.Present {
		return ServiceHealth{
			Status:  "ready",
			Message: "No dataset snapshot yet, run the pipeline to fetch one",
		}
	}
	if ds.Stale {
		return ServiceHealth{
			Status:  "ready",
			Message: fmt.Sprintf("Dataset snapshot is %.0f hours old", ds.AgeHours),
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("Dataset snapshot fetched %s", ds.LastFetched.Format(time.RFC3339)),
	}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.webSocketHub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "WebSocket hub not initialized",
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.webSocketHub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkOperationsHealth checks the pipeline runner
func (hs *HealthService) checkOperationsHealth() ServiceHealth {
	if hs.operations == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "Operation service not initialized",
		}
	}
	if id := hs.operations.ActiveRunID(); id != "" {
		return ServiceHealth{
			Status:  "ready",
			Message: fmt.Sprintf("Pipeline run %s in progress", id),
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: "Pipeline idle",
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"dataset":   hs.DatasetStatus(ctx),
		"stats":     stats,
	}
}

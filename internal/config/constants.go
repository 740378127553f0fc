package config

import "time"

// Application constants - hardcoded values for the covidcli system
const (
	// Application Info
	AppName    = "covidcli"
	AppVersion = "0.1.0"

	// Dataset Source
	DefaultDatasetURL = "https://raw.githubusercontent.com/owid/covid-19-data/master/public/data/owid-covid-data.csv"
	DatasetFileName   = "owid-covid-data.csv"
	DateFormat        = "2006-01-02"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per minute
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	DatasetFetchTimeout = 5 * time.Minute
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	MaxLogFileSize    = 100 * 1024 * 1024 // 100MB
	MaxLogFileAge     = 30                // days
	MaxLogFileBackups = 10

	// File Paths (relative to executable)
	DefaultDataDir      = "data"
	DefaultLogsDir      = "logs"
	DefaultRawDir       = "data/raw"
	DefaultProcessedDir = "data/processed"
	DefaultAnalyticsDir = "data/analytics"
	DefaultChartsDir    = "data/charts"

	// Cache Settings
	DataCacheDuration = 15 * time.Minute

	// Operation Timeouts
	DefaultOperationTimeout = time.Hour
	FetchStageTimeout       = 10 * time.Minute
	ProcessStageTimeout     = 15 * time.Minute
	VisualizeStageTimeout   = 20 * time.Minute

	// API Endpoints (internal)
	APIBasePath        = "/api"
	OperationsEndpoint = "/api/operations"
	SnapshotEndpoint   = "/api/snapshot"
	TrendsEndpoint     = "/api/trends"
	ChartsEndpoint     = "/api/charts"
	HealthEndpoint     = "/api/health"
	MetricsEndpoint    = "/metrics"

	// WebSocket Endpoints
	WebSocketEndpoint = "/ws"
)

// DefaultSelectedCountries returns the country set used for the
// comparison line charts.
func DefaultSelectedCountries() []string {
	return []string{
		"United States",
		"India",
		"Brazil",
		"United Kingdom",
		"France",
		"Germany",
	}
}

// RankedMetrics returns the metric names the analyzer ranks by default.
func RankedMetrics() []string {
	return []string{
		"total_cases",
		"total_deaths",
		"total_cases_per_million",
		"fully_vaccinated_per_hundred",
	}
}

package operations

import (
	"time"
)

// Pipeline stage identifiers
const (
	StageIDFetch     = "fetch"
	StageIDProcess   = "process"
	StageIDAnalyze   = "analyze"
	StageIDVisualize = "visualize"
	StageIDReport    = "report"
)

// Pipeline stage names
const (
	StageNameFetch     = "Dataset Download"
	StageNameProcess   = "Data Cleaning"
	StageNameAnalyze   = "Statistical Analysis"
	StageNameVisualize = "Chart Generation"
	StageNameReport    = "Report Export"
)

// Context keys for operation state
const (
	ContextKeyFromDate       = "from_date"
	ContextKeyToDate         = "to_date"
	ContextKeyMode           = "mode"
	ContextKeyForceFetch     = "force_fetch"
	ContextKeyRenderPNG      = "render_png"
	ContextKeyDatasetPath    = "dataset_path"
	ContextKeyDatasetDate    = "dataset_date"
	ContextKeyDatasetBytes   = "dataset_bytes"
	ContextKeyRowsParsed     = "rows_parsed"
	ContextKeyCountryRows    = "country_rows"
	ContextKeyAggregateRows  = "aggregate_rows"
	ContextKeyLocations      = "locations"
	ContextKeyChartsRendered = "charts_rendered"
	ContextKeySnapshots      = "snapshots"
	ContextKeyArtifacts      = "artifacts"
)

// Operation modes
const (
	ModeFull    = "full"
	ModeRefresh = "refresh"
)

// Data types tracked in the pipeline manifest
const (
	DataTypeRawDataset    = "raw_dataset"
	DataTypeCleanData     = "clean_data"
	DataTypeAnalytics     = "analytics_exports"
	DataTypeCharts        = "chart_files"
	DataTypeReportBundles = "report_bundles"
)

// Default timeouts
const (
	DefaultStageTimeout     = 30 * time.Minute
	DefaultFetchTimeout     = 10 * time.Minute
	DefaultProcessTimeout   = 15 * time.Minute
	DefaultAnalyzeTimeout   = 5 * time.Minute
	DefaultVisualizeTimeout = 20 * time.Minute
	DefaultReportTimeout    = 5 * time.Minute
)

// ExecutionMode defines how stages are executed
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// RetryConfig defines retry behavior for stages
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// StageExecutionResult represents the result of a stage execution
type StageExecutionResult struct {
	StageID   string                 `json:"stage_id"`
	Success   bool                   `json:"success"`
	Output    string                 `json:"output,omitempty"`
	Error     error                  `json:"error,omitempty"`
	StartTime time.Time              `json:"start_time"`
	EndTime   time.Time              `json:"end_time"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// OperationRequest represents a request to execute a pipeline run.
// FromDate and ToDate optionally narrow the dataset to a reporting
// window; an empty value means the full history.
type OperationRequest struct {
	ID         string                 `json:"id"`
	Mode       string                 `json:"mode"`
	FromDate   string                 `json:"from_date,omitempty"`
	ToDate     string                 `json:"to_date,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// OperationResponse represents the response from an operation execution
type OperationResponse struct {
	ID       string                 `json:"id"`
	Status   OperationStatusValue   `json:"status"`
	Duration time.Duration          `json:"duration"`
	Stages   map[string]*StageState `json:"stages"`
	Error    string                 `json:"error,omitempty"`
}

// ProgressUpdate represents a progress update from a stage
type ProgressUpdate struct {
	StageID  string                 `json:"stage_id"`
	Progress float64                `json:"progress"`
	Message  string                 `json:"message"`
	ETA      string                 `json:"eta,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StageMetrics represents performance metrics for a stage
type StageMetrics struct {
	StageID         string        `json:"stage_id"`
	ExecutionCount  int           `json:"execution_count"`
	SuccessCount    int           `json:"success_count"`
	FailureCount    int           `json:"failure_count"`
	AverageDuration time.Duration `json:"average_duration"`
	LastExecution   *time.Time    `json:"last_execution,omitempty"`
}

// OperationType represents an available operation type
type OperationType struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Dependencies []string              `json:"dependencies"`
	CanRunAlone  bool                  `json:"can_run_alone"`
	Parameters   []ParameterDefinition `json:"parameters"`
}

// ParameterDefinition defines a parameter for an operation type
type ParameterDefinition struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // string, number, date, select, boolean
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Options     []string    `json:"options,omitempty"` // For select type
}

package operations

import (
	"time"
)

// Config represents the operation execution configuration
type Config struct {
	// Execution mode (sequential or parallel)
	ExecutionMode ExecutionMode `json:"execution_mode"`

	// Per-stage timeouts
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`

	// Retry configuration for stages
	RetryConfig RetryConfig `json:"retry_config"`

	// Whether to continue when a stage fails
	ContinueOnError bool `json:"continue_on_error"`

	// Maximum concurrent stages (for parallel execution)
	MaxConcurrency int `json:"max_concurrency"`

	// Whether to enable checkpointing
	EnableCheckpoints bool `json:"enable_checkpoints"`

	// Checkpoint directory
	CheckpointDir string `json:"checkpoint_dir"`

	// Custom stage configurations
	StageConfigs map[string]interface{} `json:"stage_configs"`
}

// NewConfig returns the default operation configuration
func NewConfig() *Config {
	return &Config{
		ExecutionMode: ExecutionModeSequential,
		StageTimeouts: map[string]time.Duration{
			StageIDFetch:     DefaultFetchTimeout,
			StageIDProcess:   DefaultProcessTimeout,
			StageIDAnalyze:   DefaultAnalyzeTimeout,
			StageIDVisualize: DefaultVisualizeTimeout,
			StageIDReport:    DefaultReportTimeout,
		},
		RetryConfig:       NewRetryConfig(),
		ContinueOnError:   false,
		MaxConcurrency:    1,
		EnableCheckpoints: false,
		CheckpointDir:     "data/checkpoints",
		StageConfigs:      make(map[string]interface{}),
	}
}

// GetStageTimeout returns the timeout for a specific stage
func (c *Config) GetStageTimeout(stageID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stageID]; ok {
		return timeout
	}
	return DefaultStageTimeout
}

// SetStageTimeout sets the timeout for a specific stage
func (c *Config) SetStageTimeout(stageID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stageID] = timeout
}

// GetStageConfig returns the configuration for a specific stage
func (c *Config) GetStageConfig(stageID string) (interface{}, bool) {
	if c.StageConfigs == nil {
		return nil, false
	}
	config, ok := c.StageConfigs[stageID]
	return config, ok
}

// SetStageConfig sets the configuration for a specific stage
func (c *Config) SetStageConfig(stageID string, config interface{}) {
	if c.StageConfigs == nil {
		c.StageConfigs = make(map[string]interface{})
	}
	c.StageConfigs[stageID] = config
}

// StageConfig represents configuration shared by individual stages
type StageConfig struct {
	// Stage identification
	ID string `json:"id"`

	// Stage type
	Type string `json:"type"`

	// Stage dependencies
	Dependencies []string `json:"dependencies,omitempty"`

	// Number of retries
	Retries int `json:"retries,omitempty"`

	// Whether this stage is enabled
	Enabled bool `json:"enabled"`

	// Whether to skip this stage on failure
	SkipOnFailure bool `json:"skip_on_failure"`

	// Custom timeout for this stage
	Timeout time.Duration `json:"timeout"`

	// Retry configuration override
	RetryConfig *RetryConfig `json:"retry_config,omitempty"`

	// Stage-specific parameters
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// FetchStageConfig configures the dataset download stage
type FetchStageConfig struct {
	StageConfig
	SourceURL string `json:"source_url"`
	OutDir    string `json:"out_dir"`
	Force     bool   `json:"force"` // re-download even when the cached copy is fresh
}

// ProcessStageConfig configures the data cleaning stage
type ProcessStageConfig struct {
	StageConfig
	InFile   string `json:"in_file"`
	OutDir   string `json:"out_dir"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

// AnalyzeStageConfig configures the statistical analysis stage
type AnalyzeStageConfig struct {
	StageConfig
	InFile   string `json:"in_file"`
	OutDir   string `json:"out_dir"`
	TopN     int    `json:"top_n"`
	Workbook bool   `json:"workbook"`
}

// VisualizeStageConfig configures the chart generation stage
type VisualizeStageConfig struct {
	StageConfig
	OutDir    string `json:"out_dir"`
	Snapshots bool   `json:"snapshots"` // capture PNG snapshots of rendered charts
}

// ReportStageConfig configures the report export stage
type ReportStageConfig struct {
	StageConfig
	OutDir string `json:"out_dir"`
}

// ConfigBuilder provides a fluent interface for building operation configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithExecutionMode sets the execution mode
func (b *ConfigBuilder) WithExecutionMode(mode ExecutionMode) *ConfigBuilder {
	b.config.ExecutionMode = mode
	return b
}

// WithStageTimeout sets the timeout for a stage
func (b *ConfigBuilder) WithStageTimeout(stageID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStageTimeout(stageID, timeout)
	return b
}

// WithRetryConfig sets the retry configuration
func (b *ConfigBuilder) WithRetryConfig(config RetryConfig) *ConfigBuilder {
	b.config.RetryConfig = config
	return b
}

// WithContinueOnError sets whether to continue on errors
func (b *ConfigBuilder) WithContinueOnError(continueOnError bool) *ConfigBuilder {
	b.config.ContinueOnError = continueOnError
	return b
}

// WithMaxConcurrency sets the maximum concurrency
func (b *ConfigBuilder) WithMaxConcurrency(maxConcurrency int) *ConfigBuilder {
	b.config.MaxConcurrency = maxConcurrency
	return b
}

// WithCheckpoints enables checkpointing
func (b *ConfigBuilder) WithCheckpoints(enabled bool, dir string) *ConfigBuilder {
	b.config.EnableCheckpoints = enabled
	if dir != "" {
		b.config.CheckpointDir = dir
	}
	return b
}

// WithStageConfig sets the configuration for a stage
func (b *ConfigBuilder) WithStageConfig(stageID string, config interface{}) *ConfigBuilder {
	b.config.SetStageConfig(stageID, config)
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}

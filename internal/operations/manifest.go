package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PipelineManifest is the report stage's record of what a run left on
// disk. It is written once at the end of a run and read back by the
// dashboard and by operators inspecting the data directory.
type PipelineManifest struct {
	mu sync.RWMutex `json:"-"`

	// Identity
	ID          string    `json:"id"`
	OperationID string    `json:"operation_id"`
	StartTime   time.Time `json:"start_time"`

	// Request parameters the run was started with
	FromDate string                 `json:"from_date,omitempty"`
	ToDate   string                 `json:"to_date,omitempty"`
	Mode     string                 `json:"mode"`
	Config   map[string]interface{} `json:"config,omitempty"`

	// Artifact groups keyed by data type (raw_dataset, clean_data, ...)
	AvailableData map[string]*DataInfo `json:"available_data"`

	// Stage outcomes carried over from the run state
	CompletedStages []StageExecution `json:"completed_stages"`

	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
	Error       string    `json:"error,omitempty"`
}

// DataInfo describes one artifact group on disk.
type DataInfo struct {
	Type        string                 `json:"type"`
	Location    string                 `json:"location"`
	FileCount   int                    `json:"file_count"`
	FilePattern string                 `json:"file_pattern"`
	TotalSize   int64                  `json:"total_size"`
	Files       []string               `json:"files"`
	CreatedAt   time.Time              `json:"created_at"`
	CreatedBy   string                 `json:"created_by"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// StageExecution is the persisted outcome of one stage.
type StageExecution struct {
	StageID    string                 `json:"stage_id"`
	StageName  string                 `json:"stage_name"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time"`
	Duration   string                 `json:"duration"`
	Status     string                 `json:"status"`
	OutputData []string               `json:"output_data"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewPipelineManifest starts an empty manifest for the given run.
func NewPipelineManifest(operationID string, fromDate, toDate string) *PipelineManifest {
	return &PipelineManifest{
		ID:              fmt.Sprintf("manifest-%d", time.Now().Unix()),
		OperationID:     operationID,
		StartTime:       time.Now(),
		FromDate:        fromDate,
		ToDate:          toDate,
		Mode:            ModeFull,
		AvailableData:   make(map[string]*DataInfo),
		CompletedStages: []StageExecution{},
		Status:          "pending",
		LastUpdated:     time.Now(),
	}
}

// HasData reports whether an artifact group of the given type was
// recorded.
func (m *PipelineManifest) HasData(dataType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.AvailableData[dataType]
	return exists
}

// GetData looks up one artifact group. Stage CanRun checks use this to
// decide whether a partial run has its inputs.
func (m *PipelineManifest) GetData(dataType string) (*DataInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.AvailableData[dataType]
	return data, exists
}

// AddData records an artifact group directly, bypassing the directory
// scan. Used when the producing stage already knows its outputs.
func (m *PipelineManifest) AddData(dataType string, info *DataInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info.CreatedAt = time.Now()
	m.AvailableData[dataType] = info
	m.LastUpdated = time.Now()
}

// IsStageCompleted reports whether the named stage finished cleanly in
// the recorded run.
func (m *PipelineManifest) IsStageCompleted(stageID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, stage := range m.CompletedStages {
		if stage.StageID == stageID && stage.Status == "completed" {
			return true
		}
	}
	return false
}

// ScanDataDirectory inventories the files matching pattern under
// location and records them as the artifact group for dataType.
// Subdirectories are skipped, only plain files count.
func (m *PipelineManifest) ScanDataDirectory(dataType, location, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(location); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", location)
	}

	searchPattern := filepath.Join(location, pattern)
	files, err := filepath.Glob(searchPattern)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}

	var totalSize int64
	fileNames := make([]string, 0, len(files))
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			totalSize += info.Size()
			fileNames = append(fileNames, filepath.Base(file))
		}
	}

	m.AvailableData[dataType] = &DataInfo{
		Type:        dataType,
		Location:    location,
		FileCount:   len(fileNames),
		FilePattern: pattern,
		TotalSize:   totalSize,
		Files:       fileNames,
		CreatedAt:   time.Now(),
	}

	m.LastUpdated = time.Now()
	return nil
}

// SaveToFile writes the manifest as indented JSON next to the other
// run artifacts.
func (m *PipelineManifest) SaveToFile(filepath string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}

	return nil
}

// LoadManifestFromFile reads a previously saved manifest.
func LoadManifestFromFile(filepath string) (*PipelineManifest, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest PipelineManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	return &manifest, nil
}

package operations

import (
	"sync"
	"time"
)

// OperationStatusValue tracks where a pipeline run sits in its lifecycle.
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// OperationState is the live record of one pipeline run. The manager
// mutates it as stages progress and handlers read snapshots of it, so
// every access goes through the mutex.
type OperationState struct {
	mu sync.RWMutex

	// Run identity and timing
	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	// Per-stage progress keyed by stage ID
	Stages map[string]*StageState `json:"stages"`

	// Values stages hand to their successors, such as the path of the
	// dataset the fetch stage wrote
	Context map[string]interface{} `json:"context"`

	// Request parameters visible to every stage
	Config map[string]interface{} `json:"config"`

	// First fatal error, set once when the run fails
	Error error `json:"error,omitempty"`
}

// NewOperationState builds a pending run record for the given id.
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Stages:    make(map[string]*StageState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
	}
}

// Start stamps the run as running and resets its clock.
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete closes out a successful run.
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail closes out the run with its fatal error.
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel closes out a run stopped by request.
func (p *OperationState) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
}

// GetStage returns the live record for one stage, or nil before the
// stage was registered with the run.
func (p *OperationState) GetStage(stageID string) *StageState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Stages[stageID]
}

// SetStage installs or replaces a stage record.
func (p *OperationState) SetStage(stageID string, state *StageState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Stages[stageID] = state
}

// GetContext reads a value an earlier stage published.
func (p *OperationState) GetContext(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Context[key]
	return val, ok
}

// SetContext publishes a value for downstream stages.
func (p *OperationState) SetContext(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Context[key] = value
}

// GetConfig reads a request parameter.
func (p *OperationState) GetConfig(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Config[key]
	return val, ok
}

// SetConfig stores a request parameter.
func (p *OperationState) SetConfig(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Config[key] = value
}

// GetStatus reads the run status under the lock.
func (p *OperationState) GetStatus() OperationStatusValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status
}

// Duration reports elapsed run time, still ticking while the run is live.
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// GetCompletedStages lists stages that finished cleanly.
func (p *OperationState) GetCompletedStages() []*StageState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var completed []*StageState
	for _, stage := range p.Stages {
		if stage.Status == StageStatusCompleted {
			completed = append(completed, stage)
		}
	}
	return completed
}

// GetFailedStages lists stages that errored, in no particular order.
func (p *OperationState) GetFailedStages() []*StageState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var failed []*StageState
	for _, stage := range p.Stages {
		if stage.Status == StageStatusFailed {
			failed = append(failed, stage)
		}
	}
	return failed
}

// HasFailures reports whether any stage errored, which matters for
// runs configured to keep going past failures.
func (p *OperationState) HasFailures() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, stage := range p.Stages {
		if stage.Status == StageStatusFailed {
			return true
		}
	}
	return false
}

// Clone snapshots the run for broadcasting. Stage records get their
// own copies so WebSocket serialization never races the executor.
func (p *OperationState) Clone() *OperationState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	clone := &OperationState{
		ID:        p.ID,
		Status:    p.Status,
		StartTime: p.StartTime,
		Stages:    make(map[string]*StageState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
		Error:     p.Error,
	}

	if p.EndTime != nil {
		endTime := *p.EndTime
		clone.EndTime = &endTime
	}

	for k, v := range p.Stages {
		v.mu.RLock()
		stageCopy := &StageState{
			ID:        v.ID,
			Name:      v.Name,
			Status:    v.Status,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Progress:  v.Progress,
			Message:   v.Message,
			Error:     v.Error,
			Metadata:  make(map[string]interface{}),
		}
		for mk, mv := range v.Metadata {
			stageCopy.Metadata[mk] = mv
		}
		v.mu.RUnlock()
		clone.Stages[k] = stageCopy
	}

	for k, v := range p.Context {
		clone.Context[k] = v
	}

	for k, v := range p.Config {
		clone.Config[k] = v
	}

	return clone
}

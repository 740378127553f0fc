package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"covidcli/pkg/contracts/events"
)

// StatusBroadcaster is the single authority for all operation status updates.
// It maintains the complete state of all operations and broadcasts snapshots.
type StatusBroadcaster struct {
	mu         sync.RWMutex
	operations map[string]*events.OperationSnapshot
	hub        WebSocketHub
	logger     *slog.Logger
	updates    chan updateRequest
	stop       chan struct{}
}

type updateRequest struct {
	operationID string
	updateFunc  func(*events.OperationSnapshot)
	done        chan struct{}
}

// NewStatusBroadcaster creates a new status broadcaster
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		operations: make(map[string]*events.OperationSnapshot),
		hub:        hub,
		logger:     logger,
		updates:    make(chan updateRequest, 100),
		stop:       make(chan struct{}),
	}

	// Start the update processor
	go sb.processUpdates()

	return sb
}

// processUpdates handles all updates sequentially to avoid race conditions
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

// handleUpdate processes a single update request
func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Get or create snapshot
	snapshot, exists := sb.operations[req.operationID]
	if !exists {
		snapshot = &events.OperationSnapshot{
			OperationID: req.operationID,
			Status:      "pending",
			Progress:    0,
			StartedAt:   time.Now(),
			UpdatedAt:   time.Now(),
			Stages:      []events.StageSnapshot{},
		}
		sb.operations[req.operationID] = snapshot
	}

	// Apply the update
	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	// Calculate overall progress from stages
	if len(snapshot.Stages) > 0 {
		totalProgress := 0
		for _, stage := range snapshot.Stages {
			totalProgress += stage.Progress
		}
		snapshot.Progress = totalProgress / len(snapshot.Stages)
	}

	// Set completed time if status is terminal
	if snapshot.Status == "completed" || snapshot.Status == "failed" || snapshot.Status == "cancelled" {
		if snapshot.CompletedAt == nil {
			now := time.Now()
			snapshot.CompletedAt = &now
		}
	}

	// Broadcast the complete snapshot
	sb.broadcast(snapshot)
}

// broadcast sends the complete snapshot to all connected clients
func (sb *StatusBroadcaster) broadcast(snapshot *events.OperationSnapshot) {
	if sb.hub == nil {
		sb.logger.Debug("no websocket hub configured for status broadcast")
		return
	}

	sb.logger.Info("broadcasting operation snapshot",
		slog.String("operation_id", snapshot.OperationID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_stage", snapshot.CurrentStage),
		slog.Int("stages", len(snapshot.Stages)),
	)

	sb.hub.BroadcastUpdate(string(events.MessageTypeOperationSnapshot), snapshot.OperationID, "update", snapshot)
}

// UpdateStatus updates the status of an operation.
// This is the ONLY method that should be called to update operation status.
func (sb *StatusBroadcaster) UpdateStatus(operationID string, updateFunc func(*events.OperationSnapshot)) {
	req := updateRequest{
		operationID: operationID,
		updateFunc:  updateFunc,
		done:        make(chan struct{}),
	}

	sb.updates <- req
	<-req.done // Wait for update to complete
}

// CreateOperation initializes a new operation with the given stages.
// stageIDs MUST be stable stage IDs so future updates match correctly.
func (sb *StatusBroadcaster) CreateOperation(operationID string, stageIDs []string) {
	sb.UpdateStatus(operationID, func(snapshot *events.OperationSnapshot) {
		snapshot.Status = "pending"
		snapshot.Progress = 0
		snapshot.Stages = make([]events.StageSnapshot, len(stageIDs))
		for i, id := range stageIDs {
			snapshot.Stages[i] = events.StageSnapshot{
				ID:       id,
				Name:     id,
				Status:   "pending",
				Progress: 0,
			}
		}
		snapshot.Message = "Operation created"
	})
}

// StartOperation marks an operation as running
func (sb *StatusBroadcaster) StartOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *events.OperationSnapshot) {
		snapshot.Status = "running"
		snapshot.Message = "Operation started"
	})
}

// UpdateStageProgress updates a specific stage's progress
func (sb *StatusBroadcaster) UpdateStageProgress(operationID, stageID string, progress int, message string) {
	sb.UpdateStageWithMetadata(operationID, stageID, progress, message, nil)
}

// UpdateStageWithMetadata updates a specific stage's progress with metadata
func (sb *StatusBroadcaster) UpdateStageWithMetadata(operationID, stageID string, progress int, message string, metadata map[string]interface{}) {
	sb.UpdateStatus(operationID, func(snapshot *events.OperationSnapshot) {
		found := false
		for i := range snapshot.Stages {
			if snapshot.Stages[i].ID == stageID {
				found = true
				// Keep stage progress monotonic while running so late
				// events arriving out of order cannot walk it backwards.
				if progress < snapshot.Stages[i].Progress && snapshot.Stages[i].Status == "running" {
					// Keep the higher progress already observed
				} else {
					snapshot.Stages[i].Progress = progress
				}
				snapshot.Stages[i].Message = message
				if metadata != nil {
					snapshot.Stages[i].Metadata = metadata
				}
				if progress > 0 && progress < 100 {
					snapshot.Stages[i].Status = "running"
					snapshot.CurrentStage = snapshot.Stages[i].Name
				} else if progress >= 100 {
					snapshot.Stages[i].Status = "completed"
					snapshot.Stages[i].Progress = 100
				}
				break
			}
		}
		if !found {
			// Append a minimal stage entry so progress can continue even when
			// the stage was not pre-registered.
			status := "running"
			if progress >= 100 {
				status = "completed"
			}
			snapshot.Stages = append(snapshot.Stages, events.StageSnapshot{
				ID:       stageID,
				Name:     stageID,
				Status:   status,
				Progress: minInt(maxInt(progress, 0), 100),
				Message:  message,
				Metadata: metadata,
			})
			if progress > 0 && progress < 100 {
				snapshot.CurrentStage = stageID
			}
		}
	})
}

// Helpers to clamp ints without importing math just for this
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// CompleteStage marks a stage as completed
func (sb *StatusBroadcaster) CompleteStage(operationID, stageID string, message string) {
	sb.UpdateStatus(operationID, func(snapshot *events.OperationSnapshot) {
		for i := range snapshot.Stages {
			if snapshot.Stages[i].ID == stageID {
				snapshot.Stages[i].Status = "completed"
				snapshot.Stages[i].Progress = 100
				snapshot.Stages[i].Message = message
				break
			}
		}
	})
}

// FailStage marks a stage as failed
func (sb *StatusBroadcaster) FailStage(operationID, stageID string, err error) {
	sb.UpdateStatus(operationID, func(snapshot *events.OperationSnapshot) {
		for i := range snapshot.Stages {
			if snapshot.Stages[i].ID == stageID {
				snapshot.Stages[i].Status = "failed"
				snapshot.Stages[i].Error = err.Error()
				break
			}
		}
	})
}

// CompleteOperation marks an operation as completed
func (sb *StatusBroadcaster) CompleteOperation(operationID string, message string) {
	sb.UpdateStatus(operationID, func(snapshot *events.OperationSnapshot) {
		snapshot.Status = "completed"
		snapshot.Progress = 100
		snapshot.CurrentStage = ""
		snapshot.Message = message
		// Ensure all stages are marked as completed
		for i := range snapshot.Stages {
			if snapshot.Stages[i].Status == "running" || snapshot.Stages[i].Status == "pending" {
				snapshot.Stages[i].Status = "completed"
				snapshot.Stages[i].Progress = 100
			}
		}
	})
}

// FailOperation marks an operation as failed
func (sb *StatusBroadcaster) FailOperation(operationID string, err error) {
	sb.UpdateStatus(operationID, func(snapshot *events.OperationSnapshot) {
		snapshot.Status = "failed"
		snapshot.Error = err.Error()
		snapshot.CurrentStage = ""
	})
}

// CancelOperation marks an operation as cancelled
func (sb *StatusBroadcaster) CancelOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *events.OperationSnapshot) {
		snapshot.Status = "cancelled"
		snapshot.CurrentStage = ""
		snapshot.Message = "Operation cancelled by user"
	})
}

// GetSnapshot returns the current snapshot for an operation
func (sb *StatusBroadcaster) GetSnapshot(operationID string) (*events.OperationSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.operations[operationID]
	if !exists {
		return nil, false
	}

	// Return a copy to prevent external modification
	copy := *snapshot
	return &copy, true
}

// GetAllSnapshots returns all current operation snapshots
func (sb *StatusBroadcaster) GetAllSnapshots() []*events.OperationSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*events.OperationSnapshot, 0, len(sb.operations))
	for _, snapshot := range sb.operations {
		copy := *snapshot
		snapshots = append(snapshots, &copy)
	}

	return snapshots
}

// CleanupOldOperations removes terminal operations older than maxAge
func (sb *StatusBroadcaster) CleanupOldOperations(ctx context.Context, maxAge time.Duration) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := time.Now()
	for id, snapshot := range sb.operations {
		if snapshot.Status == "completed" || snapshot.Status == "failed" || snapshot.Status == "cancelled" {
			if snapshot.CompletedAt != nil && now.Sub(*snapshot.CompletedAt) > maxAge {
				delete(sb.operations, id)
				sb.logger.Info("cleaned up old operation",
					slog.String("operation_id", id),
					slog.String("status", snapshot.Status),
					slog.Duration("age", now.Sub(*snapshot.CompletedAt)),
				)
			}
		}
	}
}

// Stop gracefully shuts down the broadcaster
func (sb *StatusBroadcaster) Stop() {
	close(sb.stop)
}

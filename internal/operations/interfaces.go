package operations

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, stage, status string, metadata interface{})
}

// ProgressReporter interface for stages that can report progress
type ProgressReporter interface {
	ReportProgress(progress int, message string) error
}

// StageOptions contains optional dependencies for stages
type StageOptions struct {
	WebSocketManager  WebSocketHub
	EnableProgress    bool
	StatusBroadcaster *StatusBroadcaster
}

package services

import (
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"
)

// testLogger returns a logger that discards output, for use in tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockWebSocketHub is a mock for the operations.WebSocketHub interface
type MockWebSocketHub struct {
	mock.Mock
}

func (m *MockWebSocketHub) BroadcastUpdate(eventType, stage, status string, metadata interface{}) {
	m.Called(eventType, stage, status, metadata)
}

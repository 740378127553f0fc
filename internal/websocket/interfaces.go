package websocket

import (
	"time"
)

// Connection is the slice of a gorilla connection the progress hub and
// the client pumps actually use. The pump tests swap in a mock so they
// can exercise ping timeouts and slow readers without a real dashboard
// attached.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"covidcli/internal/infrastructure"
	"covidcli/pkg/contracts/events"
)

// broadcastQueueSize bounds the outbound queue. When the queue is full the
// hub drops the message rather than stalling the pipeline that produced it.
const broadcastQueueSize = 64

// Hub maintains the set of active dashboard clients and fans broadcast
// messages out to them. Operation snapshots, data refresh notices and
// system status events all flow through a single broadcast channel.
type Hub struct {
	clients map[*Client]bool

	// Outbound messages destined for every connected client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	// Counters exposed through GetHubMetrics
	totalConnections int64
	messagesSent     int64
	droppedMessages  int64

	quit        chan struct{}
	running     bool
	metricsQuit chan struct{}
}

// NewHub creates a hub. A nil logger falls back to the process logger.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		broadcast:   make(chan []byte, broadcastQueueSize),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		logger:      logger,
		quit:        make(chan struct{}),
		metricsQuit: make(chan struct{}),
	}
}

// Start launches the hub loop and the periodic metrics reporter.
// Calling Start on a running hub is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
	go h.reportMetrics()
}

// Run processes register, unregister and broadcast events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	h.mu.Unlock()

	ctx := client.loggingContext()
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	GetMetrics().RecordConnection()
	if otel := GetOTelMetrics(); otel != nil {
		otel.RecordConnection(ctx, client.id, client.remoteAddr)
		otel.RecordClientCount(ctx, int64(count))
	}

	// Greet the new client so the dashboard can show connection state
	// before the first snapshot arrives.
	welcome := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			Type:      events.MessageTypeConnect,
			Timestamp: time.Now().UTC(),
			TraceID:   client.traceID,
		},
		Data: map[string]interface{}{
			"status":    "connected",
			"message":   "Connected to the COVID-19 analytics stream",
			"client_id": client.id,
		},
	}
	if payload, err := json.Marshal(welcome); err == nil {
		select {
		case client.send <- payload:
		default:
			h.logger.WarnContext(ctx, "Welcome message dropped, client buffer full",
				slog.String("client_id", client.id))
		}
	}
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.loggingContext()
	connectedFor := time.Since(client.connectedAt)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", connectedFor))

	GetMetrics().RecordDisconnection(connectedFor)
	if otel := GetOTelMetrics(); otel != nil {
		otel.RecordDisconnection(ctx, client.id, connectedFor, "normal")
		otel.RecordClientCount(ctx, int64(count))
	}
}

// fanOut delivers one broadcast frame to every connected client. Clients
// whose send buffer is full are disconnected so one stalled dashboard tab
// cannot back up snapshot delivery for the rest.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	successCount := 0
	failCount := 0
	for _, client := range clients {
		select {
		case client.send <- message:
			successCount++
		default:
			failCount++
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.WarnContext(client.loggingContext(), "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}

	h.mu.Lock()
	h.messagesSent += int64(successCount)
	h.mu.Unlock()

	if failCount > 0 {
		h.logger.Warn("Some clients missed a broadcast",
			slog.Int("success_count", successCount),
			slog.Int("fail_count", failCount))
	}

	if otel := GetOTelMetrics(); otel != nil {
		otel.RecordBroadcast(context.Background(), "broadcast",
			int64(len(clients)), int64(successCount), int64(failCount))
	}
}

// enqueue places a marshaled frame on the broadcast queue without blocking.
func (h *Hub) enqueue(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		h.mu.Lock()
		h.droppedMessages++
		h.mu.Unlock()
		GetMetrics().RecordDroppedMessage()
		h.logger.Warn("Broadcast queue full, dropping message",
			slog.Int("payload_size", len(payload)))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Stop closes every client connection and halts the hub goroutines.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	close(h.metricsQuit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// reportMetrics periodically logs hub health and records the queue depth.
func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.metricsQuit:
			return

		case <-ticker.C:
			h.mu.RLock()
			activeClients := len(h.clients)
			totalConnections := h.totalConnections
			messagesSent := h.messagesSent
			dropped := h.droppedMessages
			h.mu.RUnlock()

			GetMetrics().RecordQueueDepth(int64(len(h.broadcast)))
			if otel := GetOTelMetrics(); otel != nil {
				otel.RecordQueueDepth(context.Background(), int64(len(h.broadcast)), "broadcast")
			}

			h.logger.Info("WebSocket hub metrics",
				slog.Int("active_clients", activeClients),
				slog.Int64("total_connections", totalConnections),
				slog.Int64("messages_sent", messagesSent),
				slog.Int64("dropped_messages", dropped),
				slog.Int("broadcast_queue", len(h.broadcast)))
		}
	}
}

// GetHubMetrics returns a snapshot of the hub counters.
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"dropped_messages":  h.droppedMessages,
	}
}

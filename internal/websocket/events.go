package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"covidcli/pkg/contracts/events"
)

// BroadcastUpdate sends an event to all connected clients. It satisfies the
// operations.WebSocketHub contract, so the status broadcaster can push
// operation snapshots straight into the hub.
//
// Snapshot events carry the full state in data and need no stage or status
// fields. Other event types keep stage and status alongside the payload so
// the dashboard can route them.
func (h *Hub) BroadcastUpdate(eventType, stage, status string, data interface{}) {
	h.BroadcastUpdateWithTrace(eventType, stage, status, data, "")
}

// BroadcastUpdateWithTrace is BroadcastUpdate with a trace ID stamped on the
// envelope for request correlation.
func (h *Hub) BroadcastUpdateWithTrace(eventType, stage, status string, data interface{}, traceID string) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			Type:      events.MessageType(eventType),
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}

	if eventType != string(events.MessageTypeOperationSnapshot) && (stage != "" || status != "") {
		msg.Data = map[string]interface{}{
			"stage":   stage,
			"status":  status,
			"payload": data,
		}
	}

	h.broadcastJSON(msg)
}

// BroadcastSnapshot pushes a full operation snapshot to every client.
func (h *Hub) BroadcastSnapshot(snapshot *events.OperationSnapshot) {
	h.BroadcastUpdate(string(events.MessageTypeOperationSnapshot), "", "", snapshot)
}

// BroadcastDataRefresh tells dashboards that processed artifacts changed and
// whatever they are displaying should be reloaded. Reason is one of
// scheduled, manual or startup.
func (h *Hub) BroadcastDataRefresh(datasetDate time.Time, artifacts []string, reason string) {
	evt := events.DataRefreshEvent{
		BaseMessage: events.BaseMessage{
			Type:      events.MessageTypeDataRefresh,
			Timestamp: time.Now().UTC(),
		},
	}
	evt.Data.DatasetDate = datasetDate
	evt.Data.Artifacts = artifacts
	evt.Data.Reason = reason

	h.broadcastJSON(evt)
}

// BroadcastSystemStatus publishes overall service health to the dashboard.
func (h *Hub) BroadcastSystemStatus(status string, components map[string]string, uptime, version string) {
	evt := events.SystemStatusEvent{
		BaseMessage: events.BaseMessage{
			Type:      events.MessageTypeSystemStatus,
			Timestamp: time.Now().UTC(),
		},
	}
	evt.Data.Status = status
	evt.Data.Components = components
	evt.Data.Uptime = uptime
	evt.Data.Version = version

	h.broadcastJSON(evt)
}

// BroadcastError sends a structured error event. Retry marks errors the
// client may resolve by re-running the operation, fatal marks errors that
// need operator attention.
func (h *Hub) BroadcastError(code, message string, details interface{}, retry, fatal bool) {
	evt := events.ErrorMessage{
		BaseMessage: events.BaseMessage{
			Type:      events.MessageTypeError,
			Timestamp: time.Now().UTC(),
		},
	}
	evt.Data.Code = code
	evt.Data.Message = message
	evt.Data.Details = details
	evt.Data.Retry = retry
	evt.Data.Fatal = fatal

	h.broadcastJSON(evt)
}

// broadcastJSON marshals an event and hands it to the broadcast queue.
func (h *Hub) broadcastJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Error marshaling broadcast event",
			slog.String("error", err.Error()))
		return
	}
	h.enqueue(payload)
}

package ws

import (
	"context"
	"log"
	"time"

	"messenger-service/internal/observability"
)

// Hub is the fan-out primitive: it resolves recipients through the presence
// registry and delivers events best-effort, at most once per online
// recipient. Offline recipients are dropped silently.
type Hub struct {
	presence *Registry
}

// NewHub creates a hub with an empty presence registry.
func NewHub() *Hub {
	return &Hub{presence: NewRegistry()}
}

// Presence exposes the registry to the connection lifecycle.
func (h *Hub) Presence() *Registry {
	return h.presence
}

// IsOnline reports whether the user has a live connection.
func (h *Hub) IsOnline(userID int) bool {
	return h.presence.IsOnline(userID)
}

// EmitToUser sends one event to the user's connection. Returns false when
// the user is offline or the write fails; there is no queuing or retry.
func (h *Hub) EmitToUser(userID int, event string, payload any) bool {
	client, ok := h.presence.Lookup(userID)
	if !ok {
		observability.IncWSDropped(event)
		return false
	}
	if err := h.send(client, event, payload); err != nil {
		return false
	}
	return true
}

// EmitToAll fans the event out to every online user except exclude (0 for
// no exclusion).
func (h *Hub) EmitToAll(event string, payload any, exclude int) {
	for _, client := range h.presence.Snapshot() {
		if exclude != 0 && client.UserID == exclude {
			continue
		}
		_ = h.send(client, event, payload)
	}
}

func (h *Hub) send(client *Client, event string, payload any) error {
	err := client.Send(event, payload)
	if err != nil {
		log.Printf("websocket write error: %v", err)
		client.Close()
		h.presence.Unbind(client.UserID, client)
		h.publishWSError(client, err)
		return err
	}
	observability.IncWSEvent(event, "out")
	return nil
}

func (h *Hub) publishWSError(client *Client, err error) {
	info := client.Info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   client.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.connections", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error", "internal")
}

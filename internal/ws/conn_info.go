package ws

import (
	"time"

	"github.com/google/uuid"

	"matchroom-service/internal/models"
	"matchroom-service/internal/observability"
)

// ConnInfo describes a websocket connection for metrics and event payloads.
// Identity is not bound to the connection: every join and send carries its own token.
type ConnInfo struct {
	ConnID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(meta observability.RequestMeta, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      uuid.NewString(),
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

// eventPayload renders a ws lifecycle event for the ws_events exchange.
func (info ConnInfo) eventPayload(event string, roomID int, userID int, reason string) observability.EventEnvelope {
	room := ""
	if roomID > 0 {
		room = models.RoomName(roomID)
	}
	return observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "match_room",
				"resource_id": roomID,
				"room":        room,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   userID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}
}

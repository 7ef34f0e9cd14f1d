package ws

import (
	"context"
	"log"
	"sync"

	"matchroom-service/internal/models"
	"matchroom-service/internal/observability"
)

// Hub maintains the broadcast group of every match room.
type Hub struct {
	rooms  map[int]map[*Client]struct{}
	joined map[*Client]map[int]struct{}
	mu     sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[int]map[*Client]struct{}),
		joined: make(map[*Client]map[int]struct{}),
	}
}

// Join adds client to the group of roomID.
func (h *Hub) Join(roomID int, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
	if _, ok := h.joined[client]; !ok {
		h.joined[client] = make(map[int]struct{})
	}
	h.joined[client][roomID] = struct{}{}
}

// Leave removes client from the group of roomID.
func (h *Hub) Leave(roomID int, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(roomID, client)
}

func (h *Hub) leaveLocked(roomID int, client *Client) {
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if rooms, ok := h.joined[client]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(h.joined, client)
		}
	}
}

// RemoveClient drops client from every group and returns the rooms it had joined.
func (h *Hub) RemoveClient(client *Client) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var rooms []int
	for roomID := range h.joined[client] {
		rooms = append(rooms, roomID)
	}
	for _, roomID := range rooms {
		h.leaveLocked(roomID, client)
	}
	return rooms
}

// Count returns the number of connections in the group of roomID.
func (h *Hub) Count(roomID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// BroadcastMessage sends a new_message event to every client in the room.
func (h *Hub) BroadcastMessage(roomID int, msg models.MessageView) {
	frame, err := models.EncodeOutbound(models.NewMessage{MessageView: msg})
	if err != nil {
		log.Printf("websocket encode error room_id=%d: %v", roomID, err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(frame); err != nil {
			log.Printf("websocket write error: %v", err)
			client.Close()
			h.Leave(roomID, client)
			h.publishWSError(roomID, client, err)
		}
	}
}

func (h *Hub) publishWSError(roomID int, client *Client, err error) {
	info := client.Info()
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), observability.WSRoutingKey, info.eventPayload("ws_error", roomID, 0, err.Error()), headers)
	observability.IncWSEvent("ws_error", "write_failed")
}

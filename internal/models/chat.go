package models

import (
	"strconv"
	"time"
)

// RoomStatus is the lifecycle state of a chat room.
type RoomStatus string

const (
	RoomActive   RoomStatus = "active"
	RoomArchived RoomStatus = "archived"
	RoomReadOnly RoomStatus = "read_only"
)

// ChatRoom is the chat channel of a confirmed match, one per match.
type ChatRoom struct {
	ID        int        `db:"id" json:"id"`
	MatchID   int        `db:"match_id" json:"match_id"`
	Status    RoomStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// RoomName is the broadcast group name of a room.
func RoomName(roomID int) string {
	return "match_room_" + strconv.Itoa(roomID)
}

package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"matchroom-service/internal/models"
)

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// GetRoom fetches a room by id.
func (r *ChatRepo) GetRoom(ctx context.Context, roomID int) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// GetRoomByMatch fetches the room of a match.
func (r *ChatRepo) GetRoomByMatch(ctx context.Context, matchID int) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE match_id=$1`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// AppendMessage stores a message; it is durable once this returns.
func (r *ChatRepo) AppendMessage(ctx context.Context, roomID int, senderID *int, messageType models.MessageType, content string) (models.ChatMessage, error) {
	msg, err := appendMessage(ctx, r.db, roomID, senderID, messageType, content)
	if pqCode(err) == pqForeignKeyViolation {
		return models.ChatMessage{}, ErrRoomNotFound
	}
	return msg, err
}

// appendMessage never stamps a message earlier than the newest one already in the room.
func appendMessage(ctx context.Context, q sqlx.QueryerContext, roomID int, senderID *int, messageType models.MessageType, content string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := sqlx.GetContext(ctx, q, &msg, `INSERT INTO chat_messages (room_id, sender_id, message_type, content, timestamp)
        SELECT $1, $2, $3, $4, GREATEST(clock_timestamp(), COALESCE(MAX(timestamp), '-infinity'::timestamptz))
        FROM chat_messages WHERE room_id=$1
        RETURNING `+messageColumns, roomID, senderID, messageType, content)
	return msg, err
}

// History returns the latest limit messages of a room, oldest first.
func (r *ChatRepo) History(ctx context.Context, roomID int, limit int) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM (
            SELECT `+messageColumns+` FROM chat_messages WHERE room_id=$1
            ORDER BY timestamp DESC, id DESC LIMIT $2
        ) recent ORDER BY timestamp ASC, id ASC`, roomID, limit)
	return msgs, err
}

// SetRoomStatus updates the lifecycle status of a room.
func (r *ChatRepo) SetRoomStatus(ctx context.Context, roomID int, status models.RoomStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_rooms SET status=$2, updated_at=NOW() WHERE id=$1`, roomID, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"time"

	"matchroom-service/internal/models"
)

// MatchRepository persists matches and the room side effects of their transitions.
type MatchRepository interface {
	// CreatePendingMatch inserts m unless a pending match exists between its teams in either direction.
	CreatePendingMatch(ctx context.Context, m models.Match) (models.Match, error)
	GetMatch(ctx context.Context, matchID int) (models.Match, error)
	// TransitionStatus moves the match from one status to another, failing with ErrStatusChanged when it is no longer in from.
	TransitionStatus(ctx context.Context, matchID int, from, to models.MatchStatus) (models.Match, error)
	// ConfirmMatch confirms the match, creates its room and appends the system message in one transaction.
	ConfirmMatch(ctx context.Context, matchID int, systemMessage string) (models.Match, models.ChatRoom, models.ChatMessage, error)
	// CancelMatch cancels the match; when it has a room the room is archived and the system message appended, in one transaction.
	CancelMatch(ctx context.Context, matchID int, from models.MatchStatus, systemMessage string) (models.Match, *models.ChatRoom, *models.ChatMessage, error)
	// ExpirePending expires pending matches whose date is before matchDateBefore or that were created before createdBefore.
	ExpirePending(ctx context.Context, matchDateBefore, createdBefore time.Time) ([]models.Match, error)
}

// ChatRepository persists rooms and their messages.
type ChatRepository interface {
	GetRoom(ctx context.Context, roomID int) (models.ChatRoom, error)
	GetRoomByMatch(ctx context.Context, matchID int) (models.ChatRoom, error)
	AppendMessage(ctx context.Context, roomID int, senderID *int, messageType models.MessageType, content string) (models.ChatMessage, error)
	// History returns the most recent limit messages in ascending order.
	History(ctx context.Context, roomID int, limit int) ([]models.ChatMessage, error)
	SetRoomStatus(ctx context.Context, roomID int, status models.RoomStatus) error
}

// MembershipRepository reads the team membership directory.
type MembershipRepository interface {
	IsMember(ctx context.Context, teamID int, userID int) (bool, error)
	GetTeam(ctx context.Context, teamID int) (models.Team, error)
	UserNames(ctx context.Context, userIDs []int) (map[int]string, error)
}

// BookingRepository reads reserved field slots.
type BookingRepository interface {
	GetBookingSlot(ctx context.Context, bookingID int) (models.BookingSlot, error)
}

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"matchroom-service/internal/models"
	"matchroom-service/internal/repositories"
)

type MatchRepositoryMock struct {
	mock.Mock
}

func (m *MatchRepositoryMock) CreatePendingMatch(ctx context.Context, match models.Match) (models.Match, error) {
	args := m.Called(ctx, match)
	var created models.Match
	if val := args.Get(0); val != nil {
		created = val.(models.Match)
	}
	return created, args.Error(1)
}

func (m *MatchRepositoryMock) GetMatch(ctx context.Context, matchID int) (models.Match, error) {
	args := m.Called(ctx, matchID)
	var match models.Match
	if val := args.Get(0); val != nil {
		match = val.(models.Match)
	}
	return match, args.Error(1)
}

func (m *MatchRepositoryMock) TransitionStatus(ctx context.Context, matchID int, from, to models.MatchStatus) (models.Match, error) {
	args := m.Called(ctx, matchID, from, to)
	var match models.Match
	if val := args.Get(0); val != nil {
		match = val.(models.Match)
	}
	return match, args.Error(1)
}

func (m *MatchRepositoryMock) ConfirmMatch(ctx context.Context, matchID int, systemMessage string) (models.Match, models.ChatRoom, models.ChatMessage, error) {
	args := m.Called(ctx, matchID, systemMessage)
	var (
		match models.Match
		room  models.ChatRoom
		msg   models.ChatMessage
	)
	if val := args.Get(0); val != nil {
		match = val.(models.Match)
	}
	if val := args.Get(1); val != nil {
		room = val.(models.ChatRoom)
	}
	if val := args.Get(2); val != nil {
		msg = val.(models.ChatMessage)
	}
	return match, room, msg, args.Error(3)
}

func (m *MatchRepositoryMock) CancelMatch(ctx context.Context, matchID int, from models.MatchStatus, systemMessage string) (models.Match, *models.ChatRoom, *models.ChatMessage, error) {
	args := m.Called(ctx, matchID, from, systemMessage)
	var (
		match models.Match
		room  *models.ChatRoom
		msg   *models.ChatMessage
	)
	if val := args.Get(0); val != nil {
		match = val.(models.Match)
	}
	if val := args.Get(1); val != nil {
		room = val.(*models.ChatRoom)
	}
	if val := args.Get(2); val != nil {
		msg = val.(*models.ChatMessage)
	}
	return match, room, msg, args.Error(3)
}

func (m *MatchRepositoryMock) ExpirePending(ctx context.Context, matchDateBefore, createdBefore time.Time) ([]models.Match, error) {
	args := m.Called(ctx, matchDateBefore, createdBefore)
	var list []models.Match
	if val := args.Get(0); val != nil {
		list = val.([]models.Match)
	}
	return list, args.Error(1)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetRoom(ctx context.Context, roomID int) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *ChatRepositoryMock) GetRoomByMatch(ctx context.Context, matchID int) (models.ChatRoom, error) {
	args := m.Called(ctx, matchID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *ChatRepositoryMock) AppendMessage(ctx context.Context, roomID int, senderID *int, messageType models.MessageType, content string) (models.ChatMessage, error) {
	args := m.Called(ctx, roomID, senderID, messageType, content)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *ChatRepositoryMock) History(ctx context.Context, roomID int, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *ChatRepositoryMock) SetRoomStatus(ctx context.Context, roomID int, status models.RoomStatus) error {
	args := m.Called(ctx, roomID, status)
	return args.Error(0)
}

type MembershipRepositoryMock struct {
	mock.Mock
}

func (m *MembershipRepositoryMock) IsMember(ctx context.Context, teamID int, userID int) (bool, error) {
	args := m.Called(ctx, teamID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MembershipRepositoryMock) GetTeam(ctx context.Context, teamID int) (models.Team, error) {
	args := m.Called(ctx, teamID)
	var team models.Team
	if val := args.Get(0); val != nil {
		team = val.(models.Team)
	}
	return team, args.Error(1)
}

func (m *MembershipRepositoryMock) UserNames(ctx context.Context, userIDs []int) (map[int]string, error) {
	args := m.Called(ctx, userIDs)
	var names map[int]string
	if val := args.Get(0); val != nil {
		names = val.(map[int]string)
	}
	return names, args.Error(1)
}

type BookingRepositoryMock struct {
	mock.Mock
}

func (m *BookingRepositoryMock) GetBookingSlot(ctx context.Context, bookingID int) (models.BookingSlot, error) {
	args := m.Called(ctx, bookingID)
	var slot models.BookingSlot
	if val := args.Get(0); val != nil {
		slot = val.(models.BookingSlot)
	}
	return slot, args.Error(1)
}

var _ repositories.MatchRepository = (*MatchRepositoryMock)(nil)
var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MembershipRepository = (*MembershipRepositoryMock)(nil)
var _ repositories.BookingRepository = (*BookingRepositoryMock)(nil)

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"matchroom-service/internal/models"
)

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Notify(ctx context.Context, n models.Notification) {
	m.Called(ctx, n)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastMessage(roomID int, msg models.MessageView) {
	m.Called(roomID, msg)
}

type MatchServiceMock struct {
	mock.Mock
}

func (m *MatchServiceMock) CreateChallenge(ctx context.Context, actorID int, req models.ChallengeRequest) (models.Match, error) {
	args := m.Called(ctx, actorID, req)
	return args.Get(0).(models.Match), args.Error(1)
}

func (m *MatchServiceMock) Accept(ctx context.Context, actorID, matchID int) (models.Match, error) {
	args := m.Called(ctx, actorID, matchID)
	return args.Get(0).(models.Match), args.Error(1)
}

func (m *MatchServiceMock) Confirm(ctx context.Context, actorID, matchID int) (models.Match, models.ChatRoom, error) {
	args := m.Called(ctx, actorID, matchID)
	return args.Get(0).(models.Match), args.Get(1).(models.ChatRoom), args.Error(2)
}

func (m *MatchServiceMock) Cancel(ctx context.Context, actorID, matchID int) (models.Match, error) {
	args := m.Called(ctx, actorID, matchID)
	return args.Get(0).(models.Match), args.Error(1)
}

func (m *MatchServiceMock) GetMatch(ctx context.Context, actorID, matchID int) (models.Match, error) {
	args := m.Called(ctx, actorID, matchID)
	return args.Get(0).(models.Match), args.Error(1)
}

func (m *MatchServiceMock) RoomForMatch(ctx context.Context, actorID, matchID int) (models.ChatRoom, error) {
	args := m.Called(ctx, actorID, matchID)
	return args.Get(0).(models.ChatRoom), args.Error(1)
}

package matchmaking

import (
	"context"
	"errors"
	"log"
	"strings"

	"matchroom-service/internal/apperr"
	"matchroom-service/internal/models"
	"matchroom-service/internal/observability"
	"matchroom-service/internal/repositories"
)

// AuthorizeRoom checks that the room is active and that userID belongs to
// team A or team B of its match. It is evaluated on every join and send.
func (s *Service) AuthorizeRoom(ctx context.Context, roomID, userID int) (models.ChatRoom, error) {
	return s.authorize(ctx, roomID, userID, "unauthorized to join this room")
}

func (s *Service) authorize(ctx context.Context, roomID, userID int, denied string) (models.ChatRoom, error) {
	room, err := s.roomForMember(ctx, roomID, userID, denied)
	if err != nil {
		return models.ChatRoom{}, err
	}
	if room.Status != models.RoomActive {
		return models.ChatRoom{}, apperr.Unauthorized("chat room is not active")
	}
	return room, nil
}

func (s *Service) roomForMember(ctx context.Context, roomID, userID int, denied string) (models.ChatRoom, error) {
	room, err := s.chats.GetRoom(ctx, roomID)
	if errors.Is(err, repositories.ErrRoomNotFound) {
		return models.ChatRoom{}, apperr.NotFound("chat room not found")
	}
	if err != nil {
		return models.ChatRoom{}, apperr.Persistence("failed to load chat room", err)
	}

	m, err := s.loadMatch(ctx, room.MatchID)
	if err != nil {
		return models.ChatRoom{}, err
	}
	ok, err := s.isParticipant(ctx, m, userID)
	if err != nil {
		return models.ChatRoom{}, err
	}
	if !ok {
		return models.ChatRoom{}, apperr.Unauthorized("%s", denied)
	}
	return room, nil
}

// JoinRoom authorizes userID and hands the latest history to subscribe while
// the room is held, so no message is both missed and broadcast around the join.
func (s *Service) JoinRoom(ctx context.Context, roomID, userID int, subscribe func(room models.ChatRoom, history []models.MessageView) error) error {
	unlock := s.roomLocks.Lock(roomID)
	defer unlock()

	room, err := s.AuthorizeRoom(ctx, roomID, userID)
	if err != nil {
		return err
	}
	history, err := s.history(ctx, roomID, s.historyLimit)
	if err != nil {
		return err
	}
	return subscribe(room, history)
}

// History returns the latest messages of a room to a member of its match.
// Archived rooms stay readable.
func (s *Service) History(ctx context.Context, roomID, userID, limit int) ([]models.MessageView, error) {
	if _, err := s.roomForMember(ctx, roomID, userID, "unauthorized to read this room"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.history(ctx, roomID, limit)
}

// RoomForMatch returns the room of a match to a member of either team.
func (s *Service) RoomForMatch(ctx context.Context, actorID, matchID int) (models.ChatRoom, error) {
	if _, err := s.GetMatch(ctx, actorID, matchID); err != nil {
		return models.ChatRoom{}, err
	}
	room, err := s.chats.GetRoomByMatch(ctx, matchID)
	if errors.Is(err, repositories.ErrRoomNotFound) {
		return models.ChatRoom{}, apperr.NotFound("chat room not found")
	}
	if err != nil {
		return models.ChatRoom{}, apperr.Persistence("failed to load chat room", err)
	}
	return room, nil
}

// PostMessage appends a user message and broadcasts it to the room. Nothing is
// broadcast unless the append committed.
func (s *Service) PostMessage(ctx context.Context, roomID, userID int, content string) (models.MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return models.MessageView{}, apperr.BadRequest("message content is empty")
	}

	unlock := s.roomLocks.Lock(roomID)
	defer unlock()

	if _, err := s.authorize(ctx, roomID, userID, "unauthorized to send message to this room"); err != nil {
		return models.MessageView{}, err
	}

	sender := userID
	msg, err := s.chats.AppendMessage(ctx, roomID, &sender, models.MessageUser, content)
	if err != nil {
		return models.MessageView{}, apperr.Persistence("failed to send message", err)
	}
	observability.IncChatMessage(string(msg.MessageType))

	view := msg.View(s.userName(ctx, userID))
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(roomID, view)
	}
	return view, nil
}

func (s *Service) history(ctx context.Context, roomID, limit int) ([]models.MessageView, error) {
	msgs, err := s.chats.History(ctx, roomID, limit)
	if err != nil {
		return nil, apperr.Persistence("failed to load chat history", err)
	}
	return s.views(ctx, msgs), nil
}

// views resolves sender names in one directory lookup.
func (s *Service) views(ctx context.Context, msgs []models.ChatMessage) []models.MessageView {
	seen := map[int]bool{}
	var ids []int
	for _, msg := range msgs {
		if msg.SenderID != nil && !seen[*msg.SenderID] {
			seen[*msg.SenderID] = true
			ids = append(ids, *msg.SenderID)
		}
	}

	names := map[int]string{}
	if len(ids) > 0 {
		resolved, err := s.members.UserNames(ctx, ids)
		if err != nil {
			log.Printf("matchmaking: sender name lookup failed: %v", err)
		} else {
			names = resolved
		}
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, msg := range msgs {
		name := s.systemName
		if msg.SenderID != nil {
			name = displayName(names, *msg.SenderID)
		}
		views = append(views, msg.View(name))
	}
	return views
}

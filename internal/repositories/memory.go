package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"matchroom-service/internal/models"
)

// MemoryStore keeps every repository in process memory. It backs DB_DRIVER=memory and tests.
type MemoryStore struct {
	mu  sync.Mutex
	now func() time.Time

	teams    map[int]models.Team
	users    map[int]models.User
	members  map[int]map[int]models.TeamRole
	bookings map[int]models.BookingSlot

	matches     map[int]models.Match
	rooms       map[int]models.ChatRoom
	roomByMatch map[int]int
	messages    map[int][]models.ChatMessage

	nextMatchID   int
	nextRoomID    int
	nextMessageID int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		teams:       make(map[int]models.Team),
		users:       make(map[int]models.User),
		members:     make(map[int]map[int]models.TeamRole),
		bookings:    make(map[int]models.BookingSlot),
		matches:     make(map[int]models.Match),
		rooms:       make(map[int]models.ChatRoom),
		roomByMatch: make(map[int]int),
		messages:    make(map[int][]models.ChatMessage),
	}
}

// SetClock overrides the time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) AddTeam(team models.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[team.ID] = team
}

func (s *MemoryStore) AddUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *MemoryStore) AddMember(member models.TeamMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[member.TeamID]; !ok {
		s.members[member.TeamID] = make(map[int]models.TeamRole)
	}
	s.members[member.TeamID][member.UserID] = member.Role
}

func (s *MemoryStore) AddBooking(slot models.BookingSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[slot.ID] = slot
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) IsMember(ctx context.Context, teamID int, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[teamID][userID]
	return ok, nil
}

func (s *MemoryStore) GetTeam(ctx context.Context, teamID int) (models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teams[teamID]
	if !ok {
		return models.Team{}, ErrTeamNotFound
	}
	return team, nil
}

func (s *MemoryStore) UserNames(ctx context.Context, userIDs []int) (map[int]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make(map[int]string, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			names[id] = u.FullName
		}
	}
	return names, nil
}

func (s *MemoryStore) GetBookingSlot(ctx context.Context, bookingID int) (models.BookingSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.bookings[bookingID]
	if !ok {
		return models.BookingSlot{}, ErrBookingNotFound
	}
	return slot, nil
}

func (s *MemoryStore) CreatePendingMatch(ctx context.Context, m models.Match) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.matches {
		samePair := (existing.TeamAID == m.TeamAID && existing.TeamBID == m.TeamBID) ||
			(existing.TeamAID == m.TeamBID && existing.TeamBID == m.TeamAID)
		if samePair && existing.Status.IsPending() {
			return models.Match{}, ErrPendingExists
		}
		if m.BookingID != nil && existing.BookingID != nil && *existing.BookingID == *m.BookingID {
			return models.Match{}, ErrBookingTaken
		}
	}

	s.nextMatchID++
	now := s.now()
	m.ID = s.nextMatchID
	m.CreatedAt = now
	m.UpdatedAt = now
	s.matches[m.ID] = m
	return m, nil
}

func (s *MemoryStore) GetMatch(ctx context.Context, matchID int) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return models.Match{}, ErrMatchNotFound
	}
	return m, nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, matchID int, from, to models.MatchStatus) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(matchID, from, to)
}

func (s *MemoryStore) transitionLocked(matchID int, from, to models.MatchStatus) (models.Match, error) {
	m, ok := s.matches[matchID]
	if !ok || m.Status != from {
		return models.Match{}, ErrStatusChanged
	}
	m.Status = to
	m.UpdatedAt = s.now()
	s.matches[matchID] = m
	return m, nil
}

func (s *MemoryStore) ConfirmMatch(ctx context.Context, matchID int, systemMessage string) (models.Match, models.ChatRoom, models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.transitionLocked(matchID, models.StatusPendingInitiatorConfirmation, models.StatusConfirmed)
	if err != nil {
		return models.Match{}, models.ChatRoom{}, models.ChatMessage{}, err
	}

	s.nextRoomID++
	now := s.now()
	room := models.ChatRoom{ID: s.nextRoomID, MatchID: matchID, Status: models.RoomActive, CreatedAt: now, UpdatedAt: now}
	s.rooms[room.ID] = room
	s.roomByMatch[matchID] = room.ID

	msg := s.appendLocked(room.ID, nil, models.MessageSystem, systemMessage)
	return m, room, msg, nil
}

func (s *MemoryStore) CancelMatch(ctx context.Context, matchID int, from models.MatchStatus, systemMessage string) (models.Match, *models.ChatRoom, *models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.transitionLocked(matchID, from, models.StatusCancelled)
	if err != nil {
		return models.Match{}, nil, nil, err
	}

	roomID, ok := s.roomByMatch[matchID]
	if !ok {
		return m, nil, nil, nil
	}
	room := s.rooms[roomID]
	room.Status = models.RoomArchived
	room.UpdatedAt = s.now()
	s.rooms[roomID] = room

	msg := s.appendLocked(roomID, nil, models.MessageSystem, systemMessage)
	return m, &room, &msg, nil
}

func (s *MemoryStore) ExpirePending(ctx context.Context, matchDateBefore, createdBefore time.Time) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.matches))
	for id := range s.matches {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var expired []models.Match
	for _, id := range ids {
		m := s.matches[id]
		if !m.Status.IsPending() {
			continue
		}
		stale := (m.MatchDate != nil && m.MatchDate.Before(matchDateBefore)) || m.CreatedAt.Before(createdBefore)
		if !stale {
			continue
		}
		m.Status = models.StatusExpired
		m.UpdatedAt = s.now()
		s.matches[id] = m
		expired = append(expired, m)
	}
	return expired, nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, roomID int) (models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, nil
}

func (s *MemoryStore) GetRoomByMatch(ctx context.Context, matchID int) (models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roomID, ok := s.roomByMatch[matchID]
	if !ok {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return s.rooms[roomID], nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, roomID int, senderID *int, messageType models.MessageType, content string) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return models.ChatMessage{}, ErrRoomNotFound
	}
	return s.appendLocked(roomID, senderID, messageType, content), nil
}

func (s *MemoryStore) appendLocked(roomID int, senderID *int, messageType models.MessageType, content string) models.ChatMessage {
	ts := s.now()
	if msgs := s.messages[roomID]; len(msgs) > 0 {
		if last := msgs[len(msgs)-1].Timestamp; ts.Before(last) {
			ts = last
		}
	}

	s.nextMessageID++
	msg := models.ChatMessage{
		ID:          s.nextMessageID,
		RoomID:      roomID,
		SenderID:    senderID,
		MessageType: messageType,
		Content:     content,
		Timestamp:   ts,
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg
}

func (s *MemoryStore) History(ctx context.Context, roomID int, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) SetRoomStatus(ctx context.Context, roomID int, status models.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Status = status
	room.UpdatedAt = s.now()
	s.rooms[roomID] = room
	return nil
}

var (
	_ MatchRepository      = (*MemoryStore)(nil)
	_ ChatRepository       = (*MemoryStore)(nil)
	_ MembershipRepository = (*MemoryStore)(nil)
	_ BookingRepository    = (*MemoryStore)(nil)
	_ MatchRepository      = (*MatchRepo)(nil)
	_ ChatRepository       = (*ChatRepo)(nil)
	_ MembershipRepository = (*MembershipRepo)(nil)
	_ BookingRepository    = (*BookingRepo)(nil)
)

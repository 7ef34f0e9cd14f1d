package matchmaking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"matchroom-service/internal/apperr"
	"matchroom-service/internal/mocks"
	"matchroom-service/internal/models"
	"matchroom-service/internal/repositories"
)

const (
	captainOne = 1
	memberTwo  = 2
	outsider   = 3

	teamOne   = 1
	teamTwo   = 2
	teamThree = 3
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []models.MessageView
}

func (b *recordingBroadcaster) BroadcastMessage(roomID int, msg models.MessageView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, msg)
}

func (b *recordingBroadcaster) messages() []models.MessageView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.MessageView(nil), b.sent...)
}

func seededStore() *repositories.MemoryStore {
	store := repositories.NewMemoryStore()
	store.AddTeam(models.Team{ID: teamOne, Name: "Falcons"})
	store.AddTeam(models.Team{ID: teamTwo, Name: "Rovers"})
	store.AddTeam(models.Team{ID: teamThree, Name: "Titans"})
	store.AddUser(models.User{ID: captainOne, FullName: "Uma Okafor"})
	store.AddUser(models.User{ID: memberTwo, FullName: "Ugo Tanaka"})
	store.AddUser(models.User{ID: outsider, FullName: "Uli Berg"})
	store.AddMember(models.TeamMember{TeamID: teamOne, UserID: captainOne, Role: models.RoleCaptain})
	store.AddMember(models.TeamMember{TeamID: teamTwo, UserID: memberTwo, Role: models.RoleMember})
	store.AddMember(models.TeamMember{TeamID: teamThree, UserID: outsider, Role: models.RoleCaptain})
	return store
}

func newTestService(store *repositories.MemoryStore, b Broadcaster) *Service {
	return NewService(store, store, store, store, Options{Broadcaster: b})
}

func challenge(t *testing.T, svc *Service) models.Match {
	t.Helper()
	m, err := svc.CreateChallenge(context.Background(), captainOne, models.ChallengeRequest{InitiatingTeamID: teamOne, InvitedTeamID: teamTwo})
	require.NoError(t, err)
	return m
}

func confirmedMatch(t *testing.T, svc *Service) (models.Match, models.ChatRoom) {
	t.Helper()
	ctx := context.Background()
	m := challenge(t, svc)
	_, err := svc.Accept(ctx, memberTwo, m.ID)
	require.NoError(t, err)
	m, room, err := svc.Confirm(ctx, captainOne, m.ID)
	require.NoError(t, err)
	return m, room
}

func TestCreateChallengeConflictsInEitherDirection(t *testing.T) {
	svc := newTestService(seededStore(), nil)
	ctx := context.Background()

	m := challenge(t, svc)
	assert.Equal(t, models.StatusPendingInviteeAcceptance, m.Status)
	assert.Equal(t, teamOne, m.TeamAID)
	assert.Equal(t, teamOne, m.InitiatingTeamID)

	_, err := svc.CreateChallenge(ctx, captainOne, models.ChallengeRequest{InitiatingTeamID: teamOne, InvitedTeamID: teamTwo})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.CreateChallenge(ctx, memberTwo, models.ChallengeRequest{InitiatingTeamID: teamTwo, InvitedTeamID: teamOne})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Accept(ctx, memberTwo, m.ID)
	require.NoError(t, err)
	_, err = svc.CreateChallenge(ctx, memberTwo, models.ChallengeRequest{InitiatingTeamID: teamTwo, InvitedTeamID: teamOne})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "still pending confirmation")

	_, err = svc.Cancel(ctx, captainOne, m.ID)
	require.NoError(t, err)
	_, err = svc.CreateChallenge(ctx, memberTwo, models.ChallengeRequest{InitiatingTeamID: teamTwo, InvitedTeamID: teamOne})
	assert.NoError(t, err, "cancelled matches do not block new challenges")
}

func TestCreateChallengeValidation(t *testing.T) {
	svc := newTestService(seededStore(), nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		actor int
		req   models.ChallengeRequest
		kind  apperr.Kind
	}{
		{"same team", captainOne, models.ChallengeRequest{InitiatingTeamID: teamOne, InvitedTeamID: teamOne}, apperr.KindBadRequest},
		{"missing team", captainOne, models.ChallengeRequest{InitiatingTeamID: teamOne}, apperr.KindBadRequest},
		{"unknown team", captainOne, models.ChallengeRequest{InitiatingTeamID: teamOne, InvitedTeamID: 99}, apperr.KindNotFound},
		{"not a member", outsider, models.ChallengeRequest{InitiatingTeamID: teamOne, InvitedTeamID: teamTwo}, apperr.KindUnauthorized},
	}
	for _, tc := range cases {
		_, err := svc.CreateChallenge(ctx, tc.actor, tc.req)
		assert.Equal(t, tc.kind, apperr.KindOf(err), tc.name)
	}
}

func TestCreateChallengeBindsBooking(t *testing.T) {
	store := seededStore()
	start := time.Date(2025, 7, 4, 18, 0, 0, 0, time.UTC)
	store.AddBooking(models.BookingSlot{ID: 5, Status: "confirmed", StartTime: start, FieldName: "Pitch 3", FieldAddress: "12 Harbor Rd"})
	store.AddBooking(models.BookingSlot{ID: 6, Status: models.BookingCancelled, StartTime: start})
	svc := newTestService(store, nil)
	ctx := context.Background()

	booking := 5
	m, err := svc.CreateChallenge(ctx, captainOne, models.ChallengeRequest{InitiatingTeamID: teamOne, InvitedTeamID: teamTwo, BookingID: &booking})
	require.NoError(t, err)
	require.NotNil(t, m.MatchDate)
	assert.True(t, start.Equal(*m.MatchDate))
	require.NotNil(t, m.Location)
	assert.Equal(t, "Pitch 3, 12 Harbor Rd", *m.Location)

	_, err = svc.CreateChallenge(ctx, captainOne, models.ChallengeRequest{InitiatingTeamID: teamOne, InvitedTeamID: teamThree, BookingID: &booking})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "booking already bound")

	cancelled := 6
	_, err = svc.CreateChallenge(ctx, captainOne, models.ChallengeRequest{InitiatingTeamID: teamOne, InvitedTeamID: teamThree, BookingID: &cancelled})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	missing := 404
	_, err = svc.CreateChallenge(ctx, captainOne, models.ChallengeRequest{InitiatingTeamID: teamOne, InvitedTeamID: teamThree, BookingID: &missing})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAcceptRequiresInvitedMemberAndPendingStatus(t *testing.T) {
	svc := newTestService(seededStore(), nil)
	ctx := context.Background()
	m := challenge(t, svc)

	_, err := svc.Accept(ctx, captainOne, m.ID)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.Accept(ctx, memberTwo, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	accepted, err := svc.Accept(ctx, memberTwo, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingInitiatorConfirmation, accepted.Status)

	_, err = svc.Accept(ctx, memberTwo, m.ID)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "cannot accept match in status: pending_initiator_confirmation", apperr.MessageOf(err))
}

func TestConfirmCreatesExactlyOneRoom(t *testing.T) {
	store := seededStore()
	b := &recordingBroadcaster{}
	svc := newTestService(store, b)
	ctx := context.Background()

	m := challenge(t, svc)
	_, _, err := svc.Confirm(ctx, captainOne, m.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "confirm before accept")

	_, err = svc.Accept(ctx, memberTwo, m.ID)
	require.NoError(t, err)

	_, _, err = svc.Confirm(ctx, memberTwo, m.ID)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "invitee cannot confirm")

	confirmed, room, err := svc.Confirm(ctx, captainOne, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.Equal(t, models.RoomActive, room.Status)
	assert.Equal(t, m.ID, room.MatchID)

	_, _, err = svc.Confirm(ctx, captainOne, m.ID)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Contains(t, apperr.MessageOf(err), "confirmed")

	byMatch, err := store.GetRoomByMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, byMatch.ID)

	history, err := svc.History(ctx, room.ID, captainOne, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.MessageSystem, history[0].MessageType)
	assert.Nil(t, history[0].SenderID)
	assert.Equal(t, "System", history[0].SenderName)
	assert.Equal(t, "Match between Falcons and Rovers has been confirmed.", history[0].Content)

	require.Len(t, b.messages(), 1)
}

func TestCancelFromConfirmedArchivesRoom(t *testing.T) {
	store := seededStore()
	b := &recordingBroadcaster{}
	svc := newTestService(store, b)
	ctx := context.Background()
	m, room := confirmedMatch(t, svc)

	_, err := svc.Cancel(ctx, outsider, m.ID)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	cancelled, err := svc.Cancel(ctx, memberTwo, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	archived, err := store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomArchived, archived.Status)

	history, err := svc.History(ctx, room.ID, captainOne, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Match was cancelled by Ugo Tanaka (Team B).", history[1].Content)
	assert.Equal(t, models.MessageSystem, history[1].MessageType)

	_, err = svc.PostMessage(ctx, room.ID, captainOne, "still on?")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.Cancel(ctx, captainOne, m.ID)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "cannot cancel match in status: cancelled", apperr.MessageOf(err))

	assert.Len(t, b.messages(), 2)
}

func TestCancelPendingHasNoRoom(t *testing.T) {
	store := seededStore()
	svc := newTestService(store, nil)
	ctx := context.Background()
	m := challenge(t, svc)

	cancelled, err := svc.Cancel(ctx, captainOne, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = store.GetRoomByMatch(ctx, m.ID)
	assert.ErrorIs(t, err, repositories.ErrRoomNotFound)
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	store := seededStore()
	// Two services over one store stand in for two replicas; only the store CAS separates them.
	replicas := []*Service{newTestService(store, nil), newTestService(store, nil)}
	m := challenge(t, replicas[0])

	const attempts = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		invalids int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(svc *Service) {
			defer wg.Done()
			_, err := svc.Accept(context.Background(), memberTwo, m.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperr.Is(err, apperr.KindInvalidState):
				invalids++
			}
		}(replicas[i%2])
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, invalids)
	assert.Zero(t, replicas[0].matchLocks.size())
}

func TestTransitionLostRaceReportsCurrentStatus(t *testing.T) {
	matches := new(mocks.MatchRepositoryMock)
	members := new(mocks.MembershipRepositoryMock)
	svc := NewService(matches, nil, members, nil, Options{})
	pending := models.Match{ID: 4, TeamAID: teamOne, TeamBID: teamTwo, InitiatingTeamID: teamOne, InvitedTeamID: teamTwo, Status: models.StatusPendingInviteeAcceptance}
	cancelled := pending
	cancelled.Status = models.StatusCancelled

	matches.On("GetMatch", mock.Anything, 4).Return(pending, nil).Once()
	members.On("IsMember", mock.Anything, teamTwo, memberTwo).Return(true, nil).Once()
	matches.On("TransitionStatus", mock.Anything, 4, models.StatusPendingInviteeAcceptance, models.StatusPendingInitiatorConfirmation).
		Return(nil, repositories.ErrStatusChanged).Once()
	matches.On("GetMatch", mock.Anything, 4).Return(cancelled, nil).Once()

	_, err := svc.Accept(context.Background(), memberTwo, 4)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "cannot accept match in status: cancelled", apperr.MessageOf(err))
	matches.AssertExpectations(t)
	members.AssertExpectations(t)
}

func TestConfirmStoreFailureIsPersistence(t *testing.T) {
	matches := new(mocks.MatchRepositoryMock)
	members := new(mocks.MembershipRepositoryMock)
	broadcaster := new(mocks.BroadcasterMock)
	svc := NewService(matches, nil, members, nil, Options{Broadcaster: broadcaster})
	accepted := models.Match{ID: 4, TeamAID: teamOne, TeamBID: teamTwo, InitiatingTeamID: teamOne, InvitedTeamID: teamTwo, Status: models.StatusPendingInitiatorConfirmation}

	matches.On("GetMatch", mock.Anything, 4).Return(accepted, nil).Once()
	members.On("IsMember", mock.Anything, teamOne, captainOne).Return(true, nil).Once()
	members.On("GetTeam", mock.Anything, teamOne).Return(models.Team{ID: teamOne, Name: "Falcons"}, nil).Once()
	members.On("GetTeam", mock.Anything, teamTwo).Return(models.Team{ID: teamTwo, Name: "Rovers"}, nil).Once()
	matches.On("ConfirmMatch", mock.Anything, 4, "Match between Falcons and Rovers has been confirmed.").
		Return(nil, nil, nil, assert.AnError).Once()

	_, _, err := svc.Confirm(context.Background(), captainOne, 4)
	assert.True(t, apperr.Is(err, apperr.KindPersistence))
	assert.ErrorIs(t, err, assert.AnError)
	broadcaster.AssertNotCalled(t, "BroadcastMessage", mock.Anything, mock.Anything)
	matches.AssertExpectations(t)
}

func TestPostMessageFailureIsNotBroadcast(t *testing.T) {
	store := seededStore()
	chats := new(mocks.ChatRepositoryMock)
	broadcaster := new(mocks.BroadcasterMock)
	svc := NewService(store, chats, store, store, Options{Broadcaster: broadcaster})
	ctx := context.Background()

	m, err := store.CreatePendingMatch(ctx, models.Match{TeamAID: teamOne, TeamBID: teamTwo, InitiatingTeamID: teamOne, InvitedTeamID: teamTwo, Status: models.StatusConfirmed})
	require.NoError(t, err)
	room := models.ChatRoom{ID: 9, MatchID: m.ID, Status: models.RoomActive}

	chats.On("GetRoom", mock.Anything, 9).Return(room, nil).Once()
	chats.On("AppendMessage", mock.Anything, 9, mock.Anything, models.MessageUser, "gl hf").Return(nil, assert.AnError).Once()

	_, err = svc.PostMessage(ctx, 9, captainOne, "gl hf")
	require.True(t, apperr.Is(err, apperr.KindPersistence))
	assert.Equal(t, "persistence_failure", string(apperr.KindOf(err)))
	broadcaster.AssertNotCalled(t, "BroadcastMessage", mock.Anything, mock.Anything)
	chats.AssertExpectations(t)
}

func TestRoomAuthorizationScenario(t *testing.T) {
	b := &recordingBroadcaster{}
	svc := newTestService(seededStore(), b)
	ctx := context.Background()
	_, room := confirmedMatch(t, svc)

	_, err := svc.AuthorizeRoom(ctx, room.ID, outsider)
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Equal(t, "unauthorized to join this room", apperr.MessageOf(err))

	_, err = svc.AuthorizeRoom(ctx, 404, captainOne)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.PostMessage(ctx, room.ID, outsider, "let me in")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.PostMessage(ctx, room.ID, captainOne, "   ")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	sent, err := svc.PostMessage(ctx, room.ID, captainOne, "gl hf")
	require.NoError(t, err)
	assert.Equal(t, "Uma Okafor", sent.SenderName)
	require.NotNil(t, sent.SenderID)
	assert.Equal(t, captainOne, *sent.SenderID)

	history, err := svc.History(ctx, room.ID, memberTwo, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.MessageSystem, history[0].MessageType)
	assert.Equal(t, "gl hf", history[1].Content)
	assert.False(t, history[1].Timestamp.Before(history[0].Timestamp))

	broadcast := b.messages()
	require.Len(t, broadcast, 2)
	assert.Equal(t, sent, broadcast[1])
}

func TestJoinRoomDeliversCappedHistory(t *testing.T) {
	store := seededStore()
	svc := NewService(store, store, store, store, Options{HistoryLimit: 3})
	ctx := context.Background()
	_, room := confirmedMatch(t, svc)
	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := svc.PostMessage(ctx, room.ID, memberTwo, content)
		require.NoError(t, err)
	}

	var got []models.MessageView
	err := svc.JoinRoom(ctx, room.ID, captainOne, func(joined models.ChatRoom, history []models.MessageView) error {
		assert.Equal(t, room.ID, joined.ID)
		got = history
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"two", "three", "four"}, []string{got[0].Content, got[1].Content, got[2].Content})
	assert.Equal(t, "Ugo Tanaka", got[0].SenderName)

	err = svc.JoinRoom(ctx, room.ID, outsider, func(models.ChatRoom, []models.MessageView) error {
		t.Fatal("outsider must not be subscribed")
		return nil
	})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestNegotiationNotifiesCounterpart(t *testing.T) {
	store := seededStore()
	notifier := new(mocks.NotifierMock)
	svc := NewService(store, store, store, store, Options{Notifier: notifier})
	ctx := context.Background()

	byKindAndTeam := func(kind string, team int) interface{} {
		return mock.MatchedBy(func(n models.Notification) bool { return n.Kind == kind && n.RecipientTeamID == team })
	}
	notifier.On("Notify", mock.Anything, byKindAndTeam(models.NotifyChallenged, teamTwo)).Once()
	notifier.On("Notify", mock.Anything, byKindAndTeam(models.NotifyAccepted, teamOne)).Once()
	notifier.On("Notify", mock.Anything, byKindAndTeam(models.NotifyConfirmed, teamOne)).Once()
	notifier.On("Notify", mock.Anything, byKindAndTeam(models.NotifyConfirmed, teamTwo)).Once()
	notifier.On("Notify", mock.Anything, byKindAndTeam(models.NotifyCancelled, teamTwo)).Once()

	m, _ := confirmedMatch(t, svc)
	_, err := svc.Cancel(ctx, captainOne, m.ID)
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestExpireStale(t *testing.T) {
	store := seededStore()
	notifier := new(mocks.NotifierMock)
	svc := NewService(store, store, store, store, Options{Notifier: notifier, ChallengeTTL: time.Hour})
	ctx := context.Background()
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

	store.SetClock(func() time.Time { return now.Add(-2 * time.Hour) })
	notifier.On("Notify", mock.Anything, mock.Anything).Return()
	stale := challenge(t, svc)

	store.SetClock(func() time.Time { return now })
	count, err := svc.ExpireStale(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expired, err := store.GetMatch(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, expired.Status)

	_, err = svc.Accept(ctx, memberTwo, stale.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	_, err = svc.Cancel(ctx, captainOne, stale.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "expired is terminal")

	notifier.AssertNumberOfCalls(t, "Notify", 3)
}

func TestReadOnlyRoomRejectsSendsButKeepsHistory(t *testing.T) {
	store := seededStore()
	svc := newTestService(store, nil)
	ctx := context.Background()
	_, room := confirmedMatch(t, svc)

	require.NoError(t, store.SetRoomStatus(ctx, room.ID, models.RoomReadOnly))

	_, err := svc.PostMessage(ctx, room.ID, captainOne, "still there?")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Equal(t, "chat room is not active", apperr.MessageOf(err))

	history, err := svc.History(ctx, room.ID, memberTwo, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// Package matchmaking owns the match negotiation state machine and the chat
// rooms it provisions. A single Service is shared by the HTTP API and the
// realtime gateway so that per-match and per-room exclusion live in one place.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"matchroom-service/internal/apperr"
	"matchroom-service/internal/models"
	"matchroom-service/internal/observability"
	"matchroom-service/internal/repositories"
	"matchroom-service/internal/telemetry"
)

// Broadcaster fans a committed message out to every connection joined to its room.
type Broadcaster interface {
	BroadcastMessage(roomID int, msg models.MessageView)
}

// Notifier delivers negotiation outcomes to teams. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// Options configures a Service.
type Options struct {
	SystemSenderName string
	HistoryLimit     int
	ChallengeTTL     time.Duration
	Broadcaster      Broadcaster
	Notifier         Notifier
	Audit            *telemetry.AuditEmitter
}

// Service implements challenge, accept, confirm and cancel plus room access.
type Service struct {
	matches  repositories.MatchRepository
	chats    repositories.ChatRepository
	members  repositories.MembershipRepository
	bookings repositories.BookingRepository

	broadcaster  Broadcaster
	notifier     Notifier
	audit        *telemetry.AuditEmitter
	systemName   string
	historyLimit int
	challengeTTL time.Duration

	matchLocks keyedMutex
	roomLocks  keyedMutex
}

func NewService(
	matches repositories.MatchRepository,
	chats repositories.ChatRepository,
	members repositories.MembershipRepository,
	bookings repositories.BookingRepository,
	opts Options,
) *Service {
	if opts.SystemSenderName == "" {
		opts.SystemSenderName = "System"
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.ChallengeTTL <= 0 {
		opts.ChallengeTTL = 72 * time.Hour
	}
	return &Service{
		matches:      matches,
		chats:        chats,
		members:      members,
		bookings:     bookings,
		broadcaster:  opts.Broadcaster,
		notifier:     opts.Notifier,
		audit:        opts.Audit,
		systemName:   opts.SystemSenderName,
		historyLimit: opts.HistoryLimit,
		challengeTTL: opts.ChallengeTTL,
	}
}

// HistoryLimit is the number of messages delivered on join.
func (s *Service) HistoryLimit() int {
	return s.historyLimit
}

// CreateChallenge proposes a match from req.InitiatingTeamID to req.InvitedTeamID.
func (s *Service) CreateChallenge(ctx context.Context, actorID int, req models.ChallengeRequest) (m models.Match, err error) {
	defer func() { s.observe(ctx, "challenge", m.ID, actorID, err) }()

	if req.InitiatingTeamID <= 0 || req.InvitedTeamID <= 0 {
		return models.Match{}, apperr.BadRequest("missing initiating_team_id or invited_team_id")
	}
	if req.InitiatingTeamID == req.InvitedTeamID {
		return models.Match{}, apperr.BadRequest("cannot challenge the same team")
	}

	for _, teamID := range []int{req.InitiatingTeamID, req.InvitedTeamID} {
		if _, err := s.members.GetTeam(ctx, teamID); err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return models.Match{}, apperr.NotFound("one or both teams not found")
			}
			return models.Match{}, apperr.Persistence("failed to load teams", err)
		}
	}

	if err := s.requireMember(ctx, req.InitiatingTeamID, actorID, "user is not a member of the initiating team"); err != nil {
		return models.Match{}, err
	}

	candidate := models.Match{
		TeamAID:          req.InitiatingTeamID,
		TeamBID:          req.InvitedTeamID,
		InitiatingTeamID: req.InitiatingTeamID,
		InvitedTeamID:    req.InvitedTeamID,
		Status:           models.StatusPendingInviteeAcceptance,
		BookingID:        req.BookingID,
		MatchDate:        req.MatchDate,
		Location:         req.Location,
	}
	if req.BookingID != nil {
		if err := s.bindBooking(ctx, &candidate); err != nil {
			return models.Match{}, err
		}
	}

	created, err := s.matches.CreatePendingMatch(ctx, candidate)
	switch {
	case errors.Is(err, repositories.ErrPendingExists):
		return models.Match{}, apperr.Conflict("a pending match/challenge already exists between these teams")
	case errors.Is(err, repositories.ErrBookingTaken):
		return models.Match{}, apperr.Conflict("booking is already bound to another match")
	case err != nil:
		return models.Match{}, apperr.Persistence("failed to create challenge", err)
	}

	s.notify(ctx, models.Notification{
		Kind:            models.NotifyChallenged,
		MatchID:         created.ID,
		RecipientTeamID: created.InvitedTeamID,
		ActorID:         actorID,
		Status:          created.Status,
		Message:         "Your team has been challenged to a match.",
	})
	return created, nil
}

// bindBooking validates the booking and fills date and location from its slot when omitted.
func (s *Service) bindBooking(ctx context.Context, m *models.Match) error {
	slot, err := s.bookings.GetBookingSlot(ctx, *m.BookingID)
	if errors.Is(err, repositories.ErrBookingNotFound) {
		return apperr.NotFound("booking not found")
	}
	if err != nil {
		return apperr.Persistence("failed to load booking", err)
	}
	if slot.Status == models.BookingCancelled {
		return apperr.BadRequest("booking %d is cancelled", slot.ID)
	}

	if m.MatchDate == nil && !slot.StartTime.IsZero() {
		start := slot.StartTime
		m.MatchDate = &start
	}
	if m.Location == nil {
		location := strings.TrimSpace(slot.FieldName)
		if addr := strings.TrimSpace(slot.FieldAddress); addr != "" {
			location = strings.TrimPrefix(location+", "+addr, ", ")
		}
		if location != "" {
			m.Location = &location
		}
	}
	return nil
}

// Accept moves a challenge to pending_initiator_confirmation on behalf of the invited team.
func (s *Service) Accept(ctx context.Context, actorID, matchID int) (m models.Match, err error) {
	defer func() { s.observe(ctx, "accept", matchID, actorID, err) }()

	unlock := s.matchLocks.Lock(matchID)
	defer unlock()

	current, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	if err := s.requireMember(ctx, current.InvitedTeamID, actorID, "user is not a member of the invited team"); err != nil {
		return models.Match{}, err
	}
	if current.Status != models.StatusPendingInviteeAcceptance {
		return models.Match{}, apperr.InvalidState("accept", string(current.Status))
	}

	updated, err := s.matches.TransitionStatus(ctx, matchID, models.StatusPendingInviteeAcceptance, models.StatusPendingInitiatorConfirmation)
	if err != nil {
		return models.Match{}, s.transitionFailed(ctx, "accept", matchID, err)
	}

	s.notify(ctx, models.Notification{
		Kind:            models.NotifyAccepted,
		MatchID:         matchID,
		RecipientTeamID: updated.InitiatingTeamID,
		ActorID:         actorID,
		Status:          updated.Status,
		Message:         "Your challenge was accepted and awaits your confirmation.",
	})
	return updated, nil
}

// Confirm finalizes an accepted match, creating its chat room and the confirmation message atomically.
func (s *Service) Confirm(ctx context.Context, actorID, matchID int) (m models.Match, room models.ChatRoom, err error) {
	defer func() { s.observe(ctx, "confirm", matchID, actorID, err) }()

	unlock := s.matchLocks.Lock(matchID)
	defer unlock()

	current, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, models.ChatRoom{}, err
	}
	if err := s.requireMember(ctx, current.InitiatingTeamID, actorID, "user is not a member of the initiating team"); err != nil {
		return models.Match{}, models.ChatRoom{}, err
	}
	if current.Status != models.StatusPendingInitiatorConfirmation {
		return models.Match{}, models.ChatRoom{}, apperr.InvalidState("confirm", string(current.Status))
	}

	teamA, teamB := s.teamName(ctx, current.TeamAID), s.teamName(ctx, current.TeamBID)
	text := fmt.Sprintf("Match between %s and %s has been confirmed.", teamA, teamB)

	updated, room, msg, err := s.matches.ConfirmMatch(ctx, matchID, text)
	if err != nil {
		return models.Match{}, models.ChatRoom{}, s.transitionFailed(ctx, "confirm", matchID, err)
	}

	s.broadcastSystem(room.ID, msg)
	for _, teamID := range []int{updated.TeamAID, updated.TeamBID} {
		s.notify(ctx, models.Notification{
			Kind:            models.NotifyConfirmed,
			MatchID:         matchID,
			RecipientTeamID: teamID,
			ActorID:         actorID,
			Status:          updated.Status,
			RoomID:          room.ID,
			Message:         text,
		})
	}
	return updated, room, nil
}

// Cancel cancels a pending or confirmed match and archives its room.
func (s *Service) Cancel(ctx context.Context, actorID, matchID int) (m models.Match, err error) {
	defer func() { s.observe(ctx, "cancel", matchID, actorID, err) }()

	unlock := s.matchLocks.Lock(matchID)
	defer unlock()

	current, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	inA, err := s.isMember(ctx, current.TeamAID, actorID)
	if err != nil {
		return models.Match{}, err
	}
	inB := false
	if !inA {
		if inB, err = s.isMember(ctx, current.TeamBID, actorID); err != nil {
			return models.Match{}, err
		}
	}
	if !inA && !inB {
		return models.Match{}, apperr.Unauthorized("user is not part of either team involved in the match")
	}
	if !current.Status.IsCancellable() {
		return models.Match{}, apperr.InvalidState("cancel", string(current.Status))
	}

	// The cancellation notice is ordered with user sends in the same room.
	if room, err := s.chats.GetRoomByMatch(ctx, matchID); err == nil {
		unlockRoom := s.roomLocks.Lock(room.ID)
		defer unlockRoom()
	} else if !errors.Is(err, repositories.ErrRoomNotFound) {
		return models.Match{}, apperr.Persistence("failed to load chat room", err)
	}

	side, ownTeam := "A", current.TeamAID
	if !inA {
		side, ownTeam = "B", current.TeamBID
	}
	text := fmt.Sprintf("Match was cancelled by %s (Team %s).", s.userName(ctx, actorID), side)

	updated, room, msg, err := s.matches.CancelMatch(ctx, matchID, current.Status, text)
	if err != nil {
		return models.Match{}, s.transitionFailed(ctx, "cancel", matchID, err)
	}

	n := models.Notification{
		Kind:            models.NotifyCancelled,
		MatchID:         matchID,
		RecipientTeamID: current.CounterpartOf(ownTeam),
		ActorID:         actorID,
		Status:          updated.Status,
		Message:         text,
	}
	if room != nil && msg != nil {
		s.broadcastSystem(room.ID, *msg)
		n.RoomID = room.ID
	}
	s.notify(ctx, n)
	return updated, nil
}

// GetMatch returns a match to a member of either team.
func (s *Service) GetMatch(ctx context.Context, actorID, matchID int) (models.Match, error) {
	m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	ok, err := s.isParticipant(ctx, m, actorID)
	if err != nil {
		return models.Match{}, err
	}
	if !ok {
		return models.Match{}, apperr.Unauthorized("user is not part of either team involved in the match")
	}
	return m, nil
}

// ExpireStale moves pending matches whose proposed date has passed, or that
// outlived the challenge TTL, to expired.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.matches.ExpirePending(ctx, now, now.Add(-s.challengeTTL))
	if err != nil {
		observability.IncMatchTransition("expire", string(apperr.KindPersistence))
		return 0, apperr.Persistence("failed to expire pending matches", err)
	}

	for _, m := range expired {
		observability.IncMatchTransition("expire", "ok")
		s.audit.Negotiation(ctx, "expire", m.ID, 0, nil)
		for _, teamID := range []int{m.TeamAID, m.TeamBID} {
			s.notify(ctx, models.Notification{
				Kind:            models.NotifyExpired,
				MatchID:         m.ID,
				RecipientTeamID: teamID,
				Status:          m.Status,
				Message:         "The match challenge expired before it was confirmed.",
			})
		}
	}
	return len(expired), nil
}

func (s *Service) loadMatch(ctx context.Context, matchID int) (models.Match, error) {
	m, err := s.matches.GetMatch(ctx, matchID)
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return models.Match{}, apperr.NotFound("match not found")
	}
	if err != nil {
		return models.Match{}, apperr.Persistence("failed to load match", err)
	}
	return m, nil
}

func (s *Service) isMember(ctx context.Context, teamID, userID int) (bool, error) {
	ok, err := s.members.IsMember(ctx, teamID, userID)
	if err != nil {
		return false, apperr.Persistence("failed to check team membership", err)
	}
	return ok, nil
}

func (s *Service) requireMember(ctx context.Context, teamID, userID int, message string) error {
	ok, err := s.isMember(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Unauthorized("%s", message)
	}
	return nil
}

// isParticipant reports whether userID belongs to team A or team B of m.
func (s *Service) isParticipant(ctx context.Context, m models.Match, userID int) (bool, error) {
	for _, teamID := range []int{m.TeamAID, m.TeamBID} {
		ok, err := s.isMember(ctx, teamID, userID)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// transitionFailed turns a store failure into InvalidState when another transition won the race.
func (s *Service) transitionFailed(ctx context.Context, action string, matchID int, err error) error {
	if !errors.Is(err, repositories.ErrStatusChanged) {
		return apperr.Persistence("failed to "+action+" match", err)
	}
	current, loadErr := s.matches.GetMatch(ctx, matchID)
	if loadErr != nil {
		return apperr.Persistence("failed to load match", loadErr)
	}
	return apperr.InvalidState(action, string(current.Status))
}

func (s *Service) teamName(ctx context.Context, teamID int) string {
	team, err := s.members.GetTeam(ctx, teamID)
	if err != nil || team.Name == "" {
		return "Team " + strconv.Itoa(teamID)
	}
	return team.Name
}

func (s *Service) userName(ctx context.Context, userID int) string {
	names, err := s.members.UserNames(ctx, []int{userID})
	if err != nil {
		log.Printf("matchmaking: user name lookup failed user_id=%d: %v", userID, err)
	}
	return displayName(names, userID)
}

func displayName(names map[int]string, userID int) string {
	if name := names[userID]; name != "" {
		return name
	}
	return "User " + strconv.Itoa(userID)
}

func (s *Service) broadcastSystem(roomID int, msg models.ChatMessage) {
	observability.IncChatMessage(string(msg.MessageType))
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(roomID, msg.View(s.systemName))
	}
}

func (s *Service) notify(ctx context.Context, n models.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}

func (s *Service) observe(ctx context.Context, action string, matchID, actorID int, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
		log.Printf("matchmaking: %s rejected match_id=%d actor_id=%d: %v", action, matchID, actorID, err)
	}
	observability.IncMatchTransition(action, result)
	s.audit.Negotiation(ctx, action, matchID, actorID, err)
}

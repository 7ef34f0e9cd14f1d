package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"matchroom-service/internal/models"
)

const matchColumns = `id, booking_id, team_a_id, team_b_id, initiating_team_id, invited_team_id, status,
        match_date, location, score_team_a, score_team_b, fair_play_rating_team_a, fair_play_rating_team_b,
        notes, created_at, updated_at`

const roomColumns = `id, match_id, status, created_at, updated_at`

const messageColumns = `id, room_id, sender_id, message_type, content, timestamp`

// MatchRepo is a sqlx implementation of MatchRepository.
type MatchRepo struct {
	db *sqlx.DB
}

// NewMatchRepo constructs a MatchRepo.
func NewMatchRepo(db *sqlx.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// CreatePendingMatch serializes creation per team pair with a transaction-scoped advisory lock.
func (r *MatchRepo) CreatePendingMatch(ctx context.Context, m models.Match) (models.Match, error) {
	low, high := m.TeamAID, m.TeamBID
	if low > high {
		low, high = high, low
	}

	var created models.Match
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, low, high); err != nil {
			return err
		}

		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM matches
            WHERE ((team_a_id=$1 AND team_b_id=$2) OR (team_a_id=$2 AND team_b_id=$1))
            AND status LIKE 'pending_%')`, m.TeamAID, m.TeamBID); err != nil {
			return err
		}
		if exists {
			return ErrPendingExists
		}

		err := tx.GetContext(ctx, &created, `INSERT INTO matches
            (booking_id, team_a_id, team_b_id, initiating_team_id, invited_team_id, status, match_date, location)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            RETURNING `+matchColumns,
			m.BookingID, m.TeamAID, m.TeamBID, m.InitiatingTeamID, m.InvitedTeamID, m.Status, m.MatchDate, m.Location)
		if pqCode(err) == pqUniqueViolation {
			return ErrBookingTaken
		}
		return err
	})
	if err != nil {
		return models.Match{}, err
	}
	return created, nil
}

// GetMatch fetches a match by id.
func (r *MatchRepo) GetMatch(ctx context.Context, matchID int) (models.Match, error) {
	var m models.Match
	err := r.db.GetContext(ctx, &m, `SELECT `+matchColumns+` FROM matches WHERE id=$1`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Match{}, ErrMatchNotFound
	}
	return m, err
}

// TransitionStatus performs a compare-and-swap on the match status.
func (r *MatchRepo) TransitionStatus(ctx context.Context, matchID int, from, to models.MatchStatus) (models.Match, error) {
	var m models.Match
	err := r.db.GetContext(ctx, &m, transitionQuery, matchID, from, to)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Match{}, ErrStatusChanged
	}
	return m, err
}

const transitionQuery = `UPDATE matches SET status=$3, updated_at=NOW()
        WHERE id=$1 AND status=$2
        RETURNING ` + matchColumns

// ConfirmMatch commits the status change, the room and the system message together.
func (r *MatchRepo) ConfirmMatch(ctx context.Context, matchID int, systemMessage string) (models.Match, models.ChatRoom, models.ChatMessage, error) {
	var (
		m    models.Match
		room models.ChatRoom
		msg  models.ChatMessage
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &m, transitionQuery, matchID, models.StatusPendingInitiatorConfirmation, models.StatusConfirmed)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStatusChanged
		}
		if err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &room, `INSERT INTO chat_rooms (match_id, status) VALUES ($1, $2) RETURNING `+roomColumns,
			matchID, models.RoomActive); err != nil {
			return err
		}

		msg, err = appendMessage(ctx, tx, room.ID, nil, models.MessageSystem, systemMessage)
		return err
	})
	if err != nil {
		return models.Match{}, models.ChatRoom{}, models.ChatMessage{}, err
	}
	return m, room, msg, nil
}

// CancelMatch cancels the match and archives its room if one exists.
func (r *MatchRepo) CancelMatch(ctx context.Context, matchID int, from models.MatchStatus, systemMessage string) (models.Match, *models.ChatRoom, *models.ChatMessage, error) {
	var (
		m    models.Match
		room *models.ChatRoom
		msg  *models.ChatMessage
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &m, transitionQuery, matchID, from, models.StatusCancelled)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStatusChanged
		}
		if err != nil {
			return err
		}

		var archived models.ChatRoom
		err = tx.GetContext(ctx, &archived, `UPDATE chat_rooms SET status=$2, updated_at=NOW()
            WHERE match_id=$1 RETURNING `+roomColumns, matchID, models.RoomArchived)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		room = &archived

		notice, err := appendMessage(ctx, tx, archived.ID, nil, models.MessageSystem, systemMessage)
		if err != nil {
			return err
		}
		msg = &notice
		return nil
	})
	if err != nil {
		return models.Match{}, nil, nil, err
	}
	return m, room, msg, nil
}

// ExpirePending moves stale pending matches to expired.
func (r *MatchRepo) ExpirePending(ctx context.Context, matchDateBefore, createdBefore time.Time) ([]models.Match, error) {
	var expired []models.Match
	err := r.db.SelectContext(ctx, &expired, `UPDATE matches SET status=$1, updated_at=NOW()
        WHERE status IN ($2, $3)
        AND ((match_date IS NOT NULL AND match_date < $4) OR created_at < $5)
        RETURNING `+matchColumns,
		models.StatusExpired, models.StatusPendingInviteeAcceptance, models.StatusPendingInitiatorConfirmation,
		matchDateBefore, createdBefore)
	return expired, err
}

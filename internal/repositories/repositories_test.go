package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchroom-service/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestGetMatchNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMatchRepo(db)

	mock.ExpectQuery(`SELECT .* FROM matches WHERE id=\$1`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))

	_, err := repo.GetMatch(context.Background(), 9)
	assert.ErrorIs(t, err, ErrMatchNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatusLostRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMatchRepo(db)

	mock.ExpectQuery(`UPDATE matches SET status=\$3`).
		WithArgs(4, models.StatusPendingInviteeAcceptance, models.StatusPendingInitiatorConfirmation).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))

	_, err := repo.TransitionStatus(context.Background(), 4, models.StatusPendingInviteeAcceptance, models.StatusPendingInitiatorConfirmation)
	assert.ErrorIs(t, err, ErrStatusChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingMatchRejectsExistingPair(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMatchRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1, \$2\)`).
		WithArgs(3, 8).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM matches`).
		WithArgs(8, 3).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.CreatePendingMatch(context.Background(), models.Match{
		TeamAID: 8, TeamBID: 3, InitiatingTeamID: 8, InvitedTeamID: 3,
		Status: models.StatusPendingInviteeAcceptance,
	})
	assert.ErrorIs(t, err, ErrPendingExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingMatchBookingTaken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMatchRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO matches`).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	booking := 11
	_, err := repo.CreatePendingMatch(context.Background(), models.Match{
		TeamAID: 1, TeamBID: 2, InitiatingTeamID: 1, InvitedTeamID: 2,
		BookingID: &booking, Status: models.StatusPendingInviteeAcceptance,
	})
	assert.ErrorIs(t, err, ErrBookingTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingMatchInserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMatchRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO matches`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "team_a_id", "team_b_id", "status", "created_at"}).
			AddRow(21, 1, 2, "pending_invitee_acceptance", now))
	mock.ExpectCommit()

	m, err := repo.CreatePendingMatch(context.Background(), models.Match{
		TeamAID: 1, TeamBID: 2, InitiatingTeamID: 1, InvitedTeamID: 2,
		Status: models.StatusPendingInviteeAcceptance,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, m.ID)
	assert.Equal(t, models.StatusPendingInviteeAcceptance, m.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmMatchCommitsRoomAndMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMatchRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE matches SET status=\$3`).
		WithArgs(5, models.StatusPendingInitiatorConfirmation, models.StatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(5, "confirmed"))
	mock.ExpectQuery(`INSERT INTO chat_rooms`).
		WithArgs(5, models.RoomActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "match_id", "status", "created_at", "updated_at"}).
			AddRow(2, 5, "active", now, now))
	mock.ExpectQuery(`INSERT INTO chat_messages`).
		WithArgs(2, sqlmock.AnyArg(), models.MessageSystem, "confirmed!").
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "sender_id", "message_type", "content", "timestamp"}).
			AddRow(1, 2, nil, "system", "confirmed!", now))
	mock.ExpectCommit()

	m, room, msg, err := repo.ConfirmMatch(context.Background(), 5, "confirmed!")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, m.Status)
	assert.Equal(t, 2, room.ID)
	assert.Nil(t, msg.SenderID)
	assert.Equal(t, models.MessageSystem, msg.MessageType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmMatchRollsBackOnRoomFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMatchRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE matches SET status=\$3`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(5, "confirmed"))
	mock.ExpectQuery(`INSERT INTO chat_rooms`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, _, _, err := repo.ConfirmMatch(context.Background(), 5, "confirmed!")
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelMatchWithoutRoom(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMatchRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE matches SET status=\$3`).
		WithArgs(6, models.StatusPendingInviteeAcceptance, models.StatusCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(6, "cancelled"))
	mock.ExpectQuery(`UPDATE chat_rooms SET status=\$2`).
		WithArgs(6, models.RoomArchived).
		WillReturnRows(sqlmock.NewRows([]string{"id", "match_id", "status"}))
	mock.ExpectCommit()

	m, room, msg, err := repo.CancelMatch(context.Background(), 6, models.StatusPendingInviteeAcceptance, "bye")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, m.Status)
	assert.Nil(t, room)
	assert.Nil(t, msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelMatchArchivesRoom(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMatchRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE matches SET status=\$3`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(6, "cancelled"))
	mock.ExpectQuery(`UPDATE chat_rooms SET status=\$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "match_id", "status"}).AddRow(3, 6, "archived"))
	mock.ExpectQuery(`INSERT INTO chat_messages`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "message_type", "content", "timestamp"}).
			AddRow(9, 3, "system", "bye", now))
	mock.ExpectCommit()

	_, room, msg, err := repo.CancelMatch(context.Background(), 6, models.StatusConfirmed, "bye")
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, models.RoomArchived, room.Status)
	require.NotNil(t, msg)
	assert.Equal(t, "bye", msg.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendMessageUnknownRoom(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)

	mock.ExpectQuery(`INSERT INTO chat_messages`).WillReturnError(&pq.Error{Code: "23503"})

	sender := 4
	_, err := repo.AppendMessage(context.Background(), 77, &sender, models.MessageUser, "hi")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryReturnsAscending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	t0 := time.Now()

	mock.ExpectQuery(`ORDER BY timestamp DESC, id DESC LIMIT \$2`).
		WithArgs(3, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "sender_id", "message_type", "content", "timestamp"}).
			AddRow(1, 3, nil, "system", "a", t0).
			AddRow(2, 3, 4, "user", "b", t0.Add(time.Second)))

	msgs, err := repo.History(context.Background(), 3, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Content)
	require.NotNil(t, msgs[1].SenderID)
	assert.Equal(t, 4, *msgs[1].SenderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserNamesRebindsIn(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMembershipRepo(db)

	mock.ExpectQuery(`SELECT id, full_name FROM users WHERE id IN \(\$1, \$2\)`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name"}).AddRow(1, "Ana Diaz"))

	names, err := repo.UserNames(context.Background(), []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "Ana Diaz"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingSlotNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepo(db)

	mock.ExpectQuery(`FROM bookings b INNER JOIN fields f`).
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetBookingSlot(context.Background(), 12)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRoomStatusMissingRoom(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)

	mock.ExpectExec(`UPDATE chat_rooms SET status=\$2`).
		WithArgs(8, models.RoomReadOnly).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetRoomStatus(context.Background(), 8, models.RoomReadOnly)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

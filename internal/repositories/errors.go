package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrRoomNotFound    = errors.New("chat room not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrBookingNotFound = errors.New("booking not found")
	// ErrStatusChanged is returned when a conditional status update matched no row.
	ErrStatusChanged = errors.New("match status changed concurrently")
	ErrPendingExists = errors.New("pending match already exists between teams")
	ErrBookingTaken  = errors.New("booking already bound to a match")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

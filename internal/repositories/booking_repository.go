package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"matchroom-service/internal/models"
)

// BookingRepo reads bookings and their fields.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo constructs a BookingRepo.
func NewBookingRepo(db *sqlx.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// GetBookingSlot fetches a booking joined with its field.
func (r *BookingRepo) GetBookingSlot(ctx context.Context, bookingID int) (models.BookingSlot, error) {
	var slot models.BookingSlot
	err := r.db.GetContext(ctx, &slot, `SELECT b.id, b.status, b.start_time, f.name AS field_name, f.address AS field_address
        FROM bookings b INNER JOIN fields f ON f.id = b.field_id
        WHERE b.id=$1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BookingSlot{}, ErrBookingNotFound
	}
	return slot, err
}

package models

import "time"

// TeamRole is a member's role inside a team.
type TeamRole string

const (
	RoleMember  TeamRole = "member"
	RoleCaptain TeamRole = "captain"
)

// Team is the directory view of a team.
type Team struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TeamMember links a user to a team.
type TeamMember struct {
	TeamID int      `db:"team_id" json:"team_id"`
	UserID int      `db:"user_id" json:"user_id"`
	Role   TeamRole `db:"role" json:"role"`
}

// User is the directory view of a user.
type User struct {
	ID       int    `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
}

// BookingSlot is a reserved field slot a match may be bound to.
type BookingSlot struct {
	ID           int       `db:"id" json:"id"`
	Status       string    `db:"status" json:"status"`
	StartTime    time.Time `db:"start_time" json:"start_time"`
	FieldName    string    `db:"field_name" json:"field_name"`
	FieldAddress string    `db:"field_address" json:"field_address"`
}

// BookingCancelled is the booking status that forbids binding.
const BookingCancelled = "cancelled"

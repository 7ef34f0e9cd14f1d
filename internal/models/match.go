package models

import "time"

// MatchStatus is the negotiation state of a match.
type MatchStatus string

const (
	StatusPendingInviteeAcceptance     MatchStatus = "pending_invitee_acceptance"
	StatusPendingInitiatorConfirmation MatchStatus = "pending_initiator_confirmation"
	StatusConfirmed                    MatchStatus = "confirmed"
	StatusCompleted                    MatchStatus = "completed"
	StatusCancelled                    MatchStatus = "cancelled"
	StatusExpired                      MatchStatus = "expired"
)

// IsPending reports whether the match is still being negotiated.
func (s MatchStatus) IsPending() bool {
	return s == StatusPendingInviteeAcceptance || s == StatusPendingInitiatorConfirmation
}

// IsCancellable reports whether cancel may be applied from s.
func (s MatchStatus) IsCancellable() bool {
	return s.IsPending() || s == StatusConfirmed
}

// Match is a proposed or confirmed game between two teams.
// TeamAID is always the initiating team.
type Match struct {
	ID                  int         `db:"id" json:"id"`
	BookingID           *int        `db:"booking_id" json:"booking_id"`
	TeamAID             int         `db:"team_a_id" json:"team_a_id"`
	TeamBID             int         `db:"team_b_id" json:"team_b_id"`
	InitiatingTeamID    int         `db:"initiating_team_id" json:"initiating_team_id"`
	InvitedTeamID       int         `db:"invited_team_id" json:"invited_team_id"`
	Status              MatchStatus `db:"status" json:"status"`
	MatchDate           *time.Time  `db:"match_date" json:"match_date"`
	Location            *string     `db:"location" json:"location"`
	ScoreTeamA          *int        `db:"score_team_a" json:"score_team_a"`
	ScoreTeamB          *int        `db:"score_team_b" json:"score_team_b"`
	FairPlayRatingTeamA *int        `db:"fair_play_rating_team_a" json:"fair_play_rating_team_a"`
	FairPlayRatingTeamB *int        `db:"fair_play_rating_team_b" json:"fair_play_rating_team_b"`
	Notes               *string     `db:"notes" json:"notes"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// CounterpartOf returns the other participating team.
func (m Match) CounterpartOf(teamID int) int {
	if m.TeamAID == teamID {
		return m.TeamBID
	}
	return m.TeamAID
}

// ChallengeRequest carries the inputs of a new challenge.
type ChallengeRequest struct {
	InitiatingTeamID int
	InvitedTeamID    int
	BookingID        *int
	MatchDate        *time.Time
	Location         *string
}

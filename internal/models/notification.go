package models

// Notification kinds, used as routing keys.
const (
	NotifyChallenged = "match.challenged"
	NotifyAccepted   = "match.accepted"
	NotifyConfirmed  = "match.confirmed"
	NotifyCancelled  = "match.cancelled"
	NotifyExpired    = "match.expired"
)

// Notification tells a team about a negotiation outcome.
type Notification struct {
	Kind            string      `json:"kind"`
	MatchID         int         `json:"match_id"`
	RecipientTeamID int         `json:"recipient_team_id"`
	ActorID         int         `json:"actor_id,omitempty"`
	Status          MatchStatus `json:"status"`
	RoomID          int         `json:"room_id,omitempty"`
	Message         string      `json:"message"`
}

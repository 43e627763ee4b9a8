package models

import "time"

// TeamInvite is a pending invitation for a user to join a team. At most one
// exists per (user, team) pair. The team snapshot is populated on reads so
// the invite list can render without extra lookups.
type TeamInvite struct {
	UserID      int       `json:"user_id" db:"user_id"`
	TeamID      int       `json:"team_id" db:"team_id"`
	RequestedAt time.Time `json:"requested_at" db:"requested_at"`

	Team *Team `json:"team,omitempty" db:"-"`
}

package models

import "time"

type Team struct {
	ID              int        `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Description     string     `json:"description" db:"description"`
	OwnerID         int        `json:"owner_id" db:"owner_id"`
	State           string     `json:"state" db:"state"`
	City            string     `json:"city" db:"city"`
	Latitude        float64    `json:"latitude" db:"latitude"`
	Longitude       float64    `json:"longitude" db:"longitude"`
	PreferredSports []string   `json:"preferred_sports" db:"preferred_sports"`
	Experience      string     `json:"experience" db:"experience"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty" db:"updated_at"`

	Members      []TeamMember  `json:"members,omitempty" db:"-"`
	JoinRequests []JoinRequest `json:"join_requests,omitempty" db:"-"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}

type TeamMember struct {
	TeamID  int       `json:"team_id" db:"team_id"`
	UserID  int       `json:"user_id" db:"user_id"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}

// JoinRequest is a pending request from a user to join a team. At most one
// exists per (team, user) pair; the composite primary key enforces that.
type JoinRequest struct {
	TeamID      int       `json:"team_id" db:"team_id"`
	UserID      int       `json:"user_id" db:"user_id"`
	RequestedAt time.Time `json:"requested_at" db:"requested_at"`
}

// MaxTeamMembers caps the member list, the owner included.
const MaxTeamMembers = 50

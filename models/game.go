package models

import "time"

// GameTeam is a participant team reference with the name and score
// denormalized at create/update time. The identity is immutable after
// creation; the snapshot follows the team on update.
type GameTeam struct {
	ID    int    `json:"id" db:"-"`
	Name  string `json:"name" db:"-"`
	Score *int   `json:"score,omitempty" db:"-"`
}

type Game struct {
	ID        int        `json:"id" db:"id"`
	Team1     GameTeam   `json:"team1" db:"-"`
	Team2     GameTeam   `json:"team2" db:"-"`
	Sport     string     `json:"sport" db:"sport"`
	State     string     `json:"state" db:"state"`
	City      string     `json:"city" db:"city"`
	Latitude  float64    `json:"latitude" db:"latitude"`
	Longitude float64    `json:"longitude" db:"longitude"`
	Date      time.Time  `json:"date" db:"date"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`

	// CanEditOrDelete is set on listings only: true when the caller owns at
	// least one participant team, the same rule the update/delete paths
	// enforce.
	CanEditOrDelete *bool `json:"can_edit_or_delete,omitempty" db:"-"`
}

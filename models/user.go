package models

import "time"

type User struct {
	ID                 int        `json:"id" db:"id"`
	Username           string     `json:"username" db:"username"`
	FirstName          string     `json:"first_name" db:"first_name"`
	LastName           string     `json:"last_name" db:"last_name"`
	Email              string     `json:"email" db:"email"`
	PhoneNumber        string     `json:"phone_number" db:"phone_number"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	Birthday           time.Time  `json:"birthday" db:"birthday"`
	State              string     `json:"state" db:"state"`
	City               string     `json:"city" db:"city"`
	Latitude           float64    `json:"latitude" db:"latitude"`
	Longitude          float64    `json:"longitude" db:"longitude"`
	AdvancedSports     []string   `json:"advanced_sports" db:"advanced_sports"`
	IntermediateSports []string   `json:"intermediate_sports" db:"intermediate_sports"`
	BeginnerSports     []string   `json:"beginner_sports" db:"beginner_sports"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty" db:"updated_at"`

	AvatarKey *string `json:"-" db:"avatar_key"`
	AvatarURL *string `json:"avatar_url,omitempty" db:"-"`
}

// Credentials is the login request payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is the minimal payload returned on login and embedded in the
// session token.
type Session struct {
	UserID   int    `json:"id"`
	Username string `json:"username"`
}

package models

import "time"

type NotificationType string

const (
	NotificationTeamInvite    NotificationType = "team_invite"
	NotificationJoinRequest   NotificationType = "join_request"
	NotificationMemberAdded   NotificationType = "member_added"
	NotificationMemberRemoved NotificationType = "member_removed"
)

// Notification is an outbox row. It is inserted in the same transaction as
// the mutation that caused it and delivered asynchronously; DeliveredAt stays
// NULL until the dispatcher has pushed it. The uuid ID lets consumers drop
// duplicates under at-least-once delivery.
type Notification struct {
	ID          string           `json:"id" db:"id"`
	UserID      int              `json:"user_id" db:"user_id"`
	Type        NotificationType `json:"type" db:"type"`
	TeamID      int              `json:"team_id" db:"team_id"`
	FromUserID  int              `json:"from" db:"from_user_id"`
	Message     string           `json:"message" db:"message"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	DeliveredAt *time.Time       `json:"-" db:"delivered_at"`
}

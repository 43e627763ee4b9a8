package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sportsfinder/sports-finder/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository is the outbox. Create runs on the caller's executor
// so the row commits (or rolls back) together with the mutation that caused
// it; the dispatcher drains undelivered rows afterwards.
type NotificationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, n *models.Notification) error
	ListUndelivered(ctx context.Context, limit int) ([]models.Notification, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
}

type postgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, exec SQLExecutor, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, team_id, from_user_id, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	return exec.QueryRowContext(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.TeamID,
		n.FromUserID,
		n.Message,
	).Scan(&n.CreatedAt)
}

func (r *postgresNotificationRepository) ListUndelivered(ctx context.Context, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, type, team_id, from_user_id, message, created_at, delivered_at
		FROM notifications
		WHERE delivered_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.TeamID,
			&n.FromUserID,
			&n.Message,
			&n.CreatedAt,
			&n.DeliveredAt,
		)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *postgresNotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET delivered_at = $1 WHERE id = $2 AND delivered_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrNotificationNotFound)
}

package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/sportsfinder/sports-finder/models"
)

var (
	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteExists   = errors.New("invite already sent")
)

type InviteRepository interface {
	Create(ctx context.Context, exec SQLExecutor, invite *models.TeamInvite) error
	Exists(ctx context.Context, userID, teamID int) (bool, error)
	ListByUser(ctx context.Context, userID int) ([]models.TeamInvite, error)
	Delete(ctx context.Context, exec SQLExecutor, userID, teamID int) error
	DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error
	DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error
}

type postgresInviteRepository struct {
	db *sql.DB
}

func NewPostgresInviteRepository(db *sql.DB) InviteRepository {
	return &postgresInviteRepository{db: db}
}

func (r *postgresInviteRepository) Create(ctx context.Context, exec SQLExecutor, invite *models.TeamInvite) error {
	query := `
		INSERT INTO team_invites (user_id, team_id)
		VALUES ($1, $2)
		RETURNING requested_at`

	err := exec.QueryRowContext(ctx, query, invite.UserID, invite.TeamID).Scan(&invite.RequestedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch {
			case pqErr.Code == "23505" && pqErr.Constraint == "team_invites_pkey":
				return ErrInviteExists
			case pqErr.Code == "23503" && pqErr.Constraint == "team_invites_team_id_fkey":
				return ErrTeamNotFound
			case pqErr.Code == "23503" && pqErr.Constraint == "team_invites_user_id_fkey":
				return ErrUserNotFound
			}
		}
		return err
	}
	return nil
}

func (r *postgresInviteRepository) Exists(ctx context.Context, userID, teamID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_invites WHERE user_id = $1 AND team_id = $2)`,
		userID, teamID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListByUser returns the pending invites of a user with the referenced team
// joined in, so the invite list can render team details directly.
func (r *postgresInviteRepository) ListByUser(ctx context.Context, userID int) ([]models.TeamInvite, error) {
	query := `
		SELECT
			i.user_id, i.team_id, i.requested_at,
			t.id, t.name, t.description, t.owner_id, t.state, t.city,
			t.latitude, t.longitude, t.preferred_sports, t.experience,
			t.logo_key, t.created_at, t.updated_at
		FROM team_invites i
		JOIN teams t ON t.id = i.team_id
		WHERE i.user_id = $1
		ORDER BY i.requested_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invites := make([]models.TeamInvite, 0)
	for rows.Next() {
		var invite models.TeamInvite
		var team models.Team
		err := rows.Scan(
			&invite.UserID,
			&invite.TeamID,
			&invite.RequestedAt,
			&team.ID,
			&team.Name,
			&team.Description,
			&team.OwnerID,
			&team.State,
			&team.City,
			&team.Latitude,
			&team.Longitude,
			pq.Array(&team.PreferredSports),
			&team.Experience,
			&team.LogoKey,
			&team.CreatedAt,
			&team.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		invite.Team = &team
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *postgresInviteRepository) Delete(ctx context.Context, exec SQLExecutor, userID, teamID int) error {
	result, err := exec.ExecContext(ctx,
		`DELETE FROM team_invites WHERE user_id = $1 AND team_id = $2`, userID, teamID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrInviteNotFound)
}

func (r *postgresInviteRepository) DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error {
	_, err := exec.ExecContext(ctx, `DELETE FROM team_invites WHERE team_id = $1`, teamID)
	return err
}

func (r *postgresInviteRepository) DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error {
	_, err := exec.ExecContext(ctx, `DELETE FROM team_invites WHERE user_id = $1`, userID)
	return err
}

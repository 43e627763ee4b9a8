package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sportsfinder/sports-finder/models"
)

var (
	ErrTeamNotFound        = errors.New("team not found")
	ErrTeamOwnerConflict   = errors.New("owner already has a team")
	ErrTeamUserInvalid     = errors.New("team references an unknown user")
	ErrTeamMemberExists    = errors.New("user is already a member of the team")
	ErrTeamMemberNotFound  = errors.New("user is not a member of the team")
	ErrTeamFull            = errors.New("team already has the maximum number of members")
	ErrJoinRequestExists   = errors.New("join request already sent")
	ErrJoinRequestNotFound = errors.New("join request not found")
)

// TeamFilter combines the optional criteria of a filtered team listing,
// ANDed together. Zero values mean "not filtered on".
type TeamFilter struct {
	Name       string
	Sport      string
	Experience string
}

type TeamRepository interface {
	// Create inserts the team and its owner membership row; callers run it
	// inside a transaction so the two stay atomic.
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetByOwner(ctx context.Context, ownerID int) (*models.Team, error)
	List(ctx context.Context) ([]models.Team, error)
	ListByFilters(ctx context.Context, filter TeamFilter) ([]models.Team, error)
	ListByMember(ctx context.Context, userID int) ([]models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateLogoKey(ctx context.Context, id int, key *string) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error

	IsMember(ctx context.Context, teamID, userID int) (bool, error)
	AddMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error
	RemoveMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error
	RemoveMemberFromAll(ctx context.Context, exec SQLExecutor, userID int) error

	CreateJoinRequest(ctx context.Context, exec SQLExecutor, teamID, userID int) error
	DeleteJoinRequest(ctx context.Context, exec SQLExecutor, teamID, userID int) error
	DeleteJoinRequestsByUser(ctx context.Context, exec SQLExecutor, userID int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `
	id, name, description, owner_id, state, city, latitude, longitude,
	preferred_sports, experience, logo_key, created_at, updated_at`

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	query := `
		INSERT INTO teams (
			name, description, owner_id, state, city, latitude, longitude,
			preferred_sports, experience
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		team.Name,
		team.Description,
		team.OwnerID,
		team.State,
		team.City,
		team.Latitude,
		team.Longitude,
		pq.Array(team.PreferredSports),
		team.Experience,
	).Scan(&team.ID, &team.CreatedAt)
	if err != nil {
		return mapTeamConstraintError(err)
	}

	// The owner is implicitly the first member.
	_, err = exec.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`,
		team.ID, team.OwnerID)
	if err != nil {
		return mapTeamConstraintError(err)
	}
	team.Members = []models.TeamMember{{TeamID: team.ID, UserID: team.OwnerID, AddedAt: team.CreatedAt}}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT` + teamColumns + ` FROM teams WHERE id = $1`
	team, err := scanTeamRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.populateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

func (r *postgresTeamRepository) GetByOwner(ctx context.Context, ownerID int) (*models.Team, error) {
	query := `SELECT` + teamColumns + ` FROM teams WHERE owner_id = $1`
	team, err := scanTeamRow(r.db.QueryRowContext(ctx, query, ownerID))
	if err != nil {
		return nil, err
	}
	if err := r.populateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

func (r *postgresTeamRepository) List(ctx context.Context) ([]models.Team, error) {
	query := `SELECT` + teamColumns + ` FROM teams ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTeams(rows)
}

func (r *postgresTeamRepository) ListByFilters(ctx context.Context, filter TeamFilter) ([]models.Team, error) {
	conditions := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Experience != "" {
		conditions = append(conditions, "experience = "+arg(filter.Experience))
	}
	if filter.Sport != "" {
		conditions = append(conditions, arg(filter.Sport)+" = ANY(preferred_sports)")
	}
	if filter.Name != "" {
		conditions = append(conditions, "name ILIKE '%' || "+arg(filter.Name)+" || '%'")
	}

	query := `SELECT` + teamColumns + ` FROM teams`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTeams(rows)
}

func (r *postgresTeamRepository) ListByMember(ctx context.Context, userID int) ([]models.Team, error) {
	query := `
		SELECT` + teamColumns + `
		FROM teams
		WHERE id IN (SELECT team_id FROM team_members WHERE user_id = $1)
		ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTeams(rows)
}

func (r *postgresTeamRepository) Update(ctx context.Context, team *models.Team) error {
	query := `
		UPDATE teams SET
			name = $1,
			description = $2,
			state = $3,
			city = $4,
			latitude = $5,
			longitude = $6,
			preferred_sports = $7,
			experience = $8,
			updated_at = now()
		WHERE id = $9`

	result, err := r.db.ExecContext(ctx, query,
		team.Name,
		team.Description,
		team.State,
		team.City,
		team.Latitude,
		team.Longitude,
		pq.Array(team.PreferredSports),
		team.Experience,
		team.ID,
	)
	if err != nil {
		return mapTeamConstraintError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, id int, key *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET logo_key = $1 WHERE id = $2`, key, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) IsMember(ctx context.Context, teamID, userID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)`,
		teamID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// AddMember inserts conditionally so the member cap holds even under
// concurrent adds; zero affected rows means the team was already full.
func (r *postgresTeamRepository) AddMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	query := `
		INSERT INTO team_members (team_id, user_id)
		SELECT $1, $2
		WHERE (SELECT count(*) FROM team_members WHERE team_id = $1) < $3`

	result, err := exec.ExecContext(ctx, query, teamID, userID, models.MaxTeamMembers)
	if err != nil {
		return mapTeamConstraintError(err)
	}
	return checkAffectedRows(result, ErrTeamFull)
}

func (r *postgresTeamRepository) RemoveMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	result, err := exec.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamMemberNotFound)
}

func (r *postgresTeamRepository) RemoveMemberFromAll(ctx context.Context, exec SQLExecutor, userID int) error {
	_, err := exec.ExecContext(ctx, `DELETE FROM team_members WHERE user_id = $1`, userID)
	return err
}

func (r *postgresTeamRepository) CreateJoinRequest(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	_, err := exec.ExecContext(ctx,
		`INSERT INTO join_requests (team_id, user_id) VALUES ($1, $2)`, teamID, userID)
	if err != nil {
		return mapTeamConstraintError(err)
	}
	return nil
}

func (r *postgresTeamRepository) DeleteJoinRequest(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	result, err := exec.ExecContext(ctx,
		`DELETE FROM join_requests WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrJoinRequestNotFound)
}

func (r *postgresTeamRepository) DeleteJoinRequestsByUser(ctx context.Context, exec SQLExecutor, userID int) error {
	_, err := exec.ExecContext(ctx, `DELETE FROM join_requests WHERE user_id = $1`, userID)
	return err
}

func (r *postgresTeamRepository) populateTeam(ctx context.Context, team *models.Team) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT team_id, user_id, added_at FROM team_members WHERE team_id = $1 ORDER BY added_at ASC`,
		team.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	team.Members = make([]models.TeamMember, 0)
	for rows.Next() {
		var m models.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.AddedAt); err != nil {
			return err
		}
		team.Members = append(team.Members, m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	reqRows, err := r.db.QueryContext(ctx,
		`SELECT team_id, user_id, requested_at FROM join_requests WHERE team_id = $1 ORDER BY requested_at ASC`,
		team.ID)
	if err != nil {
		return err
	}
	defer reqRows.Close()

	team.JoinRequests = make([]models.JoinRequest, 0)
	for reqRows.Next() {
		var jr models.JoinRequest
		if err := reqRows.Scan(&jr.TeamID, &jr.UserID, &jr.RequestedAt); err != nil {
			return err
		}
		team.JoinRequests = append(team.JoinRequests, jr)
	}
	return reqRows.Err()
}

func mapTeamConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			switch pqErr.Constraint {
			case "teams_owner_id_key":
				return ErrTeamOwnerConflict
			case "team_members_pkey":
				return ErrTeamMemberExists
			case "join_requests_pkey":
				return ErrJoinRequestExists
			}
		case "23503": // foreign_key_violation
			switch pqErr.Constraint {
			case "teams_owner_id_fkey", "team_members_user_id_fkey", "join_requests_user_id_fkey":
				return ErrTeamUserInvalid
			case "team_members_team_id_fkey", "join_requests_team_id_fkey":
				return ErrTeamNotFound
			}
		}
	}
	return err
}

func scanTeamRow(row *sql.Row) (*models.Team, error) {
	var team models.Team
	err := row.Scan(
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}
	return &team, nil
}

func collectTeams(rows *sql.Rows) ([]models.Team, error) {
	teams := make([]models.Team, 0)
	for rows.Next() {
		var team models.Team
		err := rows.Scan(
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
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}

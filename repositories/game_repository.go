package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sportsfinder/sports-finder/models"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameTeamInvalid = errors.New("game references an unknown team")
)

type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, id int) (*models.Game, error)
	List(ctx context.Context) ([]models.Game, error)
	ListByTeam(ctx context.Context, teamID int) ([]models.Game, error)
	ListUpcomingByTeam(ctx context.Context, teamID int, after time.Time) ([]models.Game, error)
	Update(ctx context.Context, game *models.Game) error
	Delete(ctx context.Context, id int) error
	DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error
}

type postgresGameRepository struct {
	db *sql.DB
}

func NewPostgresGameRepository(db *sql.DB) GameRepository {
	return &postgresGameRepository{db: db}
}

const gameColumns = `
	id, team1_id, team1_name, team1_score, team2_id, team2_name, team2_score,
	sport, state, city, latitude, longitude, date, created_at, updated_at`

func (r *postgresGameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (
			team1_id, team1_name, team1_score, team2_id, team2_name, team2_score,
			sport, state, city, latitude, longitude, date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		game.Team1.ID,
		game.Team1.Name,
		game.Team1.Score,
		game.Team2.ID,
		game.Team2.Name,
		game.Team2.Score,
		game.Sport,
		game.State,
		game.City,
		game.Latitude,
		game.Longitude,
		game.Date,
	).Scan(&game.ID, &game.CreatedAt)
	if err != nil {
		return mapGameConstraintError(err)
	}
	return nil
}

func (r *postgresGameRepository) GetByID(ctx context.Context, id int) (*models.Game, error) {
	query := `SELECT` + gameColumns + ` FROM games WHERE id = $1`
	return scanGameRow(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresGameRepository) List(ctx context.Context) ([]models.Game, error) {
	query := `SELECT` + gameColumns + ` FROM games ORDER BY date ASC`
	return r.queryGames(ctx, query)
}

func (r *postgresGameRepository) ListByTeam(ctx context.Context, teamID int) ([]models.Game, error) {
	query := `SELECT` + gameColumns + ` FROM games WHERE team1_id = $1 OR team2_id = $1 ORDER BY date ASC`
	return r.queryGames(ctx, query, teamID)
}

func (r *postgresGameRepository) ListUpcomingByTeam(ctx context.Context, teamID int, after time.Time) ([]models.Game, error) {
	query := `
		SELECT` + gameColumns + `
		FROM games
		WHERE (team1_id = $1 OR team2_id = $1) AND date >= $2
		ORDER BY date ASC`
	return r.queryGames(ctx, query, teamID, after)
}

// Update rewrites everything except the participant team identities, which
// are immutable after creation; the name/score snapshots do follow the teams.
func (r *postgresGameRepository) Update(ctx context.Context, game *models.Game) error {
	query := `
		UPDATE games SET
			team1_name = $1,
			team1_score = $2,
			team2_name = $3,
			team2_score = $4,
			sport = $5,
			state = $6,
			city = $7,
			latitude = $8,
			longitude = $9,
			date = $10,
			updated_at = now()
		WHERE id = $11`

	result, err := r.db.ExecContext(ctx, query,
		game.Team1.Name,
		game.Team1.Score,
		game.Team2.Name,
		game.Team2.Score,
		game.Sport,
		game.State,
		game.City,
		game.Latitude,
		game.Longitude,
		game.Date,
		game.ID,
	)
	if err != nil {
		return mapGameConstraintError(err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

// DeleteByTeam removes every game a team participates in; it runs on the
// caller's executor so a team deletion stays atomic.
func (r *postgresGameRepository) DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error {
	_, err := exec.ExecContext(ctx, `DELETE FROM games WHERE team1_id = $1 OR team2_id = $1`, teamID)
	return err
}

func (r *postgresGameRepository) queryGames(ctx context.Context, query string, args ...interface{}) ([]models.Game, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := make([]models.Game, 0)
	for rows.Next() {
		var game models.Game
		err := rows.Scan(
			&game.ID,
			&game.Team1.ID,
			&game.Team1.Name,
			&game.Team1.Score,
			&game.Team2.ID,
			&game.Team2.Name,
			&game.Team2.Score,
			&game.Sport,
			&game.State,
			&game.City,
			&game.Latitude,
			&game.Longitude,
			&game.Date,
			&game.CreatedAt,
			&game.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return games, nil
}

func mapGameConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		switch pqErr.Constraint {
		case "games_team1_id_fkey", "games_team2_id_fkey":
			return ErrGameTeamInvalid
		}
	}
	return err
}

func scanGameRow(row *sql.Row) (*models.Game, error) {
	var game models.Game
	err := row.Scan(
		&game.ID,
		&game.Team1.ID,
		&game.Team1.Name,
		&game.Team1.Score,
		&game.Team2.ID,
		&game.Team2.Name,
		&game.Team2.Score,
		&game.Sport,
		&game.State,
		&game.City,
		&game.Latitude,
		&game.Longitude,
		&game.Date,
		&game.CreatedAt,
		&game.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	return &game, nil
}

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
	ErrUserNotFound         = errors.New("user not found")
	ErrUserUsernameConflict = errors.New("username already in use")
	ErrUserEmailConflict    = errors.New("email already in use")
	ErrUserPhoneConflict    = errors.New("phone number already in use")
)

// UserFilter combines the optional search criteria of a filtered user
// listing. Zero values mean "not filtered on". Latitude/Longitude are the
// caller's own coordinates and only matter when RadiusMiles > 0.
type UserFilter struct {
	Name        string
	Sport       string
	SkillBucket string
	RadiusMiles float64
	Latitude    float64
	Longitude   float64
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	ListByFilters(ctx context.Context, filter UserFilter) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateAvatarKey(ctx context.Context, id int, key *string) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `
	id, username, first_name, last_name, email, phone_number, password_hash,
	birthday, state, city, latitude, longitude,
	advanced_sports, intermediate_sports, beginner_sports,
	avatar_key, created_at, updated_at`

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			username, first_name, last_name, email, phone_number, password_hash,
			birthday, state, city, latitude, longitude,
			advanced_sports, intermediate_sports, beginner_sports
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		user.Birthday,
		user.State,
		user.City,
		user.Latitude,
		user.Longitude,
		pq.Array(user.AdvancedSports),
		pq.Array(user.IntermediateSports),
		pq.Array(user.BeginnerSports),
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return mapUserConstraintError(err)
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.QueryRowContext(ctx, query, id))
}

// GetByUsername looks the user up case-insensitively; the unique index on
// lower(username) guarantees at most one match.
func (r *postgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE lower(username) = lower($1)`
	return scanUserRow(r.db.QueryRowContext(ctx, query, username))
}

func (r *postgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	query := `SELECT` + userColumns + ` FROM users ORDER BY username ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *postgresUserRepository) ListByFilters(ctx context.Context, filter UserFilter) ([]models.User, error) {
	conditions := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	bucketColumn := map[string]string{
		"advanced":     "advanced_sports",
		"intermediate": "intermediate_sports",
		"beginner":     "beginner_sports",
	}

	sportMatch := func(column, placeholder string) string {
		return fmt.Sprintf(
			`EXISTS (SELECT 1 FROM unnest(%s) AS s WHERE s ILIKE '%%' || %s || '%%')`,
			column, placeholder)
	}
	hasAny := func(column string) string {
		return fmt.Sprintf("cardinality(%s) > 0", column)
	}

	if column, scoped := bucketColumn[filter.SkillBucket]; scoped {
		if filter.Sport != "" {
			conditions = append(conditions, sportMatch(column, arg(filter.Sport)))
		} else {
			conditions = append(conditions, hasAny(column))
		}
	} else {
		// "any" bucket: match across all three, but only require a sport at
		// all when no specific sport narrows the search.
		if filter.Sport != "" {
			p := arg(filter.Sport)
			conditions = append(conditions, "("+
				sportMatch("advanced_sports", p)+" OR "+
				sportMatch("intermediate_sports", p)+" OR "+
				sportMatch("beginner_sports", p)+")")
		} else {
			conditions = append(conditions, "("+
				hasAny("advanced_sports")+" OR "+
				hasAny("intermediate_sports")+" OR "+
				hasAny("beginner_sports")+")")
		}
	}

	if filter.Name != "" {
		p := arg(filter.Name)
		conditions = append(conditions, fmt.Sprintf(
			`(username ILIKE '%%' || %[1]s || '%%' OR first_name ILIKE '%%' || %[1]s || '%%' OR last_name ILIKE '%%' || %[1]s || '%%')`, p))
	}

	if filter.RadiusMiles > 0 {
		// Haversine distance in miles against the caller's own location.
		lat := arg(filter.Latitude)
		lon := arg(filter.Longitude)
		radius := arg(filter.RadiusMiles)
		conditions = append(conditions, fmt.Sprintf(`
			2 * 3958.8 * asin(sqrt(
				pow(sin(radians(latitude - %[1]s) / 2), 2) +
				cos(radians(%[1]s)) * cos(radians(latitude)) *
				pow(sin(radians(longitude - %[2]s) / 2), 2)
			)) <= %[3]s`, lat, lon, radius))
	}

	query := `SELECT` + userColumns + ` FROM users`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY username ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *postgresUserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			username = $1,
			first_name = $2,
			last_name = $3,
			email = $4,
			phone_number = $5,
			birthday = $6,
			state = $7,
			city = $8,
			latitude = $9,
			longitude = $10,
			advanced_sports = $11,
			intermediate_sports = $12,
			beginner_sports = $13,
			updated_at = now()
		WHERE id = $14`

	result, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PhoneNumber,
		user.Birthday,
		user.State,
		user.City,
		user.Latitude,
		user.Longitude,
		pq.Array(user.AdvancedSports),
		pq.Array(user.IntermediateSports),
		pq.Array(user.BeginnerSports),
		user.ID,
	)
	if err != nil {
		return mapUserConstraintError(err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) UpdateAvatarKey(ctx context.Context, id int, key *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET avatar_key = $1 WHERE id = $2`, key, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func mapUserConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_username_lower_idx":
			return ErrUserUsernameConflict
		case "users_email_lower_idx":
			return ErrUserEmailConflict
		case "users_phone_number_key":
			return ErrUserPhoneConflict
		}
	}
	return err
}

func scanUserRow(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PhoneNumber,
		&user.PasswordHash,
		&user.Birthday,
		&user.State,
		&user.City,
		&user.Latitude,
		&user.Longitude,
		pq.Array(&user.AdvancedSports),
		pq.Array(&user.IntermediateSports),
		pq.Array(&user.BeginnerSports),
		&user.AvatarKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.FirstName,
			&user.LastName,
			&user.Email,
			&user.PhoneNumber,
			&user.PasswordHash,
			&user.Birthday,
			&user.State,
			&user.City,
			&user.Latitude,
			&user.Longitude,
			pq.Array(&user.AdvancedSports),
			pq.Array(&user.IntermediateSports),
			pq.Array(&user.BeginnerSports),
			&user.AvatarKey,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

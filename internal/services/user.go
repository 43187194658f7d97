package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/vericheck-api/internal/database"
	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, password_hash, auth_provider, google_id, first_name, last_name, role, is_active, last_login, created_at, updated_at`

// listColumns omits password_hash so listings never carry credential material.
const listColumns = `id, username, email, auth_provider, google_id, first_name, last_name, role, is_active, last_login, created_at, updated_at`

// NewUser is a row ready to insert. PasswordHash is already hashed, nil for Google-only accounts.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash *string
	AuthProvider models.AuthProvider
	GoogleID     *string
	FirstName    string
	LastName     string
	Role         models.Role
	IsActive     bool
}

// ProfileChanges holds a partial profile update. Nil fields are left as stored.
type ProfileChanges struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
}

type UserService struct {
	db *database.DB
}

func NewUserService(db *database.DB) *UserService {
	return &UserService{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var provider, role string
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &provider, &user.GoogleID,
		&user.FirstName, &user.LastName, &role, &user.IsActive, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.AuthProvider = models.AuthProvider(provider)
	user.Role = models.Role(role)
	return &user, nil
}

// translateWriteError maps unique index violations onto the duplicate sentinels.
func translateWriteError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	constraint, ok := database.IsUniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case "users_email_key":
		return ErrEmailTaken
	case "users_username_key":
		return ErrUsernameTaken
	default:
		return ErrDuplicateUser
	}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = $1
	`, id))
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE email = $1
	`, email))
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE username = $1
	`, username))
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+listColumns+`
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		var provider, role string
		if err := rows.Scan(
			&u.ID, &u.Username, &u.Email, &provider, &u.GoogleID,
			&u.FirstName, &u.LastName, &role, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		u.AuthProvider = models.AuthProvider(provider)
		u.Role = models.Role(role)
		users = append(users, u)
	}

	return users, rows.Err()
}

func (s *UserService) Create(ctx context.Context, nu NewUser) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, auth_provider, google_id, first_name, last_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+userColumns,
		nu.Username, nu.Email, nu.PasswordHash, string(nu.AuthProvider), nu.GoogleID,
		nu.FirstName, nu.LastName, string(nu.Role), nu.IsActive,
	))
	if err != nil {
		return nil, translateWriteError(err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, ch ProfileChanges) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		UPDATE users SET
			username = COALESCE($1, username),
			email = COALESCE($2, email),
			first_name = COALESCE($3, first_name),
			last_name = COALESCE($4, last_name),
			updated_at = NOW()
		WHERE id = $5
		RETURNING `+userColumns,
		ch.Username, ch.Email, ch.FirstName, ch.LastName, id,
	))
	if err != nil {
		return nil, translateWriteError(err)
	}
	return user, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := s.db.Pool.Exec(ctx, `
		UPDATE users SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) LinkGoogle(ctx context.Context, id uuid.UUID, googleID string, provider models.AuthProvider) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		UPDATE users SET google_id = $1, auth_provider = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING `+userColumns,
		googleID, string(provider), id,
	))
	if err != nil {
		return nil, translateWriteError(err)
	}
	return user, nil
}

func (s *UserService) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	return scanUser(s.db.Pool.QueryRow(ctx, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns,
		string(role), id,
	))
}

func (s *UserService) UpdateStatus(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	return scanUser(s.db.Pool.QueryRow(ctx, `
		UPDATE users SET is_active = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns,
		active, id,
	))
}

func (s *UserService) TouchLastLogin(ctx context.Context, id uuid.UUID) (time.Time, error) {
	var lastLogin time.Time
	err := s.db.Pool.QueryRow(ctx, `
		UPDATE users SET last_login = NOW()
		WHERE id = $1
		RETURNING last_login
	`, id).Scan(&lastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, err
	}
	return lastLogin, nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) ExistsWithEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR username = $2)
	`, email, username).Scan(&exists)
	return exists, err
}

// EmailTaken reports whether another user (not excludeID) already has email.
func (s *UserService) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id <> $2)
	`, email, excludeID).Scan(&exists)
	return exists, err
}

func (s *UserService) UsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 AND id <> $2)
	`, username, excludeID).Scan(&exists)
	return exists, err
}

func (s *UserService) SuperAdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE role = $1)
	`, string(models.RoleSuperAdmin)).Scan(&exists)
	return exists, err
}

func (s *UserService) CountByRole(ctx context.Context, role models.Role) (int, error) {
	var count int
	err := s.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM users WHERE role = $1
	`, string(role)).Scan(&count)
	return count, err
}

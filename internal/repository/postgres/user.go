package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/xid"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

// uniqueViolationCode is SQLSTATE unique_violation.
const uniqueViolationCode = "23505"

const userColumns = `id, email, name, password_hash, google_id, avatar_url, created_at, updated_at`

// UserStore is the PostgreSQL credential store.
type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

// Create inserts user and fills in its ID and timestamps. A taken email or
// Google id comes back as apperror.ErrConflict.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	id := xid.New().String()

	query :=
		`INSERT INTO users (` + userColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		id, user.Email, user.Name, user.PasswordHash, user.GoogleID, user.AvatarURL, now, now)
	if err != nil {
		if key, ok := uniqueViolation(err); ok {
			return apperror.Conflict("user", key)
		}
		return fmt.Errorf("postgres: inserting user: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.getBy(ctx, "id", id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *UserStore) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return s.getBy(ctx, "google_id", googleID)
}

// Update writes name, password hash, Google id and avatar.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	query :=
		`UPDATE users
		 SET name = $1, password_hash = $2, google_id = $3, avatar_url = $4, updated_at = $5
		 WHERE id = $6`

	res, err := s.db.ExecContext(ctx, query,
		user.Name, user.PasswordHash, user.GoogleID, user.AvatarURL, now, user.ID)
	if err != nil {
		if key, ok := uniqueViolation(err); ok {
			return apperror.Conflict("user", key)
		}
		return fmt.Errorf("postgres: updating user %s: %w", user.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", user.ID)
	}

	user.UpdatedAt = now
	return nil
}

// Delete removes a user. It is an operator tool; the auth flows never call it.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// getBy runs a single-row lookup. column is always one of the fixed names
// above, never caller input.
func (s *UserStore) getBy(ctx context.Context, column, value string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	var u model.User
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.GoogleID, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("postgres: getting user by %s: %w", column, err)
	}
	return &u, nil
}

// uniqueViolation reports whether err is a unique_violation and which column
// it hit, using the default "<table>_<column>_key" constraint names.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return "", false
	}
	if pgErr.ConstraintName == "users_google_id_key" {
		return "google_id", true
	}
	return "email", true
}

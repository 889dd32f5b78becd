package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/pixelfeed/user-service/internal/common"
	"github.com/pixelfeed/user-service/internal/models"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url, created_at, updated_at`

// UserWriteRepository handles all state-mutating operations for users.
// It operates exclusively against the PostgreSQL write store (source of
// truth). Uniqueness of username/email is enforced by the table constraints,
// not by application-level pre-checks, so concurrent registrations with the
// same identifier cannot both succeed.
type UserWriteRepository struct {
	db *sql.DB
}

func NewUserWriteRepository(db *sql.DB) *UserWriteRepository {
	return &UserWriteRepository{db: db}
}

func (r *UserWriteRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, full_name, password_hash,
			avatar_url, cover_image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.PasswordHash,
		user.AvatarURL, user.CoverImageURL, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Exists reports whether a user with the given username or email is already
// registered. Advisory only: the unique constraints remain the authority
// under concurrent registration.
func (r *UserWriteRepository) Exists(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// GetByID fetches the full write model (including PasswordHash) for internal
// operations.
func (r *UserWriteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByIdentifier looks a user up by username or email. The identifier is
// matched against both columns, mirroring the login contract.
func (r *UserWriteRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, identifier))
}

// UpdateProfile applies a partial profile update in a single statement and
// returns the updated record. Nil fields keep their stored value.
func (r *UserWriteRepository) UpdateProfile(ctx context.Context, id string, email, fullName *string) (*models.User, error) {
	query := `
		UPDATE users
		SET email = COALESCE($2, email),
			full_name = COALESCE($3, full_name),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := r.scanUser(r.db.QueryRowContext(ctx, query, id, nullString(email), nullString(fullName)))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

// UpdatePassword replaces the stored credential hash.
func (r *UserWriteRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (*models.User, error) {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return r.scanUser(r.db.QueryRowContext(ctx, query, id, passwordHash))
}

// UpdateAvatar persists a newly hosted avatar URL.
func (r *UserWriteRepository) UpdateAvatar(ctx context.Context, id, avatarURL string) (*models.User, error) {
	query := `
		UPDATE users
		SET avatar_url = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return r.scanUser(r.db.QueryRowContext(ctx, query, id, avatarURL))
}

func (r *UserWriteRepository) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash,
		&user.AvatarURL, &user.CoverImageURL, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

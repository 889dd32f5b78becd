package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pixelfeed/user-service/internal/cache"
	"github.com/pixelfeed/user-service/internal/common"
	"github.com/pixelfeed/user-service/internal/models"
)

const userViewKeyPrefix = "user:view:"

const viewColumns = `id, username, email, full_name, avatar_url, cover_image_url, created_at, updated_at`

// UserReadRepository handles all read operations for users.
// Single-user lookups go through Redis first, falling back to PostgreSQL on
// a miss; listings always hit PostgreSQL.
type UserReadRepository struct {
	db    *sql.DB
	cache *cache.ViewCache[models.UserView]
}

func NewUserReadRepository(db *sql.DB, redisClient *goredis.Client) *UserReadRepository {
	return &UserReadRepository{
		db:    db,
		cache: cache.NewViewCache[models.UserView](redisClient, 0),
	}
}

// GetByID returns a UserView from Redis first, then PostgreSQL.
func (r *UserReadRepository) GetByID(ctx context.Context, id string) (*models.UserView, error) {
	cacheKey := userViewKeyPrefix + id

	if view, ok := r.cache.Get(ctx, cacheKey); ok {
		return view, nil
	}

	query := `SELECT ` + viewColumns + ` FROM users WHERE id = $1`

	var view models.UserView
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&view.ID, &view.Username, &view.Email, &view.FullName,
		&view.AvatarURL, &view.CoverImageURL, &view.CreatedAt, &view.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Warm the cache
	r.CacheUserView(ctx, &view)
	return &view, nil
}

// List returns views for every registered user, oldest first.
// The credential hash is never selected.
func (r *UserReadRepository) List(ctx context.Context) ([]models.UserView, error) {
	query := `SELECT ` + viewColumns + ` FROM users ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var views []models.UserView
	for rows.Next() {
		var view models.UserView
		if err := rows.Scan(
			&view.ID, &view.Username, &view.Email, &view.FullName,
			&view.AvatarURL, &view.CoverImageURL, &view.CreatedAt, &view.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return views, nil
}

// CacheUserView stores or refreshes the Redis read model for a user.
// Called by the command service after every mutation.
func (r *UserReadRepository) CacheUserView(ctx context.Context, view *models.UserView) {
	r.cache.Set(ctx, userViewKeyPrefix+view.ID, view)
}

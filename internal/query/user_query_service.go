package query

import (
	"context"

	"github.com/pixelfeed/user-service/internal/common"
	"github.com/pixelfeed/user-service/internal/cqrs"
	"github.com/pixelfeed/user-service/internal/credentials"
	"github.com/pixelfeed/user-service/internal/models"
)

// CredentialReader is the slice of the write repository needed for login;
// it is the only read path allowed to see the stored hash.
type CredentialReader interface {
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}

// UserReader serves sanitized views from the Redis cache (with a Postgres
// fallback).
type UserReader interface {
	GetByID(ctx context.Context, id string) (*models.UserView, error)
	List(ctx context.Context) ([]models.UserView, error)
}

// UserQueryService answers the read-side operations: login, single lookup
// and listing.
type UserQueryService struct {
	creds CredentialReader
	reads UserReader
}

func NewUserQueryService(creds CredentialReader, reads UserReader) *UserQueryService {
	return &UserQueryService{creds: creds, reads: reads}
}

// Login resolves the identifier against username or email and verifies the
// password. Unknown identifiers and bad passwords return distinct errors;
// the stored hash never leaves this method.
func (s *UserQueryService) Login(ctx context.Context, q cqrs.LoginQuery) (*models.UserView, error) {
	user, err := s.creds.GetByIdentifier(ctx, q.Identifier)
	if err != nil {
		return nil, err
	}
	if !credentials.Verify(q.Password, user.PasswordHash) {
		return nil, common.ErrorInvalidCredentials
	}
	return models.ViewOf(user), nil
}

// GetUser returns a single sanitized view by ID.
func (s *UserQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	return s.reads.GetByID(ctx, q.UserID)
}

// ListUsers returns views for every registered user.
func (s *UserQueryService) ListUsers(ctx context.Context) ([]models.UserView, error) {
	return s.reads.List(ctx)
}

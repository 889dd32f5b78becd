package command

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pixelfeed/user-service/internal/common"
	"github.com/pixelfeed/user-service/internal/cqrs"
	"github.com/pixelfeed/user-service/internal/credentials"
	"github.com/pixelfeed/user-service/internal/events"
	"github.com/pixelfeed/user-service/internal/models"
	"github.com/pixelfeed/user-service/internal/utils"
)

// UserWriter is the slice of the write repository used by the command service.
type UserWriter interface {
	Create(ctx context.Context, user *models.User) error
	Exists(ctx context.Context, username, email string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, email, fullName *string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) (*models.User, error)
	UpdateAvatar(ctx context.Context, id, avatarURL string) (*models.User, error)
}

// ViewCacher refreshes the Redis read model after a mutation.
type ViewCacher interface {
	CacheUserView(ctx context.Context, view *models.UserView)
}

// MediaUploader pushes a staged file to the media host and returns its URL.
type MediaUploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// EventPublisher emits lifecycle events to the user stream.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// UserCommandService writes user state to PostgreSQL and keeps the Redis
// read model up to date. Every operation returns either the resulting view
// or a sentinel error from the common package.
type UserCommandService struct {
	writeRepo UserWriter
	readRepo  ViewCacher
	media     MediaUploader
	publisher EventPublisher
}

func NewUserCommandService(
	writeRepo UserWriter,
	readRepo ViewCacher,
	media MediaUploader,
	publisher EventPublisher,
) *UserCommandService {
	return &UserCommandService{
		writeRepo: writeRepo,
		readRepo:  readRepo,
		media:     media,
		publisher: publisher,
	}
}

// Register creates an account. The duplicate pre-check avoids wasting an
// upload on an obvious conflict; the unique constraints still decide races
// at insert time.
func (s *UserCommandService) Register(ctx context.Context, cmd cqrs.RegisterUserCommand) (*models.UserView, error) {
	username := strings.ToLower(cmd.Username)

	exists, err := s.writeRepo.Exists(ctx, username, cmd.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrorAlreadyExists
	}

	avatarURL, err := s.media.Upload(ctx, cmd.AvatarPath)
	if err != nil {
		return nil, err
	}
	if avatarURL == "" {
		return nil, fmt.Errorf("%w: media host returned no url", common.ErrorUpload)
	}

	coverImageURL := ""
	if cmd.CoverImagePath != "" {
		coverImageURL, err = s.media.Upload(ctx, cmd.CoverImagePath)
		if err != nil {
			// The cover image is optional; a failed upload leaves it empty.
			log.Printf("Cover image upload failed for %s: %v", username, err)
			coverImageURL = ""
		}
	}

	passwordHash, err := credentials.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:            utils.GenerateID("usr"),
		Username:      username,
		Email:         cmd.Email,
		FullName:      cmd.FullName,
		PasswordHash:  passwordHash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.writeRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	view := models.ViewOf(user)
	s.readRepo.CacheUserView(ctx, view)
	if err := s.publisher.Publish(ctx, events.UserEventsStream, events.UserRegistered, events.UserRegisteredEvent{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	}); err != nil {
		log.Printf("Failed to publish user.registered event: %v", err)
	}
	return view, nil
}

// UpdateProfile applies a partial update to email and/or full name.
func (s *UserCommandService) UpdateProfile(ctx context.Context, cmd cqrs.UpdateProfileCommand) (*models.UserView, error) {
	user, err := s.writeRepo.UpdateProfile(ctx, cmd.UserID, cmd.Email, cmd.FullName)
	if err != nil {
		return nil, err
	}

	view := models.ViewOf(user)
	s.readRepo.CacheUserView(ctx, view)
	if err := s.publisher.Publish(ctx, events.UserEventsStream, events.UserUpdated, events.UserUpdatedEvent{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	}); err != nil {
		log.Printf("Failed to publish user.updated event: %v", err)
	}
	return view, nil
}

// UpdatePassword verifies the current password before storing a new hash.
// On verification failure the stored hash is left untouched.
func (s *UserCommandService) UpdatePassword(ctx context.Context, cmd cqrs.UpdatePasswordCommand) (*models.UserView, error) {
	user, err := s.writeRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if !credentials.Verify(cmd.CurrentPassword, user.PasswordHash) {
		return nil, common.ErrorInvalidCredentials
	}

	passwordHash, err := credentials.Hash(cmd.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	updated, err := s.writeRepo.UpdatePassword(ctx, cmd.UserID, passwordHash)
	if err != nil {
		return nil, err
	}

	view := models.ViewOf(updated)
	s.readRepo.CacheUserView(ctx, view)
	return view, nil
}

// UpdateAvatar uploads the staged file and persists the hosted URL.
// The lookup happens before the upload so an unknown ID costs no media call.
func (s *UserCommandService) UpdateAvatar(ctx context.Context, cmd cqrs.UpdateAvatarCommand) (*models.UserView, error) {
	if _, err := s.writeRepo.GetByID(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	avatarURL, err := s.media.Upload(ctx, cmd.AvatarPath)
	if err != nil {
		return nil, err
	}
	if avatarURL == "" {
		return nil, fmt.Errorf("%w: media host returned no url", common.ErrorUpload)
	}

	user, err := s.writeRepo.UpdateAvatar(ctx, cmd.UserID, avatarURL)
	if err != nil {
		return nil, err
	}

	view := models.ViewOf(user)
	s.readRepo.CacheUserView(ctx, view)
	if err := s.publisher.Publish(ctx, events.UserEventsStream, events.UserAvatarUpdated, events.UserAvatarUpdatedEvent{
		UserID:    user.ID,
		AvatarURL: user.AvatarURL,
	}); err != nil {
		log.Printf("Failed to publish user.avatar_updated event: %v", err)
	}
	return view, nil
}

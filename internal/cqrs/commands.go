package cqrs

// RegisterUserCommand creates a new account. AvatarPath and CoverImagePath
// point at locally staged multipart uploads; the handler owns their cleanup.
type RegisterUserCommand struct {
	Username       string
	Email          string
	FullName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// UpdateProfileCommand applies a partial profile update.
// Nil fields are left unchanged.
type UpdateProfileCommand struct {
	UserID   string
	Email    *string
	FullName *string
}

// UpdatePasswordCommand rotates the stored credential after verifying the
// current password.
type UpdatePasswordCommand struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// UpdateAvatarCommand replaces the hosted avatar image.
type UpdateAvatarCommand struct {
	UserID     string
	AvatarPath string
}

package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pixelfeed/user-service/internal/api"
	"github.com/pixelfeed/user-service/internal/common"
	"github.com/pixelfeed/user-service/internal/cqrs"
	"github.com/pixelfeed/user-service/internal/middleware"
	"github.com/pixelfeed/user-service/internal/models"
	"github.com/pixelfeed/user-service/internal/utils"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	Register(ctx context.Context, cmd cqrs.RegisterUserCommand) (*models.UserView, error)
	UpdateProfile(ctx context.Context, cmd cqrs.UpdateProfileCommand) (*models.UserView, error)
	UpdatePassword(ctx context.Context, cmd cqrs.UpdatePasswordCommand) (*models.UserView, error)
	UpdateAvatar(ctx context.Context, cmd cqrs.UpdateAvatarCommand) (*models.UserView, error)
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	Login(ctx context.Context, q cqrs.LoginQuery) (*models.UserView, error)
	GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error)
	ListUsers(ctx context.Context) ([]models.UserView, error)
}

// UserHandler routes requests to the command or query service as appropriate.
// Multipart uploads are staged under uploadDir and removed before the
// response is written, whether the operation succeeded or not.
type UserHandler struct {
	commands  UserCommander
	queries   UserQuerier
	uploadDir string
}

type RegisterRequest struct {
	Username string `validate:"required"`
	Email    string `validate:"required,email"`
	FullName string `validate:"required"`
	Password string `validate:"required,min=6"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"fullName"`
}

type UpdatePasswordRequest struct {
	ID              string `json:"id" validate:"required"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func NewUserHandler(commands UserCommander, queries UserQuerier, uploadDir string) *UserHandler {
	return &UserHandler{commands: commands, queries: queries, uploadDir: uploadDir}
}

// Register handles the multipart registration form: four text fields plus a
// required avatar file and an optional cover image.
func (h *UserHandler) Register(c *gin.Context) {
	req := RegisterRequest{
		Username: strings.TrimSpace(c.PostForm("username")),
		Email:    strings.TrimSpace(c.PostForm("email")),
		FullName: strings.TrimSpace(c.PostForm("fullName")),
		Password: strings.TrimSpace(c.PostForm("password")),
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	avatarFile, err := c.FormFile("avatar")
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "Avatar file is required")
		return
	}
	avatarPath, err := h.stageFile(c, avatarFile)
	if err != nil {
		api.RespondError(c, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}
	defer os.Remove(avatarPath)

	coverImagePath := ""
	if coverFile, err := c.FormFile("coverImage"); err == nil {
		if coverImagePath, err = h.stageFile(c, coverFile); err != nil {
			api.RespondError(c, http.StatusInternalServerError, "Failed to store uploaded file")
			return
		}
		defer os.Remove(coverImagePath)
	}

	view, err := h.commands.Register(c.Request.Context(), cqrs.RegisterUserCommand{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		Password:       req.Password,
		AvatarPath:     avatarPath,
		CoverImagePath: coverImagePath,
	})
	if err != nil {
		if errors.Is(err, common.ErrorUpload) {
			api.RespondError(c, http.StatusBadRequest, "Avatar upload failed")
			return
		}
		respondOpError(c, err)
		return
	}

	api.Respond(c, http.StatusCreated, "User registered successfully", view)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.queries.Login(c.Request.Context(), cqrs.LoginQuery{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			api.RespondError(c, http.StatusNotFound, "Invalid username or email. No user found")
			return
		}
		respondOpError(c, err)
		return
	}

	api.Respond(c, http.StatusOK, "", view)
}

func (h *UserHandler) GetUsers(c *gin.Context) {
	views, err := h.queries.ListUsers(c.Request.Context())
	if err != nil {
		respondOpError(c, err)
		return
	}
	// An empty listing keeps the 404 contract of the public API.
	if len(views) == 0 {
		api.RespondError(c, http.StatusNotFound, "No user found")
		return
	}

	api.Respond(c, http.StatusOK, "Data fetched successfully", views)
}

func (h *UserHandler) GetUserByID(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		api.RespondError(c, http.StatusBadRequest, "User id is required")
		return
	}

	view, err := h.queries.GetUser(c.Request.Context(), cqrs.GetUserQuery{UserID: id})
	if err != nil {
		respondOpError(c, err)
		return
	}

	api.Respond(c, http.StatusOK, "Data fetched successfully", view)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		api.RespondError(c, http.StatusBadRequest, "User id is required")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.UpdateProfile(c.Request.Context(), cqrs.UpdateProfileCommand{
		UserID:   id,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		respondOpError(c, err)
		return
	}

	api.Respond(c, http.StatusOK, "Profile updated successfully", view)
}

func (h *UserHandler) UpdatePassword(c *gin.Context) {
	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.UpdatePassword(c.Request.Context(), cqrs.UpdatePasswordCommand{
		UserID:          req.ID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		respondOpError(c, err)
		return
	}

	api.Respond(c, http.StatusOK, "Password updated successfully", view)
}

func (h *UserHandler) UpdateAvatarImage(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		api.RespondError(c, http.StatusBadRequest, "User id is required")
		return
	}

	avatarFile, err := c.FormFile("avatar")
	if err != nil {
		api.RespondError(c, http.StatusBadRequest, "Avatar file is required")
		return
	}
	avatarPath, err := h.stageFile(c, avatarFile)
	if err != nil {
		api.RespondError(c, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}
	defer os.Remove(avatarPath)

	view, err := h.commands.UpdateAvatar(c.Request.Context(), cqrs.UpdateAvatarCommand{
		UserID:     id,
		AvatarPath: avatarPath,
	})
	if err != nil {
		respondOpError(c, err)
		return
	}

	api.Respond(c, http.StatusOK, "Avatar image updated successfully", gin.H{
		"avatar_url": view.AvatarURL,
	})
}

// stageFile saves a multipart upload under the staging directory and returns
// its local path. Callers own removal of the staged file.
func (h *UserHandler) stageFile(c *gin.Context, file *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(h.uploadDir, utils.GenerateID("upload")+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// respondOpError maps sentinel errors onto the shared envelope statuses.
// Unexpected errors become a 500 envelope; nothing ever panics through to
// the transport layer.
func respondOpError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		api.RespondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, common.ErrorAlreadyExists):
		api.RespondError(c, http.StatusConflict, "User with email or username already exists")
	case errors.Is(err, common.ErrorInvalidCredentials):
		api.RespondError(c, http.StatusUnauthorized, "Incorrect password")
	case errors.Is(err, common.ErrorUpload):
		api.RespondError(c, http.StatusBadGateway, "Failed to upload image to media host")
	default:
		api.RespondError(c, http.StatusInternalServerError, "Something went wrong")
	}
}

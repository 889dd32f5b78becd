package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixelfeed/user-service/internal/common"
	"github.com/pixelfeed/user-service/internal/cqrs"
	"github.com/pixelfeed/user-service/internal/models"
)

// ---- mock implementations ----

type mockUserCommander struct {
	registerFn       func(cqrs.RegisterUserCommand) (*models.UserView, error)
	updateProfileFn  func(cqrs.UpdateProfileCommand) (*models.UserView, error)
	updatePasswordFn func(cqrs.UpdatePasswordCommand) (*models.UserView, error)
	updateAvatarFn   func(cqrs.UpdateAvatarCommand) (*models.UserView, error)
}

func (m *mockUserCommander) Register(_ context.Context, cmd cqrs.RegisterUserCommand) (*models.UserView, error) {
	if m.registerFn != nil {
		return m.registerFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserCommander) UpdateProfile(_ context.Context, cmd cqrs.UpdateProfileCommand) (*models.UserView, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserCommander) UpdatePassword(_ context.Context, cmd cqrs.UpdatePasswordCommand) (*models.UserView, error) {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserCommander) UpdateAvatar(_ context.Context, cmd cqrs.UpdateAvatarCommand) (*models.UserView, error) {
	if m.updateAvatarFn != nil {
		return m.updateAvatarFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockUserQuerier struct {
	loginFn func(cqrs.LoginQuery) (*models.UserView, error)
	getFn   func(cqrs.GetUserQuery) (*models.UserView, error)
	listFn  func() ([]models.UserView, error)
}

func (m *mockUserQuerier) Login(_ context.Context, q cqrs.LoginQuery) (*models.UserView, error) {
	if m.loginFn != nil {
		return m.loginFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserQuerier) GetUser(_ context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserQuerier) ListUsers(_ context.Context) ([]models.UserView, error) {
	if m.listFn != nil {
		return m.listFn()
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func newTestRouter(t *testing.T, cmds UserCommander, qrys UserQuerier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewUserHandler(cmds, qrys, t.TempDir())
	v1 := r.Group("/api/v1/users")
	v1.POST("/register", h.Register)
	v1.POST("/login", h.Login)
	v1.GET("/getusers", h.GetUsers)
	v1.GET("/getuser", h.GetUserByID)
	v1.PATCH("/updateprofile", h.UpdateProfile)
	v1.PATCH("/updatepassword", h.UpdatePassword)
	v1.PATCH("/updateavatarimage", h.UpdateAvatarImage)
	return r
}

func doJSON(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doMultipart(router *gin.Engine, method, url string, fields map[string]string, files map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		mw.WriteField(name, value)
	}
	for field, filename := range files {
		fw, _ := mw.CreateFormFile(field, filename)
		fw.Write([]byte("fake image bytes"))
	}
	mw.Close()

	req, _ := http.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v; body: %s", err, w.Body.String())
	}
	if env.StatusCode != w.Code {
		t.Errorf("envelope statusCode %d does not match HTTP status %d", env.StatusCode, w.Code)
	}
	return env
}

// ---- test data ----

var testView = &models.UserView{
	ID: "usr-001", Username: "ada", Email: "a@x.com", FullName: "Ada L",
	AvatarURL: "https://media.example.com/users/abc.png",
	CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
}

func validRegisterFields() map[string]string {
	return map[string]string{
		"username": "Ada",
		"email":    "a@x.com",
		"fullName": "Ada L",
		"password": "secret1",
	}
}

// ---- tests ----

func TestRegister(t *testing.T) {
	tests := []struct {
		name           string
		fields         map[string]string
		files          map[string]string
		registerFn     func(cqrs.RegisterUserCommand) (*models.UserView, error)
		expectedStatus int
	}{
		{
			name:           "success - creates new user",
			fields:         validRegisterFields(),
			files:          map[string]string{"avatar": "avatar.png"},
			registerFn:     func(cqrs.RegisterUserCommand) (*models.UserView, error) { return testView, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "success - with optional cover image",
			fields:         validRegisterFields(),
			files:          map[string]string{"avatar": "avatar.png", "coverImage": "cover.jpg"},
			registerFn:     func(cqrs.RegisterUserCommand) (*models.UserView, error) { return testView, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad request - missing text fields",
			fields:         map[string]string{"email": "a@x.com"},
			files:          map[string]string{"avatar": "avatar.png"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - blank fields after trimming",
			fields:         map[string]string{"username": "   ", "email": "a@x.com", "fullName": " ", "password": "secret1"},
			files:          map[string]string{"avatar": "avatar.png"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - missing avatar file",
			fields:         validRegisterFields(),
			files:          nil,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "conflict - duplicate username or email",
			fields: validRegisterFields(),
			files:  map[string]string{"avatar": "avatar.png"},
			registerFn: func(cqrs.RegisterUserCommand) (*models.UserView, error) {
				return nil, common.ErrorAlreadyExists
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:   "bad request - avatar upload failed",
			fields: validRegisterFields(),
			files:  map[string]string{"avatar": "avatar.png"},
			registerFn: func(cqrs.RegisterUserCommand) (*models.UserView, error) {
				return nil, fmt.Errorf("%w: connection refused", common.ErrorUpload)
			},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockUserCommander{registerFn: tt.registerFn}
			router := newTestRouter(t, cmds, &mockUserQuerier{})
			w := doMultipart(router, http.MethodPost, "/api/v1/users/register", tt.fields, tt.files)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			decodeEnvelope(t, w)
		})
	}
}

func TestRegisterSanitizesResponse(t *testing.T) {
	cmds := &mockUserCommander{
		registerFn: func(cqrs.RegisterUserCommand) (*models.UserView, error) { return testView, nil },
	}
	router := newTestRouter(t, cmds, &mockUserQuerier{})
	w := doMultipart(router, http.MethodPost, "/api/v1/users/register",
		validRegisterFields(), map[string]string{"avatar": "avatar.png"})

	env := decodeEnvelope(t, w)
	if !env.Success {
		t.Fatalf("expected success envelope, got: %s", w.Body.String())
	}

	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data["username"] != "ada" {
		t.Errorf("expected lowercased username, got %v", data["username"])
	}
	if _, ok := data["passwordHash"]; ok {
		t.Error("passwordHash must never be serialized into a response")
	}
	if strings.Contains(w.Body.String(), "passwordHash") {
		t.Error("response body leaks credential field name")
	}
}

func TestRegisterRemovesStagedFiles(t *testing.T) {
	var stagedPath string
	var existedDuringCall bool

	tests := []struct {
		name       string
		registerFn func(cqrs.RegisterUserCommand) (*models.UserView, error)
	}{
		{
			name: "success path",
			registerFn: func(cmd cqrs.RegisterUserCommand) (*models.UserView, error) {
				stagedPath = cmd.AvatarPath
				_, err := os.Stat(cmd.AvatarPath)
				existedDuringCall = err == nil
				return testView, nil
			},
		},
		{
			name: "failure path",
			registerFn: func(cmd cqrs.RegisterUserCommand) (*models.UserView, error) {
				stagedPath = cmd.AvatarPath
				_, err := os.Stat(cmd.AvatarPath)
				existedDuringCall = err == nil
				return nil, fmt.Errorf("%w: timeout", common.ErrorUpload)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stagedPath, existedDuringCall = "", false
			cmds := &mockUserCommander{registerFn: tt.registerFn}
			router := newTestRouter(t, cmds, &mockUserQuerier{})
			doMultipart(router, http.MethodPost, "/api/v1/users/register",
				validRegisterFields(), map[string]string{"avatar": "avatar.png"})

			if stagedPath == "" {
				t.Fatal("command never received a staged file path")
			}
			if !existedDuringCall {
				t.Error("staged file should exist while the operation runs")
			}
			if _, err := os.Stat(stagedPath); !os.IsNotExist(err) {
				t.Errorf("staged file %s should be removed after the request", stagedPath)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		loginFn        func(cqrs.LoginQuery) (*models.UserView, error)
		expectedStatus int
	}{
		{
			name:           "success - correct credentials",
			body:           map[string]string{"identifier": "ada", "password": "secret1"},
			loginFn:        func(cqrs.LoginQuery) (*models.UserView, error) { return testView, nil },
			expectedStatus: http.StatusOK,
		},
		{
			name: "unauthorized - wrong password",
			body: map[string]string{"identifier": "ada", "password": "wrong"},
			loginFn: func(cqrs.LoginQuery) (*models.UserView, error) {
				return nil, common.ErrorInvalidCredentials
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "not found - unknown identifier",
			body: map[string]string{"identifier": "nobody", "password": "secret1"},
			loginFn: func(cqrs.LoginQuery) (*models.UserView, error) {
				return nil, common.ErrorNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - missing password",
			body:           map[string]string{"identifier": "ada"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - invalid body",
			body:           "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &mockUserCommander{}, &mockUserQuerier{loginFn: tt.loginFn})
			w := doJSON(router, http.MethodPost, "/api/v1/users/login", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			env := decodeEnvelope(t, w)
			if env.Success != (tt.expectedStatus < 400) {
				t.Errorf("[%s] envelope success %v inconsistent with status %d", tt.name, env.Success, w.Code)
			}
		})
	}
}

func TestGetUsers(t *testing.T) {
	tests := []struct {
		name           string
		listFn         func() ([]models.UserView, error)
		expectedStatus int
	}{
		{
			name:           "success - returns all users",
			listFn:         func() ([]models.UserView, error) { return []models.UserView{*testView}, nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "not found - empty store",
			listFn:         func() ([]models.UserView, error) { return nil, nil },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "internal error - store failure",
			listFn:         func() ([]models.UserView, error) { return nil, fmt.Errorf("connection reset") },
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &mockUserCommander{}, &mockUserQuerier{listFn: tt.listFn})
			w := doJSON(router, http.MethodGet, "/api/v1/users/getusers", nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			decodeEnvelope(t, w)
		})
	}
}

func TestGetUserByID(t *testing.T) {
	getFn := func(q cqrs.GetUserQuery) (*models.UserView, error) {
		if q.UserID == "usr-001" {
			return testView, nil
		}
		return nil, common.ErrorNotFound
	}

	tests := []struct {
		name           string
		url            string
		expectedStatus int
	}{
		{"success - known id", "/api/v1/users/getuser?id=usr-001", http.StatusOK},
		{"not found - unknown id", "/api/v1/users/getuser?id=usr-999", http.StatusNotFound},
		{"bad request - missing id", "/api/v1/users/getuser", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &mockUserCommander{}, &mockUserQuerier{getFn: getFn})
			w := doJSON(router, http.MethodGet, tt.url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			decodeEnvelope(t, w)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	tests := []struct {
		name            string
		url             string
		body            interface{}
		updateProfileFn func(cqrs.UpdateProfileCommand) (*models.UserView, error)
		expectedStatus  int
	}{
		{
			name: "success - partial update",
			url:  "/api/v1/users/updateprofile?id=usr-001",
			body: map[string]string{"fullName": "Ada Lovelace"},
			updateProfileFn: func(cmd cqrs.UpdateProfileCommand) (*models.UserView, error) {
				return testView, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found - unknown id",
			url:  "/api/v1/users/updateprofile?id=usr-999",
			body: map[string]string{"fullName": "Ada Lovelace"},
			updateProfileFn: func(cqrs.UpdateProfileCommand) (*models.UserView, error) {
				return nil, common.ErrorNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - missing id",
			url:            "/api/v1/users/updateprofile",
			body:           map[string]string{"fullName": "Ada Lovelace"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - invalid email",
			url:            "/api/v1/users/updateprofile?id=usr-001",
			body:           map[string]string{"email": "not-an-email"},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockUserCommander{updateProfileFn: tt.updateProfileFn}
			router := newTestRouter(t, cmds, &mockUserQuerier{})
			w := doJSON(router, http.MethodPatch, tt.url, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			decodeEnvelope(t, w)
		})
	}
}

func TestUpdatePassword(t *testing.T) {
	validBody := map[string]string{
		"id": "usr-001", "currentPassword": "secret1", "newPassword": "newsecret",
	}

	tests := []struct {
		name             string
		body             interface{}
		updatePasswordFn func(cqrs.UpdatePasswordCommand) (*models.UserView, error)
		expectedStatus   int
	}{
		{
			name: "success - password rotated",
			body: validBody,
			updatePasswordFn: func(cqrs.UpdatePasswordCommand) (*models.UserView, error) {
				return testView, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "unauthorized - wrong current password",
			body: validBody,
			updatePasswordFn: func(cqrs.UpdatePasswordCommand) (*models.UserView, error) {
				return nil, common.ErrorInvalidCredentials
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "not found - unknown id",
			body: validBody,
			updatePasswordFn: func(cqrs.UpdatePasswordCommand) (*models.UserView, error) {
				return nil, common.ErrorNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - missing fields",
			body:           map[string]string{"id": "usr-001"},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockUserCommander{updatePasswordFn: tt.updatePasswordFn}
			router := newTestRouter(t, cmds, &mockUserQuerier{})
			w := doJSON(router, http.MethodPatch, "/api/v1/users/updatepassword", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			decodeEnvelope(t, w)
		})
	}
}

func TestUpdateAvatarImage(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		files          map[string]string
		updateAvatarFn func(cqrs.UpdateAvatarCommand) (*models.UserView, error)
		expectedStatus int
	}{
		{
			name:  "success - avatar replaced",
			url:   "/api/v1/users/updateavatarimage?id=usr-001",
			files: map[string]string{"avatar": "new-avatar.png"},
			updateAvatarFn: func(cqrs.UpdateAvatarCommand) (*models.UserView, error) {
				return testView, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "not found - unknown id",
			url:   "/api/v1/users/updateavatarimage?id=usr-999",
			files: map[string]string{"avatar": "new-avatar.png"},
			updateAvatarFn: func(cqrs.UpdateAvatarCommand) (*models.UserView, error) {
				return nil, common.ErrorNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:  "bad gateway - media host failure",
			url:   "/api/v1/users/updateavatarimage?id=usr-001",
			files: map[string]string{"avatar": "new-avatar.png"},
			updateAvatarFn: func(cqrs.UpdateAvatarCommand) (*models.UserView, error) {
				return nil, fmt.Errorf("%w: all attempts failed", common.ErrorUpload)
			},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "bad request - missing id",
			url:            "/api/v1/users/updateavatarimage",
			files:          map[string]string{"avatar": "new-avatar.png"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - missing avatar file",
			url:            "/api/v1/users/updateavatarimage?id=usr-001",
			files:          nil,
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockUserCommander{updateAvatarFn: tt.updateAvatarFn}
			router := newTestRouter(t, cmds, &mockUserQuerier{})
			w := doMultipart(router, http.MethodPatch, tt.url, nil, tt.files)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			decodeEnvelope(t, w)
		})
	}
}

func TestUpdateAvatarImageReturnsURLAndCleansUp(t *testing.T) {
	var stagedPath string
	cmds := &mockUserCommander{
		updateAvatarFn: func(cmd cqrs.UpdateAvatarCommand) (*models.UserView, error) {
			stagedPath = cmd.AvatarPath
			return testView, nil
		},
	}
	router := newTestRouter(t, cmds, &mockUserQuerier{})
	w := doMultipart(router, http.MethodPatch, "/api/v1/users/updateavatarimage?id=usr-001",
		nil, map[string]string{"avatar": "new-avatar.png"})

	env := decodeEnvelope(t, w)
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data["avatar_url"] != testView.AvatarURL {
		t.Errorf("expected avatar_url %q, got %q", testView.AvatarURL, data["avatar_url"])
	}
	if _, err := os.Stat(stagedPath); !os.IsNotExist(err) {
		t.Errorf("staged file %s should be removed after the request", stagedPath)
	}
}

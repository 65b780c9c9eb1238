package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dberezin/vidhub/internal/common"
	"github.com/dberezin/vidhub/internal/logging"
	"github.com/dberezin/vidhub/internal/server/auth"
	"github.com/dberezin/vidhub/internal/server/config"
	"github.com/dberezin/vidhub/internal/server/models"
	"github.com/dberezin/vidhub/internal/server/services"
)

// ---- mock service ----

type mockAccountOps struct {
	registerFn       func(services.RegisterInput) (*models.PublicUser, error)
	loginFn          func(username, password string) (*services.LoginResult, error)
	logoutFn         func(services.Identity) error
	refreshFn        func(string) (*services.TokenPair, error)
	changePasswordFn func(services.Identity, string, string) error
	currentUserFn    func(services.Identity) (*models.PublicUser, error)
	updateDetailsFn  func(services.Identity, string, string) (*models.PublicUser, error)
	updateAvatarFn   func(services.Identity, string) (*models.PublicUser, error)
	updateCoverFn    func(services.Identity, string) (*models.PublicUser, error)
}

func (m *mockAccountOps) Register(_ context.Context, in services.RegisterInput) (*models.PublicUser, error) {
	return m.registerFn(in)
}
func (m *mockAccountOps) Login(_ context.Context, username, password string) (*services.LoginResult, error) {
	return m.loginFn(username, password)
}
func (m *mockAccountOps) Logout(_ context.Context, ident services.Identity) error {
	return m.logoutFn(ident)
}
func (m *mockAccountOps) Refresh(_ context.Context, presented string) (*services.TokenPair, error) {
	return m.refreshFn(presented)
}
func (m *mockAccountOps) ChangePassword(_ context.Context, ident services.Identity, oldPassword, newPassword string) error {
	return m.changePasswordFn(ident, oldPassword, newPassword)
}
func (m *mockAccountOps) CurrentUser(_ context.Context, ident services.Identity) (*models.PublicUser, error) {
	return m.currentUserFn(ident)
}
func (m *mockAccountOps) UpdateDetails(_ context.Context, ident services.Identity, fullName, email string) (*models.PublicUser, error) {
	return m.updateDetailsFn(ident, fullName, email)
}
func (m *mockAccountOps) UpdateAvatar(_ context.Context, ident services.Identity, localPath string) (*models.PublicUser, error) {
	return m.updateAvatarFn(ident, localPath)
}
func (m *mockAccountOps) UpdateCoverImage(_ context.Context, ident services.Identity, localPath string) (*models.PublicUser, error) {
	return m.updateCoverFn(ident, localPath)
}

// ---- helpers ----

const testAccessSecret = "access-k"

func newTestRouter(t *testing.T, ops AccountOperations) chi.Router {
	t.Helper()
	cfg := &config.Config{AccessTokenSecret: testAccessSecret, CookieSecure: true}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewAccountHandler(ops, logger, cfg, t.TempDir())

	r := chi.NewRouter()
	r.Mount("/api/v1/users", h.Routes())
	return r
}

func accessTokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(userID, "alice", "alice@x.com", "Alice A", []byte(testAccessSecret), time.Hour)
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, router chi.Router, method, url string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func cookieByName(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func publicAlice() *models.PublicUser {
	return &models.PublicUser{ID: "u-1", Username: "alice", Email: "alice@x.com", FullName: "Alice A", AvatarURL: "http://cdn/a.png"}
}

// ---- register ----

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, filename := range files {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("bytes-of-" + filename))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestRegister_Success(t *testing.T) {
	var gotInput services.RegisterInput
	ops := &mockAccountOps{
		registerFn: func(in services.RegisterInput) (*models.PublicUser, error) {
			gotInput = in
			return publicAlice(), nil
		},
	}
	router := newTestRouter(t, ops)

	body, contentType := multipartBody(t,
		map[string]string{"username": "alice", "fullName": "Alice A", "email": "alice@x.com", "password": "pw"},
		map[string]string{"avatar": "a.png", "coverImage": "c.jpg"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	envelope := decodeBody(t, w)
	assert.Equal(t, float64(201), envelope["statusCode"])
	assert.Equal(t, true, envelope["success"])

	data := envelope["data"].(map[string]any)
	assert.Equal(t, "alice", data["username"])
	_, hasPassword := data["password"]
	assert.False(t, hasPassword)
	_, hasHash := data["passwordHash"]
	assert.False(t, hasHash)
	_, hasRefresh := data["refreshToken"]
	assert.False(t, hasRefresh)

	assert.Equal(t, "alice", gotInput.Username)
	assert.NotEmpty(t, gotInput.AvatarPath)
	assert.NotEmpty(t, gotInput.CoverImagePath)
}

func TestRegister_MissingAvatarPart(t *testing.T) {
	ops := &mockAccountOps{
		registerFn: func(in services.RegisterInput) (*models.PublicUser, error) {
			require.Empty(t, in.AvatarPath)
			return nil, common.NewValidation("avatar is required")
		},
	}
	router := newTestRouter(t, ops)

	body, contentType := multipartBody(t,
		map[string]string{"username": "alice", "fullName": "Alice A", "email": "alice@x.com", "password": "pw"},
		nil,
	)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeBody(t, w)
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, "avatar is required", envelope["message"])
	assert.Equal(t, []any{}, envelope["errors"])
}

func TestRegister_Conflict(t *testing.T) {
	ops := &mockAccountOps{
		registerFn: func(services.RegisterInput) (*models.PublicUser, error) {
			return nil, common.NewConflict("user already exists")
		},
	}
	router := newTestRouter(t, ops)

	body, contentType := multipartBody(t, map[string]string{"username": "alice"}, map[string]string{"avatar": "a.png"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// ---- login ----

func TestLogin_SuccessSetsCookies(t *testing.T) {
	ops := &mockAccountOps{
		loginFn: func(username, password string) (*services.LoginResult, error) {
			assert.Equal(t, "alice", username)
			return &services.LoginResult{User: publicAlice(), AccessToken: "acc", RefreshToken: "ref"}, nil
		},
	}
	router := newTestRouter(t, ops)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/login", map[string]string{"username": "alice", "password": "pw"})

	require.Equal(t, http.StatusOK, w.Code)

	res := w.Result()
	access := cookieByName(res, AccessTokenCookie)
	refresh := cookieByName(res, RefreshTokenCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.Equal(t, "acc", access.Value)
	assert.Equal(t, "ref", refresh.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)

	envelope := decodeBody(t, w)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, "acc", data["accessToken"])
	assert.Equal(t, "ref", data["refreshToken"])
	assert.Equal(t, "alice", data["user"].(map[string]any)["username"])
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", common.NewValidation("username required"), http.StatusBadRequest},
		{"not found", common.NewNotFound("user not found"), http.StatusNotFound},
		{"bad credentials", common.NewUnauthorized("invalid user credentials"), http.StatusUnauthorized},
		{"unknown error becomes 500", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := &mockAccountOps{
				loginFn: func(string, string) (*services.LoginResult, error) { return nil, tt.err },
			}
			router := newTestRouter(t, ops)

			w := doJSON(t, router, http.MethodPost, "/api/v1/users/login", map[string]string{"username": "x", "password": "y"})
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Nil(t, cookieByName(w.Result(), AccessTokenCookie), "no cookie on failure")
		})
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	router := newTestRouter(t, &mockAccountOps{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader("{nope"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---- refresh ----

func TestRefresh_FromCookie(t *testing.T) {
	ops := &mockAccountOps{
		refreshFn: func(presented string) (*services.TokenPair, error) {
			assert.Equal(t, "old-refresh", presented)
			return &services.TokenPair{AccessToken: "new-acc", RefreshToken: "new-ref"}, nil
		},
	}
	router := newTestRouter(t, ops)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/refresh-token", nil,
		&http.Cookie{Name: RefreshTokenCookie, Value: "old-refresh"})

	require.Equal(t, http.StatusOK, w.Code)
	refresh := cookieByName(w.Result(), RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, "new-ref", refresh.Value)
}

func TestRefresh_FromBody(t *testing.T) {
	ops := &mockAccountOps{
		refreshFn: func(presented string) (*services.TokenPair, error) {
			assert.Equal(t, "body-refresh", presented)
			return &services.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
		},
	}
	router := newTestRouter(t, ops)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": "body-refresh"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefresh_MissingTokenRejected(t *testing.T) {
	ops := &mockAccountOps{
		refreshFn: func(presented string) (*services.TokenPair, error) {
			require.Empty(t, presented)
			return nil, common.NewUnauthorized("unauthorized request")
		},
	}
	router := newTestRouter(t, ops)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/refresh-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ---- session middleware ----

func TestProtectedEndpoints_RequireAccessToken(t *testing.T) {
	router := newTestRouter(t, &mockAccountOps{})

	endpoints := []struct {
		method string
		url    string
	}{
		{http.MethodPost, "/api/v1/users/logout"},
		{http.MethodGet, "/api/v1/users/current-user"},
		{http.MethodPost, "/api/v1/users/change-password"},
		{http.MethodPatch, "/api/v1/users/update-account"},
		{http.MethodPatch, "/api/v1/users/avatar"},
		{http.MethodPatch, "/api/v1/users/cover-image"},
	}

	for _, e := range endpoints {
		t.Run(e.url, func(t *testing.T) {
			w := doJSON(t, router, e.method, e.url, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestWithAuth_AcceptsBearerHeader(t *testing.T) {
	ops := &mockAccountOps{
		currentUserFn: func(ident services.Identity) (*models.PublicUser, error) {
			assert.Equal(t, "u-1", ident.UserID)
			return publicAlice(), nil
		},
	}
	router := newTestRouter(t, ops)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.Header.Set("Authorization", "Bearer "+accessTokenFor(t, "u-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWithAuth_RejectsGarbageToken(t *testing.T) {
	router := newTestRouter(t, &mockAccountOps{})

	w := doJSON(t, router, http.MethodGet, "/api/v1/users/current-user", nil,
		&http.Cookie{Name: AccessTokenCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ---- logout ----

func TestLogout_ClearsCookies(t *testing.T) {
	ops := &mockAccountOps{
		logoutFn: func(ident services.Identity) error {
			assert.Equal(t, "u-1", ident.UserID)
			return nil
		},
	}
	router := newTestRouter(t, ops)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/logout", nil,
		&http.Cookie{Name: AccessTokenCookie, Value: accessTokenFor(t, "u-1")})

	require.Equal(t, http.StatusOK, w.Code)

	res := w.Result()
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := cookieByName(res, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}

// ---- profile mutation ----

func TestChangePassword(t *testing.T) {
	ops := &mockAccountOps{
		changePasswordFn: func(ident services.Identity, oldPw, newPw string) error {
			assert.Equal(t, "old", oldPw)
			assert.Equal(t, "new", newPw)
			return nil
		},
	}
	router := newTestRouter(t, ops)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "old", "newPassword": "new"},
		&http.Cookie{Name: AccessTokenCookie, Value: accessTokenFor(t, "u-1")})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "password changed successfully", decodeBody(t, w)["message"])
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	ops := &mockAccountOps{
		changePasswordFn: func(services.Identity, string, string) error {
			return common.NewValidation("invalid password")
		},
	}
	router := newTestRouter(t, ops)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "x", "newPassword": "y"},
		&http.Cookie{Name: AccessTokenCookie, Value: accessTokenFor(t, "u-1")})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateDetails(t *testing.T) {
	ops := &mockAccountOps{
		updateDetailsFn: func(ident services.Identity, fullName, email string) (*models.PublicUser, error) {
			assert.Equal(t, "Alice B", fullName)
			assert.Empty(t, email)
			u := publicAlice()
			u.FullName = fullName
			return u, nil
		},
	}
	router := newTestRouter(t, ops)

	w := doJSON(t, router, http.MethodPatch, "/api/v1/users/update-account",
		map[string]string{"fullName": "Alice B"},
		&http.Cookie{Name: AccessTokenCookie, Value: accessTokenFor(t, "u-1")})

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "Alice B", data["fullName"])
}

func TestUpdateAvatar_SpoolsAnyFieldName(t *testing.T) {
	var gotPath string
	ops := &mockAccountOps{
		updateAvatarFn: func(ident services.Identity, localPath string) (*models.PublicUser, error) {
			gotPath = localPath
			return publicAlice(), nil
		},
	}
	router := newTestRouter(t, ops)

	body, contentType := multipartBody(t, nil, map[string]string{"whatever": "new.png"})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: accessTokenFor(t, "u-1")})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, gotPath)
	_, statErr := os.Stat(gotPath)
	assert.True(t, os.IsNotExist(statErr), "spooled file removed after the request")
}

func TestUpdateCoverImage_NoFile(t *testing.T) {
	ops := &mockAccountOps{
		updateCoverFn: func(ident services.Identity, localPath string) (*models.PublicUser, error) {
			require.Empty(t, localPath)
			return nil, common.NewValidation("file path missing")
		},
	}
	router := newTestRouter(t, ops)

	body, contentType := multipartBody(t, map[string]string{"unused": "x"}, nil)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/cover-image", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: accessTokenFor(t, "u-1")})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// Package api is the HTTP transport of the account subsystem: chi routes,
// multipart intake, session cookies, and the uniform response envelope.
// Handlers validate only request shape; semantics live in the service.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dberezin/vidhub/internal/filex"
	"github.com/dberezin/vidhub/internal/logging"
	"github.com/dberezin/vidhub/internal/server/config"
	"github.com/dberezin/vidhub/internal/server/models"
	"github.com/dberezin/vidhub/internal/server/services"
)

// AccountOperations is the service surface the handler consumes.
type AccountOperations interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, ident services.Identity) error
	Refresh(ctx context.Context, presented string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, ident services.Identity, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, ident services.Identity) (*models.PublicUser, error)
	UpdateDetails(ctx context.Context, ident services.Identity, fullName, email string) (*models.PublicUser, error)
	UpdateAvatar(ctx context.Context, ident services.Identity, localPath string) (*models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, ident services.Identity, localPath string) (*models.PublicUser, error)
}

// AccountHandler translates HTTP requests into service calls.
type AccountHandler struct {
	service      AccountOperations
	logger       logging.Logger
	cookies      CookieOptions
	accessSecret []byte
	uploadDir    string
}

func NewAccountHandler(service AccountOperations, logger logging.Logger, cfg *config.Config, uploadDir string) *AccountHandler {
	return &AccountHandler{
		service:      service,
		logger:       logger,
		cookies:      CookieOptions{HTTPOnly: true, Secure: cfg.CookieSecure},
		accessSecret: []byte(cfg.AccessTokenSecret),
		uploadDir:    uploadDir,
	}
}

// Routes returns the router for account endpoints.
func (h *AccountHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh-token", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(h.withAuth)
		r.Post("/logout", h.Logout)
		r.Get("/current-user", h.CurrentUser)
		r.Post("/change-password", h.ChangePassword)
		r.Patch("/update-account", h.UpdateDetails)
		r.Patch("/avatar", h.UpdateAvatar)
		r.Patch("/cover-image", h.UpdateCoverImage)
	})

	return r
}

// Register handles POST /register (multipart: text fields plus an `avatar`
// part and an optional `coverImage` part).
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		BadRequest(w, "invalid multipart form")
		return
	}

	avatarPath, err := h.spoolFormFile(r, "avatar")
	if err != nil {
		h.logger.Error(r.Context(), "spooling avatar failed", "error", err)
		Error(w, err)
		return
	}
	defer removeIfSet(avatarPath)

	coverPath, err := h.spoolFormFile(r, "coverImage")
	if err != nil {
		h.logger.Error(r.Context(), "spooling cover image failed", "error", err)
		Error(w, err)
		return
	}
	defer removeIfSet(coverPath)

	user, err := h.service.Register(r.Context(), services.RegisterInput{
		Username:       r.FormValue("username"),
		FullName:       r.FormValue("fullName"),
		Email:          r.FormValue("email"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusCreated, user, "user registered successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /login: sets both session cookies and returns the
// sanitized user plus the token pair.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		Error(w, err)
		return
	}

	setAuthCookies(w, &services.TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, h.cookies)
	JSON(w, http.StatusOK, res, "user logged in successfully")
}

// Logout handles POST /logout: clears the stored refresh token and both
// cookies.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		Unauthorized(w, "unauthorized request")
		return
	}

	if err := h.service.Logout(r.Context(), ident); err != nil {
		Error(w, err)
		return
	}

	clearAuthCookies(w, h.cookies)
	JSON(w, http.StatusOK, struct{}{}, "user logged out")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /refresh-token. The token comes from the cookie or,
// failing that, the request body.
func (h *AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" && r.Body != nil {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = req.RefreshToken
		}
	}

	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		Error(w, err)
		return
	}

	setAuthCookies(w, pair, h.cookies)
	JSON(w, http.StatusOK, pair, "access token refreshed")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword handles POST /change-password.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		Unauthorized(w, "unauthorized request")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.service.ChangePassword(r.Context(), ident, req.OldPassword, req.NewPassword); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, struct{}{}, "password changed successfully")
}

// CurrentUser handles GET /current-user.
func (h *AccountHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		Unauthorized(w, "unauthorized request")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), ident)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, user, "current user fetched")
}

type updateDetailsRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// UpdateDetails handles PATCH /update-account.
func (h *AccountHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		Unauthorized(w, "unauthorized request")
		return
	}

	var req updateDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	user, err := h.service.UpdateDetails(r.Context(), ident, req.FullName, req.Email)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, user, "account details updated")
}

// UpdateAvatar handles PATCH /avatar (single file part).
func (h *AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, h.service.UpdateAvatar, "avatar updated successfully")
}

// UpdateCoverImage handles PATCH /cover-image (single file part).
func (h *AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, h.service.UpdateCoverImage, "cover image updated successfully")
}

func (h *AccountHandler) updateMedia(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, ident services.Identity, localPath string) (*models.PublicUser, error),
	message string) {

	ident, ok := IdentityFrom(r.Context())
	if !ok {
		Unauthorized(w, "unauthorized request")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		BadRequest(w, "invalid multipart form")
		return
	}

	localPath := ""
	if fh := firstFilePart(r); fh != nil {
		path, err := filex.SaveUpload(h.uploadDir, fh)
		if err != nil {
			h.logger.Error(r.Context(), "spooling upload failed", "error", err)
			Error(w, err)
			return
		}
		localPath = path
		defer removeIfSet(localPath)
	}

	user, err := op(r.Context(), ident, localPath)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, user, message)
}

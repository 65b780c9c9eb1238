// Package services contains the account business logic: registration, login,
// logout, token rotation, and profile/media mutation. Persistence is
// delegated to the users repository, binary assets to the storage uploader;
// the service itself holds no state between requests.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/dberezin/vidhub/internal/common"
	"github.com/dberezin/vidhub/internal/logging"
	"github.com/dberezin/vidhub/internal/server/auth"
	"github.com/dberezin/vidhub/internal/server/config"
	"github.com/dberezin/vidhub/internal/server/models"
	"github.com/dberezin/vidhub/internal/server/repositories/users"
	"github.com/dberezin/vidhub/internal/server/storage"
)

// TokenPair bundles a short-lived access token and a long-lived refresh
// token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Identity is the authenticated caller, established upstream by the session
// middleware and passed explicitly into every operation that needs it.
type Identity struct {
	UserID string
}

// RegisterInput carries the registration fields plus the local paths of the
// spooled media files. CoverImagePath may be empty.
type RegisterInput struct {
	Username       string
	FullName       string
	Email          string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginResult is the login response body: the sanitized user plus both
// tokens (the same values also travel as cookies).
type LoginResult struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

// AccountService implements the nine account operations.
type AccountService struct {
	users           users.Repository
	uploader        storage.Uploader
	logger          logging.Logger
	accessSecret    []byte
	refreshSecret   []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
}

func NewAccountService(repo users.Repository, uploader storage.Uploader, logger logging.Logger, cfg *config.Config) *AccountService {
	return &AccountService{
		users:           repo,
		uploader:        uploader,
		logger:          logger,
		accessSecret:    []byte(cfg.AccessTokenSecret),
		refreshSecret:   []byte(cfg.RefreshTokenSecret),
		accessValidity:  cfg.AccessTokenValidityDuration,
		refreshValidity: cfg.RefreshTokenValidityDuration,
	}
}

// Register validates the input, uploads the media, and persists the user.
// The avatar must upload before anything is written; a cover-image upload
// failure degrades to an empty cover URL and is only logged.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	fullName := strings.TrimSpace(in.FullName)
	email := strings.TrimSpace(in.Email)
	password := strings.TrimSpace(in.Password)

	if username == "" || fullName == "" || email == "" || password == "" {
		return nil, common.NewValidation("all fields are required")
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, common.NewInternal("something went wrong while registering the user", err)
	}
	if exists {
		return nil, common.NewConflict("user already exists")
	}

	if in.AvatarPath == "" {
		return nil, common.NewValidation("avatar is required")
	}

	avatarURL, err := s.uploader.Upload(ctx, in.AvatarPath)
	if err != nil || avatarURL == "" {
		return nil, common.NewValidation("avatar upload failed")
	}

	coverImageURL := ""
	if in.CoverImagePath != "" {
		coverImageURL, err = s.uploader.Upload(ctx, in.CoverImagePath)
		if err != nil {
			// Optional asset: the caller still gets an account, operators
			// get the cause.
			s.logger.Warn(ctx, "cover image upload failed", "username", username, "error", err)
			coverImageURL = ""
		}
	}

	created, err := s.users.Create(ctx, &models.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
	}, password)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.NewConflict("user already exists")
		}
		return nil, common.NewInternal("something went wrong while registering the user", err)
	}

	reread, err := s.users.GetByID(ctx, created.ID)
	if err != nil {
		return nil, common.NewInternal("something went wrong while registering the user", err)
	}

	return reread.Public(), nil
}

// Login verifies credentials and issues a fresh token pair, persisting the
// refresh token on the user record.
func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, common.NewValidation("username required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewNotFound("user not found")
		}
		return nil, common.NewInternal("something went wrong while logging in", err)
	}

	if !s.users.VerifyPassword(user.PasswordHash, password) {
		return nil, common.NewUnauthorized("invalid user credentials")
	}

	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Logout clears the stored refresh token. No token validation happens here;
// the caller's identity comes from the session middleware.
func (s *AccountService) Logout(ctx context.Context, ident Identity) error {
	if err := s.users.SetRefreshToken(ctx, ident.UserID, nil); err != nil {
		return common.NewInternal("something went wrong while logging out", err)
	}
	return nil
}

// Refresh rotates the token pair. The presented token must verify against
// the refresh secret and byte-equal the stored credential; a token rotated
// out by a later login or refresh is rejected.
func (s *AccountService) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	if presented == "" {
		return nil, common.NewUnauthorized("unauthorized request")
	}

	userID, err := auth.ParseRefreshToken(presented, s.refreshSecret)
	if err != nil {
		// The verification library's message is the one piece of internal
		// detail deliberately passed through.
		return nil, common.NewUnauthorized(err.Error())
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, common.NewUnauthorized("invalid refresh token")
	}

	if !user.RefreshToken.Valid ||
		subtle.ConstantTimeCompare([]byte(user.RefreshToken.String), []byte(presented)) != 1 {
		return nil, common.NewUnauthorized("refresh token is expired or used")
	}

	return s.issueTokenPair(ctx, user.ID)
}

// ChangePassword verifies the old password and stores a new hash.
func (s *AccountService) ChangePassword(ctx context.Context, ident Identity, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewNotFound("user not found")
		}
		return common.NewInternal("something went wrong while changing password", err)
	}

	if !s.users.VerifyPassword(user.PasswordHash, oldPassword) {
		return common.NewValidation("invalid password")
	}

	if err := s.users.SetPassword(ctx, ident.UserID, newPassword); err != nil {
		return common.NewInternal("something went wrong while changing password", err)
	}
	return nil
}

// CurrentUser returns the caller's sanitized record.
func (s *AccountService) CurrentUser(ctx context.Context, ident Identity) (*models.PublicUser, error) {
	user, err := s.users.GetByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewNotFound("user not found")
		}
		return nil, common.NewInternal("something went wrong while fetching user", err)
	}
	return user.Public(), nil
}

// UpdateDetails merges the provided profile fields. At least one must be
// present.
func (s *AccountService) UpdateDetails(ctx context.Context, ident Identity, fullName, email string) (*models.PublicUser, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" && email == "" {
		return nil, common.NewValidation("fields required")
	}

	user, err := s.users.UpdateDetails(ctx, ident.UserID, fullName, email)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.NewConflict("email already in use")
		}
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewNotFound("user not found")
		}
		return nil, common.NewInternal("something went wrong while updating account", err)
	}
	return user.Public(), nil
}

// UpdateAvatar uploads the new avatar and persists its URL.
func (s *AccountService) UpdateAvatar(ctx context.Context, ident Identity, localPath string) (*models.PublicUser, error) {
	return s.updateMedia(ctx, ident, localPath, s.users.SetAvatarURL)
}

// UpdateCoverImage uploads the new cover image and persists its URL.
func (s *AccountService) UpdateCoverImage(ctx context.Context, ident Identity, localPath string) (*models.PublicUser, error) {
	return s.updateMedia(ctx, ident, localPath, s.users.SetCoverImageURL)
}

func (s *AccountService) updateMedia(ctx context.Context, ident Identity, localPath string,
	persist func(ctx context.Context, id string, url string) (*models.User, error)) (*models.PublicUser, error) {

	if localPath == "" {
		return nil, common.NewValidation("file path missing")
	}

	url, err := s.uploader.Upload(ctx, localPath)
	if err != nil || url == "" {
		return nil, common.NewInternal("error while uploading", err)
	}

	user, err := persist(ctx, ident.UserID, url)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewNotFound("user not found")
		}
		return nil, common.NewInternal("something went wrong while updating media", err)
	}
	return user.Public(), nil
}

// issueTokenPair mints both tokens for the user and persists the refresh
// token (credential-only write). Every failure collapses into one opaque
// internal error; the cause is logged, never surfaced.
func (s *AccountService) issueTokenPair(ctx context.Context, userID string) (*TokenPair, error) {
	fail := func(err error) (*TokenPair, error) {
		s.logger.Error(ctx, "token generation failed", "user_id", userID, "error", err)
		return nil, common.NewInternal("something went wrong while generating tokens", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fail(err)
	}

	access, err := auth.GenerateAccessToken(user.ID, user.Username, user.Email, user.FullName, s.accessSecret, s.accessValidity)
	if err != nil {
		return fail(err)
	}

	refresh, err := auth.GenerateRefreshToken(user.ID, s.refreshSecret, s.refreshValidity)
	if err != nil {
		return fail(err)
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, &refresh); err != nil {
		return fail(err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

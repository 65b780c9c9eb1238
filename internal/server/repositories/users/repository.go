package users

import (
	"context"

	"github.com/dberezin/vidhub/internal/server/models"
)

// Repository is the durable user store. Password hashing and verification
// live behind this boundary; services only ever see hashes, never compute
// them. SetRefreshToken and SetPassword are credential-only writes that
// touch nothing else on the record.
type Repository interface {
	Create(ctx context.Context, user *models.User, password string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	SetRefreshToken(ctx context.Context, id string, token *string) error
	SetPassword(ctx context.Context, id string, password string) error
	UpdateDetails(ctx context.Context, id string, fullName, email string) (*models.User, error)
	SetAvatarURL(ctx context.Context, id string, url string) (*models.User, error)
	SetCoverImageURL(ctx context.Context, id string, url string) (*models.User, error)
	VerifyPassword(hash, password string) bool
}

// Package auth issues and verifies the two JWT kinds of the session model:
// a short-lived access token carrying the user's public identity and a
// longer-lived refresh token carrying only the user id. Both are HS256 and
// signed with separate secrets.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are embedded in access tokens and verified per request by the
// session middleware.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// RefreshClaims carry only the user identity.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

func GenerateAccessToken(userID, username, email, fullName string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID:   userID,
		Username: username,
		Email:    email,
		FullName: fullName,
	})

	return token.SignedString(secretKey)
}

func GenerateRefreshToken(userID string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID: userID,
	})

	return token.SignedString(secretKey)
}

// ParseAccessToken verifies signature and expiry and returns the claims.
func ParseAccessToken(tokenString string, secretKey []byte) (*AccessClaims, error) {
	claims := &AccessClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	return claims, nil
}

// ParseRefreshToken verifies signature and expiry and returns the embedded
// user id. The jwt library's error is returned as-is; its message is the one
// surfaced to callers on refresh failures.
func ParseRefreshToken(tokenString string, secretKey []byte) (string, error) {
	claims := &RefreshClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	return claims.UserID, nil
}

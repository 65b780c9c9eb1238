package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dberezin/vidhub/internal/server/auth"
	"github.com/dberezin/vidhub/internal/server/services"
)

type ctxKey string

const identityKey ctxKey = "identity"

// withAuth verifies the access token (cookie first, then Authorization
// bearer header) and injects the caller's Identity into the request
// context. Operations downstream receive the identity explicitly.
func (h *AccountHandler) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(AccessTokenCookie); err == nil {
			token = c.Value
		}
		if token == "" {
			header := r.Header.Get("Authorization")
			if after, ok := strings.CutPrefix(header, "Bearer "); ok {
				token = after
			}
		}
		if token == "" {
			Unauthorized(w, "unauthorized request")
			return
		}

		claims, err := auth.ParseAccessToken(token, h.accessSecret)
		if err != nil {
			Unauthorized(w, "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, services.Identity{UserID: claims.UserID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom extracts the authenticated identity set by withAuth.
func IdentityFrom(ctx context.Context) (services.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(services.Identity)
	return ident, ok
}

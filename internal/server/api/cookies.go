package api

import (
	"net/http"

	"github.com/dberezin/vidhub/internal/server/services"
)

// Session cookie names. Both cookies are HttpOnly; Secure comes from config
// so local plain-HTTP development stays possible.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieOptions is built once at process setup and threaded into the
// handler; nothing reads cookie policy from ambient state.
type CookieOptions struct {
	HTTPOnly bool
	Secure   bool
}

func setAuthCookies(w http.ResponseWriter, pair *services.TokenPair, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
	})
}

func clearAuthCookies(w http.ResponseWriter, opts CookieOptions) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: opts.HTTPOnly,
			Secure:   opts.Secure,
		})
	}
}

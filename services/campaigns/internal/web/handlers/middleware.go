package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/communitycare/carefund/services/campaigns/internal/auth"
	"github.com/communitycare/carefund/services/campaigns/internal/token"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsContextKey stores the admin's token claims in request context.
	ClaimsContextKey contextKey = "claims"

	sessionCookie = "admin_session"
)

// AdminMiddleware requires an admin session, from the session cookie or an
// Authorization: Bearer header. API requests get 401 JSON; page requests
// are redirected to the login page.
func AdminMiddleware(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authService.Authenticate(sessionToken(r))
			if err != nil {
				if strings.HasPrefix(r.URL.Path, "/api/") || wantsJSON(r) {
					jsonError(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				clearSessionCookie(w)
				http.Redirect(w, r, "/admin", http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaimsFromContext extracts the admin's claims from request context.
func GetClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*token.Claims)
	return claims, ok
}

// sessionToken returns the bearer token, falling back to the session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey struct{}

// CurrentUser describes the authenticated caller attached to a request context.
type CurrentUser struct {
	Username string
	Role     string
}

// UserChecker verifies that a token subject is still a known user.
type UserChecker interface {
	UserExists(ctx context.Context, username string) (bool, error)
}

// FromContext returns the authenticated user, if any.
func FromContext(ctx context.Context) (CurrentUser, bool) {
	u, ok := ctx.Value(contextKey{}).(CurrentUser)
	return u, ok
}

// Middleware validates the Authorization bearer token and attaches the
// current user to the request context.
func Middleware(t *Tokens, users UserChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) {
				unauthorized(w)
				return
			}

			claims, err := t.Verify(header[len(prefix):])
			if err != nil {
				unauthorized(w)
				return
			}

			exists, err := users.UserExists(r.Context(), claims.Subject)
			if err != nil || !exists {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, CurrentUser{
				Username: claims.Subject,
				Role:     claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose authenticated user is not an admin.
// It must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := FromContext(r.Context())
		if !ok || u.Role != "admin" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "invalid authentication credentials"})
}

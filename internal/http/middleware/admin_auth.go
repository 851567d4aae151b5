package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cosmetica/clinic-booking/internal/auth"
)

type contextKey string

const adminSessionKey contextKey = "adminSession"

// SessionValidator resolves a bearer token to an admin session.
type SessionValidator interface {
	CurrentSession(ctx context.Context, token string) (*auth.Session, error)
}

// AdminSession rejects admin requests without a live session.
func AdminSession(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions == nil {
				jsonError(w, http.StatusUnauthorized, "admin auth disabled")
				return
			}
			token, ok := BearerToken(r)
			if !ok {
				jsonError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			session, err := sessions.CurrentSession(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrNoSession) {
					jsonError(w, http.StatusServiceUnavailable, "session check failed")
					return
				}
				jsonError(w, http.StatusUnauthorized, "invalid session")
				return
			}
			ctx := context.WithValue(r.Context(), adminSessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminSessionFromContext returns the session stored by AdminSession.
func AdminSessionFromContext(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(adminSessionKey).(*auth.Session)
	return session, ok
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

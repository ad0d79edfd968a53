package httpserver

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// sessionCookieName identifies the player across requests.
const sessionCookieName = "paper_session"

type contextKey string

const sessionIDKey contextKey = "session_id"

// sessionMiddleware ensures every API request carries a valid session ID
// cookie, issuing a fresh one when the cookie is missing or malformed.
// The session ID scopes the per-player seen set.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				sessionID = cookie.Value
			}
		}

		if sessionID == "" {
			sessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionIDFromContext returns the session ID set by sessionMiddleware.
func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

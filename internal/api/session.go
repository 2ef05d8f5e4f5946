package api

import (
	"context"
	"net/http"

	"github.com/dunamismax/boothflow/internal/id"
)

// SessionCookie names the visitor session that scopes the event page upload.
const SessionCookie = "boothflow_session"

type sessionKey struct{}

func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := ""
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			session = cookie.Value
		}
		if session == "" {
			session = id.Session()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    session,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func sessionFrom(ctx context.Context) string {
	session, _ := ctx.Value(sessionKey{}).(string)
	return session
}

package server

import (
	"context"
	"net/http"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/session"
)

type contextKey string

const (
	callerContextKey    contextKey = "caller"
	sessionIDContextKey contextKey = "session_id"
)

// recover is the last-resort handler: anything a route panics with becomes
// a generic 500 instead of crossing the HTTP boundary raw.
func (s *Server) recover(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked", "panic", rec, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, errorBody{
					Success: false,
					Error:   "internal_error",
				})
			}
		}()
		next(w, r)
	})
}

// requireSession gates a route behind an authenticated session. The
// resolved caller (a per-request copy) and the session id are placed on
// the request context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			writeError(w, s.logger, apperr.New(apperr.KindUnauthenticated, "not signed in"))
			return
		}
		caller, err := s.sessions.Caller(cookie.Value)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		ctx := context.WithValue(r.Context(), callerContextKey, caller)
		ctx = context.WithValue(ctx, sessionIDContextKey, cookie.Value)
		next(w, r.WithContext(ctx))
	}
}

// callerFrom returns the caller placed on the context by requireSession.
func callerFrom(ctx context.Context) *session.Caller {
	caller, _ := ctx.Value(callerContextKey).(*session.Caller)
	return caller
}

// sessionIDFrom returns the session id placed on the context by
// requireSession.
func sessionIDFrom(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDContextKey).(string)
	return sid
}

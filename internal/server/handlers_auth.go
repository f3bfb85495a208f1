package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/google"
	"github.com/ferneysalazar/contractorstest-gmail/internal/logging"
	"github.com/ferneysalazar/contractorstest-gmail/internal/session"
)

// localUserNamespace seeds the deterministic local-user-id derivation so
// repeat logins by the same Google user reuse their stored credential.
var localUserNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// localUserID mints the opaque id keying stored credentials. It is stable
// per provider user and never equals the provider's own id.
func localUserID(providerUserID string) string {
	return uuid.NewSHA1(localUserNamespace, []byte(providerUserID)).String()
}

// handleLogin starts the OAuth flow: mint a per-flow state, park it in a
// short-lived cookie and redirect to the consent URL.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := google.NewState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusFound)
}

// handleCallback finishes the flow: verify state, exchange the code,
// fetch the profile, establish the session and persist the credential.
// Any failure leaves the session anonymous.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		writeError(w, s.logger, apperr.New(apperr.KindUnauthenticated, "provider denied authorization: %s", errParam))
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != q.Get("state") {
		writeError(w, s.logger, apperr.New(apperr.KindUnauthenticated, "state mismatch on OAuth callback"))
		return
	}
	// state is single-use
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/", MaxAge: -1})

	set, err := s.auth.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	profile, err := s.auth.Profile(r.Context(), set)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	localID := localUserID(profile.ID)
	if err := s.store.Save(localID, set); err != nil {
		writeError(w, s.logger, err)
		return
	}

	sid := session.NewSessionID()
	s.sessions.Begin(sid, &session.Caller{
		ProviderUserID: profile.ID,
		Email:          profile.Email,
		DisplayName:    profile.DisplayName,
		LocalUserID:    localID,
		TokenSet:       set,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.Info("user signed in", logging.UserHash(profile.Email))
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout destroys the session and clears the cookie. Idempotent.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.sessions.End(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusFound)
}

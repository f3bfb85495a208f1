package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalUserID(t *testing.T) {
	id := localUserID("google-123")

	// stable across logins, opaque, never the provider's own id
	assert.Equal(t, id, localUserID("google-123"))
	assert.NotEqual(t, id, "google-123")
	assert.NotEqual(t, id, localUserID("google-456"))
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginRedirectsToConsent(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, httptest.NewRequest("GET", "/auth/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", loc.Host)
	assert.Equal(t, "client-id", loc.Query().Get("client_id"))
	assert.Equal(t, "offline", loc.Query().Get("access_type"))

	state := findCookie(t, rec, stateCookieName)
	require.NotNil(t, state, "login must park the state in a cookie")
	assert.Equal(t, state.Value, loc.Query().Get("state"))
	assert.True(t, state.HttpOnly)
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/auth/google/callback?state=forged&code=c1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "genuine"})
	rec := do(t, s, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeJSON(t, rec)["error"])
}

func TestCallbackRejectsMissingStateCookie(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, httptest.NewRequest("GET", "/auth/google/callback?state=s1&code=c1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallbackReportsProviderDenial(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, httptest.NewRequest("GET", "/auth/google/callback?error=access_denied", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["details"], "access_denied")
}

func TestCallbackEstablishesSession(t *testing.T) {
	s := newTestServer(t, mockedTransport(t))

	httpmock.RegisterResponder("POST", `=~^https://oauth2\.googleapis\.com/token`,
		httpmock.NewStringResponder(200, `{
			"access_token": "at-1",
			"refresh_token": "rt-1",
			"token_type": "Bearer",
			"expires_in": 3600
		}`))
	httpmock.RegisterResponder("GET", `=~oauth2/v2/userinfo`,
		httpmock.NewStringResponder(200, `{
			"id": "google-1",
			"email": "user@example.com",
			"name": "Test User"
		}`))

	req := httptest.NewRequest("GET", "/auth/google/callback?state=s1&code=c1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s1"})
	rec := do(t, s, req)

	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))

	sessionCookie := findCookie(t, rec, sessionCookieName)
	require.NotNil(t, sessionCookie, "callback must set the session cookie")
	assert.True(t, s.sessions.IsAuthenticated(sessionCookie.Value))

	caller, err := s.sessions.Caller(sessionCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", caller.Email)
	assert.Equal(t, localUserID("google-1"), caller.LocalUserID)

	// the credential is persisted for later delegated use
	stored, ok, err := s.store.Load(caller.LocalUserID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "at-1", stored.AccessToken)
	assert.Equal(t, "rt-1", stored.RefreshToken)

	// the state cookie is single-use
	state := findCookie(t, rec, stateCookieName)
	require.NotNil(t, state)
	assert.Negative(t, state.MaxAge)
}

func TestLogoutEndsSession(t *testing.T) {
	s := newTestServer(t)
	cookie := signIn(t, s)
	require.True(t, s.sessions.IsAuthenticated(cookie.Value))

	req := httptest.NewRequest("GET", "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := do(t, s, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.False(t, s.sessions.IsAuthenticated(cookie.Value))

	cleared := findCookie(t, rec, sessionCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	// logging out twice is harmless
	rec = do(t, s, req)
	assert.Equal(t, http.StatusFound, rec.Code)
}

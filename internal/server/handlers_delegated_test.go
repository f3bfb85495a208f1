package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferneysalazar/contractorstest-gmail/internal/token"
)

// grantAndStore approves userID for targetEmail and stores a fresh
// credential for them.
func grantAndStore(t *testing.T, s *Server, userID, targetEmail string) {
	t.Helper()
	require.NoError(t, s.grants.Grant(userID, targetEmail))
	require.NoError(t, s.store.Save(userID, token.Set{
		AccessToken:  "at",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(time.Hour),
	}))
}

func TestDelegatedRequiresParameters(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		url  string
	}{
		{"no userId", "/api/delegated/emails?targetEmail=boss@example.com"},
		{"no targetEmail", "/api/delegated/emails?userId=u1"},
		{"bad targetEmail", "/api/delegated/emails?userId=u1&targetEmail=not-an-address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, httptest.NewRequest("GET", tt.url, nil))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation_error", decodeJSON(t, rec)["error"])
		})
	}
}

func TestDelegatedRefusedWithoutGrant(t *testing.T) {
	s := newTestServer(t)

	// no grants file exists at all: verification fails closed
	rec := do(t, s, httptest.NewRequest("GET",
		"/api/delegated/emails?userId=u1&targetEmail=boss@example.com", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeJSON(t, rec)["error"])

	// a grant for a different target does not help
	require.NoError(t, s.grants.Grant("u1", "other@example.com"))
	rec = do(t, s, httptest.NewRequest("GET",
		"/api/delegated/emails?userId=u1&targetEmail=boss@example.com", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDelegatedRefusedWithoutStoredCredential(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.grants.Grant("u1", "boss@example.com"))

	rec := do(t, s, httptest.NewRequest("GET",
		"/api/delegated/emails?userId=u1&targetEmail=boss@example.com", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "unauthenticated", body["error"])
	assert.Contains(t, body["details"], "no stored credential")
}

func TestDelegatedList(t *testing.T) {
	s := newTestServer(t, mockedTransport(t))
	grantAndStore(t, s, "u1", "boss@example.com")

	httpmock.RegisterResponder("GET", `=~^https://gmail\.googleapis\.com/gmail/v1/users/boss(%40|@)example\.com/messages\?`,
		httpmock.NewStringResponder(200, `{"messages": [{"id": "m1"}]}`))
	httpmock.RegisterResponder("GET", `=~^https://gmail\.googleapis\.com/gmail/v1/users/boss(%40|@)example\.com/messages/m1`,
		httpmock.NewStringResponder(200, `{
			"id": "m1",
			"payload": {"headers": [{"name": "Subject", "value": "Quarterly numbers"}]}
		}`))

	rec := do(t, s, httptest.NewRequest("GET",
		"/api/delegated/emails?userId=u1&targetEmail=boss@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	messages := body["emails"].(map[string]any)["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "Quarterly numbers", messages[0].(map[string]any)["subject"])
}

func TestDelegatedListRefreshesExpiredCredential(t *testing.T) {
	s := newTestServer(t, mockedTransport(t))
	require.NoError(t, s.grants.Grant("u1", "boss@example.com"))
	require.NoError(t, s.store.Save("u1", token.Set{
		AccessToken:  "at-stale",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	httpmock.RegisterResponder("POST", `=~^https://oauth2\.googleapis\.com/token`,
		httpmock.NewStringResponder(200, `{"access_token": "at-fresh", "token_type": "Bearer", "expires_in": 3600}`))
	httpmock.RegisterResponder("GET", `=~^https://gmail\.googleapis\.com/gmail/v1/users/boss(%40|@)example\.com/messages\?`,
		httpmock.NewStringResponder(200, `{"messages": []}`))

	rec := do(t, s, httptest.NewRequest("GET",
		"/api/delegated/emails?userId=u1&targetEmail=boss@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the refreshed credential must be persisted
	recStored, ok, err := s.store.Load("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "at-fresh", recStored.AccessToken)
	assert.Equal(t, "rt", recStored.RefreshToken)
}

func TestDelegatedGet(t *testing.T) {
	s := newTestServer(t, mockedTransport(t))
	grantAndStore(t, s, "u1", "boss@example.com")

	httpmock.RegisterResponder("GET", `=~^https://gmail\.googleapis\.com/gmail/v1/users/boss(%40|@)example\.com/messages/m1`,
		httpmock.NewStringResponder(200, `{
			"id": "m1",
			"payload": {
				"mimeType": "text/plain",
				"headers": [{"name": "Subject", "value": "Hello"}],
				"body": {"data": "Ym9zcyBib2R5"}
			}
		}`))

	rec := do(t, s, httptest.NewRequest("GET",
		"/api/delegated/emails/m1?userId=u1&targetEmail=boss@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	email := decodeJSON(t, rec)["email"].(map[string]any)
	assert.Equal(t, "boss body", email["body"])
}

func TestDelegatedSend(t *testing.T) {
	s := newTestServer(t, mockedTransport(t))
	grantAndStore(t, s, "u1", "boss@example.com")

	httpmock.RegisterResponder("POST", `=~^https://gmail\.googleapis\.com/gmail/v1/users/boss(%40|@)example\.com/messages/send`,
		httpmock.NewStringResponder(200, `{"id": "sent-1"}`))

	payload := `{"to": "to@example.com", "subject": "Hi", "body": "hello"}`
	rec := do(t, s, httptest.NewRequest("POST",
		"/api/delegated/send?userId=u1&targetEmail=boss@example.com",
		strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeJSON(t, rec)
	assert.Equal(t, "sent-1", body["data"].(map[string]any)["id"])
}

func TestDelegatedSendAllowsMatchingFrom(t *testing.T) {
	s := newTestServer(t, mockedTransport(t))
	grantAndStore(t, s, "u1", "boss@example.com")

	httpmock.RegisterResponder("POST", `=~^https://gmail\.googleapis\.com/gmail/v1/users/boss(%40|@)example\.com/messages/send`,
		httpmock.NewStringResponder(200, `{"id": "sent-2"}`))

	payload := `{"from": "The Boss <Boss@Example.com>", "to": "to@example.com", "subject": "Hi", "body": "hello"}`
	rec := do(t, s, httptest.NewRequest("POST",
		"/api/delegated/send?userId=u1&targetEmail=boss@example.com",
		strings.NewReader(payload)))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestDelegatedSendRejectsForeignFrom(t *testing.T) {
	s := newTestServer(t, mockedTransport(t))
	grantAndStore(t, s, "u1", "boss@example.com")

	payload := `{"from": "attacker@example.com", "to": "to@example.com", "subject": "Hi", "body": "hello"}`
	rec := do(t, s, httptest.NewRequest("POST",
		"/api/delegated/send?userId=u1&targetEmail=boss@example.com",
		strings.NewReader(payload)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "validation_error", body["error"])
	assert.Contains(t, body["details"], "does not match target mailbox")
	assert.Equal(t, 0, httpmock.GetTotalCallCount(), "a rejected from address must never reach the provider")
}

func TestDelegatedStatus(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.grants.Grant("u1", "boss@example.com"))

	// no credential stored yet
	rec := do(t, s, httptest.NewRequest("GET",
		"/api/delegated/status?userId=u1&targetEmail=boss@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeJSON(t, rec)["data"].(map[string]any)
	assert.Equal(t, false, data["hasToken"])
	assert.NotContains(t, data, "expired")

	require.NoError(t, s.store.Save("u1", token.Set{
		AccessToken:  "at-value",
		RefreshToken: "rt-value",
		Expiry:       time.Now().Add(-time.Minute),
	}))

	rec = do(t, s, httptest.NewRequest("GET",
		"/api/delegated/status?userId=u1&targetEmail=boss@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeJSON(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["hasToken"])
	assert.Equal(t, true, data["expired"])
	assert.Equal(t, true, data["hasRefreshToken"])
	assert.NotEmpty(t, data["createdAt"])

	// token values never appear in the response
	assert.NotContains(t, rec.Body.String(), "at-value")
	assert.NotContains(t, rec.Body.String(), "rt-value")
}

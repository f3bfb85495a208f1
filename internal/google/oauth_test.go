package google

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/token"
)

func newTestAuthenticator() *Authenticator {
	return NewAuthenticator("client-id", "client-secret", "http://localhost:8080/auth/google/callback", nil)
}

// mockedContext returns a context whose oauth2 HTTP calls go through
// httpmock instead of the network.
func mockedContext(t *testing.T) context.Context {
	t.Helper()
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	return context.WithValue(context.Background(), oauth2.HTTPClient, hc)
}

func TestAuthCodeURL(t *testing.T) {
	auth := newTestAuthenticator()
	url := auth.AuthCodeURL("state-123")

	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "state=state-123")
	assert.Contains(t, url, "access_type=offline")
	assert.Contains(t, url, "gmail.send")
}

func TestNewState(t *testing.T) {
	a := NewState()
	b := NewState()

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestExchangeRequiresCode(t *testing.T) {
	auth := newTestAuthenticator()

	_, err := auth.Exchange(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestExchange(t *testing.T) {
	ctx := mockedContext(t)
	httpmock.RegisterResponder("POST", `=~^https://oauth2\.googleapis\.com/token`,
		httpmock.NewStringResponder(200, `{
			"access_token": "at-1",
			"refresh_token": "rt-1",
			"token_type": "Bearer",
			"expires_in": 3600
		}`))

	set, err := newTestAuthenticator().Exchange(ctx, "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "at-1", set.AccessToken)
	assert.Equal(t, "rt-1", set.RefreshToken)
	assert.False(t, token.IsExpired(set))
}

func TestExchangeProviderFailure(t *testing.T) {
	ctx := mockedContext(t)
	httpmock.RegisterResponder("POST", `=~^https://oauth2\.googleapis\.com/token`,
		httpmock.NewStringResponder(400, `{"error": "invalid_grant"}`))

	_, err := newTestAuthenticator().Exchange(ctx, "bad-code")
	require.Error(t, err)
	assert.Equal(t, apperr.KindProvider, apperr.KindOf(err))
}

func TestRefreshRequiresRefreshToken(t *testing.T) {
	auth := newTestAuthenticator()

	_, err := auth.Refresh(context.Background(), token.Set{AccessToken: "at-only"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestRefreshCarriesRefreshTokenForward(t *testing.T) {
	ctx := mockedContext(t)
	// Google commonly omits the refresh token on refresh responses
	httpmock.RegisterResponder("POST", `=~^https://oauth2\.googleapis\.com/token`,
		httpmock.NewStringResponder(200, `{
			"access_token": "at-new",
			"token_type": "Bearer",
			"expires_in": 3600
		}`))

	stale := token.Set{
		AccessToken:  "at-old",
		RefreshToken: "rt-keep",
		Expiry:       time.Now().Add(-time.Hour),
	}
	fresh, err := newTestAuthenticator().Refresh(ctx, stale)
	require.NoError(t, err)

	assert.Equal(t, "at-new", fresh.AccessToken)
	assert.Equal(t, "rt-keep", fresh.RefreshToken)
	assert.False(t, token.IsExpired(fresh))
}

func TestRefreshAdoptsRotatedRefreshToken(t *testing.T) {
	ctx := mockedContext(t)
	httpmock.RegisterResponder("POST", `=~^https://oauth2\.googleapis\.com/token`,
		httpmock.NewStringResponder(200, `{
			"access_token": "at-new",
			"refresh_token": "rt-rotated",
			"token_type": "Bearer",
			"expires_in": 3600
		}`))

	stale := token.Set{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		Expiry:       time.Now().Add(-time.Hour),
	}
	fresh, err := newTestAuthenticator().Refresh(ctx, stale)
	require.NoError(t, err)

	assert.Equal(t, "rt-rotated", fresh.RefreshToken)
}

func TestRefreshRevokedCredential(t *testing.T) {
	ctx := mockedContext(t)
	httpmock.RegisterResponder("POST", `=~^https://oauth2\.googleapis\.com/token`,
		httpmock.NewStringResponder(400, `{"error": "invalid_grant"}`))

	stale := token.Set{
		AccessToken:  "at-old",
		RefreshToken: "rt-revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}
	_, err := newTestAuthenticator().Refresh(ctx, stale)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

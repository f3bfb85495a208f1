// Package google drives the OAuth 2.0 exchange against Google and exposes
// token refresh for stored credentials. The Authenticator is constructed
// from explicit configuration; there is no package-level state.
package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/logging"
	"github.com/ferneysalazar/contractorstest-gmail/internal/token"
)

// Scopes requested on every consent: read, send and modify mail plus the
// caller's identity.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Profile is the identity Google reports for an authenticated user.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
}

// Authenticator performs the consent redirect, code exchange, profile
// fetch and token refresh.
type Authenticator struct {
	conf   *oauth2.Config
	logger *slog.Logger
}

// NewAuthenticator builds an Authenticator for the given OAuth client.
func NewAuthenticator(clientID, clientSecret, redirectURL string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint:     googleoauth.Endpoint,
		},
		logger: logger,
	}
}

// NewState mints a random state value for CSRF protection of one flow.
func NewState() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// AuthCodeURL returns the consent URL. Offline access plus forced approval
// guarantees a refresh token even on repeat logins.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token set.
func (a *Authenticator) Exchange(ctx context.Context, code string) (token.Set, error) {
	if code == "" {
		return token.Set{}, apperr.New(apperr.KindValidation, "authorization code is required")
	}
	t, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return token.Set{}, apperr.Wrap(apperr.KindProvider, err, "failed to exchange authorization code")
	}
	a.logger.Debug("exchanged authorization code",
		"access_token", logging.SanitizeToken(t.AccessToken),
		"has_refresh", t.RefreshToken != "")
	return token.FromOAuth2(t), nil
}

// Profile fetches the caller's id, primary email and display name using
// the freshly issued token set.
func (a *Authenticator) Profile(ctx context.Context, set token.Set) (Profile, error) {
	svc, err := oauth2api.NewService(ctx,
		option.WithTokenSource(a.conf.TokenSource(ctx, set.OAuth2())))
	if err != nil {
		return Profile{}, apperr.Wrap(apperr.KindProvider, err, "failed to create userinfo service")
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, apperr.Wrap(apperr.KindProvider, err, "failed to fetch user profile")
	}
	return Profile{ID: info.Id, Email: info.Email, DisplayName: info.Name}, nil
}

// Refresh obtains a fresh token set using the refresh token in set. The
// returned set wholly replaces the old one; when Google rotates the
// refresh token the previous value is carried forward if the response
// omits it.
func (a *Authenticator) Refresh(ctx context.Context, set token.Set) (token.Set, error) {
	if set.RefreshToken == "" {
		return token.Set{}, apperr.New(apperr.KindUnauthenticated, "stored credential has no refresh token")
	}
	t, err := a.conf.TokenSource(ctx, set.OAuth2()).Token()
	if err != nil {
		return token.Set{}, apperr.Wrap(apperr.KindUnauthenticated, err, "failed to refresh access token")
	}
	fresh := token.FromOAuth2(t)
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = set.RefreshToken
	}
	return fresh, nil
}

// TokenSource exposes an auto-refreshing source for the provider client.
func (a *Authenticator) TokenSource(ctx context.Context, set token.Set) oauth2.TokenSource {
	return a.conf.TokenSource(ctx, set.OAuth2())
}

// Package token holds the OAuth credential model and the durable
// credential store used by the delegated-access flow.
package token

import (
	"time"

	"golang.org/x/oauth2"
)

// Set is one OAuth access/refresh credential pair. A zero Expiry means the
// provider did not report one; such a set is unverifiable and IsExpired
// treats it as stale so callers refresh when they can.
type Set struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Expiry       time.Time `json:"expiresAt,omitempty"`
}

// FromOAuth2 converts a library token into a Set.
func FromOAuth2(t *oauth2.Token) Set {
	return Set{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// OAuth2 converts the Set back into a library token.
func (s Set) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.Expiry,
	}
}

// IsZero reports whether the set carries no credential at all.
func (s Set) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// IsExpired reports whether the access token should no longer be trusted.
// A set without an expiry is treated as expired: when we cannot verify
// freshness we prefer refreshing over a doomed remote call.
func IsExpired(s Set) bool {
	if s.Expiry.IsZero() {
		return true
	}
	return !time.Now().Before(s.Expiry)
}

// Record is a stored credential: the token set plus when it was written.
type Record struct {
	Set
	CreatedAt time.Time `json:"createdAt"`
}

// Package session holds authenticated callers for the lifetime of a
// browser session. A session is either anonymous or authenticated; Begin
// moves it to authenticated, End back to anonymous, nothing else does.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/logging"
	"github.com/ferneysalazar/contractorstest-gmail/internal/token"
)

// Caller is the authenticated user bound to one session. It lives only in
// process memory; durable storage happens separately in the credential
// store.
type Caller struct {
	ProviderUserID string    `json:"providerUserId"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"displayName"`
	LocalUserID    string    `json:"localUserId"`
	TokenSet       token.Set `json:"tokenSet"`
}

type entry struct {
	caller     *Caller
	lastAccess time.Time
}

// Manager maps opaque session ids to callers. Idle sessions are swept by a
// background goroutine after the configured timeout. The stored caller is
// only ever touched under the mutex; accessors hand out copies.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	timeout  time.Duration
	codec    Codec
	ticker   *time.Ticker
	done     chan struct{}
	logger   *slog.Logger
}

// NewManager creates a session manager sweeping idle sessions after
// timeout. codec serializes callers for Export/Import; nil selects
// JSONCodec.
func NewManager(timeout time.Duration, codec Codec, logger *slog.Logger) *Manager {
	if codec == nil {
		codec = JSONCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		sessions: make(map[string]*entry),
		timeout:  timeout,
		codec:    codec,
		ticker:   time.NewTicker(10 * time.Minute),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go m.sweep()
	return m
}

// NewSessionID mints an opaque session id for a cookie.
func NewSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// Begin creates or replaces the caller for sessionID. It always succeeds.
func (m *Manager) Begin(sessionID string, caller *Caller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = &entry{caller: caller, lastAccess: time.Now()}
	m.logger.Info("session established", logging.UserHash(caller.Email))
}

// IsAuthenticated reports whether sessionID has a caller.
func (m *Manager) IsAuthenticated(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// Caller returns a copy of the caller for sessionID, refreshing its idle
// timer. Handing out a copy keeps concurrent requests on one session from
// racing on the shared entry; updates go through UpdateTokenSet.
func (m *Manager) Caller(sessionID string) (*Caller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperr.New(apperr.KindUnauthenticated, "no authenticated session")
	}
	e.lastAccess = time.Now()
	c := *e.caller
	return &c, nil
}

// UpdateTokenSet replaces the token set stored for sessionID. Updating a
// session that has since ended is an authentication error.
func (m *Manager) UpdateTokenSet(sessionID string, set token.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return apperr.New(apperr.KindUnauthenticated, "no authenticated session")
	}
	e.caller.TokenSet = set
	return nil
}

// AccessToken returns the current access token for sessionID as-is. No
// freshness check happens here; expiry surfaces from the provider call.
func (m *Manager) AccessToken(sessionID string) (string, error) {
	caller, err := m.Caller(sessionID)
	if err != nil {
		return "", err
	}
	return caller.TokenSet.AccessToken, nil
}

// Export serializes the caller for sessionID through the configured codec,
// for handing a session across process boundaries.
func (m *Manager) Export(sessionID string) ([]byte, error) {
	caller, err := m.Caller(sessionID)
	if err != nil {
		return nil, err
	}
	return m.codec.Encode(caller)
}

// Import establishes a session for sessionID from a payload previously
// produced by Export.
func (m *Manager) Import(sessionID string, data []byte) error {
	caller, err := m.codec.Decode(data)
	if err != nil {
		return err
	}
	m.Begin(sessionID, caller)
	return nil
}

// End destroys the caller for sessionID. Ending an anonymous session is a
// no-op.
func (m *Manager) End(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop halts the sweep goroutine.
func (m *Manager) Stop() {
	m.ticker.Stop()
	close(m.done)
}

func (m *Manager) sweep() {
	for {
		select {
		case <-m.ticker.C:
			m.mu.Lock()
			now := time.Now()
			expired := 0
			for id, e := range m.sessions {
				if now.Sub(e.lastAccess) > m.timeout {
					delete(m.sessions, id)
					expired++
				}
			}
			m.mu.Unlock()
			if expired > 0 {
				m.logger.Info("swept idle sessions", "count", expired)
			}
		case <-m.done:
			return
		}
	}
}

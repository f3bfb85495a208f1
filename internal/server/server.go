// Package server is the HTTP surface: the OAuth redirect flow, the
// session-gated mailbox API, the delegated-access API and the health
// endpoint. Handlers translate requests into component calls and shape
// results and errors into JSON envelopes; no error leaves unformatted.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/option"

	"github.com/ferneysalazar/contractorstest-gmail/internal/config"
	"github.com/ferneysalazar/contractorstest-gmail/internal/delegation"
	"github.com/ferneysalazar/contractorstest-gmail/internal/google"
	"github.com/ferneysalazar/contractorstest-gmail/internal/session"
	"github.com/ferneysalazar/contractorstest-gmail/internal/token"
)

// Cookie names used by the auth flow.
const (
	sessionCookieName = "mailproxy_session"
	stateCookieName   = "mailproxy_oauth_state"
)

// Server wires every component behind the HTTP routes.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.Manager
	store    *token.FileStore
	grants   *delegation.Registry
	auth     *google.Authenticator
	health   *HealthChecker

	// clientOpts is appended to every Gmail service construction; tests
	// inject a stub HTTP client here.
	clientOpts []option.ClientOption

	httpServer *http.Server
}

// Option customizes a Server at construction.
type Option func(*Server)

// WithClientOptions appends Google API client options to every provider
// client the server builds.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *Server) { s.clientOpts = append(s.clientOpts, opts...) }
}

// New builds a fully wired server from explicit configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: session.NewManager(cfg.SessionTimeout, session.JSONCodec{}, logger),
		store:    token.NewFileStore(cfg.TokenFile, logger),
		grants:   delegation.NewRegistry(cfg.GrantsFile, logger),
		auth:     google.NewAuthenticator(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURL, logger),
		health:   NewHealthChecker(cfg),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler assembles the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(name, s.recover(h)))
	}

	route("GET /{$}", "root", s.handleRoot)

	route("GET /auth/google", "auth_login", s.handleLogin)
	route("GET /auth/google/callback", "auth_callback", s.handleCallback)
	route("GET /auth/logout", "auth_logout", s.handleLogout)

	route("GET /api/emails", "list_emails", s.requireSession(s.handleListEmails))
	route("GET /api/emails/{id}", "get_email", s.requireSession(s.handleGetEmail))
	route("GET /api/threads/{id}", "get_thread", s.requireSession(s.handleGetThread))
	route("POST /api/emails/send", "send_email", s.requireSession(s.handleSendEmail))

	route("GET /api/delegated/emails", "delegated_list", s.handleDelegatedList)
	route("GET /api/delegated/emails/{id}", "delegated_get", s.handleDelegatedGet)
	route("POST /api/delegated/send", "delegated_send", s.handleDelegatedSend)
	route("GET /api/delegated/status", "delegated_status", s.handleDelegatedStatus)

	mux.Handle("GET /healthz", instrument("healthz", s.health.Handler()))

	return mux
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("starting server", "addr", s.cfg.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and the session sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Stop()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleRoot reports whether the browser session is signed in.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		authenticated = s.sessions.IsAuthenticated(cookie.Value)
	}
	writeJSON(w, http.StatusOK, envelope{
		"success":       true,
		"authenticated": authenticated,
		"login":         "/auth/google",
	})
}

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ferneysalazar/contractorstest-gmail/internal/config"
	"github.com/ferneysalazar/contractorstest-gmail/internal/logging"
	"github.com/ferneysalazar/contractorstest-gmail/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		listenAddr     string
		baseURL        string
		clientID       string
		clientSecret   string
		tokenFile      string
		grantsFile     string
		metricsEnabled bool
		metricsAddr    string
		debugMode      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mailproxy HTTP server",
		Long: `Start the HTTP server providing the OAuth sign-in flow, the mailbox JSON
API, the delegated-access API and health/metrics endpoints.

Configuration:
  Google OAuth credentials are required:
    --google-client-id and --google-client-secret flags
    OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars

  All other settings default sensibly and can be overridden via flags or
  MAILPROXY_-prefixed env vars (e.g. MAILPROXY_LISTEN_ADDR).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// flags explicitly set by the user win over the environment
			if cmd.Flags().Changed("listen-addr") {
				cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("base-url") {
				cfg.BaseURL = baseURL
			}
			if cmd.Flags().Changed("google-client-id") {
				cfg.GoogleClientID = clientID
			}
			if cmd.Flags().Changed("google-client-secret") {
				cfg.GoogleClientSecret = clientSecret
			}
			if cmd.Flags().Changed("token-file") {
				cfg.TokenFile = tokenFile
			}
			if cmd.Flags().Changed("grants-file") {
				cfg.GrantsFile = grantsFile
			}
			if cmd.Flags().Changed("metrics-enabled") {
				cfg.MetricsEnabled = metricsEnabled
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debugMode
			}
			if cmd.Flags().Changed("base-url") || cmd.Flags().Changed("listen-addr") {
				cfg.RedirectURL = ""
				cfg.Derive()
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen-addr", config.DefaultListenAddr, "HTTP server address")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL used to build the OAuth redirect URL. Can also use MAILPROXY_BASE_URL env var.")
	cmd.Flags().StringVar(&clientID, "google-client-id", "", "Google OAuth client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&clientSecret, "google-client-secret", "", "Google OAuth client secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&tokenFile, "token-file", config.DefaultTokenFile, "Path to the stored-credential JSON file")
	cmd.Flags().StringVar(&grantsFile, "grants-file", config.DefaultGrantsFile, "Path to the delegation grants JSON file")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Serve Prometheus metrics on a dedicated port")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Metrics server address")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(cfg *config.Config) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		// serve anyway so /healthz can report what is missing, but make
		// the problem loud
		logger.Error("configuration incomplete, mailbox routes will fail", logging.Err(err))
	}

	srv := server.New(cfg, logger)

	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled {
		metricsServer = server.NewMetricsServer(cfg.MetricsAddr, logger)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping server")
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
		defer cancel()
		if metricsServer != nil {
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	return nil
}

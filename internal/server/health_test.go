package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthzOK(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["uptime"])

	checks := body["config"].(map[string]any)
	assert.Equal(t, "set", checks["google_client_id"])
	assert.Equal(t, "set", checks["google_client_secret"])
}

func TestHealthzDegradedWhenConfigMissing(t *testing.T) {
	cfg := testConfig(t)
	cfg.GoogleClientSecret = ""
	s := New(cfg, discardLogger())
	t.Cleanup(s.sessions.Stop)

	rec := do(t, s, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "missing", body["config"].(map[string]any)["google_client_secret"])

	// presence only, never values
	assert.NotContains(t, rec.Body.String(), "client-id")
}

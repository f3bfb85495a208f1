package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/logging"
)

// envelope is the JSON success shape. The payload key varies by route
// (emails, email, conversation, data) so it is assembled as a map.
type envelope map[string]any

// errorBody is the JSON failure shape.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeSuccess writes a 200 envelope with the payload under key.
func writeSuccess(w http.ResponseWriter, key string, payload any) {
	body := envelope{"success": true, key: payload}
	writeJSON(w, http.StatusOK, body)
}

// writeError maps err's kind to a status and writes the failure envelope.
// Unclassified errors become 500s with a generic message so internals do
// not leak.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	details := ""
	var kerr *apperr.Error
	if errors.As(err, &kerr) {
		details = kerr.Msg
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", logging.Err(err))
		if details == "" {
			details = "internal error"
		}
	}

	writeJSON(w, status, errorBody{
		Success: false,
		Error:   kind.String(),
		Details: details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Package logging provides slog attribute helpers so log entries use the
// same keys everywhere and never carry raw tokens or email addresses.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyMailbox   = "mailbox"
	KeyUserHash  = "user_hash"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyRoute     = "route"
)

// New builds the process logger. Debug mode lowers the level and adds
// source locations.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Mailbox returns a slog attribute for the mailbox being acted on.
// The address is anonymized; "me" passes through as-is.
func Mailbox(addr string) slog.Attr {
	if addr == "me" {
		return slog.String(KeyMailbox, addr)
	}
	return slog.String(KeyMailbox, AnonymizeEmail(addr))
}

// Route returns a slog attribute for the HTTP route.
func Route(route string) slog.Attr {
	return slog.String(KeyRoute, route)
}

// Err returns a slog attribute for an error. A nil err yields an empty
// group that slog omits, so Err(maybeNil) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a hashed representation of an email for logging.
// Entries stay correlatable without exposing PII.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(strings.ToLower(email)))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized user email.
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken returns a masked version of a token for logging. Only the
// length is reported; even short prefixes can aid attacks.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

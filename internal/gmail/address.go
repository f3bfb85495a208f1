package gmail

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
)

// addressPattern is the simple local-part@domain shape accepted for
// delegation targets. Full RFC 5322 parsing is deliberately not applied
// here; the provider enforces the rest.
var addressPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateAddress checks that addr looks like local-part@domain.
func ValidateAddress(addr string) error {
	if !addressPattern.MatchString(addr) {
		return apperr.New(apperr.KindValidation, "invalid email address %q", addr)
	}
	return nil
}

// ExtractAddress pulls the bare address out of a `Name <addr>` display
// form. A bare address passes through unchanged.
func ExtractAddress(from string) (string, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", apperr.New(apperr.KindValidation, "empty address")
	}
	parsed, err := mail.ParseAddress(from)
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, err, "malformed address %q", from)
	}
	return parsed.Address, nil
}

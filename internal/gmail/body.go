package gmail

import (
	"encoding/base64"
	"strings"

	"github.com/k3a/html2text"
	gmailapi "google.golang.org/api/gmail/v1"
)

// extractBody walks a message payload and returns the decoded text body.
// The plain-text part wins; an HTML-only message is stripped to text. An
// undecodable or absent body yields an empty string rather than an error
// so the rest of the message still renders.
func extractBody(payload *gmailapi.MessagePart) string {
	if payload == nil {
		return ""
	}
	if text := findPart(payload, "text/plain"); text != "" {
		return text
	}
	if html := findPart(payload, "text/html"); html != "" {
		return html2text.HTML2Text(html)
	}
	return ""
}

// findPart searches the part tree depth-first for the first part of the
// given MIME type with a decodable body.
func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, p := range part.Parts {
		if body := findPart(p, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// decodeBody decodes Gmail's base64url body data. The API emits the
// unpadded form; padded input is accepted too.
func decodeBody(data string) string {
	if decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}

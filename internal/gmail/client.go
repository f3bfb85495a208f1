// Package gmail adapts the four mailbox operations (list, get, get-thread,
// send) onto the Gmail REST API. A Client is built per request around one
// caller-supplied token source and is never pooled or shared across
// tokens.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/logging"
)

// Client wraps the Gmail Users service for one mailbox and one token.
type Client struct {
	svc     *gmailapi.UsersService
	mailbox string
	logger  *slog.Logger
}

// NewClient builds a client acting on mailbox ("me" for the token owner's
// own mailbox, or a delegated target address). Extra options are appended
// last so tests can inject an HTTP client.
func NewClient(ctx context.Context, ts oauth2.TokenSource, mailbox string, logger *slog.Logger, extra ...option.ClientOption) (*Client, error) {
	if ts == nil {
		return nil, apperr.New(apperr.KindUnauthenticated, "no token source")
	}
	if mailbox == "" {
		mailbox = "me"
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, extra...)
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, err, "failed to create gmail service")
	}
	return &Client{svc: svc.Users, mailbox: mailbox, logger: logger}, nil
}

// Mailbox returns the mailbox identifier this client acts on.
func (c *Client) Mailbox() string { return c.mailbox }

// metadataHeaders are the headers fetched for summaries.
var metadataHeaders = []string{"From", "To", "Subject", "Date", "Message-ID"}

// ListMessages fetches one page of message ids and then the header
// metadata for each id. A failed per-message fetch becomes an error
// placeholder at its position; only a failed listing fails the call.
func (c *Client) ListMessages(ctx context.Context, opts ListOptions) (*MessageList, error) {
	req := c.svc.Messages.List(c.mailbox).Context(ctx)
	if opts.MaxResults > 0 {
		req = req.MaxResults(opts.MaxResults)
	}
	if len(opts.Labels) > 0 {
		req = req.LabelIds(opts.Labels...)
	}
	if opts.Query != "" {
		req = req.Q(opts.Query)
	}
	if opts.PageToken != "" {
		req = req.PageToken(opts.PageToken)
	}

	res, err := req.Do()
	if err != nil {
		return nil, wrapAPIError(err, "failed to list messages")
	}

	list := &MessageList{
		Messages:      make([]MessageSummary, 0, len(res.Messages)),
		NextPageToken: res.NextPageToken,
	}
	for _, m := range res.Messages {
		full, err := c.svc.Messages.Get(c.mailbox, m.Id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).Do()
		if err != nil {
			c.logger.Warn("message metadata fetch failed",
				"message_id", m.Id, logging.Err(err))
			list.Messages = append(list.Messages, MessageSummary{
				ID:    m.Id,
				Error: err.Error(),
			})
			continue
		}
		list.Messages = append(list.Messages, summarize(full))
	}
	return list, nil
}

// GetMessage fetches a full message and decodes its body, preferring the
// plain-text part and falling back to the HTML part stripped of markup.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	if messageID == "" {
		return nil, apperr.New(apperr.KindValidation, "message id is required")
	}
	full, err := c.svc.Messages.Get(c.mailbox, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err, "failed to get message "+messageID)
	}

	msg := &Message{
		MessageSummary: summarize(full),
		MessageID:      headerValue(full, "Message-ID"),
		Body:           extractBody(full.Payload),
	}
	return msg, nil
}

// GetThread fetches every message in a thread as lightweight summaries, in
// the order the API returns them. No pagination: one call, one thread.
func (c *Client) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	if threadID == "" {
		return nil, apperr.New(apperr.KindValidation, "thread id is required")
	}
	t, err := c.svc.Threads.Get(c.mailbox, threadID).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err, "failed to get thread "+threadID)
	}

	thread := &Thread{ID: t.Id, Messages: make([]MessageSummary, 0, len(t.Messages))}
	for _, m := range t.Messages {
		thread.Messages = append(thread.Messages, summarize(m))
	}
	return thread, nil
}

// Send validates msg, builds a minimal RFC-822 text message and submits it
// raw. Validation failures happen before any remote call. The returned
// string is the id the provider assigned.
func (c *Client) Send(ctx context.Context, msg OutgoingMessage) (string, error) {
	if err := validateOutgoing(msg); err != nil {
		return "", err
	}

	raw := base64.RawURLEncoding.EncodeToString([]byte(buildRFC822(msg)))
	sent, err := c.svc.Messages.Send(c.mailbox, &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError(err, "failed to send message")
	}
	c.logger.Info("message sent",
		logging.Operation("send"),
		logging.Mailbox(c.mailbox),
		"message_id", sent.Id)
	return sent.Id, nil
}

func validateOutgoing(msg OutgoingMessage) error {
	var missing []string
	if strings.TrimSpace(msg.To) == "" {
		missing = append(missing, "to")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(msg.Body) == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.KindValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// buildRFC822 assembles the wire form: headers, blank line, body. Subjects
// with non-ASCII characters are RFC 2047 encoded.
func buildRFC822(msg OutgoingMessage) string {
	var b strings.Builder
	if msg.From != "" {
		b.WriteString("From: " + msg.From + "\r\n")
	}
	b.WriteString("To: " + msg.To + "\r\n")
	if msg.Cc != "" {
		b.WriteString("Cc: " + msg.Cc + "\r\n")
	}
	if msg.Bcc != "" {
		b.WriteString("Bcc: " + msg.Bcc + "\r\n")
	}
	if msg.ReplyTo != "" {
		b.WriteString("Reply-To: " + msg.ReplyTo + "\r\n")
	}
	b.WriteString("Subject: " + encodeRFC2047(msg.Subject) + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.String()
}

// encodeRFC2047 encodes a header value when it carries non-ASCII runes.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

func summarize(m *gmailapi.Message) MessageSummary {
	return MessageSummary{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		From:     headerValue(m, "From"),
		To:       headerValue(m, "To"),
		Subject:  headerValue(m, "Subject"),
		Date:     headerValue(m, "Date"),
		Snippet:  m.Snippet,
		Labels:   m.LabelIds,
	}
}

func headerValue(m *gmailapi.Message, name string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// wrapAPIError classifies a googleapi error by status code.
func wrapAPIError(err error, msg string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound, http.StatusBadRequest:
			// Gmail reports malformed ids as 400; both mean "no such id"
			// to our callers.
			return apperr.Wrap(apperr.KindNotFound, err, "%s", msg)
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Wrap(apperr.KindUnauthenticated, err, "%s", msg)
		}
	}
	return apperr.Wrap(apperr.KindProvider, err, "%s", msg)
}

package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/config"
	"github.com/ferneysalazar/contractorstest-gmail/internal/gmail"
	"github.com/ferneysalazar/contractorstest-gmail/internal/session"
	"github.com/ferneysalazar/contractorstest-gmail/internal/token"
)

// clientForCaller builds a provider client for the session caller's own
// mailbox. An expired token set is refreshed first when a refresh token
// exists, and the replacement is persisted and written back to the session
// through the manager; without one the stale token is attempted as-is and
// allowed to fail remotely.
func (s *Server) clientForCaller(r *http.Request, caller *session.Caller) (*gmail.Client, error) {
	set := caller.TokenSet
	if token.IsExpired(set) && set.RefreshToken != "" {
		fresh, err := s.auth.Refresh(r.Context(), set)
		if err == nil {
			set = fresh
			if sid := sessionIDFrom(r.Context()); sid != "" {
				if updErr := s.sessions.UpdateTokenSet(sid, fresh); updErr != nil {
					s.logger.Warn("failed to update session token", "error", updErr.Error())
				}
			}
			if caller.LocalUserID != "" {
				if saveErr := s.store.Save(caller.LocalUserID, fresh); saveErr != nil {
					s.logger.Warn("failed to persist refreshed token", "error", saveErr.Error())
				}
			}
		}
	}
	return gmail.NewClient(r.Context(), oauth2.StaticTokenSource(set.OAuth2()), "me", s.logger, s.clientOpts...)
}

// listOptionsFromQuery parses the common listing parameters.
func (s *Server) listOptionsFromQuery(r *http.Request) (gmail.ListOptions, error) {
	opts := gmail.ListOptions{MaxResults: config.DefaultMaxListResults}

	if raw := r.URL.Query().Get("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return opts, apperr.New(apperr.KindValidation, "maxResults must be a positive integer")
		}
		if n > config.MaxListResults {
			n = config.MaxListResults
		}
		opts.MaxResults = int64(n)
	}
	if labels := r.URL.Query().Get("labels"); labels != "" {
		for _, l := range strings.Split(labels, ",") {
			if l = strings.TrimSpace(l); l != "" {
				opts.Labels = append(opts.Labels, l)
			}
		}
	}
	opts.Query = r.URL.Query().Get("q")
	opts.PageToken = r.URL.Query().Get("pageToken")
	return opts, nil
}

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	opts, err := s.listOptionsFromQuery(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	client, err := s.clientForCaller(r, callerFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	list, err := client.ListMessages(r.Context(), opts)
	observeProviderCall("list_messages", err)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeSuccess(w, "emails", list)
}

func (s *Server) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	client, err := s.clientForCaller(r, callerFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	msg, err := client.GetMessage(r.Context(), r.PathValue("id"))
	observeProviderCall("get_message", err)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeSuccess(w, "email", msg)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	client, err := s.clientForCaller(r, callerFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	thread, err := client.GetThread(r.Context(), r.PathValue("id"))
	observeProviderCall("get_thread", err)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeSuccess(w, "conversation", thread)
}

// sendRequest is the JSON body for both send endpoints. Attachments are
// accepted for compatibility but not forwarded.
type sendRequest struct {
	To          string          `json:"to"`
	Subject     string          `json:"subject"`
	Body        string          `json:"body"`
	Message     string          `json:"message"`
	From        string          `json:"from"`
	Cc          string          `json:"cc"`
	Bcc         string          `json:"bcc"`
	ReplyTo     string          `json:"replyTo"`
	Attachments json.RawMessage `json:"attachments"`
}

func (req *sendRequest) outgoing() gmail.OutgoingMessage {
	body := req.Body
	if body == "" {
		body = req.Message
	}
	return gmail.OutgoingMessage{
		To:      req.To,
		Cc:      req.Cc,
		Bcc:     req.Bcc,
		ReplyTo: req.ReplyTo,
		From:    req.From,
		Subject: req.Subject,
		Body:    body,
	}
}

func decodeSendRequest(r *http.Request) (*sendRequest, error) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "malformed request body")
	}
	return &req, nil
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSendRequest(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	client, err := s.clientForCaller(r, callerFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	id, err := client.Send(r.Context(), req.outgoing())
	observeProviderCall("send_message", err)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeSuccess(w, "data", envelope{"id": id})
}

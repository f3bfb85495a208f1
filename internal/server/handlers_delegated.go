package server

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/gmail"
	"github.com/ferneysalazar/contractorstest-gmail/internal/logging"
	"github.com/ferneysalazar/contractorstest-gmail/internal/token"
)

// delegatedTarget is a resolved delegated request: who is acting and on
// which mailbox.
type delegatedTarget struct {
	userID      string
	targetEmail string
}

// resolveDelegated validates the userId/targetEmail parameters and checks
// the delegation grant. No remote call happens before both pass.
func (s *Server) resolveDelegated(r *http.Request) (*delegatedTarget, error) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	targetEmail := strings.TrimSpace(r.URL.Query().Get("targetEmail"))

	if userID == "" {
		return nil, apperr.New(apperr.KindValidation, "userId is required")
	}
	if targetEmail == "" {
		return nil, apperr.New(apperr.KindValidation, "targetEmail is required")
	}
	if err := gmail.ValidateAddress(targetEmail); err != nil {
		return nil, err
	}
	if err := s.grants.Verify(userID, targetEmail); err != nil {
		return nil, err
	}
	return &delegatedTarget{userID: userID, targetEmail: targetEmail}, nil
}

// delegatedClient loads the stored credential for the target, refreshing
// and re-persisting it when stale, and builds a client scoped to the
// target mailbox.
func (s *Server) delegatedClient(r *http.Request, target *delegatedTarget) (*gmail.Client, error) {
	rec, ok, err := s.store.Load(target.userID)
	if err != nil {
		return nil, err
	}
	if !ok || rec.Set.IsZero() {
		return nil, apperr.New(apperr.KindUnauthenticated, "no stored credential for user")
	}

	set := rec.Set
	if token.IsExpired(set) {
		fresh, err := s.auth.Refresh(r.Context(), set)
		if err != nil {
			return nil, err
		}
		if err := s.store.Save(target.userID, fresh); err != nil {
			return nil, err
		}
		set = fresh
		s.logger.Debug("refreshed delegated credential",
			logging.Mailbox(target.targetEmail))
	}

	return gmail.NewClient(r.Context(),
		oauth2.StaticTokenSource(set.OAuth2()),
		target.targetEmail, s.logger, s.clientOpts...)
}

func (s *Server) handleDelegatedList(w http.ResponseWriter, r *http.Request) {
	target, err := s.resolveDelegated(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	opts, err := s.listOptionsFromQuery(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	client, err := s.delegatedClient(r, target)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	list, err := client.ListMessages(r.Context(), opts)
	observeProviderCall("delegated_list_messages", err)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeSuccess(w, "emails", list)
}

func (s *Server) handleDelegatedGet(w http.ResponseWriter, r *http.Request) {
	target, err := s.resolveDelegated(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	client, err := s.delegatedClient(r, target)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	msg, err := client.GetMessage(r.Context(), r.PathValue("id"))
	observeProviderCall("delegated_get_message", err)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeSuccess(w, "email", msg)
}

// handleDelegatedSend sends as the delegated identity. When the body
// carries a from address it must resolve to the target mailbox; mismatch
// is a caller error and nothing is sent.
func (s *Server) handleDelegatedSend(w http.ResponseWriter, r *http.Request) {
	target, err := s.resolveDelegated(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	req, err := decodeSendRequest(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if req.From != "" {
		fromAddr, err := gmail.ExtractAddress(req.From)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		if !strings.EqualFold(fromAddr, target.targetEmail) {
			writeError(w, s.logger, apperr.New(apperr.KindValidation,
				"from address does not match target mailbox"))
			return
		}
	} else {
		req.From = target.targetEmail
	}

	client, err := s.delegatedClient(r, target)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	id, err := client.Send(r.Context(), req.outgoing())
	observeProviderCall("delegated_send_message", err)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeSuccess(w, "data", envelope{"id": id})
}

// handleDelegatedStatus reports whether a usable credential is stored for
// the target, without exposing token values.
func (s *Server) handleDelegatedStatus(w http.ResponseWriter, r *http.Request) {
	target, err := s.resolveDelegated(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	rec, ok, err := s.store.Load(target.userID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	status := envelope{"hasToken": ok}
	if ok {
		status["expired"] = token.IsExpired(rec.Set)
		status["hasRefreshToken"] = rec.RefreshToken != ""
		status["createdAt"] = rec.CreatedAt.Format(time.RFC3339)
	}
	writeSuccess(w, "data", status)
}

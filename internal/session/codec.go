package session

import (
	"encoding/json"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
)

// Codec serializes callers for transports that need to move a session
// across process boundaries (sticky-session stores, signed cookies). The
// in-memory Manager does not need one; it exists so the session layer owns
// the wire shape of a Caller instead of ad-hoc hooks.
type Codec interface {
	Encode(caller *Caller) ([]byte, error)
	Decode(data []byte) (*Caller, error)
}

// JSONCodec is the default Codec.
type JSONCodec struct{}

// Encode marshals the caller to JSON.
func (JSONCodec) Encode(caller *Caller) ([]byte, error) {
	if caller == nil {
		return nil, apperr.New(apperr.KindValidation, "cannot encode nil caller")
	}
	return json.Marshal(caller)
}

// Decode unmarshals a caller from JSON.
func (JSONCodec) Decode(data []byte) (*Caller, error) {
	var caller Caller
	if err := json.Unmarshal(data, &caller); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "malformed session payload")
	}
	if caller.ProviderUserID == "" && caller.Email == "" {
		return nil, apperr.New(apperr.KindValidation, "session payload has no identity")
	}
	return &caller, nil
}

package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// StateVersion is the current persisted-state encoding version.
const StateVersion = 1

// ErrLegacyEncoding marks a stored blob in a pre-versioned format. The caller
// must surface it rather than reinitialize the session, so an in-progress
// shift is never silently discarded.
var ErrLegacyEncoding = errors.New("legacy session encoding")

// stateEnvelope wraps SessionState with a self-describing version marker.
type stateEnvelope struct {
	V     int           `json:"v"`
	State *SessionState `json:"state"`
}

// EncodeState serializes a SessionState into the versioned store blob.
func EncodeState(s *SessionState) ([]byte, error) {
	data, err := json.Marshal(stateEnvelope{V: StateVersion, State: s})
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.SessionID, err)
	}
	return data, nil
}

// DecodeState parses a store blob back into a SessionState. Blobs that are
// not versioned JSON envelopes are flagged as legacy, never coerced.
func DecodeState(data []byte) (*SessionState, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, ErrLegacyEncoding
	}

	var env stateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	if env.V == 0 || env.State == nil {
		return nil, ErrLegacyEncoding
	}
	if env.V != StateVersion {
		return nil, fmt.Errorf("decode session state: unsupported version %d", env.V)
	}
	if env.State.Clinico.Vitais == nil {
		env.State.Clinico.Vitais = map[string]string{}
	}
	return env.State, nil
}

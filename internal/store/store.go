// Package store provides durable keyed persistence of session state and the
// per-session serialization lock the orchestrator requires.
package store

import (
	"context"

	"github.com/plenacare/plantao/pkg/models"
)

// SessionStore is the durability boundary for session state. A Save that
// returns nil must be visible to the next Load for the same session id
// (read-after-write); nothing stronger is assumed of the backing store.
//
// Load returns a fresh default state when the session id is absent. A blob
// the codec cannot parse surfaces as an error (models.ErrLegacyEncoding for
// pre-versioned blobs) and is never coerced into a default state.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*models.SessionState, error)
	Save(ctx context.Context, state *models.SessionState) error
}

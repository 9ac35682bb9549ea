package store

import (
	"context"
	"sync"

	"github.com/plenacare/plantao/pkg/models"
)

// MemoryStore is an in-process SessionStore. It round-trips state through the
// versioned codec so tests exercise the same encoding path as production.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Load returns the stored state, or a fresh default when absent.
func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*models.SessionState, error) {
	m.mu.RLock()
	blob, ok := m.blobs[sessionID]
	m.mu.RUnlock()

	if !ok {
		return models.NewSessionState(sessionID), nil
	}
	return models.DecodeState(blob)
}

// Save encodes and stores the state.
func (m *MemoryStore) Save(ctx context.Context, state *models.SessionState) error {
	blob, err := models.EncodeState(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.blobs[state.SessionID] = blob
	m.mu.Unlock()
	return nil
}

// Seed stores a raw blob for a session id, bypassing the codec. Test helper
// for exercising legacy-encoding detection.
func (m *MemoryStore) Seed(sessionID string, blob []byte) {
	m.mu.Lock()
	m.blobs[sessionID] = blob
	m.mu.Unlock()
}

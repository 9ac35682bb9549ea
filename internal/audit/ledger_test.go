package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenacare/plantao/internal/pending"
)

// The ledger must satisfy the recorder contract the confirmation manager and
// the flow handlers depend on.
var _ pending.Recorder = (*Ledger)(nil)

func TestCommittedOperationTableName(t *testing.T) {
	assert.Equal(t, "committed_operations", CommittedOperation{}.TableName())
}

func TestBeforeCreateSetsTimestamp(t *testing.T) {
	row := &CommittedOperation{SessionID: "5511999990000", Flow: "clinico", Payload: "{}"}
	require.NoError(t, row.BeforeCreate(nil))
	assert.False(t, row.CreatedAt.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), row.CreatedAt, time.Second)
}

func TestBeforeCreateKeepsExplicitTimestamp(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	row := &CommittedOperation{SessionID: "x", Flow: "agenda", Payload: "{}", CreatedAt: at}
	require.NoError(t, row.BeforeCreate(nil))
	assert.Equal(t, at, row.CreatedAt)
}

func TestNewLedgerRejectsBadDSN(t *testing.T) {
	_, err := NewLedger(Config{DSN: "host=127.0.0.1 port=1 user=x dbname=x connect_timeout=1 sslmode=disable"})
	assert.Error(t, err)
}

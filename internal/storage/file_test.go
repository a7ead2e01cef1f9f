package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestFileStore_SaveAndGetRoundTrip(t *testing.T) {
	fs := newTestStore(t)

	tx := &Transaction{
		ID:        "tx-1",
		SignedTx:  "0xdeadbeef",
		ChainID:   1114,
		Status:    StatusPending,
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, fs.SaveTransaction(tx))

	got, ok := fs.GetTransaction("tx-1")
	require.True(t, ok)
	assert.Equal(t, tx.ChainID, got.ChainID)
	assert.Equal(t, tx.Status, got.Status)

	// Clone-on-read: mutating the returned pointer must not affect the store.
	got.Status = StatusFailed
	reread, _ := fs.GetTransaction("tx-1")
	assert.Equal(t, StatusPending, reread.Status)
}

func TestFileStore_UpdateStatusRefusesTerminalTransition(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.SaveTransaction(&Transaction{ID: "tx-1", Status: StatusPending, Timestamp: time.Now()}))

	require.NoError(t, fs.UpdateTransactionStatus("tx-1", StatusCompleted, "0xhash", ""))
	tx, _ := fs.GetTransaction("tx-1")
	assert.Equal(t, StatusCompleted, tx.Status)
	assert.Equal(t, "0xhash", tx.TxHash)

	err := fs.UpdateTransactionStatus("tx-1", StatusFailed, "", "too late")
	assert.Error(t, err, "terminal status must never transition further")
}

func TestFileStore_GetByHash(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.SaveTransaction(&Transaction{ID: "tx-1", Status: StatusPending, Timestamp: time.Now()}))
	require.NoError(t, fs.UpdateTransactionStatus("tx-1", StatusCompleted, "0xabc", ""))

	tx, ok := fs.GetTransactionByHash("0xabc")
	require.True(t, ok)
	assert.Equal(t, "tx-1", tx.ID)

	_, ok = fs.GetTransactionByHash("0xmissing")
	assert.False(t, ok)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	fs1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs1.SaveTransaction(&Transaction{ID: "tx-1", ChainID: 84532, Status: StatusPending, Timestamp: time.Now()}))

	fs2, err := NewFileStore(dir)
	require.NoError(t, err)
	tx, ok := fs2.GetTransaction("tx-1")
	require.True(t, ok)
	assert.Equal(t, uint64(84532), tx.ChainID)
}

func TestFileStore_RecordAndListWallets(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.RecordWallet("0xabc", 1114))
	require.NoError(t, fs.RecordWallet("0xabc", 1114)) // idempotent
	require.NoError(t, fs.RecordWallet("0xdef", 1114))

	wallets := fs.GetRegisteredWallets(10)
	assert.Len(t, wallets, 2)
}

func TestFileStore_CheckHealth(t *testing.T) {
	fs := newTestStore(t)
	h := fs.CheckHealth()
	assert.True(t, h.IsHealthy)
	assert.True(t, h.DataIntegrity)
	assert.Equal(t, 0, h.RecordCount)
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusQueueFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusRetrying.Terminal())
}

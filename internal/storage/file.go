package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileStore implements Store using JSON file persistence, generalized from
// the teacher's FileTxStore (src/chainadapter/storage/file.go): same
// write-temp-then-rename atomicity and deep-copy-on-access discipline,
// widened from a single map[hash]*TxState to transaction records plus a
// parallel registered-wallets list.
type FileStore struct {
	mu          sync.RWMutex
	txPath      string
	walletsPath string
	byID        map[string]*Transaction
	byHash      map[string]string // tx_hash -> id
	wallets     map[string]*Wallet
}

func NewFileStore(dir string) (*FileStore, error) {
	fs := &FileStore{
		txPath:      filepath.Join(dir, "transactions.json"),
		walletsPath: filepath.Join(dir, "wallets.json"),
		byID:        make(map[string]*Transaction),
		byHash:      make(map[string]string),
		wallets:     make(map[string]*Wallet),
	}
	if err := fs.loadTransactions(); err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if err := fs.loadWallets(); err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	return fs, nil
}

func (fs *FileStore) SaveTransaction(tx *Transaction) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	cp := tx.Clone()
	fs.byID[cp.ID] = cp
	if cp.TxHash != "" {
		fs.byHash[cp.TxHash] = cp.ID
	}
	return fs.persistTransactions()
}

func (fs *FileStore) GetTransaction(id string) (*Transaction, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	tx, ok := fs.byID[id]
	if !ok {
		return nil, false
	}
	return tx.Clone(), true
}

func (fs *FileStore) GetTransactionByHash(hash string) (*Transaction, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	id, ok := fs.byHash[hash]
	if !ok {
		return nil, false
	}
	tx, ok := fs.byID[id]
	if !ok {
		return nil, false
	}
	return tx.Clone(), true
}

func (fs *FileStore) GetTransactions(limit int) []*Transaction {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := make([]*Transaction, 0, len(fs.byID))
	for _, tx := range fs.byID {
		result = append(result, tx.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return capTransactions(result, limit)
}

func (fs *FileStore) GetTransactionsByStatus(status Status, limit int) []*Transaction {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := make([]*Transaction, 0)
	for _, tx := range fs.byID {
		if tx.Status == status {
			result = append(result, tx.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return capTransactions(result, limit)
}

// UpdateTransactionStatus performs an atomic single-record status update,
// refusing to transition a terminal record further (§3 invariant).
func (fs *FileStore) UpdateTransactionStatus(id string, status Status, txHash, errMsg string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	tx, ok := fs.byID[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	if tx.Status.Terminal() {
		return fmt.Errorf("transaction %s already in terminal status %s", id, tx.Status)
	}

	tx.Status = status
	if txHash != "" {
		tx.TxHash = txHash
		fs.byHash[txHash] = id
	}
	if errMsg != "" {
		tx.Error = errMsg
	}
	return fs.persistTransactions()
}

func (fs *FileStore) CheckHealth() HealthInfo {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, statErr := os.Stat(fs.txPath)
	integrity := statErr == nil || os.IsNotExist(statErr)
	return HealthInfo{
		IsHealthy:       true,
		ConnectionCount: 1,
		DataIntegrity:   integrity,
		RecordCount:     len(fs.byID),
	}
}

func (fs *FileStore) RecordWallet(addr string, chainID uint64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := fmt.Sprintf("%d:%s", chainID, addr)
	if _, exists := fs.wallets[key]; exists {
		return nil
	}
	fs.wallets[key] = &Wallet{Address: addr, ChainID: chainID, RegisteredAt: time.Now().UTC()}
	return fs.persistWallets()
}

func (fs *FileStore) GetRegisteredWallets(limit int) []*Wallet {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]*Wallet, 0, len(fs.wallets))
	for _, w := range fs.wallets {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (fs *FileStore) Close() error { return nil }

func capTransactions(in []*Transaction, limit int) []*Transaction {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

func (fs *FileStore) loadTransactions() error {
	if _, err := os.Stat(fs.txPath); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(fs.txPath)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var byID map[string]*Transaction
	if err := json.Unmarshal(data, &byID); err != nil {
		return err
	}
	fs.byID = byID
	for id, tx := range byID {
		if tx.TxHash != "" {
			fs.byHash[tx.TxHash] = id
		}
	}
	return nil
}

func (fs *FileStore) persistTransactions() error {
	return atomicWriteJSON(fs.txPath, fs.byID)
}

func (fs *FileStore) loadWallets() error {
	if _, err := os.Stat(fs.walletsPath); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(fs.walletsPath)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var wallets map[string]*Wallet
	if err := json.Unmarshal(data, &wallets); err != nil {
		return err
	}
	fs.wallets = wallets
	return nil
}

func (fs *FileStore) persistWallets() error {
	return atomicWriteJSON(fs.walletsPath, fs.wallets)
}

// atomicWriteJSON marshals v and writes it to path via the
// write-temp-then-rename pattern the teacher's storage layer uses
// throughout (src/chainadapter/storage/file.go, provider/config.go).
func atomicWriteJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

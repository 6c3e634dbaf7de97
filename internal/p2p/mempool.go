package p2p

import (
	"sync"

	"github.com/nodeforge/bitledger/internal/chain"
	"github.com/nodeforge/bitledger/internal/codec"
)

// Mempool is the process-wide set of transactions accepted but not yet
// mined, keyed by lowercase-hex transaction id, matching the reference
// implementation's MemoryPool.
type Mempool struct {
	mu  sync.RWMutex
	txs map[string]*chain.Transaction
}

// NewMempool returns an empty mempool.
func NewMempool() *Mempool {
	return &Mempool{txs: make(map[string]*chain.Transaction)}
}

// Add records tx, keyed by its id.
func (m *Mempool) Add(tx *chain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[codec.HexLower(tx.ID)] = tx
}

// Contains reports whether a transaction id is already pending.
func (m *Mempool) Contains(txIDHex string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[txIDHex]
	return ok
}

// Get looks up a pending transaction by hex id.
func (m *Mempool) Get(txIDHex string) (*chain.Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[txIDHex]
	return tx, ok
}

// Remove drops a transaction by hex id.
func (m *Mempool) Remove(txIDHex string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, txIDHex)
}

// Len reports how many transactions are pending.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}

// GetAll returns every pending transaction, order unspecified.
func (m *Mempool) GetAll() []*chain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*chain.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, tx)
	}
	return out
}

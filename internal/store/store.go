// Package store persists the chain and its unspent-output index in an
// embedded BadgerDB, and implements the lookups the chain package needs to
// sign and verify transactions (chain.TransactionFinder,
// chain.SpendableOutputsFinder).
package store

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/nodeforge/bitledger/internal/chain"
)

// tipKey is the reserved key holding the current chain tip's hash.
var tipKey = []byte("tip_block_hash")

// blockPrefix namespaces block records, keyed by the block's lowercase-hex
// hash, from the chainstate entries sharing the same database.
var blockPrefix = []byte("block-")

// chainstatePrefix namespaces UTXO index entries, keyed by the raw
// transaction id bytes of the transaction that created the outputs.
var chainstatePrefix = []byte("chainstate-")

// Store is the embedded chain database: one BadgerDB holding both the block
// records and the UTXO index.
type Store struct {
	db *badger.DB

	// tipMu guards tipHash/tipValid, the in-memory cache of the tip pointer
	// persisted under tipKey. Badger's own transaction semantics serialize
	// the persisted key; this lock serializes the cache fields, which are
	// read and written outside any Badger transaction by concurrent
	// per-connection goroutines (see internal/p2p.Server.handleConn).
	tipMu    sync.RWMutex
	tipHash  string
	tipValid bool
}

// Exists reports whether a database already lives at path.
func Exists(path string) bool {
	_, err := os.Stat(filepath.Join(path, "MANIFEST"))
	return !os.IsNotExist(err)
}

// Open opens (or unlocks) the BadgerDB at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := openWithRetry(path, opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	s := &Store{db: db}
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tipKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		s.tipHash = string(val)
		s.tipValid = true
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: read tip: %w", err)
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateGenesis initializes an empty database with a genesis block paying
// the fixed subsidy to genesisAddress. It fails if a tip already exists.
func (s *Store) CreateGenesis(genesisAddress string, timestamp int64) (*chain.Block, error) {
	s.tipMu.Lock()
	defer s.tipMu.Unlock()

	if s.tipValid {
		return nil, fmt.Errorf("store: chain already initialized")
	}

	coinbase, err := chain.NewCoinbaseTx(genesisAddress)
	if err != nil {
		return nil, fmt.Errorf("store: genesis coinbase: %w", err)
	}
	genesis, err := chain.NewGenesisBlock(coinbase, timestamp)
	if err != nil {
		return nil, fmt.Errorf("store: mine genesis: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(genesis.Hash), genesis.Serialize()); err != nil {
			return err
		}
		return txn.Set(tipKey, []byte(genesis.Hash))
	})
	if err != nil {
		return nil, fmt.Errorf("store: persist genesis: %w", err)
	}

	s.tipHash = genesis.Hash
	s.tipValid = true
	return genesis, nil
}

// BestHeight returns the height of the current tip block, or -1 if the
// chain has not been initialized yet (so a peer always looks ahead of an
// uninitialized node during the version handshake).
func (s *Store) BestHeight() (int, error) {
	s.tipMu.RLock()
	valid, hash := s.tipValid, s.tipHash
	s.tipMu.RUnlock()

	if !valid {
		return -1, nil
	}
	tip, err := s.GetBlock(hash)
	if err != nil {
		return 0, err
	}
	return tip.Height, nil
}

// TipHash returns the current tip's hex hash.
func (s *Store) TipHash() (string, error) {
	s.tipMu.RLock()
	defer s.tipMu.RUnlock()

	if !s.tipValid {
		return "", fmt.Errorf("store: chain not initialized")
	}
	return s.tipHash, nil
}

// GetBlock looks up a block by its lowercase-hex hash.
func (s *Store) GetBlock(hashHex string) (*chain.Block, error) {
	var block *chain.Block
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(hashHex))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		b, err := chain.DeserializeBlock(data)
		if err != nil {
			return err
		}
		block = b
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("store: block %s not found", hashHex)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get block %s: %w", hashHex, err)
	}
	return block, nil
}

// MineBlock assembles and mines a new block over txs on top of the current
// tip, verifying every non-coinbase transaction first, then persists it and
// advances the tip.
func (s *Store) MineBlock(txs []*chain.Transaction, timestamp int64) (*chain.Block, error) {
	for i, tx := range txs {
		if !tx.Verify(s) {
			log.Panicf("store: mine block: transaction %d fails verification", i)
		}
	}

	height, err := s.BestHeight()
	if err != nil {
		return nil, err
	}
	tipHash, err := s.TipHash()
	if err != nil {
		return nil, err
	}

	block, err := chain.NewBlock(txs, tipHash, height+1, timestamp)
	if err != nil {
		return nil, fmt.Errorf("store: mine block: %w", err)
	}

	if err := s.persistAndRetarget(block); err != nil {
		return nil, err
	}
	return block, nil
}

// AddBlock stores a block received from a peer. Duplicate hashes are a
// no-op. The tip only advances if block is strictly taller than the current
// tip (longest-chain rule); an equal-height block is kept but does not
// become the tip.
func (s *Store) AddBlock(block *chain.Block) error {
	exists, err := s.hasBlock(block.Hash)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.persistAndRetarget(block)
}

func (s *Store) hasBlock(hashHex string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(blockKey(hashHex))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *Store) persistAndRetarget(block *chain.Block) error {
	s.tipMu.Lock()
	defer s.tipMu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(block.Hash), block.Serialize()); err != nil {
			return err
		}

		if !s.tipValid {
			return txn.Set(tipKey, []byte(block.Hash))
		}

		item, err := txn.Get(blockKey(s.tipHash))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		tip, err := chain.DeserializeBlock(data)
		if err != nil {
			return err
		}

		if block.Height > tip.Height {
			return txn.Set(tipKey, []byte(block.Hash))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: persist block %s: %w", block.Hash, err)
	}

	if !s.tipValid {
		s.tipHash = block.Hash
		s.tipValid = true
		return nil
	}
	tip, err := s.GetBlock(s.tipHash)
	if err != nil {
		return err
	}
	if block.Height > tip.Height {
		s.tipHash = block.Hash
	}
	return nil
}

// GetBlockHashes returns every block hash from the tip back to genesis,
// newest first.
func (s *Store) GetBlockHashes() ([]string, error) {
	var hashes []string
	it, err := s.Iterator()
	if err != nil {
		return nil, err
	}
	for {
		block, err := it.Next()
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, block.Hash)
		if block.Header.PrevBlockHash == "None" {
			break
		}
	}
	return hashes, nil
}

// FindTransaction scans the chain from the tip back to genesis for a
// transaction id, implementing chain.TransactionFinder.
func (s *Store) FindTransaction(id []byte) (*chain.Transaction, error) {
	it, err := s.Iterator()
	if err != nil {
		return nil, err
	}
	for {
		block, err := it.Next()
		if err != nil {
			return nil, err
		}
		for _, tx := range block.Transactions {
			if string(tx.ID) == string(id) {
				return tx, nil
			}
		}
		if block.Header.PrevBlockHash == "None" {
			break
		}
	}
	return nil, fmt.Errorf("store: transaction %x not found", id)
}

func blockKey(hashHex string) []byte {
	return append(append([]byte{}, blockPrefix...), []byte(hashHex)...)
}

func openWithRetry(dir string, opts badger.Options) (*badger.DB, error) {
	db, err := badger.Open(opts)
	if err == nil {
		return db, nil
	}
	if !strings.Contains(err.Error(), "LOCK") {
		return nil, err
	}
	if rmErr := os.Remove(filepath.Join(dir, "LOCK")); rmErr != nil {
		return nil, err
	}
	log.Printf("store: cleared stale lock file in %s", dir)
	return badger.Open(opts)
}

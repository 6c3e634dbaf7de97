package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/nodeforge/bitledger/internal/chain"
)

// Iterator walks the chain from the tip back to genesis, one block at a
// time.
type Iterator struct {
	currentHash string
	db          *badger.DB
}

// Iterator starts a new traversal at the current tip.
func (s *Store) Iterator() (*Iterator, error) {
	tip, err := s.TipHash()
	if err != nil {
		return nil, err
	}
	return &Iterator{currentHash: tip, db: s.db}, nil
}

// Next returns the current block and advances the iterator to its parent.
func (it *Iterator) Next() (*chain.Block, error) {
	var block *chain.Block
	err := it.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(it.currentHash))
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
	if err != nil {
		return nil, fmt.Errorf("store: iterate block %s: %w", it.currentHash, err)
	}
	it.currentHash = block.Header.PrevBlockHash
	return block, nil
}

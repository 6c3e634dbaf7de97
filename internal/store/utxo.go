package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/nodeforge/bitledger/internal/chain"
	"github.com/nodeforge/bitledger/internal/codec"
)

// UTXOIndex is the unspent-output index kept alongside the chain so spend
// construction and balance queries never need a full chain scan.
type UTXOIndex struct {
	store *Store
}

// NewUTXOIndex wraps a Store's UTXO index.
func NewUTXOIndex(s *Store) *UTXOIndex {
	return &UTXOIndex{store: s}
}

// FindSpendableOutputs accumulates outputs locked to pubKeyHash until amount
// is covered, implementing chain.SpendableOutputsFinder. The returned map is
// keyed by the owning transaction's lowercase-hex id.
func (u *UTXOIndex) FindSpendableOutputs(pubKeyHash []byte, amount int) (int, map[string][]int, error) {
	unspent := make(map[string][]int)
	accumulated := 0

	err := u.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(chainstatePrefix); it.ValidForPrefix(chainstatePrefix); it.Next() {
			if accumulated >= amount {
				break
			}
			item := it.Item()
			txID := item.Key()[len(chainstatePrefix):]

			var outs []chain.TxOutput
			err := item.Value(func(val []byte) error {
				decoded, err := chain.DeserializeOutputs(val)
				if err != nil {
					return err
				}
				outs = decoded
				return nil
			})
			if err != nil {
				return err
			}

			for outIdx, out := range outs {
				if accumulated >= amount {
					break
				}
				if out.IsLockedWithKey(pubKeyHash) {
					accumulated += int(out.Value)
					key := codec.HexLower(txID)
					unspent[key] = append(unspent[key], outIdx)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("store: find spendable outputs: %w", err)
	}
	return accumulated, unspent, nil
}

// FindUTXO returns every unspent output locked to pubKeyHash, used for
// balance queries.
func (u *UTXOIndex) FindUTXO(pubKeyHash []byte) ([]chain.TxOutput, error) {
	var found []chain.TxOutput
	err := u.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(chainstatePrefix); it.ValidForPrefix(chainstatePrefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				outs, err := chain.DeserializeOutputs(val)
				if err != nil {
					return err
				}
				for _, out := range outs {
					if out.IsLockedWithKey(pubKeyHash) {
						found = append(found, out)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: find utxo: %w", err)
	}
	return found, nil
}

// CountTransactions returns the number of transactions with at least one
// unspent output still indexed.
func (u *UTXOIndex) CountTransactions() (int, error) {
	count := 0
	err := u.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(chainstatePrefix); it.ValidForPrefix(chainstatePrefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: count transactions: %w", err)
	}
	return count, nil
}

// Reindex clears the index and rebuilds it by scanning every block from tip
// to genesis.
func (u *UTXOIndex) Reindex() error {
	if err := u.deleteAll(); err != nil {
		return err
	}

	unspent, err := u.scanChain()
	if err != nil {
		return err
	}

	return u.store.db.Update(func(txn *badger.Txn) error {
		for txIDHex, outs := range unspent {
			txID, err := codec.HexDecode(txIDHex)
			if err != nil {
				return err
			}
			if err := txn.Set(chainstateKey(txID), chain.SerializeOutputs(outs)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update folds a newly mined or received block into the index: spent inputs
// are removed (or pruned per output) and the block's own outputs are added.
func (u *UTXOIndex) Update(block *chain.Block) error {
	return u.store.db.Update(func(txn *badger.Txn) error {
		for _, tx := range block.Transactions {
			if !tx.IsCoinbase() {
				for _, in := range tx.Inputs {
					key := chainstateKey(in.PrevTxID)
					item, err := txn.Get(key)
					if err != nil {
						return err
					}
					var outs []chain.TxOutput
					err = item.Value(func(val []byte) error {
						decoded, err := chain.DeserializeOutputs(val)
						if err != nil {
							return err
						}
						outs = decoded
						return nil
					})
					if err != nil {
						return err
					}

					var remaining []chain.TxOutput
					for outIdx, out := range outs {
						if outIdx != in.Vout {
							remaining = append(remaining, out)
						}
					}

					if len(remaining) == 0 {
						if err := txn.Delete(key); err != nil {
							return err
						}
					} else if err := txn.Set(key, chain.SerializeOutputs(remaining)); err != nil {
						return err
					}
				}
			}

			if err := txn.Set(chainstateKey(tx.ID), chain.SerializeOutputs(tx.Outputs)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (u *UTXOIndex) scanChain() (map[string][]chain.TxOutput, error) {
	unspent := make(map[string][]chain.TxOutput)
	spent := make(map[string][]int)

	it, err := u.store.Iterator()
	if err != nil {
		return nil, err
	}
	for {
		block, err := it.Next()
		if err != nil {
			return nil, err
		}
		for _, tx := range block.Transactions {
			txID := codec.HexLower(tx.ID)

		outputLoop:
			for outIdx, out := range tx.Outputs {
				for _, spentIdx := range spent[txID] {
					if spentIdx == outIdx {
						continue outputLoop
					}
				}
				unspent[txID] = append(unspent[txID], out)
			}

			if !tx.IsCoinbase() {
				for _, in := range tx.Inputs {
					prevID := codec.HexLower(in.PrevTxID)
					spent[prevID] = append(spent[prevID], in.Vout)
				}
			}
		}
		if block.Header.PrevBlockHash == "None" {
			break
		}
	}
	return unspent, nil
}

func (u *UTXOIndex) deleteAll() error {
	var keys [][]byte
	err := u.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(chainstatePrefix); it.ValidForPrefix(chainstatePrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return u.store.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func chainstateKey(txID []byte) []byte {
	return append(append([]byte{}, chainstatePrefix...), txID...)
}

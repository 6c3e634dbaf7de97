// Package chain implements the block and transaction data model: hashing,
// signing, verification and proof-of-work, independent of how blocks are
// persisted or gossiped.
package chain

import (
	"github.com/nodeforge/bitledger/internal/codec"
	"github.com/nodeforge/bitledger/internal/wallet"
)

// TxOutput is an indivisible unit of value locked to a public-key hash.
type TxOutput struct {
	Value      int32
	PubKeyHash []byte
}

// NewOutput builds an output of the given value, locked to address.
func NewOutput(value int32, address string) (TxOutput, error) {
	out := TxOutput{Value: value}
	if err := out.Lock(address); err != nil {
		return TxOutput{}, err
	}
	return out, nil
}

// Lock sets out's locking hash from a Base58 address: the address is
// decoded to version ‖ pub_key_hash ‖ checksum and the middle 20 bytes are
// copied in.
func (out *TxOutput) Lock(address string) error {
	hash, err := wallet.PubKeyHashFromAddress(address)
	if err != nil {
		return err
	}
	out.PubKeyHash = hash
	return nil
}

// IsLockedWithKey reports whether pubKeyHash can spend this output.
func (out TxOutput) IsLockedWithKey(pubKeyHash []byte) bool {
	return bytesEqual(out.PubKeyHash, pubKeyHash)
}

// TxInput references a previous output being spent.
type TxInput struct {
	PrevTxID  []byte
	Vout      int
	Signature []byte
	PubKey    []byte
}

// UsesKey reports whether the input's public key hashes to pubKeyHash.
func (in TxInput) UsesKey(pubKeyHash []byte) bool {
	return bytesEqual(codec.Hash160(in.PubKey), pubKeyHash)
}

// Transaction is a UTXO-model transaction: an id and its inputs/outputs.
type Transaction struct {
	ID      []byte
	Inputs  []TxInput
	Outputs []TxOutput
}

// IsCoinbase reports whether tx is a coinbase transaction: exactly one
// input whose public key is empty.
func (tx Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && len(tx.Inputs[0].PubKey) == 0
}

// Header carries the fields hashed to produce a block's proof-of-work
// preimage and persisted alongside it. TxSetHash and PrevBlockHash are
// lowercase-hex strings, not raw digests: the preimage hashes their ASCII
// bytes (see pow.go), matching the reference implementation.
type Header struct {
	Timestamp     int64
	TxSetHash     string
	PrevBlockHash string
}

// Block is an immutable, mined unit of the chain.
type Block struct {
	Header       Header
	Hash         string
	Transactions []*Transaction
	Nonce        int64
	Height       int
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

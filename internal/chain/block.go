package chain

import (
	"fmt"

	"github.com/nodeforge/bitledger/internal/codec"
)

// genesisPrevHash is the literal previous-hash value carried by the genesis
// block, matching the reference implementation rather than an empty string
// or all-zero digest.
const genesisPrevHash = "None"

// NewBlock mines a new block over txs, chained onto prevHash, at the given
// height. The tx-set hash (invariant B1) is the hex-encoded SHA-256 of the
// canonical serialization of txs; proof-of-work is then run over the
// resulting header.
func NewBlock(txs []*Transaction, prevHash string, height int, timestamp int64) (*Block, error) {
	block := &Block{
		Header: Header{
			Timestamp:     timestamp,
			TxSetHash:     txSetHash(txs),
			PrevBlockHash: prevHash,
		},
		Transactions: txs,
		Height:       height,
	}

	pow := NewProofOfWork(block)
	nonce, hash, err := pow.Run()
	if err != nil {
		return nil, fmt.Errorf("chain: mine block at height %d: %w", height, err)
	}
	block.Nonce = nonce
	block.Hash = hash

	return block, nil
}

// NewGenesisBlock mines the chain's first block, containing only coinbase,
// with the literal previous-hash "None".
func NewGenesisBlock(coinbase *Transaction, timestamp int64) (*Block, error) {
	return NewBlock([]*Transaction{coinbase}, genesisPrevHash, 0, timestamp)
}

// txSetHash computes the hex-encoded flat digest over a transaction set;
// there is no Merkle tree (spec non-goal).
func txSetHash(txs []*Transaction) string {
	return codec.HexLower(codec.SHA256(serializeTransactions(txs)))
}

// ShortID returns a short SHA3-256-derived identifier for the block, printed
// next to the full hash in log lines.
func (b *Block) ShortID() string {
	return codec.HexLower(codec.SHA3256([]byte(b.Hash)))[:8]
}

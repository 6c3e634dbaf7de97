package chain

import (
	"errors"
	"math"
	"math/big"

	"github.com/nodeforge/bitledger/internal/codec"
)

// Difficulty is the fixed number of leading zero bits a block hash must
// have. There is no dynamic adjustment (spec non-goal).
const Difficulty = 20

// ErrNonceExhausted is returned by Run if every int64 nonce was tried
// without finding a hash below the target — practically unreachable at the
// fixed difficulty.
var ErrNonceExhausted = errors.New("chain: proof of work exhausted nonce space")

// ProofOfWork mines or validates the nonce for a single block.
type ProofOfWork struct {
	block  *Block
	target *big.Int
}

// NewProofOfWork builds a ProofOfWork over block using the fixed difficulty
// target T = 1 << (256 - Difficulty).
func NewProofOfWork(block *Block) *ProofOfWork {
	target := big.NewInt(1)
	target.Lsh(target, uint(256-Difficulty))
	return &ProofOfWork{block: block, target: target}
}

// preimage builds the PoW input for a candidate nonce: the previous block's
// hash and the tx-set hash as their ASCII hex bytes, followed by the
// timestamp, difficulty, and nonce as fixed-width big-endian integers.
func (pow *ProofOfWork) preimage(nonce int64) []byte {
	data := make([]byte, 0, len(pow.block.Header.PrevBlockHash)+len(pow.block.Header.TxSetHash)+20)
	data = append(data, pow.block.Header.PrevBlockHash...)
	data = append(data, pow.block.Header.TxSetHash...)

	var tsBuf [8]byte
	putInt64BE(tsBuf[:], pow.block.Header.Timestamp)
	data = append(data, tsBuf[:]...)

	var diffBuf [4]byte
	putInt32BE(diffBuf[:], Difficulty)
	data = append(data, diffBuf[:]...)

	var nonceBuf [8]byte
	putInt64BE(nonceBuf[:], nonce)
	data = append(data, nonceBuf[:]...)

	return data
}

// Run searches for the first nonce (starting at 0) whose SHA-256 hash,
// interpreted as a big-endian integer, is strictly below the difficulty
// target. It returns the winning nonce and the lowercase-hex hash.
func (pow *ProofOfWork) Run() (int64, string, error) {
	var hash []byte
	var intHash big.Int

	var nonce int64
	for nonce < math.MaxInt64 {
		hash = codec.SHA256(pow.preimage(nonce))
		intHash.SetBytes(hash)
		if intHash.Cmp(pow.target) == -1 {
			return nonce, codec.HexLower(hash), nil
		}
		nonce++
	}
	return 0, "", ErrNonceExhausted
}

// Validate recomputes the hash for the block's stored nonce and reports
// whether it still meets the difficulty target (invariant P2/B2).
func (pow *ProofOfWork) Validate() bool {
	hash := codec.SHA256(pow.preimage(pow.block.Nonce))
	var intHash big.Int
	intHash.SetBytes(hash)
	return intHash.Cmp(pow.target) == -1
}

func putInt64BE(b []byte, v int64) {
	u := uint64(v)
	for i := 7; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}
}

func putInt32BE(b []byte, v int32) {
	u := uint32(v)
	for i := 3; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}
}

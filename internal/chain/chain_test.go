package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeforge/bitledger/internal/wallet"
)

// memFinder is a minimal in-memory TransactionFinder/SpendableOutputsFinder
// used to exercise signing, verification, and spend construction without a
// store.
type memFinder struct {
	txs map[string]*Transaction
}

func newMemFinder() *memFinder {
	return &memFinder{txs: make(map[string]*Transaction)}
}

func (f *memFinder) add(tx *Transaction) {
	f.txs[string(tx.ID)] = tx
}

func (f *memFinder) FindTransaction(id []byte) (*Transaction, error) {
	tx, ok := f.txs[string(id)]
	if !ok {
		return nil, errNotFound
	}
	return tx, nil
}

func (f *memFinder) FindSpendableOutputs(pubKeyHash []byte, amount int) (int, map[string][]int, error) {
	unspent := make(map[string][]int)
	accumulated := 0
	for _, tx := range f.txs {
		for outIdx, out := range tx.Outputs {
			if accumulated >= amount {
				continue
			}
			if out.IsLockedWithKey(pubKeyHash) {
				unspent[txIDHex(tx.ID)] = append(unspent[txIDHex(tx.ID)], outIdx)
				accumulated += int(out.Value)
			}
		}
	}
	return accumulated, unspent, nil
}

func txIDHex(id []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(id)*2)
	for i, b := range id {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0F]
	}
	return string(out)
}

type notFoundError struct{}

func (notFoundError) Error() string { return "chain: transaction not found" }

var errNotFound = notFoundError{}

func TestCoinbaseTransaction(t *testing.T) {
	w, err := wallet.New()
	require.NoError(t, err)

	tx, err := NewCoinbaseTx(w.Address())
	require.NoError(t, err)

	require.True(t, tx.IsCoinbase())
	require.Len(t, tx.Outputs, 1)
	require.EqualValues(t, Subsidy, tx.Outputs[0].Value)
	require.True(t, tx.Verify(nil), "coinbase transaction should verify without a finder")
}

func TestTransactionSignAndVerify(t *testing.T) {
	sender, err := wallet.New()
	require.NoError(t, err)
	recipient, err := wallet.New()
	require.NoError(t, err)

	coinbase, err := NewCoinbaseTx(sender.Address())
	require.NoError(t, err)

	finder := newMemFinder()
	finder.add(coinbase)

	tx, err := NewTransaction(sender, recipient.Address(), 4, finder, finder)
	require.NoError(t, err)
	finder.add(tx)

	require.True(t, tx.Verify(finder), "a correctly signed transaction failed verification")

	tampered := *tx
	tampered.Outputs = append([]TxOutput{}, tx.Outputs...)
	tampered.Outputs[0].Value += 1000
	require.False(t, tampered.Verify(finder), "verification accepted a transaction whose outputs were tampered after signing")
}

func TestTransactionInsufficientFunds(t *testing.T) {
	sender, err := wallet.New()
	require.NoError(t, err)
	recipient, err := wallet.New()
	require.NoError(t, err)

	coinbase, err := NewCoinbaseTx(sender.Address())
	require.NoError(t, err)
	finder := newMemFinder()
	finder.add(coinbase)

	_, err = NewTransaction(sender, recipient.Address(), Subsidy+1, finder, finder)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestTransactionSerializeRoundTrip(t *testing.T) {
	w, err := wallet.New()
	require.NoError(t, err)
	tx, err := NewCoinbaseTx(w.Address())
	require.NoError(t, err)

	decoded, err := DeserializeTransaction(tx.Serialize())
	require.NoError(t, err)
	require.Equal(t, tx.ID, decoded.ID)
	require.Len(t, decoded.Outputs, 1)
	require.Equal(t, tx.Outputs[0].Value, decoded.Outputs[0].Value)
}

func TestProofOfWorkRunAndValidate(t *testing.T) {
	w, err := wallet.New()
	require.NoError(t, err)
	coinbase, err := NewCoinbaseTx(w.Address())
	require.NoError(t, err)

	block, err := NewGenesisBlock(coinbase, 1700000000)
	require.NoError(t, err)

	pow := NewProofOfWork(block)
	require.True(t, pow.Validate(), "a freshly mined block failed to validate its own proof of work")

	block.Nonce++
	require.False(t, NewProofOfWork(block).Validate(), "Validate accepted a tampered nonce")
}

func TestBlockSerializeRoundTrip(t *testing.T) {
	w, err := wallet.New()
	require.NoError(t, err)
	coinbase, err := NewCoinbaseTx(w.Address())
	require.NoError(t, err)
	block, err := NewGenesisBlock(coinbase, 1700000000)
	require.NoError(t, err)

	decoded, err := DeserializeBlock(block.Serialize())
	require.NoError(t, err)
	require.Equal(t, block.Hash, decoded.Hash)
	require.Equal(t, genesisPrevHash, decoded.Header.PrevBlockHash)
	require.Equal(t, block.Nonce, decoded.Nonce)
}

func TestBlockShortIDIsStableAndDistinctFromHash(t *testing.T) {
	w, err := wallet.New()
	require.NoError(t, err)
	coinbase, err := NewCoinbaseTx(w.Address())
	require.NoError(t, err)
	block, err := NewGenesisBlock(coinbase, 1700000000)
	require.NoError(t, err)

	require.Equal(t, block.ShortID(), block.ShortID())
	require.Len(t, block.ShortID(), 8)
	require.NotEqual(t, block.Hash, block.ShortID())
}

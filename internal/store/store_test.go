package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeforge/bitledger/internal/chain"
	"github.com/nodeforge/bitledger/internal/wallet"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateGenesisAndBestHeight(t *testing.T) {
	s := openTestStore(t)
	w, err := wallet.New()
	require.NoError(t, err)

	genesis, err := s.CreateGenesis(w.Address(), 1700000000)
	require.NoError(t, err)
	require.Equal(t, 0, genesis.Height)

	height, err := s.BestHeight()
	require.NoError(t, err)
	require.Equal(t, 0, height)

	_, err = s.CreateGenesis(w.Address(), 1700000000)
	require.Error(t, err, "expected CreateGenesis to refuse a second initialization")
}

func TestMineBlockAndUTXOIndex(t *testing.T) {
	s := openTestStore(t)
	miner, err := wallet.New()
	require.NoError(t, err)
	recipient, err := wallet.New()
	require.NoError(t, err)

	genesis, err := s.CreateGenesis(miner.Address(), 1700000000)
	require.NoError(t, err)

	utxo := NewUTXOIndex(s)
	require.NoError(t, utxo.Update(genesis))

	tx, err := chain.NewTransaction(miner, recipient.Address(), 4, utxo, s)
	require.NoError(t, err)

	block, err := s.MineBlock([]*chain.Transaction{tx}, 1700000100)
	require.NoError(t, err)
	require.Equal(t, 1, block.Height)

	require.NoError(t, utxo.Update(block))

	recipientUTXO, err := utxo.FindUTXO(recipient.PublicKeyHash())
	require.NoError(t, err)
	require.Len(t, recipientUTXO, 1)
	require.EqualValues(t, 4, recipientUTXO[0].Value)

	minerUTXO, err := utxo.FindUTXO(miner.PublicKeyHash())
	require.NoError(t, err)
	total := 0
	for _, out := range minerUTXO {
		total += int(out.Value)
	}
	require.Equal(t, chain.Subsidy-4, total)
}

func TestMineBlockPanicsOnInvalidTransaction(t *testing.T) {
	s := openTestStore(t)
	miner, err := wallet.New()
	require.NoError(t, err)
	recipient, err := wallet.New()
	require.NoError(t, err)

	genesis, err := s.CreateGenesis(miner.Address(), 1700000000)
	require.NoError(t, err)
	utxo := NewUTXOIndex(s)
	require.NoError(t, utxo.Update(genesis))

	tx, err := chain.NewTransaction(miner, recipient.Address(), 4, utxo, s)
	require.NoError(t, err)
	tx.Inputs[0].Signature[0] ^= 0xFF // invalidate the spend without re-signing

	require.Panics(t, func() {
		s.MineBlock([]*chain.Transaction{tx}, 1700000100)
	})
}

func TestReindexMatchesIncrementalUpdate(t *testing.T) {
	s := openTestStore(t)
	miner, err := wallet.New()
	require.NoError(t, err)

	genesis, err := s.CreateGenesis(miner.Address(), 1700000000)
	require.NoError(t, err)

	utxo := NewUTXOIndex(s)
	require.NoError(t, utxo.Update(genesis))

	before, err := utxo.FindUTXO(miner.PublicKeyHash())
	require.NoError(t, err)

	require.NoError(t, utxo.Reindex())

	after, err := utxo.FindUTXO(miner.PublicKeyHash())
	require.NoError(t, err)

	require.Equal(t, len(before), len(after), "reindex should not change UTXO count")
}

func TestAddBlockIgnoresDuplicate(t *testing.T) {
	s := openTestStore(t)
	miner, err := wallet.New()
	require.NoError(t, err)
	genesis, err := s.CreateGenesis(miner.Address(), 1700000000)
	require.NoError(t, err)

	require.NoError(t, s.AddBlock(genesis), "AddBlock on already-known block")

	height, err := s.BestHeight()
	require.NoError(t, err)
	require.Equal(t, 0, height)
}

func TestFindTransaction(t *testing.T) {
	s := openTestStore(t)
	miner, err := wallet.New()
	require.NoError(t, err)
	genesis, err := s.CreateGenesis(miner.Address(), 1700000000)
	require.NoError(t, err)

	coinbaseID := genesis.Transactions[0].ID
	found, err := s.FindTransaction(coinbaseID)
	require.NoError(t, err)
	require.Equal(t, coinbaseID, found.ID)

	_, err = s.FindTransaction([]byte("not a real id"))
	require.Error(t, err, "expected FindTransaction to fail for an unknown id")
}

// TestConcurrentAddBlockDoesNotRaceTip mines a chain of blocks up front, then
// replays AddBlock for all of them from many goroutines at once, interleaved
// with BestHeight reads, exercising the tipMu lock guarding the in-memory
// tip cache described in spec §5.
func TestConcurrentAddBlockDoesNotRaceTip(t *testing.T) {
	s := openTestStore(t)
	miner, err := wallet.New()
	require.NoError(t, err)

	genesis, err := s.CreateGenesis(miner.Address(), 1700000000)
	require.NoError(t, err)

	blocks := []*chain.Block{genesis}
	prev := genesis
	for i := 0; i < 5; i++ {
		coinbase, err := chain.NewCoinbaseTx(miner.Address())
		require.NoError(t, err)
		next, err := chain.NewBlock([]*chain.Transaction{coinbase}, prev.Hash, prev.Height+1, 1700000000+int64(i+1)*100)
		require.NoError(t, err)
		blocks = append(blocks, next)
		prev = next
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, b := range blocks {
				_ = s.AddBlock(b)
				_, _ = s.BestHeight()
			}
		}()
	}
	wg.Wait()

	height, err := s.BestHeight()
	require.NoError(t, err)
	require.Equal(t, prev.Height, height)
}

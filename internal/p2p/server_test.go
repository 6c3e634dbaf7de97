package p2p

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodeforge/bitledger/internal/chain"
	"github.com/nodeforge/bitledger/internal/config"
	"github.com/nodeforge/bitledger/internal/store"
	"github.com/nodeforge/bitledger/internal/wallet"
)

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("nothing listening on %s after 2s", addr)
}

func mineEmptyBlock(t *testing.T, s *store.Store, w wallet.Wallet, ts int64) *chain.Block {
	t.Helper()
	coinbase, err := chain.NewCoinbaseTx(w.Address())
	require.NoError(t, err)
	block, err := s.MineBlock([]*chain.Transaction{coinbase}, ts)
	require.NoError(t, err)
	return block
}

func TestInitialBlockDownload(t *testing.T) {
	miner, err := wallet.New()
	require.NoError(t, err)

	storeA, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer storeA.Close()

	genesis, err := storeA.CreateGenesis(miner.Address(), 1700000000)
	require.NoError(t, err)
	utxoA := store.NewUTXOIndex(storeA)
	require.NoError(t, utxoA.Update(genesis))

	for i := int64(1); i <= 3; i++ {
		block := mineEmptyBlock(t, storeA, *miner, 1700000000+i*100)
		require.NoError(t, utxoA.Update(block))
	}

	wantHashes, err := storeA.GetBlockHashes()
	require.NoError(t, err)
	require.Len(t, wantHashes, 4) // genesis + 3 mined blocks

	cfgA := &config.Config{NodeAddress: CenterNode}
	serverA := NewServer(cfgA, storeA, utxoA)
	go serverA.ListenAndServe()
	defer serverA.Close()
	waitForListener(t, CenterNode)

	storeB, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer storeB.Close()
	utxoB := store.NewUTXOIndex(storeB)

	cfgB := &config.Config{NodeAddress: "127.0.0.1:58422"}
	serverB := NewServer(cfgB, storeB, utxoB)
	go serverB.ListenAndServe()
	defer serverB.Close()
	waitForListener(t, cfgB.NodeAddress)

	deadline := time.Now().Add(5 * time.Second)
	for {
		height, err := storeB.BestHeight()
		require.NoError(t, err)
		if height == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("storeB did not converge to height 3 within 5s (last height %d)", height)
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, hash := range wantHashes {
		got, err := storeB.GetBlock(hash)
		require.NoError(t, err, "storeB missing synced block %s", hash)
		want, err := storeA.GetBlock(hash)
		require.NoError(t, err)
		require.Equal(t, want.Serialize(), got.Serialize(), "block %s differs between storeA and storeB", hash)
	}

	wantUTXO, err := utxoA.FindUTXO(miner.PublicKeyHash())
	require.NoError(t, err)
	gotUTXO, err := utxoB.FindUTXO(miner.PublicKeyHash())
	require.NoError(t, err)
	require.Len(t, gotUTXO, len(wantUTXO))
}

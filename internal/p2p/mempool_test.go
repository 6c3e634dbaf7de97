package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeforge/bitledger/internal/chain"
	"github.com/nodeforge/bitledger/internal/codec"
	"github.com/nodeforge/bitledger/internal/wallet"
)

func TestMempoolAddGetRemove(t *testing.T) {
	w, err := wallet.New()
	require.NoError(t, err)
	tx, err := chain.NewCoinbaseTx(w.Address())
	require.NoError(t, err)

	m := NewMempool()
	idHex := codec.HexLower(tx.ID)

	require.False(t, m.Contains(idHex), "empty mempool should not contain anything")

	m.Add(tx)
	require.True(t, m.Contains(idHex), "mempool should contain the added transaction")
	require.Equal(t, 1, m.Len())

	got, ok := m.Get(idHex)
	require.True(t, ok)
	require.Equal(t, tx.ID, got.ID)

	m.Remove(idHex)
	require.False(t, m.Contains(idHex), "mempool should not contain the transaction after Remove")
	require.Equal(t, 0, m.Len())
}

func TestInFlightAddFirstRemove(t *testing.T) {
	f := NewInFlight()
	_, ok := f.First()
	require.False(t, ok, "empty in-flight set should have no first element")

	f.AddMany([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.Equal(t, 3, f.Len())

	first, ok := f.First()
	require.True(t, ok)
	require.Equal(t, "a", string(first))

	f.Remove(first)
	require.Equal(t, 2, f.Len())
}

func TestPeersAddContainsEvict(t *testing.T) {
	p := NewPeers()
	require.True(t, p.Contains(CenterNode), "a fresh peer registry should already know the center node")

	p.Add("127.0.0.1:3001")
	require.True(t, p.Contains("127.0.0.1:3001"))
	require.Len(t, p.List(), 2)

	p.Evict("127.0.0.1:3001")
	require.False(t, p.Contains("127.0.0.1:3001"))
}

func TestFingerprintIsStableAndShort(t *testing.T) {
	require.Equal(t, Fingerprint(CenterNode), Fingerprint(CenterNode))
	require.Len(t, Fingerprint(CenterNode), 8)
	require.NotEqual(t, Fingerprint(CenterNode), Fingerprint("127.0.0.1:3001"))
}

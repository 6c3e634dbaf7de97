package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	w, err := New()
	require.NoError(t, err)

	addr := w.Address()
	require.True(t, Validate(addr), "Validate rejected a freshly derived address %q", addr)

	hash, err := PubKeyHashFromAddress(addr)
	require.NoError(t, err)
	require.Equal(t, w.PublicKeyHash(), hash)
}

func TestValidateRejectsTamperedAddress(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	addr := w.Address()

	tampered := []byte(addr)
	last := tampered[len(tampered)-1]
	if last == 'Z' {
		tampered[len(tampered)-1] = 'A'
	} else {
		tampered[len(tampered)-1] = 'Z'
	}

	require.False(t, Validate(string(tampered)), "Validate accepted an address with a corrupted trailing character")
}

func TestValidateRejectsGarbage(t *testing.T) {
	require.False(t, Validate("not a real address"))
}

func TestRegistryPersistsAcrossLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallets.dat")

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Empty(t, reg.Addresses(), "fresh registry should start empty")

	addr, err := reg.CreateWallet()
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "expected registry file to exist after CreateWallet")

	reloaded, err := LoadRegistry(path)
	require.NoError(t, err)

	got, ok := reloaded.Get(addr)
	require.True(t, ok, "reloaded registry missing address %s", addr)
	require.Equal(t, addr, got.Address())
}

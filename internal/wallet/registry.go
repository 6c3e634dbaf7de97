package wallet

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"os"
)

// Registry is the on-disk collection of wallets known to this process,
// keyed by address. It is the concrete wallet oracle: lookup of a private
// key by textual address.
type Registry struct {
	Wallets map[string]*Wallet
	path    string
}

// LoadRegistry loads the wallet registry from path, returning an empty
// registry (not an error) if the file does not yet exist.
func LoadRegistry(path string) (*Registry, error) {
	reg := &Registry{Wallets: make(map[string]*Wallet), path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wallet: read %s: %w", path, err)
	}

	dec := gob.NewDecoder(bytes.NewReader(data))
	var wallets map[string]*Wallet
	if err := dec.Decode(&wallets); err != nil {
		return nil, fmt.Errorf("wallet: decode %s: %w", path, err)
	}
	reg.Wallets = wallets
	return reg, nil
}

// CreateWallet generates a new wallet, adds it to the registry, persists the
// registry to disk, and returns the new wallet's address.
func (r *Registry) CreateWallet() (string, error) {
	w, err := New()
	if err != nil {
		return "", err
	}
	address := w.Address()
	r.Wallets[address] = w
	if err := r.Save(); err != nil {
		return "", err
	}
	return address, nil
}

// Addresses lists every address this registry holds a wallet for.
func (r *Registry) Addresses() []string {
	addresses := make([]string, 0, len(r.Wallets))
	for address := range r.Wallets {
		addresses = append(addresses, address)
	}
	return addresses
}

// Get looks up a wallet by address, satisfying the wallet oracle interface
// the ledger core consumes.
func (r *Registry) Get(address string) (*Wallet, bool) {
	w, ok := r.Wallets[address]
	return w, ok
}

// Save persists the registry to its backing file.
func (r *Registry) Save() error {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(r.Wallets); err != nil {
		return fmt.Errorf("wallet: encode registry: %w", err)
	}
	if err := os.WriteFile(r.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("wallet: write %s: %w", r.path, err)
	}
	return nil
}

// MustGet looks up a wallet by address and panics if it is absent, used on
// paths where the caller has already validated the address belongs to this
// node (store inconsistency is a programming error per spec §7).
func (r *Registry) MustGet(address string) *Wallet {
	w, ok := r.Get(address)
	if !ok {
		log.Panicf("wallet: no wallet for address %s", address)
	}
	return w
}

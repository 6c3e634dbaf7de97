// Package wallet derives addresses from ECDSA key pairs and persists wallets
// to a local file, serving as the wallet oracle the ledger core consumes:
// lookup of a private key by textual address.
package wallet

import (
	"bytes"

	"github.com/nodeforge/bitledger/internal/codec"
)

const (
	// version is the address version byte. 0x00 mirrors Bitcoin mainnet; it
	// has no other meaning here since this chain has no other networks.
	version = byte(0x00)
	// checksumLength is the number of trailing checksum bytes in an address.
	checksumLength = 4
)

// Wallet holds one ECDSA P-256 key pair: a PKCS#8-encoded private key and
// the raw uncompressed public key derived from it.
type Wallet struct {
	PrivateKey []byte
	PublicKey  []byte
}

// New generates a fresh wallet with a new key pair.
func New() (*Wallet, error) {
	priv, pub, err := codec.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &Wallet{PrivateKey: priv, PublicKey: pub}, nil
}

// PublicKeyHash returns Hash160(PublicKey), the locking condition carried in
// outputs this wallet can spend.
func (w *Wallet) PublicKeyHash() []byte {
	return codec.Hash160(w.PublicKey)
}

// Address derives this wallet's Base58 textual address.
func (w *Wallet) Address() string {
	return Encode(w.PublicKeyHash())
}

// Encode builds the Base58 textual address for a public-key hash:
// Base58(version ‖ pubKeyHash ‖ checksum(version ‖ pubKeyHash)).
func Encode(pubKeyHash []byte) string {
	payload := append([]byte{version}, pubKeyHash...)
	payload = append(payload, checksum(payload)...)
	return codec.Base58Encode(payload)
}

// Validate reports whether address decodes to a well-formed payload whose
// trailing checksum matches the checksum recomputed from the rest of the
// payload.
func Validate(address string) bool {
	payload, err := codec.Base58Decode(address)
	if err != nil {
		return false
	}
	if len(payload) != 1+20+checksumLength {
		return false
	}
	body := payload[:len(payload)-checksumLength]
	want := payload[len(payload)-checksumLength:]
	return bytes.Equal(checksum(body), want)
}

// PubKeyHashFromAddress decodes address and extracts the 20-byte public-key
// hash, i.e. the middle of version ‖ pubKeyHash ‖ checksum. The caller is
// expected to have already validated the address.
func PubKeyHashFromAddress(address string) ([]byte, error) {
	payload, err := codec.Base58Decode(address)
	if err != nil {
		return nil, err
	}
	return payload[1 : len(payload)-checksumLength], nil
}

// checksum computes the first checksumLength bytes of SHA256(SHA256(payload)).
func checksum(payload []byte) []byte {
	return codec.SHA256d(payload)[:checksumLength]
}

package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"log"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SHA256d returns the double SHA-256 digest of data, used for address
// checksums.
func SHA256d(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// SHA3256 returns the SHA3-256 digest of data. It is not used for block or
// transaction ids (those are plain SHA-256, per spec); it backs
// internal/p2p.Fingerprint (peer address log identifiers) and
// chain.Block.ShortID (short block log identifiers).
func SHA3256(data []byte) []byte {
	sum := sha3.Sum256(data)
	return sum[:]
}

// RIPEMD160 returns the RIPEMD-160 digest of data. Hash160 of a public key
// is SHA256 followed by this.
func RIPEMD160(data []byte) []byte {
	h := ripemd160.New()
	if _, err := h.Write(data); err != nil {
		log.Panic(err)
	}
	return h.Sum(nil)
}

// Hash160 computes RIPEMD160(SHA256(data)), the public-key-hash locking
// condition used throughout the wallet and UTXO model.
func Hash160(data []byte) []byte {
	return RIPEMD160(SHA256(data))
}

// HexLower lowercase-hex encodes data. All hex encoding in the system is
// lowercase, per spec.
func HexLower(data []byte) string {
	return hex.EncodeToString(data)
}

// HexDecode decodes a lowercase-hex string back to bytes.
func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// Base58Encode encodes data as a Base58 string.
func Base58Encode(data []byte) string {
	return base58.Encode(data)
}

// Base58Decode decodes a Base58 string back to bytes.
func Base58Decode(s string) ([]byte, error) {
	return base58.Decode(s)
}

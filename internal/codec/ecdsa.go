package codec

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"math/big"
)

// curve is the fixed P-256 curve every key pair in the system uses.
func curve() elliptic.Curve { return elliptic.P256() }

// GenerateKeyPair creates a new ECDSA P-256 key pair. It returns the private
// key as a PKCS#8 blob (the form Sign and the wallet file both consume) and
// the raw, uncompressed public key (X ‖ Y, 64 bytes for P-256).
func GenerateKeyPair() (pkcs8 []byte, pubKey []byte, err error) {
	priv, err := ecdsa.GenerateKey(curve(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: generate key: %w", err)
	}
	pkcs8, err = x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: marshal pkcs8: %w", err)
	}
	pubKey = marshalPublicKey(&priv.PublicKey)
	return pkcs8, pubKey, nil
}

// marshalPublicKey returns the raw X‖Y encoding of a P-256 public key.
func marshalPublicKey(pub *ecdsa.PublicKey) []byte {
	size := (curve().Params().BitSize + 7) / 8
	out := make([]byte, 2*size)
	pub.X.FillBytes(out[:size])
	pub.Y.FillBytes(out[size:])
	return out
}

// unmarshalPublicKey reconstructs a P-256 public key from its raw X‖Y
// encoding.
func unmarshalPublicKey(raw []byte) *ecdsa.PublicKey {
	half := len(raw) / 2
	x := new(big.Int).SetBytes(raw[:half])
	y := new(big.Int).SetBytes(raw[half:])
	return &ecdsa.PublicKey{Curve: curve(), X: x, Y: y}
}

// Sign signs message with the private key carried in the PKCS#8 blob,
// returning a fixed-width signature (r ‖ s, each padded to the curve's byte
// size so the signature can be split deterministically on verification).
func Sign(pkcs8 []byte, message []byte) ([]byte, error) {
	key, err := x509.ParsePKCS8PrivateKey(pkcs8)
	if err != nil {
		return nil, fmt.Errorf("codec: parse pkcs8: %w", err)
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("codec: pkcs8 blob is not an ECDSA key")
	}
	r, s, err := ecdsa.Sign(rand.Reader, priv, message)
	if err != nil {
		return nil, fmt.Errorf("codec: sign: %w", err)
	}
	size := (curve().Params().BitSize + 7) / 8
	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out, nil
}

// Verify checks a fixed-width (r ‖ s) signature over message against the raw
// public key pubKey.
func Verify(pubKey []byte, signature []byte, message []byte) bool {
	if len(pubKey) == 0 || len(signature) == 0 {
		return false
	}
	half := len(signature) / 2
	r := new(big.Int).SetBytes(signature[:half])
	s := new(big.Int).SetBytes(signature[half:])
	pub := unmarshalPublicKey(pubKey)
	return ecdsa.Verify(pub, message, r, s)
}

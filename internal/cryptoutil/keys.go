// Package cryptoutil provides the gateway's key, hash, signature, and
// datastore-id primitives, grounded on the secp256k1 curve used throughout
// the fabric (datastore owner keys, device application keys, the gateway's
// master data key).
package cryptoutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	inner *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 public key.
type PublicKey struct {
	inner *secp256k1.PublicKey
}

// GeneratePrivateKey creates a new random private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return &PrivateKey{inner: k}, nil
}

// ParsePrivateKeyHex parses a hex-encoded 32-byte secp256k1 private key.
func ParsePrivateKeyHex(s string) (*PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(raw))
	}
	return &PrivateKey{inner: secp256k1.PrivKeyFromBytes(raw)}, nil
}

// PubKey derives the public key for this private key.
func (p *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{inner: p.inner.PubKey()}
}

// Sign produces a deterministic ECDSA signature (DER-encoded) over hash.
func (p *PrivateKey) Sign(hash []byte) []byte {
	sig := ecdsa.Sign(p.inner, hash)
	return sig.Serialize()
}

// Bytes returns the raw 32-byte private key.
func (p *PrivateKey) Bytes() []byte {
	b := p.inner.Serialize()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ParsePublicKeyCompressed parses a 33-byte compressed public key.
func ParsePublicKeyCompressed(raw []byte) (*PublicKey, error) {
	pk, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &PublicKey{inner: pk}, nil
}

// ParsePublicKeyHex parses a hex-encoded compressed public key.
func ParsePublicKeyHex(s string) (*PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key hex: %w", err)
	}
	return ParsePublicKeyCompressed(raw)
}

// SerializeCompressed returns the 33-byte compressed encoding.
func (k *PublicKey) SerializeCompressed() []byte {
	return k.inner.SerializeCompressed()
}

// Hex returns the hex-encoded compressed public key.
func (k *PublicKey) Hex() string {
	return hex.EncodeToString(k.SerializeCompressed())
}

// Equal reports whether two public keys have the same compressed form.
// Spec §4.3 step 3 requires exactly this comparison (compressed form, not
// point equality under some other encoding).
func (k *PublicKey) Equal(other *PublicKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return bytes.Equal(k.SerializeCompressed(), other.SerializeCompressed())
}

// Verify checks an ECDSA signature (DER-encoded) over hash.
func (k *PublicKey) Verify(hash, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(hash, k.inner)
}

// Sha256 returns the SHA-256 digest of data. Used to hash JWT signing
// input and to verify file payload hashes (spec §3 File Header).
func Sha256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Sha256Hex returns the hex-encoded SHA-256 digest of data. This is the
// data_hash format used in File Header records.
func Sha256Hex(data []byte) string {
	return hex.EncodeToString(Sha256(data))
}

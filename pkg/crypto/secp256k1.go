// Package crypto holds the secp256k1 key material used to authorize
// transparent inputs.
//
// Key formats:
//   - Private keys: WIF or raw 32 bytes
//   - Public keys: compressed 33-byte SEC1
//   - Signatures: DER, as carried in P2PKH scriptSigs
package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// WIF version bytes.
const (
	WIFMainnet byte = 0x80
	WIFTestnet byte = 0xEF
)

// PrivateKey is a secp256k1 signing key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey is a secp256k1 verification key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GeneratePrivateKey returns a fresh random key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generating secp256k1 key")
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes wraps a raw 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// ParsePrivateKeyWIF decodes a WIF private key for either network.
func ParsePrivateKeyWIF(wif string) (*PrivateKey, error) {
	payload, version, err := base58.CheckDecode(wif)
	if err != nil {
		return nil, errors.Wrap(err, "decoding WIF")
	}
	if version != WIFMainnet && version != WIFTestnet {
		return nil, fmt.Errorf("invalid WIF version byte: 0x%02x", version)
	}
	switch {
	case len(payload) == 32:
	case len(payload) == 33 && payload[32] == 0x01:
		payload = payload[:32]
	default:
		return nil, errors.New("invalid WIF payload length")
	}
	return PrivateKeyFromBytes(payload)
}

// EncodeWIF encodes the key as compressed WIF under the given version byte.
func (pk *PrivateKey) EncodeWIF(version byte) string {
	payload := append(pk.key.Serialize(), 0x01)
	return base58.CheckEncode(payload, version)
}

// Sign returns a DER-encoded ECDSA signature over hash.
func (pk *PrivateKey) Sign(hash [32]byte) []byte {
	return ecdsa.Sign(pk.key, hash[:]).Serialize()
}

// PublicKey derives the verification key.
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Bytes returns the raw 32-byte scalar.
func (pk *PrivateKey) Bytes() []byte {
	return pk.key.Serialize()
}

// Zero overwrites the key material.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// ParsePublicKey parses a compressed public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b) != secp256k1.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("compressed public key must be 33 bytes, got %d", len(b))
	}
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, errors.Wrap(err, "parsing public key")
	}
	return &PublicKey{key: key}, nil
}

// Bytes returns the compressed encoding.
func (pub *PublicKey) Bytes() []byte {
	return pub.key.SerializeCompressed()
}

// Hash160 returns RIPEMD160(SHA256(compressed key)), the P2PKH key hash.
func (pub *PublicKey) Hash160() [20]byte {
	return Hash160(pub.Bytes())
}

// Verify checks a DER signature over hash.
func (pub *PublicKey) Verify(hash [32]byte, der []byte) bool {
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}
	return sig.Verify(hash[:], pub.key)
}

// Hash160 computes RIPEMD160(SHA256(b)).
func Hash160(b []byte) [20]byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

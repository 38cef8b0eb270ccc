// Package devcrypto is a deterministic stand-in for the Sprout, Sapling and
// Orchard cryptography. Every primitive is a personalised BLAKE2b
// transcript, and value commitments are additive modulo 2^255-19 so that
// binding signatures can be checked against public data.
//
// It is meant for tests and development networks. It offers no privacy and
// no soundness: never use it to build a transaction for a real network.
package devcrypto

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/minio/blake2b-simd"
	"lukechampine.com/frand"

	"github.com/suffix-labs/zcash-txbuilder/pkg/orchard"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sapling"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sprout"
)

// Engine implements sprout.Prover. Its Sapling and Orchard fields
// implement the backends of those pools.
type Engine struct {
	rand io.Reader

	Sapling *Sapling
	Orchard *Orchard
}

// Sapling implements sapling.Backend.
type Sapling struct {
	rand io.Reader
}

// Orchard implements orchard.Backend.
type Orchard struct {
	rand io.Reader
}

var (
	_ sprout.Prover   = (*Engine)(nil)
	_ sapling.Backend = (*Sapling)(nil)
	_ orchard.Backend = (*Orchard)(nil)
)

// New returns an engine drawing internal randomness from r. A nil r
// selects frand.Reader.
func New(r io.Reader) *Engine {
	if r == nil {
		r = frand.Reader
	}
	return &Engine{rand: r, Sapling: &Sapling{rand: r}, Orchard: &Orchard{rand: r}}
}

// SeededReader returns a deterministic CSPRNG stream for seed.
func SeededReader(seed [32]byte) io.Reader {
	return frand.NewCustom(seed[:], 1024, 12)
}

// NewSeeded returns an engine whose internal randomness is reproducible.
func NewSeeded(seed [32]byte) *Engine {
	return New(SeededReader(seed))
}

// hashN hashes length-prefixed parts into size bytes.
func hashN(size uint8, person string, parts ...[]byte) []byte {
	h, err := blake2b.New(&blake2b.Config{Size: size, Person: []byte(person)})
	if err != nil {
		panic(fmt.Sprintf("devcrypto: %s: %v", person, err))
	}
	var n [4]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint32(n[:], uint32(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return h.Sum(nil)
}

func h32(person string, parts ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], hashN(32, person, parts...))
	return out
}

func h64(person string, parts ...[]byte) [64]byte {
	var out [64]byte
	copy(out[:], hashN(64, person, parts...))
	return out
}

// expand stretches parts into n pseudorandom bytes.
func expand(person string, n int, parts ...[]byte) []byte {
	out := make([]byte, 0, n+64)
	var ctr [8]byte
	for i := uint64(0); len(out) < n; i++ {
		binary.LittleEndian.PutUint64(ctr[:], i)
		block := h64(person, append([][]byte{ctr[:]}, parts...)...)
		out = append(out, block[:]...)
	}
	return out[:n]
}

func u64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

const tagSize = 16

// seal encrypts pt under key and appends a tag.
func seal(person string, key [32]byte, pt []byte) []byte {
	ks := expand(person, len(pt), key[:])
	ct := make([]byte, len(pt), len(pt)+tagSize)
	for i := range pt {
		ct[i] = pt[i] ^ ks[i]
	}
	tag := h32("ZcDevSealTag____", key[:], ct)
	return append(ct, tag[:tagSize]...)
}

// open reverses seal, failing when the tag does not match.
func open(person string, key [32]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < tagSize {
		return nil, fmt.Errorf("devcrypto: ciphertext too short")
	}
	ct := sealed[:len(sealed)-tagSize]
	tag := h32("ZcDevSealTag____", key[:], ct)
	if string(tag[:tagSize]) != string(sealed[len(ct):]) {
		return nil, fmt.Errorf("devcrypto: ciphertext is not addressed to this key")
	}
	ks := expand(person, len(ct), key[:])
	pt := make([]byte, len(ct))
	for i := range ct {
		pt[i] = ct[i] ^ ks[i]
	}
	return pt, nil
}

// Scalars live in Z/pZ with p = 2^255-19 and are encoded little-endian.
var (
	modulus = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))
	baseV   = scalarFromHash("ZcDevValueBase__")
	baseR   = scalarFromHash("ZcDevRandBase___")
)

func scalarFromHash(person string) *big.Int {
	b := hashN(64, person)
	return new(big.Int).Mod(new(big.Int).SetBytes(b), modulus)
}

func toInt(s [32]byte) *big.Int {
	be := make([]byte, 32)
	for i := range s {
		be[31-i] = s[i]
	}
	return new(big.Int).SetBytes(be)
}

func fromInt(x *big.Int) [32]byte {
	x = new(big.Int).Mod(x, modulus)
	be := x.FillBytes(make([]byte, 32))
	var out [32]byte
	for i := range be {
		out[31-i] = be[i]
	}
	return out
}

// randomScalar reduces 64 random bytes modulo p.
func randomScalar(r io.Reader) ([32]byte, error) {
	var wide [64]byte
	if _, err := io.ReadFull(r, wide[:]); err != nil {
		return [32]byte{}, err
	}
	return fromInt(new(big.Int).SetBytes(wide[:])), nil
}

// commit returns value*V + rcv*R.
func commit(value int64, rcv [32]byte) [32]byte {
	x := new(big.Int).Mul(big.NewInt(value), baseV)
	x.Add(x, new(big.Int).Mul(toInt(rcv), baseR))
	return fromInt(x)
}

// bindingKeyFor maps a binding signing key to its verification key.
func bindingKeyFor(bsk [32]byte) [32]byte {
	return fromInt(new(big.Int).Mul(toInt(bsk), baseR))
}

// bindingKeyFromCommitments derives the verification key from public data:
// sum(positive) - sum(negative) - valueBalance*V.
func bindingKeyFromCommitments(positive, negative [][32]byte, valueBalance int64) [32]byte {
	x := new(big.Int)
	for _, cv := range positive {
		x.Add(x, toInt(cv))
	}
	for _, cv := range negative {
		x.Sub(x, toInt(cv))
	}
	x.Sub(x, new(big.Int).Mul(big.NewInt(valueBalance), baseV))
	return fromInt(x)
}

func bindingSig(bvk, sighash [32]byte) [64]byte {
	return h64("ZcDevBindingSig_", bvk[:], sighash[:])
}

func spendAuthSig(rk, sighash [32]byte) [64]byte {
	return h64("ZcDevSpendAuth__", rk[:], sighash[:])
}

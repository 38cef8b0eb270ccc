// Package sapling builds the Sapling part of a transaction.
//
// Spends and outputs are collected by a Builder, whose Build fixes the
// bundle's shape (nullifiers, commitments, ciphertexts, proofs) and returns
// an UnauthorizedBundle. Authorize then signs that shape with the
// transaction's shielded signature hash.
package sapling

import (
	"io"

	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// MerkleDepth is the depth of the Sapling note commitment tree.
const MerkleDepth = 32

// ExpandedSpendingKey holds the three secrets derived from a Sapling
// spending key.
type ExpandedSpendingKey struct {
	Ask [32]byte // spend authorizing key
	Nsk [32]byte // proof authorizing key
	Ovk [32]byte // outgoing viewing key
}

// PaymentAddress is a Sapling shielded address.
type PaymentAddress struct {
	Diversifier [11]byte
	PkD         [32]byte
}

// Pool implements transaction.Recipient.
func (PaymentAddress) Pool() transaction.Pool { return transaction.PoolSapling }

// Note is a Sapling note.
type Note struct {
	Diversifier [11]byte
	PkD         [32]byte
	Value       uint64
	Rcm         [32]byte
}

// Address returns the address the note pays to.
func (n Note) Address() PaymentAddress {
	return PaymentAddress{Diversifier: n.Diversifier, PkD: n.PkD}
}

// MerklePath is the authentication path of a note commitment.
type MerklePath struct {
	Position uint64
	AuthPath [MerkleDepth][32]byte
}

// Backend is the Sapling cryptography the builder relies on.
type Backend interface {
	// RandomScalar draws a uniformly random Jubjub scalar from r.
	RandomScalar(r io.Reader) ([32]byte, error)
	NoteCommitment(note Note) ([32]byte, error)
	Nullifier(expsk ExpandedSpendingKey, note Note, position uint64) ([32]byte, error)
	// EncryptNote encrypts note and memo to the note's recipient and
	// returns the ciphertext, the ephemeral public key and its secret.
	EncryptNote(note Note, memo transaction.Memo, r io.Reader) (enc [transaction.NoteEncCiphertextSize]byte, epk, esk [32]byte, err error)
	// EncryptOutgoing lets the holder of ovk recover the note later.
	EncryptOutgoing(ovk, pkD, esk, cv, cmu, epk [32]byte) ([transaction.NoteOutCiphertextSize]byte, error)
	SpendSig(ask, alpha, sighash [32]byte) ([transaction.SignatureSize]byte, error)
	NewProvingContext() ProvingContext
}

// ProvingContext accumulates the value commitment randomness of one bundle
// so the binding signature can be produced at the end. Release must be
// called once the context is no longer needed.
type ProvingContext interface {
	SpendProof(expsk ExpandedSpendingKey, note Note, alpha, anchor [32]byte, path MerklePath) (cv, rk [32]byte, proof [transaction.GrothProofSize]byte, err error)
	OutputProof(esk [32]byte, to PaymentAddress, rcm [32]byte, value uint64) (cv [32]byte, proof [transaction.GrothProofSize]byte, err error)
	BindingSig(valueBalance transaction.Amount, sighash [32]byte) ([transaction.SignatureSize]byte, error)
	Release()
}

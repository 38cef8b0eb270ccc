// Package orchard builds the Orchard part of a transaction in two phases.
//
// A Builder is configured with the bundle flags and anchor, collects spends
// and outputs, and Build pairs them into actions, producing an
// UnauthorizedBundle. The transaction's shielded signature hash is then
// computed with SignatureHash, which alone may read the unauthorized
// bundle's actions, and ProveAndSign turns the bundle into its final
// authorized form. Each phase object is consumed by its transition.
package orchard

import (
	"io"

	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

const (
	// MinActions is the smallest number of actions in a non-empty bundle.
	MinActions = 2

	// MerkleDepth is the depth of the Orchard note commitment tree.
	MerkleDepth = 32
)

// Bundle flags.
const (
	FlagSpendsEnabled  uint8 = 1 << 0
	FlagOutputsEnabled uint8 = 1 << 1
)

// SpendingKey is an Orchard spending key.
type SpendingKey [32]byte

// FullViewingKey is the encoding of (ak, nk, rivk).
type FullViewingKey [96]byte

// Address is a raw Orchard address: diversifier followed by pk_d.
type Address [43]byte

// Pool implements transaction.Recipient.
func (Address) Pool() transaction.Pool { return transaction.PoolOrchard }

// Note is an Orchard note.
type Note struct {
	Recipient Address
	Value     uint64
	Rho       [32]byte
	Rseed     [32]byte
}

// MerklePath is the authentication path of a note commitment.
type MerklePath struct {
	Position uint32
	AuthPath [MerkleDepth][32]byte
}

// EncryptedNote is the output half of an action.
type EncryptedNote struct {
	Cmx           [32]byte
	EphemeralKey  [32]byte
	EncCiphertext [transaction.NoteEncCiphertextSize]byte
	OutCiphertext [transaction.NoteOutCiphertextSize]byte
}

// ActionWitness is the private input to the proof for one action.
type ActionWitness struct {
	Fvk        FullViewingKey
	SpendNote  Note
	Path       MerklePath
	Alpha      [32]byte
	OutputNote Note
	Rcv        [32]byte
}

// Backend is the Orchard cryptography the builder relies on.
type Backend interface {
	FullViewingKey(sk SpendingKey) (FullViewingKey, error)
	// DefaultAddress returns the address at diversifier index zero.
	DefaultAddress(fvk FullViewingKey) (Address, error)
	OutgoingViewingKey(fvk FullViewingKey) ([32]byte, error)

	// RandomScalar draws a uniformly random Pallas scalar from r.
	RandomScalar(r io.Reader) ([32]byte, error)
	Nullifier(fvk FullViewingKey, note Note) ([32]byte, error)
	RandomizedKey(fvk FullViewingKey, alpha [32]byte) ([32]byte, error)
	// ValueCommitment commits to a signed net value with randomness rcv.
	ValueCommitment(value int64, rcv [32]byte) ([32]byte, error)
	// BindingKey sums the value commitment randomness of every action.
	BindingKey(rcvs [][32]byte) ([32]byte, error)
	// EncryptNote encrypts note to its recipient; a nil ovk makes the
	// outgoing ciphertext unrecoverable.
	EncryptNote(ovk *[32]byte, note Note, memo transaction.Memo, cv [32]byte, r io.Reader) (EncryptedNote, error)

	Prove(anchor [32]byte, witnesses []ActionWitness) ([]byte, error)
	SignSpendAuth(sk SpendingKey, alpha, sighash [32]byte) ([transaction.SignatureSize]byte, error)
	SignBinding(bsk, sighash [32]byte) ([transaction.SignatureSize]byte, error)
}

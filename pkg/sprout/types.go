// Package sprout assembles Sprout JoinSplit descriptions.
//
// A JoinSplit consumes exactly NumJSInputs notes and creates exactly
// NumJSOutputs notes; unused slots are filled with zero-valued dummy notes
// that an observer cannot tell apart from real ones. Proof generation and
// note encryption are delegated to a Prover.
package sprout

import (
	"encoding/hex"
	"io"

	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

const (
	NumJSInputs  = transaction.NumJSInputs
	NumJSOutputs = transaction.NumJSOutputs

	// MerkleDepth is the depth of the Sprout note commitment tree.
	MerkleDepth = 29

	// MaxSpends caps the Sprout notes one transaction may spend.
	MaxSpends = 10
)

// EmptyRoot is the root of the empty Sprout commitment tree, in internal
// byte order. JoinSplits that spend no real note use it as their anchor.
var EmptyRoot = func() [32]byte {
	// Displayed big-endian as 59d2cde5...; stored reversed.
	b, err := hex.DecodeString("d7c612c817793191a1e68652121876d6b3bde40f4fa52bc314145ce6e5cdd259")
	if err != nil {
		panic(err)
	}
	var root [32]byte
	copy(root[:], b)
	return root
}()

// SpendingKey is a 252-bit Sprout spending key a_sk.
type SpendingKey [32]byte

// RandomSpendingKey draws a spending key from r, clearing the top four bits.
func RandomSpendingKey(r io.Reader) (SpendingKey, error) {
	var sk SpendingKey
	if _, err := io.ReadFull(r, sk[:]); err != nil {
		return sk, err
	}
	sk[0] &= 0x0F
	return sk, nil
}

// PaymentAddress is a Sprout shielded address.
type PaymentAddress struct {
	APk   [32]byte
	PkEnc [32]byte
}

// Pool implements transaction.Recipient.
func (PaymentAddress) Pool() transaction.Pool { return transaction.PoolSprout }

// Note is a Sprout note.
type Note struct {
	APk   [32]byte
	Value uint64
	Rho   [32]byte
	R     [32]byte
}

// Witness is the authentication path of a note commitment.
type Witness struct {
	Position uint64
	AuthPath [MerkleDepth][32]byte
}

// JSInput is one input slot of a JoinSplit.
type JSInput struct {
	Witness Witness
	Note    Note
	Key     SpendingKey
}

// JSOutput is one output slot of a JoinSplit.
type JSOutput struct {
	Addr  PaymentAddress
	Value uint64
	Memo  transaction.Memo
}

// SlotMap records, for one JoinSplit, the physical slot each caller-facing
// input and output ended up in: Inputs[k] is where the k-th logical input
// of the group was placed.
type SlotMap struct {
	Inputs  [NumJSInputs]int
	Outputs [NumJSOutputs]int
}

// IdentitySlotMap leaves every element in place.
func IdentitySlotMap() SlotMap {
	var m SlotMap
	for i := range m.Inputs {
		m.Inputs[i] = i
	}
	for i := range m.Outputs {
		m.Outputs[i] = i
	}
	return m
}

// Prover is the cryptographic backend for Sprout.
type Prover interface {
	// Address derives the payment address of sk.
	Address(sk SpendingKey) (PaymentAddress, error)

	// JoinSplit derives nullifiers, commitments and ciphertexts for info
	// and, when computeProof is set, the zero-knowledge proof. It also
	// returns the ephemeral secret used for note encryption.
	JoinSplit(info *JSDescriptionInfo, computeProof bool) (transaction.JSDescription, [32]byte, error)
}

// DummyInput returns a zero-valued input under a fresh key.
func DummyInput(p Prover, r io.Reader) (JSInput, error) {
	sk, err := RandomSpendingKey(r)
	if err != nil {
		return JSInput{}, err
	}
	addr, err := p.Address(sk)
	if err != nil {
		return JSInput{}, err
	}
	in := JSInput{Key: sk, Note: Note{APk: addr.APk}}
	if _, err := io.ReadFull(r, in.Note.Rho[:]); err != nil {
		return JSInput{}, err
	}
	if _, err := io.ReadFull(r, in.Note.R[:]); err != nil {
		return JSInput{}, err
	}
	return in, nil
}

// DummyOutput returns a zero-valued output to a fresh address.
func DummyOutput(p Prover, r io.Reader) (JSOutput, error) {
	sk, err := RandomSpendingKey(r)
	if err != nil {
		return JSOutput{}, err
	}
	addr, err := p.Address(sk)
	if err != nil {
		return JSOutput{}, err
	}
	return JSOutput{Addr: addr, Memo: transaction.NoMemo()}, nil
}

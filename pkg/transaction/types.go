// Package transaction defines the finished Zcash transaction produced by the
// builder, together with its wire encoding.
//
// A transaction without JoinSplits encodes exactly as the v5 format of
// ZIP 225. v5 has no room for Sprout, so a transaction that carries
// JoinSplits uses a non-standard extension: its version group ID is
// SproutExtensionVersionGroupID and a JoinSplit section sits between the
// transparent and Sapling sections. Only this package's Parse reads it.
//
// References:
//   - ZIP 225: https://zips.z.cash/zip-0225
//   - ZIP 203 (expiry): https://zips.z.cash/zip-0203
package transaction

import "fmt"

// VersionGroupFor returns the version group ID a transaction with the given
// number of JoinSplits must carry.
func VersionGroupFor(joinSplits int) uint32 {
	if joinSplits > 0 {
		return SproutExtensionVersionGroupID
	}
	return V5VersionGroupID
}

// Header constants for v5 transactions.
const (
	V5TxVersion      uint32 = 5
	V5VersionGroupID uint32 = 0x26A7270A

	// SproutExtensionVersionGroupID marks a v5 transaction extended with a
	// Sprout JoinSplit section. It is not a consensus value.
	SproutExtensionVersionGroupID uint32 = 0x5350F10A

	// OverwinteredFlag is OR'd into the version field on the wire.
	OverwinteredFlag uint32 = 1 << 31

	// DefaultSequence is the nSequence written for every transparent input.
	DefaultSequence uint32 = 0xFFFFFFFF

	// MaxExpiryHeight is the exclusive upper bound on nExpiryHeight.
	MaxExpiryHeight uint32 = 500000000
)

// Sizes of fixed-width shielded fields.
const (
	NumJSInputs  = 2
	NumJSOutputs = 2

	GrothProofSize          = 192
	SproutCiphertextSize    = 601
	NoteEncCiphertextSize   = 580
	NoteOutCiphertextSize   = 80
	SignatureSize           = 64
	JoinSplitPubKeySize     = 32
	MaxOrchardProofSize     = 1 << 20
	maxPreallocatedElements = 1 << 12
)

// Pool identifies one of the four value pools a transaction can touch.
type Pool uint8

const (
	PoolTransparent Pool = iota
	PoolSprout
	PoolSapling
	PoolOrchard
)

func (p Pool) String() string {
	switch p {
	case PoolTransparent:
		return "transparent"
	case PoolSprout:
		return "sprout"
	case PoolSapling:
		return "sapling"
	case PoolOrchard:
		return "orchard"
	default:
		return fmt.Sprintf("pool(%d)", uint8(p))
	}
}

// Recipient is any destination that value can be sent to. Each pool's
// address type implements it.
type Recipient interface {
	Pool() Pool
}

// OutPoint references a transparent output of an earlier transaction.
type OutPoint struct {
	TxID  [32]byte
	Index uint32
}

// TxIn is a transparent input. ScriptSig is empty until the input is signed.
type TxIn struct {
	PrevOut   OutPoint
	ScriptSig []byte
	Sequence  uint32
}

// TxOut is a transparent output.
type TxOut struct {
	Value        Amount
	ScriptPubKey []byte
}

// JSDescription is one Sprout JoinSplit: two note inputs, two note outputs,
// and a public value flowing in (VPubOld) and out (VPubNew) of the pool.
type JSDescription struct {
	VPubOld      Amount
	VPubNew      Amount
	Anchor       [32]byte
	Nullifiers   [NumJSInputs][32]byte
	Commitments  [NumJSOutputs][32]byte
	EphemeralKey [32]byte
	RandomSeed   [32]byte
	Macs         [NumJSInputs][32]byte
	Proof        [GrothProofSize]byte
	Ciphertexts  [NumJSOutputs][SproutCiphertextSize]byte
}

// SpendDescription is a Sapling spend. The anchor is shared by every spend
// and lives on the SaplingBundle.
type SpendDescription struct {
	CV           [32]byte
	Nullifier    [32]byte
	Rk           [32]byte
	Proof        [GrothProofSize]byte
	SpendAuthSig [SignatureSize]byte
}

// OutputDescription is a Sapling output.
type OutputDescription struct {
	CV            [32]byte
	Cmu           [32]byte
	EphemeralKey  [32]byte
	EncCiphertext [NoteEncCiphertextSize]byte
	OutCiphertext [NoteOutCiphertextSize]byte
	Proof         [GrothProofSize]byte
}

// SaplingBundle holds the Sapling part of a transaction.
//
// ValueBalance is the net value leaving the pool (spends minus outputs).
// Anchor is meaningful only when there is at least one spend.
type SaplingBundle struct {
	Spends       []SpendDescription
	Outputs      []OutputDescription
	ValueBalance Amount
	Anchor       [32]byte
	BindingSig   [SignatureSize]byte
}

// Empty reports whether the bundle has no spends and no outputs.
func (b *SaplingBundle) Empty() bool {
	return b == nil || (len(b.Spends) == 0 && len(b.Outputs) == 0)
}

// OrchardAction pairs one spend with one output.
type OrchardAction struct {
	CV            [32]byte
	Nullifier     [32]byte
	Rk            [32]byte
	Cmx           [32]byte
	EphemeralKey  [32]byte
	EncCiphertext [NoteEncCiphertextSize]byte
	OutCiphertext [NoteOutCiphertextSize]byte
	SpendAuthSig  [SignatureSize]byte
}

// OrchardBundle holds the authorized Orchard part of a transaction.
type OrchardBundle struct {
	Actions      []OrchardAction
	Flags        uint8
	ValueBalance Amount
	Anchor       [32]byte
	Proof        []byte
	BindingSig   [SignatureSize]byte
}

// Transaction is a fully assembled Zcash transaction.
//
// Version holds the bare version number; the overwintered bit is added
// during encoding. Absent shielded pools are represented by an empty
// JoinSplits slice and nil Sapling/Orchard bundles.
type Transaction struct {
	Version           uint32
	VersionGroupID    uint32
	ConsensusBranchID uint32
	LockTime          uint32
	ExpiryHeight      uint32

	Inputs  []TxIn
	Outputs []TxOut

	JoinSplits      []JSDescription
	JoinSplitPubKey [JoinSplitPubKeySize]byte
	JoinSplitSig    [SignatureSize]byte

	Sapling *SaplingBundle
	Orchard *OrchardBundle
}

// SaplingValueBalance returns the Sapling value balance, zero when absent.
func (tx *Transaction) SaplingValueBalance() Amount {
	if tx.Sapling == nil {
		return 0
	}
	return tx.Sapling.ValueBalance
}

// OrchardValueBalance returns the Orchard value balance, zero when absent.
func (tx *Transaction) OrchardValueBalance() Amount {
	if tx.Orchard == nil {
		return 0
	}
	return tx.Orchard.ValueBalance
}

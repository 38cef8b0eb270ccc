package sapling

import (
	"fmt"
	"io"

	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// SpendDescriptionInfo is a queued Sapling spend.
type SpendDescriptionInfo struct {
	Expsk  ExpandedSpendingKey
	Note   Note
	Alpha  [32]byte
	Anchor [32]byte
	Path   MerklePath
}

// NewSpendDescriptionInfo draws the spend authorization randomizer alpha.
func NewSpendDescriptionInfo(b Backend, r io.Reader, expsk ExpandedSpendingKey, note Note, anchor [32]byte, path MerklePath) (SpendDescriptionInfo, error) {
	alpha, err := b.RandomScalar(r)
	if err != nil {
		return SpendDescriptionInfo{}, fmt.Errorf("sapling: alpha: %w", err)
	}
	return SpendDescriptionInfo{Expsk: expsk, Note: note, Alpha: alpha, Anchor: anchor, Path: path}, nil
}

// Build produces the spend description, proof included and signature
// still empty.
func (s *SpendDescriptionInfo) Build(b Backend, ctx ProvingContext) (transaction.SpendDescription, error) {
	var desc transaction.SpendDescription

	nf, err := b.Nullifier(s.Expsk, s.Note, s.Path.Position)
	if err != nil {
		return desc, fmt.Errorf("sapling: nullifier: %w", err)
	}
	cv, rk, proof, err := ctx.SpendProof(s.Expsk, s.Note, s.Alpha, s.Anchor, s.Path)
	if err != nil {
		return desc, fmt.Errorf("sapling: spend proof: %w", err)
	}

	desc.CV = cv
	desc.Nullifier = nf
	desc.Rk = rk
	desc.Proof = proof
	return desc, nil
}

// OutputDescriptionInfo is a queued Sapling output. A nil Ovk makes the
// output unrecoverable by the sender.
type OutputDescriptionInfo struct {
	Ovk  *[32]byte
	Note Note
	Memo transaction.Memo
}

// NewOutputDescriptionInfo draws the note commitment randomness.
func NewOutputDescriptionInfo(b Backend, r io.Reader, ovk *[32]byte, to PaymentAddress, value uint64, memo transaction.Memo) (OutputDescriptionInfo, error) {
	rcm, err := b.RandomScalar(r)
	if err != nil {
		return OutputDescriptionInfo{}, fmt.Errorf("sapling: rcm: %w", err)
	}
	note := Note{Diversifier: to.Diversifier, PkD: to.PkD, Value: value, Rcm: rcm}
	return OutputDescriptionInfo{Ovk: ovk, Note: note, Memo: memo}, nil
}

// Build produces the output description with its proof.
func (o *OutputDescriptionInfo) Build(b Backend, ctx ProvingContext, r io.Reader) (transaction.OutputDescription, error) {
	var desc transaction.OutputDescription

	cmu, err := b.NoteCommitment(o.Note)
	if err != nil {
		return desc, fmt.Errorf("sapling: note commitment: %w", err)
	}
	enc, epk, esk, err := b.EncryptNote(o.Note, o.Memo, r)
	if err != nil {
		return desc, fmt.Errorf("sapling: note encryption: %w", err)
	}
	cv, proof, err := ctx.OutputProof(esk, o.Note.Address(), o.Note.Rcm, o.Note.Value)
	if err != nil {
		return desc, fmt.Errorf("sapling: output proof: %w", err)
	}

	if o.Ovk != nil {
		desc.OutCiphertext, err = b.EncryptOutgoing(*o.Ovk, o.Note.PkD, esk, cv, cmu, epk)
		if err != nil {
			return desc, fmt.Errorf("sapling: outgoing encryption: %w", err)
		}
	} else if _, err := io.ReadFull(r, desc.OutCiphertext[:]); err != nil {
		return desc, fmt.Errorf("sapling: outgoing padding: %w", err)
	}

	desc.CV = cv
	desc.Cmu = cmu
	desc.EphemeralKey = epk
	desc.EncCiphertext = enc
	desc.Proof = proof
	return desc, nil
}

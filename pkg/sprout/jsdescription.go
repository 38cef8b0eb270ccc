package sprout

import (
	"errors"
	"fmt"

	"github.com/suffix-labs/zcash-txbuilder/pkg/shuffle"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// ErrUnbalanced is returned when a JoinSplit's private and public values
// do not sum to zero.
var ErrUnbalanced = errors.New("sprout: joinsplit does not balance")

// JSDescriptionInfo is everything needed to produce one JoinSplit.
type JSDescriptionInfo struct {
	JoinSplitPubKey [32]byte
	Anchor          [32]byte
	Inputs          [NumJSInputs]JSInput
	Outputs         [NumJSOutputs]JSOutput
	VPubOld         transaction.Amount
	VPubNew         transaction.Amount
}

// checkBalance enforces vpub_old + sum(inputs) == vpub_new + sum(outputs)
// with every term in money range.
func (info *JSDescriptionInfo) checkBalance() error {
	if !transaction.MoneyRange(info.VPubOld) || !transaction.MoneyRange(info.VPubNew) {
		return fmt.Errorf("%w: public value out of range", ErrUnbalanced)
	}
	if info.VPubOld != 0 && info.VPubNew != 0 {
		return fmt.Errorf("%w: vpub_old and vpub_new are both non-zero", ErrUnbalanced)
	}

	lhs := info.VPubOld
	for _, in := range info.Inputs {
		v := transaction.Amount(in.Note.Value)
		if !transaction.MoneyRange(v) {
			return fmt.Errorf("%w: input value out of range", ErrUnbalanced)
		}
		lhs += v
	}
	rhs := info.VPubNew
	for _, out := range info.Outputs {
		v := transaction.Amount(out.Value)
		if !transaction.MoneyRange(v) {
			return fmt.Errorf("%w: output value out of range", ErrUnbalanced)
		}
		rhs += v
	}
	if lhs != rhs {
		return fmt.Errorf("%w: %d in, %d out", ErrUnbalanced, lhs, rhs)
	}
	return nil
}

// BuildDeterministic produces the JoinSplit with inputs and outputs in the
// order given. It returns the description and the ephemeral secret used
// for note encryption.
func (info *JSDescriptionInfo) BuildDeterministic(p Prover, computeProof bool) (transaction.JSDescription, [32]byte, error) {
	if err := info.checkBalance(); err != nil {
		return transaction.JSDescription{}, [32]byte{}, err
	}
	js, esk, err := p.JoinSplit(info, computeProof)
	if err != nil {
		return transaction.JSDescription{}, [32]byte{}, fmt.Errorf("sprout: joinsplit: %w", err)
	}
	return js, esk, nil
}

// BuildRandomized permutes the input and output slots independently with
// gen, then builds as BuildDeterministic. The returned SlotMap tells the
// caller where each of its inputs and outputs now sits; info.Inputs and
// info.Outputs are left in their permuted order.
func (info *JSDescriptionInfo) BuildRandomized(p Prover, gen shuffle.Gen, computeProof bool) (transaction.JSDescription, [32]byte, SlotMap, error) {
	var m SlotMap
	shuffle.MappedShuffle(info.Inputs[:], m.Inputs[:], gen)
	shuffle.MappedShuffle(info.Outputs[:], m.Outputs[:], gen)

	js, esk, err := info.BuildDeterministic(p, computeProof)
	if err != nil {
		return transaction.JSDescription{}, [32]byte{}, SlotMap{}, err
	}
	return js, esk, m, nil
}

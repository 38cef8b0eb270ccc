package sprout

import (
	"errors"
	"fmt"
	"io"

	"github.com/suffix-labs/zcash-txbuilder/pkg/shuffle"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

var (
	ErrAnchorMismatch = errors.New("sprout: spend anchor differs from earlier spends")
	ErrTooManySpends  = fmt.Errorf("sprout: more than %d spends", MaxSpends)
	ErrInvalidValue   = errors.New("sprout: value out of range")
)

// Builder collects Sprout spends and outputs and packs them into
// JoinSplits. It is single-use: after Build every method panics.
type Builder struct {
	st *builderState
}

type builderState struct {
	prover  Prover
	rand    io.Reader
	gen     shuffle.Gen
	pubKey  [32]byte
	anchor  *[32]byte
	inputs  []JSInput
	outputs []JSOutput
}

// NewBuilder returns a builder whose JoinSplits commit to joinSplitPubKey.
func NewBuilder(p Prover, joinSplitPubKey [32]byte, rand io.Reader, gen shuffle.Gen) *Builder {
	return &Builder{st: &builderState{prover: p, rand: rand, gen: gen, pubKey: joinSplitPubKey}}
}

func (b *Builder) live() *builderState {
	if b.st == nil {
		panic("sprout: builder used after Build")
	}
	return b.st
}

// AddSpend queues a note for spending. On error the builder is unchanged.
func (b *Builder) AddSpend(sk SpendingKey, note Note, anchor [32]byte, w Witness) error {
	st := b.live()
	if st.anchor != nil && *st.anchor != anchor {
		return ErrAnchorMismatch
	}
	if len(st.inputs) >= MaxSpends {
		return ErrTooManySpends
	}
	if !transaction.MoneyRange(transaction.Amount(note.Value)) {
		return ErrInvalidValue
	}
	if st.anchor == nil {
		a := anchor
		st.anchor = &a
	}
	st.inputs = append(st.inputs, JSInput{Witness: w, Note: note, Key: sk})
	return nil
}

// AddOutput queues a new note to to.
func (b *Builder) AddOutput(to PaymentAddress, value uint64, memo transaction.Memo) error {
	st := b.live()
	if !transaction.MoneyRange(transaction.Amount(value)) {
		return ErrInvalidValue
	}
	st.outputs = append(st.outputs, JSOutput{Addr: to, Value: value, Memo: memo})
	return nil
}

// ValueBalance returns spent minus created value.
func (b *Builder) ValueBalance() transaction.Amount {
	st := b.live()
	var v transaction.Amount
	for _, in := range st.inputs {
		v += transaction.Amount(in.Note.Value)
	}
	for _, out := range st.outputs {
		v -= transaction.Amount(out.Value)
	}
	return v
}

// Anchor returns the anchor shared by the queued spends.
func (b *Builder) Anchor() ([32]byte, bool) {
	st := b.live()
	if st.anchor == nil {
		return [32]byte{}, false
	}
	return *st.anchor, true
}

// FirstSpendKey returns the key of the earliest queued spend.
func (b *Builder) FirstSpendKey() (SpendingKey, bool) {
	st := b.live()
	if len(st.inputs) == 0 {
		return SpendingKey{}, false
	}
	return st.inputs[0].Key, true
}

// Empty reports whether nothing has been queued.
func (b *Builder) Empty() bool {
	st := b.live()
	return len(st.inputs) == 0 && len(st.outputs) == 0
}

// Randomized reports whether Build will shuffle slots: true once two or
// more spends, or two or more outputs, are queued.
func (b *Builder) Randomized() bool {
	st := b.live()
	return len(st.inputs) >= 2 || len(st.outputs) >= 2
}

// Bundle is the finished Sprout contribution of a transaction.
type Bundle struct {
	JoinSplits []transaction.JSDescription
	// Mappings[g] is the slot map of JoinSplit g. The caller's k-th spend
	// went into JoinSplit k/NumJSInputs, logical slot k%NumJSInputs; the
	// same holds for outputs with NumJSOutputs.
	Mappings []SlotMap
	// EphemeralSecrets[g] is the note encryption secret of JoinSplit g,
	// kept for payment disclosure.
	EphemeralSecrets [][32]byte
	// Randomized records whether slots were shuffled.
	Randomized bool
}

// Build packs the queued notes into JoinSplits and consumes the builder.
// It returns (nil, nil) when nothing was queued.
//
// Notes are packed NumJSInputs/NumJSOutputs at a time. Each JoinSplit
// balances itself through vpub_old or vpub_new, and one with no real spend
// is anchored at EmptyRoot.
func (b *Builder) Build(computeProof bool) (*Bundle, error) {
	st := b.live()
	randomized := b.Randomized()
	b.st = nil

	if len(st.inputs) == 0 && len(st.outputs) == 0 {
		return nil, nil
	}

	groups := (max(len(st.inputs), len(st.outputs)) + 1) / 2
	bundle := &Bundle{Randomized: randomized}

	for g := 0; g < groups; g++ {
		info := &JSDescriptionInfo{JoinSplitPubKey: st.pubKey, Anchor: EmptyRoot}
		var in, out transaction.Amount

		for slot := 0; slot < NumJSInputs; slot++ {
			k := g*NumJSInputs + slot
			if k < len(st.inputs) {
				info.Inputs[slot] = st.inputs[k]
				info.Anchor = *st.anchor
			} else {
				dummy, err := DummyInput(st.prover, st.rand)
				if err != nil {
					return nil, fmt.Errorf("sprout: dummy input: %w", err)
				}
				info.Inputs[slot] = dummy
			}
			in += transaction.Amount(info.Inputs[slot].Note.Value)
		}
		for slot := 0; slot < NumJSOutputs; slot++ {
			k := g*NumJSOutputs + slot
			if k < len(st.outputs) {
				info.Outputs[slot] = st.outputs[k]
			} else {
				dummy, err := DummyOutput(st.prover, st.rand)
				if err != nil {
					return nil, fmt.Errorf("sprout: dummy output: %w", err)
				}
				info.Outputs[slot] = dummy
			}
			out += transaction.Amount(info.Outputs[slot].Value)
		}

		if out > in {
			info.VPubOld = out - in
		} else {
			info.VPubNew = in - out
		}

		var (
			js  transaction.JSDescription
			esk [32]byte
			m   = IdentitySlotMap()
			err error
		)
		if randomized {
			js, esk, m, err = info.BuildRandomized(st.prover, st.gen, computeProof)
		} else {
			js, esk, err = info.BuildDeterministic(st.prover, computeProof)
		}
		if err != nil {
			return nil, fmt.Errorf("joinsplit %d: %w", g, err)
		}

		bundle.JoinSplits = append(bundle.JoinSplits, js)
		bundle.Mappings = append(bundle.Mappings, m)
		bundle.EphemeralSecrets = append(bundle.EphemeralSecrets, esk)
	}
	return bundle, nil
}

package sapling

import (
	"errors"
	"fmt"
	"io"

	"github.com/suffix-labs/zcash-txbuilder/pkg/shuffle"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

var (
	ErrAnchorMismatch = errors.New("sapling: spend anchor differs from earlier spends")
	ErrInvalidValue   = errors.New("sapling: value out of range")
)

// Builder collects Sapling spends and outputs. It is single-use: after
// Build every method panics.
type Builder struct {
	st *builderState
}

type builderState struct {
	backend Backend
	rand    io.Reader
	gen     shuffle.Gen
	anchor  *[32]byte
	spends  []SpendDescriptionInfo
	outputs []OutputDescriptionInfo
}

// NewBuilder returns an empty builder. gen orders the descriptions inside
// the bundle.
func NewBuilder(backend Backend, rand io.Reader, gen shuffle.Gen) *Builder {
	return &Builder{st: &builderState{backend: backend, rand: rand, gen: gen}}
}

func (b *Builder) live() *builderState {
	if b.st == nil {
		panic("sapling: builder used after Build")
	}
	return b.st
}

// AddSpend queues a note for spending. On error the builder is unchanged.
func (b *Builder) AddSpend(expsk ExpandedSpendingKey, note Note, anchor [32]byte, path MerklePath) error {
	st := b.live()
	if st.anchor != nil && *st.anchor != anchor {
		return ErrAnchorMismatch
	}
	if !transaction.MoneyRange(transaction.Amount(note.Value)) {
		return ErrInvalidValue
	}
	info, err := NewSpendDescriptionInfo(st.backend, st.rand, expsk, note, anchor, path)
	if err != nil {
		return err
	}
	if st.anchor == nil {
		a := anchor
		st.anchor = &a
	}
	st.spends = append(st.spends, info)
	return nil
}

// AddOutput queues a new note.
func (b *Builder) AddOutput(ovk *[32]byte, to PaymentAddress, value uint64, memo transaction.Memo) error {
	st := b.live()
	if !transaction.MoneyRange(transaction.Amount(value)) {
		return ErrInvalidValue
	}
	info, err := NewOutputDescriptionInfo(st.backend, st.rand, ovk, to, value, memo)
	if err != nil {
		return err
	}
	st.outputs = append(st.outputs, info)
	return nil
}

// ValueBalance returns spent minus created value.
func (b *Builder) ValueBalance() transaction.Amount {
	st := b.live()
	var v transaction.Amount
	for _, s := range st.spends {
		v += transaction.Amount(s.Note.Value)
	}
	for _, o := range st.outputs {
		v -= transaction.Amount(o.Note.Value)
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

// FirstSpend returns the address and outgoing viewing key of the earliest
// queued spend.
func (b *Builder) FirstSpend() (PaymentAddress, [32]byte, bool) {
	st := b.live()
	if len(st.spends) == 0 {
		return PaymentAddress{}, [32]byte{}, false
	}
	s := st.spends[0]
	return s.Note.Address(), s.Expsk.Ovk, true
}

// Empty reports whether nothing has been queued.
func (b *Builder) Empty() bool {
	st := b.live()
	return len(st.spends) == 0 && len(st.outputs) == 0
}

// Build consumes the builder and produces every description with its
// proof. It returns (nil, nil) when nothing was queued.
func (b *Builder) Build() (*UnauthorizedBundle, error) {
	st := b.live()
	b.st = nil
	defer st.wipe()

	if len(st.spends) == 0 && len(st.outputs) == 0 {
		return nil, nil
	}

	shuffle.Shuffle(st.spends, st.gen)
	shuffle.Shuffle(st.outputs, st.gen)

	ctx := st.backend.NewProvingContext()
	u := &unauthorized{
		backend: st.backend,
		ctx:     ctx,
	}
	if st.anchor != nil {
		u.anchor = *st.anchor
	}

	for i := range st.spends {
		s := &st.spends[i]
		desc, err := s.Build(st.backend, ctx)
		if err != nil {
			u.wipe()
			return nil, fmt.Errorf("spend %d: %w", i, err)
		}
		u.spends = append(u.spends, desc)
		u.secrets = append(u.secrets, spendSecret{ask: s.Expsk.Ask, alpha: s.Alpha})
		u.valueBalance += transaction.Amount(s.Note.Value)
	}
	for i := range st.outputs {
		o := &st.outputs[i]
		desc, err := o.Build(st.backend, ctx, st.rand)
		if err != nil {
			u.wipe()
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		u.outputs = append(u.outputs, desc)
		u.valueBalance -= transaction.Amount(o.Note.Value)
	}

	return &UnauthorizedBundle{st: u}, nil
}

func (st *builderState) wipe() {
	for i := range st.spends {
		st.spends[i] = SpendDescriptionInfo{}
	}
	for i := range st.outputs {
		st.outputs[i] = OutputDescriptionInfo{}
	}
}

type spendSecret struct {
	ask   [32]byte
	alpha [32]byte
}

// UnauthorizedBundle is a Sapling bundle whose shape is fixed and whose
// signatures are still pending. It is consumed by Authorize or Discard.
type UnauthorizedBundle struct {
	st *unauthorized
}

type unauthorized struct {
	backend      Backend
	ctx          ProvingContext
	spends       []transaction.SpendDescription
	outputs      []transaction.OutputDescription
	secrets      []spendSecret
	valueBalance transaction.Amount
	anchor       [32]byte
}

func (u *UnauthorizedBundle) live() *unauthorized {
	if u.st == nil {
		panic("sapling: bundle used after Authorize or Discard")
	}
	return u.st
}

// Shape returns the bundle's effecting data with proofs and signatures
// zeroed, as placed in the provisional transaction.
func (u *UnauthorizedBundle) Shape() *transaction.SaplingBundle {
	st := u.live()
	b := &transaction.SaplingBundle{
		Spends:       make([]transaction.SpendDescription, len(st.spends)),
		Outputs:      make([]transaction.OutputDescription, len(st.outputs)),
		ValueBalance: st.valueBalance,
	}
	if len(st.spends) > 0 {
		b.Anchor = st.anchor
	}
	for i, s := range st.spends {
		s.Proof = [transaction.GrothProofSize]byte{}
		b.Spends[i] = s
	}
	for i, o := range st.outputs {
		o.Proof = [transaction.GrothProofSize]byte{}
		b.Outputs[i] = o
	}
	return b
}

// ValueBalance returns spent minus created value.
func (u *UnauthorizedBundle) ValueBalance() transaction.Amount {
	return u.live().valueBalance
}

// Authorize signs every spend and the bundle as a whole over sighash and
// consumes the bundle.
func (u *UnauthorizedBundle) Authorize(sighash [32]byte) (*transaction.SaplingBundle, error) {
	st := u.live()
	u.st = nil
	defer st.wipe()

	b := &transaction.SaplingBundle{
		Spends:       st.spends,
		Outputs:      st.outputs,
		ValueBalance: st.valueBalance,
	}
	if len(st.spends) > 0 {
		b.Anchor = st.anchor
	}

	for i := range b.Spends {
		sig, err := st.backend.SpendSig(st.secrets[i].ask, st.secrets[i].alpha, sighash)
		if err != nil {
			return nil, fmt.Errorf("sapling: spend %d signature: %w", i, err)
		}
		b.Spends[i].SpendAuthSig = sig
	}

	sig, err := st.ctx.BindingSig(st.valueBalance, sighash)
	if err != nil {
		return nil, fmt.Errorf("sapling: binding signature: %w", err)
	}
	b.BindingSig = sig
	return b, nil
}

// Discard releases the bundle without authorizing it. It is a no-op on a
// consumed bundle.
func (u *UnauthorizedBundle) Discard() {
	if u.st == nil {
		return
	}
	u.st.wipe()
	u.st = nil
}

func (st *unauthorized) wipe() {
	for i := range st.secrets {
		st.secrets[i] = spendSecret{}
	}
	if st.ctx != nil {
		st.ctx.Release()
		st.ctx = nil
	}
}

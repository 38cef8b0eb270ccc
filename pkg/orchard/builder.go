package orchard

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"lukechampine.com/frand"

	"github.com/suffix-labs/zcash-txbuilder/pkg/shuffle"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

var (
	ErrSpendsDisabled  = errors.New("orchard: spends are disabled for this bundle")
	ErrOutputsDisabled = errors.New("orchard: outputs are disabled for this bundle")
	ErrAnchorMismatch  = errors.New("orchard: spend anchor differs from the bundle anchor")
	ErrInvalidValue    = errors.New("orchard: value out of range")
)

// Builder collects Orchard spends and outputs for one bundle. It owns
// secret key material: it must be consumed by Build or released with
// Discard, and every method panics afterwards except Discard.
type Builder struct {
	st *builderState
}

type builderState struct {
	backend Backend
	rand    io.Reader
	gen     shuffle.Gen
	flags   uint8
	anchor  [32]byte
	spends  []spendInfo
	outputs []outputInfo
}

type spendInfo struct {
	sk   SpendingKey
	fvk  FullViewingKey
	note Note
	path MerklePath
}

type outputInfo struct {
	ovk   *[32]byte
	to    Address
	value uint64
	memo  transaction.Memo
}

// Option configures a Builder.
type Option func(*builderState)

// WithRandomness sets the source of secret randomness. The default is
// frand.Reader.
func WithRandomness(r io.Reader) Option {
	return func(st *builderState) { st.rand = r }
}

// WithShuffle sets the generator that orders spends and outputs into
// actions. The default is shuffle.Default.
func WithShuffle(gen shuffle.Gen) Option {
	return func(st *builderState) { st.gen = gen }
}

// NewBuilder returns a builder for a bundle with the given flags and
// anchor. The anchor is committed to even when no real note is spent.
func NewBuilder(backend Backend, spendsEnabled, outputsEnabled bool, anchor [32]byte, opts ...Option) *Builder {
	st := &builderState{
		backend: backend,
		rand:    frand.Reader,
		gen:     shuffle.Default,
		anchor:  anchor,
	}
	if spendsEnabled {
		st.flags |= FlagSpendsEnabled
	}
	if outputsEnabled {
		st.flags |= FlagOutputsEnabled
	}
	for _, opt := range opts {
		opt(st)
	}

	b := &Builder{st: st}
	runtime.SetFinalizer(b, func(b *Builder) { b.Discard() })
	return b
}

func (b *Builder) live() *builderState {
	if b.st == nil {
		panic("orchard: builder used after Build or Discard")
	}
	return b.st
}

// AddSpend queues a note for spending. On error the builder is unchanged.
func (b *Builder) AddSpend(sk SpendingKey, note Note, anchor [32]byte, path MerklePath) error {
	st := b.live()
	if st.flags&FlagSpendsEnabled == 0 {
		return ErrSpendsDisabled
	}
	if anchor != st.anchor {
		return ErrAnchorMismatch
	}
	if !transaction.MoneyRange(transaction.Amount(note.Value)) {
		return ErrInvalidValue
	}
	fvk, err := st.backend.FullViewingKey(sk)
	if err != nil {
		return fmt.Errorf("orchard: full viewing key: %w", err)
	}
	st.spends = append(st.spends, spendInfo{sk: sk, fvk: fvk, note: note, path: path})
	return nil
}

// AddOutput queues a new note to to.
func (b *Builder) AddOutput(ovk *[32]byte, to Address, value uint64, memo transaction.Memo) error {
	st := b.live()
	if st.flags&FlagOutputsEnabled == 0 {
		return ErrOutputsDisabled
	}
	if !transaction.MoneyRange(transaction.Amount(value)) {
		return ErrInvalidValue
	}
	st.outputs = append(st.outputs, outputInfo{ovk: ovk, to: to, value: value, memo: memo})
	return nil
}

// ValueBalance returns spent minus created value.
func (b *Builder) ValueBalance() transaction.Amount {
	st := b.live()
	var v transaction.Amount
	for _, s := range st.spends {
		v += transaction.Amount(s.note.Value)
	}
	for _, o := range st.outputs {
		v -= transaction.Amount(o.value)
	}
	return v
}

// Anchor returns the bundle anchor.
func (b *Builder) Anchor() [32]byte {
	return b.live().anchor
}

// Flags returns the bundle flags byte.
func (b *Builder) Flags() uint8 {
	return b.live().flags
}

// FirstSpend returns the recipient and outgoing viewing key of the earliest
// queued spend.
func (b *Builder) FirstSpend() (Address, [32]byte, bool, error) {
	st := b.live()
	if len(st.spends) == 0 {
		return Address{}, [32]byte{}, false, nil
	}
	s := st.spends[0]
	ovk, err := st.backend.OutgoingViewingKey(s.fvk)
	if err != nil {
		return Address{}, [32]byte{}, false, fmt.Errorf("orchard: outgoing viewing key: %w", err)
	}
	return s.note.Recipient, ovk, true, nil
}

// Empty reports whether nothing has been queued.
func (b *Builder) Empty() bool {
	st := b.live()
	return len(st.spends) == 0 && len(st.outputs) == 0
}

// Discard releases the builder's secrets without building. It is a no-op
// on a consumed builder.
func (b *Builder) Discard() {
	if b.st == nil {
		return
	}
	b.st.wipe()
	b.st = nil
	runtime.SetFinalizer(b, nil)
}

func (st *builderState) wipe() {
	for i := range st.spends {
		st.spends[i] = spendInfo{}
	}
	st.spends = nil
	st.outputs = nil
}

func (st *builderState) dummySpend() (spendInfo, error) {
	var sk SpendingKey
	if _, err := io.ReadFull(st.rand, sk[:]); err != nil {
		return spendInfo{}, err
	}
	fvk, err := st.backend.FullViewingKey(sk)
	if err != nil {
		return spendInfo{}, err
	}
	addr, err := st.backend.DefaultAddress(fvk)
	if err != nil {
		return spendInfo{}, err
	}
	note := Note{Recipient: addr}
	if _, err := io.ReadFull(st.rand, note.Rho[:]); err != nil {
		return spendInfo{}, err
	}
	if _, err := io.ReadFull(st.rand, note.Rseed[:]); err != nil {
		return spendInfo{}, err
	}
	return spendInfo{sk: sk, fvk: fvk, note: note}, nil
}

func (st *builderState) dummyOutput() (outputInfo, error) {
	var sk SpendingKey
	if _, err := io.ReadFull(st.rand, sk[:]); err != nil {
		return outputInfo{}, err
	}
	fvk, err := st.backend.FullViewingKey(sk)
	if err != nil {
		return outputInfo{}, err
	}
	addr, err := st.backend.DefaultAddress(fvk)
	if err != nil {
		return outputInfo{}, err
	}
	return outputInfo{to: addr, memo: transaction.NoMemo()}, nil
}

// Build consumes the builder and pairs spends with outputs into actions.
// Both sides are padded with zero-valued dummies to
// max(MinActions, spends, outputs) and shuffled independently. It returns
// (nil, nil) when nothing was queued: the bundle is then absent.
func (b *Builder) Build() (*UnauthorizedBundle, error) {
	st := b.live()
	b.st = nil
	runtime.SetFinalizer(b, nil)
	defer st.wipe()

	if len(st.spends) == 0 && len(st.outputs) == 0 {
		return nil, nil
	}

	n := max(MinActions, len(st.spends), len(st.outputs))
	for len(st.spends) < n {
		d, err := st.dummySpend()
		if err != nil {
			return nil, fmt.Errorf("orchard: dummy spend: %w", err)
		}
		st.spends = append(st.spends, d)
	}
	for len(st.outputs) < n {
		d, err := st.dummyOutput()
		if err != nil {
			return nil, fmt.Errorf("orchard: dummy output: %w", err)
		}
		st.outputs = append(st.outputs, d)
	}
	shuffle.Shuffle(st.spends, st.gen)
	shuffle.Shuffle(st.outputs, st.gen)

	u := &unauthorized{
		backend:   st.backend,
		actions:   make([]transaction.OrchardAction, 0, n),
		keys:      make([]SpendingKey, 0, n),
		witnesses: make([]ActionWitness, 0, n),
		flags:     st.flags,
		anchor:    st.anchor,
	}
	rcvs := make([][32]byte, 0, n)

	for i := 0; i < n; i++ {
		action, w, err := st.buildAction(st.spends[i], st.outputs[i])
		if err != nil {
			u.wipe()
			return nil, fmt.Errorf("orchard: action %d: %w", i, err)
		}
		u.actions = append(u.actions, action)
		u.keys = append(u.keys, st.spends[i].sk)
		u.witnesses = append(u.witnesses, w)
		u.valueBalance += transaction.Amount(st.spends[i].note.Value) - transaction.Amount(st.outputs[i].value)
		rcvs = append(rcvs, w.Rcv)
	}

	bsk, err := st.backend.BindingKey(rcvs)
	for i := range rcvs {
		rcvs[i] = [32]byte{}
	}
	if err != nil {
		u.wipe()
		return nil, fmt.Errorf("orchard: binding key: %w", err)
	}
	u.bsk = bsk

	bundle := &UnauthorizedBundle{st: u}
	runtime.SetFinalizer(bundle, func(b *UnauthorizedBundle) { b.Discard() })
	return bundle, nil
}

func (st *builderState) buildAction(sp spendInfo, op outputInfo) (transaction.OrchardAction, ActionWitness, error) {
	var a transaction.OrchardAction

	nf, err := st.backend.Nullifier(sp.fvk, sp.note)
	if err != nil {
		return a, ActionWitness{}, fmt.Errorf("nullifier: %w", err)
	}
	alpha, err := st.backend.RandomScalar(st.rand)
	if err != nil {
		return a, ActionWitness{}, fmt.Errorf("alpha: %w", err)
	}
	rk, err := st.backend.RandomizedKey(sp.fvk, alpha)
	if err != nil {
		return a, ActionWitness{}, fmt.Errorf("randomized key: %w", err)
	}
	rcv, err := st.backend.RandomScalar(st.rand)
	if err != nil {
		return a, ActionWitness{}, fmt.Errorf("rcv: %w", err)
	}
	cv, err := st.backend.ValueCommitment(int64(sp.note.Value)-int64(op.value), rcv)
	if err != nil {
		return a, ActionWitness{}, fmt.Errorf("value commitment: %w", err)
	}

	// The new note's rho is the nullifier of the note spent alongside it.
	out := Note{Recipient: op.to, Value: op.value, Rho: nf}
	if _, err := io.ReadFull(st.rand, out.Rseed[:]); err != nil {
		return a, ActionWitness{}, fmt.Errorf("rseed: %w", err)
	}
	enc, err := st.backend.EncryptNote(op.ovk, out, op.memo, cv, st.rand)
	if err != nil {
		return a, ActionWitness{}, fmt.Errorf("note encryption: %w", err)
	}

	a.CV = cv
	a.Nullifier = nf
	a.Rk = rk
	a.Cmx = enc.Cmx
	a.EphemeralKey = enc.EphemeralKey
	a.EncCiphertext = enc.EncCiphertext
	a.OutCiphertext = enc.OutCiphertext

	w := ActionWitness{
		Fvk:        sp.fvk,
		SpendNote:  sp.note,
		Path:       sp.path,
		Alpha:      alpha,
		OutputNote: out,
		Rcv:        rcv,
	}
	return a, w, nil
}

// Package builder assembles a complete v5 transaction that may move value
// between the transparent, Sprout, Sapling and Orchard pools at once.
//
// A TransactionBuilder is single-use. Inputs and outputs are added pool by
// pool, Build balances them against the fee, synthesizes change, builds
// and authorizes every shielded bundle over one signature hash, signs the
// transparent inputs, and returns a Result. After Build every method
// panics.
package builder

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"lukechampine.com/frand"

	"github.com/suffix-labs/zcash-txbuilder/pkg/crypto"
	"github.com/suffix-labs/zcash-txbuilder/pkg/orchard"
	"github.com/suffix-labs/zcash-txbuilder/pkg/params"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sapling"
	"github.com/suffix-labs/zcash-txbuilder/pkg/script"
	"github.com/suffix-labs/zcash-txbuilder/pkg/shuffle"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sprout"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

const (
	// DefaultFee is the fee used unless SetFee is called.
	DefaultFee transaction.Amount = 10000

	// DefaultExpiryDelta is how many blocks past the build height a
	// transaction stays valid by default.
	DefaultExpiryDelta = 40
)

// TransactionBuilder builds one transaction.
type TransactionBuilder struct {
	st *state
}

type state struct {
	net      *params.Network
	height   uint32
	branchID uint32
	expiry   uint32
	fee      transaction.Amount

	log       zerolog.Logger
	rand      io.Reader
	gen       shuffle.Gen
	keys      crypto.KeyStore
	coins     CoinsView
	coinsLock sync.Locker

	sproutProver   sprout.Prover
	saplingBackend sapling.Backend
	orchardBackend orchard.Backend

	inputs  []transparentInput
	outputs []transaction.TxOut

	sprout  *sprout.Builder
	jsKey   ed25519.PrivateKey
	sapling *sapling.Builder
	orchard *orchard.Builder

	change *changePolicy
}

type transparentInput struct {
	outpoint transaction.OutPoint
	coin     transaction.TxOut
}

type changePolicy struct {
	to  transaction.Recipient
	ovk *[32]byte
}

// NewBuilder returns a builder for a transaction mined after height on
// net. NU5 must be active at height. The Orchard pool is available only
// when orchardAnchor is non-nil and an Orchard backend is configured.
func NewBuilder(net *params.Network, height uint32, orchardAnchor *[32]byte, opts ...Option) (*TransactionBuilder, error) {
	if !net.IsActive(params.NU5, height) {
		return nil, errorf(ErrPoolUnavailable, "v5 transactions require NU5, not active on %s at height %d", net.Name, height)
	}

	st := &state{
		net:      net,
		height:   height,
		branchID: net.BranchIDAt(height),
		expiry:   min(height+DefaultExpiryDelta, transaction.MaxExpiryHeight-1),
		fee:      DefaultFee,
		log:      zerolog.Nop(),
		rand:     frand.Reader,
		gen:      shuffle.Default,
	}
	for _, opt := range opts {
		opt(st)
	}

	if st.saplingBackend != nil {
		st.sapling = sapling.NewBuilder(st.saplingBackend, st.rand, st.gen)
	}
	if orchardAnchor != nil {
		if st.orchardBackend == nil {
			return nil, errorf(ErrPoolUnavailable, "orchard anchor given but no orchard backend configured")
		}
		st.orchard = orchard.NewBuilder(st.orchardBackend, true, true, *orchardAnchor,
			orchard.WithRandomness(st.rand),
			orchard.WithShuffle(st.gen),
		)
	}

	st.log.Debug().
		Str("network", net.Name).
		Uint32("height", height).
		Str("branch_id", fmt.Sprintf("%08x", st.branchID)).
		Bool("orchard", st.orchard != nil).
		Msg("transaction builder created")
	return &TransactionBuilder{st: st}, nil
}

func (b *TransactionBuilder) live() *state {
	if b.st == nil {
		panic("builder: TransactionBuilder used after Build")
	}
	return b.st
}

// AddTransparentInput spends the output at outpoint, which is declared to
// hold value locked by scriptPubKey. The declaration is trusted unless a
// coins view is configured.
func (b *TransactionBuilder) AddTransparentInput(outpoint transaction.OutPoint, scriptPubKey []byte, value transaction.Amount) error {
	st := b.live()
	if st.keys == nil {
		return errorf(ErrMissingKeyStore, "a keystore is required to spend transparent inputs")
	}
	if !transaction.MoneyRange(value) {
		return errorf(ErrInvalidAmount, "input value %d out of range", value)
	}
	st.inputs = append(st.inputs, transparentInput{
		outpoint: outpoint,
		coin:     transaction.TxOut{Value: value, ScriptPubKey: append([]byte(nil), scriptPubKey...)},
	})
	return nil
}

// AddTransparentOutput pays value to a transparent address.
func (b *TransactionBuilder) AddTransparentOutput(to script.Address, value transaction.Amount) error {
	st := b.live()
	if !transaction.MoneyRange(value) {
		return errorf(ErrInvalidAmount, "output value %d out of range", value)
	}
	st.outputs = append(st.outputs, transaction.TxOut{Value: value, ScriptPubKey: to.Script()})
	return nil
}

func (st *state) sproutBuilder() (*sprout.Builder, error) {
	if st.sprout != nil {
		return st.sprout, nil
	}
	if st.sproutProver == nil {
		return nil, errorf(ErrPoolUnavailable, "no sprout backend configured")
	}
	pub, priv, err := ed25519.GenerateKey(st.rand)
	if err != nil {
		return nil, newError(ErrSigningFailed, "generating joinsplit signing key", err)
	}
	var pubKey [32]byte
	copy(pubKey[:], pub)
	st.jsKey = priv
	st.sprout = sprout.NewBuilder(st.sproutProver, pubKey, st.rand, st.gen)
	return st.sprout, nil
}

// AddSproutSpend spends a Sprout note. Every Sprout spend must share one
// anchor, and at most sprout.MaxSpends notes may be spent.
func (b *TransactionBuilder) AddSproutSpend(sk sprout.SpendingKey, note sprout.Note, anchor [32]byte, w sprout.Witness) error {
	st := b.live()
	sb, err := st.sproutBuilder()
	if err != nil {
		return err
	}
	if err := sb.AddSpend(sk, note, anchor, w); err != nil {
		return poolError("adding sprout spend", err)
	}
	return nil
}

// AddSproutOutput creates a Sprout note.
func (b *TransactionBuilder) AddSproutOutput(to sprout.PaymentAddress, value uint64, memo transaction.Memo) error {
	st := b.live()
	sb, err := st.sproutBuilder()
	if err != nil {
		return err
	}
	if err := sb.AddOutput(to, value, memo); err != nil {
		return poolError("adding sprout output", err)
	}
	return nil
}

// AddSaplingSpend spends a Sapling note. Every Sapling spend must share
// one anchor.
func (b *TransactionBuilder) AddSaplingSpend(expsk sapling.ExpandedSpendingKey, note sapling.Note, anchor [32]byte, path sapling.MerklePath) error {
	st := b.live()
	if st.sapling == nil {
		return errorf(ErrPoolUnavailable, "no sapling backend configured")
	}
	if err := st.sapling.AddSpend(expsk, note, anchor, path); err != nil {
		return poolError("adding sapling spend", err)
	}
	return nil
}

// AddSaplingOutput creates a Sapling note. A nil ovk makes the output
// unrecoverable by the sender.
func (b *TransactionBuilder) AddSaplingOutput(ovk *[32]byte, to sapling.PaymentAddress, value uint64, memo transaction.Memo) error {
	st := b.live()
	if st.sapling == nil {
		return errorf(ErrPoolUnavailable, "no sapling backend configured")
	}
	if err := st.sapling.AddOutput(ovk, to, value, memo); err != nil {
		return poolError("adding sapling output", err)
	}
	return nil
}

// AddOrchardSpend spends an Orchard note. anchor must equal the anchor
// the builder was created with.
func (b *TransactionBuilder) AddOrchardSpend(sk orchard.SpendingKey, note orchard.Note, anchor [32]byte, path orchard.MerklePath) error {
	st := b.live()
	if st.orchard == nil {
		return errorf(ErrPoolUnavailable, "builder was created without an orchard anchor")
	}
	if err := st.orchard.AddSpend(sk, note, anchor, path); err != nil {
		return poolError("adding orchard spend", err)
	}
	return nil
}

// AddOrchardOutput creates an Orchard note. A nil ovk makes the output
// unrecoverable by the sender.
func (b *TransactionBuilder) AddOrchardOutput(ovk *[32]byte, to orchard.Address, value uint64, memo transaction.Memo) error {
	st := b.live()
	if st.orchard == nil {
		return errorf(ErrPoolUnavailable, "builder was created without an orchard anchor")
	}
	if err := st.orchard.AddOutput(ovk, to, value, memo); err != nil {
		return poolError("adding orchard output", err)
	}
	return nil
}

// SetFee replaces DefaultFee.
func (b *TransactionBuilder) SetFee(fee transaction.Amount) error {
	st := b.live()
	if !transaction.MoneyRange(fee) {
		return errorf(ErrInvalidAmount, "fee %d out of range", fee)
	}
	st.fee = fee
	return nil
}

// SetExpiryHeight sets the last height at which the transaction may be
// mined.
func (b *TransactionBuilder) SetExpiryHeight(height uint32) error {
	st := b.live()
	if height == 0 || height < st.height || height >= transaction.MaxExpiryHeight {
		return errorf(ErrInvalidExpiry, "expiry height %d not in [%d, %d)", height, max(st.height, 1), transaction.MaxExpiryHeight)
	}
	st.expiry = height
	return nil
}

// SendChangeTo sends any leftover value to a transparent, Sapling or
// Orchard address. ovk, when set, lets the sender recover a shielded
// change note. It replaces any earlier change destination.
func (b *TransactionBuilder) SendChangeTo(to transaction.Recipient, ovk *[32]byte) error {
	st := b.live()
	switch to.(type) {
	case script.Address:
	case sapling.PaymentAddress:
		if st.sapling == nil {
			return errorf(ErrPoolUnavailable, "no sapling backend configured")
		}
	case orchard.Address:
		if st.orchard == nil {
			return errorf(ErrPoolUnavailable, "builder was created without an orchard anchor")
		}
	default:
		return errorf(ErrNoChangeAddress, "unsupported change destination in the %s pool", to.Pool())
	}
	st.change = &changePolicy{to: to, ovk: ovk}
	return nil
}

// SendChangeToSprout sends any leftover value to a Sprout address. It
// replaces any earlier change destination.
func (b *TransactionBuilder) SendChangeToSprout(to sprout.PaymentAddress) error {
	st := b.live()
	if st.sproutProver == nil {
		return errorf(ErrPoolUnavailable, "no sprout backend configured")
	}
	st.change = &changePolicy{to: to}
	return nil
}

// discard releases whatever sub-builder state Build did not consume.
func (st *state) discard() {
	if st.orchard != nil {
		st.orchard.Discard()
	}
	for i := range st.jsKey {
		st.jsKey[i] = 0
	}
}

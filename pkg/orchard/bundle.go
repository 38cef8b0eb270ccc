package orchard

import (
	"fmt"
	"runtime"

	"github.com/suffix-labs/zcash-txbuilder/pkg/sighash"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// UnauthorizedBundle is an Orchard bundle whose actions are fixed and whose
// proof and signatures are pending. It holds the spending keys and proof
// witnesses, and is consumed by ProveAndSign or Discard.
type UnauthorizedBundle struct {
	st *unauthorized
}

type unauthorized struct {
	backend      Backend
	actions      []transaction.OrchardAction
	keys         []SpendingKey
	witnesses    []ActionWitness
	flags        uint8
	valueBalance transaction.Amount
	anchor       [32]byte
	bsk          [32]byte
}

func (u *UnauthorizedBundle) live() *unauthorized {
	if u.st == nil {
		panic("orchard: bundle used after ProveAndSign or Discard")
	}
	return u.st
}

// ValueBalance returns spent minus created value.
func (u *UnauthorizedBundle) ValueBalance() transaction.Amount {
	return u.live().valueBalance
}

// NumActions returns the number of actions, dummies included.
func (u *UnauthorizedBundle) NumActions() int {
	return len(u.live().actions)
}

// ProveAndSign creates the proof, a spend authorization signature per
// action and the binding signature, all over sighash. The bundle is
// consumed whether or not it succeeds.
func (u *UnauthorizedBundle) ProveAndSign(sighash [32]byte) (*transaction.OrchardBundle, error) {
	st := u.live()
	u.st = nil
	runtime.SetFinalizer(u, nil)
	defer st.wipe()

	proof, err := st.backend.Prove(st.anchor, st.witnesses)
	if err != nil {
		return nil, fmt.Errorf("orchard: proof: %w", err)
	}

	b := &transaction.OrchardBundle{
		Actions:      st.actions,
		Flags:        st.flags,
		ValueBalance: st.valueBalance,
		Anchor:       st.anchor,
		Proof:        proof,
	}
	for i := range b.Actions {
		sig, err := st.backend.SignSpendAuth(st.keys[i], st.witnesses[i].Alpha, sighash)
		if err != nil {
			return nil, fmt.Errorf("orchard: action %d signature: %w", i, err)
		}
		b.Actions[i].SpendAuthSig = sig
	}
	b.BindingSig, err = st.backend.SignBinding(st.bsk, sighash)
	if err != nil {
		return nil, fmt.Errorf("orchard: binding signature: %w", err)
	}
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
	runtime.SetFinalizer(u, nil)
}

func (st *unauthorized) wipe() {
	for i := range st.keys {
		st.keys[i] = SpendingKey{}
	}
	for i := range st.witnesses {
		st.witnesses[i] = ActionWitness{}
	}
	st.bsk = [32]byte{}
}

// SignatureHash computes the shielded signature hash of tx as it will be
// once b is authorized and attached. tx must not already carry an Orchard
// bundle. prevOuts are the outputs spent by tx's transparent inputs.
//
// The hash depends on b's actions, which are otherwise private to this
// package, so it is computed here rather than from b's public surface.
func SignatureHash(tx *transaction.Transaction, prevOuts []transaction.TxOut, b *UnauthorizedBundle) ([32]byte, error) {
	st := b.live()
	if tx.Orchard != nil {
		return [32]byte{}, fmt.Errorf("orchard: transaction already has an orchard bundle")
	}
	digest := sighash.OrchardDigest(st.actions, st.flags, st.valueBalance, st.anchor)
	return sighash.ShieldedSignatureHashWithOrchard(tx, prevOuts, digest)
}

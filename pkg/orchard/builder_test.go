package orchard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-txbuilder/pkg/devcrypto"
	"github.com/suffix-labs/zcash-txbuilder/pkg/orchard"
	"github.com/suffix-labs/zcash-txbuilder/pkg/shuffle"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sighash"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

var anchor = [32]byte{0x0A}

func newBuilder(eng *devcrypto.Engine, spends, outputs bool) *orchard.Builder {
	return orchard.NewBuilder(eng.Orchard, spends, outputs, anchor,
		orchard.WithRandomness(devcrypto.SeededReader([32]byte{0x60})),
		orchard.WithShuffle(shuffle.Identity),
	)
}

// findAction returns the index of the action whose note addr can decrypt.
func findAction(t *testing.T, eng *devcrypto.Engine, b *transaction.OrchardBundle, addr orchard.Address) (int, orchard.Note, transaction.Memo) {
	t.Helper()
	for i := range b.Actions {
		if n, memo, err := eng.Orchard.DecryptAction(&b.Actions[i], addr); err == nil {
			return i, n, memo
		}
	}
	t.Fatalf("no action decrypts for %x", addr[:4])
	return 0, orchard.Note{}, transaction.Memo{}
}

func TestSingleOutputIsPaddedToTwoActions(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x61})
	_, to := eng.Orchard.Key([32]byte{1})

	b := newBuilder(eng, true, true)
	require.NoError(t, b.AddOutput(nil, to, 90000, transaction.NoMemo()))
	assert.Equal(t, transaction.Amount(-90000), b.ValueBalance())
	assert.Equal(t, orchard.FlagSpendsEnabled|orchard.FlagOutputsEnabled, b.Flags())

	u, err := b.Build()
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, orchard.MinActions, u.NumActions())
	assert.Equal(t, transaction.Amount(-90000), u.ValueBalance())

	sig := [32]byte{0x77}
	bundle, err := u.ProveAndSign(sig)
	require.NoError(t, err)
	require.Len(t, bundle.Actions, 2)
	assert.Equal(t, anchor, bundle.Anchor)
	assert.Len(t, bundle.Proof, devcrypto.OrchardProofSize(2))
	require.NoError(t, eng.Orchard.VerifyBundle(bundle, sig))
	assert.Error(t, eng.Orchard.VerifyBundle(bundle, [32]byte{0x78}))

	_, note, memo := findAction(t, eng, bundle, to)
	assert.Equal(t, uint64(90000), note.Value)
	assert.Equal(t, transaction.NoMemo(), memo)
}

func TestSpendAndOutputs(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x62})
	sk, from := eng.Orchard.Key([32]byte{1})
	_, to := eng.Orchard.Key([32]byte{2})
	fvk, err := eng.Orchard.FullViewingKey(sk)
	require.NoError(t, err)
	ovk, err := eng.Orchard.OutgoingViewingKey(fvk)
	require.NoError(t, err)

	b := newBuilder(eng, true, true)
	require.NoError(t, b.AddSpend(sk, orchard.Note{Recipient: from, Value: 100000, Rho: [32]byte{5}}, anchor, orchard.MerklePath{}))
	for _, v := range []uint64{10000, 20000, 30000} {
		require.NoError(t, b.AddOutput(&ovk, to, v, transaction.NoMemo()))
	}

	addr, gotOvk, ok, err := b.FirstSpend()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, from, addr)
	assert.Equal(t, ovk, gotOvk)

	u, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 3, u.NumActions())
	assert.Equal(t, transaction.Amount(40000), u.ValueBalance())

	bundle, err := u.ProveAndSign([32]byte{1})
	require.NoError(t, err)
	require.NoError(t, eng.Orchard.VerifyBundle(bundle, [32]byte{1}))

	for i := range bundle.Actions {
		pkd, err := eng.Orchard.RecoverAction(&bundle.Actions[i], ovk)
		require.NoError(t, err)
		assert.Equal(t, to[11:], pkd[:])
	}
}

func TestFlagsRestrictContents(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x63})
	sk, from := eng.Orchard.Key([32]byte{1})
	note := orchard.Note{Recipient: from, Value: 1}

	noSpends := newBuilder(eng, false, true)
	assert.ErrorIs(t, noSpends.AddSpend(sk, note, anchor, orchard.MerklePath{}), orchard.ErrSpendsDisabled)
	assert.Equal(t, orchard.FlagOutputsEnabled, noSpends.Flags())
	noSpends.Discard()

	noOutputs := newBuilder(eng, true, false)
	assert.ErrorIs(t, noOutputs.AddOutput(nil, from, 1, transaction.NoMemo()), orchard.ErrOutputsDisabled)
	assert.ErrorIs(t, noOutputs.AddSpend(sk, note, [32]byte{0x0B}, orchard.MerklePath{}), orchard.ErrAnchorMismatch)
	assert.True(t, noOutputs.Empty())
	noOutputs.Discard()
}

func TestEmptyBuilder(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x64})
	b := newBuilder(eng, true, true)
	_, _, ok, err := b.FirstSpend()
	require.NoError(t, err)
	assert.False(t, ok)

	u, err := b.Build()
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.PanicsWithValue(t, "orchard: builder used after Build or Discard", func() { b.Empty() })
}

func TestDiscardIsIdempotent(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x65})
	b := newBuilder(eng, true, true)
	b.Discard()
	b.Discard()
	assert.Panics(t, func() { _, _ = b.Build() })
}

func TestBundleIsConsumed(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x66})
	_, to := eng.Orchard.Key([32]byte{1})

	b := newBuilder(eng, true, true)
	require.NoError(t, b.AddOutput(nil, to, 1, transaction.NoMemo()))
	u, err := b.Build()
	require.NoError(t, err)

	_, err = u.ProveAndSign([32]byte{})
	require.NoError(t, err)
	assert.PanicsWithValue(t, "orchard: bundle used after ProveAndSign or Discard", func() { u.NumActions() })
	assert.Panics(t, func() { _, _ = u.ProveAndSign([32]byte{}) })
	assert.NotPanics(t, u.Discard)
}

func TestSignatureHashMatchesFinalTransaction(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x67})
	_, to := eng.Orchard.Key([32]byte{1})

	b := newBuilder(eng, true, true)
	require.NoError(t, b.AddOutput(nil, to, 1000, transaction.NoMemo()))
	u, err := b.Build()
	require.NoError(t, err)

	tx := &transaction.Transaction{
		Version:           transaction.V5TxVersion,
		VersionGroupID:    transaction.V5VersionGroupID,
		ConsensusBranchID: 0xc2d6d0b4,
		ExpiryHeight:      1040,
		Outputs:           []transaction.TxOut{{Value: 1, ScriptPubKey: []byte{0x51}}},
	}
	provisional, err := orchard.SignatureHash(tx, nil, u)
	require.NoError(t, err)

	bundle, err := u.ProveAndSign(provisional)
	require.NoError(t, err)
	tx.Orchard = bundle

	final, err := sighash.ShieldedSignatureHash(tx, nil)
	require.NoError(t, err)
	assert.Equal(t, provisional, final)
	require.NoError(t, eng.Orchard.VerifyBundle(bundle, final))
}

func TestSignatureHashRejectsAttachedBundle(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x68})
	_, to := eng.Orchard.Key([32]byte{1})

	b := newBuilder(eng, true, true)
	require.NoError(t, b.AddOutput(nil, to, 1, transaction.NoMemo()))
	u, err := b.Build()
	require.NoError(t, err)
	defer u.Discard()

	tx := &transaction.Transaction{Orchard: &transaction.OrchardBundle{}}
	_, err = orchard.SignatureHash(tx, nil, u)
	assert.Error(t, err)
}

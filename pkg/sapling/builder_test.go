package sapling_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-txbuilder/pkg/devcrypto"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sapling"
	"github.com/suffix-labs/zcash-txbuilder/pkg/shuffle"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

func newBuilder(eng *devcrypto.Engine) *sapling.Builder {
	return sapling.NewBuilder(eng.Sapling, devcrypto.SeededReader([32]byte{0x53}), shuffle.Identity)
}

func TestBuildAndAuthorize(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x54})
	expsk, from := eng.Sapling.Key([32]byte{1})
	_, to := eng.Sapling.Key([32]byte{2})
	anchor := [32]byte{0xAA}
	note := sapling.Note{Diversifier: from.Diversifier, PkD: from.PkD, Value: 50000}
	memo, err := transaction.MemoFromBytes([]byte("rent"))
	require.NoError(t, err)

	b := newBuilder(eng)
	require.NoError(t, b.AddSpend(expsk, note, anchor, sapling.MerklePath{Position: 3}))
	require.NoError(t, b.AddOutput(&expsk.Ovk, to, 30000, memo))
	assert.Equal(t, transaction.Amount(20000), b.ValueBalance())

	gotAddr, gotOvk, ok := b.FirstSpend()
	require.True(t, ok)
	assert.Equal(t, from, gotAddr)
	assert.Equal(t, expsk.Ovk, gotOvk)

	u, err := b.Build()
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, transaction.Amount(20000), u.ValueBalance())

	shape := u.Shape()
	require.Len(t, shape.Spends, 1)
	require.Len(t, shape.Outputs, 1)
	assert.Equal(t, anchor, shape.Anchor)
	assert.Equal(t, [transaction.GrothProofSize]byte{}, shape.Spends[0].Proof)

	sighash := [32]byte{0x42}
	bundle, err := u.Authorize(sighash)
	require.NoError(t, err)
	require.NoError(t, eng.Sapling.VerifyBundle(bundle, sighash))
	assert.Error(t, eng.Sapling.VerifyBundle(bundle, [32]byte{0x43}))

	assert.Equal(t, shape.Spends[0].Nullifier, bundle.Spends[0].Nullifier)
	assert.Equal(t, shape.Outputs[0].Cmu, bundle.Outputs[0].Cmu)
	assert.NotEqual(t, [transaction.GrothProofSize]byte{}, bundle.Spends[0].Proof)

	got, gotMemo, err := eng.Sapling.DecryptOutput(&bundle.Outputs[0], to)
	require.NoError(t, err)
	assert.Equal(t, uint64(30000), got.Value)
	assert.Equal(t, memo, gotMemo)

	pkD, err := eng.Sapling.RecoverOutput(&bundle.Outputs[0], expsk.Ovk)
	require.NoError(t, err)
	assert.Equal(t, to.PkD, pkD)
}

func TestOutputWithoutOvk(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x55})
	_, to := eng.Sapling.Key([32]byte{2})

	b := newBuilder(eng)
	require.NoError(t, b.AddOutput(nil, to, 1000, transaction.NoMemo()))
	u, err := b.Build()
	require.NoError(t, err)
	bundle, err := u.Authorize([32]byte{})
	require.NoError(t, err)

	assert.Empty(t, bundle.Spends)
	assert.Equal(t, transaction.Amount(-1000), bundle.ValueBalance)
	assert.Equal(t, [32]byte{}, bundle.Anchor, "no spends, no anchor")

	_, err = eng.Sapling.RecoverOutput(&bundle.Outputs[0], [32]byte{})
	assert.Error(t, err)
}

func TestAnchorMismatch(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x56})
	expsk, from := eng.Sapling.Key([32]byte{1})
	note := sapling.Note{Diversifier: from.Diversifier, PkD: from.PkD, Value: 1}

	b := newBuilder(eng)
	require.NoError(t, b.AddSpend(expsk, note, [32]byte{1}, sapling.MerklePath{}))
	assert.ErrorIs(t, b.AddSpend(expsk, note, [32]byte{2}, sapling.MerklePath{}), sapling.ErrAnchorMismatch)

	anchor, ok := b.Anchor()
	assert.True(t, ok)
	assert.Equal(t, [32]byte{1}, anchor)
}

func TestShuffleOrdersDescriptions(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x57})
	_, to := eng.Sapling.Key([32]byte{2})

	b := sapling.NewBuilder(eng.Sapling, devcrypto.SeededReader([32]byte{1}), func(int) int { return 0 })
	require.NoError(t, b.AddOutput(nil, to, 1, transaction.NoMemo()))
	require.NoError(t, b.AddOutput(nil, to, 2, transaction.NoMemo()))
	u, err := b.Build()
	require.NoError(t, err)
	bundle, err := u.Authorize([32]byte{})
	require.NoError(t, err)

	first, _, err := eng.Sapling.DecryptOutput(&bundle.Outputs[0], to)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), first.Value)
}

func TestEmptyAndSingleUse(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x58})
	b := newBuilder(eng)
	assert.True(t, b.Empty())

	u, err := b.Build()
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.PanicsWithValue(t, "sapling: builder used after Build", func() { b.ValueBalance() })
}

func TestBundleIsConsumed(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x59})
	_, to := eng.Sapling.Key([32]byte{2})

	b := newBuilder(eng)
	require.NoError(t, b.AddOutput(nil, to, 5, transaction.NoMemo()))
	u, err := b.Build()
	require.NoError(t, err)

	_, err = u.Authorize([32]byte{})
	require.NoError(t, err)
	assert.Panics(t, func() { u.Shape() })
	assert.Panics(t, func() { _, _ = u.Authorize([32]byte{}) })
	assert.NotPanics(t, u.Discard)
}

func TestDiscard(t *testing.T) {
	eng := devcrypto.NewSeeded([32]byte{0x5A})
	_, to := eng.Sapling.Key([32]byte{2})

	b := newBuilder(eng)
	require.NoError(t, b.AddOutput(nil, to, 5, transaction.NoMemo()))
	u, err := b.Build()
	require.NoError(t, err)

	u.Discard()
	u.Discard()
	assert.Panics(t, func() { u.ValueBalance() })
}

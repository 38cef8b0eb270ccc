package builder_test

import (
	"bytes"
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/suffix-labs/zcash-txbuilder/pkg/builder"
	"github.com/suffix-labs/zcash-txbuilder/pkg/crypto"
	"github.com/suffix-labs/zcash-txbuilder/pkg/devcrypto"
	"github.com/suffix-labs/zcash-txbuilder/pkg/orchard"
	"github.com/suffix-labs/zcash-txbuilder/pkg/params"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sapling"
	"github.com/suffix-labs/zcash-txbuilder/pkg/script"
	"github.com/suffix-labs/zcash-txbuilder/pkg/shuffle"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sighash"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sprout"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

const height = 100

var orchardAnchor = [32]byte{0x0A}

type env struct {
	eng   *devcrypto.Engine
	keys  *crypto.MemoryKeyStore
	key   *crypto.PrivateKey
	taddr script.Address
	seed  byte
}

func newEnv(t *testing.T, seed byte) *env {
	key, err := crypto.PrivateKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, err)
	keys := crypto.NewMemoryKeyStore()
	hash := keys.AddKey(key)
	return &env{
		eng:   devcrypto.NewSeeded([32]byte{seed}),
		keys:  keys,
		key:   key,
		taddr: script.Address{Kind: script.PubKeyHash, Hash: hash},
		seed:  seed,
	}
}

func (e *env) builder(t *testing.T, opts ...builder.Option) *builder.TransactionBuilder {
	all := []builder.Option{
		builder.WithKeyStore(e.keys),
		builder.WithSproutBackend(e.eng),
		builder.WithSaplingBackend(e.eng.Sapling),
		builder.WithOrchardBackend(e.eng.Orchard),
		builder.WithRandomness(devcrypto.SeededReader([32]byte{e.seed, 0xFF})),
		builder.WithShuffle(shuffle.Identity),
	}
	b, err := builder.NewBuilder(params.Regtest, height, &orchardAnchor, append(all, opts...)...)
	require.NoError(t, err)
	return b
}

// fund adds one P2PKH input of value to b.
func (e *env) fund(t *testing.T, b *builder.TransactionBuilder, value transaction.Amount) transaction.OutPoint {
	op := transaction.OutPoint{TxID: [32]byte{0xF0, byte(value)}, Index: 1}
	require.NoError(t, b.AddTransparentInput(op, e.taddr.Script(), value))
	return op
}

func (e *env) prevOuts(tx *transaction.Transaction, value transaction.Amount) []transaction.TxOut {
	out := make([]transaction.TxOut, len(tx.Inputs))
	for i := range out {
		out[i] = transaction.TxOut{Value: value, ScriptPubKey: e.taddr.Script()}
	}
	return out
}

// checkTransparentSig verifies input i's scriptSig against the key.
func (e *env) checkTransparentSig(t *testing.T, tx *transaction.Transaction, prevOuts []transaction.TxOut, i int) {
	t.Helper()
	sigScript := tx.Inputs[i].ScriptSig
	require.NotEmpty(t, sigScript)
	n := int(sigScript[0])
	require.Equal(t, sighash.SighashAll, sigScript[n], "hash type follows the DER signature")
	der := sigScript[1:n]

	h, err := sighash.TransparentSignatureHash(tx, prevOuts, i, sighash.SighashAll)
	require.NoError(t, err)
	assert.True(t, e.key.PublicKey().Verify(h, der))
	assert.Equal(t, e.key.PublicKey().Bytes(), sigScript[n+2:])
}

func findOrchard(t *testing.T, eng *devcrypto.Engine, b *transaction.OrchardBundle, addr orchard.Address) orchard.Note {
	t.Helper()
	for i := range b.Actions {
		if n, _, err := eng.Orchard.DecryptAction(&b.Actions[i], addr); err == nil {
			return n
		}
	}
	t.Fatalf("no orchard action for address %x", addr[:4])
	return orchard.Note{}
}

func TestTransparentToOrchardExact(t *testing.T) {
	e := newEnv(t, 1)
	_, to := e.eng.Orchard.Key([32]byte{0x01})

	b := e.builder(t)
	e.fund(t, b, 100000)
	require.NoError(t, b.AddOrchardOutput(nil, to, 90000, transaction.NoMemo()))

	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)
	assert.False(t, res.IsError())
	assert.PanicsWithValue(t, "builder: Err called on a transaction result", func() { _ = res.Err() })
	tx := res.Tx()

	require.NotNil(t, tx.Orchard)
	assert.Equal(t, transaction.Amount(-90000), tx.Orchard.ValueBalance)
	assert.Len(t, tx.Orchard.Actions, 2)
	assert.Empty(t, tx.Outputs, "no change output")
	assert.Nil(t, tx.Sapling)
	assert.Empty(t, tx.JoinSplits)
	assert.Empty(t, res.SproutMappings())
	assert.Equal(t, uint32(height+builder.DefaultExpiryDelta), tx.ExpiryHeight)
	assert.Equal(t, params.Regtest.BranchIDAt(height), tx.ConsensusBranchID)

	note := findOrchard(t, e.eng, tx.Orchard, to)
	assert.Equal(t, uint64(90000), note.Value)

	prevOuts := e.prevOuts(tx, 100000)
	sig, err := sighash.ShieldedSignatureHash(tx, prevOuts)
	require.NoError(t, err)
	require.NoError(t, e.eng.Orchard.VerifyBundle(tx.Orchard, sig))
	e.checkTransparentSig(t, tx, prevOuts, 0)

	raw, err := tx.Serialize()
	require.NoError(t, err)
	parsed, err := transaction.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, sighash.TxID(tx), sighash.TxID(parsed))
}

func TestChangeToOrchard(t *testing.T) {
	e := newEnv(t, 2)
	_, to := e.eng.Orchard.Key([32]byte{0x01})
	changeSK, change := e.eng.Orchard.Key([32]byte{0x02})
	fvk, err := e.eng.Orchard.FullViewingKey(changeSK)
	require.NoError(t, err)
	ovk, err := e.eng.Orchard.OutgoingViewingKey(fvk)
	require.NoError(t, err)

	b := e.builder(t)
	e.fund(t, b, 100000)
	require.NoError(t, b.AddOrchardOutput(&ovk, to, 85000, transaction.NoMemo()))
	require.NoError(t, b.SendChangeTo(change, &ovk))

	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)
	tx := res.Tx()

	require.NotNil(t, tx.Orchard)
	assert.Equal(t, transaction.Amount(-90000), tx.Orchard.ValueBalance)
	assert.Len(t, tx.Orchard.Actions, 2)
	assert.Empty(t, tx.Outputs)
	assert.Equal(t, uint64(85000), findOrchard(t, e.eng, tx.Orchard, to).Value)
	assert.Equal(t, uint64(5000), findOrchard(t, e.eng, tx.Orchard, change).Value)

	for i := range tx.Orchard.Actions {
		pkd, err := e.eng.Orchard.RecoverAction(&tx.Orchard.Actions[i], ovk)
		require.NoError(t, err)
		assert.Contains(t, [][]byte{to[11:], change[11:]}, pkd[:])
	}
}

func TestInsufficientFunds(t *testing.T) {
	e := newEnv(t, 3)
	_, to := e.eng.Orchard.Key([32]byte{0x01})

	b := e.builder(t)
	e.fund(t, b, 100000)
	require.NoError(t, b.AddOrchardOutput(nil, to, 95000, transaction.NoMemo()))

	res := b.Build()
	require.True(t, res.IsError())
	assert.False(t, res.IsTx())
	assert.True(t, builder.HasCode(res.Err(), builder.ErrInsufficientFunds), res.Err().Error())
	assert.Panics(t, func() { res.Tx() })
	assert.Panics(t, func() { res.SproutMappings() })
}

func TestNoChangeAddress(t *testing.T) {
	e := newEnv(t, 4)

	b := e.builder(t)
	e.fund(t, b, 100000)
	require.NoError(t, b.AddTransparentOutput(e.taddr, 50000))

	res := b.Build()
	require.True(t, res.IsError())
	assert.True(t, builder.HasCode(res.Err(), builder.ErrNoChangeAddress))
}

func TestChangeFallsBackToSaplingSpend(t *testing.T) {
	e := newEnv(t, 5)
	expsk, from := e.eng.Sapling.Key([32]byte{0x05})
	anchor := [32]byte{0x5A}
	note := sapling.Note{Diversifier: from.Diversifier, PkD: from.PkD, Value: 50000}

	b := e.builder(t)
	require.NoError(t, b.AddSaplingSpend(expsk, note, anchor, sapling.MerklePath{Position: 9}))
	require.NoError(t, b.AddTransparentOutput(e.taddr, 30000))

	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)
	tx := res.Tx()

	require.NotNil(t, tx.Sapling)
	assert.Nil(t, tx.Orchard, "an empty orchard pool is absent")
	assert.Equal(t, anchor, tx.Sapling.Anchor)
	assert.Equal(t, transaction.Amount(40000), tx.Sapling.ValueBalance)
	require.Len(t, tx.Sapling.Outputs, 1)

	got, _, err := e.eng.Sapling.DecryptOutput(&tx.Sapling.Outputs[0], from)
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), got.Value)
	pkD, err := e.eng.Sapling.RecoverOutput(&tx.Sapling.Outputs[0], expsk.Ovk)
	require.NoError(t, err)
	assert.Equal(t, from.PkD, pkD)

	sig, err := sighash.ShieldedSignatureHash(tx, nil)
	require.NoError(t, err)
	require.NoError(t, e.eng.Sapling.VerifyBundle(tx.Sapling, sig))
}

func TestChangeToTransparent(t *testing.T) {
	e := newEnv(t, 6)

	b := e.builder(t)
	e.fund(t, b, 100000)
	require.NoError(t, b.AddTransparentOutput(e.taddr, 60000))
	require.NoError(t, b.SetFee(1000))
	require.NoError(t, b.SendChangeTo(e.taddr, nil))

	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)
	tx := res.Tx()
	require.Len(t, tx.Outputs, 2)
	assert.Equal(t, transaction.Amount(39000), tx.Outputs[1].Value)
	assert.Equal(t, e.taddr.Script(), tx.Outputs[1].ScriptPubKey)
	assert.Nil(t, tx.Orchard)
	assert.Nil(t, tx.Sapling)
}

func TestAnchorMismatchIsImmediate(t *testing.T) {
	e := newEnv(t, 7)
	expsk, from := e.eng.Sapling.Key([32]byte{0x07})
	note := sapling.Note{Diversifier: from.Diversifier, PkD: from.PkD, Value: 1}

	b := e.builder(t)
	require.NoError(t, b.AddSaplingSpend(expsk, note, [32]byte{1}, sapling.MerklePath{}))
	err := b.AddSaplingSpend(expsk, note, [32]byte{2}, sapling.MerklePath{})
	assert.True(t, builder.HasCode(err, builder.ErrAnchorMismatch), "got %v", err)

	sk, addr := e.eng.Orchard.Key([32]byte{0x07})
	err = b.AddOrchardSpend(sk, orchard.Note{Recipient: addr, Value: 1}, [32]byte{0xFF}, orchard.MerklePath{})
	assert.True(t, builder.HasCode(err, builder.ErrAnchorMismatch), "got %v", err)

	sproutSK := sprout.SpendingKey{0x01}
	sproutAddr, err := e.eng.Address(sproutSK)
	require.NoError(t, err)
	sn := sprout.Note{APk: sproutAddr.APk, Value: 1}
	require.NoError(t, b.AddSproutSpend(sproutSK, sn, [32]byte{3}, sprout.Witness{}))
	err = b.AddSproutSpend(sproutSK, sn, [32]byte{4}, sprout.Witness{})
	assert.True(t, builder.HasCode(err, builder.ErrAnchorMismatch), "got %v", err)
}

func TestSproutSpendLimit(t *testing.T) {
	e := newEnv(t, 8)
	sk := sprout.SpendingKey{0x01}
	addr, err := e.eng.Address(sk)
	require.NoError(t, err)
	note := sprout.Note{APk: addr.APk, Value: 1}

	b := e.builder(t)
	for i := 0; i < sprout.MaxSpends; i++ {
		require.NoError(t, b.AddSproutSpend(sk, note, [32]byte{1}, sprout.Witness{}))
	}
	err = b.AddSproutSpend(sk, note, [32]byte{1}, sprout.Witness{})
	assert.True(t, builder.HasCode(err, builder.ErrTooManySpends), "got %v", err)
}

func TestSproutToTransparent(t *testing.T) {
	e := newEnv(t, 9)
	sk := sprout.SpendingKey{0x01, 0x09}
	addr, err := e.eng.Address(sk)
	require.NoError(t, err)

	b := e.builder(t)
	require.NoError(t, b.AddSproutSpend(sk, sprout.Note{APk: addr.APk, Value: 30000}, [32]byte{0x33}, sprout.Witness{}))
	require.NoError(t, b.AddTransparentOutput(e.taddr, 20000))

	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)
	tx := res.Tx()

	require.Len(t, tx.JoinSplits, 1)
	js := &tx.JoinSplits[0]
	assert.Equal(t, transaction.Amount(30000), js.VPubNew)
	assert.Equal(t, [32]byte{0x33}, js.Anchor)
	require.NoError(t, e.eng.VerifyJoinSplit(js, tx.JoinSplitPubKey))

	sig, err := sighash.ShieldedSignatureHash(tx, nil)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(tx.JoinSplitPubKey[:], sig[:], tx.JoinSplitSig[:]))
	assert.Equal(t, []sprout.SlotMap{sprout.IdentitySlotMap()}, res.SproutMappings())

	assert.Equal(t, transaction.SproutExtensionVersionGroupID, tx.VersionGroupID)
	raw, err := tx.Serialize()
	require.NoError(t, err)
	parsed, err := transaction.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, tx.JoinSplits, parsed.JoinSplits)
	assert.Equal(t, sighash.TxID(tx), sighash.TxID(parsed))
}

func TestSproutMappingsLocateOutputs(t *testing.T) {
	e := newEnv(t, 10)
	sk := sprout.SpendingKey{0x01, 0x0A}
	addr, err := e.eng.Address(sk)
	require.NoError(t, err)
	skA, skB := sprout.SpendingKey{0x02}, sprout.SpendingKey{0x03}
	toA, err := e.eng.Address(skA)
	require.NoError(t, err)
	toB, err := e.eng.Address(skB)
	require.NoError(t, err)

	b := e.builder(t, builder.WithShuffle(func(int) int { return 0 }))
	require.NoError(t, b.AddSproutSpend(sk, sprout.Note{APk: addr.APk, Value: 20000}, [32]byte{1}, sprout.Witness{}))
	require.NoError(t, b.AddSproutOutput(toA, 4000, transaction.NoMemo()))
	require.NoError(t, b.AddSproutOutput(toB, 6000, transaction.NoMemo()))

	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)
	tx := res.Tx()
	m := res.SproutMappings()
	require.Len(t, m, 1)
	assert.Equal(t, [2]int{1, 0}, m[0].Outputs)

	noteA, _, err := e.eng.DecryptSproutOutput(&tx.JoinSplits[0], tx.JoinSplitPubKey, m[0].Outputs[0], skA)
	require.NoError(t, err)
	assert.Equal(t, uint64(4000), noteA.Value)
	noteB, _, err := e.eng.DecryptSproutOutput(&tx.JoinSplits[0], tx.JoinSplitPubKey, m[0].Outputs[1], skB)
	require.NoError(t, err)
	assert.Equal(t, uint64(6000), noteB.Value)
}

func TestChangeToSprout(t *testing.T) {
	e := newEnv(t, 11)
	changeSK := sprout.SpendingKey{0x04}
	change, err := e.eng.Address(changeSK)
	require.NoError(t, err)

	b := e.builder(t)
	e.fund(t, b, 50000)
	require.NoError(t, b.SendChangeToSprout(change))

	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)
	tx := res.Tx()
	require.Len(t, tx.JoinSplits, 1)
	assert.Equal(t, transaction.Amount(40000), tx.JoinSplits[0].VPubOld)

	note, _, err := e.eng.DecryptSproutOutput(&tx.JoinSplits[0], tx.JoinSplitPubKey, 0, changeSK)
	require.NoError(t, err)
	assert.Equal(t, uint64(40000), note.Value)
	e.checkTransparentSig(t, tx, e.prevOuts(tx, 50000), 0)
}

func TestTransparentOnlyUsesStandardLayout(t *testing.T) {
	e := newEnv(t, 19)
	b := e.builder(t)
	e.fund(t, b, 100000)
	require.NoError(t, b.AddTransparentOutput(e.taddr, 90000))

	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)
	tx := res.Tx()
	assert.Equal(t, transaction.V5VersionGroupID, tx.VersionGroupID)

	raw, err := tx.Serialize()
	require.NoError(t, err)
	scriptSig := len(tx.Inputs[0].ScriptSig)
	require.Less(t, scriptSig, 0xFD)
	// header, vin, vout, then nSpendsSapling, nOutputsSapling and
	// nActionsOrchard with nothing in between.
	want := 20 + 1 + (32 + 4 + 1 + scriptSig + 4) + 1 + (8 + 1 + 25) + 3
	assert.Len(t, raw, want)
	assert.Equal(t, []byte{0, 0, 0}, raw[want-3:])
}

func TestTransparentTotalsOverflow(t *testing.T) {
	e := newEnv(t, 20)
	b := e.builder(t)
	require.NoError(t, b.AddTransparentInput(transaction.OutPoint{Index: 1}, e.taddr.Script(), transaction.MaxMoney))
	require.NoError(t, b.AddTransparentInput(transaction.OutPoint{Index: 2}, e.taddr.Script(), transaction.MaxMoney))
	require.NoError(t, b.SendChangeTo(e.taddr, nil))

	res := b.Build()
	require.True(t, res.IsError())
	assert.True(t, builder.HasCode(res.Err(), builder.ErrInvalidAmount), res.Err().Error())

	b = e.builder(t)
	e.fund(t, b, 100000)
	require.NoError(t, b.AddTransparentOutput(e.taddr, transaction.MaxMoney))
	require.NoError(t, b.AddTransparentOutput(e.taddr, transaction.MaxMoney))
	res = b.Build()
	require.True(t, res.IsError())
	assert.True(t, builder.HasCode(res.Err(), builder.ErrInvalidAmount), res.Err().Error())
}

func TestRandomizedSproutLayoutIsReproducible(t *testing.T) {
	type run struct {
		raw      []byte
		mappings []sprout.SlotMap
	}
	skA, skB := sprout.SpendingKey{0x0A}, sprout.SpendingKey{0x0B}

	build := func() run {
		e := newEnv(t, 21)
		sk := sprout.SpendingKey{0x21}
		addr, err := e.eng.Address(sk)
		require.NoError(t, err)
		toA, err := e.eng.Address(skA)
		require.NoError(t, err)
		toB, err := e.eng.Address(skB)
		require.NoError(t, err)

		rng := frand.NewCustom(bytes.Repeat([]byte{0x21}, 32), 1024, 12)
		b := e.builder(t, builder.WithShuffle(rng.Intn))
		for i := 0; i < 3; i++ {
			note := sprout.Note{APk: addr.APk, Value: 10000, Rho: [32]byte{byte(i)}}
			require.NoError(t, b.AddSproutSpend(sk, note, [32]byte{0x21}, sprout.Witness{Position: uint64(i)}))
		}
		require.NoError(t, b.AddSproutOutput(toA, 8000, transaction.NoMemo()))
		require.NoError(t, b.AddSproutOutput(toB, 7000, transaction.NoMemo()))
		require.NoError(t, b.AddTransparentOutput(e.taddr, 5000))

		res := b.Build()
		require.True(t, res.IsTx(), "build failed: %v", res)
		tx := res.Tx()
		require.Len(t, tx.JoinSplits, 2)

		m := res.SproutMappings()
		require.Len(t, m, 2)
		for k, want := range []uint64{8000, 7000} {
			sk := []sprout.SpendingKey{skA, skB}[k]
			note, _, err := e.eng.DecryptSproutOutput(&tx.JoinSplits[k/2], tx.JoinSplitPubKey, m[k/2].Outputs[k%2], sk)
			require.NoError(t, err)
			assert.Equal(t, want, note.Value)
		}

		raw, err := tx.Serialize()
		require.NoError(t, err)
		return run{raw: raw, mappings: m}
	}

	first, second := build(), build()
	assert.Equal(t, first.mappings, second.mappings)
	assert.Equal(t, first.raw, second.raw)
}

func TestDeterministicLayout(t *testing.T) {
	build := func() []byte {
		e := newEnv(t, 12)
		_, saplingTo := e.eng.Sapling.Key([32]byte{0x12})
		_, orchardTo := e.eng.Orchard.Key([32]byte{0x12})

		b := e.builder(t)
		e.fund(t, b, 100000)
		require.NoError(t, b.AddSaplingOutput(nil, saplingTo, 30000, transaction.NoMemo()))
		require.NoError(t, b.AddOrchardOutput(nil, orchardTo, 40000, transaction.NoMemo()))
		require.NoError(t, b.SendChangeTo(e.taddr, nil))

		res := b.Build()
		require.True(t, res.IsTx(), "build failed: %v", res)
		raw, err := res.Tx().Serialize()
		require.NoError(t, err)
		return raw
	}
	assert.Equal(t, build(), build())
}

func TestBuilderIsSingleUse(t *testing.T) {
	e := newEnv(t, 13)
	b := e.builder(t)
	require.NoError(t, b.SetFee(0))
	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)

	assert.PanicsWithValue(t, "builder: TransactionBuilder used after Build", func() { b.Build() })
	assert.Panics(t, func() { _ = b.AddTransparentOutput(e.taddr, 1) })
	assert.Panics(t, func() { _ = b.SetFee(1) })
}

func TestFailedBuildStillConsumes(t *testing.T) {
	e := newEnv(t, 14)
	b := e.builder(t)
	require.NoError(t, b.AddTransparentOutput(e.taddr, 1))
	require.True(t, b.Build().IsError())
	assert.Panics(t, func() { b.Build() })
}

type recordingLock struct {
	sync.Mutex
	locks int
}

func (l *recordingLock) Lock() {
	l.Mutex.Lock()
	l.locks++
}

type mapView map[transaction.OutPoint]transaction.TxOut

func (v mapView) GetCoin(op transaction.OutPoint) (transaction.TxOut, bool) {
	out, ok := v[op]
	return out, ok
}

func TestCoinsView(t *testing.T) {
	e := newEnv(t, 15)
	view := mapView{}
	lock := &recordingLock{}

	b := e.builder(t, builder.WithCoinsView(view, lock))
	op := e.fund(t, b, 100000)
	require.NoError(t, b.SendChangeTo(e.taddr, nil))
	res := b.Build()
	require.True(t, res.IsError())
	assert.True(t, builder.HasCode(res.Err(), builder.ErrCoinsView))
	assert.Equal(t, 1, lock.locks)

	view[op] = transaction.TxOut{Value: 99999, ScriptPubKey: e.taddr.Script()}
	b = e.builder(t, builder.WithCoinsView(view, lock))
	e.fund(t, b, 100000)
	require.NoError(t, b.SendChangeTo(e.taddr, nil))
	assert.True(t, builder.HasCode(b.Build().Err(), builder.ErrCoinsView))

	view[op] = transaction.TxOut{Value: 100000, ScriptPubKey: e.taddr.Script()}
	b = e.builder(t, builder.WithCoinsView(view, lock))
	e.fund(t, b, 100000)
	require.NoError(t, b.SendChangeTo(e.taddr, nil))
	assert.True(t, b.Build().IsTx())
	assert.Equal(t, 3, lock.locks)
}

func TestConfigurationErrors(t *testing.T) {
	e := newEnv(t, 16)

	_, err := builder.NewBuilder(params.Mainnet, 1000000, nil)
	assert.True(t, builder.HasCode(err, builder.ErrPoolUnavailable))

	_, err = builder.NewBuilder(params.Regtest, height, &orchardAnchor)
	assert.True(t, builder.HasCode(err, builder.ErrPoolUnavailable), "orchard anchor without backend")

	bare, err := builder.NewBuilder(params.Regtest, height, nil)
	require.NoError(t, err)
	err = bare.AddTransparentInput(transaction.OutPoint{}, e.taddr.Script(), 1)
	assert.True(t, builder.HasCode(err, builder.ErrMissingKeyStore))
	_, orchardTo := e.eng.Orchard.Key([32]byte{1})
	err = bare.AddOrchardOutput(nil, orchardTo, 1, transaction.NoMemo())
	assert.True(t, builder.HasCode(err, builder.ErrPoolUnavailable))
	_, saplingTo := e.eng.Sapling.Key([32]byte{1})
	err = bare.AddSaplingOutput(nil, saplingTo, 1, transaction.NoMemo())
	assert.True(t, builder.HasCode(err, builder.ErrPoolUnavailable))
	err = bare.SendChangeTo(saplingTo, nil)
	assert.True(t, builder.HasCode(err, builder.ErrPoolUnavailable))
	err = bare.AddSproutOutput(sprout.PaymentAddress{}, 1, transaction.NoMemo())
	assert.True(t, builder.HasCode(err, builder.ErrPoolUnavailable))

	b := e.builder(t)
	assert.True(t, builder.HasCode(b.SetFee(-1), builder.ErrInvalidAmount))
	assert.True(t, builder.HasCode(b.AddTransparentOutput(e.taddr, -1), builder.ErrInvalidAmount))
	assert.True(t, builder.HasCode(b.SetExpiryHeight(0), builder.ErrInvalidExpiry))
	assert.True(t, builder.HasCode(b.SetExpiryHeight(height-1), builder.ErrInvalidExpiry))
	assert.True(t, builder.HasCode(b.SetExpiryHeight(transaction.MaxExpiryHeight), builder.ErrInvalidExpiry))
	assert.True(t, builder.HasCode(b.SendChangeTo(sprout.PaymentAddress{}, nil), builder.ErrNoChangeAddress))
	require.NoError(t, b.SetExpiryHeight(height+500))
	require.NoError(t, b.SetFee(0))

	res := b.Build()
	require.True(t, res.IsTx(), "build failed: %v", res)
	assert.Equal(t, uint32(height+500), res.Tx().ExpiryHeight)
}

func TestNonP2PKHInputCannotBeSigned(t *testing.T) {
	e := newEnv(t, 17)
	b := e.builder(t)
	p2sh := script.Address{Kind: script.ScriptHash, Hash: e.taddr.Hash}
	require.NoError(t, b.AddTransparentInput(transaction.OutPoint{Index: 3}, p2sh.Script(), 20000))
	require.NoError(t, b.AddTransparentOutput(e.taddr, 10000))

	res := b.Build()
	require.True(t, res.IsError())
	assert.True(t, builder.HasCode(res.Err(), builder.ErrSigningFailed), res.Err().Error())
}

func TestLogsChange(t *testing.T) {
	e := newEnv(t, 18)
	var buf bytes.Buffer

	b := e.builder(t, builder.WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))
	e.fund(t, b, 100000)
	require.NoError(t, b.SendChangeTo(e.taddr, nil))
	require.True(t, b.Build().IsTx())

	assert.Contains(t, buf.String(), `"message":"adding change output"`)
	assert.Contains(t, buf.String(), `"pool":"transparent"`)
	assert.Contains(t, buf.String(), `"message":"transaction built"`)
}

package builder

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/suffix-labs/zcash-txbuilder/pkg/orchard"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sapling"
	"github.com/suffix-labs/zcash-txbuilder/pkg/script"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sighash"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sprout"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// Build consumes the builder and produces the transaction. Every
// anticipated failure is reported through the Result; nothing partial is
// ever returned.
func (b *TransactionBuilder) Build() Result {
	st := b.live()
	b.st = nil
	defer st.discard()

	if st.coinsLock != nil {
		st.coinsLock.Lock()
		defer st.coinsLock.Unlock()
	}

	tx, mappings, err := st.build()
	if err != nil {
		st.log.Debug().Err(err).Msg("transaction build failed")
		return errorResult(err)
	}
	return txResult(tx, mappings)
}

func (st *state) build() (*transaction.Transaction, []sprout.SlotMap, error) {
	if err := st.checkCoins(); err != nil {
		return nil, nil, err
	}
	if err := st.checkTransparentTotals(); err != nil {
		return nil, nil, err
	}
	if err := st.addChange(); err != nil {
		return nil, nil, err
	}

	tx := &transaction.Transaction{
		Version:           transaction.V5TxVersion,
		VersionGroupID:    transaction.V5VersionGroupID,
		ConsensusBranchID: st.branchID,
		ExpiryHeight:      st.expiry,
		Outputs:           st.outputs,
	}
	prevOuts := make([]transaction.TxOut, len(st.inputs))
	for i, in := range st.inputs {
		tx.Inputs = append(tx.Inputs, transaction.TxIn{PrevOut: in.outpoint, Sequence: transaction.DefaultSequence})
		prevOuts[i] = in.coin
	}

	// Sprout proofs do not feed the signature hash, so JoinSplits are
	// finished here and only the JoinSplit signature waits for the hash.
	var mappings []sprout.SlotMap
	if st.sprout != nil {
		bundle, err := st.sprout.Build(true)
		if err != nil {
			return nil, nil, newError(ErrProofFailed, "building joinsplits", err)
		}
		if bundle != nil {
			tx.JoinSplits = bundle.JoinSplits
			tx.VersionGroupID = transaction.VersionGroupFor(len(tx.JoinSplits))
			copy(tx.JoinSplitPubKey[:], st.jsKey.Public().(ed25519.PublicKey))
			mappings = bundle.Mappings
			st.log.Debug().
				Int("joinsplits", len(bundle.JoinSplits)).
				Bool("randomized", bundle.Randomized).
				Msg("sprout bundle built")
		}
	}

	var saplingBundle *sapling.UnauthorizedBundle
	if st.sapling != nil {
		var err error
		saplingBundle, err = st.sapling.Build()
		if err != nil {
			return nil, nil, newError(ErrProofFailed, "building sapling bundle", err)
		}
		if saplingBundle != nil {
			defer saplingBundle.Discard()
			tx.Sapling = saplingBundle.Shape()
		}
	}

	var orchardBundle *orchard.UnauthorizedBundle
	if st.orchard != nil {
		var err error
		orchardBundle, err = st.orchard.Build()
		if err != nil {
			return nil, nil, newError(ErrProofFailed, "building orchard bundle", err)
		}
		if orchardBundle != nil {
			defer orchardBundle.Discard()
		}
		st.log.Debug().Bool("present", orchardBundle != nil).Msg("orchard bundle built")
	}

	if err := checkBalances(tx, orchardBundle); err != nil {
		return nil, nil, err
	}

	// Every pool's shape is now fixed; the hash covers all of them.
	var (
		sigHash [32]byte
		err     error
	)
	if orchardBundle != nil {
		sigHash, err = orchard.SignatureHash(tx, prevOuts, orchardBundle)
	} else {
		sigHash, err = sighash.ShieldedSignatureHash(tx, prevOuts)
	}
	if err != nil {
		return nil, nil, newError(ErrInvalidTransaction, "computing signature hash", err)
	}

	if orchardBundle != nil {
		tx.Orchard, err = orchardBundle.ProveAndSign(sigHash)
		if err != nil {
			return nil, nil, newError(ErrProofFailed, "authorizing orchard bundle", err)
		}
	}
	if saplingBundle != nil {
		tx.Sapling, err = saplingBundle.Authorize(sigHash)
		if err != nil {
			return nil, nil, newError(ErrSigningFailed, "authorizing sapling bundle", err)
		}
	}
	if len(tx.JoinSplits) > 0 {
		if err := st.signJoinSplits(tx, sigHash); err != nil {
			return nil, nil, err
		}
	}
	if err := st.signTransparent(tx, prevOuts); err != nil {
		return nil, nil, err
	}

	final, err := sighash.ShieldedSignatureHash(tx, prevOuts)
	if err != nil || final != sigHash {
		return nil, nil, newError(ErrInvalidTransaction, "authorization changed the transaction shape", err)
	}

	st.log.Debug().
		Hex("txid", reversed(sighash.TxID(tx))).
		Int("transparent_inputs", len(tx.Inputs)).
		Int("transparent_outputs", len(tx.Outputs)).
		Stringer("fee", st.fee).
		Msg("transaction built")
	return tx, mappings, nil
}

func reversed(h [32]byte) []byte {
	out := make([]byte, len(h))
	for i := range h {
		out[len(h)-1-i] = h[i]
	}
	return out
}

func (st *state) checkCoins() error {
	if st.coins == nil {
		return nil
	}
	for i, in := range st.inputs {
		coin, ok := st.coins.GetCoin(in.outpoint)
		if !ok {
			return errorf(ErrCoinsView, "input %d spends an unknown or spent output", i)
		}
		if coin.Value != in.coin.Value || !bytes.Equal(coin.ScriptPubKey, in.coin.ScriptPubKey) {
			return errorf(ErrCoinsView, "input %d does not match the coins view: declared %s, found %s",
				i, in.coin.Value, coin.Value)
		}
	}
	return nil
}

// checkTransparentTotals rejects transparent inputs or outputs that sum past
// MaxMoney. Each value is already in range, so the running sums cannot
// overflow before the check trips.
func (st *state) checkTransparentTotals() error {
	var in, out transaction.Amount
	for _, txIn := range st.inputs {
		in += txIn.coin.Value
		if !transaction.MoneyRange(in) {
			return errorf(ErrInvalidAmount, "transparent inputs total more than %s", transaction.MaxMoney)
		}
	}
	for _, txOut := range st.outputs {
		out += txOut.Value
		if !transaction.MoneyRange(out) {
			return errorf(ErrInvalidAmount, "transparent outputs total more than %s", transaction.MaxMoney)
		}
	}
	return nil
}

// remainder returns what is left after every output and the fee are paid.
func (st *state) remainder() transaction.Amount {
	change := -st.fee
	for _, in := range st.inputs {
		change += in.coin.Value
	}
	for _, out := range st.outputs {
		change -= out.Value
	}
	if st.sprout != nil {
		change += st.sprout.ValueBalance()
	}
	if st.sapling != nil {
		change += st.sapling.ValueBalance()
	}
	if st.orchard != nil {
		change += st.orchard.ValueBalance()
	}
	return change
}

// addChange queues one output for any positive remainder. Without a change
// destination it falls back to the address of the first shielded spend,
// trying the Sapling, Orchard and Sprout pools in that order.
func (st *state) addChange() error {
	change := st.remainder()
	if change < 0 {
		return errorf(ErrInsufficientFunds, "inputs fall short of outputs plus fee %s by %s", st.fee, -change)
	}
	if change == 0 {
		return nil
	}

	policy := st.change
	if policy == nil {
		var err error
		if policy, err = st.defaultChange(); err != nil {
			return err
		}
	}

	st.log.Debug().
		Stringer("pool", policy.to.Pool()).
		Stringer("amount", change).
		Msg("adding change output")

	var err error
	switch to := policy.to.(type) {
	case script.Address:
		st.outputs = append(st.outputs, transaction.TxOut{Value: change, ScriptPubKey: to.Script()})
	case sprout.PaymentAddress:
		var sb *sprout.Builder
		if sb, err = st.sproutBuilder(); err == nil {
			err = sb.AddOutput(to, uint64(change), transaction.NoMemo())
		}
	case sapling.PaymentAddress:
		err = st.sapling.AddOutput(policy.ovk, to, uint64(change), transaction.NoMemo())
	case orchard.Address:
		err = st.orchard.AddOutput(policy.ovk, to, uint64(change), transaction.NoMemo())
	}
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			return err
		}
		return poolError("adding change output", err)
	}
	return nil
}

func (st *state) defaultChange() (*changePolicy, error) {
	if st.sapling != nil {
		if addr, ovk, ok := st.sapling.FirstSpend(); ok {
			return &changePolicy{to: addr, ovk: &ovk}, nil
		}
	}
	if st.orchard != nil {
		addr, ovk, ok, err := st.orchard.FirstSpend()
		if err != nil {
			return nil, newError(ErrNoChangeAddress, "deriving orchard change address", err)
		}
		if ok {
			return &changePolicy{to: addr, ovk: &ovk}, nil
		}
	}
	if st.sprout != nil {
		if sk, ok := st.sprout.FirstSpendKey(); ok {
			addr, err := st.sproutProver.Address(sk)
			if err != nil {
				return nil, newError(ErrNoChangeAddress, "deriving sprout change address", err)
			}
			return &changePolicy{to: addr}, nil
		}
	}
	return nil, errorf(ErrNoChangeAddress, "change remains but no change address is set and no shielded note is spent")
}

// checkBalances rejects value balances outside the money range.
func checkBalances(tx *transaction.Transaction, orchardBundle *orchard.UnauthorizedBundle) error {
	if !transaction.BalanceRange(tx.SaplingValueBalance()) {
		return errorf(ErrInvalidAmount, "sapling value balance %s out of range", tx.SaplingValueBalance())
	}
	if orchardBundle != nil && !transaction.BalanceRange(orchardBundle.ValueBalance()) {
		return errorf(ErrInvalidAmount, "orchard value balance %s out of range", orchardBundle.ValueBalance())
	}
	for i, js := range tx.JoinSplits {
		if !transaction.MoneyRange(js.VPubOld) || !transaction.MoneyRange(js.VPubNew) {
			return errorf(ErrInvalidAmount, "joinsplit %d public value out of range", i)
		}
	}
	return nil
}

func (st *state) signJoinSplits(tx *transaction.Transaction, sigHash [32]byte) error {
	sig := ed25519.Sign(st.jsKey, sigHash[:])
	pub := ed25519.PublicKey(tx.JoinSplitPubKey[:])
	if !ed25519.Verify(pub, sigHash[:], sig) {
		return errorf(ErrSigningFailed, "joinsplit signature does not verify")
	}
	copy(tx.JoinSplitSig[:], sig)
	return nil
}

// signTransparent signs every transparent input SIGHASH_ALL. Only
// pay-to-public-key-hash inputs can be signed.
func (st *state) signTransparent(tx *transaction.Transaction, prevOuts []transaction.TxOut) error {
	for i := range tx.Inputs {
		hash160, ok := script.ExtractPubKeyHash(prevOuts[i].ScriptPubKey)
		if !ok {
			return errorf(ErrSigningFailed, "input %d: only P2PKH inputs can be signed", i)
		}
		key, ok := st.keys.GetKey(hash160)
		if !ok {
			return errorf(ErrSigningFailed, "input %d: no key for %x", i, hash160)
		}
		h, err := sighash.TransparentSignatureHash(tx, prevOuts, i, sighash.SighashAll)
		if err != nil {
			return newError(ErrSigningFailed, "computing transparent signature hash",
				errors.Wrapf(err, "input %d", i))
		}
		tx.Inputs[i].ScriptSig = script.SignatureScript(key.Sign(h), sighash.SighashAll, key.PublicKey().Bytes())
	}
	return nil
}

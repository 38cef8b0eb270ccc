package sighash

import (
	"fmt"
	"io"

	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// Signature hash types for transparent inputs.
const (
	SighashAll          uint8 = 0x01
	SighashNone         uint8 = 0x02
	SighashSingle       uint8 = 0x03
	SighashAnyoneCanPay uint8 = 0x80
)

// InputError reports a problem with the transparent input being hashed.
type InputError struct {
	InputIndex int
	Message    string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("sighash error for input %d: %s", e.InputIndex, e.Message)
}

// checkPrevOuts enforces that every transparent input has its spent output.
func checkPrevOuts(tx *transaction.Transaction, prevOuts []transaction.TxOut) error {
	if len(prevOuts) != len(tx.Inputs) {
		return fmt.Errorf("have %d spent outputs for %d transparent inputs", len(prevOuts), len(tx.Inputs))
	}
	return nil
}

// ShieldedSignatureHash returns the hash signed by shielded spend
// authorization signatures, binding signatures and the JoinSplit signature.
// prevOuts are the outputs spent by tx's transparent inputs, in input order.
func ShieldedSignatureHash(tx *transaction.Transaction, prevOuts []transaction.TxOut) ([32]byte, error) {
	if err := checkPrevOuts(tx, prevOuts); err != nil {
		return [32]byte{}, err
	}
	d := ComputeTxDigests(tx)
	return rootDigest(tx.ConsensusBranchID, d, shieldedTransparentDigest(tx, prevOuts, d)), nil
}

// ShieldedSignatureHashWithOrchard is ShieldedSignatureHash with the Orchard
// branch replaced by orchardDigest. It lets an Orchard bundle that is not
// yet part of tx contribute to the hash.
func ShieldedSignatureHashWithOrchard(tx *transaction.Transaction, prevOuts []transaction.TxOut, orchardDigest [32]byte) ([32]byte, error) {
	if err := checkPrevOuts(tx, prevOuts); err != nil {
		return [32]byte{}, err
	}
	d := ComputeTxDigests(tx)
	d.Orchard = orchardDigest
	return rootDigest(tx.ConsensusBranchID, d, shieldedTransparentDigest(tx, prevOuts, d)), nil
}

func shieldedTransparentDigest(tx *transaction.Transaction, prevOuts []transaction.TxOut, d *TxDigests) [32]byte {
	if len(tx.Inputs) == 0 {
		return d.Transparent
	}
	return transparentSigDigest(tx, prevOuts, -1, SighashAll)
}

// TransparentSignatureHash returns the hash signed by transparent input
// inputIndex under hashType.
func TransparentSignatureHash(tx *transaction.Transaction, prevOuts []transaction.TxOut, inputIndex int, hashType uint8) ([32]byte, error) {
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return [32]byte{}, &InputError{InputIndex: inputIndex, Message: "input index out of bounds"}
	}
	if err := checkPrevOuts(tx, prevOuts); err != nil {
		return [32]byte{}, &InputError{InputIndex: inputIndex, Message: err.Error()}
	}
	switch hashType &^ SighashAnyoneCanPay {
	case SighashAll, SighashNone, SighashSingle:
	default:
		return [32]byte{}, &InputError{InputIndex: inputIndex, Message: fmt.Sprintf("unknown hash type %#x", hashType)}
	}

	d := ComputeTxDigests(tx)
	return rootDigest(tx.ConsensusBranchID, d, transparentSigDigest(tx, prevOuts, inputIndex, hashType)), nil
}

// transparentSigDigest computes
//
//	hash_type || prevouts || amounts || scriptpubkeys || sequences || outputs || txin
//
// inputIndex < 0 selects the empty txin digest used for shielded signatures.
func transparentSigDigest(tx *transaction.Transaction, prevOuts []transaction.TxOut, inputIndex int, hashType uint8) [32]byte {
	anyoneCanPay := hashType&SighashAnyoneCanPay != 0
	mode := hashType &^ SighashAnyoneCanPay

	prevouts := digest(prevoutsPersonalization, func(w io.Writer) {
		if anyoneCanPay {
			return
		}
		for _, in := range tx.Inputs {
			w.Write(in.PrevOut.TxID[:])
			writeU32(w, in.PrevOut.Index)
		}
	})
	amounts := digest(amountsPersonalization, func(w io.Writer) {
		if anyoneCanPay {
			return
		}
		for _, out := range prevOuts {
			writeI64(w, int64(out.Value))
		}
	})
	scripts := digest(scriptsPersonalization, func(w io.Writer) {
		if anyoneCanPay {
			return
		}
		for _, out := range prevOuts {
			writeVarBytes(w, out.ScriptPubKey)
		}
	})
	sequences := digest(sequencePersonalization, func(w io.Writer) {
		if anyoneCanPay {
			return
		}
		for _, in := range tx.Inputs {
			writeU32(w, in.Sequence)
		}
	})
	outputs := digest(outputsPersonalization, func(w io.Writer) {
		switch {
		case mode == SighashAll:
			for _, out := range tx.Outputs {
				writeTxOut(w, out)
			}
		case mode == SighashSingle && inputIndex >= 0 && inputIndex < len(tx.Outputs):
			writeTxOut(w, tx.Outputs[inputIndex])
		}
	})
	txin := digest(txInPersonalization, func(w io.Writer) {
		if inputIndex < 0 {
			return
		}
		in := tx.Inputs[inputIndex]
		w.Write(in.PrevOut.TxID[:])
		writeU32(w, in.PrevOut.Index)
		writeTxOut(w, prevOuts[inputIndex])
		writeU32(w, in.Sequence)
	})

	return digest(transparentPersonalization, func(w io.Writer) {
		w.Write([]byte{hashType})
		w.Write(prevouts[:])
		w.Write(amounts[:])
		w.Write(scripts[:])
		w.Write(sequences[:])
		w.Write(outputs[:])
		w.Write(txin[:])
	})
}

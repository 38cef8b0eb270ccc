// Package sighash computes transaction identifiers and signature hashes over
// the BLAKE2b digest tree described in ZIP 244.
//
// The tree hashes only the effecting data of a transaction: proofs and
// signatures never contribute, so the same hash can be computed before and
// after a transaction is authorized.
//
// Sprout JoinSplits, which only appear in the non-standard Sprout extension
// of the v5 format, are covered by an extra branch that is appended to the
// tree only when a transaction carries JoinSplits. Transactions without them
// hash exactly as ZIP 244 specifies.
//
// References:
//   - ZIP 244: https://zips.z.cash/zip-0244
package sighash

import (
	"encoding/binary"
	"hash"
	"io"

	"github.com/minio/blake2b-simd"

	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// BLAKE2b personalization strings. Each is at most 16 bytes.
const (
	txHashPersonalization = "ZcashTxHash_"

	headerPersonalization      = "ZTxIdHeadersHash"
	transparentPersonalization = "ZTxIdTranspaHash"
	sproutPersonalization      = "ZTxIdSproutHash_"
	saplingPersonalization     = "ZTxIdSaplingHash"
	orchardPersonalization     = "ZTxIdOrchardHash"

	prevoutsPersonalization = "ZTxIdPrevoutHash"
	sequencePersonalization = "ZTxIdSequencHash"
	outputsPersonalization  = "ZTxIdOutputsHash"
	amountsPersonalization  = "ZTxTrAmountsHash"
	scriptsPersonalization  = "ZTxTrScriptsHash"
	txInPersonalization     = "Zcash___TxInHash"

	saplingSpendsPersonalization            = "ZTxIdSSpendsHash"
	saplingSpendsCompactPersonalization     = "ZTxIdSSpendCHash"
	saplingSpendsNoncompactPersonalization  = "ZTxIdSSpendNHash"
	saplingOutputsPersonalization           = "ZTxIdSOutputHash"
	saplingOutputsCompactPersonalization    = "ZTxIdSOutC__Hash"
	saplingOutputsMemosPersonalization      = "ZTxIdSOutM__Hash"
	saplingOutputsNoncompactPersonalization = "ZTxIdSOutN__Hash"

	orchardCompactPersonalization    = "ZTxIdOrcActCHash"
	orchardMemosPersonalization      = "ZTxIdOrcActMHash"
	orchardNoncompactPersonalization = "ZTxIdOrcActNHash"
)

// Offsets into a 580-byte note ciphertext that split it into the compact
// prefix, the memo and the remainder.
const (
	compactNoteSize = 52
	memoEnd         = compactNoteSize + transaction.MemoSize
)

func newHash(personalization []byte) hash.Hash {
	h, err := blake2b.New(&blake2b.Config{Size: 32, Person: personalization})
	if err != nil {
		// Only reachable with a personalization longer than 16 bytes.
		panic(err)
	}
	return h
}

// digest hashes whatever write emits under the given personalization.
func digest(personalization string, write func(w io.Writer)) [32]byte {
	h := newHash([]byte(personalization))
	if write != nil {
		write(h)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeU32(w io.Writer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeI64(w io.Writer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.Write(b[:])
}

func writeVarBytes(w io.Writer, b []byte) {
	transaction.WriteCompactSize(w, uint64(len(b)))
	w.Write(b)
}

// TxDigests holds the top-level branches of the digest tree.
type TxDigests struct {
	Header      [32]byte
	Transparent [32]byte
	Sprout      *[32]byte // nil when the transaction has no JoinSplits
	Sapling     [32]byte
	Orchard     [32]byte
}

// ComputeTxDigests computes every branch of the digest tree for tx.
func ComputeTxDigests(tx *transaction.Transaction) *TxDigests {
	d := &TxDigests{
		Header:      headerDigest(tx),
		Transparent: transparentDigest(tx),
		Sapling:     saplingDigest(tx.Sapling),
		Orchard:     orchardBundleDigest(tx.Orchard),
	}
	if len(tx.JoinSplits) > 0 {
		s := sproutDigest(tx)
		d.Sprout = &s
	}
	return d
}

// TxID returns the transaction identifier in internal byte order.
func TxID(tx *transaction.Transaction) [32]byte {
	d := ComputeTxDigests(tx)
	return rootDigest(tx.ConsensusBranchID, d, d.Transparent)
}

// rootDigest combines the branches under the branch-specific
// personalization, substituting transparentBranch for the transparent digest.
func rootDigest(branchID uint32, d *TxDigests, transparentBranch [32]byte) [32]byte {
	personalization := make([]byte, 16)
	copy(personalization, txHashPersonalization)
	binary.LittleEndian.PutUint32(personalization[12:], branchID)

	h := newHash(personalization)
	h.Write(d.Header[:])
	h.Write(transparentBranch[:])
	if d.Sprout != nil {
		h.Write(d.Sprout[:])
	}
	h.Write(d.Sapling[:])
	h.Write(d.Orchard[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func headerDigest(tx *transaction.Transaction) [32]byte {
	return digest(headerPersonalization, func(w io.Writer) {
		writeU32(w, tx.Version|transaction.OverwinteredFlag)
		writeU32(w, tx.VersionGroupID)
		writeU32(w, tx.ConsensusBranchID)
		writeU32(w, tx.LockTime)
		writeU32(w, tx.ExpiryHeight)
	})
}

func transparentDigest(tx *transaction.Transaction) [32]byte {
	if len(tx.Inputs) == 0 && len(tx.Outputs) == 0 {
		return digest(transparentPersonalization, nil)
	}
	prevouts := prevoutsDigest(tx.Inputs)
	sequences := sequenceDigest(tx.Inputs)
	outputs := outputsDigest(tx.Outputs)
	return digest(transparentPersonalization, func(w io.Writer) {
		w.Write(prevouts[:])
		w.Write(sequences[:])
		w.Write(outputs[:])
	})
}

func prevoutsDigest(inputs []transaction.TxIn) [32]byte {
	return digest(prevoutsPersonalization, func(w io.Writer) {
		for _, in := range inputs {
			w.Write(in.PrevOut.TxID[:])
			writeU32(w, in.PrevOut.Index)
		}
	})
}

func sequenceDigest(inputs []transaction.TxIn) [32]byte {
	return digest(sequencePersonalization, func(w io.Writer) {
		for _, in := range inputs {
			writeU32(w, in.Sequence)
		}
	})
}

func writeTxOut(w io.Writer, out transaction.TxOut) {
	writeI64(w, int64(out.Value))
	writeVarBytes(w, out.ScriptPubKey)
}

func outputsDigest(outputs []transaction.TxOut) [32]byte {
	return digest(outputsPersonalization, func(w io.Writer) {
		for _, out := range outputs {
			writeTxOut(w, out)
		}
	})
}

// sproutDigest covers every JoinSplit field except the proof, followed by
// the JoinSplit public key.
func sproutDigest(tx *transaction.Transaction) [32]byte {
	return digest(sproutPersonalization, func(w io.Writer) {
		for i := range tx.JoinSplits {
			js := &tx.JoinSplits[i]
			writeI64(w, int64(js.VPubOld))
			writeI64(w, int64(js.VPubNew))
			w.Write(js.Anchor[:])
			for _, nf := range js.Nullifiers {
				w.Write(nf[:])
			}
			for _, cm := range js.Commitments {
				w.Write(cm[:])
			}
			w.Write(js.EphemeralKey[:])
			w.Write(js.RandomSeed[:])
			for _, mac := range js.Macs {
				w.Write(mac[:])
			}
			for _, ct := range js.Ciphertexts {
				w.Write(ct[:])
			}
		}
		w.Write(tx.JoinSplitPubKey[:])
	})
}

func saplingDigest(b *transaction.SaplingBundle) [32]byte {
	if b.Empty() {
		return digest(saplingPersonalization, nil)
	}
	spends := saplingSpendsDigest(b)
	outputs := saplingOutputsDigest(b.Outputs)
	return digest(saplingPersonalization, func(w io.Writer) {
		w.Write(spends[:])
		w.Write(outputs[:])
		writeI64(w, int64(b.ValueBalance))
	})
}

func saplingSpendsDigest(b *transaction.SaplingBundle) [32]byte {
	if len(b.Spends) == 0 {
		return digest(saplingSpendsPersonalization, nil)
	}
	compact := digest(saplingSpendsCompactPersonalization, func(w io.Writer) {
		for _, s := range b.Spends {
			w.Write(s.Nullifier[:])
		}
	})
	noncompact := digest(saplingSpendsNoncompactPersonalization, func(w io.Writer) {
		for _, s := range b.Spends {
			w.Write(s.CV[:])
			w.Write(b.Anchor[:])
			w.Write(s.Rk[:])
		}
	})
	return digest(saplingSpendsPersonalization, func(w io.Writer) {
		w.Write(compact[:])
		w.Write(noncompact[:])
	})
}

func saplingOutputsDigest(outputs []transaction.OutputDescription) [32]byte {
	if len(outputs) == 0 {
		return digest(saplingOutputsPersonalization, nil)
	}
	compact := digest(saplingOutputsCompactPersonalization, func(w io.Writer) {
		for _, o := range outputs {
			w.Write(o.Cmu[:])
			w.Write(o.EphemeralKey[:])
			w.Write(o.EncCiphertext[:compactNoteSize])
		}
	})
	memos := digest(saplingOutputsMemosPersonalization, func(w io.Writer) {
		for _, o := range outputs {
			w.Write(o.EncCiphertext[compactNoteSize:memoEnd])
		}
	})
	noncompact := digest(saplingOutputsNoncompactPersonalization, func(w io.Writer) {
		for _, o := range outputs {
			w.Write(o.CV[:])
			w.Write(o.EncCiphertext[memoEnd:])
			w.Write(o.OutCiphertext[:])
		}
	})
	return digest(saplingOutputsPersonalization, func(w io.Writer) {
		w.Write(compact[:])
		w.Write(memos[:])
		w.Write(noncompact[:])
	})
}

func orchardBundleDigest(b *transaction.OrchardBundle) [32]byte {
	if b == nil {
		return OrchardDigest(nil, 0, 0, [32]byte{})
	}
	return OrchardDigest(b.Actions, b.Flags, b.ValueBalance, b.Anchor)
}

// OrchardDigest computes the Orchard branch of the digest tree from the
// effecting data of an Orchard bundle. Spend authorization signatures in
// actions are ignored, so it can be evaluated before any action is signed.
func OrchardDigest(actions []transaction.OrchardAction, flags uint8, valueBalance transaction.Amount, anchor [32]byte) [32]byte {
	if len(actions) == 0 {
		return digest(orchardPersonalization, nil)
	}
	compact := digest(orchardCompactPersonalization, func(w io.Writer) {
		for _, a := range actions {
			w.Write(a.Nullifier[:])
			w.Write(a.Cmx[:])
			w.Write(a.EphemeralKey[:])
			w.Write(a.EncCiphertext[:compactNoteSize])
		}
	})
	memos := digest(orchardMemosPersonalization, func(w io.Writer) {
		for _, a := range actions {
			w.Write(a.EncCiphertext[compactNoteSize:memoEnd])
		}
	})
	noncompact := digest(orchardNoncompactPersonalization, func(w io.Writer) {
		for _, a := range actions {
			w.Write(a.CV[:])
			w.Write(a.Rk[:])
			w.Write(a.EncCiphertext[memoEnd:])
			w.Write(a.OutCiphertext[:])
		}
	})
	return digest(orchardPersonalization, func(w io.Writer) {
		w.Write(compact[:])
		w.Write(memos[:])
		w.Write(noncompact[:])
		w.Write([]byte{flags})
		writeI64(w, int64(valueBalance))
		w.Write(anchor[:])
	})
}

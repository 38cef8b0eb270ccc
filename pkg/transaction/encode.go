package transaction

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// WriteCompactSize writes n in Bitcoin CompactSize encoding.
func WriteCompactSize(w io.Writer, n uint64) error {
	var buf [9]byte
	switch {
	case n < 0xFD:
		buf[0] = byte(n)
		_, err := w.Write(buf[:1])
		return err
	case n <= 0xFFFF:
		buf[0] = 0xFD
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
		_, err := w.Write(buf[:3])
		return err
	case n <= 0xFFFFFFFF:
		buf[0] = 0xFE
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf[:5])
		return err
	default:
		buf[0] = 0xFF
		binary.LittleEndian.PutUint64(buf[1:], n)
		_, err := w.Write(buf[:9])
		return err
	}
}

// encoder accumulates the first write error so the section writers can stay
// linear.
type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) bytes(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *encoder) u8(v uint8) { e.bytes([]byte{v}) }

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.bytes(b[:])
}

func (e *encoder) i64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.bytes(b[:])
}

func (e *encoder) compactSize(n int) {
	if e.err != nil {
		return
	}
	e.err = WriteCompactSize(e.w, uint64(n))
}

func (e *encoder) varBytes(b []byte) {
	e.compactSize(len(b))
	e.bytes(b)
}

// Serialize returns the wire encoding of tx.
func (tx *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the wire encoding of tx to w.
//
// Section order:
//   - header (version|overwintered, version group, branch id, lock time, expiry)
//   - transparent inputs and outputs
//   - Sprout JoinSplits, joinSplitPubKey and joinSplitSig (extension only)
//   - Sapling spends, outputs and their authorization data
//   - Orchard actions and their authorization data
//
// The version group ID must agree with the presence of JoinSplits, see
// VersionGroupFor.
func (tx *Transaction) Encode(w io.Writer) error {
	if tx.Orchard != nil && len(tx.Orchard.Proof) > MaxOrchardProofSize {
		return fmt.Errorf("orchard proof is %d bytes, maximum is %d", len(tx.Orchard.Proof), MaxOrchardProofSize)
	}
	if want := VersionGroupFor(len(tx.JoinSplits)); tx.VersionGroupID != want {
		return fmt.Errorf("version group id %#x does not match %d joinsplits, want %#x",
			tx.VersionGroupID, len(tx.JoinSplits), want)
	}

	e := &encoder{w: w}
	e.u32(tx.Version | OverwinteredFlag)
	e.u32(tx.VersionGroupID)
	e.u32(tx.ConsensusBranchID)
	e.u32(tx.LockTime)
	e.u32(tx.ExpiryHeight)

	tx.encodeTransparent(e)
	if len(tx.JoinSplits) > 0 {
		tx.encodeSprout(e)
	}
	tx.encodeSapling(e)
	tx.encodeOrchard(e)

	if e.err != nil {
		return fmt.Errorf("encoding transaction: %w", e.err)
	}
	return nil
}

func (tx *Transaction) encodeTransparent(e *encoder) {
	e.compactSize(len(tx.Inputs))
	for _, in := range tx.Inputs {
		e.bytes(in.PrevOut.TxID[:])
		e.u32(in.PrevOut.Index)
		e.varBytes(in.ScriptSig)
		e.u32(in.Sequence)
	}

	e.compactSize(len(tx.Outputs))
	for _, out := range tx.Outputs {
		e.i64(int64(out.Value))
		e.varBytes(out.ScriptPubKey)
	}
}

func (tx *Transaction) encodeSprout(e *encoder) {
	e.compactSize(len(tx.JoinSplits))
	for i := range tx.JoinSplits {
		js := &tx.JoinSplits[i]
		e.i64(int64(js.VPubOld))
		e.i64(int64(js.VPubNew))
		e.bytes(js.Anchor[:])
		for _, nf := range js.Nullifiers {
			e.bytes(nf[:])
		}
		for _, cm := range js.Commitments {
			e.bytes(cm[:])
		}
		e.bytes(js.EphemeralKey[:])
		e.bytes(js.RandomSeed[:])
		for _, mac := range js.Macs {
			e.bytes(mac[:])
		}
		e.bytes(js.Proof[:])
		for _, ct := range js.Ciphertexts {
			e.bytes(ct[:])
		}
	}
	e.bytes(tx.JoinSplitPubKey[:])
	e.bytes(tx.JoinSplitSig[:])
}

func (tx *Transaction) encodeSapling(e *encoder) {
	if tx.Sapling.Empty() {
		e.compactSize(0)
		e.compactSize(0)
		return
	}
	b := tx.Sapling

	e.compactSize(len(b.Spends))
	for _, s := range b.Spends {
		e.bytes(s.CV[:])
		e.bytes(s.Nullifier[:])
		e.bytes(s.Rk[:])
	}

	e.compactSize(len(b.Outputs))
	for _, o := range b.Outputs {
		e.bytes(o.CV[:])
		e.bytes(o.Cmu[:])
		e.bytes(o.EphemeralKey[:])
		e.bytes(o.EncCiphertext[:])
		e.bytes(o.OutCiphertext[:])
	}

	e.i64(int64(b.ValueBalance))
	if len(b.Spends) > 0 {
		e.bytes(b.Anchor[:])
	}
	for _, s := range b.Spends {
		e.bytes(s.Proof[:])
	}
	for _, s := range b.Spends {
		e.bytes(s.SpendAuthSig[:])
	}
	for _, o := range b.Outputs {
		e.bytes(o.Proof[:])
	}
	e.bytes(b.BindingSig[:])
}

func (tx *Transaction) encodeOrchard(e *encoder) {
	if tx.Orchard == nil || len(tx.Orchard.Actions) == 0 {
		e.compactSize(0)
		return
	}
	b := tx.Orchard

	e.compactSize(len(b.Actions))
	for _, a := range b.Actions {
		e.bytes(a.CV[:])
		e.bytes(a.Nullifier[:])
		e.bytes(a.Rk[:])
		e.bytes(a.Cmx[:])
		e.bytes(a.EphemeralKey[:])
		e.bytes(a.EncCiphertext[:])
		e.bytes(a.OutCiphertext[:])
	}
	e.u8(b.Flags)
	e.i64(int64(b.ValueBalance))
	e.bytes(b.Anchor[:])
	e.varBytes(b.Proof)
	for _, a := range b.Actions {
		e.bytes(a.SpendAuthSig[:])
	}
	e.bytes(b.BindingSig[:])
}

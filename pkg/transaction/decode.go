package transaction

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ReadCompactSize reads a Bitcoin CompactSize integer and rejects
// non-canonical encodings.
func ReadCompactSize(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:1]); err != nil {
		return 0, err
	}

	switch b[0] {
	case 0xFD:
		if _, err := io.ReadFull(r, b[:2]); err != nil {
			return 0, err
		}
		n := uint64(binary.LittleEndian.Uint16(b[:2]))
		if n < 0xFD {
			return 0, fmt.Errorf("non-canonical compact size %d", n)
		}
		return n, nil
	case 0xFE:
		if _, err := io.ReadFull(r, b[:4]); err != nil {
			return 0, err
		}
		n := uint64(binary.LittleEndian.Uint32(b[:4]))
		if n <= 0xFFFF {
			return 0, fmt.Errorf("non-canonical compact size %d", n)
		}
		return n, nil
	case 0xFF:
		if _, err := io.ReadFull(r, b[:8]); err != nil {
			return 0, err
		}
		n := binary.LittleEndian.Uint64(b[:8])
		if n <= 0xFFFFFFFF {
			return 0, fmt.Errorf("non-canonical compact size %d", n)
		}
		return n, nil
	default:
		return uint64(b[0]), nil
	}
}

// Parse decodes a transaction from its wire encoding. Trailing bytes are an
// error.
func Parse(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	tx, err := Decode(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after transaction", r.Len())
	}
	return tx, nil
}

// Decode reads one transaction from r.
func Decode(r io.Reader) (*Transaction, error) {
	tx := &Transaction{}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version&OverwinteredFlag == 0 {
		return nil, fmt.Errorf("not an overwintered transaction (version=%#x)", version)
	}
	tx.Version = version &^ OverwinteredFlag
	if tx.Version != V5TxVersion {
		return nil, fmt.Errorf("unsupported transaction version %d", tx.Version)
	}

	header := []*uint32{&tx.VersionGroupID, &tx.ConsensusBranchID, &tx.LockTime, &tx.ExpiryHeight}
	names := []string{"version_group_id", "consensus_branch_id", "lock_time", "expiry_height"}
	for i, field := range header {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("reading %s: %w", names[i], err)
		}
	}
	extended := tx.VersionGroupID == SproutExtensionVersionGroupID
	if tx.VersionGroupID != V5VersionGroupID && !extended {
		return nil, fmt.Errorf("unexpected version group id %#x", tx.VersionGroupID)
	}

	if err := decodeTransparent(r, tx); err != nil {
		return nil, fmt.Errorf("parsing transparent bundle: %w", err)
	}
	if extended {
		if err := decodeSprout(r, tx); err != nil {
			return nil, fmt.Errorf("parsing sprout joinsplits: %w", err)
		}
	}
	if err := decodeSapling(r, tx); err != nil {
		return nil, fmt.Errorf("parsing sapling bundle: %w", err)
	}
	if err := decodeOrchard(r, tx); err != nil {
		return nil, fmt.Errorf("parsing orchard bundle: %w", err)
	}
	return tx, nil
}

// readCount reads an element count and caps the up-front allocation so a
// hostile length prefix cannot exhaust memory.
func readCount(r io.Reader, what string) (int, int, error) {
	n, err := ReadCompactSize(r)
	if err != nil {
		return 0, 0, fmt.Errorf("reading %s count: %w", what, err)
	}
	if n > MaxOrchardProofSize {
		return 0, 0, fmt.Errorf("%s count %d too large", what, n)
	}
	capacity := int(n)
	if capacity > maxPreallocatedElements {
		capacity = maxPreallocatedElements
	}
	return int(n), capacity, nil
}

func readVarBytes(r io.Reader, what string) ([]byte, error) {
	n, err := ReadCompactSize(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s length: %w", what, err)
	}
	if n > MaxOrchardProofSize {
		return nil, fmt.Errorf("%s length %d too large", what, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("reading %s: %w", what, err)
	}
	return b, nil
}

// readFields fills each destination slice in order.
func readFields(r io.Reader, what string, fields ...[]byte) error {
	for _, f := range fields {
		if _, err := io.ReadFull(r, f); err != nil {
			return fmt.Errorf("reading %s: %w", what, err)
		}
	}
	return nil
}

func readAmount(r io.Reader, what string) (Amount, error) {
	var v int64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("reading %s: %w", what, err)
	}
	return Amount(v), nil
}

func decodeTransparent(r io.Reader, tx *Transaction) error {
	n, capacity, err := readCount(r, "input")
	if err != nil {
		return err
	}
	tx.Inputs = make([]TxIn, 0, capacity)
	for i := 0; i < n; i++ {
		var in TxIn
		if err := readFields(r, "prevout txid", in.PrevOut.TxID[:]); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &in.PrevOut.Index); err != nil {
			return fmt.Errorf("input %d: reading prevout index: %w", i, err)
		}
		if in.ScriptSig, err = readVarBytes(r, "scriptSig"); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &in.Sequence); err != nil {
			return fmt.Errorf("input %d: reading sequence: %w", i, err)
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	n, capacity, err = readCount(r, "output")
	if err != nil {
		return err
	}
	tx.Outputs = make([]TxOut, 0, capacity)
	for i := 0; i < n; i++ {
		var out TxOut
		if out.Value, err = readAmount(r, "value"); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		if out.ScriptPubKey, err = readVarBytes(r, "scriptPubKey"); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		tx.Outputs = append(tx.Outputs, out)
	}
	return nil
}

func decodeSprout(r io.Reader, tx *Transaction) error {
	n, capacity, err := readCount(r, "joinsplit")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sprout extension without joinsplits")
	}
	tx.JoinSplits = make([]JSDescription, 0, capacity)
	for i := 0; i < n; i++ {
		var js JSDescription
		if js.VPubOld, err = readAmount(r, "vpub_old"); err != nil {
			return fmt.Errorf("joinsplit %d: %w", i, err)
		}
		if js.VPubNew, err = readAmount(r, "vpub_new"); err != nil {
			return fmt.Errorf("joinsplit %d: %w", i, err)
		}
		err = readFields(r, "joinsplit body",
			js.Anchor[:],
			js.Nullifiers[0][:], js.Nullifiers[1][:],
			js.Commitments[0][:], js.Commitments[1][:],
			js.EphemeralKey[:], js.RandomSeed[:],
			js.Macs[0][:], js.Macs[1][:],
			js.Proof[:],
			js.Ciphertexts[0][:], js.Ciphertexts[1][:],
		)
		if err != nil {
			return fmt.Errorf("joinsplit %d: %w", i, err)
		}
		tx.JoinSplits = append(tx.JoinSplits, js)
	}
	return readFields(r, "joinsplit signature", tx.JoinSplitPubKey[:], tx.JoinSplitSig[:])
}

func decodeSapling(r io.Reader, tx *Transaction) error {
	b := &SaplingBundle{}

	nSpends, capacity, err := readCount(r, "spend")
	if err != nil {
		return err
	}
	b.Spends = make([]SpendDescription, 0, capacity)
	for i := 0; i < nSpends; i++ {
		var s SpendDescription
		if err := readFields(r, "spend", s.CV[:], s.Nullifier[:], s.Rk[:]); err != nil {
			return fmt.Errorf("spend %d: %w", i, err)
		}
		b.Spends = append(b.Spends, s)
	}

	nOutputs, capacity, err := readCount(r, "output")
	if err != nil {
		return err
	}
	b.Outputs = make([]OutputDescription, 0, capacity)
	for i := 0; i < nOutputs; i++ {
		var o OutputDescription
		err := readFields(r, "output", o.CV[:], o.Cmu[:], o.EphemeralKey[:], o.EncCiphertext[:], o.OutCiphertext[:])
		if err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		b.Outputs = append(b.Outputs, o)
	}

	if nSpends == 0 && nOutputs == 0 {
		return nil
	}

	if b.ValueBalance, err = readAmount(r, "value balance"); err != nil {
		return err
	}
	if nSpends > 0 {
		if err := readFields(r, "anchor", b.Anchor[:]); err != nil {
			return err
		}
	}
	for i := range b.Spends {
		if err := readFields(r, "spend proof", b.Spends[i].Proof[:]); err != nil {
			return err
		}
	}
	for i := range b.Spends {
		if err := readFields(r, "spend auth sig", b.Spends[i].SpendAuthSig[:]); err != nil {
			return err
		}
	}
	for i := range b.Outputs {
		if err := readFields(r, "output proof", b.Outputs[i].Proof[:]); err != nil {
			return err
		}
	}
	if err := readFields(r, "binding sig", b.BindingSig[:]); err != nil {
		return err
	}

	tx.Sapling = b
	return nil
}

func decodeOrchard(r io.Reader, tx *Transaction) error {
	n, capacity, err := readCount(r, "action")
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	b := &OrchardBundle{Actions: make([]OrchardAction, 0, capacity)}
	for i := 0; i < n; i++ {
		var a OrchardAction
		err := readFields(r, "action",
			a.CV[:], a.Nullifier[:], a.Rk[:], a.Cmx[:],
			a.EphemeralKey[:], a.EncCiphertext[:], a.OutCiphertext[:],
		)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		b.Actions = append(b.Actions, a)
	}

	var flags [1]byte
	if err := readFields(r, "flags", flags[:]); err != nil {
		return err
	}
	b.Flags = flags[0]
	if b.ValueBalance, err = readAmount(r, "value balance"); err != nil {
		return err
	}
	if err := readFields(r, "anchor", b.Anchor[:]); err != nil {
		return err
	}
	if b.Proof, err = readVarBytes(r, "proof"); err != nil {
		return err
	}
	for i := range b.Actions {
		if err := readFields(r, "spend auth sig", b.Actions[i].SpendAuthSig[:]); err != nil {
			return err
		}
	}
	if err := readFields(r, "binding sig", b.BindingSig[:]); err != nil {
		return err
	}

	tx.Orchard = b
	return nil
}

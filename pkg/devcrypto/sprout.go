package devcrypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/suffix-labs/zcash-txbuilder/pkg/sprout"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// Address implements sprout.Prover.
func (e *Engine) Address(sk sprout.SpendingKey) (sprout.PaymentAddress, error) {
	return sprout.PaymentAddress{
		APk:   h32("ZcDevSproutAPk__", sk[:]),
		PkEnc: h32("ZcDevSproutPkEnc", sk[:]),
	}, nil
}

func sproutHSig(randomSeed [32]byte, nullifiers [sprout.NumJSInputs][32]byte, pubKey [32]byte) [32]byte {
	return h32("ZcDevSproutHSig_", randomSeed[:], nullifiers[0][:], nullifiers[1][:], pubKey[:])
}

func sproutCommitment(n sprout.Note) [32]byte {
	return h32("ZcDevSproutCm___", n.APk[:], u64(n.Value), n.Rho[:], n.R[:])
}

func sproutNoteKey(epk, pkEnc, hSig [32]byte, i int) [32]byte {
	return h32("ZcDevSproutKey__", epk[:], pkEnc[:], hSig[:], u64(uint64(i)))
}

// JoinSplit implements sprout.Prover.
func (e *Engine) JoinSplit(info *sprout.JSDescriptionInfo, computeProof bool) (transaction.JSDescription, [32]byte, error) {
	js := transaction.JSDescription{
		VPubOld: info.VPubOld,
		VPubNew: info.VPubNew,
		Anchor:  info.Anchor,
	}

	for i, in := range info.Inputs {
		addr, _ := e.Address(in.Key)
		if addr.APk != in.Note.APk {
			return js, [32]byte{}, fmt.Errorf("devcrypto: input %d is not spendable by its key", i)
		}
		js.Nullifiers[i] = h32("ZcDevSproutNf___", in.Key[:], in.Note.Rho[:])
	}

	if _, err := io.ReadFull(e.rand, js.RandomSeed[:]); err != nil {
		return js, [32]byte{}, err
	}
	var esk [32]byte
	if _, err := io.ReadFull(e.rand, esk[:]); err != nil {
		return js, [32]byte{}, err
	}
	js.EphemeralKey = h32("ZcDevSproutEpk__", esk[:])
	hSig := sproutHSig(js.RandomSeed, js.Nullifiers, info.JoinSplitPubKey)

	for i, in := range info.Inputs {
		js.Macs[i] = h32("ZcDevSproutMac__", in.Key[:], hSig[:], u64(uint64(i)))
	}

	for i, out := range info.Outputs {
		n := sprout.Note{APk: out.Addr.APk, Value: out.Value}
		n.Rho = h32("ZcDevSproutRho__", hSig[:], u64(uint64(i)))
		if _, err := io.ReadFull(e.rand, n.R[:]); err != nil {
			return js, [32]byte{}, err
		}
		js.Commitments[i] = sproutCommitment(n)

		var pt bytes.Buffer
		pt.WriteByte(0x00)
		binary.Write(&pt, binary.LittleEndian, n.Value)
		pt.Write(n.Rho[:])
		pt.Write(n.R[:])
		pt.Write(out.Memo[:])
		key := sproutNoteKey(js.EphemeralKey, out.Addr.PkEnc, hSig, i)
		copy(js.Ciphertexts[i][:], seal("ZcDevSproutEnc__", key, pt.Bytes()))
	}

	if computeProof {
		copy(js.Proof[:], expand("ZcDevSproutPrf__", transaction.GrothProofSize,
			info.Anchor[:], u64(uint64(info.VPubOld)), u64(uint64(info.VPubNew)),
			js.Nullifiers[0][:], js.Nullifiers[1][:],
			js.Commitments[0][:], js.Commitments[1][:],
			js.Macs[0][:], js.Macs[1][:], hSig[:]))
	}
	return js, esk, nil
}

// DecryptSproutOutput recovers output i of js for the holder of sk.
// pubKey is the transaction's JoinSplit public key.
func (e *Engine) DecryptSproutOutput(js *transaction.JSDescription, pubKey [32]byte, i int, sk sprout.SpendingKey) (sprout.Note, transaction.Memo, error) {
	addr, _ := e.Address(sk)
	hSig := sproutHSig(js.RandomSeed, js.Nullifiers, pubKey)
	key := sproutNoteKey(js.EphemeralKey, addr.PkEnc, hSig, i)
	pt, err := open("ZcDevSproutEnc__", key, js.Ciphertexts[i][:])
	if err != nil {
		return sprout.Note{}, transaction.Memo{}, err
	}

	n := sprout.Note{APk: addr.APk, Value: binary.LittleEndian.Uint64(pt[1:9])}
	copy(n.Rho[:], pt[9:41])
	copy(n.R[:], pt[41:73])
	var memo transaction.Memo
	copy(memo[:], pt[73:])
	if sproutCommitment(n) != js.Commitments[i] {
		return sprout.Note{}, transaction.Memo{}, fmt.Errorf("devcrypto: commitment mismatch")
	}
	return n, memo, nil
}

// VerifyJoinSplit checks a JoinSplit's proof against its public data.
func (e *Engine) VerifyJoinSplit(js *transaction.JSDescription, pubKey [32]byte) error {
	hSig := sproutHSig(js.RandomSeed, js.Nullifiers, pubKey)
	want := expand("ZcDevSproutPrf__", transaction.GrothProofSize,
		js.Anchor[:], u64(uint64(js.VPubOld)), u64(uint64(js.VPubNew)),
		js.Nullifiers[0][:], js.Nullifiers[1][:],
		js.Commitments[0][:], js.Commitments[1][:],
		js.Macs[0][:], js.Macs[1][:], hSig[:])
	if !bytes.Equal(want, js.Proof[:]) {
		return fmt.Errorf("devcrypto: invalid joinsplit proof")
	}
	return nil
}

package devcrypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/suffix-labs/zcash-txbuilder/pkg/orchard"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// Orchard proofs grow with the number of actions.
const (
	orchardProofBase      = 2720
	orchardProofPerAction = 2272
)

// OrchardProofSize returns the proof length for n actions.
func OrchardProofSize(n int) int {
	return orchardProofBase + orchardProofPerAction*n
}

// FullViewingKey implements orchard.Backend.
func (o *Orchard) FullViewingKey(sk orchard.SpendingKey) (orchard.FullViewingKey, error) {
	var fvk orchard.FullViewingKey
	copy(fvk[:], expand("ZcDevOrchardFvk_", len(fvk), sk[:]))
	return fvk, nil
}

// DefaultAddress implements orchard.Backend.
func (o *Orchard) DefaultAddress(fvk orchard.FullViewingKey) (orchard.Address, error) {
	var addr orchard.Address
	copy(addr[:11], expand("ZcDevOrchardDiv_", 11, fvk[:]))
	pkd := h32("ZcDevOrchardPkd_", fvk[:], addr[:11])
	copy(addr[11:], pkd[:])
	return addr, nil
}

// OutgoingViewingKey implements orchard.Backend.
func (o *Orchard) OutgoingViewingKey(fvk orchard.FullViewingKey) ([32]byte, error) {
	return h32("ZcDevOrchardOvk_", fvk[:]), nil
}

// Key derives a spending key and its default address from a seed.
func (o *Orchard) Key(seed [32]byte) (orchard.SpendingKey, orchard.Address) {
	sk := orchard.SpendingKey(h32("ZcDevOrchardSk__", seed[:]))
	fvk, _ := o.FullViewingKey(sk)
	addr, _ := o.DefaultAddress(fvk)
	return sk, addr
}

// RandomScalar implements orchard.Backend.
func (o *Orchard) RandomScalar(r io.Reader) ([32]byte, error) {
	return randomScalar(r)
}

func orchardCmx(n orchard.Note) [32]byte {
	return h32("ZcDevOrchardCmx_", n.Recipient[:], u64(n.Value), n.Rho[:], n.Rseed[:])
}

// Nullifier implements orchard.Backend.
func (o *Orchard) Nullifier(fvk orchard.FullViewingKey, n orchard.Note) ([32]byte, error) {
	cmx := orchardCmx(n)
	return h32("ZcDevOrchardNf__", fvk[32:64], n.Rho[:], n.Rseed[:], cmx[:]), nil
}

// RandomizedKey implements orchard.Backend.
func (o *Orchard) RandomizedKey(fvk orchard.FullViewingKey, alpha [32]byte) ([32]byte, error) {
	return h32("ZcDevOrchardRk__", fvk[:32], alpha[:]), nil
}

// ValueCommitment implements orchard.Backend.
func (o *Orchard) ValueCommitment(value int64, rcv [32]byte) ([32]byte, error) {
	return commit(value, rcv), nil
}

// BindingKey implements orchard.Backend.
func (o *Orchard) BindingKey(rcvs [][32]byte) ([32]byte, error) {
	sum := new(big.Int)
	for _, rcv := range rcvs {
		sum.Add(sum, toInt(rcv))
	}
	return fromInt(sum), nil
}

func orchardNoteKey(epk [32]byte, addr orchard.Address) [32]byte {
	return h32("ZcDevOrchardKey_", epk[:], addr[11:])
}

func orchardOutKey(ovk, cv, cmx, epk [32]byte) [32]byte {
	return h32("ZcDevOrchardOck_", ovk[:], cv[:], cmx[:], epk[:])
}

// EncryptNote implements orchard.Backend.
func (o *Orchard) EncryptNote(ovk *[32]byte, n orchard.Note, memo transaction.Memo, cv [32]byte, r io.Reader) (orchard.EncryptedNote, error) {
	var enc orchard.EncryptedNote
	enc.Cmx = orchardCmx(n)

	esk, err := randomScalar(r)
	if err != nil {
		return enc, err
	}
	enc.EphemeralKey = h32("ZcDevOrchardEpk_", esk[:], n.Recipient[:11])

	var pt bytes.Buffer
	pt.WriteByte(0x02)
	pt.Write(n.Recipient[:11])
	binary.Write(&pt, binary.LittleEndian, n.Value)
	pt.Write(n.Rseed[:])
	pt.Write(memo[:])
	copy(enc.EncCiphertext[:], seal("ZcDevOrchardEnc_", orchardNoteKey(enc.EphemeralKey, n.Recipient), pt.Bytes()))

	if ovk == nil {
		if _, err := io.ReadFull(r, enc.OutCiphertext[:]); err != nil {
			return enc, err
		}
		return enc, nil
	}
	key := orchardOutKey(*ovk, cv, enc.Cmx, enc.EphemeralKey)
	copy(enc.OutCiphertext[:], seal("ZcDevOrchardOut_", key, append(n.Recipient[11:], esk[:]...)))
	return enc, nil
}

// proofTranscript binds a proof to the public half of each action.
func proofTranscript(anchor [32]byte, n int, action func(i int) (cv, nf, rk, cmx [32]byte)) []byte {
	parts := [][]byte{anchor[:]}
	for i := 0; i < n; i++ {
		cv, nf, rk, cmx := action(i)
		parts = append(parts, cv[:], nf[:], rk[:], cmx[:])
	}
	return expand("ZcDevOrchardPrf_", OrchardProofSize(n), parts...)
}

// Prove implements orchard.Backend.
func (o *Orchard) Prove(anchor [32]byte, witnesses []orchard.ActionWitness) ([]byte, error) {
	for i, w := range witnesses {
		if w.OutputNote.Rho != o.mustNullifier(w.Fvk, w.SpendNote) {
			return nil, fmt.Errorf("devcrypto: action %d: output rho is not the spent nullifier", i)
		}
	}
	return proofTranscript(anchor, len(witnesses), func(i int) (cv, nf, rk, cmx [32]byte) {
		w := &witnesses[i]
		cv = commit(int64(w.SpendNote.Value)-int64(w.OutputNote.Value), w.Rcv)
		nf = o.mustNullifier(w.Fvk, w.SpendNote)
		rk, _ = o.RandomizedKey(w.Fvk, w.Alpha)
		cmx = orchardCmx(w.OutputNote)
		return
	}), nil
}

func (o *Orchard) mustNullifier(fvk orchard.FullViewingKey, n orchard.Note) [32]byte {
	nf, _ := o.Nullifier(fvk, n)
	return nf
}

// SignSpendAuth implements orchard.Backend.
func (o *Orchard) SignSpendAuth(sk orchard.SpendingKey, alpha, sighash [32]byte) ([transaction.SignatureSize]byte, error) {
	fvk, _ := o.FullViewingKey(sk)
	rk, _ := o.RandomizedKey(fvk, alpha)
	return spendAuthSig(rk, sighash), nil
}

// SignBinding implements orchard.Backend.
func (o *Orchard) SignBinding(bsk, sighash [32]byte) ([transaction.SignatureSize]byte, error) {
	return bindingSig(bindingKeyFor(bsk), sighash), nil
}

// DecryptAction recovers the note created by a for addr.
func (o *Orchard) DecryptAction(a *transaction.OrchardAction, addr orchard.Address) (orchard.Note, transaction.Memo, error) {
	pt, err := open("ZcDevOrchardEnc_", orchardNoteKey(a.EphemeralKey, addr), a.EncCiphertext[:])
	if err != nil {
		return orchard.Note{}, transaction.Memo{}, err
	}
	if !bytes.Equal(pt[1:12], addr[:11]) {
		return orchard.Note{}, transaction.Memo{}, fmt.Errorf("devcrypto: diversifier mismatch")
	}
	n := orchard.Note{Recipient: addr, Rho: a.Nullifier}
	n.Value = binary.LittleEndian.Uint64(pt[12:20])
	copy(n.Rseed[:], pt[20:52])
	var memo transaction.Memo
	copy(memo[:], pt[52:])

	if orchardCmx(n) != a.Cmx {
		return orchard.Note{}, transaction.Memo{}, fmt.Errorf("devcrypto: commitment mismatch")
	}
	return n, memo, nil
}

// RecoverAction decrypts the outgoing ciphertext of a with ovk and returns
// the recipient's pk_d.
func (o *Orchard) RecoverAction(a *transaction.OrchardAction, ovk [32]byte) ([32]byte, error) {
	pt, err := open("ZcDevOrchardOut_", orchardOutKey(ovk, a.CV, a.Cmx, a.EphemeralKey), a.OutCiphertext[:])
	if err != nil {
		return [32]byte{}, err
	}
	var pkd [32]byte
	copy(pkd[:], pt[:32])
	return pkd, nil
}

// VerifyBundle checks the proof, every spend authorization signature and
// the binding signature of b against sighash.
func (o *Orchard) VerifyBundle(b *transaction.OrchardBundle, sighash [32]byte) error {
	want := proofTranscript(b.Anchor, len(b.Actions), func(i int) (cv, nf, rk, cmx [32]byte) {
		a := &b.Actions[i]
		return a.CV, a.Nullifier, a.Rk, a.Cmx
	})
	if !bytes.Equal(want, b.Proof) {
		return fmt.Errorf("devcrypto: invalid orchard proof")
	}

	cvs := make([][32]byte, 0, len(b.Actions))
	for i := range b.Actions {
		a := &b.Actions[i]
		if spendAuthSig(a.Rk, sighash) != a.SpendAuthSig {
			return fmt.Errorf("devcrypto: action %d: bad authorization signature", i)
		}
		cvs = append(cvs, a.CV)
	}
	bvk := bindingKeyFromCommitments(cvs, nil, int64(b.ValueBalance))
	if bindingSig(bvk, sighash) != b.BindingSig {
		return fmt.Errorf("devcrypto: bad orchard binding signature")
	}
	return nil
}

package devcrypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/suffix-labs/zcash-txbuilder/pkg/sapling"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// Key derives an expanded spending key and its default address from
// a seed.
func (s *Sapling) Key(seed [32]byte) (sapling.ExpandedSpendingKey, sapling.PaymentAddress) {
	expsk := sapling.ExpandedSpendingKey{
		Ask: h32("ZcDevSaplingAsk_", seed[:]),
		Nsk: h32("ZcDevSaplingNsk_", seed[:]),
		Ovk: h32("ZcDevSaplingOvk_", seed[:]),
	}
	var addr sapling.PaymentAddress
	copy(addr.Diversifier[:], expand("ZcDevSaplingDiv_", 11, seed[:]))
	addr.PkD = h32("ZcDevSaplingPkd_", seed[:])
	return expsk, addr
}

// RandomScalar implements sapling.Backend.
func (s *Sapling) RandomScalar(r io.Reader) ([32]byte, error) {
	return randomScalar(r)
}

// NoteCommitment implements sapling.Backend.
func (s *Sapling) NoteCommitment(n sapling.Note) ([32]byte, error) {
	return h32("ZcDevSaplingCm__", n.Diversifier[:], n.PkD[:], u64(n.Value), n.Rcm[:]), nil
}

// Nullifier implements sapling.Backend.
func (s *Sapling) Nullifier(expsk sapling.ExpandedSpendingKey, n sapling.Note, position uint64) ([32]byte, error) {
	cm, _ := s.NoteCommitment(n)
	nk := h32("ZcDevSaplingNk__", expsk.Nsk[:])
	return h32("ZcDevSaplingNf__", nk[:], cm[:], u64(position)), nil
}

func saplingNoteKey(epk, pkD [32]byte) [32]byte {
	return h32("ZcDevSaplingKey_", epk[:], pkD[:])
}

// EncryptNote implements sapling.Backend.
func (s *Sapling) EncryptNote(n sapling.Note, memo transaction.Memo, r io.Reader) (enc [transaction.NoteEncCiphertextSize]byte, epk, esk [32]byte, err error) {
	esk, err = randomScalar(r)
	if err != nil {
		return enc, epk, esk, err
	}
	epk = h32("ZcDevSaplingEpk_", esk[:], n.Diversifier[:])

	var pt bytes.Buffer
	pt.WriteByte(0x02)
	pt.Write(n.Diversifier[:])
	binary.Write(&pt, binary.LittleEndian, n.Value)
	pt.Write(n.Rcm[:])
	pt.Write(memo[:])
	copy(enc[:], seal("ZcDevSaplingEnc_", saplingNoteKey(epk, n.PkD), pt.Bytes()))
	return enc, epk, esk, nil
}

// EncryptOutgoing implements sapling.Backend.
func (s *Sapling) EncryptOutgoing(ovk, pkD, esk, cv, cmu, epk [32]byte) ([transaction.NoteOutCiphertextSize]byte, error) {
	var out [transaction.NoteOutCiphertextSize]byte
	key := h32("ZcDevSaplingOck_", ovk[:], cv[:], cmu[:], epk[:])
	copy(out[:], seal("ZcDevSaplingOut_", key, append(pkD[:], esk[:]...)))
	return out, nil
}

func saplingRk(ask, alpha [32]byte) [32]byte {
	ak := h32("ZcDevSaplingAk__", ask[:])
	return h32("ZcDevSaplingRk__", ak[:], alpha[:])
}

// SpendSig implements sapling.Backend.
func (s *Sapling) SpendSig(ask, alpha, sighash [32]byte) ([transaction.SignatureSize]byte, error) {
	return spendAuthSig(saplingRk(ask, alpha), sighash), nil
}

// NewProvingContext implements sapling.Backend.
func (s *Sapling) NewProvingContext() sapling.ProvingContext {
	return &saplingContext{rand: s.rand, bsk: new(big.Int)}
}

type saplingContext struct {
	rand     io.Reader
	bsk      *big.Int
	balance  int64
	released bool
}

func (c *saplingContext) check() error {
	if c.released {
		return fmt.Errorf("devcrypto: proving context already released")
	}
	return nil
}

func (c *saplingContext) SpendProof(expsk sapling.ExpandedSpendingKey, n sapling.Note, alpha, anchor [32]byte, path sapling.MerklePath) (cv, rk [32]byte, proof [transaction.GrothProofSize]byte, err error) {
	if err = c.check(); err != nil {
		return
	}
	rcv, err := randomScalar(c.rand)
	if err != nil {
		return
	}
	cv = commit(int64(n.Value), rcv)
	rk = saplingRk(expsk.Ask, alpha)
	cm := h32("ZcDevSaplingCm__", n.Diversifier[:], n.PkD[:], u64(n.Value), n.Rcm[:])
	copy(proof[:], expand("ZcDevSaplingSPrf", transaction.GrothProofSize, cv[:], rk[:], anchor[:], cm[:], u64(path.Position)))

	c.bsk.Add(c.bsk, toInt(rcv))
	c.balance += int64(n.Value)
	return cv, rk, proof, nil
}

func (c *saplingContext) OutputProof(esk [32]byte, to sapling.PaymentAddress, rcm [32]byte, value uint64) (cv [32]byte, proof [transaction.GrothProofSize]byte, err error) {
	if err = c.check(); err != nil {
		return
	}
	rcv, err := randomScalar(c.rand)
	if err != nil {
		return
	}
	cv = commit(int64(value), rcv)
	copy(proof[:], expand("ZcDevSaplingOPrf", transaction.GrothProofSize, cv[:], esk[:], to.PkD[:], rcm[:], u64(value)))

	c.bsk.Sub(c.bsk, toInt(rcv))
	c.balance -= int64(value)
	return cv, proof, nil
}

func (c *saplingContext) BindingSig(valueBalance transaction.Amount, sighash [32]byte) ([transaction.SignatureSize]byte, error) {
	if err := c.check(); err != nil {
		return [64]byte{}, err
	}
	if int64(valueBalance) != c.balance {
		return [64]byte{}, fmt.Errorf("devcrypto: value balance %d does not match proven %d", valueBalance, c.balance)
	}
	return bindingSig(bindingKeyFor(fromInt(c.bsk)), sighash), nil
}

func (c *saplingContext) Release() {
	c.bsk.SetInt64(0)
	c.released = true
}

// DecryptOutput recovers the note in out for addr.
func (s *Sapling) DecryptOutput(out *transaction.OutputDescription, addr sapling.PaymentAddress) (sapling.Note, transaction.Memo, error) {
	pt, err := open("ZcDevSaplingEnc_", saplingNoteKey(out.EphemeralKey, addr.PkD), out.EncCiphertext[:])
	if err != nil {
		return sapling.Note{}, transaction.Memo{}, err
	}
	n := sapling.Note{PkD: addr.PkD}
	copy(n.Diversifier[:], pt[1:12])
	n.Value = binary.LittleEndian.Uint64(pt[12:20])
	copy(n.Rcm[:], pt[20:52])
	var memo transaction.Memo
	copy(memo[:], pt[52:])

	if cm, _ := s.NoteCommitment(n); cm != out.Cmu {
		return sapling.Note{}, transaction.Memo{}, fmt.Errorf("devcrypto: commitment mismatch")
	}
	return n, memo, nil
}

// RecoverOutput decrypts the outgoing ciphertext of out with ovk and
// returns the recipient's pk_d.
func (s *Sapling) RecoverOutput(out *transaction.OutputDescription, ovk [32]byte) ([32]byte, error) {
	key := h32("ZcDevSaplingOck_", ovk[:], out.CV[:], out.Cmu[:], out.EphemeralKey[:])
	pt, err := open("ZcDevSaplingOut_", key, out.OutCiphertext[:])
	if err != nil {
		return [32]byte{}, err
	}
	var pkD [32]byte
	copy(pkD[:], pt[:32])
	return pkD, nil
}

// VerifyBundle checks every spend authorization signature and the
// binding signature of b against sighash.
func (s *Sapling) VerifyBundle(b *transaction.SaplingBundle, sighash [32]byte) error {
	var spends, outputs [][32]byte
	for i := range b.Spends {
		sp := &b.Spends[i]
		if spendAuthSig(sp.Rk, sighash) != sp.SpendAuthSig {
			return fmt.Errorf("devcrypto: spend %d: bad authorization signature", i)
		}
		spends = append(spends, sp.CV)
	}
	for i := range b.Outputs {
		outputs = append(outputs, b.Outputs[i].CV)
	}
	bvk := bindingKeyFromCommitments(spends, outputs, int64(b.ValueBalance))
	if bindingSig(bvk, sighash) != b.BindingSig {
		return fmt.Errorf("devcrypto: bad sapling binding signature")
	}
	return nil
}

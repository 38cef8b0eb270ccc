// Package script builds the transparent scripts the builder emits and
// encodes transparent addresses.
//
// Only the standard templates are supported:
//
//	P2PKH: OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG
//	P2SH:  OP_HASH160 <20-byte hash> OP_EQUAL
package script

import "bytes"

// Opcodes used by the standard templates.
const (
	OpPushData1   byte = 0x4C
	OpPushData2   byte = 0x4D
	OpDup         byte = 0x76
	OpEqual       byte = 0x87
	OpEqualVerify byte = 0x88
	OpHash160     byte = 0xA9
	OpCheckSig    byte = 0xAC
)

// PayToPubKeyHash returns the P2PKH locking script for hash.
func PayToPubKeyHash(hash [20]byte) []byte {
	s := make([]byte, 0, 25)
	s = append(s, OpDup, OpHash160, 20)
	s = append(s, hash[:]...)
	return append(s, OpEqualVerify, OpCheckSig)
}

// PayToScriptHash returns the P2SH locking script for hash.
func PayToScriptHash(hash [20]byte) []byte {
	s := make([]byte, 0, 23)
	s = append(s, OpHash160, 20)
	s = append(s, hash[:]...)
	return append(s, OpEqual)
}

// ExtractPubKeyHash returns the key hash of a P2PKH script.
func ExtractPubKeyHash(script []byte) ([20]byte, bool) {
	var hash [20]byte
	if len(script) != 25 ||
		script[0] != OpDup || script[1] != OpHash160 || script[2] != 20 ||
		script[23] != OpEqualVerify || script[24] != OpCheckSig {
		return hash, false
	}
	copy(hash[:], script[3:23])
	return hash, true
}

// ExtractScriptHash returns the script hash of a P2SH script.
func ExtractScriptHash(script []byte) ([20]byte, bool) {
	var hash [20]byte
	if len(script) != 23 || script[0] != OpHash160 || script[1] != 20 || script[22] != OpEqual {
		return hash, false
	}
	copy(hash[:], script[2:22])
	return hash, true
}

// pushData writes the minimal push of data.
func pushData(buf *bytes.Buffer, data []byte) {
	switch n := len(data); {
	case n <= 75:
		buf.WriteByte(byte(n))
	case n <= 0xFF:
		buf.WriteByte(OpPushData1)
		buf.WriteByte(byte(n))
	default:
		buf.WriteByte(OpPushData2)
		buf.WriteByte(byte(n))
		buf.WriteByte(byte(n >> 8))
	}
	buf.Write(data)
}

// SignatureScript returns the P2PKH unlocking script <sig||hashType> <pubkey>.
func SignatureScript(derSig []byte, hashType byte, pubKey []byte) []byte {
	var buf bytes.Buffer
	pushData(&buf, append(append([]byte{}, derSig...), hashType))
	pushData(&buf, pubKey)
	return buf.Bytes()
}

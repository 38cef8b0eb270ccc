package transaction

import (
	"encoding/hex"
	"fmt"
)

// Amount is a quantity of zatoshi. It is signed so that value balances and
// intermediate sums can go negative.
type Amount int64

const (
	// Coin is the number of zatoshi in one ZEC.
	Coin Amount = 100000000

	// MaxMoney is the total supply cap; no single amount may exceed it.
	MaxMoney Amount = 21000000 * Coin
)

// MoneyRange reports whether a is a valid non-negative output amount.
func MoneyRange(a Amount) bool {
	return a >= 0 && a <= MaxMoney
}

// BalanceRange reports whether a is a valid signed value balance.
func BalanceRange(a Amount) bool {
	return a >= -MaxMoney && a <= MaxMoney
}

func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%08d ZEC", sign, v/int64(Coin), v%int64(Coin))
}

// MemoSize is the fixed size of a shielded memo field.
const MemoSize = 512

// Memo is the 512-byte memo carried inside every shielded note.
type Memo [MemoSize]byte

// NoMemo returns the canonical "no memo" value: 0xF6 followed by zeros.
func NoMemo() Memo {
	var m Memo
	m[0] = 0xF6
	return m
}

// MemoFromBytes copies b into a memo, padding with zeros. It fails when b is
// longer than MemoSize.
func MemoFromBytes(b []byte) (Memo, error) {
	var m Memo
	if len(b) > MemoSize {
		return m, fmt.Errorf("memo is %d bytes, maximum is %d", len(b), MemoSize)
	}
	copy(m[:], b)
	return m, nil
}

// MemoFromHex decodes a hex memo as accepted by the RPC layer.
func MemoFromHex(s string) (Memo, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Memo{}, fmt.Errorf("memo must be hex: %w", err)
	}
	return MemoFromBytes(b)
}

// IsEmpty reports whether m is the "no memo" value.
func (m Memo) IsEmpty() bool {
	return m == NoMemo()
}

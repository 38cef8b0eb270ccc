package script

import (
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"

	"github.com/suffix-labs/zcash-txbuilder/pkg/params"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// AddressKind distinguishes the two transparent address types.
type AddressKind uint8

const (
	PubKeyHash AddressKind = iota
	ScriptHash
)

// Address is a transparent destination.
type Address struct {
	Kind AddressKind
	Hash [20]byte
}

// Pool implements transaction.Recipient.
func (Address) Pool() transaction.Pool { return transaction.PoolTransparent }

// Script returns the locking script paying to a.
func (a Address) Script() []byte {
	if a.Kind == ScriptHash {
		return PayToScriptHash(a.Hash)
	}
	return PayToPubKeyHash(a.Hash)
}

// Encode returns the Base58Check form of a for net.
//
// Zcash prefixes are two bytes. base58.CheckEncode takes a one-byte
// version, so the second prefix byte travels at the front of the payload.
func (a Address) Encode(net *params.Network) string {
	prefix := params.PrefixBytes(net.PubKeyHashPrefix)
	if a.Kind == ScriptHash {
		prefix = params.PrefixBytes(net.ScriptHashPrefix)
	}
	payload := append([]byte{prefix[1]}, a.Hash[:]...)
	return base58.CheckEncode(payload, prefix[0])
}

// DecodeAddress parses a Base58Check transparent address for net.
func DecodeAddress(s string, net *params.Network) (Address, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, errors.Wrapf(err, "decoding address %q", s)
	}
	if len(payload) != 21 {
		return Address{}, fmt.Errorf("address %q has %d payload bytes, want 21", s, len(payload))
	}

	prefix := [2]byte{version, payload[0]}
	var a Address
	switch prefix {
	case params.PrefixBytes(net.PubKeyHashPrefix):
		a.Kind = PubKeyHash
	case params.PrefixBytes(net.ScriptHashPrefix):
		a.Kind = ScriptHash
	default:
		return Address{}, fmt.Errorf("address %q is not a %s transparent address", s, net.Name)
	}
	copy(a.Hash[:], payload[1:])
	return a, nil
}

// AddressFromScript recovers the address a standard locking script pays to.
func AddressFromScript(script []byte) (Address, bool) {
	if h, ok := ExtractPubKeyHash(script); ok {
		return Address{Kind: PubKeyHash, Hash: h}, true
	}
	if h, ok := ExtractScriptHash(script); ok {
		return Address{Kind: ScriptHash, Hash: h}, true
	}
	return Address{}, false
}

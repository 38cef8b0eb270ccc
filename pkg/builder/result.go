package builder

import (
	"github.com/suffix-labs/zcash-txbuilder/pkg/sprout"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// Result is the outcome of Build: a finished transaction or an error,
// never both. Check IsTx or IsError before calling an accessor; asking a
// Result for the variant it does not hold panics.
type Result struct {
	tx       *transaction.Transaction
	mappings []sprout.SlotMap
	err      error
}

func txResult(tx *transaction.Transaction, mappings []sprout.SlotMap) Result {
	return Result{tx: tx, mappings: mappings}
}

func errorResult(err error) Result {
	return Result{err: err}
}

// IsTx reports whether the build succeeded.
func (r Result) IsTx() bool { return r.tx != nil }

// IsError reports whether the build failed.
func (r Result) IsError() bool { return r.err != nil }

// Tx returns the finished transaction.
func (r Result) Tx() *transaction.Transaction {
	if r.tx == nil {
		panic("builder: Tx called on an error result")
	}
	return r.tx
}

// Err returns the reason the build failed, usually an *Error.
func (r Result) Err() error {
	if r.err == nil {
		panic("builder: Err called on a transaction result")
	}
	return r.err
}

// SproutMappings returns, per JoinSplit, where each of the caller's Sprout
// spends and outputs was placed. The k-th Sprout spend added to the
// builder is in JoinSplit k/2 at physical input slot
// SproutMappings()[k/2].Inputs[k%2]; outputs follow the same rule. It is
// empty when the transaction has no JoinSplits.
func (r Result) SproutMappings() []sprout.SlotMap {
	if r.tx == nil {
		panic("builder: SproutMappings called on an error result")
	}
	return r.mappings
}

package builder

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/suffix-labs/zcash-txbuilder/pkg/orchard"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sapling"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sprout"
)

// Error codes.
const (
	ErrInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrAnchorMismatch     = "ANCHOR_MISMATCH"
	ErrTooManySpends      = "TOO_MANY_SPENDS"
	ErrInvalidAmount      = "INVALID_AMOUNT"
	ErrPoolUnavailable    = "POOL_UNAVAILABLE"
	ErrNoChangeAddress    = "NO_CHANGE_ADDRESS"
	ErrMissingKeyStore    = "MISSING_KEYSTORE"
	ErrInvalidExpiry      = "INVALID_EXPIRY"
	ErrCoinsView          = "COINS_VIEW"
	ErrProofFailed        = "PROOF_FAILED"
	ErrSigningFailed      = "SIGNING_FAILED"
	ErrInvalidTransaction = "INVALID_TRANSACTION"
)

// Error is returned for every anticipated failure: by the Add and Set
// methods directly, and by Build through its Result.
type Error struct {
	Code    string // one of the Err* codes
	Message string // human-readable description
	Cause   error  // underlying error, if any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("builder error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("builder error [%s]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

func errorf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err, or any error it wraps, is an *Error with
// the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// poolError classifies an error returned by a pool sub-builder.
func poolError(msg string, err error) *Error {
	code := ErrInvalidTransaction
	switch {
	case errors.Is(err, sprout.ErrAnchorMismatch),
		errors.Is(err, sapling.ErrAnchorMismatch),
		errors.Is(err, orchard.ErrAnchorMismatch):
		code = ErrAnchorMismatch
	case errors.Is(err, sprout.ErrTooManySpends):
		code = ErrTooManySpends
	case errors.Is(err, sprout.ErrInvalidValue),
		errors.Is(err, sapling.ErrInvalidValue),
		errors.Is(err, orchard.ErrInvalidValue):
		code = ErrInvalidAmount
	case errors.Is(err, orchard.ErrSpendsDisabled),
		errors.Is(err, orchard.ErrOutputsDisabled):
		code = ErrPoolUnavailable
	}
	return newError(code, msg, err)
}

package ledger

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a command failure. All expected business failures are
// reported as typed *Error values; only infrastructure faults (storage
// unavailable) propagate as plain errors.
type ErrorKind string

const (
	// KindValidation marks a malformed command, e.g. a non-positive amount.
	KindValidation ErrorKind = "validation"
	// KindBusinessRule marks a well-formed command rejected by an aggregate
	// invariant, e.g. insufficient funds or a failed bank.
	KindBusinessRule ErrorKind = "business_rule"
	// KindConflict marks an optimistic-concurrency loss. Recoverable: the
	// caller may reload and retry.
	KindConflict ErrorKind = "conflict"
	// KindNotFound marks a command against an aggregate with no events.
	KindNotFound ErrorKind = "not_found"
	// KindRateLimited marks a command rejected by the rate limiter before
	// validation.
	KindRateLimited ErrorKind = "rate_limited"
	// KindInfrastructure marks a fault below the business layer (storage
	// unavailable, corrupt stream). Retrying the command does not help until
	// the fault is resolved.
	KindInfrastructure ErrorKind = "infrastructure"
)

// Failure codes. Stable identifiers for the invariant that rejected a command.
const (
	CodeNonPositiveAmount    = "non_positive_amount"
	CodeInvalidCommand       = "invalid_command"
	CodeAlreadyExists        = "already_exists"
	CodeWalletNotFound       = "wallet_not_found"
	CodeBankNotFound         = "bank_not_found"
	CodeReserveNotFound      = "reserve_not_found"
	CodeGovernmentNotFound   = "government_not_found"
	CodeInsufficientFunds    = "insufficient_funds"
	CodeBankInsolvent        = "bank_insolvent"
	CodeInsufficientReserves = "insufficient_reserves"
	CodeReserveRatioBreach   = "reserve_ratio_breach"
	CodeExcessRepayment      = "excess_repayment"
	CodeInsufficientGold     = "insufficient_gold"
	CodeInvalidExchangeRate  = "invalid_exchange_rate"
	CodeInsufficientTreasury = "insufficient_treasury"
	CodeConcurrencyConflict  = "concurrency_conflict"
	CodeRateLimited          = "rate_limited"
	CodeUnknownCommand       = "unknown_command"
	CodeAggregateNotFound    = "aggregate_not_found"
	CodeStorageFault         = "storage_fault"
	CodeUnknownProjection    = "unknown_projection"
	CodeRecordNotFound       = "record_not_found"
)

// Error is the typed result of a rejected command.
type Error struct {
	Kind ErrorKind
	Code string
	msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.msg) }

func NewError(kind ErrorKind, code string, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, msg: fmt.Sprintf(format, args...)}
}

func Validation(code string, format string, args ...any) *Error {
	return NewError(KindValidation, code, format, args...)
}

func BusinessRule(code string, format string, args ...any) *Error {
	return NewError(KindBusinessRule, code, format, args...)
}

func NotFound(code string, format string, args ...any) *Error {
	return NewError(KindNotFound, code, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return NewError(KindConflict, CodeConcurrencyConflict, format, args...)
}

func Infrastructure(code string, format string, args ...any) *Error {
	return NewError(KindInfrastructure, code, format, args...)
}

// AsError extracts a typed *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsKind reports whether err carries a typed *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// Package errors provides a single typed error value used across the
// indexer core, modelled on the code+message+wrapped-error shape used
// throughout the teranode codebase (without the gRPC status-detail
// plumbing: this core has no RPC transport to carry it over).
package errors

import (
	"errors"
	"fmt"
)

// ERR identifies the kind of failure per spec.md §7.
type ERR int

const (
	ErrUnknown ERR = iota
	ErrParse
	ErrDuplicateBlock
	ErrConsistency
	ErrStorage
	ErrIndeterminateChain
	ErrBackpressureShed
	ErrNotFound
	ErrNegativeBalance
	ErrConfiguration
	ErrInvalidArgument
	ErrGenesisLedger
	ErrAddressInUse
)

func (c ERR) String() string {
	switch c {
	case ErrParse:
		return "PARSE_ERROR"
	case ErrDuplicateBlock:
		return "DUPLICATE_BLOCK"
	case ErrConsistency:
		return "CONSISTENCY_ERROR"
	case ErrStorage:
		return "STORAGE_ERROR"
	case ErrIndeterminateChain:
		return "INDETERMINATE_CHAIN"
	case ErrBackpressureShed:
		return "BACKPRESSURE_SHED"
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrNegativeBalance:
		return "NEGATIVE_BALANCE"
	case ErrConfiguration:
		return "CONFIGURATION_ERROR"
	case ErrInvalidArgument:
		return "INVALID_ARGUMENT"
	case ErrGenesisLedger:
		return "GENESIS_LEDGER_ERROR"
	case ErrAddressInUse:
		return "ADDRESS_IN_USE"
	default:
		return "UNKNOWN"
	}
}

// Error is the core's single error type. It always carries a code so
// callers can dispatch recovery by kind (spec.md §7) rather than by
// string matching.
type Error struct {
	Code       ERR
	Message    string
	WrappedErr error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.WrappedErr == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.WrappedErr)
}

// Is reports whether target is an *Error with the same code, unwrapping
// through any chain of wrapped *Error values.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}

	var te *Error
	if errors.As(target, &te) {
		if e.Code == te.Code {
			return true
		}
	}

	if unwrapped := errors.Unwrap(e); unwrapped != nil {
		if ue, ok := unwrapped.(*Error); ok {
			return ue.Is(target)
		}
	}

	return false
}

func (e *Error) As(target interface{}) bool {
	if e == nil {
		return false
	}

	if targetErr, ok := target.(**Error); ok {
		*targetErr = e
		return true
	}

	if e.WrappedErr != nil {
		return errors.As(e.WrappedErr, target)
	}

	return false
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.WrappedErr
}

// New builds an *Error with a formatted message.
func New(code ERR, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that carries an underlying cause.
func Wrap(code ERR, err error, format string, args ...interface{}) *Error {
	if err == nil {
		return New(code, format, args...)
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), WrappedErr: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ERR) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for e != nil {
		if e.Code == code {
			return true
		}
		var next *Error
		if !errors.As(e.WrappedErr, &next) {
			return false
		}
		e = next
	}
	return false
}

// As delegates to the standard library's As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Convenience constructors used throughout the core.

func NewParseError(format string, args ...interface{}) *Error {
	return New(ErrParse, format, args...)
}

func NewDuplicateBlockError(hash string) *Error {
	return New(ErrDuplicateBlock, "block %s already present", hash)
}

func NewConsistencyError(format string, args ...interface{}) *Error {
	return New(ErrConsistency, format, args...)
}

func NewStorageError(err error, format string, args ...interface{}) *Error {
	return Wrap(ErrStorage, err, format, args...)
}

func NewIndeterminateChainError(format string, args ...interface{}) *Error {
	return New(ErrIndeterminateChain, format, args...)
}

func NewNotFoundError(format string, args ...interface{}) *Error {
	return New(ErrNotFound, format, args...)
}

func NewConfigurationError(format string, args ...interface{}) *Error {
	return New(ErrConfiguration, format, args...)
}

func NewInvalidArgumentError(format string, args ...interface{}) *Error {
	return New(ErrInvalidArgument, format, args...)
}

func NewGenesisLedgerError(format string, args ...interface{}) *Error {
	return New(ErrGenesisLedger, format, args...)
}

func NewAddressInUseError(format string, args ...interface{}) *Error {
	return New(ErrAddressInUse, format, args...)
}

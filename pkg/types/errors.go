package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a calculation failure. Callers map kinds to
// user-facing messages; the kind string is stable and safe to expose.
type ErrorKind string

// Error kinds.
const (
	KindMalformed          ErrorKind = "Malformed"
	KindDivideByZero       ErrorKind = "DivideByZero"
	KindOverflow           ErrorKind = "Overflow"
	KindConversion         ErrorKind = "ConversionError"
	KindCurrency           ErrorKind = "CurrencyError"
	KindNetworkUnavailable ErrorKind = "NetworkUnavailable"
	KindUnknownUnit        ErrorKind = "UnknownUnit"
)

// KindBadInput is the name the converter layer uses for malformed input.
const KindBadInput = KindMalformed

// CalcError is a typed failure of the calculator core.
type CalcError struct {
	Kind    ErrorKind
	Message string
	Pos     int // rune offset in the input, -1 when unknown
	Err     error
}

// Error implements the error interface.
func (e *CalcError) Error() string {
	msg := e.Message
	if e.Pos >= 0 {
		msg = fmt.Sprintf("%s at position %d", msg, e.Pos)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause, if any.
func (e *CalcError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *CalcError of the same kind, so that
// errors.Is(err, types.ErrDivideByZero) works for any division failure.
func (e *CalcError) Is(target error) bool {
	t, ok := target.(*CalcError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinel values for errors.Is comparisons.
var (
	ErrMalformed          = &CalcError{Kind: KindMalformed, Pos: -1}
	ErrDivideByZero       = &CalcError{Kind: KindDivideByZero, Pos: -1}
	ErrOverflow           = &CalcError{Kind: KindOverflow, Pos: -1}
	ErrConversion         = &CalcError{Kind: KindConversion, Pos: -1}
	ErrCurrency           = &CalcError{Kind: KindCurrency, Pos: -1}
	ErrNetworkUnavailable = &CalcError{Kind: KindNetworkUnavailable, Pos: -1}
	ErrUnknownUnit        = &CalcError{Kind: KindUnknownUnit, Pos: -1}
)

// KindOf extracts the kind of err. Errors that are not CalcErrors are
// reported as KindMalformed, the catch-all of the taxonomy.
func KindOf(err error) ErrorKind {
	var ce *CalcError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindMalformed
}

// Common error constructors.

// NewMalformedError creates a Malformed (bad input) error.
func NewMalformedError(msg string) *CalcError {
	return &CalcError{Kind: KindMalformed, Message: msg, Pos: -1}
}

// NewMalformedErrorAt creates a Malformed error anchored at a rune offset.
func NewMalformedErrorAt(pos int, format string, args ...interface{}) *CalcError {
	return &CalcError{Kind: KindMalformed, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// NewDivideByZeroError creates a DivideByZero error.
func NewDivideByZeroError() *CalcError {
	return &CalcError{Kind: KindDivideByZero, Message: "division by zero", Pos: -1}
}

// NewOverflowError creates an Overflow error.
func NewOverflowError(msg string) *CalcError {
	return &CalcError{Kind: KindOverflow, Message: msg, Pos: -1}
}

// NewConversionError creates a ConversionError wrapping the cause.
func NewConversionError(msg string, cause error) *CalcError {
	return &CalcError{Kind: KindConversion, Message: msg, Pos: -1, Err: cause}
}

// NewCurrencyError creates a CurrencyError for a missing exchange rate.
func NewCurrencyError(from, to string) *CalcError {
	return &CalcError{
		Kind:    KindCurrency,
		Message: fmt.Sprintf("no exchange rate for %s -> %s", from, to),
		Pos:     -1,
	}
}

// NewNetworkUnavailableError wraps a rate source failure.
func NewNetworkUnavailableError(cause error) *CalcError {
	return &CalcError{Kind: KindNetworkUnavailable, Message: "rate source unavailable", Pos: -1, Err: cause}
}

// NewUnknownUnitError creates an UnknownUnit error.
func NewUnknownUnitError(id string) *CalcError {
	return &CalcError{Kind: KindUnknownUnit, Message: fmt.Sprintf("unit '%s' not found", id), Pos: -1}
}

// Package types defines the result and error types shared by the calculator
// core and its outer surfaces. Numbers are arbitrary-precision decimals;
// a Result is either a value or a typed CalcError, never both.
package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"fortio.org/safecast"
	"github.com/cockroachdb/apd/v3"
)

// DefaultPrecision is the number of fractional digits shown when the
// caller does not ask for a specific display precision.
const DefaultPrecision = 10

// Result is the tagged outcome of an evaluation or conversion.
// Value holds the full working value; Precision only affects String.
type Result struct {
	Value     *apd.Decimal
	Precision int
	Err       *CalcError
}

// Success wraps a computed value.
func Success(v *apd.Decimal, precision int) Result {
	return Result{Value: v, Precision: precision}
}

// Failure wraps err into a tagged failure. Errors that are not CalcErrors
// become Malformed so that every failure carries a kind.
func Failure(err error) Result {
	var ce *CalcError
	if errors.As(err, &ce) {
		return Result{Err: ce}
	}
	return Result{Err: &CalcError{Kind: KindMalformed, Message: err.Error(), Pos: -1}}
}

// OK reports whether the result holds a value.
func (r Result) OK() bool {
	return r.Err == nil && r.Value != nil
}

// Kind returns the failure kind, or "" on success.
func (r Result) Kind() ErrorKind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

// String returns the display form of the value, rounded to Precision.
func (r Result) String() string {
	if r.Err != nil {
		return string(r.Err.Kind)
	}
	return FormatDecimal(r.Value, r.Precision)
}

// MarshalJSON renders {"value": "...", "display": "..."} or
// {"error": {"kind": ..., "message": ...}}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(map[string]interface{}{
			"error": map[string]interface{}{
				"kind":    r.Err.Kind,
				"message": r.Err.Error(),
			},
		})
	}
	return json.Marshal(map[string]interface{}{
		"value":   PlainString(r.Value),
		"display": r.String(),
	})
}

// ParseDecimal parses a plain decimal literal such as "12", "-0.5", ".5" or "5.".
func ParseDecimal(s string) (*apd.Decimal, error) {
	if s == "" {
		return nil, NewMalformedError("empty number")
	}
	lit := s
	if lit[0] == '.' {
		lit = "0" + lit
	} else if len(lit) > 1 && lit[0] == '-' && lit[1] == '.' {
		lit = "-0" + lit[1:]
	}
	if lit[len(lit)-1] == '.' {
		lit += "0"
	}
	d, _, err := apd.NewFromString(lit)
	if err != nil {
		return nil, NewMalformedError(fmt.Sprintf("invalid number %q", s))
	}
	if d.Form != apd.Finite {
		return nil, NewMalformedError(fmt.Sprintf("invalid number %q", s))
	}
	return d, nil
}

// MustDecimal parses a literal known to be valid at compile time.
func MustDecimal(s string) *apd.Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// PlainString renders d in non-scientific notation without rounding,
// trailing fractional zeros removed.
func PlainString(d *apd.Decimal) string {
	if d == nil {
		return ""
	}
	if d.Form != apd.Finite {
		return d.String()
	}
	var out apd.Decimal
	out.Reduce(d)
	if out.IsZero() {
		return "0"
	}
	return out.Text('f')
}

// FormatDecimal rounds d half-even to precision fractional digits and
// renders it in plain notation with trailing zeros trimmed. A negative
// precision disables rounding. The input is never modified.
func FormatDecimal(d *apd.Decimal, precision int) string {
	if d == nil {
		return ""
	}
	if d.Form != apd.Finite {
		return d.String()
	}
	if precision < 0 || int64(d.Exponent) >= -int64(precision) {
		return PlainString(d)
	}

	exp, err := safecast.Conv[int32](-precision)
	if err != nil {
		return PlainString(d)
	}
	intDigits := d.NumDigits() + int64(d.Exponent)
	if intDigits < 1 {
		intDigits = 1
	}
	digits, err := safecast.Conv[uint32](intDigits + int64(precision) + 1)
	if err != nil {
		return PlainString(d)
	}

	ctx := apd.BaseContext.WithPrecision(digits)
	ctx.Rounding = apd.RoundHalfEven
	var out apd.Decimal
	if _, err := ctx.Quantize(&out, d, exp); err != nil {
		return PlainString(d)
	}
	return PlainString(&out)
}

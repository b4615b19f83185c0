// Package timeunit decomposes a duration, held as a fixed-point number of
// attoseconds, into days, hours, minutes and finer units.
package timeunit

import (
	"encoding/json"
	"fmt"
	"strings"

	"fortio.org/safecast"
	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// Unit sizes in attoseconds.
var (
	Attosecond  = apd.New(1, 0)
	Nanosecond  = apd.New(1, 9)
	Microsecond = apd.New(1, 12)
	Millisecond = apd.New(1, 15)
	Second      = apd.New(1, 18)
	Minute      = apd.New(60, 18)
	Hour        = apd.New(3600, 18)
	Day         = apd.New(86400, 18)
)

// Breakdown is a duration split into whole units from days down to
// nanoseconds; Attosecond holds the rest. All fields are non-negative and
// the sign lives in Negative.
type Breakdown struct {
	Negative    bool
	Day         *apd.Decimal
	Hour        *apd.Decimal
	Minute      *apd.Decimal
	Second      *apd.Decimal
	Millisecond *apd.Decimal
	Microsecond *apd.Decimal
	Nanosecond  *apd.Decimal
	Attosecond  *apd.Decimal
}

// Field is one named component of a Breakdown.
type Field struct {
	Name  string
	Short string
	Value *apd.Decimal
}

// Fields returns the components from coarsest to finest.
func (b Breakdown) Fields() []Field {
	return []Field{
		{"day", "d", b.Day},
		{"hour", "h", b.Hour},
		{"minute", "m", b.Minute},
		{"second", "s", b.Second},
		{"millisecond", "ms", b.Millisecond},
		{"microsecond", "µs", b.Microsecond},
		{"nanosecond", "ns", b.Nanosecond},
		{"attosecond", "as", b.Attosecond},
	}
}

// String lists the non-zero components, e.g. "1d 1h 1m 1s". A zero
// duration renders as "0as".
func (b Breakdown) String() string {
	var parts []string
	for _, f := range b.Fields() {
		if f.Value == nil || f.Value.IsZero() {
			continue
		}
		parts = append(parts, types.PlainString(f.Value)+f.Short)
	}
	if len(parts) == 0 {
		return "0as"
	}
	s := strings.Join(parts, " ")
	if b.Negative {
		s = "-" + s
	}
	return s
}

// MarshalJSON renders every component as a plain decimal string.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{"negative": b.Negative}
	for _, f := range b.Fields() {
		out[f.Name] = types.PlainString(f.Value)
	}
	return json.Marshal(out)
}

// Decompose splits a signed number of attoseconds. Magnitudes below one
// nanosecond are reported entirely in the attosecond field, zero-trimmed.
// Larger magnitudes are rounded half-even to whole attoseconds and divided
// down unit by unit.
func Decompose(magnitude *apd.Decimal) (Breakdown, error) {
	abs := new(apd.Decimal).Abs(magnitude)
	b := Breakdown{
		Negative:    magnitude.Sign() < 0,
		Day:         new(apd.Decimal),
		Hour:        new(apd.Decimal),
		Minute:      new(apd.Decimal),
		Second:      new(apd.Decimal),
		Millisecond: new(apd.Decimal),
		Microsecond: new(apd.Decimal),
		Nanosecond:  new(apd.Decimal),
	}

	if abs.Cmp(Nanosecond) < 0 {
		b.Attosecond, _ = new(apd.Decimal).Reduce(abs)
		return b, nil
	}

	ctx, err := divisionContext(abs)
	if err != nil {
		return Breakdown{}, err
	}

	whole := new(apd.Decimal)
	if _, err := ctx.RoundToIntegralValue(whole, abs); err != nil {
		return Breakdown{}, types.NewOverflowError(err.Error())
	}
	rest := new(apd.Decimal)
	if err := divmod(ctx, b.Day, rest, whole, Day); err != nil {
		return Breakdown{}, err
	}

	steps := []struct {
		dst  *apd.Decimal
		size *apd.Decimal
	}{
		{b.Hour, Hour},
		{b.Minute, Minute},
		{b.Second, Second},
		{b.Millisecond, Millisecond},
		{b.Microsecond, Microsecond},
		{b.Nanosecond, Nanosecond},
	}
	for _, s := range steps {
		next := new(apd.Decimal)
		if err := divmod(ctx, s.dst, next, rest, s.size); err != nil {
			return Breakdown{}, err
		}
		rest = next
	}
	b.Attosecond, _ = new(apd.Decimal).Reduce(rest)
	for _, f := range b.Fields()[:7] {
		f.Value.Reduce(f.Value)
	}
	return b, nil
}

// DecomposeUnit converts value, measured in a unit of factor attoseconds,
// and decomposes it.
func DecomposeUnit(value, factor *apd.Decimal) (Breakdown, error) {
	ctx := apd.BaseContext
	ctx.Traps = apd.DefaultTraps &^ (apd.Underflow | apd.Subnormal)
	attos := new(apd.Decimal)
	if _, err := ctx.Mul(attos, value, factor); err != nil {
		return Breakdown{}, types.NewOverflowError(fmt.Sprintf("duration out of range: %v", err))
	}
	return Decompose(attos)
}

// divisionContext has enough digits for an exact integer quotient of x.
func divisionContext(x *apd.Decimal) (*apd.Context, error) {
	digits := x.NumDigits()
	if x.Exponent > 0 {
		digits += int64(x.Exponent)
	}
	p, err := safecast.Conv[uint32](digits + 4)
	if err != nil {
		return nil, types.NewOverflowError("duration out of range")
	}
	ctx := apd.BaseContext.WithPrecision(p)
	ctx.Rounding = apd.RoundHalfEven
	return ctx, nil
}

func divmod(ctx *apd.Context, quo, rem, x, y *apd.Decimal) error {
	if _, err := ctx.QuoInteger(quo, x, y); err != nil {
		return types.NewOverflowError(err.Error())
	}
	if _, err := ctx.Rem(rem, x, y); err != nil {
		return types.NewOverflowError(err.Error())
	}
	return nil
}

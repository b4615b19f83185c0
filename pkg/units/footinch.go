package units

import (
	"encoding/json"
	"fmt"

	"fortio.org/safecast"
	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/types"
)

const (
	footID = "foot"
	inchID = "inch"
)

// FootInch is a length in feet split into whole feet and the remaining
// inches. Both parts are magnitudes; the sign is kept in Negative.
type FootInch struct {
	Negative  bool
	Feet      *apd.Decimal
	Inches    *apd.Decimal
	Precision int
}

// String renders e.g. "5 ft 6.5 in".
func (f FootInch) String() string {
	sign := ""
	if f.Negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%s ft %s in", sign,
		types.FormatDecimal(f.Feet, 0), types.FormatDecimal(f.Inches, f.Precision))
}

// MarshalJSON renders both parts as plain strings.
func (f FootInch) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"negative": f.Negative,
		"feet":     types.PlainString(f.Feet),
		"inches":   types.PlainString(f.Inches),
		"display":  f.String(),
	})
}

// SplitFeet splits value, a length in feet, into whole feet and inches
// rounded half-even to precision fractional digits. Inches that round up
// to a full foot carry into Feet.
func SplitFeet(env stdlib.Env, foot, inch Unit, value *apd.Decimal, precision int) (FootInch, error) {
	abs := new(apd.Decimal).Abs(value)
	whole, err := quantize(abs, 0, apd.RoundDown)
	if err != nil {
		return FootInch{}, err
	}
	frac, err := env.Sub(abs, whole)
	if err != nil {
		return FootInch{}, err
	}
	inches, err := Convert(env, foot, inch, frac)
	if err != nil {
		return FootInch{}, err
	}
	exp, err := safecast.Conv[int32](-precision)
	if err != nil {
		return FootInch{}, types.NewOverflowError("precision out of range")
	}
	if inches, err = quantize(inches, exp, apd.RoundHalfEven); err != nil {
		return FootInch{}, err
	}

	perFoot, err := Convert(env, foot, inch, apd.New(1, 0))
	if err != nil {
		return FootInch{}, err
	}
	if inches.Cmp(perFoot) >= 0 {
		if whole, err = env.Add(whole, apd.New(1, 0)); err != nil {
			return FootInch{}, err
		}
		if inches, err = env.Sub(inches, perFoot); err != nil {
			return FootInch{}, err
		}
	}
	whole.Reduce(whole)
	inches.Reduce(inches)
	return FootInch{
		Negative:  value.Sign() < 0,
		Feet:      whole,
		Inches:    inches,
		Precision: precision,
	}, nil
}

// quantize rounds x to exponent exp with the given rounding mode.
func quantize(x *apd.Decimal, exp int32, mode apd.Rounder) (*apd.Decimal, error) {
	intDigits := x.NumDigits() + int64(x.Exponent)
	if intDigits < 1 {
		intDigits = 1
	}
	digits, err := safecast.Conv[uint32](intDigits - int64(exp) + 2)
	if err != nil {
		return nil, types.NewOverflowError("value out of range")
	}
	ctx := apd.BaseContext.WithPrecision(digits)
	ctx.Rounding = mode
	d := new(apd.Decimal)
	if _, err := ctx.Quantize(d, x, exp); err != nil {
		return nil, types.NewOverflowError(err.Error())
	}
	return d, nil
}

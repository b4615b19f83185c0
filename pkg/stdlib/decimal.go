package stdlib

import (
	"strings"

	"fortio.org/safecast"
	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// DefaultScale is the number of fractional digits kept by inexact
// operations (division, roots, logarithms, trigonometry).
const DefaultScale = 40

// Exponent limits for every context. Results beyond them are Overflow.
const (
	maxExponent = 10000
	minExponent = -10000
)

// guardDigits are extra significant digits carried by series expansions.
const guardDigits = 10

// AngleMode selects the unit of trigonometric operands and results.
type AngleMode int

const (
	Radians AngleMode = iota
	Degrees
)

// String returns "rad" or "deg".
func (m AngleMode) String() string {
	if m == Degrees {
		return "deg"
	}
	return "rad"
}

// ParseAngleMode accepts rad/radian(s) and deg/degree(s) in any case;
// anything else is rejected.
func ParseAngleMode(s string) (AngleMode, error) {
	switch strings.ToLower(s) {
	case "", "rad", "radian", "radians":
		return Radians, nil
	case "deg", "degree", "degrees":
		return Degrees, nil
	default:
		return Radians, types.NewMalformedError("unknown angle mode '" + s + "'")
	}
}

// Env carries the numeric settings of a single evaluation.
type Env struct {
	Angle AngleMode
	Scale int
}

// NewEnv returns an Env with the default working scale.
func NewEnv(mode AngleMode) Env {
	return Env{Angle: mode, Scale: DefaultScale}
}

func (e Env) scale() int64 {
	if e.Scale < 10 {
		return DefaultScale
	}
	return int64(e.Scale)
}

// exact returns a context that never rounds. Used for +, −, × and
// factorial so integer arithmetic loses nothing.
func (e Env) exact() *arith {
	c := apd.BaseContext
	c.Rounding = apd.RoundHalfEven
	c.MaxExponent = maxExponent
	c.MinExponent = minExponent
	c.Traps = apd.DefaultTraps &^ (apd.Underflow | apd.Subnormal)
	return &arith{ctx: &c}
}

// sized returns a rounding context with `digits` significant digits.
func (e Env) sized(digits int64) *arith {
	return newArith(digits)
}

func newArith(digits int64) *arith {
	if digits < 1 {
		digits = 1
	}
	p, err := safecast.Conv[uint32](digits)
	if err != nil {
		p = 5000
	}
	c := apd.BaseContext.WithPrecision(p)
	c.Rounding = apd.RoundHalfEven
	c.MaxExponent = maxExponent
	c.MinExponent = minExponent
	c.Traps = apd.DefaultTraps &^ (apd.Underflow | apd.Subnormal)
	return &arith{ctx: c}
}

// inexact returns a context keeping at least Scale fractional digits for a
// result whose integer part has about intDigits digits.
func (e Env) inexact(intDigits int64) *arith {
	if intDigits < 1 {
		intDigits = 1
	}
	return e.sized(e.scale() + intDigits)
}

// series returns the context used by Taylor expansions.
func (e Env) series() *arith {
	return e.sized(e.scale() + guardDigits)
}

// Quo divides x by y keeping Scale fractional digits, round-half-even.
func (e Env) Quo(x, y *apd.Decimal) (*apd.Decimal, error) {
	if y.IsZero() {
		return nil, types.NewDivideByZeroError()
	}
	a := e.inexact(intDigits(x) - intDigits(y) + 1)
	q := a.quo(x, y)
	return q, a.err
}

// Add returns x + y exactly.
func (e Env) Add(x, y *apd.Decimal) (*apd.Decimal, error) {
	a := e.exact()
	d := a.add(x, y)
	return d, a.err
}

// Sub returns x − y exactly.
func (e Env) Sub(x, y *apd.Decimal) (*apd.Decimal, error) {
	a := e.exact()
	d := a.sub(x, y)
	return d, a.err
}

// Mul returns x × y exactly.
func (e Env) Mul(x, y *apd.Decimal) (*apd.Decimal, error) {
	a := e.exact()
	d := a.mul(x, y)
	return d, a.err
}

// intDigits is the count of digits left of the decimal point (may be <= 0
// for values below one).
func intDigits(d *apd.Decimal) int64 {
	if d.IsZero() {
		return 1
	}
	return d.NumDigits() + int64(d.Exponent)
}

// IsIntegral reports whether d has no fractional part.
func IsIntegral(d *apd.Decimal) bool {
	if d.Form != apd.Finite {
		return false
	}
	if d.Exponent >= 0 || d.IsZero() {
		return true
	}
	var r apd.Decimal
	r.Reduce(d)
	return r.Exponent >= 0
}

// arith chains apd operations, keeping the first failure.
type arith struct {
	ctx *apd.Context
	err error
}

func (a *arith) check(cond apd.Condition, err error) {
	if a.err != nil || err == nil {
		return
	}
	switch {
	case cond.Overflow():
		a.err = types.NewOverflowError("result out of range")
	case cond.DivisionByZero():
		a.err = types.NewDivideByZeroError()
	default:
		a.err = types.NewMalformedError(err.Error())
	}
}

func (a *arith) add(x, y *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	a.check(a.ctx.Add(d, x, y))
	return d
}

func (a *arith) sub(x, y *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	a.check(a.ctx.Sub(d, x, y))
	return d
}

func (a *arith) mul(x, y *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	a.check(a.ctx.Mul(d, x, y))
	return d
}

func (a *arith) quo(x, y *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	if y.IsZero() {
		if a.err == nil {
			a.err = types.NewDivideByZeroError()
		}
		return d
	}
	a.check(a.ctx.Quo(d, x, y))
	return d
}

func (a *arith) sqrt(x *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	a.check(a.ctx.Sqrt(d, x))
	return d
}

func (a *arith) round(x *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	a.check(a.ctx.Round(d, x))
	return d
}

// quantize rounds x half-even to the given exponent.
func (a *arith) quantize(x *apd.Decimal, exp int32) *apd.Decimal {
	d := new(apd.Decimal)
	a.check(a.ctx.Quantize(d, x, exp))
	return d
}

// toIntegral rounds half-even to an integer.
func (a *arith) toIntegral(x *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	a.check(a.ctx.RoundToIntegralValue(d, x))
	return d
}

func neg(x *apd.Decimal) *apd.Decimal {
	return new(apd.Decimal).Neg(x)
}

func abs(x *apd.Decimal) *apd.Decimal {
	return new(apd.Decimal).Abs(x)
}

// epsilon returns 10^-(digits) used to stop series expansions.
func epsilon(digits uint32) *apd.Decimal {
	e, err := safecast.Conv[int32](digits)
	if err != nil {
		e = 5000
	}
	return apd.New(1, -e)
}

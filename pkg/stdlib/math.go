package stdlib

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// MaxFactorial is the largest operand accepted by Factorial.
const MaxFactorial = 1000

// maxExactPowerDigits bounds the size of exactly computed integer powers.
const maxExactPowerDigits = 2000

var (
	decOne     = apd.New(1, 0)
	decTwo     = apd.New(2, 0)
	dec180     = apd.New(180, 0)
	decPercent = apd.New(1, -2)
)

// Pi returns π rounded to the working precision of env.
func Pi(env Env) *apd.Decimal {
	return piAt(env.series().ctx.Precision)
}

// E returns Euler's number at the working precision of env.
func E(env Env) (*apd.Decimal, error) {
	a := env.series()
	d := new(apd.Decimal)
	a.check(a.ctx.Exp(d, decOne))
	return d, a.err
}

// Sqrt returns the square root of x; negative operands are BadInput.
func Sqrt(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	if x.Sign() < 0 {
		return nil, types.NewMalformedError("square root of a negative number")
	}
	if x.IsZero() {
		return new(apd.Decimal), nil
	}
	a := env.inexact(intDigits(x))
	d := a.sqrt(x)
	return d, a.err
}

// Factorial returns x! for non-negative integral x.
func Factorial(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	if x.Sign() < 0 || !IsIntegral(x) {
		return nil, types.NewMalformedError("factorial requires a non-negative integer")
	}
	n, err := x.Int64()
	if err != nil || n > MaxFactorial {
		return nil, types.NewOverflowError("factorial operand too large")
	}
	a := env.exact()
	result := apd.New(1, 0)
	for i := int64(2); i <= n; i++ {
		result = a.mul(result, apd.New(i, 0))
	}
	return result, a.err
}

// Percent returns x ÷ 100.
func Percent(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	return env.Mul(x, decPercent)
}

// Negate returns −x.
func Negate(_ Env, x *apd.Decimal) (*apd.Decimal, error) {
	return neg(x), nil
}

// Pow returns x^y. 0^0 is 1 and 0^negative is DivideByZero. Integral
// exponents of integral bases are computed exactly when the result is of
// reasonable size.
func Pow(env Env, x, y *apd.Decimal) (*apd.Decimal, error) {
	if x.IsZero() {
		switch y.Sign() {
		case 0:
			return apd.New(1, 0), nil
		case -1:
			return nil, types.NewDivideByZeroError()
		default:
			return new(apd.Decimal), nil
		}
	}
	if y.IsZero() {
		return apd.New(1, 0), nil
	}

	yIntegral := IsIntegral(y)
	if x.Sign() < 0 && !yIntegral {
		return nil, types.NewMalformedError("fractional power of a negative number")
	}

	if yIntegral {
		if n, err := y.Int64(); err == nil {
			if r, ok, err := exactPow(env, x, n); ok || err != nil {
				return r, err
			}
		}
	}

	a := env.inexact(estimatePowDigits(x, y))
	d := new(apd.Decimal)
	a.check(a.ctx.Pow(d, x, y))
	return d, a.err
}

// exactPow squares-and-multiplies when x^|n| stays small. ok is false when
// the caller should fall back to the rounding path.
func exactPow(env Env, x *apd.Decimal, n int64) (*apd.Decimal, bool, error) {
	mag := n
	if mag < 0 {
		mag = -mag
	}
	if mag < 0 || x.NumDigits()*mag > maxExactPowerDigits {
		return nil, false, nil
	}
	a := env.exact()
	result := apd.New(1, 0)
	base := new(apd.Decimal).Set(x)
	for e := mag; e > 0; e >>= 1 {
		if e&1 == 1 {
			result = a.mul(result, base)
		}
		if e > 1 {
			base = a.mul(base, base)
		}
	}
	if a.err != nil {
		return nil, true, a.err
	}
	if n < 0 {
		q, err := env.Quo(decOne, result)
		return q, true, err
	}
	return result, true, nil
}

// estimatePowDigits approximates the integer digits of x^y so the rounding
// context keeps Scale fractional digits.
func estimatePowDigits(x, y *apd.Decimal) int64 {
	yi := y.NumDigits() + int64(y.Exponent)
	if y.Sign() < 0 || yi > 6 {
		return 1
	}
	f, err := y.Float64()
	if err != nil {
		return 1
	}
	est := int64(float64(intDigits(x)) * f)
	if est > maxExponent {
		return maxExponent
	}
	return est + 1
}

// Ln returns the natural logarithm; x <= 0 is BadInput.
func Ln(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	if x.Sign() <= 0 {
		return nil, types.NewMalformedError("logarithm of a non-positive number")
	}
	a := env.series()
	d := new(apd.Decimal)
	a.check(a.ctx.Ln(d, x))
	return d, a.err
}

// Log returns the base-10 logarithm; x <= 0 is BadInput.
func Log(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	if x.Sign() <= 0 {
		return nil, types.NewMalformedError("logarithm of a non-positive number")
	}
	a := env.series()
	d := new(apd.Decimal)
	a.check(a.ctx.Log10(d, x))
	return d, a.err
}

// Exp returns e^x.
func Exp(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	a := env.series()
	d := new(apd.Decimal)
	a.check(a.ctx.Exp(d, x))
	return d, a.err
}

package stdlib

import (
	"fortio.org/safecast"
	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// maxReductionDigits bounds the integer digits of a sin/cos/tan operand.
// Reducing k·2π out of it needs π to that many extra digits.
const maxReductionDigits = 1000

// Trigonometric results are quantized to Scale fractional digits so that
// values such as cos(π/2) come out as exact zero.

// Sin returns the sine of x, interpreted in env.Angle units.
func Sin(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	s, _, err := sinCos(env, x, true, false)
	return s, err
}

// Cos returns the cosine of x, interpreted in env.Angle units.
func Cos(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	_, c, err := sinCos(env, x, false, true)
	return c, err
}

// Tan returns sin(x)/cos(x). Angles where the cosine vanishes at the
// working scale are DivideByZero.
func Tan(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	s, c, err := sinCos(env, x, true, true)
	if err != nil {
		return nil, err
	}
	if c.IsZero() {
		return nil, types.NewDivideByZeroError()
	}
	q, err := env.Quo(s, c)
	if err != nil {
		return nil, err
	}
	return finish(env, q)
}

// Asin returns the arcsine of x, in env.Angle units. |x| > 1 is BadInput.
func Asin(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	r, err := asinRad(env, x)
	if err != nil {
		return nil, err
	}
	return angleOut(env, r)
}

// Acos returns the arccosine of x, in env.Angle units. |x| > 1 is BadInput.
func Acos(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	r, err := asinRad(env, x)
	if err != nil {
		return nil, err
	}
	a := env.series()
	halfPi := a.quo(piAt(a.ctx.Precision), decTwo)
	r = a.sub(halfPi, r)
	if a.err != nil {
		return nil, a.err
	}
	return angleOut(env, r)
}

// Atan returns the arctangent of x, in env.Angle units.
func Atan(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	r, err := atanRad(env, x)
	if err != nil {
		return nil, err
	}
	return angleOut(env, r)
}

// angleIn converts x to radians when env is in degree mode.
func angleIn(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	if env.Angle != Degrees {
		return x, nil
	}
	a := env.sized(env.scale() + guardDigits + intDigits(x))
	r := a.quo(a.mul(x, piAt(a.ctx.Precision)), dec180)
	return r, a.err
}

// angleOut converts a radian result to env.Angle units and quantizes it.
func angleOut(env Env, r *apd.Decimal) (*apd.Decimal, error) {
	if env.Angle == Degrees {
		a := env.series()
		r = a.quo(a.mul(r, dec180), piAt(a.ctx.Precision))
		if a.err != nil {
			return nil, a.err
		}
	}
	return finish(env, r)
}

// finish quantizes r to Scale fractional digits.
func finish(env Env, r *apd.Decimal) (*apd.Decimal, error) {
	exp, err := safecast.Conv[int32](-env.scale())
	if err != nil {
		return nil, types.NewOverflowError("scale out of range")
	}
	a := env.sized(env.scale() + guardDigits + intDigits(r))
	d := a.quantize(r, exp)
	if a.err != nil {
		return nil, a.err
	}
	if d.IsZero() {
		d.Negative = false
	}
	return d, nil
}

// sinCos reduces x modulo 2π and evaluates the requested Taylor series.
func sinCos(env Env, x *apd.Decimal, wantSin, wantCos bool) (*apd.Decimal, *apd.Decimal, error) {
	if intDigits(x) > maxReductionDigits {
		return nil, nil, types.NewOverflowError("trigonometric operand too large")
	}
	rad, err := angleIn(env, x)
	if err != nil {
		return nil, nil, err
	}

	// Enough digits to keep Scale fractional digits after subtracting k·2π.
	a := env.sized(env.scale() + guardDigits + intDigits(rad))
	twoPi := a.mul(piAt(a.ctx.Precision), decTwo)
	k := a.toIntegral(a.quo(rad, twoPi))
	r := a.sub(rad, a.mul(k, twoPi))
	if a.err != nil {
		return nil, nil, a.err
	}

	s := env.series()
	eps := epsilon(s.ctx.Precision)
	r2 := s.mul(r, r)

	var sin, cos *apd.Decimal
	if wantSin {
		term := new(apd.Decimal).Set(r)
		sum := new(apd.Decimal).Set(r)
		for n := int64(1); s.err == nil; n++ {
			term = s.quo(s.mul(neg(term), r2), apd.New((2*n)*(2*n+1), 0))
			if abs(term).Cmp(eps) < 0 {
				break
			}
			sum = s.add(sum, term)
		}
		sin = sum
	}
	if wantCos {
		term := apd.New(1, 0)
		sum := apd.New(1, 0)
		for n := int64(1); s.err == nil; n++ {
			term = s.quo(s.mul(neg(term), r2), apd.New((2*n-1)*(2*n), 0))
			if abs(term).Cmp(eps) < 0 {
				break
			}
			sum = s.add(sum, term)
		}
		cos = sum
	}
	if s.err != nil {
		return nil, nil, s.err
	}

	if sin != nil {
		if sin, err = finish(env, sin); err != nil {
			return nil, nil, err
		}
	}
	if cos != nil {
		if cos, err = finish(env, cos); err != nil {
			return nil, nil, err
		}
	}
	return sin, cos, nil
}

// asinRad computes arcsin in radians via atan(x/√(1−x²)).
func asinRad(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	switch abs(x).Cmp(decOne) {
	case 1:
		return nil, types.NewMalformedError("inverse sine/cosine operand outside [-1, 1]")
	case 0:
		a := env.series()
		r := a.quo(piAt(a.ctx.Precision), decTwo)
		if x.Negative {
			r = neg(r)
		}
		return r, a.err
	}
	if x.IsZero() {
		return new(apd.Decimal), nil
	}
	a := env.series()
	root := a.sqrt(a.sub(decOne, a.mul(x, x)))
	if a.err != nil {
		return nil, a.err
	}
	return atanRad(env, a.quo(x, root))
}

// atanRad computes arctangent in radians. Arguments above one use
// atan(x) = ±π/2 − atan(1/x); the rest are halved with
// atan(x) = 2·atan(x/(1+√(1+x²))) until the series converges quickly.
func atanRad(env Env, x *apd.Decimal) (*apd.Decimal, error) {
	if x.IsZero() {
		return new(apd.Decimal), nil
	}
	a := env.series()
	negative := x.Negative
	v := abs(x)

	invert := v.Cmp(decOne) > 0
	if invert {
		v = a.quo(decOne, v)
	}

	limit := apd.New(1, -1)
	halvings := int64(0)
	for v.Cmp(limit) > 0 && a.err == nil {
		root := a.sqrt(a.add(decOne, a.mul(v, v)))
		v = a.quo(v, a.add(decOne, root))
		halvings++
	}

	eps := epsilon(a.ctx.Precision)
	v2 := a.mul(v, v)
	power := new(apd.Decimal).Set(v)
	sum := new(apd.Decimal).Set(v)
	for n := int64(1); a.err == nil; n++ {
		power = a.mul(neg(power), v2)
		term := a.quo(power, apd.New(2*n+1, 0))
		if abs(term).Cmp(eps) < 0 {
			break
		}
		sum = a.add(sum, term)
	}

	for i := int64(0); i < halvings; i++ {
		sum = a.mul(sum, decTwo)
	}
	if invert {
		sum = a.sub(a.quo(piAt(a.ctx.Precision), decTwo), sum)
	}
	if negative {
		sum = neg(sum)
	}
	return sum, a.err
}

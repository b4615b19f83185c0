package stdlib

import (
	"sync"

	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// piSeed is π to 100 decimal places. Longer expansions are computed with
// Machin's formula and replace it in the cache.
const piSeed = "3.1415926535897932384626433832795028841971693993751058209749445923078164062862089986280348253421170679"

var piCache = struct {
	sync.Mutex
	digits uint32 // significant digits known correct
	value  *apd.Decimal
}{digits: 100, value: types.MustDecimal(piSeed)}

// piAt returns π rounded half-even to digits significant digits.
func piAt(digits uint32) *apd.Decimal {
	piCache.Lock()
	defer piCache.Unlock()
	if piCache.digits < digits {
		piCache.value = machin(digits + guardDigits)
		piCache.digits = digits
	}
	a := newArith(int64(digits))
	return a.round(piCache.value)
}

// machin evaluates π = 16·atan(1/5) − 4·atan(1/239).
func machin(precision uint32) *apd.Decimal {
	a := newArith(int64(precision))
	four := apd.New(4, 0)
	x := a.sub(a.mul(four, atanInverse(a, 5)), atanInverse(a, 239))
	return a.mul(four, x)
}

// atanInverse sums atan(1/n) = Σ (−1)^k / ((2k+1)·n^(2k+1)).
func atanInverse(a *arith, n int64) *apd.Decimal {
	eps := epsilon(a.ctx.Precision + 1)
	nn := apd.New(n*n, 0)
	power := a.quo(decOne, apd.New(n, 0))
	sum := new(apd.Decimal).Set(power)
	for k := int64(1); a.err == nil; k++ {
		power = a.quo(power, nn)
		term := a.quo(power, apd.New(2*k+1, 0))
		if term.Cmp(eps) < 0 {
			break
		}
		if k%2 == 1 {
			sum = a.sub(sum, term)
		} else {
			sum = a.add(sum, term)
		}
	}
	return sum
}

package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// radix returns the base of a number_base unit, stored as its factor.
func radix(u Unit) (int, error) {
	if u.Group != GroupNumberBase {
		return 0, types.NewConversionError(fmt.Sprintf("%s is not a number base", u.ID), nil)
	}
	n, err := u.Factor.Int64()
	if err != nil || n < 2 || n > 36 {
		return 0, fmt.Errorf("unit %s: radix must be an integer between 2 and 36, got %s", u.ID, u.Factor)
	}
	return int(n), nil
}

// ParseNumberBase reads the digit string value in the radix of u. Digits
// are case-insensitive, a leading '-' is allowed and empty input is 0.
func ParseNumberBase(u Unit, value string) (*big.Int, error) {
	base, err := radix(u)
	if err != nil {
		return nil, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(value, base)
	if !ok {
		return nil, types.NewConversionError(fmt.Sprintf("'%s' is not a base-%d number", value, base), nil)
	}
	return n, nil
}

// FormatNumberBase writes n in the radix of u with upper-case digits.
func FormatNumberBase(u Unit, n *big.Int) (string, error) {
	base, err := radix(u)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(n.Text(base)), nil
}

// ConvertNumberBase rewrites the digit string value from one radix into
// another.
func ConvertNumberBase(from, to Unit, value string) (string, error) {
	n, err := ParseNumberBase(from, value)
	if err != nil {
		return "", err
	}
	return FormatNumberBase(to, n)
}

func bigToDecimal(n *big.Int) *apd.Decimal {
	d, _, err := apd.NewFromString(n.String())
	if err != nil {
		return new(apd.Decimal)
	}
	return d
}

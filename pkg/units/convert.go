package units

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// ToBase converts value in unit u to the group's base unit.
func ToBase(env stdlib.Env, u Unit, value *apd.Decimal) (*apd.Decimal, error) {
	if u.Backward {
		return env.Quo(u.Factor, value)
	}
	v := value
	if u.Shift != nil {
		var err error
		if v, err = env.Add(v, u.Shift); err != nil {
			return nil, err
		}
	}
	return env.Mul(v, u.Factor)
}

// FromBase converts a base-unit value into unit u.
func FromBase(env stdlib.Env, u Unit, base *apd.Decimal) (*apd.Decimal, error) {
	if u.Backward {
		return env.Quo(u.Factor, base)
	}
	v, err := env.Quo(base, u.Factor)
	if err != nil {
		return nil, err
	}
	if u.Shift != nil {
		return env.Sub(v, u.Shift)
	}
	return v, nil
}

// Convert converts value from one unit to another of the same group.
// Currency units need exchange rates and number bases convert digit
// strings, so both are rejected here.
func Convert(env stdlib.Env, from, to Unit, value *apd.Decimal) (*apd.Decimal, error) {
	if from.Group != to.Group {
		return nil, types.NewConversionError("cannot convert "+string(from.Group)+" to "+string(to.Group), nil)
	}
	if from.Group == GroupCurrency {
		return nil, types.NewConversionError("currency conversion requires exchange rates", nil)
	}
	if from.Group == GroupNumberBase {
		return nil, types.NewConversionError("number bases convert digit strings", nil)
	}
	if from.ID == to.ID {
		return new(apd.Decimal).Set(value), nil
	}
	base, err := ToBase(env, from, value)
	if err != nil {
		return nil, err
	}
	return FromBase(env, to, base)
}

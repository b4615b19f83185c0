package stdlib

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

func dec(s string) *apd.Decimal {
	return types.MustDecimal(s)
}

func show(d *apd.Decimal) string {
	return types.FormatDecimal(d, 10)
}

func TestPow(t *testing.T) {
	env := NewEnv(Radians)
	tests := []struct {
		x, y string
		want string
	}{
		{"2", "10", "1024"},
		{"0", "0", "1"},
		{"0", "5", "0"},
		{"2", "-2", "0.25"},
		{"-2", "3", "-8"},
		{"9", "0.5", "3"},
		{"9999999999", "2", "99999999980000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.x+"^"+tt.y, func(t *testing.T) {
			got, err := Pow(env, dec(tt.x), dec(tt.y))
			require.NoError(t, err)
			assert.Equal(t, tt.want, show(got))
		})
	}
}

func TestPowErrors(t *testing.T) {
	env := NewEnv(Radians)

	_, err := Pow(env, dec("0"), dec("-1"))
	assert.ErrorIs(t, err, types.ErrDivideByZero)

	_, err = Pow(env, dec("-8"), dec("0.5"))
	assert.ErrorIs(t, err, types.ErrMalformed)
}

func TestFactorial(t *testing.T) {
	env := NewEnv(Radians)

	got, err := Factorial(env, dec("7"))
	require.NoError(t, err)
	assert.Equal(t, "5040", show(got))

	got, err = Factorial(env, dec("0"))
	require.NoError(t, err)
	assert.Equal(t, "1", show(got))

	_, err = Factorial(env, dec("2.5"))
	assert.ErrorIs(t, err, types.ErrMalformed)

	_, err = Factorial(env, dec("1001"))
	assert.ErrorIs(t, err, types.ErrOverflow)
}

func TestSqrtAndLogs(t *testing.T) {
	env := NewEnv(Radians)

	got, err := Sqrt(env, dec("16"))
	require.NoError(t, err)
	assert.Equal(t, "4", show(got))

	_, err = Sqrt(env, dec("-1"))
	assert.ErrorIs(t, err, types.ErrMalformed)

	got, err = Log(env, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "2", show(got))

	got, err = Ln(env, dec("1"))
	require.NoError(t, err)
	assert.Equal(t, "0", show(got))

	_, err = Ln(env, dec("0"))
	assert.ErrorIs(t, err, types.ErrMalformed)

	e, err := E(env)
	require.NoError(t, err)
	assert.Equal(t, "2.7182818285", show(e))
}

func TestTrigRadians(t *testing.T) {
	env := NewEnv(Radians)
	pi := Pi(env)
	half, err := env.Quo(pi, dec("2"))
	require.NoError(t, err)
	third, err := env.Quo(pi, dec("3"))
	require.NoError(t, err)

	tests := []struct {
		name string
		fn   Func
		x    *apd.Decimal
		want string
	}{
		{"sin(0)", Sin, dec("0"), "0"},
		{"sin(pi)", Sin, pi, "0"},
		{"sin(pi/2)", Sin, half, "1"},
		{"cos(pi)", Cos, pi, "-1"},
		{"cos(pi/2)", Cos, half, "0"},
		{"cos(pi/3)", Cos, third, "0.5"},
		{"sin(-pi/2)", Sin, neg(half), "-1"},
		{"sin(100)", Sin, dec("100"), "-0.5063656411"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(env, tt.x)
			require.NoError(t, err)
			assert.Equal(t, tt.want, show(got))
		})
	}
}

func TestTanAtPoleIsDivideByZero(t *testing.T) {
	_, err := Tan(NewEnv(Degrees), dec("90"))
	assert.ErrorIs(t, err, types.ErrDivideByZero)
}

func TestTrigDegrees(t *testing.T) {
	env := NewEnv(Degrees)
	tests := []struct {
		name string
		fn   Func
		x    string
		want string
	}{
		{"sin(30)", Sin, "30", "0.5"},
		{"cos(60)", Cos, "60", "0.5"},
		{"tan(45)", Tan, "45", "1"},
		{"asin(1)", Asin, "1", "90"},
		{"acos(0.5)", Acos, "0.5", "60"},
		{"atan(1)", Atan, "1", "45"},
		{"atan(-1)", Atan, "-1", "-45"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(env, dec(tt.x))
			require.NoError(t, err)
			assert.Equal(t, tt.want, show(got))
		})
	}
}

func TestInverseTrigRadians(t *testing.T) {
	env := NewEnv(Radians)

	got, err := Atan(env, dec("1"))
	require.NoError(t, err)
	assert.Equal(t, "0.7853981634", show(got))

	got, err = Asin(env, dec("0.5"))
	require.NoError(t, err)
	assert.Equal(t, "0.5235987756", show(got))

	got, err = Atan(env, dec("1000"))
	require.NoError(t, err)
	assert.Equal(t, "1.5697963271", show(got))

	_, err = Acos(env, dec("1.5"))
	assert.ErrorIs(t, err, types.ErrMalformed)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	c, ok := r.Canonical("arcsin")
	require.True(t, ok)
	assert.Equal(t, "sin⁻¹", c)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)

	_, err := r.Call(NewEnv(Radians), "nope", dec("1"))
	assert.ErrorIs(t, err, types.ErrMalformed)

	names := r.Names()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.GreaterOrEqual(t, len([]rune(names[i-1])), len([]rune(names[i])))
	}
}

func TestParseAngleMode(t *testing.T) {
	m, err := ParseAngleMode("deg")
	require.NoError(t, err)
	assert.Equal(t, Degrees, m)
	assert.Equal(t, "deg", m.String())

	for _, in := range []string{"Rad", "RADIANS", "rad", ""} {
		m, err := ParseAngleMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, Radians, m, in)
	}
	m, err = ParseAngleMode("Degrees")
	require.NoError(t, err)
	assert.Equal(t, Degrees, m)

	_, err = ParseAngleMode("grad")
	assert.Error(t, err)
}

// piRef is π to 200 decimal places.
const piRef = "3." +
	"14159265358979323846264338327950288419716939937510" +
	"58209749445923078164062862089986280348253421170679" +
	"82148086513282306647093844609550582231725359408128" +
	"48111745028410270193852110555964462294895493038196"

func TestPiBeyondSeed(t *testing.T) {
	got := piAt(190)
	var diff apd.Decimal
	_, err := apd.BaseContext.WithPrecision(250).Sub(&diff, got, dec(piRef))
	require.NoError(t, err)
	diff.Abs(&diff)
	assert.Negative(t, diff.Cmp(apd.New(1, -186)), "π off by %s", diff.String())

	env := Env{Angle: Radians, Scale: 160}
	assert.Equal(t, piRef[:152], types.FormatDecimal(Pi(env), 150))
}

func TestSinLargeOperand(t *testing.T) {
	env := NewEnv(Radians)

	got, err := Sin(env, apd.New(1, 99))
	require.NoError(t, err)
	assert.Equal(t, "-0.2725116019", show(got))

	_, err = Sin(env, apd.New(1, 1001))
	assert.ErrorIs(t, err, types.ErrOverflow)
	_, err = Tan(env, apd.New(-1, 1200))
	assert.ErrorIs(t, err, types.ErrOverflow)
}

package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

func TestEvaluateExpressions(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"94×π×89×cos(0.5)−3!÷9^(2)×√8", "23064.9104578494"},
		{"√(25)×2+10÷2", "15"},
		{"(3+4)×(5−2)", "21"},
		{"8÷4+2×3", "8"},
		{"2^3+4^2−5×6", "-6"},
		{"(10−2)^2÷8+3×2", "14"},
		{"7!÷3!−5!÷2!", "780"},
		{"(2^2+3^3)÷5−√(16)×2", "-1.8"},
		{"10×log(100)+2^4−3^2", "27"},
		{"2^6−2^5+2^4−2^3+2^−2^1+2^0", "41.25"},
		{"2×(3+4)×(5−2)÷6", "7"},
		{"(√9)÷6", "0.5"},
		{"42", "42"},
		{"9999999999*9999999999", "99999999980000000001"},
		{"1÷3", "0.3333333333"},
		{"((((((42))))))", "42"},
		{"0^0", "1"},
		{"sin(0)", "0"},
		{"sin(π)", "0"},
		{"sin(π÷2)", "1"},
		{"cos(π)", "-1"},
		{"cos(π÷2)", "0"},
		{"cos(π÷3)", "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Evaluate(tt.input, Radians, 10)
			require.True(t, res.OK(), "unexpected failure: %v", res.Err)
			assert.Equal(t, tt.want, res.String())
		})
	}
}

func TestEvaluateHighPrecision(t *testing.T) {
	res := Evaluate("sin(π÷3)×cos(π÷6)+tan(π÷4)−√3", Radians, 15)
	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	assert.Equal(t, "0.017949192431123", res.String())
}

func TestEvaluateAliasesAndImplicitMultiplication(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2*3-4/2", "4"},
		{"2pi", "6.2831853072"},
		{"3(4)", "12"},
		{"(1+1)(2+1)", "6"},
		{"2√4", "4"},
		{"sqrt(16)", "4"},
		{"-3+5", "2"},
		{"−(2+3)", "-5"},
		{"2×−3", "-6"},
		{"−2^2", "-4"},
		{"3!!", "720"},
		{"50%", "0.5"},
		{"200×10%", "20"},
		{"(2+3", "5"},
		{"((1+2)×3", "9"},
		{"  1 + 2  ", "3"},
		{"（１＋２）×３", "9"},
		{"", "0"},
		{"ln(e)", "1"},
		{"exp(0)", "1"},
		{".5+5.", "5.5"},
		{"0.1+0.2", "0.3"},
		{"1−1.0", "0"},
		{"−0×5", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Evaluate(tt.input, Radians, 10)
			require.True(t, res.OK(), "unexpected failure: %v", res.Err)
			assert.Equal(t, tt.want, res.String())
		})
	}
}

func TestEvaluateDegrees(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"sin(30)", "0.5"},
		{"cos(180)", "-1"},
		{"tan(45)", "1"},
		{"asin(1)", "90"},
		{"arccos(0)", "90"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Evaluate(tt.input, Degrees, 10)
			require.True(t, res.OK(), "unexpected failure: %v", res.Err)
			assert.Equal(t, tt.want, res.String())
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		input string
		kind  types.ErrorKind
	}{
		{"1÷0", types.KindDivideByZero},
		{"5÷(2−2)", types.KindDivideByZero},
		{"0^−1", types.KindDivideByZero},
		{"42+", types.KindMalformed},
		{"×3", types.KindMalformed},
		{"2+)", types.KindMalformed},
		{"1+2)", types.KindMalformed},
		{"()", types.KindMalformed},
		{"2×()", types.KindMalformed},
		{"1.2.3", types.KindMalformed},
		{"2#3", types.KindMalformed},
		{"+3", types.KindMalformed},
		{"sin 3", types.KindMalformed},
		{"sin", types.KindMalformed},
		{"(", types.KindMalformed},
		{"(−1)!", types.KindMalformed},
		{"2.5!", types.KindMalformed},
		{"1001!", types.KindOverflow},
		{"√(−4)", types.KindMalformed},
		{"ln(0)", types.KindMalformed},
		{"(−8)^0.5", types.KindMalformed},
		{"asin(2)", types.KindMalformed},
		{"12 34", types.KindMalformed},
		{".", types.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Evaluate(tt.input, Radians, 10)
			require.False(t, res.OK())
			assert.Equal(t, tt.kind, res.Kind())
		})
	}
}

func TestEvaluatePastHundredDigits(t *testing.T) {
	const pi150 = "3." +
		"14159265358979323846264338327950288419716939937510" +
		"58209749445923078164062862089986280348253421170679" +
		"82148086513282306647093844609550582231725359408128"

	res := Evaluate("π", Radians, 150)
	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	assert.Equal(t, pi150, res.String())

	for _, input := range []string{"sin(π)", "cos(π÷2)", "sin(2π)−0"} {
		res := Evaluate(input, Radians, 150)
		require.True(t, res.OK(), "%s: %v", input, res.Err)
		assert.Equal(t, "0", res.String(), input)
	}

	res = Evaluate("sin(30)", Degrees, 150)
	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	assert.Equal(t, "0.5", res.String())
}

func TestEvaluateHugeTrigOperand(t *testing.T) {
	res := Evaluate("sin(10^99)", Radians, 10)
	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	assert.Equal(t, "-0.2725116019", res.String())
}

func TestTanAtPole(t *testing.T) {
	res := Evaluate("tan(90)", Degrees, 10)
	assert.Equal(t, types.KindDivideByZero, res.Kind())
}

func TestPrecisionDoesNotMutateValue(t *testing.T) {
	res := Evaluate("2÷3", Radians, 2)
	require.True(t, res.OK())
	assert.Equal(t, "0.67", res.String())

	res.Precision = 5
	assert.Equal(t, "0.66667", res.String())
}

func TestTokenizeUnaryMinus(t *testing.T) {
	tokens, err := Tokenize("−1−(−2)×−3")
	require.NoError(t, err)

	var got []TokenType
	for _, tok := range tokens {
		got = append(got, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokenNegate, TokenNumber, TokenMinus, TokenLParen, TokenNegate, TokenNumber,
		TokenRParen, TokenMultiply, TokenNegate, TokenNumber,
	}, got)
}

func TestTokenizeGreedyFunctions(t *testing.T) {
	tokens, err := Tokenize("arcsin(1)+exp(e)")
	require.NoError(t, err)
	require.Len(t, tokens, 9)
	assert.Equal(t, Token{Type: TokenFunction, Value: "sin⁻¹", Pos: 0}, tokens[0])
	assert.Equal(t, TokenFunction, tokens[5].Type)
	assert.Equal(t, "exp", tokens[5].Value)
	assert.Equal(t, TokenConstant, tokens[7].Type)
	assert.Equal(t, "e", tokens[7].Value)
}

func TestTokenizeErrorPosition(t *testing.T) {
	_, err := Tokenize("1+2$")
	require.Error(t, err)
	var ce *types.CalcError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Pos)
}

func TestSerializeRoundTrip(t *testing.T) {
	inputs := []string{
		"94×π×89×cos(0.5)−3!÷9^(2)×√8",
		"2pi(3)",
		"-1*-(2/3)",
		"asin(0.5)+atan(1)+acos(0)",
		"sqrt(2)^2",
		"ee",
		"exp(1)e",
		"50%×(1+2)!",
		"1.5−−2",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first, err := Tokenize(in)
			require.NoError(t, err)
			second, err := Tokenize(Serialize(first))
			require.NoError(t, err)
			require.Len(t, second, len(first))
			for i := range first {
				assert.True(t, first[i].Equal(second[i]), "token %d: %v != %v", i, first[i], second[i])
			}
		})
	}
}

func TestParseString(t *testing.T) {
	e, err := Parse("2pi")
	require.NoError(t, err)
	assert.Equal(t, "2×π", e.String())
	assert.Len(t, e.Postfix, 3)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in        string
		precision int
		want      string
	}{
		{"1.23456", 2, "1.23"},
		{"2.5", 0, "2"},
		{"3.5", 0, "4"},
		{"-0.0001", 2, "0"},
		{"1E+3", 2, "1000"},
		{"100.000", 10, "100"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(types.MustDecimal(tt.in), tt.precision))
		})
	}
}

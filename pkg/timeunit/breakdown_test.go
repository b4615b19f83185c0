package timeunit

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

func plain(d *apd.Decimal) string {
	return types.PlainString(d)
}

func TestDecomposeDayHourMinuteSecond(t *testing.T) {
	b, err := DecomposeUnit(apd.New(90061, 0), Second)
	require.NoError(t, err)

	assert.False(t, b.Negative)
	assert.Equal(t, "1", plain(b.Day))
	assert.Equal(t, "1", plain(b.Hour))
	assert.Equal(t, "1", plain(b.Minute))
	assert.Equal(t, "1", plain(b.Second))
	assert.Equal(t, "0", plain(b.Millisecond))
	assert.Equal(t, "0", plain(b.Microsecond))
	assert.Equal(t, "0", plain(b.Nanosecond))
	assert.Equal(t, "0", plain(b.Attosecond))
	assert.Equal(t, "1d 1h 1m 1s", b.String())
}

func TestDecomposeAllFields(t *testing.T) {
	// 2d 3h 4m 5s 6ms 7µs 8ns 9as
	total := types.MustDecimal("183845006007008000000009")
	b, err := Decompose(total)
	require.NoError(t, err)

	got := make([]string, 0, 8)
	for _, f := range b.Fields() {
		got = append(got, plain(f.Value))
	}
	assert.Equal(t, []string{"2", "3", "4", "5", "6", "7", "8", "9"}, got)
}

func TestDecomposeNegative(t *testing.T) {
	b, err := DecomposeUnit(types.MustDecimal("-1.5"), Minute)
	require.NoError(t, err)

	assert.True(t, b.Negative)
	assert.Equal(t, "1", plain(b.Minute))
	assert.Equal(t, "30", plain(b.Second))
	assert.Equal(t, "-1m 30s", b.String())
}

func TestDecomposeBelowNanosecond(t *testing.T) {
	b, err := Decompose(types.MustDecimal("123.4500"))
	require.NoError(t, err)

	for _, f := range b.Fields()[:7] {
		assert.True(t, f.Value.IsZero(), f.Name)
	}
	assert.Equal(t, "123.45", plain(b.Attosecond))
}

func TestDecomposeBelowAttosecond(t *testing.T) {
	b, err := DecomposeUnit(types.MustDecimal("-0.25"), Attosecond)
	require.NoError(t, err)

	assert.True(t, b.Negative)
	assert.Equal(t, "0.25", plain(b.Attosecond))
	assert.True(t, b.Day.IsZero())
}

func TestDecomposeRoundsFractionalAttoseconds(t *testing.T) {
	b, err := Decompose(types.MustDecimal("1000000000.5"))
	require.NoError(t, err)

	assert.Equal(t, "1", plain(b.Nanosecond))
	assert.Equal(t, "0", plain(b.Attosecond))
}

func TestDecomposeRoundingCarriesIntoDay(t *testing.T) {
	b, err := Decompose(types.MustDecimal("86399999999999999999999.6"))
	require.NoError(t, err)

	assert.Equal(t, "1d", b.String())
	assert.Equal(t, "1", plain(b.Day))
	assert.Equal(t, "0", plain(b.Hour))
}

func TestDecomposeZero(t *testing.T) {
	b, err := Decompose(apd.New(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "0as", b.String())
}

func TestBreakdownJSON(t *testing.T) {
	b, err := DecomposeUnit(apd.New(3600, 0), Second)
	require.NoError(t, err)

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "1", got["hour"])
	assert.Equal(t, "0", got["day"])
	assert.Equal(t, false, got["negative"])
}

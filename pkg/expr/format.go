package expr

import (
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// Serialize concatenates the canonical spelling of each token.
func Serialize(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Value)
	}
	return b.String()
}

// Format renders v rounded half-even to precision fractional digits, in
// plain notation with trailing zeros trimmed and without a negative zero.
func Format(v *apd.Decimal, precision int) string {
	return types.FormatDecimal(v, precision)
}

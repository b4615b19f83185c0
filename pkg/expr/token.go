// Package expr implements the calculator expression language: a tokenizer,
// a shunting-yard conversion to postfix and a postfix evaluator on
// arbitrary-precision decimals.
package expr

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Operands
	TokenNumber   TokenType = iota // decimal literal
	TokenConstant                  // π, e

	// Functions and brackets
	TokenFunction // sin, cos, ..., always followed by (
	TokenLParen   // (
	TokenRParen   // )

	// Binary operators
	TokenPlus     // +
	TokenMinus    // − (subtraction)
	TokenMultiply // ×
	TokenDivide   // ÷
	TokenPower    // ^

	// Unary operators
	TokenNegate    // − (prefix)
	TokenSqrt      // √ (prefix)
	TokenFactorial // ! (postfix)
	TokenPercent   // % (postfix)
)

// Canonical symbols.
const (
	SymPlus      = "+"
	SymMinus     = "−"
	SymMultiply  = "×"
	SymDivide    = "÷"
	SymPower     = "^"
	SymSqrt      = "√"
	SymFactorial = "!"
	SymPercent   = "%"
	SymLParen    = "("
	SymRParen    = ")"
	SymPi        = "π"
	SymE         = "e"
	SymDot       = "."
)

// Token represents a single lexical token. Value always holds the
// canonical spelling, so concatenating Values re-tokenizes to the same
// sequence.
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune offset in source; implicit tokens take the next token's offset
}

// Equal compares type and canonical value, ignoring position.
func (t Token) Equal(o Token) bool {
	return t.Type == o.Type && t.Value == o.Value
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenNumber:
		return "NUMBER"
	case TokenConstant:
		return "CONSTANT"
	case TokenFunction:
		return "FUNCTION"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenPlus:
		return "PLUS"
	case TokenMinus:
		return "MINUS"
	case TokenMultiply:
		return "MULTIPLY"
	case TokenDivide:
		return "DIVIDE"
	case TokenPower:
		return "POWER"
	case TokenNegate:
		return "NEGATE"
	case TokenSqrt:
		return "SQRT"
	case TokenFactorial:
		return "FACTORIAL"
	case TokenPercent:
		return "PERCENT"
	default:
		return "UNKNOWN"
	}
}

// endsOperand reports whether a token of this type can close an operand.
func (t TokenType) endsOperand() bool {
	switch t {
	case TokenNumber, TokenConstant, TokenRParen, TokenFactorial, TokenPercent:
		return true
	}
	return false
}

// startsOperand reports whether a token of this type can open an operand.
func (t TokenType) startsOperand() bool {
	switch t {
	case TokenNumber, TokenConstant, TokenLParen, TokenFunction, TokenSqrt:
		return true
	}
	return false
}

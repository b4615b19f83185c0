package expr

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/width"

	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// symbol is one accepted spelling of a non-numeric token.
type symbol struct {
	spelling  []rune
	typ       TokenType
	canonical string
}

// symbolTable lists every spelling, longest first.
var symbolTable = buildSymbols(stdlib.Default)

func buildSymbols(reg *stdlib.Registry) []symbol {
	fixed := []struct {
		spelling  string
		typ       TokenType
		canonical string
	}{
		{"+", TokenPlus, SymPlus},
		{"-", TokenMinus, SymMinus},
		{"−", TokenMinus, SymMinus},
		{"*", TokenMultiply, SymMultiply},
		{"×", TokenMultiply, SymMultiply},
		{"·", TokenMultiply, SymMultiply},
		{"/", TokenDivide, SymDivide},
		{"÷", TokenDivide, SymDivide},
		{"^", TokenPower, SymPower},
		{"√", TokenSqrt, SymSqrt},
		{"sqrt", TokenSqrt, SymSqrt},
		{"!", TokenFactorial, SymFactorial},
		{"%", TokenPercent, SymPercent},
		{"(", TokenLParen, SymLParen},
		{")", TokenRParen, SymRParen},
		{"π", TokenConstant, SymPi},
		{"pi", TokenConstant, SymPi},
		{"e", TokenConstant, SymE},
	}

	var syms []symbol
	for _, f := range fixed {
		syms = append(syms, symbol{spelling: []rune(f.spelling), typ: f.typ, canonical: f.canonical})
	}
	for _, name := range reg.Names() {
		canonical, _ := reg.Canonical(name)
		syms = append(syms, symbol{spelling: []rune(name), typ: TokenFunction, canonical: canonical})
	}
	sort.SliceStable(syms, func(i, j int) bool {
		return len(syms[i].spelling) > len(syms[j].spelling)
	})
	return syms
}

// Lexer tokenizes a calculator expression.
type Lexer struct {
	input  []rune
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer for the given input. Full-width characters
// are folded to their narrow forms and ASCII letters are lower-cased.
func NewLexer(input string) *Lexer {
	folded := width.Narrow.String(input)
	return &Lexer{input: []rune(strings.Map(foldRune, folded))}
}

func foldRune(r rune) rune {
	if r < unicode.MaxASCII {
		return unicode.ToLower(r)
	}
	return r
}

// Tokenize converts input into tokens. Empty (or all-whitespace) input is
// treated as "0".
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

// Tokenize scans the entire input and returns all tokens.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if err := l.emit(tok); err != nil {
			return nil, err
		}
	}
	if len(l.tokens) == 0 {
		l.tokens = append(l.tokens, Token{Type: TokenNumber, Value: "0", Pos: 0})
	}
	return l.tokens, nil
}

// emit appends tok, inserting an implicit × between adjacent operands.
func (l *Lexer) emit(tok Token) error {
	if n := len(l.tokens); n > 0 {
		prev := l.tokens[n-1]
		if prev.Type.endsOperand() && tok.Type.startsOperand() {
			if prev.Type == TokenNumber && tok.Type == TokenNumber {
				return types.NewMalformedErrorAt(tok.Pos, "missing operator between numbers")
			}
			l.tokens = append(l.tokens, Token{Type: TokenMultiply, Value: SymMultiply, Pos: tok.Pos})
		}
	}
	l.tokens = append(l.tokens, tok)
	return nil
}

// next returns the next token from the input.
func (l *Lexer) next() (Token, error) {
	ch := l.input[l.pos]

	if isDigit(ch) || ch == '.' {
		return l.readNumber()
	}

	sym, ok := l.matchSymbol()
	if !ok {
		return Token{}, types.NewMalformedErrorAt(l.pos, "unexpected character %q", string(ch))
	}
	start := l.pos
	l.pos += len(sym.spelling)
	tok := Token{Type: sym.typ, Value: sym.canonical, Pos: start}

	switch sym.typ {
	case TokenMinus:
		if !l.afterOperand() {
			tok.Type = TokenNegate
		}
	case TokenPlus:
		if !l.afterOperand() {
			return Token{}, types.NewMalformedErrorAt(start, "unexpected '+'")
		}
	}
	return tok, nil
}

// afterOperand reports whether the previous token closes an operand, which
// makes a following minus binary.
func (l *Lexer) afterOperand() bool {
	if len(l.tokens) == 0 {
		return false
	}
	return l.tokens[len(l.tokens)-1].Type.endsOperand()
}

// matchSymbol finds the longest spelling at the current position.
func (l *Lexer) matchSymbol() (symbol, bool) {
	rest := l.input[l.pos:]
	for _, s := range symbolTable {
		if hasRunePrefix(rest, s.spelling) {
			return s, true
		}
	}
	return symbol{}, false
}

// readNumber reads consecutive digits with at most one decimal point.
func (l *Lexer) readNumber() (Token, error) {
	start := l.pos
	seenDot := false
	digits := 0
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '.' {
			if seenDot {
				return Token{}, types.NewMalformedErrorAt(l.pos, "second decimal point in number")
			}
			seenDot = true
		} else if isDigit(ch) {
			digits++
		} else {
			break
		}
		l.pos++
	}
	if digits == 0 {
		return Token{}, types.NewMalformedErrorAt(start, "decimal point without digits")
	}
	return Token{Type: TokenNumber, Value: string(l.input[start:l.pos]), Pos: start}, nil
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

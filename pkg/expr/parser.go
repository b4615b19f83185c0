package expr

import (
	"github.com/lemonberrylabs/numberhub/pkg/types"
)

type fixity int

const (
	infix fixity = iota
	prefix
	postfix
)

// opInfo describes how an operator binds.
type opInfo struct {
	prec       int
	rightAssoc bool
	arity      int
	fix        fixity
}

// operators is the precedence table. Functions are not listed: they apply
// to the bracket group that follows them.
var operators = map[TokenType]opInfo{
	TokenPlus:      {prec: 1, arity: 2, fix: infix},
	TokenMinus:     {prec: 1, arity: 2, fix: infix},
	TokenMultiply:  {prec: 2, arity: 2, fix: infix},
	TokenDivide:    {prec: 2, arity: 2, fix: infix},
	TokenNegate:    {prec: 3, rightAssoc: true, arity: 1, fix: prefix},
	TokenPower:     {prec: 4, rightAssoc: true, arity: 2, fix: infix},
	TokenFactorial: {prec: 6, arity: 1, fix: postfix},
	TokenPercent:   {prec: 6, arity: 1, fix: postfix},
	TokenSqrt:      {prec: 7, rightAssoc: true, arity: 1, fix: prefix},
}

// Expression is a tokenized expression together with its postfix form.
type Expression struct {
	Tokens  []Token
	Postfix []Token
}

// Parse tokenizes input and converts it to postfix.
func Parse(input string) (*Expression, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	post, err := ToPostfix(tokens)
	if err != nil {
		return nil, err
	}
	return &Expression{Tokens: tokens, Postfix: post}, nil
}

// String returns the canonical serialization of the expression.
func (e *Expression) String() string {
	return Serialize(e.Tokens)
}

// Parser converts an infix token stream to postfix order.
type Parser struct {
	tokens []Token
	pos    int
	output []Token
	stack  []Token
}

// ToPostfix runs the shunting-yard algorithm over tokens. Unclosed left
// brackets are closed at end of input; every other structural problem is
// reported as Malformed.
func ToPostfix(tokens []Token) ([]Token, error) {
	p := &Parser{tokens: tokens}
	return p.run()
}

func (p *Parser) current() Token {
	return p.tokens[p.pos]
}

func (p *Parser) previous() (Token, bool) {
	if p.pos == 0 {
		return Token{}, false
	}
	return p.tokens[p.pos-1], true
}

func (p *Parser) push(t Token) {
	p.stack = append(p.stack, t)
}

func (p *Parser) top() (Token, bool) {
	if len(p.stack) == 0 {
		return Token{}, false
	}
	return p.stack[len(p.stack)-1], true
}

func (p *Parser) pop() Token {
	t := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return t
}

// popWhile moves operators to the output while they bind tighter than op.
func (p *Parser) popWhile(op opInfo) {
	for {
		t, ok := p.top()
		if !ok || t.Type == TokenLParen || t.Type == TokenFunction {
			return
		}
		o := operators[t.Type]
		if o.prec > op.prec || (o.prec == op.prec && !op.rightAssoc) {
			p.output = append(p.output, p.pop())
			continue
		}
		return
	}
}

func (p *Parser) run() ([]Token, error) {
	expectOperand := true
	for ; p.pos < len(p.tokens); p.pos++ {
		tok := p.current()

		if prev, ok := p.previous(); ok && prev.Type == TokenFunction && tok.Type != TokenLParen {
			return nil, types.NewMalformedErrorAt(tok.Pos, "function %s requires '('", prev.Value)
		}

		if expectOperand {
			switch tok.Type {
			case TokenNumber, TokenConstant:
				p.output = append(p.output, tok)
				expectOperand = false
			case TokenNegate, TokenSqrt, TokenFunction, TokenLParen:
				p.push(tok)
			case TokenRParen:
				if prev, ok := p.previous(); ok && prev.Type == TokenLParen {
					return nil, types.NewMalformedErrorAt(tok.Pos, "empty brackets")
				}
				return nil, types.NewMalformedErrorAt(tok.Pos, "missing operand before ')'")
			default:
				return nil, types.NewMalformedErrorAt(tok.Pos, "missing operand before '%s'", tok.Value)
			}
			continue
		}

		switch tok.Type {
		case TokenPlus, TokenMinus, TokenMultiply, TokenDivide, TokenPower:
			op := operators[tok.Type]
			p.popWhile(op)
			p.push(tok)
			expectOperand = true
		case TokenFactorial, TokenPercent:
			p.popWhile(operators[tok.Type])
			p.output = append(p.output, tok)
		case TokenRParen:
			if err := p.closeBracket(tok); err != nil {
				return nil, err
			}
		default:
			return nil, types.NewMalformedErrorAt(tok.Pos, "missing operator before '%s'", tok.Value)
		}
	}

	if len(p.tokens) > 0 && p.tokens[len(p.tokens)-1].Type == TokenFunction {
		last := p.tokens[len(p.tokens)-1]
		return nil, types.NewMalformedErrorAt(last.Pos, "function %s requires '('", last.Value)
	}
	if expectOperand {
		pos := -1
		if len(p.tokens) > 0 {
			pos = p.tokens[len(p.tokens)-1].Pos
		}
		return nil, types.NewMalformedErrorAt(pos, "missing operand at end of expression")
	}

	for len(p.stack) > 0 {
		t := p.pop()
		if t.Type == TokenLParen {
			continue
		}
		p.output = append(p.output, t)
	}
	return p.output, nil
}

// closeBracket pops to the matching '(' and applies a pending function.
func (p *Parser) closeBracket(tok Token) error {
	for {
		t, ok := p.top()
		if !ok {
			return types.NewMalformedErrorAt(tok.Pos, "unmatched ')'")
		}
		if t.Type == TokenLParen {
			p.pop()
			break
		}
		p.output = append(p.output, p.pop())
	}
	if t, ok := p.top(); ok && t.Type == TokenFunction {
		p.output = append(p.output, p.pop())
	}
	return nil
}

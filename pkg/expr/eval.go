package expr

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// AngleMode selects radians or degrees for trigonometric functions.
type AngleMode = stdlib.AngleMode

// Angle modes.
const (
	Radians = stdlib.Radians
	Degrees = stdlib.Degrees
)

// Functions resolves named functions during evaluation.
type Functions interface {
	Call(env stdlib.Env, name string, x *apd.Decimal) (*apd.Decimal, error)
}

// Evaluator evaluates postfix token streams.
type Evaluator struct {
	Env   stdlib.Env
	Funcs Functions
}

// NewEvaluator returns an evaluator using the built-in function table.
func NewEvaluator(mode AngleMode) *Evaluator {
	return &Evaluator{Env: stdlib.NewEnv(mode), Funcs: stdlib.Default}
}

// Evaluate parses and evaluates text, returning a tagged result whose
// String form is rounded to precision fractional digits. It never panics.
func Evaluate(text string, mode AngleMode, precision int) (res types.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = types.Failure(types.NewMalformedError(fmt.Sprintf("evaluation failed: %v", r)))
		}
	}()

	e := NewEvaluator(mode)
	if precision+10 > e.Env.Scale {
		e.Env.Scale = precision + 10
	}

	parsed, err := Parse(text)
	if err != nil {
		return types.Failure(err)
	}
	v, err := e.Eval(parsed.Postfix)
	if err != nil {
		return types.Failure(err)
	}
	return types.Success(v, precision)
}

// Eval evaluates a postfix token stream produced by ToPostfix.
func (e *Evaluator) Eval(postfix []Token) (*apd.Decimal, error) {
	stack := make([]*apd.Decimal, 0, len(postfix))

	pop := func(tok Token) (*apd.Decimal, error) {
		if len(stack) == 0 {
			return nil, types.NewMalformedErrorAt(tok.Pos, "missing operand for '%s'", tok.Value)
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	for _, tok := range postfix {
		var (
			v   *apd.Decimal
			err error
		)
		switch tok.Type {
		case TokenNumber:
			v, err = types.ParseDecimal(tok.Value)
		case TokenConstant:
			v, err = e.constant(tok)
		case TokenPlus, TokenMinus, TokenMultiply, TokenDivide, TokenPower:
			var x, y *apd.Decimal
			if y, err = pop(tok); err != nil {
				return nil, err
			}
			if x, err = pop(tok); err != nil {
				return nil, err
			}
			v, err = e.binary(tok, x, y)
		case TokenNegate, TokenSqrt, TokenFactorial, TokenPercent, TokenFunction:
			var x *apd.Decimal
			if x, err = pop(tok); err != nil {
				return nil, err
			}
			v, err = e.unary(tok, x)
		default:
			return nil, types.NewMalformedErrorAt(tok.Pos, "unexpected '%s'", tok.Value)
		}
		if err != nil {
			return nil, err
		}
		stack = append(stack, v)
	}

	if len(stack) != 1 {
		return nil, types.NewMalformedError("malformed expression")
	}
	return stack[0], nil
}

func (e *Evaluator) constant(tok Token) (*apd.Decimal, error) {
	switch tok.Value {
	case SymPi:
		return stdlib.Pi(e.Env), nil
	case SymE:
		return stdlib.E(e.Env)
	default:
		return nil, types.NewMalformedErrorAt(tok.Pos, "unknown constant '%s'", tok.Value)
	}
}

func (e *Evaluator) binary(tok Token, x, y *apd.Decimal) (*apd.Decimal, error) {
	switch tok.Type {
	case TokenPlus:
		return e.Env.Add(x, y)
	case TokenMinus:
		return e.Env.Sub(x, y)
	case TokenMultiply:
		return e.Env.Mul(x, y)
	case TokenDivide:
		return e.Env.Quo(x, y)
	case TokenPower:
		return stdlib.Pow(e.Env, x, y)
	default:
		return nil, types.NewMalformedErrorAt(tok.Pos, "unexpected '%s'", tok.Value)
	}
}

func (e *Evaluator) unary(tok Token, x *apd.Decimal) (*apd.Decimal, error) {
	switch tok.Type {
	case TokenNegate:
		return stdlib.Negate(e.Env, x)
	case TokenSqrt:
		return stdlib.Sqrt(e.Env, x)
	case TokenFactorial:
		return stdlib.Factorial(e.Env, x)
	case TokenPercent:
		return stdlib.Percent(e.Env, x)
	case TokenFunction:
		return e.Funcs.Call(e.Env, tok.Value, x)
	default:
		return nil, types.NewMalformedErrorAt(tok.Pos, "unexpected '%s'", tok.Value)
	}
}

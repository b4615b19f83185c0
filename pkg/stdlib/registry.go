// Package stdlib implements the calculator's numeric functions on
// arbitrary-precision decimals.
package stdlib

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/apd/v3"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// Func is a single-argument calculator function.
type Func func(env Env, x *apd.Decimal) (*apd.Decimal, error)

// Registry maps canonical function names to their implementations.
type Registry struct {
	funcs   map[string]Func
	aliases map[string]string
}

// Default is the registry used by the evaluator.
var Default = NewRegistry()

// NewRegistry creates a registry with all built-in functions registered.
func NewRegistry() *Registry {
	r := &Registry{
		funcs:   make(map[string]Func),
		aliases: make(map[string]string),
	}
	r.registerTrig()
	r.registerLog()
	return r
}

func (r *Registry) registerTrig() {
	r.Register("sin", Sin)
	r.Register("cos", Cos)
	r.Register("tan", Tan)
	r.Register("sin⁻¹", Asin, "asin", "arcsin")
	r.Register("cos⁻¹", Acos, "acos", "arccos")
	r.Register("tan⁻¹", Atan, "atan", "arctan")
}

func (r *Registry) registerLog() {
	r.Register("ln", Ln)
	r.Register("log", Log)
	r.Register("exp", Exp)
}

// Register adds a function under its canonical name and any aliases.
func (r *Registry) Register(name string, fn Func, aliases ...string) {
	r.funcs[name] = fn
	for _, a := range aliases {
		r.aliases[a] = name
	}
}

// Canonical resolves name or one of its aliases to the canonical name.
func (r *Registry) Canonical(name string) (string, bool) {
	if _, ok := r.funcs[name]; ok {
		return name, true
	}
	c, ok := r.aliases[name]
	return c, ok
}

// Lookup returns the function registered under name or an alias of it.
func (r *Registry) Lookup(name string) (Func, bool) {
	c, ok := r.Canonical(name)
	if !ok {
		return nil, false
	}
	return r.funcs[c], true
}

// Call applies the named function to x.
func (r *Registry) Call(env Env, name string, x *apd.Decimal) (*apd.Decimal, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, types.NewMalformedError(fmt.Sprintf("unknown function '%s'", name))
	}
	return fn(env, x)
}

// Names returns every spelling the registry accepts, canonical names and
// aliases, longest first so that tokenizers can match greedily.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs)+len(r.aliases))
	for n := range r.funcs {
		names = append(names, n)
	}
	for a := range r.aliases {
		names = append(names, a)
	}
	sort.Slice(names, func(i, j int) bool {
		li, lj := len([]rune(names[i])), len([]rune(names[j]))
		if li != lj {
			return li > lj
		}
		return names[i] < names[j]
	})
	return names
}

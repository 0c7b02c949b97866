// Package expressions compiles the boolean expression leaves of a condition.
// Three languages are available: CEL, Expr and jq.
package expressions

import (
	"context"
	"sort"

	"github.com/rendis/opfilter/pkg/schema"
)

// Vars are the variables visible to an expression.
//
//   - item:    the element currently being evaluated
//   - scope:   alias -> element bound by enclosing list conditions
//   - context: the ambient data graph
type Vars struct {
	Item    any
	Scope   map[string]any
	Context any
}

func (v Vars) asMap() map[string]any {
	scope := v.Scope
	if scope == nil {
		scope = map[string]any{}
	}
	return map[string]any{
		"item":    v.Item,
		"scope":   scope,
		"context": v.Context,
	}
}

// Engine compiles expressions written in one language.
type Engine interface {
	Name() string
	Compile(expression string) (Program, error)
}

// Program is a compiled expression. Programs hold no per-evaluation state
// and may be evaluated concurrently.
type Program interface {
	Eval(ctx context.Context, vars Vars) (any, error)
}

// Registry maps engine names to engines.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry returns a registry with the cel, expr and jq engines.
func NewRegistry() (*Registry, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	r := &Registry{engines: make(map[string]Engine, 3)}
	r.Register(celEngine)
	r.Register(NewExprEngine())
	r.Register(NewGoJQEngine())
	return r, nil
}

// Register adds or replaces an engine under its name.
func (r *Registry) Register(e Engine) {
	r.engines[e.Name()] = e
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (Engine, error) {
	e, ok := r.engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown expression engine %q", name).
			WithDetails(map[string]any{"engines": r.Names()})
	}
	return e, nil
}

// Has reports whether an engine is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.engines[name]
	return ok
}

// Names lists registered engine names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func compileError(engine, expression string, err error) *schema.FilterError {
	return schema.NewErrorf(schema.ErrCodeValidation,
		"%s compile error in %q: %s", engine, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression, "engine": engine})
}

func evalError(engine, expression string, err error) *schema.FilterError {
	return schema.NewErrorf(schema.ErrCodeValueResolution,
		"%s evaluation failed for %q: %s", engine, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression, "engine": engine})
}

func cancelled(err error) *schema.FilterError {
	return schema.NewError(schema.ErrCodeCancelled, "expression evaluation cancelled").WithCause(err)
}

func emptyExpression(engine string) *schema.FilterError {
	return schema.NewErrorf(schema.ErrCodeValidation, "empty %s expression", engine)
}

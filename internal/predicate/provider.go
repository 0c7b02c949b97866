// Package predicate compiles condition trees into predicates over elements
// of a partially dynamic data graph.
//
// A condition is built once into a Provider tree. Resolving a provider
// against a Scope produces a Predicate; predicates hold no mutable state and
// can be evaluated any number of times, concurrently, against Env bindings.
package predicate

import (
	"context"

	"github.com/rendis/opfilter/pkg/schema"
)

// Predicate reports whether the elements bound in env satisfy a condition.
type Predicate func(ctx context.Context, env *Env) (bool, error)

// Provider turns a built condition into a Predicate for a scope.
type Provider interface {
	Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error)

func (f ProviderFunc) Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
	return f(ctx, pc, scope)
}

// Deferred returns a provider that builds cond with the ProviderContext's
// dependencies when resolved.
func Deferred(cond *schema.Condition) Provider {
	return ProviderFunc(func(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
		p, err := pc.Build(cond)
		if err != nil {
			return nil, err
		}
		return p.Resolve(ctx, pc, scope)
	})
}

// Const returns a provider whose predicate is always v.
func Const(v bool) Provider {
	return ProviderFunc(func(context.Context, *ProviderContext, *Scope) (Predicate, error) {
		return func(context.Context, *Env) (bool, error) { return v, nil }, nil
	})
}

func cancelled(err error) *schema.FilterError {
	return schema.NewError(schema.ErrCodeCancelled, "condition evaluation cancelled").WithCause(err)
}

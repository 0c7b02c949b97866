package predicate

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/rendis/opfilter/internal/logging"
	"github.com/rendis/opfilter/pkg/schema"
)

// Match evaluates a compiled condition against one element.
type Match[T any] func(ctx context.Context, item T) (bool, error)

// Compile resolves p against a root scope for elements of type T.
func Compile[T any](ctx context.Context, p Provider, pc *ProviderContext) (Match[T], error) {
	if pc == nil {
		pc = NewProviderContext(nil, nil, Dependencies{})
	}
	logger := pc.logger()
	scope := RootScope[T](DefaultRootAlias)
	ctx = logging.WithScopeAlias(ctx, scope.Alias())

	start := time.Now()
	pred, err := p.Resolve(ctx, pc, scope)
	if err != nil {
		logger.DebugContext(ctx, "condition resolution failed",
			slog.String("element_type", scope.ElementType()),
			slog.String("code", schema.CodeOf(err)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	logger.DebugContext(ctx, "condition resolved",
		slog.String("element_type", scope.ElementType()),
		slog.Duration("elapsed", time.Since(start)),
	)

	return func(ctx context.Context, item T) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, cancelled(err)
		}
		ok, err := pred(ctx, NewEnv(scope, item))
		if err != nil {
			logger.WarnContext(ctx, "condition evaluation failed",
				slog.String("code", schema.CodeOf(err)),
				slog.String("error", err.Error()),
			)
			return false, err
		}
		return ok, nil
	}, nil
}

// CompileCondition builds cond with pc's dependencies and compiles it for T.
func CompileCondition[T any](ctx context.Context, cond *schema.Condition, pc *ProviderContext) (Match[T], error) {
	return Compile[T](ctx, Deferred(cond), pc)
}

// Filter lazily yields the items that match. Evaluation stops at the first
// error, which is yielded with the zero T.
func Filter[T any](ctx context.Context, items iter.Seq[T], match Match[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item := range items {
			ok, err := match(ctx, item)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if ok && !yield(item, nil) {
				return
			}
		}
	}
}

// FilterLazy is Filter with resolution deferred to the first enumeration.
// Every enumeration resolves p again.
func FilterLazy[T any](ctx context.Context, items iter.Seq[T], p Provider, pc *ProviderContext) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		match, err := Compile[T](ctx, p, pc)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		Filter(ctx, items, match)(yield)
	}
}

// FilterItems returns the matching items in input order. The first error
// aborts and is returned.
func FilterItems[T any](ctx context.Context, items iter.Seq[T], p Provider, pc *ProviderContext) ([]T, error) {
	return Collect(FilterLazy(ctx, items, p, pc))
}

// Collect drains seq, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

package predicate

import (
	"context"

	"github.com/rendis/opfilter/internal/graph"
	"github.com/rendis/opfilter/internal/values"
	"github.com/rendis/opfilter/pkg/schema"
)

// boundLookup is a lookup whose substitutes are bound to a scope.
type boundLookup struct {
	*lookup

	ifNotFound valueFunc
	ifNull     valueFunc
	ifMismatch valueFunc
	fallback   valueFunc
}

// recover classifies res against the leaf kind and applies the recovery
// chain: raise flag, then the case substitute, then defaultValue, then nil.
// origin is the element the path was walked from.
func (b *boundLookup) recover(ctx context.Context, env *Env, res graph.LookupResult, origin any) (any, error) {
	if res.Kind == graph.Found {
		if v, ok := values.Coerce(b.kind, res.Value); ok {
			return v, nil
		}
		res = graph.LookupResult{Kind: graph.TypeMismatch, Value: res.Value, ActualKind: values.KindOf(res.Value)}
	}

	switch res.Kind {
	case graph.NotFound:
		if b.raiseNotFound {
			return nil, b.fail(schema.ErrCodeNotFound, "no value at path", origin)
		}
		return b.substitute(ctx, env, b.ifNotFound)
	case graph.Null:
		if b.raiseNull {
			return nil, b.fail(schema.ErrCodeNullValue, "value at path is null", origin)
		}
		return b.substitute(ctx, env, b.ifNull)
	case graph.TypeMismatch:
		if b.raiseMismatch {
			err := b.fail(schema.ErrCodeTypeMismatch, "expected "+string(b.kind)+", got "+res.ActualKind, res.Value)
			err.Details = map[string]any{"expected": string(b.kind), "actual": res.ActualKind}
			return nil, err
		}
		return b.substitute(ctx, env, b.ifMismatch)
	default:
		return nil, b.fail(schema.ErrCodeValueResolution, "unexpected lookup result "+res.Kind.String(), origin)
	}
}

// substitute evaluates the case-specific substitute or, failing that, the
// default. A substitute's own lookup result never re-enters this chain.
func (b *boundLookup) substitute(ctx context.Context, env *Env, sub valueFunc) (any, error) {
	if sub != nil {
		return sub(ctx, env)
	}
	if b.fallback != nil {
		return b.fallback(ctx, env)
	}
	return nil, nil
}

func (b *boundLookup) fail(code, msg string, snapshot any) *schema.FilterError {
	return schema.NewError(code, msg).
		WithPath(b.path.Raw).
		WithSchemaKey(b.key).
		WithSnapshot(snapshot)
}

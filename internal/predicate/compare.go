package predicate

import (
	"context"

	"github.com/rendis/opfilter/internal/values"
	"github.com/rendis/opfilter/pkg/schema"
)

// comparison compares two operands of one pinned kind.
type comparison struct {
	key   string
	kind  schema.ValueKind
	op    schema.Operator
	left  *operand
	right *operand
}

func buildComparison(cond *schema.Condition) (Provider, error) {
	c := cond.Comparison
	left, err := buildOperand(c.Left, c.Kind, cond.Key, strictLiteral)
	if err != nil {
		return nil, err
	}
	right, err := buildOperand(c.Right, c.Kind, cond.Key, strictLiteral)
	if err != nil {
		return nil, err
	}
	return &comparison{key: cond.Key, kind: c.Kind, op: c.Operator, left: left, right: right}, nil
}

func (c *comparison) Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
	left, err := c.left.bind(ctx, pc, scope)
	if err != nil {
		return nil, err
	}
	right, err := c.right.bind(ctx, pc, scope)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *Env) (bool, error) {
		a, err := left(ctx, env)
		if err != nil {
			return false, err
		}
		b, err := right(ctx, env)
		if err != nil {
			return false, err
		}
		if a == nil || b == nil {
			return false, schema.NewErrorf(schema.ErrCodeTypeMismatch,
				"cannot compare %s: operand resolved to no value", c.kind).
				WithSchemaKey(c.key).
				WithSnapshot([]any{a, b})
		}
		cmp, ok := values.Compare(c.kind, a, b)
		if !ok {
			return false, schema.NewErrorf(schema.ErrCodeTypeMismatch,
				"cannot compare %s with %s as %s", values.KindOf(a), values.KindOf(b), c.kind).
				WithSchemaKey(c.key)
		}
		return values.Holds(c.op, cmp), nil
	}, nil
}

package predicate

import (
	"context"

	"github.com/rendis/opfilter/internal/logging"
	"github.com/rendis/opfilter/internal/values"
	"github.com/rendis/opfilter/pkg/schema"
)

// ItemElementType tags scopes created by list conditions.
const ItemElementType = "item"

// listCondition evaluates an inner condition over the items of a list, each
// item bound to alias in a scope nested under the outer one.
type listCondition struct {
	key   string
	list  *operand
	alias string
	match schema.MatchMode
	inner Provider
}

func (b *builder) buildListCondition(cond *schema.Condition) (Provider, error) {
	c := cond.List
	if !schema.ValidAlias(c.ItemAlias) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid item alias %q", c.ItemAlias).
			WithSchemaKey(cond.Key)
	}
	list, err := buildOperand(c.List, schema.KindList, cond.Key, lazyLiteral)
	if err != nil {
		return nil, err
	}
	inner, err := b.build(c.Condition)
	if err != nil {
		return nil, err
	}
	return &listCondition{key: cond.Key, list: list, alias: c.ItemAlias, match: c.Match, inner: inner}, nil
}

// Each evaluates inner over the items of list bound to alias.
func Each(list schema.Operand, alias string, match schema.MatchMode, inner Provider) (Provider, error) {
	if !schema.ValidAlias(alias) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid item alias %q", alias)
	}
	op, err := buildOperand(list, schema.KindList, "listConditionCondition", lazyLiteral)
	if err != nil {
		return nil, err
	}
	return &listCondition{key: "listConditionCondition", list: op, alias: alias, match: match, inner: inner}, nil
}

func (p *listCondition) Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
	list, err := p.list.bind(ctx, pc, scope)
	if err != nil {
		return nil, err
	}
	child := scope.Child(p.alias, ItemElementType)
	inner, err := p.inner.Resolve(logging.WithScopeAlias(ctx, p.alias), pc, child)
	if err != nil {
		return nil, err
	}
	all := p.match == schema.MatchAll

	return func(ctx context.Context, env *Env) (bool, error) {
		v, err := list(ctx, env)
		if err != nil {
			return false, err
		}
		items, ok := values.ToList(v)
		if !ok {
			return false, schema.NewErrorf(schema.ErrCodeTypeMismatch, "expected list, got %s", values.KindOf(v)).
				WithSchemaKey(p.key).
				WithSnapshot(v)
		}

		var trues int
		var firstErr error
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return false, cancelled(err)
			}
			ok, err := inner(ctx, env.Bind(child, item))
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if ok {
				trues++
			}
		}
		if firstErr != nil {
			return false, firstErr
		}
		if all {
			return trues == len(items), nil
		}
		return trues > 0, nil
	}, nil
}

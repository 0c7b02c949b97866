package predicate

import (
	"context"

	"github.com/rendis/opfilter/internal/expressions"
	"github.com/rendis/opfilter/internal/values"
	"github.com/rendis/opfilter/pkg/schema"
)

// expression is a boolean leaf written in cel, expr or jq.
type expression struct {
	key    string
	engine expressions.Engine
	source string
}

func (b *builder) buildExpression(cond *schema.Condition) (Provider, error) {
	c := cond.Expression
	registry, err := b.engines()
	if err != nil {
		return nil, err
	}
	engine, err := registry.Get(c.Engine)
	if err != nil {
		if fe, ok := err.(*schema.FilterError); ok {
			return nil, fe.WithSchemaKey(cond.Key)
		}
		return nil, err
	}
	return &expression{key: cond.Key, engine: engine, source: c.Expression}, nil
}

func (p *expression) Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
	prg, err := p.engine.Compile(p.source)
	if err != nil {
		if fe, ok := err.(*schema.FilterError); ok {
			return nil, fe.WithSchemaKey(p.key)
		}
		return nil, err
	}
	data := values.Plain(pc.data())

	return func(ctx context.Context, env *Env) (bool, error) {
		scopeVars := env.Bindings()
		for alias, item := range scopeVars {
			scopeVars[alias] = values.Plain(item)
		}
		out, err := prg.Eval(ctx, expressions.Vars{
			Item:    values.Plain(env.Current()),
			Scope:   scopeVars,
			Context: data,
		})
		if err != nil {
			return false, err
		}
		b, ok := out.(bool)
		if !ok {
			return false, schema.NewErrorf(schema.ErrCodeTypeMismatch,
				"%s expression returned %s, expected boolean", p.engine.Name(), values.KindOf(out)).
				WithSchemaKey(p.key).
				WithSnapshot(out).
				WithDetails(map[string]any{"expression": p.source})
		}
		return b, nil
	}, nil
}

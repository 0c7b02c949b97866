package predicate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rendis/opfilter/internal/graph"
	"github.com/rendis/opfilter/pkg/schema"
)

func parse(t *testing.T, doc string) *schema.Condition {
	t.Helper()
	cond, err := schema.ParseCondition([]byte(doc))
	require.NoError(t, err)
	return cond
}

func build(t *testing.T, doc string) Provider {
	t.Helper()
	p, err := Build(parse(t, doc), Dependencies{})
	require.NoError(t, err)
	return p
}

func compile(t *testing.T, doc string, data any) Match[any] {
	t.Helper()
	match, err := Compile[any](context.Background(), build(t, doc), NewProviderContext(data, nil, Dependencies{}))
	require.NoError(t, err)
	return match
}

func eval(t *testing.T, doc string, item any) (bool, error) {
	t.Helper()
	return compile(t, doc, nil)(context.Background(), item)
}

func mustEval(t *testing.T, doc string, item any) bool {
	t.Helper()
	ok, err := eval(t, doc, item)
	require.NoError(t, err)
	return ok
}

func decode(t *testing.T, doc string) any {
	t.Helper()
	v, err := graph.DecodeJSON([]byte(doc))
	require.NoError(t, err)
	return v
}

// evalProvider returns a provider whose predicate returns (result, err) and
// counts its evaluations.
func evalProvider(result bool, err error, calls *int) Provider {
	return ProviderFunc(func(context.Context, *ProviderContext, *Scope) (Predicate, error) {
		return func(context.Context, *Env) (bool, error) {
			if calls != nil {
				*calls++
			}
			return result, err
		}, nil
	})
}

func resolveProvider(t *testing.T, p Provider) Predicate {
	t.Helper()
	pred, err := p.Resolve(context.Background(), NewProviderContext(nil, nil, Dependencies{}), NewScope(DefaultRootAlias, "test"))
	require.NoError(t, err)
	return pred
}

package predicate

import (
	"context"
	"unicode"

	"github.com/rendis/opfilter/internal/values"
	"github.com/rendis/opfilter/pkg/schema"
)

// objectContainsProperty tests a structural object for a property.
type objectContainsProperty struct {
	key    string
	object *operand
	name   string
}

func buildObjectContainsProperty(cond *schema.Condition) (Provider, error) {
	c := cond.ObjectContainsProperty
	if err := CheckPropertyName(c.PropertyName); err != nil {
		return nil, err.WithSchemaKey(cond.Key)
	}
	object, err := buildOperand(c.Object, schema.KindObject, cond.Key, lazyLiteral)
	if err != nil {
		return nil, err
	}
	return &objectContainsProperty{key: cond.Key, object: object, name: c.PropertyName}, nil
}

// CheckPropertyName rejects empty property names and names containing
// control characters.
func CheckPropertyName(name string) *schema.FilterError {
	if name == "" {
		return schema.NewError(schema.ErrCodePropertyKeyInvalid, "property name is empty")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return schema.NewErrorf(schema.ErrCodePropertyKeyInvalid,
				"property name %q contains a control character", name)
		}
	}
	return nil
}

func (p *objectContainsProperty) Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
	object, err := p.object.bind(ctx, pc, scope)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, env *Env) (bool, error) {
		v, err := object(ctx, env)
		if err != nil {
			return false, err
		}
		if v == nil {
			return false, schema.NewError(schema.ErrCodeTypeMismatch, "object operand resolved to no value").
				WithSchemaKey(p.key)
		}
		return values.HasProperty(v, p.name), nil
	}, nil
}

// listContainsValue tests list membership with kind-strict equality.
type listContainsValue struct {
	key   string
	list  *operand
	value any
}

func buildListContainsValue(cond *schema.Condition) (Provider, error) {
	c := cond.ListContainsValue
	list, err := buildOperand(c.List, schema.KindList, cond.Key, lazyLiteral)
	if err != nil {
		return nil, err
	}
	return &listContainsValue{key: cond.Key, list: list, value: c.Value}, nil
}

func (p *listContainsValue) Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
	list, err := p.list.bind(ctx, pc, scope)
	if err != nil {
		return nil, err
	}
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
		for _, item := range items {
			if values.Equal(item, p.value) {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

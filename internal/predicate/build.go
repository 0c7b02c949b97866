package predicate

import (
	"github.com/rendis/opfilter/internal/expressions"
	"github.com/rendis/opfilter/pkg/schema"
)

// Build turns a decoded condition into a Provider tree. Paths are parsed,
// literals coerced and property names checked here; nothing is read from
// the data graph until the provider is resolved.
func Build(cond *schema.Condition, deps Dependencies) (Provider, error) {
	b := &builder{deps: deps}
	return b.build(cond)
}

// builder carries dependencies through one Build call. The expression
// registry is created on first use.
type builder struct {
	deps Dependencies
}

func (b *builder) engines() (*expressions.Registry, error) {
	if b.deps.Engines == nil {
		registry, err := expressions.NewRegistry()
		if err != nil {
			return nil, err
		}
		b.deps.Engines = registry
	}
	return b.deps.Engines, nil
}

func (b *builder) build(cond *schema.Condition) (Provider, error) {
	if cond == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "condition is nil")
	}

	switch cond.Type {
	case schema.ConditionComparison:
		if cond.Comparison == nil {
			return nil, malformed(cond)
		}
		return buildComparison(cond)

	case schema.ConditionAnd, schema.ConditionOr, schema.ConditionXor:
		children, err := b.buildAll(cond.Children)
		if err != nil {
			return nil, err
		}
		return &junction{kind: cond.Type, children: children}, nil

	case schema.ConditionNot:
		child, err := b.build(cond.Child)
		if err != nil {
			return nil, err
		}
		return Not(child), nil

	case schema.ConditionList:
		if cond.List == nil {
			return nil, malformed(cond)
		}
		return b.buildListCondition(cond)

	case schema.ConditionObjectContainsProperty:
		if cond.ObjectContainsProperty == nil {
			return nil, malformed(cond)
		}
		return buildObjectContainsProperty(cond)

	case schema.ConditionListContainsValue:
		if cond.ListContainsValue == nil {
			return nil, malformed(cond)
		}
		return buildListContainsValue(cond)

	case schema.ConditionRegexMatch:
		if cond.RegexMatch == nil {
			return nil, malformed(cond)
		}
		return buildRegexMatch(cond)

	case schema.ConditionExpression:
		if cond.Expression == nil {
			return nil, malformed(cond)
		}
		return b.buildExpression(cond)
	}

	return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown condition type %q", cond.Type).
		WithSchemaKey(cond.Key)
}

func (b *builder) buildAll(conds []*schema.Condition) ([]Provider, error) {
	out := make([]Provider, 0, len(conds))
	for _, c := range conds {
		p, err := b.build(c)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func malformed(cond *schema.Condition) *schema.FilterError {
	return schema.NewErrorf(schema.ErrCodeValidation, "%s condition has no body", cond.Type).
		WithSchemaKey(cond.Key)
}

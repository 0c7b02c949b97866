package predicate

import (
	"context"
	"regexp"

	"github.com/rendis/opfilter/pkg/schema"
)

// regexMatch matches a text operand against a pattern. The pattern is
// compiled once per Resolve.
type regexMatch struct {
	key     string
	text    *operand
	pattern string
}

func buildRegexMatch(cond *schema.Condition) (Provider, error) {
	c := cond.RegexMatch
	text, err := buildOperand(c.Text, schema.KindText, cond.Key, lazyLiteral)
	if err != nil {
		return nil, err
	}
	return &regexMatch{key: cond.Key, text: text, pattern: c.Pattern}, nil
}

func (p *regexMatch) Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
	re, err := regexp.Compile(p.pattern)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidPattern, "invalid pattern %q: %s", p.pattern, err.Error()).
			WithCause(err).
			WithSchemaKey(p.key)
	}
	text, err := p.text.bind(ctx, pc, scope)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, env *Env) (bool, error) {
		v, err := text(ctx, env)
		if err != nil {
			return false, err
		}
		s, ok := v.(string)
		if !ok {
			return false, schema.NewError(schema.ErrCodeTypeMismatch, "text operand resolved to no value").
				WithSchemaKey(p.key)
		}
		return re.MatchString(s), nil
	}, nil
}

package predicate

import (
	"context"

	"github.com/rendis/opfilter/internal/graph"
	"github.com/rendis/opfilter/internal/values"
	"github.com/rendis/opfilter/pkg/schema"
)

// literalMode controls when a literal operand is coerced to its kind.
type literalMode int

const (
	// lazyLiteral coerces at evaluation; a mismatch is a TYPE_MISMATCH error then.
	lazyLiteral literalMode = iota
	// strictLiteral coerces at build; nil and mismatches fail the build.
	strictLiteral
	// substituteLiteral coerces at build; nil is kept and passed on.
	substituteLiteral
)

// operand is a built schema.Operand pinned to one value kind.
type operand struct {
	kind    schema.ValueKind
	key     string
	mode    literalMode
	literal any
	lookup  *lookup
}

// lookup is a built path operand with its recovery settings.
type lookup struct {
	path graph.Path
	kind schema.ValueKind
	key  string

	raiseNotFound bool
	raiseNull     bool
	raiseMismatch bool

	ifNotFound *operand
	ifNull     *operand
	ifMismatch *operand
	fallback   *operand
}

// valueFunc yields an operand value coerced to its kind, or nil when the
// recovery chain ends without a value.
type valueFunc func(ctx context.Context, env *Env) (any, error)

func buildOperand(op schema.Operand, kind schema.ValueKind, key string, mode literalMode) (*operand, error) {
	if !op.IsLookup() {
		return buildLiteral(op.Literal, kind, key, mode)
	}

	pl := op.Lookup
	if pl.Kind != kind {
		return nil, schema.NewErrorf(schema.ErrCodeTypeMismatch,
			"lookup of kind %s used where %s is expected", pl.Kind, kind).
			WithPath(pl.Path).
			WithSchemaKey(key)
	}
	path, err := graph.ParsePath(pl.Path)
	if err != nil {
		if fe, ok := err.(*schema.FilterError); ok {
			return nil, fe.WithSchemaKey(key)
		}
		return nil, err
	}

	l := &lookup{
		path:          path,
		kind:          kind,
		key:           key,
		raiseNotFound: pl.RaiseErrorIfNotFound,
		raiseNull:     pl.RaiseErrorIfNull,
		raiseMismatch: pl.RaiseErrorIfTypeMismatch,
	}
	subs := []struct {
		src *schema.Operand
		dst **operand
	}{
		{pl.ValueIfNotFound, &l.ifNotFound},
		{pl.ValueIfNull, &l.ifNull},
		{pl.ValueIfTypeMismatch, &l.ifMismatch},
		{pl.DefaultValue, &l.fallback},
	}
	for _, s := range subs {
		if s.src == nil {
			continue
		}
		sub, err := buildOperand(*s.src, kind, key, substituteLiteral)
		if err != nil {
			return nil, err
		}
		*s.dst = sub
	}
	return &operand{kind: kind, key: key, mode: mode, lookup: l}, nil
}

func buildLiteral(v any, kind schema.ValueKind, key string, mode literalMode) (*operand, error) {
	o := &operand{kind: kind, key: key, mode: mode, literal: v}
	if mode == lazyLiteral || (mode == substituteLiteral && v == nil) {
		return o, nil
	}
	coerced, ok := values.Coerce(kind, v)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeTypeMismatch,
			"literal %s is not a valid %s", values.KindOf(v), kind).
			WithSchemaKey(key).
			WithSnapshot(v)
	}
	o.literal = coerced
	return o, nil
}

// bind resolves the operand against scope. Context-root paths are walked
// here, once; element-relative paths are walked per evaluation.
func (o *operand) bind(ctx context.Context, pc *ProviderContext, scope *Scope) (valueFunc, error) {
	if o.lookup == nil {
		if o.mode != lazyLiteral {
			v := o.literal
			return func(context.Context, *Env) (any, error) { return v, nil }, nil
		}
		return o.lazyLiteral(), nil
	}
	return o.lookup.bind(ctx, pc, scope)
}

func (o *operand) lazyLiteral() valueFunc {
	raw := o.literal
	if raw == nil {
		return func(context.Context, *Env) (any, error) { return nil, nil }
	}
	v, ok := values.Coerce(o.kind, raw)
	if ok {
		return func(context.Context, *Env) (any, error) { return v, nil }
	}
	kind, key := o.kind, o.key
	return func(context.Context, *Env) (any, error) {
		return nil, schema.NewErrorf(schema.ErrCodeTypeMismatch,
			"literal %s is not a valid %s", values.KindOf(raw), kind).
			WithSchemaKey(key).
			WithSnapshot(raw)
	}
}

func (l *lookup) bind(ctx context.Context, pc *ProviderContext, scope *Scope) (valueFunc, error) {
	b := &boundLookup{lookup: l}
	subs := []struct {
		src *operand
		dst *valueFunc
	}{
		{l.ifNotFound, &b.ifNotFound},
		{l.ifNull, &b.ifNull},
		{l.ifMismatch, &b.ifMismatch},
		{l.fallback, &b.fallback},
	}
	for _, s := range subs {
		if s.src == nil {
			continue
		}
		fn, err := s.src.bind(ctx, pc, scope)
		if err != nil {
			return nil, err
		}
		*s.dst = fn
	}

	if !l.path.IsRelative() {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		data := pc.data()
		res, err := graph.Walk(ctx, data, l.path.Segments, pc.includer())
		if err != nil {
			return nil, l.wrap(err)
		}
		return func(ctx context.Context, env *Env) (any, error) {
			return b.recover(ctx, env, res, data)
		}, nil
	}

	anchor := scope
	if l.path.Anchor == graph.AnchorAlias {
		var ok bool
		if anchor, ok = scope.Find(l.path.Alias); !ok {
			return nil, schema.NewErrorf(schema.ErrCodePathSyntax,
				"no enclosing scope is bound to alias %q", l.path.Alias).
				WithPath(l.path.Raw).
				WithSchemaKey(l.key).
				WithDetails(map[string]any{"aliases": scope.Aliases()})
		}
	}
	inc := pc.includer()
	return func(ctx context.Context, env *Env) (any, error) {
		item, ok := env.Item(anchor)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValueResolution,
				"scope %q has no bound element", anchor.Alias()).
				WithPath(l.path.Raw).
				WithSchemaKey(l.key)
		}
		res, err := graph.Walk(ctx, item, l.path.Segments, inc)
		if err != nil {
			return nil, l.wrap(err)
		}
		return b.recover(ctx, env, res, item)
	}, nil
}

// wrap attaches path and key to traversal errors. Errors coming from an
// includer may be shared between lookups, so they are annotated on a copy.
func (l *lookup) wrap(err error) error {
	if fe, ok := err.(*schema.FilterError); ok {
		if fe.Path != "" && fe.SchemaKey != "" {
			return fe
		}
		c := fe.Clone()
		if c.Path == "" {
			c.Path = l.path.Raw
		}
		if c.SchemaKey == "" {
			c.SchemaKey = l.key
		}
		return c
	}
	return schema.NewError(schema.ErrCodeValueResolution, err.Error()).
		WithCause(err).
		WithPath(l.path.Raw).
		WithSchemaKey(l.key)
}

package expressions

import (
	"context"
	"math"

	"github.com/itchyny/gojq"
)

// GoJQEngine compiles jq queries. The query input is the object
// {"item": ..., "scope": {...}, "context": ...}.
type GoJQEngine struct{}

// NewGoJQEngine creates a new GoJQ engine.
func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{}
}

// Name returns the engine identifier.
func (e *GoJQEngine) Name() string {
	return "jq"
}

// Compile parses and compiles query.
func (e *GoJQEngine) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, emptyExpression("jq")
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, compileError("jq", expression, err)
	}
	code, err := gojq.Compile(query,
		// Sandbox: return empty env to block $ENV and env access.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, compileError("jq", expression, err)
	}
	return &jqProgram{expression: expression, code: code}, nil
}

type jqProgram struct {
	expression string
	code       *gojq.Code
}

// Eval runs the query. A single output is returned as is; several outputs
// are collected into a slice; no output yields nil.
func (p *jqProgram) Eval(ctx context.Context, vars Vars) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	iter := p.code.RunWithContext(ctx, normalizeForJQ(vars.asMap()))

	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, cancelled(ctxErr)
			}
			return nil, evalError("jq", p.expression, err)
		}
		results = append(results, val)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// normalizeForJQ converts Go numeric types to the ones gojq understands
// (int, float64).
func normalizeForJQ(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeForJQ(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeForJQ(item)
		}
		return out
	case int64:
		if val >= math.MinInt && val <= math.MaxInt {
			return int(val)
		}
		return float64(val)
	case int32:
		return int(val)
	case uint32:
		return int(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

var _ Engine = (*GoJQEngine)(nil)

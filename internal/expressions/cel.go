package expressions

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELEngine compiles Common Expression Language expressions.
type CELEngine struct {
	env *cel.Env
}

// NewCELEngine creates a CEL engine with a sandboxed environment exposing:
//   - item:    dyn
//   - scope:   map(string, dyn)
//   - context: dyn
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("scope", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("context", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &CELEngine{env: env}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Compile parses and type-checks expression.
func (e *CELEngine) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, emptyExpression("cel")
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, compileError("cel", expression, issues.Err())
	}
	prg, err := e.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, compileError("cel", expression, err)
	}
	return &celProgram{expression: expression, prg: prg}, nil
}

type celProgram struct {
	expression string
	prg        cel.Program
}

func (p *celProgram) Eval(ctx context.Context, vars Vars) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	out, _, err := p.prg.ContextEval(ctx, vars.asMap())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cancelled(ctxErr)
		}
		return nil, evalError("cel", p.expression, err)
	}
	return out.Value(), nil
}

var _ Engine = (*CELEngine)(nil)

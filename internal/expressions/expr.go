package expressions

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEngine compiles expr-lang/expr expressions. It supports let bindings,
// array builtins (filter, map, count, any, all), nil coalescing (??),
// optional chaining (?.) and pipes (|).
type ExprEngine struct{}

// NewExprEngine creates a new Expr engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{}
}

// Name returns the engine identifier.
func (e *ExprEngine) Name() string {
	return "expr"
}

// Compile compiles expression against the item/scope/context environment.
func (e *ExprEngine) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, emptyExpression("expr")
	}

	prg, err := expr.Compile(expression,
		expr.Env(Vars{}.asMap()),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, compileError("expr", expression, err)
	}
	return &exprProgram{expression: expression, prg: prg}, nil
}

type exprProgram struct {
	expression string
	prg        *vm.Program
}

func (p *exprProgram) Eval(ctx context.Context, vars Vars) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	out, err := vm.Run(p.prg, vars.asMap())
	if err != nil {
		return nil, evalError("expr", p.expression, err)
	}
	return out, nil
}

var _ Engine = (*ExprEngine)(nil)

package predicate

import (
	"context"

	"github.com/rendis/opfilter/pkg/schema"
)

// junction combines child predicates. Every child is evaluated; the first
// error in child order is returned.
type junction struct {
	kind     schema.ConditionType
	children []Provider
}

// And is true when every child is true. An empty And is true.
func And(children ...Provider) Provider {
	return &junction{kind: schema.ConditionAnd, children: children}
}

// Or is true when at least one child is true. An empty Or is false.
func Or(children ...Provider) Provider {
	return &junction{kind: schema.ConditionOr, children: children}
}

// Xor is true when exactly one child is true.
func Xor(children ...Provider) Provider {
	return &junction{kind: schema.ConditionXor, children: children}
}

func (j *junction) Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
	preds, err := resolveAll(ctx, pc, scope, j.children)
	if err != nil {
		return nil, err
	}
	kind := j.kind

	return func(ctx context.Context, env *Env) (bool, error) {
		var trues int
		var firstErr error
		for _, pred := range preds {
			ok, err := pred(ctx, env)
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

		switch kind {
		case schema.ConditionAnd:
			return trues == len(preds), nil
		case schema.ConditionOr:
			return trues > 0, nil
		default:
			return trues == 1, nil
		}
	}, nil
}

type negation struct {
	child Provider
}

// Not negates child.
func Not(child Provider) Provider {
	return &negation{child: child}
}

func (n *negation) Resolve(ctx context.Context, pc *ProviderContext, scope *Scope) (Predicate, error) {
	pred, err := n.child.Resolve(ctx, pc, scope)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, env *Env) (bool, error) {
		ok, err := pred(ctx, env)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}, nil
}

package predicate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rendis/opfilter/pkg/schema"
)

// resolveAll resolves providers against scope concurrently, at most
// MaxParallel at a time, and returns their predicates in input order.
// On failure the error of the earliest failing provider is returned,
// preferring a real failure over the cancellations it caused.
func resolveAll(ctx context.Context, pc *ProviderContext, scope *Scope, providers []Provider) ([]Predicate, error) {
	preds := make([]Predicate, len(providers))
	if len(providers) == 0 {
		return preds, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	errs := make([]error, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pc.deps().MaxParallel)
	for i, p := range providers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = cancelled(err)
				return errs[i]
			}
			pred, err := p.Resolve(gctx, pc, scope)
			if err != nil {
				errs[i] = err
				return err
			}
			preds[i] = pred
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		for _, e := range errs {
			if e != nil && !schema.IsCode(e, schema.ErrCodeCancelled) {
				return nil, e
			}
		}
		return nil, err
	}
	return preds, nil
}

// Package hydrate decorates a graph.Includer with memoization, retries and
// per-type circuit breaking. Paths that cross the same reference for many
// items hydrate it once; a failing backing store is probed instead of
// hammered.
package hydrate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/rendis/opfilter/internal/graph"
	"github.com/rendis/opfilter/internal/logging"
	"github.com/rendis/opfilter/pkg/schema"
)

// Options configures an Includer. Zero fields take the defaults.
type Options struct {
	Retry   RetryPolicy
	Breaker BreakerConfig
	Logger  *slog.Logger
}

// Stats counts what an Includer did.
type Stats struct {
	Fetches   int64 `json:"fetches"`
	CacheHits int64 `json:"cache_hits"`
	Retries   int64 `json:"retries"`
}

type entry struct {
	value any
	err   error
}

// Includer memoizes hydrations of the wrapped Includer for its lifetime.
// Values and NOT_FOUND answers are cached; other failures are not.
type Includer struct {
	next     graph.Includer
	policy   RetryPolicy
	breakers *BreakerRegistry
	logger   *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[graph.Reference]entry

	fetches   atomic.Int64
	cacheHits atomic.Int64
	retries   atomic.Int64
}

// New wraps next.
func New(next graph.Includer, opts Options) *Includer {
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Breaker == (BreakerConfig{}) {
		opts.Breaker = DefaultBreakerConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Includer{
		next:     next,
		policy:   opts.Retry,
		breakers: NewBreakerRegistry(opts.Breaker),
		logger:   opts.Logger,
		cache:    make(map[graph.Reference]entry),
	}
}

// Include returns the hydrated value for ref. Concurrent calls for the same
// reference share one fetch. The shared fetch does not observe any single
// caller's cancellation; each caller stops waiting when its own ctx is done.
func (h *Includer) Include(ctx context.Context, ref graph.Reference) (any, error) {
	if e, ok := h.cached(ref); ok {
		h.cacheHits.Add(1)
		return e.value, cloneError(e.err)
	}

	ch := h.group.DoChan(ref.String(), func() (any, error) {
		if e, ok := h.cached(ref); ok {
			return e.value, e.err
		}
		v, err := h.fetch(context.WithoutCancel(ctx), ref)
		if err == nil || schema.IsCode(err, schema.ErrCodeNotFound) {
			h.mu.Lock()
			h.cache[ref] = entry{value: v, err: err}
			h.mu.Unlock()
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, schema.NewError(schema.ErrCodeCancelled, "hydration cancelled").
			WithCause(ctx.Err()).
			WithDetails(map[string]any{"ref": ref.String()})
	case r := <-ch:
		return r.Val, cloneError(r.Err)
	}
}

// cloneError hands every caller its own copy of a FilterError, since cached
// and shared results are annotated further up the stack.
func cloneError(err error) error {
	if fe, ok := err.(*schema.FilterError); ok {
		return fe.Clone()
	}
	return err
}

// Breakers exposes the per-type circuit breakers.
func (h *Includer) Breakers() *BreakerRegistry { return h.breakers }

// Stats returns a snapshot of the counters.
func (h *Includer) Stats() Stats {
	return Stats{
		Fetches:   h.fetches.Load(),
		CacheHits: h.cacheHits.Load(),
		Retries:   h.retries.Load(),
	}
}

func (h *Includer) cached(ref graph.Reference) (entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.cache[ref]
	return e, ok
}

func (h *Includer) fetch(ctx context.Context, ref graph.Reference) (any, error) {
	attempts := max(h.policy.MaxAttempts, 1)
	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			h.retries.Add(1)
			if err := waitForBackoff(ctx, ComputeBackoff(h.policy, attempt-1)); err != nil {
				return nil, schema.NewError(schema.ErrCodeCancelled, "hydration cancelled").WithCause(err)
			}
		}
		if err := h.breakers.Allow(ref.Type); err != nil {
			if lastErr != nil {
				var fe *schema.FilterError
				if errors.As(err, &fe) {
					fe.WithCause(lastErr)
				}
			}
			return nil, err
		}

		h.fetches.Add(1)
		v, err := h.next.Include(ctx, ref)
		if err == nil || schema.IsCode(err, schema.ErrCodeNotFound) {
			h.breakers.RecordSuccess(ref.Type)
			return v, err
		}
		if !IsRetryable(err) {
			return nil, err
		}

		lastErr = err
		state := h.breakers.RecordFailure(ref.Type)
		h.logger.WarnContext(ctx, "entity hydration failed",
			slog.String("ref", ref.String()),
			slog.Int("attempt", attempt+1),
			slog.String("circuit", state.String()),
			slog.Any("error", err))
	}
	return nil, lastErr
}

var _ graph.Includer = (*Includer)(nil)

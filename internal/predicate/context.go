package predicate

import (
	"log/slog"

	"github.com/rendis/opfilter/internal/expressions"
	"github.com/rendis/opfilter/internal/graph"
	"github.com/rendis/opfilter/internal/logging"
	"github.com/rendis/opfilter/pkg/schema"
)

// DefaultMaxParallel bounds concurrent child resolution when
// Dependencies.MaxParallel is unset.
const DefaultMaxParallel = 8

// Dependencies are the collaborators shared by every provider of a tree.
type Dependencies struct {
	// Engines compiles expression leaves. Nil means the default cel/expr/jq registry.
	Engines *expressions.Registry
	// Logger receives build/resolve records at Debug and evaluation failures
	// at Warn. Nil discards.
	Logger *slog.Logger
	// MaxParallel bounds concurrent child resolution per combinator.
	MaxParallel int
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.MaxParallel <= 0 {
		d.MaxParallel = DefaultMaxParallel
	}
	return d
}

// ProviderContext is the read-only context handed to Provider.Resolve.
type ProviderContext struct {
	// Data is the ambient data graph that "/..." paths read from.
	Data any
	// Includer hydrates graph.Reference values met during traversal.
	Includer graph.Includer
	// Deps builds conditions that were not built yet.
	Deps Dependencies
}

// NewProviderContext returns a context over data with defaults applied to deps.
func NewProviderContext(data any, inc graph.Includer, deps Dependencies) *ProviderContext {
	return &ProviderContext{Data: data, Includer: inc, Deps: deps.withDefaults()}
}

// Build builds cond with the context's dependencies.
func (pc *ProviderContext) Build(cond *schema.Condition) (Provider, error) {
	return Build(cond, pc.deps())
}

func (pc *ProviderContext) deps() Dependencies {
	if pc == nil {
		return Dependencies{}.withDefaults()
	}
	return pc.Deps.withDefaults()
}

func (pc *ProviderContext) logger() *slog.Logger {
	return pc.deps().Logger
}

func (pc *ProviderContext) data() any {
	if pc == nil {
		return nil
	}
	return pc.Data
}

func (pc *ProviderContext) includer() graph.Includer {
	if pc == nil {
		return nil
	}
	return pc.Includer
}

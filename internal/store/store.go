// Package store persists hydrated entities and serves them to the predicate
// layer as a graph.Includer.
package store

import (
	"context"
	"iter"

	"github.com/rendis/opfilter/internal/graph"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	graph.Includer

	// Entities
	PutEntity(ctx context.Context, e *graph.Entity) error
	GetEntity(ctx context.Context, entityType, id string) (*graph.Entity, error)
	DeleteEntity(ctx context.Context, entityType, id string) error
	ListEntities(ctx context.Context, entityType string) iter.Seq2[*graph.Entity, error]

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}

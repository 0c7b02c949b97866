package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/opfilter/internal/graph"
	"github.com/rendis/opfilter/pkg/schema"
)

// EntityStore implements the Store interface using libSQL (embedded SQLite fork).
type EntityStore struct {
	db *sql.DB
}

// NewEntityStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewEntityStore(dbPath string) (*EntityStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &EntityStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *EntityStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *EntityStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *EntityStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *EntityStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return storeError(err, "vacuum")
}

// --- Entities ---

// PutEntity inserts or replaces an entity.
func (s *EntityStore) PutEntity(ctx context.Context, e *graph.Entity) error {
	if e == nil || e.Type == "" || e.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "entity requires a type and an id")
	}
	props, err := marshalMapOrDefault(e.Properties)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "entity properties are not JSON encodable").
			WithCause(err).
			WithDetails(map[string]any{"type": e.Type, "id": e.ID})
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (type, id, properties) VALUES (?, ?, ?)
		 ON CONFLICT(type, id) DO UPDATE SET properties=excluded.properties, updated_at=CURRENT_TIMESTAMP`,
		e.Type, e.ID, string(props),
	)
	return storeError(err, "put entity")
}

// GetEntity loads an entity. Numbers in its properties decode as json.Number.
func (s *EntityStore) GetEntity(ctx context.Context, entityType, id string) (*graph.Entity, error) {
	var props string
	err := s.db.QueryRowContext(ctx,
		`SELECT properties FROM entities WHERE type = ? AND id = ?`, entityType, id,
	).Scan(&props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound(entityType, id)
	}
	if err != nil {
		return nil, storeError(err, "get entity")
	}
	return decodeEntity(entityType, id, props)
}

// DeleteEntity removes an entity.
func (s *EntityStore) DeleteEntity(ctx context.Context, entityType, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entities WHERE type = ? AND id = ?`, entityType, id,
	)
	if err != nil {
		return storeError(err, "delete entity")
	}
	return checkRowsAffected(res, entityType, id)
}

// ListEntities streams every entity of a type ordered by id. Iteration stops
// after the first error.
func (s *EntityStore) ListEntities(ctx context.Context, entityType string) iter.Seq2[*graph.Entity, error] {
	return func(yield func(*graph.Entity, error) bool) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, properties FROM entities WHERE type = ? ORDER BY id`, entityType,
		)
		if err != nil {
			yield(nil, storeError(err, "list entities"))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var id, props string
			if err := rows.Scan(&id, &props); err != nil {
				yield(nil, storeError(err, "scan entity"))
				return
			}
			e, err := decodeEntity(entityType, id, props)
			if !yield(e, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, storeError(err, "list entities"))
		}
	}
}

// Include hydrates a reference from the entities table.
func (s *EntityStore) Include(ctx context.Context, ref graph.Reference) (any, error) {
	return s.GetEntity(ctx, ref.Type, ref.ID)
}

// --- Helpers ---

func decodeEntity(entityType, id, props string) (*graph.Entity, error) {
	v, err := graph.DecodeJSON([]byte(props))
	if err != nil {
		return nil, storeError(err, "decode entity properties")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "entity %s/%s properties are not an object", entityType, id)
	}
	return &graph.Entity{Type: entityType, ID: id, Properties: m}, nil
}

func storeNotFound(entityType, id string) *schema.FilterError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "entity %s/%s not found", entityType, id).
		WithDetails(map[string]any{"type": entityType, "id": id})
}

func storeError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return schema.NewErrorf(schema.ErrCodeCancelled, "%s cancelled", op).WithCause(err)
	}
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func checkRowsAffected(res sql.Result, entityType, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeError(err, "rows affected")
	}
	if n == 0 {
		return storeNotFound(entityType, id)
	}
	return nil
}

func marshalMapOrDefault(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(m)
}

var _ Store = (*EntityStore)(nil)

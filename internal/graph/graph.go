// Package graph resolves pointer paths against a partially dynamic data graph:
// decoded JSON (maps, slices, json.Number), embedded JSON payloads, entities
// exposing properties, and unhydrated entity references.
package graph

import (
	"context"
	"fmt"
	"strings"
)

// Object is a structural value with named properties.
type Object interface {
	Property(name string) (any, bool)
}

// Identifiable exposes an entity's identifier. It backs the "id" segment of
// objects that do not store the identifier as a regular property.
type Identifiable interface {
	Identifier() string
}

// Reference points to an entity that must be hydrated before its properties
// are visible.
type Reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (r Reference) String() string { return fmt.Sprintf("%s/%s", r.Type, r.ID) }

// RefKey marks a reference in decoded JSON: {"$ref": "order/42"}.
const RefKey = "$ref"

// ParseReference parses "type/id". The id may contain slashes.
func ParseReference(s string) (Reference, bool) {
	typ, id, ok := strings.Cut(s, "/")
	if !ok || typ == "" || id == "" {
		return Reference{}, false
	}
	return Reference{Type: typ, ID: id}, true
}

// LinkReferences replaces, in place and recursively, every single-key
// {"$ref": "type/id"} object in decoded JSON with a Reference.
func LinkReferences(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if s, ok := t[RefKey].(string); ok {
				if ref, ok := ParseReference(s); ok {
					return ref
				}
			}
		}
		for k, child := range t {
			t[k] = LinkReferences(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = LinkReferences(child)
		}
		return t
	default:
		return v
	}
}

// Includer hydrates entity references. Implementations may perform I/O and
// must honor ctx cancellation.
type Includer interface {
	Include(ctx context.Context, ref Reference) (any, error)
}

// IncluderFunc adapts a function to the Includer interface.
type IncluderFunc func(ctx context.Context, ref Reference) (any, error)

func (f IncluderFunc) Include(ctx context.Context, ref Reference) (any, error) { return f(ctx, ref) }

// Entity is a hydrated business entity.
type Entity struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

// Property returns a named property. The "id" property falls back to the
// entity identifier.
func (e *Entity) Property(name string) (any, bool) {
	if v, ok := e.Properties[name]; ok {
		return v, true
	}
	if name == "id" {
		return e.ID, true
	}
	return nil, false
}

// Identifier returns the entity id.
func (e *Entity) Identifier() string { return e.ID }

// Keys lists the entity's property names.
func (e *Entity) Keys() []string {
	keys := make([]string, 0, len(e.Properties))
	for k := range e.Properties {
		keys = append(keys, k)
	}
	return keys
}

var (
	_ Object       = (*Entity)(nil)
	_ Identifiable = (*Entity)(nil)
)

package predicate

import (
	"reflect"

	"github.com/google/uuid"
)

// DefaultRootAlias names the scope bound to the elements being filtered.
const DefaultRootAlias = "root"

// Scope is an immutable variable binding used while resolving a condition:
// an alias, the type tag of the elements bound to it, and the enclosing scope.
// A list condition never mutates a scope; it derives a child.
type Scope struct {
	alias    string
	elemType string
	binding  string
	depth    int
	parent   *Scope
}

// NewScope creates a root scope.
func NewScope(alias, elemType string) *Scope {
	return &Scope{
		alias:    alias,
		elemType: elemType,
		binding:  uuid.NewString(),
	}
}

// RootScope creates a root scope tagged with T's type name.
func RootScope[T any](alias string) *Scope {
	return NewScope(alias, TypeTag[T]())
}

// TypeTag returns the element type tag for T.
func TypeTag[T any]() string {
	return reflect.TypeFor[T]().String()
}

// Child derives a scope binding alias one level deeper. Its binding id is
// unique even when alias shadows an ancestor.
func (s *Scope) Child(alias, elemType string) *Scope {
	return &Scope{
		alias:    alias,
		elemType: elemType,
		binding:  uuid.NewString(),
		depth:    s.depth + 1,
		parent:   s,
	}
}

// Alias returns the variable alias.
func (s *Scope) Alias() string { return s.alias }

// ElementType returns the type tag of the bound elements.
func (s *Scope) ElementType() string { return s.elemType }

// Binding returns the unique binding id of this scope.
func (s *Scope) Binding() string { return s.binding }

// Depth is 0 for a root scope.
func (s *Scope) Depth() int { return s.depth }

// Parent returns the enclosing scope, or nil for a root scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Find returns the nearest scope, starting at s, bound to alias.
func (s *Scope) Find(alias string) (*Scope, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.alias == alias {
			return cur, true
		}
	}
	return nil, false
}

// Aliases lists the aliases visible from s, innermost first.
func (s *Scope) Aliases() []string {
	var out []string
	for cur := s; cur != nil; cur = cur.parent {
		out = append(out, cur.alias)
	}
	return out
}

// Env binds scopes to the elements being evaluated. Binding returns a new
// Env; the receiver is never modified, so sibling items cannot observe each
// other's bindings.
type Env struct {
	scope  *Scope
	item   any
	parent *Env
}

// NewEnv binds item to a root scope.
func NewEnv(scope *Scope, item any) *Env {
	return &Env{scope: scope, item: item}
}

// Bind returns a child Env with item bound to scope.
func (e *Env) Bind(scope *Scope, item any) *Env {
	return &Env{scope: scope, item: item, parent: e}
}

// Item returns the element bound to scope.
func (e *Env) Item(scope *Scope) (any, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.scope == scope {
			return cur.item, true
		}
	}
	return nil, false
}

// Current returns the innermost bound element.
func (e *Env) Current() any {
	if e == nil {
		return nil
	}
	return e.item
}

// Bindings returns the element visible for each alias; inner bindings shadow
// outer ones.
func (e *Env) Bindings() map[string]any {
	out := make(map[string]any)
	for cur := e; cur != nil; cur = cur.parent {
		if _, shadowed := out[cur.scope.alias]; !shadowed {
			out[cur.scope.alias] = cur.item
		}
	}
	return out
}

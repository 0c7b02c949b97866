package graph

import (
	"fmt"
	"strings"

	"github.com/go-openapi/jsonpointer"

	"github.com/rendis/opfilter/pkg/schema"
)

// Anchor identifies where a path starts.
type Anchor int

const (
	// AnchorCurrent starts at the element bound to the innermost scope ("#").
	AnchorCurrent Anchor = iota
	// AnchorAlias starts at the element bound to a named ancestor scope ("#alias").
	AnchorAlias
	// AnchorRoot starts at the ambient context data ("/").
	AnchorRoot
)

func (a Anchor) String() string {
	switch a {
	case AnchorCurrent:
		return "current"
	case AnchorAlias:
		return "alias"
	case AnchorRoot:
		return "root"
	default:
		return "unknown"
	}
}

// Path is a parsed pointer expression.
type Path struct {
	Raw      string
	Anchor   Anchor
	Alias    string
	Segments []string
}

// IsRelative reports whether the path depends on a scope element.
func (p Path) IsRelative() bool { return p.Anchor != AnchorRoot }

func (p Path) String() string { return p.Raw }

// ParsePath parses one of:
//
//	#            current scope element
//	#/a/b        nested path from the current scope element
//	#alias/a/b   nested path from the nearest scope bound to alias
//	/a/b         path from the ambient context data
//
// Segments use RFC 6901 escaping.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, pathError(raw, "path is empty")
	}

	p := Path{Raw: raw}
	var pointer string

	switch {
	case raw[0] == '/':
		p.Anchor = AnchorRoot
		pointer = raw
	case raw[0] == '#':
		rest := raw[1:]
		switch {
		case rest == "":
			p.Anchor = AnchorCurrent
		case rest[0] == '/':
			p.Anchor = AnchorCurrent
			pointer = rest
		default:
			p.Anchor = AnchorAlias
			alias := rest
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				alias, pointer = rest[:idx], rest[idx:]
			}
			if !schema.ValidAlias(alias) {
				return Path{}, pathError(raw, "invalid scope alias "+alias)
			}
			p.Alias = alias
		}
	default:
		return Path{}, pathError(raw, `path must start with "#" or "/"`)
	}

	if err := checkEscapes(pointer); err != nil {
		return Path{}, pathError(raw, err.Error())
	}
	ptr, err := jsonpointer.New(pointer)
	if err != nil {
		return Path{}, pathError(raw, err.Error()).WithCause(err)
	}
	p.Segments = ptr.DecodedTokens()
	return p, nil
}

// MustParsePath is ParsePath for static paths; it panics on error.
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// checkEscapes rejects "~" not followed by "0" or "1".
func checkEscapes(pointer string) error {
	for i := 0; i < len(pointer); i++ {
		if pointer[i] != '~' {
			continue
		}
		if i+1 >= len(pointer) || (pointer[i+1] != '0' && pointer[i+1] != '1') {
			return fmt.Errorf("invalid escape at offset %d", i)
		}
	}
	return nil
}

func pathError(raw, msg string) *schema.FilterError {
	return schema.NewError(schema.ErrCodePathSyntax, msg).WithPath(raw)
}

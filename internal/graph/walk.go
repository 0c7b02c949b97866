package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rendis/opfilter/pkg/schema"
)

// ResultKind classifies the outcome of a path lookup.
type ResultKind int

const (
	Found ResultKind = iota
	NotFound
	Null
	TypeMismatch
)

func (k ResultKind) String() string {
	switch k {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	case Null:
		return "null"
	case TypeMismatch:
		return "type mismatch"
	default:
		return "unknown"
	}
}

// LookupResult is the outcome of walking a path. ActualKind is set for
// TypeMismatch results.
type LookupResult struct {
	Kind       ResultKind
	Value      any
	ActualKind string
}

// FoundValue builds a Found result.
func FoundValue(v any) LookupResult { return LookupResult{Kind: Found, Value: v} }

// Walk follows segments from root. References met along the way, including
// the final value, are hydrated through inc. A missing key, an out of range
// index, a null intermediate or an untraversable intermediate yields
// NotFound; a null final value yields Null.
func Walk(ctx context.Context, root any, segments []string, inc Includer) (LookupResult, error) {
	cur := root
	for i, seg := range segments {
		var err error
		if cur, err = hydrate(ctx, cur, inc); err != nil {
			return LookupResult{}, err
		}

		switch v := cur.(type) {
		case nil:
			return LookupResult{Kind: NotFound}, nil
		case json.RawMessage:
			return lookupDocument(v, segments[i:])
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return LookupResult{Kind: NotFound}, nil
			}
			cur = next
		case []any:
			idx, ok := parseIndex(seg)
			if !ok || idx >= len(v) {
				return LookupResult{Kind: NotFound}, nil
			}
			cur = v[idx]
		case Object:
			next, ok := v.Property(seg)
			if !ok {
				if id, isID := v.(Identifiable); isID && seg == "id" {
					next, ok = id.Identifier(), true
				}
			}
			if !ok {
				return LookupResult{Kind: NotFound}, nil
			}
			cur = next
		default:
			next, ok := reflectStep(v, seg)
			if !ok {
				return LookupResult{Kind: NotFound}, nil
			}
			cur = next
		}
	}

	cur, err := hydrate(ctx, cur, inc)
	if err != nil {
		return LookupResult{}, err
	}
	if raw, ok := cur.(json.RawMessage); ok {
		return lookupDocument(raw, nil)
	}
	if cur == nil {
		return LookupResult{Kind: Null}, nil
	}
	return FoundValue(cur), nil
}

func hydrate(ctx context.Context, v any, inc Includer) (any, error) {
	var ref Reference
	switch r := v.(type) {
	case Reference:
		ref = r
	case *Reference:
		if r == nil {
			return nil, nil
		}
		ref = *r
	default:
		return v, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, schema.NewError(schema.ErrCodeCancelled, "lookup cancelled").WithCause(err)
	}
	if inc == nil {
		return nil, schema.NewErrorf(schema.ErrCodeValueResolution,
			"reference %s cannot be hydrated: no includer configured", ref)
	}
	out, err := inc.Include(ctx, ref)
	if err != nil {
		if schema.CodeOf(err) != "" {
			return nil, err
		}
		return nil, schema.NewErrorf(schema.ErrCodeValueResolution, "hydrate %s: %s", ref, err).WithCause(err)
	}
	return out, nil
}

// lookupDocument resolves the remaining segments inside an embedded JSON
// payload with gjson.
func lookupDocument(raw json.RawMessage, segments []string) (LookupResult, error) {
	if !gjson.ValidBytes(raw) {
		return LookupResult{}, schema.NewError(schema.ErrCodeValueResolution, "embedded payload is not valid JSON").
			WithSnapshot(string(raw))
	}

	res := gjson.ParseBytes(raw)
	if len(segments) > 0 {
		escaped := make([]string, len(segments))
		for i, seg := range segments {
			escaped[i] = gjson.Escape(seg)
		}
		res = res.Get(strings.Join(escaped, "."))
	}

	if !res.Exists() {
		return LookupResult{Kind: NotFound}, nil
	}
	if res.Type == gjson.Null {
		return LookupResult{Kind: Null}, nil
	}
	v, err := resultValue(res)
	if err != nil {
		return LookupResult{}, err
	}
	return FoundValue(v), nil
}

// resultValue converts a gjson result keeping numbers exact.
func resultValue(res gjson.Result) (any, error) {
	switch res.Type {
	case gjson.True:
		return true, nil
	case gjson.False:
		return false, nil
	case gjson.String:
		return res.Str, nil
	case gjson.Number:
		return json.Number(res.Raw), nil
	case gjson.JSON:
		return DecodeJSON([]byte(res.Raw))
	default:
		return nil, nil
	}
}

// DecodeJSON decodes data keeping numbers as json.Number.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, schema.NewError(schema.ErrCodeValueResolution, "invalid JSON payload").
			WithCause(err).
			WithSnapshot(string(data))
	}
	return v, nil
}

// reflectStep steps into typed Go slices, arrays and string-keyed maps
// ([]map[string]any, map[string]int, ...). Byte slices are scalars.
func reflectStep(v any, seg string) (any, bool) {
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		idx, ok := parseIndex(seg)
		if !ok || idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	case reflect.Map:
		keyType := rv.Type().Key()
		if keyType.Kind() != reflect.String {
			return nil, false
		}
		elem := rv.MapIndex(reflect.ValueOf(seg).Convert(keyType))
		if !elem.IsValid() {
			return nil, false
		}
		return elem.Interface(), true
	default:
		return nil, false
	}
}

func parseIndex(seg string) (int, bool) {
	if seg == "" || (len(seg) > 1 && seg[0] == '0') {
		return 0, false
	}
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

package values

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rendis/opfilter/internal/graph"
)

// keyedObject is an object able to enumerate its properties.
type keyedObject interface {
	graph.Object
	Keys() []string
}

// Plain converts v into values expression engines understand: json.Number
// becomes int64 or float64, decimals become float64, temporal values become
// strings and enumerable objects become maps.
func Plain(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(string(val), 64)
		return f
	case decimal.Decimal:
		f, _ := val.Float64()
		return f
	case Date:
		return val.String()
	case TimeOfDay:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Plain(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Plain(item)
		}
		return out
	case *graph.Entity:
		out := make(map[string]any, len(val.Properties)+1)
		for k, item := range val.Properties {
			out[k] = Plain(item)
		}
		if _, ok := out["id"]; !ok {
			out["id"] = val.ID
		}
		return out
	case keyedObject:
		keys := val.Keys()
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			item, _ := val.Property(k)
			out[k] = Plain(item)
		}
		return out
	case graph.Reference:
		return map[string]any{"type": val.Type, "id": val.ID}
	case json.RawMessage:
		decoded, err := graph.DecodeJSON(val)
		if err != nil {
			return string(val)
		}
		return Plain(decoded)
	default:
		if l, ok := ToList(v); ok {
			return Plain(l)
		}
		return v
	}
}

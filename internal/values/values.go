// Package values coerces dynamically typed operands to the value kind a
// condition pins, and compares coerced values.
package values

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rendis/opfilter/internal/graph"
	"github.com/rendis/opfilter/pkg/schema"
)

// Coerce converts v to the canonical Go representation of kind:
//
//	date      Date
//	dateTime  time.Time
//	time      TimeOfDay
//	integer   int64
//	number    decimal.Decimal
//	text      string
//	list      []any
//	object    map[string]any or graph.Object
//
// ok is false when v cannot represent kind. nil never coerces.
func Coerce(kind schema.ValueKind, v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch kind {
	case schema.KindDate:
		return ToDate(v)
	case schema.KindDateTime:
		return ToDateTime(v)
	case schema.KindTime:
		return ToTimeOfDay(v)
	case schema.KindInteger:
		return ToInteger(v)
	case schema.KindNumber:
		return ToDecimal(v)
	case schema.KindText:
		s, ok := v.(string)
		return s, ok
	case schema.KindList:
		return ToList(v)
	case schema.KindObject:
		return ToObject(v)
	default:
		return nil, false
	}
}

// ToInteger coerces v to int64. Decimal values are rejected; floats are
// accepted only when integral and exactly representable.
func ToInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToInt(n)
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	case float64:
		return floatToInt(n)
	case float32:
		return floatToInt(float64(n))
	default:
		return 0, false
	}
}

func uintToInt(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// 2^63 is the first float64 outside int64.
	if f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// ToDecimal coerces any numeric v to an arbitrary-precision decimal.
func ToDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Decimal{}, false
		}
		return *n, true
	case json.Number:
		d, err := decimal.NewFromString(string(n))
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat32(n), true
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0), true
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(n)), 0), true
	}
	if i, ok := ToInteger(v); ok {
		return decimal.NewFromInt(i), true
	}
	return decimal.Decimal{}, false
}

// ToList coerces v to []any. Any Go slice or array other than []byte is accepted.
func ToList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []byte, json.RawMessage, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ToObject accepts structural objects: decoded JSON maps and graph.Object values.
func ToObject(v any) (any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case graph.Object:
		return o, true
	default:
		return nil, false
	}
}

// HasProperty reports whether the structural object obj carries name.
func HasProperty(obj any, name string) bool {
	switch o := obj.(type) {
	case map[string]any:
		_, ok := o[name]
		return ok
	case graph.Object:
		_, ok := o.Property(name)
		return ok
	default:
		return false
	}
}

// KindOf names the dynamic kind of v for diagnostics.
func KindOf(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "text"
	case bool:
		return "boolean"
	case json.Number, float32, float64, decimal.Decimal,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	case time.Time:
		return "dateTime"
	case Date:
		return "date"
	case TimeOfDay:
		return "time"
	case map[string]any, graph.Object:
		return "object"
	case []any:
		return "list"
	default:
		if _, ok := ToList(val); ok {
			return "list"
		}
		return fmt.Sprintf("%T", v)
	}
}

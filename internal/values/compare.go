package values

import (
	"cmp"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rendis/opfilter/pkg/schema"
)

// Compare orders two values already coerced to kind. ok is false when
// either value is not the canonical representation of kind.
func Compare(kind schema.ValueKind, a, b any) (c int, ok bool) {
	switch kind {
	case schema.KindDate:
		x, ok1 := a.(Date)
		y, ok2 := b.(Date)
		if !ok1 || !ok2 {
			return 0, false
		}
		return x.Compare(y), true
	case schema.KindDateTime:
		x, ok1 := a.(time.Time)
		y, ok2 := b.(time.Time)
		if !ok1 || !ok2 {
			return 0, false
		}
		return x.Compare(y), true
	case schema.KindTime:
		x, ok1 := a.(TimeOfDay)
		y, ok2 := b.(TimeOfDay)
		if !ok1 || !ok2 {
			return 0, false
		}
		return cmp.Compare(x, y), true
	case schema.KindInteger:
		x, ok1 := a.(int64)
		y, ok2 := b.(int64)
		if !ok1 || !ok2 {
			return 0, false
		}
		return cmp.Compare(x, y), true
	case schema.KindNumber:
		x, ok1 := a.(decimal.Decimal)
		y, ok2 := b.(decimal.Decimal)
		if !ok1 || !ok2 {
			return 0, false
		}
		return x.Cmp(y), true
	case schema.KindText:
		x, ok1 := a.(string)
		y, ok2 := b.(string)
		if !ok1 || !ok2 {
			return 0, false
		}
		return strings.Compare(x, y), true
	default:
		return 0, false
	}
}

// Holds applies op to a comparison result.
func Holds(op schema.Operator, c int) bool {
	switch op {
	case schema.OpEqual:
		return c == 0
	case schema.OpGreater:
		return c > 0
	case schema.OpGreaterOrEqual:
		return c >= 0
	case schema.OpLess:
		return c < 0
	case schema.OpLessOrEqual:
		return c <= 0
	default:
		return false
	}
}

// Equal is kind-strict equality used for list membership: numbers equal
// numbers by decimal value, everything else only equals values of the same
// kind. Lists and objects compare element-wise.
func Equal(a, b any) bool {
	an, aNum := numeric(a)
	bn, bNum := numeric(b)
	if aNum || bNum {
		return aNum && bNum && an.Equal(bn)
	}

	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}

	if xl, ok := ToList(a); ok {
		yl, ok := ToList(b)
		if !ok || len(xl) != len(yl) {
			return false
		}
		for i := range xl {
			if !Equal(xl[i], yl[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func numeric(v any) (decimal.Decimal, bool) {
	switch v.(type) {
	case json.Number, decimal.Decimal, float32, float64,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return ToDecimal(v)
	default:
		return decimal.Decimal{}, false
	}
}

package queryir

import (
	"reflect"
	"slices"
	"time"

	"github.com/roach88/docquery/internal/condition"
)

// Kind classifies a clause value for cast inference and operator choice.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindFieldRef
	KindOther
)

// KindOf classifies v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return KindNumber
	case string:
		return KindString
	case condition.FieldRef:
		return KindFieldRef
	case condition.Map, map[string]any:
		return KindObject
	case time.Time:
		return KindString
	}
	if _, ok := Elements(v); ok {
		return KindArray
	}
	return KindOther
}

// Elements returns the elements of a slice or array value as []any.
// Byte slices and strings are not collections.
func Elements(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil, string, []byte:
		return nil, false
	case []any:
		return val, true
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

// Normalize converts collections to []any and map[string]any to a
// condition.Map with sorted keys, recursively, so compiled output does not
// depend on Go map iteration order.
func Normalize(v any) any {
	switch val := v.(type) {
	case condition.Map:
		var out condition.Map
		for k, inner := range val.All() {
			out.Set(k, Normalize(inner))
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		var out condition.Map
		for _, k := range keys {
			out.Set(k, Normalize(val[k]))
		}
		return out
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	}
	if elems, ok := Elements(v); ok {
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = Normalize(e)
		}
		return out
	}
	return v
}

// CommonKind returns the kind shared by every element, or KindOther when
// the elements are mixed. An empty list yields KindOther.
func CommonKind(values []any) Kind {
	if len(values) == 0 {
		return KindOther
	}
	k := KindOf(values[0])
	for _, v := range values[1:] {
		if KindOf(v) != k {
			return KindOther
		}
	}
	return k
}

// ToFloat64 converts a numeric value to float64.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

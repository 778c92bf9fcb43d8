package query

import (
	"cmp"
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// equalValues compares scalars with numeric normalization; composite values
// fall back to deep equality.
func equalValues(a, b any) bool {
	if an, ok := asNumber(a); ok {
		bn, ok := asNumber(b)
		return ok && an == bn
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := asTime(b)
		return ok && at.Equal(bt)
	}
	if bt, ok := b.(time.Time); ok {
		at, ok := asTime(a)
		return ok && at.Equal(bt)
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

// orderValues compares two present values for range operators. ok is false
// when the values are not mutually ordered.
func orderValues(a, b any) (int, bool) {
	if an, ok := asNumber(a); ok {
		if bn, ok := asNumber(b); ok {
			return cmp.Compare(an, bn), true
		}
		return 0, false
	}
	_, aIsTime := a.(time.Time)
	_, bIsTime := b.(time.Time)
	if aIsTime || bIsTime {
		at, okA := asTime(a)
		bt, okB := asTime(b)
		if okA && okB {
			return at.Compare(bt), true
		}
		return 0, false
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), true
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return cmp.Compare(boolRank(ab), boolRank(bb)), true
		}
	}
	return 0, false
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// typeRank gives mixed-type sort keys a stable order.
func typeRank(v any) int {
	if _, ok := asNumber(v); ok {
		return 2
	}
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case time.Time:
		return 3
	case string:
		return 4
	case []any:
		return 5
	case map[string]any:
		return 6
	}
	return 7
}

// sortCompare is a total order over present values: values of one type
// compare naturally, mixed types compare by type rank.
func sortCompare(a, b any) int {
	if c, ok := orderValues(a, b); ok {
		return c
	}
	if ra, rb := typeRank(a), typeRank(b); ra != rb {
		return cmp.Compare(ra, rb)
	}
	return 0
}

// typeName reports the JSON type of v.
func typeName(v any) string {
	if _, ok := asNumber(v); ok {
		return "number"
	}
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case time.Time:
		return "date"
	case []any, []map[string]any:
		return "array"
	case map[string]any:
		return "object"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map:
		return "object"
	}
	return "unknown"
}

// elements returns the items of an array value.
func elements(v any) ([]any, bool) {
	switch items := v.(type) {
	case []any:
		return items, true
	case []map[string]any:
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, true
	case []string:
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

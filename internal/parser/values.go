package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// NormalizeValue converts decoder output into the plain value space used by
// documents: map[string]any, []any, string, bool, int64, float64, nil and
// time.Time. Integral floats are kept as float64.
func NormalizeValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = NormalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = NormalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = NormalizeValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = NormalizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return clampUnsigned(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return clampUnsigned(v)
	case float32:
		return float64(v)
	case time.Time:
		return v.UTC()
	default:
		return v
	}
}

func clampUnsigned(v uint64) any {
	if v > math.MaxInt64 {
		return float64(v)
	}
	return int64(v)
}

// NormalizeFields normalizes every value of fields, returning a fresh map.
func NormalizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = NormalizeValue(value)
	}
	return out
}

// coerceCell converts a CSV cell into int64, float64 or bool when the text is
// unambiguous, and leaves it as a string otherwise.
func coerceCell(cell string) any {
	if cell == "" {
		return cell
	}
	if hasLeadingZero(cell) {
		return cell
	}
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) && looksDecimal(cell) {
		return f
	}
	switch cell {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}

// hasLeadingZero keeps identifiers like "007" as strings.
func hasLeadingZero(cell string) bool {
	digits := cell
	if digits[0] == '-' || digits[0] == '+' {
		digits = digits[1:]
	}
	return len(digits) > 1 && digits[0] == '0' && digits[1] >= '0' && digits[1] <= '9'
}

// looksDecimal rejects ParseFloat spellings such as "Inf", "0x1p-2" or "1_0".
func looksDecimal(cell string) bool {
	for i := 0; i < len(cell); i++ {
		c := cell[i]
		switch {
		case c >= '0' && c <= '9', c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}

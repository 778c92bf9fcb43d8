package query

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/goliatone/go-content/internal/parser"
)

// Hash returns the content address of desc. Descriptors that differ only in
// key order or number spelling hash identically.
func Hash(desc Descriptor) (string, error) {
	q, err := Compile(desc)
	if err != nil {
		return "", err
	}
	return q.Key(), nil
}

// Canonicalize encodes value as JSON with sorted object keys and integral
// numbers written as integers.
func Canonicalize(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(canonicalValue(parser.NormalizeValue(value))); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func canonicalValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = canonicalValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = canonicalValue(item)
		}
		return out
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v)
		}
		return v
	default:
		return v
	}
}

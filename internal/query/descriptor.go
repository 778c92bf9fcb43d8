package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-content/internal/parser"
)

// MaxLimit bounds the page size a descriptor may request.
const MaxLimit = 10000

// SortKey orders results by Field, descending when Desc is set.
type SortKey struct {
	Field string
	Desc  bool
}

// Descriptor is the typed form of a query request. Where conditions are
// ANDed together.
type Descriptor struct {
	First   bool
	Where   []map[string]any
	Only    []string
	Without []string
	Sort    []SortKey
	Skip    int
	Limit   int
	Locale  string
	Path    string
}

// Validate checks numeric bounds and field names.
func (d Descriptor) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Skip, validation.Min(0)),
		validation.Field(&d.Limit, validation.Min(0), validation.Max(MaxLimit)),
		validation.Field(&d.Only, validation.Each(validation.Required)),
		validation.Field(&d.Without, validation.Each(validation.Required)),
		validation.Field(&d.Sort, validation.By(func(value any) error {
			for _, key := range value.([]SortKey) {
				if strings.TrimSpace(key.Field) == "" {
					return validation.NewError("content.query.sort_field_required", "sort field is required")
				}
			}
			return nil
		})),
	)
}

// Canonical returns the normalized wire form used for hashing. Equivalent
// spellings (`only: "_id"` and `only: ["_id"]`) share one canonical form.
func (d Descriptor) Canonical() map[string]any {
	out := map[string]any{}
	if d.First {
		out["first"] = true
	}
	if len(d.Where) > 0 {
		where := make([]any, len(d.Where))
		for i, cond := range d.Where {
			where[i] = parser.NormalizeValue(cond)
		}
		out["where"] = where
	}
	if len(d.Only) > 0 {
		out["only"] = stringsToAny(d.Only)
	}
	if len(d.Without) > 0 {
		out["without"] = stringsToAny(d.Without)
	}
	if len(d.Sort) > 0 {
		keys := make([]any, len(d.Sort))
		for i, key := range d.Sort {
			dir := int64(1)
			if key.Desc {
				dir = -1
			}
			keys[i] = map[string]any{key.Field: dir}
		}
		out["sort"] = keys
	}
	if d.Skip > 0 {
		out["skip"] = int64(d.Skip)
	}
	if d.Limit > 0 {
		out["limit"] = int64(d.Limit)
	}
	if d.Locale != "" {
		out["locale"] = d.Locale
	}
	if d.Path != "" {
		out["path"] = d.Path
	}
	return out
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

type wireDescriptor struct {
	First   *bool           `json:"first"`
	Where   json.RawMessage `json:"where"`
	Only    json.RawMessage `json:"only"`
	Without json.RawMessage `json:"without"`
	Sort    json.RawMessage `json:"sort"`
	Skip    *json.Number    `json:"skip"`
	Limit   *json.Number    `json:"limit"`
	Locale  *string         `json:"locale"`
	Path    json.RawMessage `json:"path"`
}

// decodeDescriptor converts schema-valid wire JSON into a Descriptor.
func decodeDescriptor(raw []byte) (Descriptor, error) {
	var wire wireDescriptor
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&wire); err != nil {
		return Descriptor{}, err
	}

	var d Descriptor
	var err error
	if wire.First != nil {
		d.First = *wire.First
	}
	if d.Where, err = decodeWhere(wire.Where); err != nil {
		return d, fmt.Errorf("where: %w", err)
	}
	if d.Only, err = decodeStringList(wire.Only); err != nil {
		return d, fmt.Errorf("only: %w", err)
	}
	if d.Without, err = decodeStringList(wire.Without); err != nil {
		return d, fmt.Errorf("without: %w", err)
	}
	if d.Sort, err = decodeSort(wire.Sort); err != nil {
		return d, fmt.Errorf("sort: %w", err)
	}
	if d.Skip, err = decodeInt(wire.Skip); err != nil {
		return d, fmt.Errorf("skip: %w", err)
	}
	if d.Limit, err = decodeInt(wire.Limit); err != nil {
		return d, fmt.Errorf("limit: %w", err)
	}
	if wire.Locale != nil {
		d.Locale = *wire.Locale
	}
	path, err := decodeStringList(wire.Path)
	if err != nil {
		return d, fmt.Errorf("path: %w", err)
	}
	if len(path) > 0 {
		d.Path = strings.Join(path, "/")
	}
	return d, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeWhere(raw json.RawMessage) ([]map[string]any, error) {
	if isNull(raw) {
		return nil, nil
	}
	var value any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	switch v := parser.NormalizeValue(value).(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected object, got %T", item)
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected object or array, got %T", v)
	}
}

func decodeStringList(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// decodeSort keeps the key order of sort objects, which sets priority.
func decodeSort(raw json.RawMessage) ([]SortKey, error) {
	if isNull(raw) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '{' {
		return orderedSortObject(trimmed)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	var keys []SortKey
	for _, item := range items {
		next, err := orderedSortObject(item)
		if err != nil {
			return nil, err
		}
		keys = append(keys, next...)
	}
	return keys, nil
}

func orderedSortObject(raw []byte) ([]SortKey, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if tok, err := decoder.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("expected object")
	}
	var keys []SortKey
	for decoder.More() {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		field, _ := tok.(string)
		var dir json.Number
		if err := decoder.Decode(&dir); err != nil {
			return nil, fmt.Errorf("%s: direction must be 1 or -1", field)
		}
		switch dir.String() {
		case "1":
			keys = append(keys, SortKey{Field: field})
		case "-1":
			keys = append(keys, SortKey{Field: field, Desc: true})
		default:
			return nil, fmt.Errorf("%s: direction must be 1 or -1", field)
		}
	}
	return keys, nil
}

func decodeInt(n *json.Number) (int, error) {
	if n == nil {
		return 0, nil
	}
	v, err := n.Int64()
	if err != nil {
		return 0, err
	}
	if v > MaxLimit*1000 {
		return 0, fmt.Errorf("value %d out of range", v)
	}
	return int(v), nil
}

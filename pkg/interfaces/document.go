package interfaces

import (
	"maps"
	"strings"
)

// Reserved document keys. Every key starting with an underscore is owned by
// the pipeline and cannot be overridden by front-matter except where noted.
const (
	KeyID        = "_id"
	KeyPath      = "_path"
	KeyDir       = "_dir"
	KeyLocale    = "_locale"
	KeySource    = "_source"
	KeyFile      = "_file"
	KeyExtension = "_extension"
	KeyType      = "_type"
	KeyDraft     = "_draft"
	KeyPartial   = "_partial"
	KeyOrder     = "_order"

	KeyTitle       = "title"
	KeyDescription = "description"
	KeyBody        = "body"
	KeyExcerpt     = "excerpt"
)

// Document is the canonical normalized content record. Documents handed out
// by the index and the query engine are shared and must be treated as
// read-only; use Clone before mutating.
type Document map[string]any

// ID returns the globally unique document identifier.
func (d Document) ID() string { return d.String(KeyID) }

// Path returns the route-facing path.
func (d Document) Path() string { return d.String(KeyPath) }

// Locale returns the locale the document is scoped to.
func (d Document) Locale() string { return d.String(KeyLocale) }

// Type returns the source format name (markdown, yaml, json, csv).
func (d Document) Type() string { return d.String(KeyType) }

// Title returns the resolved document title.
func (d Document) Title() string { return d.String(KeyTitle) }

// Body returns the format specific payload.
func (d Document) Body() any { return d[KeyBody] }

// String returns the string stored under key, or "" when absent or not a string.
func (d Document) String(key string) string {
	if d == nil {
		return ""
	}
	value, _ := d[key].(string)
	return value
}

// Bool returns the boolean stored under key.
func (d Document) Bool(key string) bool {
	if d == nil {
		return false
	}
	value, _ := d[key].(bool)
	return value
}

// Get resolves a dot separated field path (e.g. "author.name") against the
// document. Numeric segments index into slices.
func (d Document) Get(path string) (any, bool) {
	if d == nil {
		return nil, false
	}
	if value, ok := d[path]; ok {
		return value, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	return Lookup(map[string]any(d), strings.Split(path, "."))
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// Lookup walks nested maps and slices following segments.
func Lookup(value any, segments []string) (any, bool) {
	current := value
	for _, segment := range segments {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = next
		case Document:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, ok := parseIndex(segment)
			if !ok || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		case []map[string]any:
			idx, ok := parseIndex(segment)
			if !ok || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func parseIndex(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}
	n := 0
	for _, r := range segment {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

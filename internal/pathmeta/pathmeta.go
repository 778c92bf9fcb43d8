// Package pathmeta derives document identity and routing metadata from a
// file's location inside a content source.
package pathmeta

import (
	"path"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/goliatone/go-slug"

	"github.com/goliatone/go-content/internal/parser"
)

// DefaultIgnorePrefixes mark files and directories excluded from indexing.
var DefaultIgnorePrefixes = []string{".", "-"}

// Source is a named content tree. Prefix is prepended to every relative
// path, so a source mounted at prefix `fa` yields ids like `name:fa:index.md`.
type Source struct {
	Name   string
	Root   string
	Prefix string
}

// Meta is the path-derived metadata of one file.
type Meta struct {
	ID        string
	Path      string
	Dir       string
	Locale    string
	Source    string
	File      string
	Extension string
	Title     string
	Ignored   bool
	Draft     bool
	Partial   bool
	Order     int
	HasOrder  bool
}

// Transformer applies the locale and ignore conventions.
type Transformer struct {
	locales       []string
	defaultLocale string
	ignores       []string
}

// New builds a Transformer. An empty ignores list falls back to
// DefaultIgnorePrefixes.
func New(locales []string, defaultLocale string, ignores []string) *Transformer {
	t := &Transformer{defaultLocale: strings.TrimSpace(defaultLocale)}
	for _, locale := range locales {
		if trimmed := strings.TrimSpace(locale); trimmed != "" && !slices.Contains(t.locales, trimmed) {
			t.locales = append(t.locales, trimmed)
		}
	}
	for _, prefix := range ignores {
		if prefix != "" {
			t.ignores = append(t.ignores, prefix)
		}
	}
	if len(t.ignores) == 0 {
		t.ignores = slices.Clone(DefaultIgnorePrefixes)
	}
	return t
}

// DefaultLocale returns the locale assigned to unscoped paths.
func (t *Transformer) DefaultLocale() string { return t.defaultLocale }

// Locales returns the configured locale codes.
func (t *Transformer) Locales() []string { return slices.Clone(t.locales) }

// Fingerprint identifies the settings that shape derived metadata.
func (t *Transformer) Fingerprint() string {
	return "locales=" + strings.Join(t.locales, ",") +
		";default=" + t.defaultLocale +
		";ignores=" + strings.Join(t.ignores, ",")
}

// Ignored reports whether rel, relative to source, falls under the ignore
// convention.
func (t *Transformer) Ignored(source Source, rel string) bool {
	return t.ignored(splitSegments(source.Prefix, rel))
}

func (t *Transformer) ignored(segments []string) bool {
	for _, segment := range segments {
		for _, prefix := range t.ignores {
			if strings.HasPrefix(segment, prefix) {
				return true
			}
		}
	}
	return false
}

// Derive computes the metadata of the file at rel inside source. Ignored
// files return early with only ID, Source and File populated.
func (t *Transformer) Derive(source Source, rel string) Meta {
	segments := splitSegments(source.Prefix, rel)
	meta := Meta{
		ID:     source.Name + ":" + strings.Join(segments, ":"),
		Source: source.Name,
		File:   strings.Join(segments, "/"),
	}
	if len(segments) == 0 {
		meta.Ignored = true
		return meta
	}
	if t.ignored(segments) {
		meta.Ignored = true
		return meta
	}

	last := segments[len(segments)-1]
	ext := path.Ext(last)
	meta.Extension = strings.TrimPrefix(ext, ".")

	parts := slices.Clone(segments)
	parts[len(parts)-1] = strings.TrimSuffix(last, ext)

	meta.Draft = strings.HasSuffix(parts[len(parts)-1], ".draft")
	meta.Partial = slices.ContainsFunc(parts, func(part string) bool { return strings.HasPrefix(part, "_") })

	meta.Locale = t.defaultLocale
	if len(parts) > 1 && slices.Contains(t.locales, parts[0]) {
		meta.Locale = parts[0]
		parts = parts[1:]
	}

	file := parts[len(parts)-1]
	dirs := parts[:len(parts)-1]

	if order, _, ok := parser.OrderPrefix(file); ok {
		meta.Order, meta.HasOrder = order, true
	} else if isIndex(refine(file)) && len(dirs) > 0 {
		if order, _, ok := parser.OrderPrefix(dirs[len(dirs)-1]); ok {
			meta.Order, meta.HasOrder = order, true
		}
	}

	route := make([]string, 0, len(parts))
	for _, part := range parts {
		if refined := refine(part); refined != "" {
			route = append(route, Slugify(refined))
		}
	}
	meta.Path = "/" + strings.Join(route, "/")

	if len(dirs) > 0 {
		meta.Dir = Slugify(refine(dirs[len(dirs)-1]))
	}

	switch name := refine(file); {
	case name != "":
		meta.Title = GenerateTitle(name)
	case len(dirs) > 0:
		meta.Title = GenerateTitle(refine(dirs[len(dirs)-1]))
	}
	return meta
}

// refine strips ordering prefixes, `index` and `.draft` from a route part.
func refine(part string) string {
	if parser.IsSemverSegment(part) {
		return part
	}
	if _, rest, ok := parser.OrderPrefix(part); ok {
		part = rest
	}
	part = strings.TrimSuffix(part, ".draft")
	if isIndex(part) {
		return ""
	}
	return part
}

func isIndex(part string) bool {
	return part == "" || part == "index"
}

var letterMap = sync.OnceValue(func() map[string]string {
	mapping, err := slug.GetCharMap()
	if err != nil {
		return nil
	}
	return mapping
})

// Slugify normalizes a route segment with go-slug. Accented letters are
// transliterated and parentheses are kept, so `foo(bar)` and `foobar` route
// apart. Segments that cannot be normalized fall back to lowercase.
func Slugify(segment string) string {
	if parser.IsSemverSegment(segment) {
		return strings.ToLower(segment)
	}

	value := transliterate(segment)
	var b strings.Builder
	start := 0
	for i, r := range value {
		if r == '(' || r == ')' {
			b.WriteString(slugRun(value[start:i]))
			b.WriteRune(r)
			start = i + 1
		}
	}
	b.WriteString(slugRun(value[start:]))

	out := b.String()
	if strings.Trim(out, "()") == "" {
		return strings.ToLower(segment)
	}
	return out
}

func slugRun(run string) string {
	if strings.TrimSpace(run) == "" {
		return ""
	}
	normalized, err := slug.Normalize(run)
	if err != nil {
		return ""
	}
	return normalized
}

// transliterate maps letters through the go-slug char map; other runes pass
// through untouched.
func transliterate(value string) string {
	mapping := letterMap()
	if len(mapping) == 0 {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r < utf8.RuneSelf || !unicode.IsLetter(r) {
			b.WriteRune(r)
			continue
		}
		if replacement, ok := mapping[string(r)]; ok {
			b.WriteString(replacement)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GenerateTitle turns a file name like `multi-part-path` into `Multi Part Path`.
// Version-like names such as `1.0.x` are returned as is.
func GenerateTitle(name string) string {
	if parser.IsSemverSegment(name) {
		return name
	}
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	return strings.Join(words, " ")
}

// Join resolves route parts, each possibly holding several `/`-separated
// components, into one cleaned route path with a leading slash.
func Join(parts ...string) string {
	var out []string
	for _, part := range parts {
		for _, component := range strings.Split(part, "/") {
			switch component = strings.TrimSpace(component); component {
			case "", ".":
			case "..":
				if len(out) > 0 {
					out = out[:len(out)-1]
				}
			default:
				out = append(out, component)
			}
		}
	}
	return "/" + strings.Join(out, "/")
}

func splitSegments(prefix, rel string) []string {
	var segments []string
	for _, raw := range []string{prefix, rel} {
		raw = strings.ReplaceAll(raw, "\\", "/")
		for _, segment := range strings.Split(raw, "/") {
			if segment != "" && segment != "." {
				segments = append(segments, segment)
			}
		}
	}
	return segments
}

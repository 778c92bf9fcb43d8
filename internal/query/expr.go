package query

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-content/pkg/interfaces"
)

// Expr is a compiled filter predicate.
type Expr interface {
	Match(doc interfaces.Document) bool
}

// Field is a dot-separated document path such as `author.name`.
type Field []string

// ParseField splits a dotted path.
func ParseField(path string) Field {
	return Field(strings.Split(path, "."))
}

func (f Field) String() string { return strings.Join(f, ".") }

// lookup resolves the path. A non-numeric segment applied to an array fans
// out over its elements, so `authors.name` yields every author name.
func (f Field) lookup(doc interfaces.Document) (any, bool) {
	if len(f) == 1 {
		value, ok := doc[f[0]]
		return value, ok
	}
	return walk(map[string]any(doc), f)
}

func walk(value any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return value, true
	}
	if items, ok := elements(value); ok {
		if _, numeric := interfaces.Lookup(items, segments[:1]); !numeric {
			var out []any
			for _, item := range items {
				if v, ok := walk(item, segments); ok {
					out = append(out, v)
				}
			}
			return out, len(out) > 0
		}
	}
	next, ok := interfaces.Lookup(value, segments[:1])
	if !ok {
		return nil, false
	}
	return walk(next, segments[1:])
}

// anyElement applies pred to value, or to each element when value is an array.
func anyElement(value any, pred func(any) bool) bool {
	if pred(value) {
		return true
	}
	if items, ok := elements(value); ok {
		for _, item := range items {
			if pred(item) {
				return true
			}
		}
	}
	return false
}

// All matches every document.
type All struct{}

func (All) Match(interfaces.Document) bool { return true }

// Eq matches when the field equals Value, or any element of an array field does.
type Eq struct {
	Field Field
	Value any
}

func (e Eq) Match(doc interfaces.Document) bool {
	value, ok := e.Field.lookup(doc)
	if !ok {
		return e.Value == nil
	}
	return anyElement(value, func(v any) bool { return equalValues(v, e.Value) })
}

// Ne is the negation of Eq.
type Ne struct {
	Field Field
	Value any
}

func (e Ne) Match(doc interfaces.Document) bool {
	return !Eq(e).Match(doc)
}

// CmpOp enumerates range operators.
type CmpOp string

const (
	OpGt  CmpOp = "$gt"
	OpGte CmpOp = "$gte"
	OpLt  CmpOp = "$lt"
	OpLte CmpOp = "$lte"
)

// Cmp matches ordered comparisons. Values of different kinds never match.
type Cmp struct {
	Field Field
	Op    CmpOp
	Value any
}

func (c Cmp) Match(doc interfaces.Document) bool {
	value, ok := c.Field.lookup(doc)
	if !ok {
		return false
	}
	return anyElement(value, func(v any) bool {
		order, ok := orderValues(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGt:
			return order > 0
		case OpGte:
			return order >= 0
		case OpLt:
			return order < 0
		case OpLte:
			return order <= 0
		}
		return false
	})
}

// In matches when the field equals one of Values.
type In struct {
	Field  Field
	Values []any
}

func (e In) Match(doc interfaces.Document) bool {
	value, ok := e.Field.lookup(doc)
	if !ok {
		return false
	}
	return anyElement(value, func(v any) bool {
		for _, candidate := range e.Values {
			if equalValues(v, candidate) {
				return true
			}
		}
		return false
	})
}

// Nin is the negation of In.
type Nin struct {
	Field  Field
	Values []any
}

func (e Nin) Match(doc interfaces.Document) bool {
	return !In(e).Match(doc)
}

// Exists matches on field presence.
type Exists struct {
	Field Field
	Want  bool
}

func (e Exists) Match(doc interfaces.Document) bool {
	_, ok := e.Field.lookup(doc)
	return ok == e.Want
}

// Contains matches a substring of a string field or an element of an array
// field. Fold makes string matching case-insensitive.
type Contains struct {
	Field Field
	Value any
	Fold  bool
}

func (c Contains) Match(doc interfaces.Document) bool {
	value, ok := c.Field.lookup(doc)
	if !ok {
		return false
	}
	return containsValue(value, c.Value, c.Fold)
}

func containsValue(haystack, needle any, fold bool) bool {
	if s, ok := haystack.(string); ok {
		n, ok := needle.(string)
		if !ok {
			return false
		}
		if fold {
			return strings.Contains(strings.ToLower(s), strings.ToLower(n))
		}
		return strings.Contains(s, n)
	}
	items, ok := elements(haystack)
	if !ok {
		return false
	}
	for _, item := range items {
		if fold {
			if s, ok := item.(string); ok {
				if n, ok := needle.(string); ok && strings.EqualFold(s, n) {
					return true
				}
				continue
			}
		}
		if equalValues(item, needle) {
			return true
		}
	}
	return false
}

// ContainsAny matches when the field contains at least one of Values.
type ContainsAny struct {
	Field  Field
	Values []any
}

func (c ContainsAny) Match(doc interfaces.Document) bool {
	value, ok := c.Field.lookup(doc)
	if !ok {
		return false
	}
	for _, needle := range c.Values {
		if containsValue(value, needle, false) {
			return true
		}
	}
	return false
}

// ContainsAll matches when the field contains every one of Values.
type ContainsAll struct {
	Field  Field
	Values []any
}

func (c ContainsAll) Match(doc interfaces.Document) bool {
	value, ok := c.Field.lookup(doc)
	if !ok {
		return false
	}
	for _, needle := range c.Values {
		if !containsValue(value, needle, false) {
			return false
		}
	}
	return true
}

// Regex matches string fields (or string elements) against Pattern.
type Regex struct {
	Field   Field
	Pattern *regexp.Regexp
}

func (r Regex) Match(doc interfaces.Document) bool {
	value, ok := r.Field.lookup(doc)
	if !ok {
		return false
	}
	return anyElement(value, func(v any) bool {
		s, ok := v.(string)
		return ok && r.Pattern.MatchString(s)
	})
}

// Size matches the length of an array or string field.
type Size struct {
	Field Field
	N     int
}

func (s Size) Match(doc interfaces.Document) bool {
	value, ok := s.Field.lookup(doc)
	if !ok {
		return false
	}
	if items, ok := elements(value); ok {
		return len(items) == s.N
	}
	if str, ok := value.(string); ok {
		return len([]rune(str)) == s.N
	}
	return false
}

// Type matches the JSON type name of a field.
type Type struct {
	Field Field
	Name  string
}

func (t Type) Match(doc interfaces.Document) bool {
	value, ok := t.Field.lookup(doc)
	if !ok {
		return t.Name == "undefined"
	}
	return typeName(value) == t.Name
}

// And matches when every child matches.
type And []Expr

func (a And) Match(doc interfaces.Document) bool {
	for _, expr := range a {
		if !expr.Match(doc) {
			return false
		}
	}
	return true
}

// Or matches when any child matches.
type Or []Expr

func (o Or) Match(doc interfaces.Document) bool {
	for _, expr := range o {
		if expr.Match(doc) {
			return true
		}
	}
	return false
}

// Not inverts Expr.
type Not struct {
	Expr Expr
}

func (n Not) Match(doc interfaces.Document) bool {
	return !n.Expr.Match(doc)
}

// PathPrefix matches documents whose `_path` is Prefix or lies below it.
type PathPrefix struct {
	Prefix string
}

func (p PathPrefix) Match(doc interfaces.Document) bool {
	if p.Prefix == "/" || p.Prefix == "" {
		return true
	}
	path := doc.Path()
	return path == p.Prefix || strings.HasPrefix(path, p.Prefix+"/")
}

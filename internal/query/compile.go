package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/goliatone/go-content/internal/identity"
	"github.com/goliatone/go-content/internal/pathmeta"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// Query is a validated, compiled descriptor. It is immutable and safe to
// reuse across snapshots.
type Query struct {
	desc      Descriptor
	expr      Expr
	key       string
	canonical []byte
}

// Descriptor returns the typed descriptor.
func (q *Query) Descriptor() Descriptor { return q.desc }

// Expr returns the compiled filter.
func (q *Query) Expr() Expr { return q.expr }

// Key is the content address of the canonical descriptor.
func (q *Query) Key() string { return q.key }

// Canonical returns the canonical JSON encoding of the descriptor.
func (q *Query) Canonical() []byte { return slices.Clone(q.canonical) }

// Parse validates raw wire JSON and compiles it. An empty payload selects
// every document.
func Parse(raw []byte) (*Query, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}

	var instance any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&instance); err != nil {
		return nil, malformed(raw, "invalid JSON: %v", err)
	}
	if decoder.More() {
		return nil, malformed(raw, "invalid JSON: unexpected data after descriptor")
	}

	schema, err := wireSchema()
	if err != nil {
		return nil, fmt.Errorf("query: compile descriptor schema: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		m := malformed(trimmed, "descriptor does not match schema")
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			m.Issues = collectIssues(validationErr)
			if len(m.Issues) > 0 {
				m.Reason = issueSummary(m.Issues)
			}
		}
		return nil, m
	}

	desc, err := decodeDescriptor(trimmed)
	if err != nil {
		return nil, malformed(trimmed, "%v", err)
	}
	q, err := compile(desc)
	if err != nil {
		var m *MalformedQueryError
		if errors.As(err, &m) {
			m.Descriptor = cloneRaw(trimmed)
		}
		return nil, err
	}
	return q, nil
}

func issueSummary(issues []Issue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		location := issue.Location
		if location == "" {
			location = "/"
		}
		parts = append(parts, location+": "+issue.Message)
	}
	return strings.Join(parts, "; ")
}

// Compile validates and compiles a typed descriptor.
func Compile(desc Descriptor) (*Query, error) {
	q, err := compile(desc)
	if err != nil {
		var m *MalformedQueryError
		if errors.As(err, &m) && m.Descriptor == nil {
			if encoded, encErr := json.Marshal(desc.Canonical()); encErr == nil {
				m.Descriptor = encoded
			}
		}
		return nil, err
	}
	return q, nil
}

func compile(desc Descriptor) (*Query, error) {
	if err := desc.Validate(); err != nil {
		return nil, &MalformedQueryError{Reason: err.Error()}
	}

	var clauses []Expr
	for _, cond := range desc.Where {
		expr, err := compileObject(nil, cond)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, expr)
	}
	if desc.Locale != "" {
		clauses = append(clauses, Eq{Field: Field{interfaces.KeyLocale}, Value: desc.Locale})
	}
	if desc.Path != "" {
		desc.Path = pathmeta.Join(desc.Path)
		clauses = append(clauses, PathPrefix{Prefix: desc.Path})
	}

	canonical, err := Canonicalize(desc.Canonical())
	if err != nil {
		return nil, fmt.Errorf("query: canonicalize: %w", err)
	}

	return &Query{
		desc:      desc,
		expr:      simplify(clauses),
		key:       identity.QueryKey(canonical),
		canonical: canonical,
	}, nil
}

func simplify(clauses []Expr) Expr {
	switch len(clauses) {
	case 0:
		return All{}
	case 1:
		return clauses[0]
	default:
		return And(clauses)
	}
}

// compileObject compiles a where object. field is the path the object is
// nested under (nil at the top level).
func compileObject(field Field, cond map[string]any) (Expr, error) {
	keys := make([]string, 0, len(cond))
	for key := range cond {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var clauses []Expr
	for _, key := range keys {
		value := cond[key]
		var (
			expr Expr
			err  error
		)
		if strings.HasPrefix(key, "$") {
			expr, err = compileOperator(field, key, value)
		} else {
			expr, err = compileField(append(slices.Clone(field), strings.Split(key, ".")...), value)
		}
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, expr)
	}
	return simplify(clauses), nil
}

// compileField compiles the condition for one field. Objects holding only
// operators apply to the field; other objects match nested fields.
func compileField(field Field, value any) (Expr, error) {
	obj, ok := value.(map[string]any)
	if !ok || len(obj) == 0 {
		return Eq{Field: field, Value: value}, nil
	}
	return compileObject(field, obj)
}

func compileOperator(field Field, op string, value any) (Expr, error) {
	switch op {
	case "$and", "$or":
		items, ok := elements(value)
		if !ok || len(items) == 0 {
			return nil, &MalformedQueryError{Reason: fmt.Sprintf("%s expects a non-empty array of conditions", op)}
		}
		exprs := make([]Expr, 0, len(items))
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, &MalformedQueryError{Reason: fmt.Sprintf("%s expects objects, got %T", op, item)}
			}
			expr, err := compileObject(field, obj)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
		if op == "$and" {
			return And(exprs), nil
		}
		return Or(exprs), nil
	case "$not":
		obj, ok := value.(map[string]any)
		if !ok {
			if field == nil {
				return nil, &MalformedQueryError{Reason: "$not expects an object"}
			}
			return Not{Expr: Eq{Field: field, Value: value}}, nil
		}
		expr, err := compileObject(field, obj)
		if err != nil {
			return nil, err
		}
		return Not{Expr: expr}, nil
	}

	if field == nil {
		return nil, &MalformedQueryError{Reason: fmt.Sprintf("operator %s must be applied to a field", op)}
	}

	switch op {
	case "$eq":
		return Eq{Field: field, Value: value}, nil
	case "$ne":
		return Ne{Field: field, Value: value}, nil
	case "$gt", "$gte", "$lt", "$lte":
		if _, isComposite := value.(map[string]any); isComposite {
			return nil, &MalformedQueryError{Reason: fmt.Sprintf("%s on %s expects a scalar", op, field)}
		}
		return Cmp{Field: field, Op: CmpOp(op), Value: value}, nil
	case "$in", "$nin":
		values, err := listOperand(op, field, value)
		if err != nil {
			return nil, err
		}
		if op == "$in" {
			return In{Field: field, Values: values}, nil
		}
		return Nin{Field: field, Values: values}, nil
	case "$exists":
		want, ok := value.(bool)
		if !ok {
			return nil, &MalformedQueryError{Reason: fmt.Sprintf("$exists on %s expects a boolean", field)}
		}
		return Exists{Field: field, Want: want}, nil
	case "$contains":
		if items, ok := elements(value); ok {
			return ContainsAll{Field: field, Values: items}, nil
		}
		return Contains{Field: field, Value: value}, nil
	case "$icontains":
		if _, ok := value.(string); !ok {
			return nil, &MalformedQueryError{Reason: fmt.Sprintf("$icontains on %s expects a string", field)}
		}
		return Contains{Field: field, Value: value, Fold: true}, nil
	case "$containsAny", "$containsAll":
		values, err := listOperand(op, field, value)
		if err != nil {
			return nil, err
		}
		if op == "$containsAny" {
			return ContainsAny{Field: field, Values: values}, nil
		}
		return ContainsAll{Field: field, Values: values}, nil
	case "$regex":
		pattern, err := compileRegex(value)
		if err != nil {
			return nil, &MalformedQueryError{Reason: fmt.Sprintf("$regex on %s: %v", field, err)}
		}
		return Regex{Field: field, Pattern: pattern}, nil
	case "$size":
		n, ok := asNumber(value)
		if !ok || n < 0 || n != float64(int(n)) {
			return nil, &MalformedQueryError{Reason: fmt.Sprintf("$size on %s expects a non-negative integer", field)}
		}
		return Size{Field: field, N: int(n)}, nil
	case "$type":
		name, ok := value.(string)
		if !ok || !validTypeName(name) {
			return nil, &MalformedQueryError{Reason: fmt.Sprintf("$type on %s expects one of %s", field, strings.Join(typeNames, ", "))}
		}
		return Type{Field: field, Name: name}, nil
	}
	return nil, &MalformedQueryError{Reason: fmt.Sprintf("unknown operator %s", op)}
}

var typeNames = []string{"array", "boolean", "date", "null", "number", "object", "string", "undefined"}

func validTypeName(name string) bool {
	return slices.Contains(typeNames, name)
}

func listOperand(op string, field Field, value any) ([]any, error) {
	items, ok := elements(value)
	if !ok {
		return nil, &MalformedQueryError{Reason: fmt.Sprintf("%s on %s expects an array", op, field)}
	}
	return items, nil
}

// compileRegex accepts `pattern` or `/pattern/flags` with flags i, m, s.
func compileRegex(value any) (*regexp.Regexp, error) {
	raw, ok := value.(string)
	if !ok {
		return nil, errors.New("expects a string pattern")
	}
	pattern := raw
	if len(raw) >= 2 && raw[0] == '/' {
		if end := strings.LastIndexByte(raw, '/'); end > 0 {
			pattern = raw[1:end]
			flags := raw[end+1:]
			for _, flag := range flags {
				if !strings.ContainsRune("ims", flag) {
					return nil, fmt.Errorf("unsupported flag %q", flag)
				}
			}
			if flags != "" {
				pattern = "(?" + flags + ")" + pattern
			}
		}
	}
	return regexp.Compile(pattern)
}

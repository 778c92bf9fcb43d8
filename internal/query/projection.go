package query

import (
	"maps"
	"strings"

	"github.com/goliatone/go-content/pkg/interfaces"
)

// project applies the only allow-list and then the without deny-list.
// Paths that do not resolve are skipped.
func project(doc interfaces.Document, only, without []string) interfaces.Document {
	if len(only) == 0 && len(without) == 0 {
		return doc
	}

	out := doc
	if len(only) > 0 {
		picked := interfaces.Document{}
		for _, path := range only {
			segments := strings.Split(path, ".")
			if value, ok := interfaces.Lookup(map[string]any(doc), segments); ok {
				setPath(picked, segments, value)
			}
		}
		out = picked
	}

	if len(without) > 0 {
		out = maps.Clone(out)
		for _, path := range without {
			deletePath(out, strings.Split(path, "."))
		}
	}
	return out
}

func setPath(target map[string]any, segments []string, value any) {
	for i, segment := range segments {
		if i == len(segments)-1 {
			target[segment] = value
			return
		}
		next, ok := target[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			target[segment] = next
		}
		target = next
	}
}

// deletePath removes a nested key, copying each map on the way so shared
// documents are never mutated.
func deletePath(target map[string]any, segments []string) {
	if len(segments) == 1 {
		delete(target, segments[0])
		return
	}
	child, ok := asMap(target[segments[0]])
	if !ok {
		return
	}
	child = maps.Clone(child)
	target[segments[0]] = child
	deletePath(child, segments[1:])
}

func asMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case interfaces.Document:
		return map[string]any(v), true
	}
	return nil, false
}

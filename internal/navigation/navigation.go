// Package navigation turns a flat list of documents into a route tree.
package navigation

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/goliatone/go-content/internal/pathmeta"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// KeyNavigation is the front-matter key controlling navigation entries.
// `false` hides the document; an object is merged into the link.
const KeyNavigation = "navigation"

// Link is one navigation node. Directory nodes without an index document
// carry a generated title and no ID.
type Link struct {
	Title    string
	Path     string
	ID       string
	Order    int
	HasOrder bool
	Fields   map[string]any
	Children []*Link
}

// MarshalJSON flattens Fields next to the reserved keys.
func (l *Link) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Fields)+4)
	maps.Copy(out, l.Fields)
	out[interfaces.KeyTitle] = l.Title
	out[interfaces.KeyPath] = l.Path
	if l.ID != "" {
		out[interfaces.KeyID] = l.ID
	}
	if len(l.Children) > 0 {
		out["children"] = l.Children
	}
	return json.Marshal(out)
}

// Options configures Build. Fields lists document keys copied onto links.
type Options struct {
	Fields []string
}

// Build nests docs by `_path`. Documents with `navigation: false` and
// partial documents are skipped.
func Build(docs []interfaces.Document, opts Options) []*Link {
	nodes := map[string]*Link{}
	var roots []*Link

	var ensure func(path string) *Link
	ensure = func(path string) *Link {
		if node, ok := nodes[path]; ok {
			return node
		}
		parts := split(path)
		node := &Link{Path: path}
		if len(parts) > 0 {
			node.Title = pathmeta.GenerateTitle(parts[len(parts)-1])
		}
		nodes[path] = node
		if len(parts) <= 1 {
			roots = append(roots, node)
		} else {
			parent := ensure("/" + strings.Join(parts[:len(parts)-1], "/"))
			parent.Children = append(parent.Children, node)
		}
		return node
	}

	for _, doc := range docs {
		if !visible(doc) {
			continue
		}
		path := pathmeta.Join(doc.Path())
		node := ensure(path)
		merge(node, doc, opts.Fields)
	}

	sortLinks(roots)
	return roots
}

func visible(doc interfaces.Document) bool {
	if doc.Bool(interfaces.KeyPartial) {
		return false
	}
	if enabled, ok := doc[KeyNavigation].(bool); ok && !enabled {
		return false
	}
	return true
}

func merge(node *Link, doc interfaces.Document, fields []string) {
	node.ID = doc.ID()
	if title := doc.Title(); title != "" {
		node.Title = title
	}
	if order, ok := asInt(doc[interfaces.KeyOrder]); ok {
		node.Order, node.HasOrder = order, true
	}

	for _, key := range fields {
		if value, ok := doc.Get(key); ok {
			if node.Fields == nil {
				node.Fields = map[string]any{}
			}
			node.Fields[key] = value
		}
	}
	if extra, ok := doc[KeyNavigation].(map[string]any); ok {
		for key, value := range extra {
			if key == interfaces.KeyTitle {
				if title, ok := value.(string); ok && title != "" {
					node.Title = title
				}
				continue
			}
			if node.Fields == nil {
				node.Fields = map[string]any{}
			}
			node.Fields[key] = value
		}
	}
}

// sortLinks orders siblings by ordering prefix, then path. Links without a
// prefix follow the ordered ones.
func sortLinks(links []*Link) {
	slices.SortFunc(links, func(a, b *Link) int {
		switch {
		case a.HasOrder && b.HasOrder && a.Order != b.Order:
			return a.Order - b.Order
		case a.HasOrder && !b.HasOrder:
			return -1
		case !a.HasOrder && b.HasOrder:
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})
	for _, link := range links {
		sortLinks(link.Children)
	}
}

func split(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), v == float64(int(v))
	}
	return 0, false
}

package parser

import "strings"

// Node type names used in Markdown body trees.
const (
	NodeTypeRoot    = "root"
	NodeTypeElement = "element"
	NodeTypeText    = "text"
	NodeTypeHTML    = "html"
)

func textNode(value string) map[string]any {
	return map[string]any{"type": NodeTypeText, "value": value}
}

func elementNode(tag string, props map[string]any, children []any) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	if children == nil {
		children = []any{}
	}
	return map[string]any{
		"type":     NodeTypeElement,
		"tag":      tag,
		"props":    props,
		"children": children,
	}
}

// NodeText concatenates the text values below node.
func NodeText(node any) string {
	var b strings.Builder
	collectText(&b, node)
	return b.String()
}

func collectText(b *strings.Builder, node any) {
	switch n := node.(type) {
	case map[string]any:
		if n["type"] == NodeTypeText {
			if value, ok := n["value"].(string); ok {
				b.WriteString(value)
			}
			return
		}
		collectText(b, n["children"])
	case []any:
		for _, child := range n {
			collectText(b, child)
		}
	}
}

func nodeTag(node any) string {
	if n, ok := node.(map[string]any); ok && n["type"] == NodeTypeElement {
		tag, _ := n["tag"].(string)
		return tag
	}
	return ""
}

// mergeText joins adjacent text siblings and expands inline components.
func mergeText(children []any) []any {
	out := make([]any, 0, len(children))
	var pending strings.Builder
	hasPending := false

	flush := func() {
		if !hasPending {
			return
		}
		out = append(out, expandInline(pending.String())...)
		pending.Reset()
		hasPending = false
	}

	for _, child := range children {
		if n, ok := child.(map[string]any); ok && n["type"] == NodeTypeText {
			value, _ := n["value"].(string)
			pending.WriteString(value)
			hasPending = true
			continue
		}
		flush()
		out = append(out, child)
	}
	flush()
	return out
}

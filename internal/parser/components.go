package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// block is one span of a Markdown file: either plain Markdown lines or a
// `::name` component wrapping further blocks.
type block struct {
	lines     []string
	component *component
}

type component struct {
	name     string
	props    map[string]any
	children []block
}

type frame struct {
	colons    int
	line      int
	component *component
	pending   []string
	blocks    []block
}

func (f *frame) flush() {
	if len(f.pending) == 0 {
		return
	}
	f.blocks = append(f.blocks, block{lines: f.pending})
	f.pending = nil
}

// segment splits lines into Markdown and component blocks. A closer binds to
// the nearest open component with the same number of colons; components left
// open are closed at the end of input with a warning.
func segment(lines []string) ([]block, []Diagnostic) {
	var diagnostics []Diagnostic
	stack := []*frame{{}}
	fence := ""

	closeTop := func() {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		top.flush()
		top.component.children = top.blocks
		parent := stack[len(stack)-1]
		parent.blocks = append(parent.blocks, block{component: top.component})
	}

	for i, line := range lines {
		top := stack[len(stack)-1]

		if fence != "" {
			top.pending = append(top.pending, line)
			if m := fencePattern.FindStringSubmatch(line); m != nil && m[1][0] == fence[0] && len(m[1]) >= len(fence) {
				fence = ""
			}
			continue
		}
		if m := fencePattern.FindStringSubmatch(line); m != nil {
			fence = m[1]
			top.pending = append(top.pending, line)
			continue
		}

		if m := componentOpenPattern.FindStringSubmatch(line); m != nil {
			top.flush()
			stack = append(stack, &frame{
				colons:    len(m[1]),
				line:      i + 1,
				component: &component{name: m[2], props: parseProps(m[3])},
			})
			continue
		}

		if m := componentClosePattern.FindStringSubmatch(line); m != nil && len(stack) > 1 {
			target := -1
			for j := len(stack) - 1; j > 0; j-- {
				if stack[j].colons == len(m[1]) {
					target = j
					break
				}
			}
			if target > 0 {
				for len(stack)-1 > target {
					inner := stack[len(stack)-1]
					diagnostics = append(diagnostics, unclosedDiagnostic(inner))
					closeTop()
				}
				closeTop()
				continue
			}
		}

		top.pending = append(top.pending, line)
	}

	for len(stack) > 1 {
		diagnostics = append(diagnostics, unclosedDiagnostic(stack[len(stack)-1]))
		closeTop()
	}
	root := stack[0]
	root.flush()
	return root.blocks, diagnostics
}

func unclosedDiagnostic(f *frame) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Line:     f.line,
		Message:  fmt.Sprintf("component %q is not closed", f.component.name),
	}
}

// parseProps decodes a `{key="value" .class #id flag :bound='json'}` block.
func parseProps(raw string) map[string]any {
	props := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return props
	}

	var classes []string
	for _, m := range componentPropPattern.FindAllStringSubmatch(raw, -1) {
		key := m[1]
		value, hasValue := propValue(m)
		switch {
		case strings.HasPrefix(key, "."):
			classes = append(classes, key[1:])
		case strings.HasPrefix(key, "#"):
			props["id"] = key[1:]
		case strings.HasPrefix(key, ":"):
			key = key[1:]
			var bound any
			if hasValue && json.Unmarshal([]byte(value), &bound) == nil {
				props[key] = NormalizeValue(bound)
			} else if hasValue {
				props[key] = value
			} else {
				props[key] = true
			}
		case !hasValue:
			props[key] = true
		default:
			props[key] = value
		}
	}
	if len(classes) > 0 {
		props["class"] = strings.Join(classes, " ")
	}
	return props
}

func propValue(m []string) (string, bool) {
	for _, candidate := range m[2:] {
		if candidate != "" {
			return candidate, true
		}
	}
	// `key=""` is an explicit empty value
	if strings.Contains(m[0], "=") {
		return "", true
	}
	return "", false
}

// expandInline splits a text value around `:name[label]{props}` components.
func expandInline(value string) []any {
	matches := inlineComponentPattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return []any{textNode(value)}
	}

	var out []any
	cursor := 0
	for _, m := range matches {
		// m[6], m[8] are the label and props groups
		if m[6] < 0 && m[8] < 0 {
			continue
		}
		nameStart := m[4]
		if nameStart > cursor {
			out = append(out, textNode(value[cursor:nameStart]))
		}
		props := map[string]any{}
		if m[8] >= 0 {
			props = parseProps(value[m[8]:m[9]])
		}
		var children []any
		if m[6] >= 0 && m[7] > m[6] {
			children = append(children, textNode(value[m[6]:m[7]]))
		}
		out = append(out, elementNode(value[nameStart+1:m[5]], props, children))
		cursor = m[1]
	}
	if cursor < len(value) {
		out = append(out, textNode(value[cursor:]))
	}
	if len(out) == 0 {
		return []any{textNode(value)}
	}
	return out
}

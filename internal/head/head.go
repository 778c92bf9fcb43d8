// Package head resolves page head metadata from a document.
package head

import (
	"html"
	"strings"

	"github.com/goliatone/go-content/pkg/interfaces"
)

// KeyHead is the front-matter key holding head overrides.
const KeyHead = "head"

// Tag is one `<meta>` element.
type Tag struct {
	Name     string `json:"name,omitempty"`
	Property string `json:"property,omitempty"`
	Content  string `json:"content"`
}

// Meta is the resolved head of a document.
type Meta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Meta        []Tag  `json:"meta,omitempty"`
}

// Resolve reads `head` front-matter, falling back to the document title
// and description. A description meta tag is added unless one is declared.
func Resolve(doc interfaces.Document) Meta {
	var m Meta
	overrides, _ := doc[KeyHead].(map[string]any)

	m.Title = stringValue(overrides, interfaces.KeyTitle)
	if m.Title == "" {
		m.Title = doc.Title()
	}
	m.Description = stringValue(overrides, interfaces.KeyDescription)
	if m.Description == "" {
		m.Description = doc.String(interfaces.KeyDescription)
	}

	if items, ok := overrides["meta"].([]any); ok {
		for _, item := range items {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			tag := Tag{
				Name:     stringValue(entry, "name"),
				Property: stringValue(entry, "property"),
				Content:  stringValue(entry, "content"),
			}
			if tag.Name == "" && tag.Property == "" {
				continue
			}
			m.Meta = append(m.Meta, tag)
		}
	}

	if m.Description != "" && !m.has("description") {
		m.Meta = append([]Tag{{Name: "description", Content: m.Description}}, m.Meta...)
	}
	return m
}

func (m Meta) has(name string) bool {
	for _, tag := range m.Meta {
		if tag.Name == name {
			return true
		}
	}
	return false
}

// HTML renders the escaped `<title>` and `<meta>` elements, one per line.
func (m Meta) HTML() string {
	var b strings.Builder
	if m.Title != "" {
		b.WriteString("<title>")
		b.WriteString(html.EscapeString(m.Title))
		b.WriteString("</title>\n")
	}
	for _, tag := range m.Meta {
		b.WriteString("<meta")
		if tag.Name != "" {
			b.WriteString(` name="` + html.EscapeString(tag.Name) + `"`)
		}
		if tag.Property != "" {
			b.WriteString(` property="` + html.EscapeString(tag.Property) + `"`)
		}
		b.WriteString(` content="` + html.EscapeString(tag.Content) + `">` + "\n")
	}
	return b.String()
}

func stringValue(values map[string]any, key string) string {
	if values == nil {
		return ""
	}
	s, _ := values[key].(string)
	return strings.TrimSpace(s)
}

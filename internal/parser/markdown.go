package parser

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// MarkdownOptions configures the Markdown parser.
type MarkdownOptions struct {
	// TOCDepth is the deepest heading level listed in the table of contents.
	TOCDepth int
	// ExcerptMarker overrides the `<!--more-->` delimiter line.
	ExcerptMarker string
	// Extensions selects goldmark extensions by name. Empty means GFM.
	Extensions []string
}

// DefaultMarkdownOptions lists h2-h3 in the toc and enables GFM.
func DefaultMarkdownOptions() MarkdownOptions {
	return MarkdownOptions{TOCDepth: 3}
}

// MarkdownParser parses front-matter and a goldmark AST into a node tree.
type MarkdownParser struct {
	opts    MarkdownOptions
	engines sync.Pool
}

func NewMarkdownParser(opts MarkdownOptions) *MarkdownParser {
	if opts.TOCDepth < 2 || opts.TOCDepth > 6 {
		opts.TOCDepth = 3
	}
	p := &MarkdownParser{opts: opts}
	exts := collectExtensions(opts.Extensions)
	p.engines.New = func() any {
		return goldmark.New(
			goldmark.WithExtensions(exts...),
			goldmark.WithParserOptions(gparser.WithAutoHeadingID()),
		)
	}
	return p
}

var extensionRegistry = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"tables":        extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"autolink":      extension.Linkify,
	"tasklist":      extension.TaskList,
	"definition":    extension.DefinitionList,
	"footnote":      extension.Footnote,
}

func collectExtensions(names []string) []goldmark.Extender {
	if len(names) == 0 {
		return []goldmark.Extender{extension.GFM}
	}
	var out []goldmark.Extender
	seen := map[string]bool{}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		ext, ok := extensionRegistry[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ext)
	}
	return out
}

func (p *MarkdownParser) Parse(raw []byte, sourcePath string) (*Result, error) {
	fields, content, err := splitFrontMatter(raw, sourcePath)
	if err != nil {
		return nil, err
	}

	lines := splitLines(content)
	result := &Result{Format: FormatMarkdown, Fields: fields}

	if at := p.excerptLine(lines); at >= 0 {
		excerpt, _ := p.render(lines[:at])
		result.Excerpt = excerpt
		lines = append(append([]string{}, lines[:at]...), lines[at+1:]...)
	}

	body, diagnostics := p.render(lines)
	body["toc"] = p.toc(body["children"].([]any))
	result.Body = body
	result.Diagnostics = diagnostics
	result.Title, result.Description = headline(body["children"].([]any))
	return result, nil
}

func (p *MarkdownParser) excerptLine(lines []string) int {
	fence := ""
	for i, line := range lines {
		if m := fencePattern.FindStringSubmatch(line); m != nil {
			switch {
			case fence == "":
				fence = m[1]
			case m[1][0] == fence[0] && len(m[1]) >= len(fence):
				fence = ""
			}
			continue
		}
		if fence != "" {
			continue
		}
		if p.opts.ExcerptMarker != "" {
			if strings.TrimSpace(line) == p.opts.ExcerptMarker {
				return i
			}
			continue
		}
		if IsExcerptDelimiter(line) {
			return i
		}
	}
	return -1
}

func (p *MarkdownParser) render(lines []string) (map[string]any, []Diagnostic) {
	blocks, diagnostics := segment(lines)
	return map[string]any{
		"type":     NodeTypeRoot,
		"children": p.renderBlocks(blocks),
	}, diagnostics
}

func (p *MarkdownParser) renderBlocks(blocks []block) []any {
	children := []any{}
	for _, b := range blocks {
		if b.component != nil {
			children = append(children, elementNode(b.component.name, b.component.props, p.renderBlocks(b.component.children)))
			continue
		}
		source := []byte(strings.Join(b.lines, "\n"))
		if len(bytes.TrimSpace(source)) == 0 {
			continue
		}
		engine := p.engines.Get().(goldmark.Markdown)
		doc := engine.Parser().Parse(text.NewReader(source))
		p.engines.Put(engine)
		children = append(children, convertChildren(doc, source)...)
	}
	return children
}

func convertChildren(n ast.Node, source []byte) []any {
	var out []any
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		out = append(out, convertNode(child, source)...)
	}
	return mergeText(out)
}

func convertNode(n ast.Node, source []byte) []any {
	switch node := n.(type) {
	case *ast.Text:
		value := string(node.Segment.Value(source))
		if node.SoftLineBreak() {
			value += "\n"
		}
		out := []any{textNode(value)}
		if node.HardLineBreak() {
			out = append(out, elementNode("br", nil, nil))
		}
		return out
	case *ast.String:
		return []any{textNode(string(node.Value))}
	case *ast.TextBlock:
		return convertChildren(node, source)
	case *ast.Heading:
		props := map[string]any{}
		if id, ok := node.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				props["id"] = string(b)
			}
		}
		return single("h"+strconv.Itoa(node.Level), props, convertChildren(node, source))
	case *ast.Paragraph:
		return single("p", nil, convertChildren(node, source))
	case *ast.Emphasis:
		tag := "em"
		if node.Level >= 2 {
			tag = "strong"
		}
		return single(tag, nil, convertChildren(node, source))
	case *ast.CodeSpan:
		var b strings.Builder
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				b.Write(t.Segment.Value(source))
			}
		}
		return single("code", nil, []any{textNode(b.String())})
	case *ast.Link:
		props := map[string]any{"href": string(node.Destination)}
		if len(node.Title) > 0 {
			props["title"] = string(node.Title)
		}
		return single("a", props, convertChildren(node, source))
	case *ast.AutoLink:
		href := string(node.URL(source))
		if node.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(href, "mailto:") {
			href = "mailto:" + href
		}
		return single("a", map[string]any{"href": href}, []any{textNode(string(node.Label(source)))})
	case *ast.Image:
		props := map[string]any{
			"src": string(node.Destination),
			"alt": NodeText(convertChildren(node, source)),
		}
		if len(node.Title) > 0 {
			props["title"] = string(node.Title)
		}
		return single("img", props, nil)
	case *ast.FencedCodeBlock:
		code := linesText(node.Lines(), source)
		props := map[string]any{"code": code}
		if lang := string(node.Language(source)); lang != "" {
			props["language"] = lang
		}
		return single("pre", props, []any{elementNode("code", nil, []any{textNode(code)})})
	case *ast.CodeBlock:
		code := linesText(node.Lines(), source)
		return single("pre", map[string]any{"code": code}, []any{elementNode("code", nil, []any{textNode(code)})})
	case *ast.Blockquote:
		return single("blockquote", nil, convertChildren(node, source))
	case *ast.List:
		if node.IsOrdered() {
			props := map[string]any{}
			if node.Start != 1 {
				props["start"] = int64(node.Start)
			}
			return single("ol", props, convertChildren(node, source))
		}
		return single("ul", nil, convertChildren(node, source))
	case *ast.ListItem:
		return single("li", nil, convertChildren(node, source))
	case *ast.ThematicBreak:
		return single("hr", nil, nil)
	case *ast.HTMLBlock:
		value := linesText(node.Lines(), source)
		if node.HasClosure() {
			value += string(node.ClosureLine.Value(source))
		}
		return []any{map[string]any{"type": NodeTypeHTML, "value": value}}
	case *ast.RawHTML:
		var b strings.Builder
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			b.Write(seg.Value(source))
		}
		return []any{map[string]any{"type": NodeTypeHTML, "value": b.String()}}
	case *east.Table:
		return convertTable(node, source)
	case *east.Strikethrough:
		return single("del", nil, convertChildren(node, source))
	case *east.TaskCheckBox:
		props := map[string]any{"type": "checkbox", "disabled": true, "checked": node.IsChecked}
		return single("input", props, nil)
	default:
		return convertChildren(n, source)
	}
}

func convertTable(table *east.Table, source []byte) []any {
	var head, body []any
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		cellTag := "td"
		if _, ok := row.(*east.TableHeader); ok {
			cellTag = "th"
		}
		var cells []any
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			props := map[string]any{}
			if c, ok := cell.(*east.TableCell); ok && c.Alignment != east.AlignNone {
				props["align"] = c.Alignment.String()
			}
			cells = append(cells, elementNode(cellTag, props, convertChildren(cell, source)))
		}
		tr := elementNode("tr", nil, cells)
		if cellTag == "th" {
			head = append(head, tr)
		} else {
			body = append(body, tr)
		}
	}
	children := []any{}
	if len(head) > 0 {
		children = append(children, elementNode("thead", nil, head))
	}
	if len(body) > 0 {
		children = append(children, elementNode("tbody", nil, body))
	}
	return single("table", nil, children)
}

func single(tag string, props map[string]any, children []any) []any {
	return []any{elementNode(tag, props, children)}
}

func linesText(lines *text.Segments, source []byte) string {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

// toc lists h2..TOCDepth headings, nesting deeper levels below shallower ones.
func (p *MarkdownParser) toc(children []any) map[string]any {
	type link struct {
		depth int
		node  map[string]any
	}
	links := []any{}
	var stack []link

	for _, child := range children {
		tag := nodeTag(child)
		if len(tag) != 2 || tag[0] != 'h' {
			continue
		}
		depth := int(tag[1] - '0')
		if depth < 2 || depth > p.opts.TOCDepth {
			continue
		}
		props, _ := child.(map[string]any)["props"].(map[string]any)
		id, _ := props["id"].(string)
		entry := map[string]any{
			"id":    id,
			"depth": int64(depth),
			"text":  strings.TrimSpace(NodeText(child)),
		}

		for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			links = append(links, entry)
		} else {
			parent := stack[len(stack)-1].node
			nested, _ := parent["children"].([]any)
			parent["children"] = append(nested, entry)
		}
		stack = append(stack, link{depth: depth, node: entry})
	}

	return map[string]any{
		"title":       "",
		"searchDepth": int64(p.opts.TOCDepth),
		"depth":       int64(p.opts.TOCDepth),
		"links":       links,
	}
}

// headline returns the first h1 text and the first paragraph text.
func headline(children []any) (title, description string) {
	for _, child := range children {
		switch nodeTag(child) {
		case "h1":
			if title == "" {
				title = strings.TrimSpace(NodeText(child))
			}
		case "p":
			if description == "" {
				description = strings.TrimSpace(NodeText(child))
			}
		}
		if title != "" && description != "" {
			break
		}
	}
	return title, description
}

func splitLines(content []byte) []string {
	normalized := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.Split(normalized, "\n")
}

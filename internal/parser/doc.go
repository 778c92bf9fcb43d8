// Package parser turns raw Markdown, YAML, JSON and CSV source files into
// parsed bodies and top-level fields. Parsers are stateless and safe for
// concurrent use; the Registry selects one by file extension.
package parser

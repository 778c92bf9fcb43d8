// Package pipeline turns source files into indexed documents: it walks the
// configured sources, parses files on a bounded worker pool, normalizes
// parser output with path-derived metadata and commits the result to the
// content index.
package pipeline

package parser

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrUnsupportedFormat is returned when no parser is registered for an extension.
var ErrUnsupportedFormat = errors.New("parser: unsupported format")

// ParseError describes a file that could not be parsed. Line and Column are
// one-based and zero when unknown.
type ParseError struct {
	Path   string
	Format Format
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse ")
	b.WriteString(string(e.Format))
	b.WriteString(" ")
	b.WriteString(e.Path)
	if e.Line > 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(e.Line))
		if e.Column > 0 {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(e.Column))
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(path string, format Format, err error) *ParseError {
	return &ParseError{Path: path, Format: format, Err: err}
}

// yamlError locates a yaml error message, shifting the reported line by offset
// when the yaml block does not start at the top of the file.
func yamlError(path string, format Format, err error, offset int) *ParseError {
	pe := newParseError(path, format, err)
	if match := yamlLinePattern.FindStringSubmatch(err.Error()); match != nil {
		if line, convErr := strconv.Atoi(match[1]); convErr == nil {
			pe.Line = line + offset
		}
	}
	return pe
}

func jsonError(path string, raw []byte, err error) *ParseError {
	pe := newParseError(path, FormatJSON, err)
	var offset int64 = -1
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset >= 0 {
		pe.Line, pe.Column = position(raw, offset)
	}
	return pe
}

func csvError(path string, err error) *ParseError {
	pe := newParseError(path, FormatCSV, err)
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		pe.Line = csvErr.Line
		pe.Column = csvErr.Column
	}
	return pe
}

// position converts a byte offset into a one-based line and column.
func position(raw []byte, offset int64) (int, int) {
	if offset > int64(len(raw)) {
		offset = int64(len(raw))
	}
	line, col := 1, 1
	for _, b := range raw[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	if col > 1 {
		col--
	}
	return line, col
}

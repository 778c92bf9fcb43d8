package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSVOptions configures CSV decoding.
type CSVOptions struct {
	// Header treats the first row as column names. When false columns are
	// named col1..colN.
	Header    bool
	Delimiter rune
	// Coerce enables best-effort int64/float64/bool conversion of cells.
	Coerce bool
}

// DefaultCSVOptions returns comma-separated, header-first decoding with coercion.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Header: true, Delimiter: ',', Coerce: true}
}

// CSVParser decodes CSV files into a slice of row records.
type CSVParser struct {
	opts CSVOptions
}

func NewCSVParser(opts CSVOptions) *CSVParser {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return &CSVParser{opts: opts}
}

func (p *CSVParser) Parse(raw []byte, sourcePath string) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, []byte("\ufeff"))))
	reader.Comma = p.opts.Delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &Result{Format: FormatCSV, Fields: map[string]any{}}
	rows := []map[string]any{}

	var header []string
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(sourcePath, err)
		}
		line++

		if header == nil && p.opts.Header {
			header = uniqueHeader(record)
			continue
		}

		if header != nil && len(record) != len(header) {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Severity: SeverityInfo,
				Line:     line,
				Message:  fmt.Sprintf("row has %d cells, header has %d", len(record), len(header)),
			})
		}

		row := make(map[string]any, len(record))
		for i, cell := range record {
			row[columnName(header, i)] = p.cell(cell)
		}
		rows = append(rows, row)
	}

	result.Body = rows
	return result, nil
}

func (p *CSVParser) cell(value string) any {
	if !p.opts.Coerce {
		return value
	}
	return coerceCell(strings.TrimSpace(value))
}

func columnName(header []string, i int) string {
	if i < len(header) && header[i] != "" {
		return header[i]
	}
	return fmt.Sprintf("col%d", i+1)
}

func uniqueHeader(record []string) []string {
	header := make([]string, len(record))
	seen := make(map[string]int, len(record))
	for i, name := range record {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("col%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		header[i] = name
	}
	return header
}

package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var errTrailingData = errors.New("unexpected data after top-level value")

// JSONParser decodes JSON documents. Numbers decode to int64 when integral.
type JSONParser struct{}

func (JSONParser) Parse(raw []byte, sourcePath string) (*Result, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return structuredResult(FormatJSON, nil), nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			pe := newParseError(sourcePath, FormatJSON, err)
			pe.Line, pe.Column = position(raw, int64(len(raw)))
			return nil, pe
		}
		return nil, jsonError(sourcePath, raw, err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		pe := newParseError(sourcePath, FormatJSON, errTrailingData)
		pe.Line, pe.Column = position(raw, decoder.InputOffset())
		return nil, pe
	}
	return structuredResult(FormatJSON, NormalizeValue(decoded)), nil
}

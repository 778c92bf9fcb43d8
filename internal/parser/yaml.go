package parser

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// YAMLParser decodes YAML documents. Object bodies are mirrored into Fields.
type YAMLParser struct{}

func (YAMLParser) Parse(raw []byte, sourcePath string) (*Result, error) {
	var decoded any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, &decoded); err != nil {
			return nil, yamlError(sourcePath, FormatYAML, err, 0)
		}
	}
	return structuredResult(FormatYAML, NormalizeValue(decoded)), nil
}

func structuredResult(format Format, body any) *Result {
	result := &Result{Format: format, Body: body, Fields: map[string]any{}}
	if obj, ok := body.(map[string]any); ok {
		for key, value := range obj {
			result.Fields[key] = value
		}
	}
	return result
}

package query

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const descriptorSchemaURL = "content-query.json"

// descriptorSchema guards the wire shape. Operator semantics are checked by
// the compiler.
const descriptorSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "$defs": {
    "stringOrList": {
      "oneOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}}
      ]
    },
    "objectOrList": {
      "oneOf": [
        {"type": "object"},
        {"type": "array", "items": {"type": "object"}}
      ]
    }
  },
  "properties": {
    "first": {"type": "boolean"},
    "where": {"$ref": "#/$defs/objectOrList"},
    "only": {"$ref": "#/$defs/stringOrList"},
    "without": {"$ref": "#/$defs/stringOrList"},
    "sort": {"$ref": "#/$defs/objectOrList"},
    "skip": {"type": "integer", "minimum": 0},
    "limit": {"type": "integer", "minimum": 0},
    "locale": {"type": "string"},
    "path": {"$ref": "#/$defs/stringOrList"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func wireSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(descriptorSchemaURL, strings.NewReader(descriptorSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(descriptorSchemaURL)
	})
	return compiledSchema, schemaErr
}

func collectIssues(err *jsonschema.ValidationError) []Issue {
	var issues []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			issues = append(issues, Issue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}

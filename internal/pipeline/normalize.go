package pipeline

import (
	"github.com/goliatone/go-content/internal/parser"
	"github.com/goliatone/go-content/internal/pathmeta"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// Normalize merges parser output with path metadata. Path-derived defaults
// apply first, parser fields override them, and the identity keys are
// re-asserted last. It never fails.
func Normalize(result *parser.Result, meta pathmeta.Meta) interfaces.Document {
	doc := interfaces.Document{
		interfaces.KeyPath:    meta.Path,
		interfaces.KeyDir:     meta.Dir,
		interfaces.KeyLocale:  meta.Locale,
		interfaces.KeyDraft:   meta.Draft,
		interfaces.KeyPartial: meta.Partial,
	}
	if meta.HasOrder {
		doc[interfaces.KeyOrder] = int64(meta.Order)
	}
	if meta.Title != "" {
		doc[interfaces.KeyTitle] = meta.Title
	}

	format := parser.FormatUnknown
	if result != nil {
		format = result.Format
		if result.Title != "" {
			doc[interfaces.KeyTitle] = result.Title
		}
		if result.Description != "" {
			doc[interfaces.KeyDescription] = result.Description
		}
		if result.Body != nil {
			doc[interfaces.KeyBody] = parser.NormalizeValue(result.Body)
		}
		if result.Excerpt != nil {
			doc[interfaces.KeyExcerpt] = parser.NormalizeValue(result.Excerpt)
		}
		for key, value := range parser.NormalizeFields(result.Fields) {
			doc[key] = value
		}
	}

	doc[interfaces.KeyID] = meta.ID
	doc[interfaces.KeySource] = meta.Source
	doc[interfaces.KeyFile] = meta.File
	doc[interfaces.KeyExtension] = meta.Extension
	doc[interfaces.KeyType] = string(format)
	return doc
}

package parser

import (
	"bytes"

	"github.com/adrg/frontmatter"
)

// splitFrontMatter extracts a leading YAML (`---`), TOML (`+++`) or JSON
// (`;;;`) block from raw. Files without front-matter return an empty map
// and the original bytes.
func splitFrontMatter(raw []byte, sourcePath string) (map[string]any, []byte, error) {
	fields := map[string]any{}
	body, err := frontmatter.Parse(bytes.NewReader(raw), &fields)
	if err != nil {
		// the opening delimiter sits on line 1
		return nil, nil, yamlError(sourcePath, FormatMarkdown, err, 1)
	}
	return NormalizeFields(fields), body, nil
}

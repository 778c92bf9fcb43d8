package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// Format enumerates the supported source formats.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatUnknown  Format = "unknown"
)

// Severity grades a Diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a non-fatal note produced while parsing.
type Diagnostic struct {
	Severity Severity
	Line     int
	Message  string
}

// Result is the parsed form of one source file.
//
// Fields holds front-matter (Markdown) or the top-level object keys
// (YAML/JSON). Title and Description are values derived from the content
// itself and rank below anything set in Fields.
type Result struct {
	Format      Format
	Body        any
	Fields      map[string]any
	Excerpt     any
	Title       string
	Description string
	Diagnostics []Diagnostic
}

// Parser converts raw bytes into a Result. sourcePath is used for error
// reporting only.
type Parser interface {
	Parse(raw []byte, sourcePath string) (*Result, error)
}

// Options configures the built-in parsers.
type Options struct {
	Markdown MarkdownOptions
	CSV      CSVOptions
	Logger   interfaces.Logger
}

// DefaultOptions returns the built-in parser configuration.
func DefaultOptions() Options {
	return Options{
		Markdown: DefaultMarkdownOptions(),
		CSV:      DefaultCSVOptions(),
	}
}

// Fingerprint identifies the parser settings that shape parsed documents.
func (o Options) Fingerprint() string {
	return fmt.Sprintf("markdown:%d:%q:%s;csv:%t:%q:%t",
		o.Markdown.TOCDepth, o.Markdown.ExcerptMarker, strings.Join(o.Markdown.Extensions, ","),
		o.CSV.Header, o.CSV.Delimiter, o.CSV.Coerce)
}

type entry struct {
	format Format
	parser Parser
}

// Registry maps file extensions to parsers.
type Registry struct {
	entries     map[string]entry
	fingerprint string
	logger      interfaces.Logger
}

// NewRegistry builds a registry populated with the built-in parsers.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		entries:     map[string]entry{},
		fingerprint: opts.Fingerprint(),
		logger:      logging.Ensure(opts.Logger),
	}

	md := NewMarkdownParser(opts.Markdown)
	r.Register(FormatMarkdown, md, ".md", ".markdown")
	r.Register(FormatYAML, YAMLParser{}, ".yml", ".yaml")
	r.Register(FormatJSON, JSONParser{}, ".json")
	r.Register(FormatCSV, NewCSVParser(opts.CSV), ".csv")
	return r
}

// Fingerprint returns the fingerprint of the options the registry was built with.
func (r *Registry) Fingerprint() string { return r.fingerprint }

// Register binds parser to the given extensions, replacing prior bindings.
func (r *Registry) Register(format Format, parser Parser, extensions ...string) {
	for _, ext := range extensions {
		key := normalizeExtension(ext)
		if key == "" || parser == nil {
			continue
		}
		r.entries[key] = entry{format: format, parser: parser}
	}
}

// FormatOf reports the format registered for path's extension.
func (r *Registry) FormatOf(path string) Format {
	if e, ok := r.entries[normalizeExtension(filepath.Ext(path))]; ok {
		return e.format
	}
	return FormatUnknown
}

// Supports reports whether a parser is registered for path.
func (r *Registry) Supports(path string) bool {
	return r.FormatOf(path) != FormatUnknown
}

// Parse dispatches raw to the parser registered for sourcePath. Unknown
// extensions return ErrUnsupportedFormat.
func (r *Registry) Parse(raw []byte, sourcePath string) (*Result, error) {
	e, ok := r.entries[normalizeExtension(filepath.Ext(sourcePath))]
	if !ok {
		return nil, ErrUnsupportedFormat
	}

	result, err := e.parser.Parse(raw, sourcePath)
	if err != nil {
		return nil, err
	}
	if result.Format == "" {
		result.Format = e.format
	}
	if len(result.Diagnostics) > 0 {
		logger := logging.WithSourceContext(r.logger, "", sourcePath)
		for _, diag := range result.Diagnostics {
			logger.Debug("parser.diagnostic", "severity", diag.Severity, "line", diag.Line, "message", diag.Message)
		}
	}
	return result, nil
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

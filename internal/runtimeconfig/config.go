package runtimeconfig

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrSourcesRequired        = errors.New("content config: at least one source is required")
	ErrSourceNameRequired     = errors.New("content config: source name is required")
	ErrSourceNameDuplicate    = errors.New("content config: source names must be unique")
	ErrSourceRootRequired     = errors.New("content config: source root is required")
	ErrDefaultLocaleUnknown   = errors.New("content config: default locale must be listed in locales")
	ErrTOCDepthInvalid        = errors.New("content config: markdown toc depth must be between 2 and 6")
	ErrCSVDelimiterInvalid    = errors.New("content config: csv delimiter must be a single character")
	ErrWorkersInvalid         = errors.New("content config: pipeline workers must be zero or positive")
	ErrDebounceInvalid        = errors.New("content config: watcher debounce must be zero or positive")
	ErrCacheTTLInvalid        = errors.New("content config: query cache ttl must be zero or positive")
	ErrStorageDSNRequired     = errors.New("content config: storage dsn is required when storage is enabled")
	ErrHTTPBasePathInvalid    = errors.New("content config: http base path must start with /")
	ErrLoggingProviderUnknown = errors.New("content config: logging provider is invalid")
	ErrLoggingLevelInvalid    = errors.New("content config: logging level is invalid")
	ErrLoggingFormatInvalid   = errors.New("content config: logging format is invalid")
)

// Config aggregates sources, parser behaviour and adapter bindings for the
// content module.
type Config struct {
	Sources       []SourceConfig `toml:"sources"`
	Locales       []string       `toml:"locales"`
	DefaultLocale string         `toml:"default_locale"`
	// Ignores lists path segment prefixes excluded from indexing. Empty
	// selects "." and "-".
	Ignores  []string       `toml:"ignores"`
	Markdown MarkdownConfig `toml:"markdown"`
	CSV      CSVConfig      `toml:"csv"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Watcher  WatcherConfig  `toml:"watcher"`
	Query    QueryConfig    `toml:"query"`
	Storage  StorageConfig  `toml:"storage"`
	HTTP     HTTPConfig     `toml:"http"`
	Logging  LoggingConfig  `toml:"logging"`
}

// SourceConfig mounts one directory tree.
type SourceConfig struct {
	Name   string `toml:"name"`
	Root   string `toml:"root"`
	Prefix string `toml:"prefix"`
}

// MarkdownConfig captures parser behaviour for Markdown files.
type MarkdownConfig struct {
	TOCDepth      int      `toml:"toc_depth"`
	ExcerptMarker string   `toml:"excerpt_marker"`
	Extensions    []string `toml:"extensions"`
}

// CSVConfig captures decoding behaviour for CSV files.
type CSVConfig struct {
	Header    bool   `toml:"header"`
	Delimiter string `toml:"delimiter"`
	Coerce    bool   `toml:"coerce"`
}

// PipelineConfig sizes the parse worker pool. Zero uses runtime.NumCPU.
type PipelineConfig struct {
	Workers int `toml:"workers"`
}

// WatcherConfig toggles live reindexing.
type WatcherConfig struct {
	Enabled  bool     `toml:"enabled"`
	Debounce Duration `toml:"debounce"`
}

// QueryConfig captures result cache behaviour.
type QueryConfig struct {
	CacheTTL Duration `toml:"cache_ttl"`
}

// StorageConfig configures the persisted document mirror.
type StorageConfig struct {
	Enabled bool   `toml:"enabled"`
	DSN     string `toml:"dsn"`
	Cache   bool   `toml:"cache"`
}

// HTTPConfig configures the query endpoint.
type HTTPConfig struct {
	Address          string   `toml:"address"`
	BasePath         string   `toml:"base_path"`
	NavigationFields []string `toml:"navigation_fields"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `toml:"provider"`
	Level     string   `toml:"level"`
	Format    string   `toml:"format"`
	AddSource bool     `toml:"add_source"`
	Focus     []string `toml:"focus"`
	// File enables rotated file output for the zap provider.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Duration is a time.Duration written as "150ms" in configuration files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("content config: invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// DefaultConfig returns a single "content" source rooted at ./content.
func DefaultConfig() Config {
	return Config{
		Sources: []SourceConfig{
			{Name: "content", Root: "content"},
		},
		Markdown: MarkdownConfig{
			TOCDepth:      3,
			ExcerptMarker: "<!--more-->",
		},
		CSV: CSVConfig{
			Header:    true,
			Delimiter: ",",
			Coerce:    true,
		},
		Watcher: WatcherConfig{
			Enabled:  false,
			Debounce: Duration(100 * time.Millisecond),
		},
		Query: QueryConfig{
			CacheTTL: Duration(5 * time.Minute),
		},
		Storage: StorageConfig{
			DSN: "file:content.db?cache=shared",
		},
		HTTP: HTTPConfig{
			Address:  ":4000",
			BasePath: "/api/_content",
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	if len(cfg.Sources) == 0 {
		return ErrSourcesRequired
	}
	seen := map[string]bool{}
	for i, source := range cfg.Sources {
		name := strings.TrimSpace(source.Name)
		if name == "" {
			return fmt.Errorf("%w: sources[%d]", ErrSourceNameRequired, i)
		}
		if seen[name] {
			return fmt.Errorf("%w: %s", ErrSourceNameDuplicate, name)
		}
		seen[name] = true
		if strings.TrimSpace(source.Root) == "" {
			return fmt.Errorf("%w: %s", ErrSourceRootRequired, name)
		}
	}
	if locale := strings.TrimSpace(cfg.DefaultLocale); locale != "" && len(cfg.Locales) > 0 && !slices.Contains(cfg.Locales, locale) {
		return fmt.Errorf("%w: %s", ErrDefaultLocaleUnknown, locale)
	}
	if depth := cfg.Markdown.TOCDepth; depth != 0 && (depth < 2 || depth > 6) {
		return fmt.Errorf("%w: %d", ErrTOCDepthInvalid, depth)
	}
	if delim := cfg.CSV.Delimiter; delim != "" && utf8.RuneCountInString(delim) != 1 {
		return fmt.Errorf("%w: %q", ErrCSVDelimiterInvalid, delim)
	}
	if cfg.Pipeline.Workers < 0 {
		return ErrWorkersInvalid
	}
	if cfg.Watcher.Debounce < 0 {
		return ErrDebounceInvalid
	}
	if cfg.Query.CacheTTL < 0 {
		return ErrCacheTTLInvalid
	}
	if cfg.Storage.Enabled && strings.TrimSpace(cfg.Storage.DSN) == "" {
		return ErrStorageDSNRequired
	}
	if base := strings.TrimSpace(cfg.HTTP.BasePath); base != "" && !strings.HasPrefix(base, "/") {
		return fmt.Errorf("%w: %s", ErrHTTPBasePathInvalid, base)
	}

	provider := NormalizeProvider(cfg.Logging.Provider)
	if provider != "" && !isSupportedProvider(provider) {
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(provider, format) {
		return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
	}
	return nil
}

// CSVDelimiter returns the configured delimiter rune, defaulting to a comma.
func (cfg Config) CSVDelimiter() rune {
	if r, _ := utf8.DecodeRuneInString(cfg.CSV.Delimiter); r != utf8.RuneError {
		return r
	}
	return ','
}

// NormalizeProvider lowercases the provider name; empty means console.
func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger", "zap":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(provider, format string) bool {
	format = strings.ToLower(strings.TrimSpace(format))
	switch provider {
	case "gologger":
		return format == "json" || format == "console" || format == "pretty"
	case "zap":
		return format == "json" || format == "console"
	default:
		return format == "logfmt"
	}
}

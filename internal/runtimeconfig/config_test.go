package runtimeconfig_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-content/internal/runtimeconfig"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
	if cfg.Watcher.Debounce.Std() != 100*time.Millisecond {
		t.Fatalf("expected 100ms debounce, got %s", cfg.Watcher.Debounce)
	}
	if cfg.CSVDelimiter() != ',' {
		t.Fatalf("expected comma delimiter, got %q", cfg.CSVDelimiter())
	}
}

func TestConfigValidateSentinels(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*runtimeconfig.Config)
		want   error
	}{
		{"no sources", func(c *runtimeconfig.Config) { c.Sources = nil }, runtimeconfig.ErrSourcesRequired},
		{"unnamed source", func(c *runtimeconfig.Config) { c.Sources[0].Name = " " }, runtimeconfig.ErrSourceNameRequired},
		{"duplicate source", func(c *runtimeconfig.Config) {
			c.Sources = append(c.Sources, runtimeconfig.SourceConfig{Name: "content", Root: "other"})
		}, runtimeconfig.ErrSourceNameDuplicate},
		{"missing root", func(c *runtimeconfig.Config) { c.Sources[0].Root = "" }, runtimeconfig.ErrSourceRootRequired},
		{"unknown default locale", func(c *runtimeconfig.Config) {
			c.Locales = []string{"en", "fa"}
			c.DefaultLocale = "de"
		}, runtimeconfig.ErrDefaultLocaleUnknown},
		{"toc depth", func(c *runtimeconfig.Config) { c.Markdown.TOCDepth = 9 }, runtimeconfig.ErrTOCDepthInvalid},
		{"csv delimiter", func(c *runtimeconfig.Config) { c.CSV.Delimiter = ";;" }, runtimeconfig.ErrCSVDelimiterInvalid},
		{"workers", func(c *runtimeconfig.Config) { c.Pipeline.Workers = -1 }, runtimeconfig.ErrWorkersInvalid},
		{"debounce", func(c *runtimeconfig.Config) { c.Watcher.Debounce = -1 }, runtimeconfig.ErrDebounceInvalid},
		{"cache ttl", func(c *runtimeconfig.Config) { c.Query.CacheTTL = -1 }, runtimeconfig.ErrCacheTTLInvalid},
		{"storage dsn", func(c *runtimeconfig.Config) {
			c.Storage.Enabled = true
			c.Storage.DSN = ""
		}, runtimeconfig.ErrStorageDSNRequired},
		{"base path", func(c *runtimeconfig.Config) { c.HTTP.BasePath = "api" }, runtimeconfig.ErrHTTPBasePathInvalid},
		{"logging provider", func(c *runtimeconfig.Config) { c.Logging.Provider = "syslog" }, runtimeconfig.ErrLoggingProviderUnknown},
		{"logging level", func(c *runtimeconfig.Config) { c.Logging.Level = "loud" }, runtimeconfig.ErrLoggingLevelInvalid},
		{"logging format", func(c *runtimeconfig.Config) {
			c.Logging.Provider = "gologger"
			c.Logging.Format = "xml"
		}, runtimeconfig.ErrLoggingFormatInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := runtimeconfig.DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigValidateAcceptsZapFormats(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Logging.Provider = "zap"
	cfg.Logging.Format = "console"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	data := `
locales = ["en", "fa"]
default_locale = "en"

[[sources]]
name = "docs"
root = "./docs"
prefix = "/docs"

[watcher]
enabled = true
debounce = "250ms"

[logging]
provider = "zap"
level = "debug"
`
	cfg, err := runtimeconfig.Load([]byte(data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "docs" || cfg.Sources[0].Prefix != "/docs" {
		t.Fatalf("unexpected sources %+v", cfg.Sources)
	}
	if !cfg.Watcher.Enabled || cfg.Watcher.Debounce.Std() != 250*time.Millisecond {
		t.Fatalf("unexpected watcher config %+v", cfg.Watcher)
	}
	if cfg.HTTP.BasePath != "/api/_content" || cfg.Markdown.TOCDepth != 3 {
		t.Fatalf("expected defaults to survive, got %+v %+v", cfg.HTTP, cfg.Markdown)
	}
	if cfg.Logging.Provider != "zap" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoadFileRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.toml")
	if err := os.WriteFile(path, []byte("[pipeline]\nworkers = -2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := runtimeconfig.LoadFile(path); !errors.Is(err, runtimeconfig.ErrWorkersInvalid) {
		t.Fatalf("expected ErrWorkersInvalid, got %v", err)
	}

	if _, err := runtimeconfig.LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := runtimeconfig.Load([]byte("[watcher]\ndebounce = \"soon\"\n")); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestEncodeWritesDurations(t *testing.T) {
	out, err := runtimeconfig.Encode(runtimeconfig.DefaultConfig())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(out), "100ms") {
		t.Fatalf("expected readable durations, got:\n%s", out)
	}
}

package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	content "github.com/goliatone/go-content"
	"github.com/goliatone/go-content/internal/di"
)

type globalFlags struct {
	configPath    string
	roots         []string
	locales       string
	defaultLocale string
	addr          string
	logLevel      string
}

// moduleBuilder is swapped in tests.
var moduleBuilder = func(cfg content.Config, opts ...di.Option) (*content.Module, error) {
	return content.New(cfg, opts...)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "content",
		Short:         "Index and query a content directory",
		Long:          "Indexes Markdown, YAML, JSON and CSV files into queryable documents and serves them over /api/_content.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// cobra prints to stderr unless an output writer is set
	root.SetOut(os.Stdout)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a TOML configuration file")
	pf.StringSliceVar(&flags.roots, "root", nil, "content root as [name=]path (repeatable)")
	pf.StringVar(&flags.locales, "locales", "", "comma separated locale codes")
	pf.StringVar(&flags.defaultLocale, "default-locale", "", "locale assigned to unscoped paths")
	pf.StringVar(&flags.addr, "addr", "", "listen address for serve")
	pf.StringVar(&flags.logLevel, "log-level", "", "logging level (trace, debug, info, warn, error)")

	root.AddCommand(
		newBuildCmd(flags),
		newQueryCmd(flags),
		newServeCmd(flags),
	)
	return root
}

// loadConfig layers the config file (when given) and command-line flags
// over the defaults.
func (f *globalFlags) loadConfig() (content.Config, error) {
	cfg := content.DefaultConfig()
	if path := strings.TrimSpace(f.configPath); path != "" {
		loaded, err := content.LoadConfig(path)
		if err != nil {
			return content.Config{}, err
		}
		cfg = loaded
	}

	if len(f.roots) > 0 {
		cfg.Sources = cfg.Sources[:0]
		for i, value := range f.roots {
			cfg.Sources = append(cfg.Sources, parseRoot(value, i))
		}
	}
	if locales := splitList(f.locales); len(locales) > 0 {
		cfg.Locales = locales
	}
	if locale := strings.TrimSpace(f.defaultLocale); locale != "" {
		cfg.DefaultLocale = locale
	}
	if addr := strings.TrimSpace(f.addr); addr != "" {
		cfg.HTTP.Address = addr
	}
	if level := strings.TrimSpace(f.logLevel); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, cfg.Validate()
}

func (f *globalFlags) openModule() (*content.Module, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	return moduleBuilder(cfg)
}

func parseRoot(value string, position int) content.SourceConfig {
	name, path, ok := strings.Cut(value, "=")
	if !ok {
		path = value
		name = "content"
		if position > 0 {
			name = ""
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultSourceName(path)
	}
	return content.SourceConfig{Name: name, Root: strings.TrimSpace(path)}
}

func defaultSourceName(path string) string {
	trimmed := strings.Trim(strings.TrimSpace(path), "/\\")
	if idx := strings.LastIndexAny(trimmed, "/\\"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" || trimmed == "." {
		return "content"
	}
	return trimmed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

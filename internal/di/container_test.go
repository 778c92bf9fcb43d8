package di_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	contentcmd "github.com/goliatone/go-content/internal/commands/content"
	"github.com/goliatone/go-content/internal/di"
	"github.com/goliatone/go-content/internal/logging/zaplogger"
	"github.com/goliatone/go-content/internal/runtimeconfig"
	"github.com/goliatone/go-content/pkg/interfaces"
	"github.com/goliatone/go-content/pkg/testsupport"
)

type recordingProvider struct {
	names []string
}

func (p *recordingProvider) GetLogger(name string) interfaces.Logger {
	p.names = append(p.names, name)
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Trace(string, ...any)                            {}
func (nopLogger) Debug(string, ...any)                            {}
func (nopLogger) Info(string, ...any)                             {}
func (nopLogger) Warn(string, ...any)                             {}
func (nopLogger) Error(string, ...any)                            {}
func (nopLogger) Fatal(string, ...any)                            {}
func (n nopLogger) WithFields(map[string]any) interfaces.Logger   { return n }
func (n nopLogger) WithContext(context.Context) interfaces.Logger { return n }

func fixtureConfig(t *testing.T) (runtimeconfig.Config, string) {
	t.Helper()
	root := testsupport.WriteTree(t, map[string]string{
		"index.md":    "# Hello\n",
		"fa/index.md": "# Salam\n",
		".cache/x.md": "# Hidden\n",
	})

	cfg := runtimeconfig.DefaultConfig()
	cfg.Sources = []runtimeconfig.SourceConfig{{Name: "content", Root: root}}
	cfg.Locales = []string{"en", "fa"}
	cfg.DefaultLocale = "en"
	return cfg, root
}

func TestNewContainerValidatesConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Sources = nil
	if _, err := di.NewContainer(cfg); !errors.Is(err, runtimeconfig.ErrSourcesRequired) {
		t.Fatalf("expected ErrSourcesRequired, got %v", err)
	}
}

func TestContainerBuildsIndex(t *testing.T) {
	cfg, _ := fixtureConfig(t)
	rec := &recordingProvider{}
	c, err := di.NewContainer(cfg, di.WithLoggerProvider(rec))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if c.Store() != nil {
		t.Fatal("expected storage to stay disabled by default")
	}
	if err := c.Commands().Build.Execute(context.Background(), contentcmd.BuildIndexCommand{Reason: "test"}); err != nil {
		t.Fatalf("build: %v", err)
	}
	snap := c.Index().Snapshot()
	if snap.Len() != 2 {
		t.Fatalf("expected two documents, got %v", snap.IDs())
	}
	fa, ok := snap.Get("content:fa:index.md")
	if !ok || fa.Locale() != "fa" {
		t.Fatalf("expected fa locale document, got %v", fa)
	}

	for _, module := range []string{"content.pipeline", "content.index", "content.query", "content.http", "content.commands.content"} {
		if !slices.Contains(rec.names, module) {
			t.Fatalf("expected logger %s to be requested, got %v", module, rec.names)
		}
	}
}

func TestContainerPersistsToStorage(t *testing.T) {
	cfg, _ := fixtureConfig(t)
	cfg.Storage.Enabled = true
	cfg.Storage.DSN = testsupport.MemoryDSN(t)
	cfg.Storage.Cache = true

	c, err := di.NewContainer(cfg, di.WithLoggerProvider(&recordingProvider{}))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if c.Store() == nil {
		t.Fatal("expected storage to be configured")
	}
	if _, err := c.Pipeline().Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	rows, err := c.Store().List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected two persisted rows, got %d", len(rows))
	}
}

func TestContainerWatcherSkipsIgnoredDirectories(t *testing.T) {
	cfg, root := fixtureConfig(t)
	c, err := di.NewContainer(cfg, di.WithLoggerProvider(&recordingProvider{}))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	w, err := c.NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	watched := w.WatchList()
	resolved, _ := filepath.Abs(root)
	if !slices.Contains(watched, filepath.Join(resolved, "fa")) {
		t.Fatalf("expected fa directory watched, got %v", watched)
	}
	if slices.Contains(watched, filepath.Join(resolved, ".cache")) {
		t.Fatalf("expected .cache to be skipped, got %v", watched)
	}
}

func TestContainerSelectsZapProvider(t *testing.T) {
	cfg, _ := fixtureConfig(t)
	cfg.Logging.Provider = "zap"
	cfg.Logging.Level = "warn"

	c, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if _, ok := c.LoggerProvider().(*zaplogger.Provider); !ok {
		t.Fatalf("expected zap provider, got %T", c.LoggerProvider())
	}
}

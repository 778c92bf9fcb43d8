package di

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	contentcmd "github.com/goliatone/go-content/internal/commands/content"
	"github.com/goliatone/go-content/internal/feed"
	contenthttp "github.com/goliatone/go-content/internal/http"
	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/internal/logging/console"
	"github.com/goliatone/go-content/internal/logging/gologger"
	"github.com/goliatone/go-content/internal/logging/zaplogger"
	"github.com/goliatone/go-content/internal/parser"
	"github.com/goliatone/go-content/internal/pathmeta"
	"github.com/goliatone/go-content/internal/pipeline"
	"github.com/goliatone/go-content/internal/query"
	"github.com/goliatone/go-content/internal/runtimeconfig"
	"github.com/goliatone/go-content/internal/storage"
	"github.com/goliatone/go-content/internal/watcher"
	"github.com/goliatone/go-content/pkg/interfaces"
	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// Container wires module dependencies from a runtime configuration.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider
	closers        []func() error

	bunDB         *bun.DB
	ownsDB        bool
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	feed     *feed.Feed
	parsers  *parser.Registry
	paths    *pathmeta.Transformer
	sources  []pathmeta.Source
	index    *index.Index
	store    *storage.Store
	pipeline *pipeline.Pipeline
	engine   *query.Engine
	api      *contenthttp.ContentAPI
	commands *contentcmd.HandlerSet
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider built from the logging config.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		if provider != nil {
			c.loggerProvider = provider
		}
	}
}

// WithBunDB supplies the database backing the persisted mirror. The caller
// keeps ownership of db.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache injects the repository cache used by the persisted mirror.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// NewContainer validates cfg and builds every component. Storage is opened
// and its schema ensured when enabled or when a database was supplied.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{Config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.loggerProvider == nil {
		provider, err := buildLoggerProvider(cfg.Logging)
		if err != nil {
			return nil, err
		}
		c.loggerProvider = provider
	}

	if err := c.configureStorage(); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.configureIndexing(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func buildLoggerProvider(cfg runtimeconfig.LoggingConfig) (interfaces.LoggerProvider, error) {
	switch runtimeconfig.NormalizeProvider(cfg.Provider) {
	case "gologger":
		return gologger.NewProvider(gologger.Config{
			Level:     cfg.Level,
			Format:    cfg.Format,
			AddSource: cfg.AddSource,
			Focus:     cfg.Focus,
		})
	case "zap":
		return zaplogger.NewProvider(zaplogger.Config{
			Level:      cfg.Level,
			Format:     cfg.Format,
			File:       cfg.File,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
		})
	default:
		opts := console.Options{}
		if level, ok := console.ParseLevel(cfg.Level); ok {
			opts.MinLevel = &level
		}
		return console.NewProvider(opts), nil
	}
}

func (c *Container) configureStorage() error {
	if c.bunDB == nil {
		if !c.Config.Storage.Enabled {
			return nil
		}
		db, err := storage.Open(c.Config.Storage.DSN)
		if err != nil {
			return err
		}
		c.bunDB = db
		c.ownsDB = true
	}

	if c.Config.Storage.Cache && c.cacheService == nil {
		cacheCfg := repocache.DefaultConfig()
		if ttl := c.Config.Query.CacheTTL.Std(); ttl > 0 {
			cacheCfg.TTL = ttl
		}
		service, err := repocache.NewCacheService(cacheCfg)
		if err != nil {
			return fmt.Errorf("di: build cache service: %w", err)
		}
		c.cacheService = service
	}
	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}

	storeOpts := []storage.Option{storage.WithLogger(logging.StorageLogger(c.loggerProvider))}
	if c.cacheService != nil {
		storeOpts = append(storeOpts, storage.WithCache(c.cacheService, c.keySerializer))
	}
	store, err := storage.New(c.bunDB, storeOpts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	c.store = store
	return nil
}

func (c *Container) configureIndexing() error {
	cfg := c.Config

	c.feed = feed.New(feed.Options{Logger: logging.FeedLogger(c.loggerProvider)})
	c.closers = append(c.closers, c.feed.Close)

	parserOpts := parser.DefaultOptions()
	if cfg.Markdown.TOCDepth > 0 {
		parserOpts.Markdown.TOCDepth = cfg.Markdown.TOCDepth
	}
	parserOpts.Markdown.ExcerptMarker = cfg.Markdown.ExcerptMarker
	parserOpts.Markdown.Extensions = cfg.Markdown.Extensions
	parserOpts.CSV = parser.CSVOptions{
		Header:    cfg.CSV.Header,
		Delimiter: cfg.CSVDelimiter(),
		Coerce:    cfg.CSV.Coerce,
	}
	parserOpts.Logger = logging.ParserLogger(c.loggerProvider)
	c.parsers = parser.NewRegistry(parserOpts)

	c.paths = pathmeta.New(cfg.Locales, cfg.DefaultLocale, cfg.Ignores)
	for _, source := range cfg.Sources {
		c.sources = append(c.sources, pathmeta.Source{
			Name:   strings.TrimSpace(source.Name),
			Root:   source.Root,
			Prefix: source.Prefix,
		})
	}

	c.index = index.New(
		index.WithPublisher(c.feed),
		index.WithLogger(logging.IndexLogger(c.loggerProvider)),
	)

	pipelineOpts := pipeline.Options{
		Sources: c.sources,
		Parsers: c.parsers,
		Paths:   c.paths,
		Index:   c.index,
		Workers: cfg.Pipeline.Workers,
		Logger:  logging.PipelineLogger(c.loggerProvider),
	}
	if c.store != nil {
		pipelineOpts.Store = c.store
	}
	p, err := pipeline.New(pipelineOpts)
	if err != nil {
		return err
	}
	c.pipeline = p
	c.sources = p.Sources()

	c.engine = query.NewEngine(query.Options{
		CacheTTL: cfg.Query.CacheTTL.Std(),
		Logger:   logging.QueryLogger(c.loggerProvider),
	})

	c.api = contenthttp.NewContentAPI(
		contenthttp.WithBasePath(cfg.HTTP.BasePath),
		contenthttp.WithSnapshotSource(c.index),
		contenthttp.WithQueryEngine(c.engine),
		contenthttp.WithNavigationFields(cfg.HTTP.NavigationFields...),
		contenthttp.WithLogger(logging.HTTPLogger(c.loggerProvider)),
	)

	handlers, err := contentcmd.RegisterContentCommands(nil, c.pipeline, c.loggerProvider)
	if err != nil {
		return err
	}
	c.commands = handlers
	return nil
}

// NewWatcher builds a watcher over every source root. Roots that do not
// exist yet are skipped.
func (c *Container) NewWatcher() (*watcher.Watcher, error) {
	roots := make([]string, 0, len(c.sources))
	for _, source := range c.sources {
		if info, err := os.Stat(source.Root); err == nil && info.IsDir() {
			roots = append(roots, source.Root)
		}
	}
	return watcher.New(c.commands, watcher.Options{
		Roots:    roots,
		Debounce: c.Config.Watcher.Debounce.Std(),
		Skip:     c.skipWatchPath,
		Logger:   logging.WatcherLogger(c.loggerProvider),
	})
}

func (c *Container) skipWatchPath(abs string) bool {
	for _, source := range c.sources {
		rel, err := filepath.Rel(source.Root, abs)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return c.paths.Ignored(source, filepath.ToSlash(rel))
	}
	return false
}

// LoggerProvider returns the provider every module logger derives from.
func (c *Container) LoggerProvider() interfaces.LoggerProvider { return c.loggerProvider }

// Index returns the in-memory document index.
func (c *Container) Index() *index.Index { return c.index }

// Pipeline returns the indexing pipeline.
func (c *Container) Pipeline() *pipeline.Pipeline { return c.pipeline }

// QueryEngine returns the shared query engine.
func (c *Container) QueryEngine() *query.Engine { return c.engine }

// Feed returns the change feed.
func (c *Container) Feed() *feed.Feed { return c.feed }

// Store returns the persisted mirror, or nil when storage is disabled.
func (c *Container) Store() *storage.Store { return c.store }

// ContentAPI returns the HTTP API.
func (c *Container) ContentAPI() *contenthttp.ContentAPI { return c.api }

// Commands returns the indexing command handlers.
func (c *Container) Commands() *contentcmd.HandlerSet { return c.commands }

// Close releases the feed and any database the container opened.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.ownsDB && c.bunDB != nil {
		if err := c.bunDB.Close(); err != nil {
			errs = append(errs, err)
		}
		c.ownsDB = false
	}
	return errors.Join(errs...)
}

// Package content indexes a tree of Markdown, YAML, JSON and CSV files into
// queryable documents and serves them over a JSON query API.
package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	contentcmd "github.com/goliatone/go-content/internal/commands/content"
	"github.com/goliatone/go-content/internal/di"
	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/internal/navigation"
	"github.com/goliatone/go-content/internal/pipeline"
	"github.com/goliatone/go-content/internal/query"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// Document is one indexed content item.
type Document = interfaces.Document

// ChangeEvent describes one published index change.
type ChangeEvent = interfaces.ChangeEvent

// BuildReport summarises a full index build.
type BuildReport = pipeline.BuildReport

// Descriptor is the typed form of a query.
type Descriptor = query.Descriptor

// SortKey orders query results by one field.
type SortKey = query.SortKey

// QueryResult is the outcome of running a query against one snapshot.
type QueryResult = query.Result

// Snapshot is an immutable view of the index.
type Snapshot = index.Snapshot

// NavigationLink is one node of a navigation tree.
type NavigationLink = navigation.Link

// ErrMalformedQuery is matched by every rejected query descriptor.
var ErrMalformedQuery = query.ErrMalformed

// Module represents the top level content runtime façade.
type Module struct {
	container *di.Container
	logger    interfaces.Logger
}

// New constructs a content module using the provided configuration and optional DI overrides.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{
		container: container,
		logger:    logging.ModuleLogger(container.LoggerProvider(), "content"),
	}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Build walks every source and replaces the index contents in one version.
func (m *Module) Build(ctx context.Context) (*BuildReport, error) {
	return m.container.Commands().Build.Build(ctx, contentcmd.BuildIndexCommand{Reason: "build"})
}

// Snapshot returns the current index view.
func (m *Module) Snapshot() *Snapshot {
	return m.container.Index().Snapshot()
}

// Query parses a wire descriptor and evaluates it against the current
// snapshot. Malformed descriptors return an error matching ErrMalformedQuery.
func (m *Module) Query(ctx context.Context, raw []byte) (*QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := query.Parse(raw)
	if err != nil {
		return nil, query.Wrap(err)
	}
	return m.container.QueryEngine().Run(m.Snapshot(), q), nil
}

// Find evaluates a typed descriptor.
func (m *Module) Find(ctx context.Context, desc Descriptor) (*QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := query.Compile(desc)
	if err != nil {
		return nil, query.Wrap(err)
	}
	return m.container.QueryEngine().Run(m.Snapshot(), q), nil
}

// Navigation builds the navigation tree of the documents a descriptor selects.
func (m *Module) Navigation(ctx context.Context, raw []byte) ([]*NavigationLink, error) {
	result, err := m.Query(ctx, raw)
	if err != nil {
		return nil, err
	}
	docs := result.Documents
	if result.First && result.Found {
		docs = []Document{result.Document}
	}
	return navigation.Build(docs, navigation.Options{Fields: m.container.Config.HTTP.NavigationFields}), nil
}

// Subscribe streams changes published after the call until ctx is done.
func (m *Module) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	return m.container.Feed().Subscribe(ctx)
}

// Watch reindexes files as they change until ctx is done.
func (m *Module) Watch(ctx context.Context) error {
	w, err := m.container.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx)
}

// Register attaches the content API routes to mux.
func (m *Module) Register(mux *http.ServeMux) error {
	return m.container.ContentAPI().Register(mux)
}

// Handler returns a mux serving only the content API.
func (m *Module) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := m.Register(mux); err != nil {
		return nil, err
	}
	return mux, nil
}

// Serve builds the index, starts the watcher when enabled and serves the API
// on the configured address until ctx is done.
func (m *Module) Serve(ctx context.Context) error {
	if _, err := m.Build(ctx); err != nil {
		return err
	}
	handler, err := m.Handler()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	if m.container.Config.Watcher.Enabled {
		go func() {
			if err := m.Watch(ctx); err != nil {
				errs <- fmt.Errorf("watch: %w", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              m.container.Config.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		m.logger.Info("content.serve.listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errs:
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// Close releases the feed and storage.
func (m *Module) Close() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close()
}

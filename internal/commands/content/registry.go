package contentcmd

import (
	"context"
	"errors"

	"github.com/goliatone/go-content/internal/commands"
	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/watcher"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// HandlerSet groups the handlers produced by RegisterContentCommands. It
// drives a watcher, so file events run through the command handlers.
type HandlerSet struct {
	Build   *BuildIndexHandler
	Process *ProcessFileHandler
	Remove  *RemoveFileHandler
}

var _ watcher.Processor = (*HandlerSet)(nil)

// ProcessFile runs the process command for abs.
func (s *HandlerSet) ProcessFile(ctx context.Context, abs string) ([]index.Change, error) {
	return s.Process.ProcessFile(ctx, abs)
}

// RemoveFile runs the remove command for abs.
func (s *HandlerSet) RemoveFile(ctx context.Context, abs string) ([]index.Change, error) {
	return s.Remove.RemoveFile(ctx, abs)
}

// Option customises handler wiring during registration.
type Option func(*options)

type options struct {
	buildOpts   []commands.HandlerOption[BuildIndexCommand]
	processOpts []commands.HandlerOption[ProcessFileCommand]
	removeOpts  []commands.HandlerOption[RemoveFileCommand]
}

// WithBuildHandlerOptions forwards options to the BuildIndexHandler constructor.
func WithBuildHandlerOptions(opts ...commands.HandlerOption[BuildIndexCommand]) Option {
	return func(cfg *options) {
		cfg.buildOpts = append(cfg.buildOpts, opts...)
	}
}

// WithProcessHandlerOptions forwards options to the ProcessFileHandler constructor.
func WithProcessHandlerOptions(opts ...commands.HandlerOption[ProcessFileCommand]) Option {
	return func(cfg *options) {
		cfg.processOpts = append(cfg.processOpts, opts...)
	}
}

// WithRemoveHandlerOptions forwards options to the RemoveFileHandler constructor.
func WithRemoveHandlerOptions(opts ...commands.HandlerOption[RemoveFileCommand]) Option {
	return func(cfg *options) {
		cfg.removeOpts = append(cfg.removeOpts, opts...)
	}
}

// RegisterContentCommands builds the indexing handlers and registers them with reg when
// one is supplied. The handler set is returned so callers can subscribe them to a
// dispatcher directly.
func RegisterContentCommands(reg CommandRegistry, indexer Indexer, provider interfaces.LoggerProvider, opts ...Option) (*HandlerSet, error) {
	if indexer == nil {
		return nil, errors.New("content command registration: indexer is nil")
	}

	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := commands.CommandLogger(provider, "content")
	set := &HandlerSet{
		Build:   NewBuildIndexHandler(indexer, logger, cfg.buildOpts...),
		Process: NewProcessFileHandler(indexer, logger, cfg.processOpts...),
		Remove:  NewRemoveFileHandler(indexer, logger, cfg.removeOpts...),
	}

	if reg != nil {
		for _, handler := range []any{set.Build, set.Process, set.Remove} {
			if err := reg.RegisterCommand(handler); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

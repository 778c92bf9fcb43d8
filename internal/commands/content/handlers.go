package contentcmd

import (
	"context"
	"sync"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-content/internal/commands"
	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/internal/pipeline"
	"github.com/goliatone/go-content/pkg/interfaces"
)

const (
	buildOperation   = "content.index.build"
	processOperation = "content.file.process"
	removeOperation  = "content.file.remove"
)

var (
	_ command.Commander[BuildIndexCommand]  = (*BuildIndexHandler)(nil)
	_ command.Commander[ProcessFileCommand] = (*ProcessFileHandler)(nil)
	_ command.Commander[RemoveFileCommand]  = (*RemoveFileHandler)(nil)
)

// Indexer is the pipeline surface the handlers drive. *pipeline.Pipeline
// satisfies it.
type Indexer interface {
	Build(ctx context.Context) (*pipeline.BuildReport, error)
	ProcessFile(ctx context.Context, abs string) ([]index.Change, error)
	RemoveFile(ctx context.Context, abs string) ([]index.Change, error)
}

type outcomeKey struct{}

// outcome collects what one execution produced so callers get their own
// result rather than another execution's.
type outcome struct {
	report  *pipeline.BuildReport
	changes []index.Change
}

func withOutcome(ctx context.Context) (context.Context, *outcome) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := &outcome{}
	return context.WithValue(ctx, outcomeKey{}, out), out
}

func outcomeFrom(ctx context.Context) *outcome {
	if out, ok := ctx.Value(outcomeKey{}).(*outcome); ok {
		return out
	}
	return &outcome{}
}

// BuildIndexHandler runs a full pipeline build.
type BuildIndexHandler struct {
	inner *commands.Handler[BuildIndexCommand]

	mu     sync.RWMutex
	report *pipeline.BuildReport
}

// NewBuildIndexHandler creates a handler bound to the supplied indexer.
func NewBuildIndexHandler(indexer Indexer, logger interfaces.Logger, opts ...commands.HandlerOption[BuildIndexCommand]) *BuildIndexHandler {
	baseLogger := logging.Ensure(logger)
	h := &BuildIndexHandler{}

	exec := func(ctx context.Context, msg BuildIndexCommand) error {
		report, err := indexer.Build(ctx)
		if err != nil {
			return err
		}
		outcomeFrom(ctx).report = report
		h.mu.Lock()
		h.report = report
		h.mu.Unlock()

		logging.WithFields(baseLogger, map[string]any{
			"indexed": report.Indexed,
			"reused":  report.Reused,
			"removed": report.Removed,
			"failed":  len(report.Failed),
			"version": report.Version,
		}).Info("content.command.build.completed")
		return nil
	}

	handlerOpts := []commands.HandlerOption[BuildIndexCommand]{
		commands.WithLogger[BuildIndexCommand](baseLogger),
		commands.WithOperation[BuildIndexCommand](buildOperation),
		commands.WithTimeout[BuildIndexCommand](0),
		commands.WithMessageFields(func(msg BuildIndexCommand) map[string]any {
			if msg.Reason == "" {
				return nil
			}
			return map[string]any{"reason": msg.Reason}
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[BuildIndexCommand](baseLogger)),
	}
	h.inner = commands.NewHandler(exec, append(handlerOpts, opts...)...)
	return h
}

// Execute satisfies command.Commander[BuildIndexCommand].
func (h *BuildIndexHandler) Execute(ctx context.Context, msg BuildIndexCommand) error {
	return h.inner.Execute(ctx, msg)
}

// Build executes msg and returns the report of this execution.
func (h *BuildIndexHandler) Build(ctx context.Context, msg BuildIndexCommand) (*pipeline.BuildReport, error) {
	ctx, out := withOutcome(ctx)
	if err := h.inner.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out.report, nil
}

// LastReport returns the report of the most recent successful build.
func (h *BuildIndexHandler) LastReport() *pipeline.BuildReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.report
}

// ProcessFileHandler reindexes one file.
type ProcessFileHandler struct {
	inner *commands.Handler[ProcessFileCommand]
}

// NewProcessFileHandler creates a handler bound to the supplied indexer.
func NewProcessFileHandler(indexer Indexer, logger interfaces.Logger, opts ...commands.HandlerOption[ProcessFileCommand]) *ProcessFileHandler {
	baseLogger := logging.Ensure(logger)
	exec := func(ctx context.Context, msg ProcessFileCommand) error {
		changes, err := indexer.ProcessFile(ctx, msg.Path)
		outcomeFrom(ctx).changes = changes
		if err != nil {
			return err
		}
		baseLogger.Debug("content.command.process.completed", "path", msg.Path, "changes", len(changes))
		return nil
	}

	handlerOpts := []commands.HandlerOption[ProcessFileCommand]{
		commands.WithLogger[ProcessFileCommand](baseLogger),
		commands.WithOperation[ProcessFileCommand](processOperation),
		commands.WithMessageFields(func(msg ProcessFileCommand) map[string]any {
			return map[string]any{"path": msg.Path}
		}),
	}
	return &ProcessFileHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[ProcessFileCommand].
func (h *ProcessFileHandler) Execute(ctx context.Context, msg ProcessFileCommand) error {
	return h.inner.Execute(ctx, msg)
}

// ProcessFile reindexes abs through the command and returns the applied changes.
func (h *ProcessFileHandler) ProcessFile(ctx context.Context, abs string) ([]index.Change, error) {
	ctx, out := withOutcome(ctx)
	err := h.inner.Execute(ctx, ProcessFileCommand{Path: abs})
	return out.changes, err
}

// RemoveFileHandler drops a file or directory from the index.
type RemoveFileHandler struct {
	inner *commands.Handler[RemoveFileCommand]
}

// NewRemoveFileHandler creates a handler bound to the supplied indexer.
func NewRemoveFileHandler(indexer Indexer, logger interfaces.Logger, opts ...commands.HandlerOption[RemoveFileCommand]) *RemoveFileHandler {
	baseLogger := logging.Ensure(logger)
	exec := func(ctx context.Context, msg RemoveFileCommand) error {
		changes, err := indexer.RemoveFile(ctx, msg.Path)
		outcomeFrom(ctx).changes = changes
		if err != nil {
			return err
		}
		baseLogger.Debug("content.command.remove.completed", "path", msg.Path, "changes", len(changes))
		return nil
	}

	handlerOpts := []commands.HandlerOption[RemoveFileCommand]{
		commands.WithLogger[RemoveFileCommand](baseLogger),
		commands.WithOperation[RemoveFileCommand](removeOperation),
		commands.WithMessageFields(func(msg RemoveFileCommand) map[string]any {
			return map[string]any{"path": msg.Path}
		}),
	}
	return &RemoveFileHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[RemoveFileCommand].
func (h *RemoveFileHandler) Execute(ctx context.Context, msg RemoveFileCommand) error {
	return h.inner.Execute(ctx, msg)
}

// RemoveFile drops abs through the command and returns the applied changes.
func (h *RemoveFileHandler) RemoveFile(ctx context.Context, abs string) ([]index.Change, error) {
	ctx, out := withOutcome(ctx)
	err := h.inner.Execute(ctx, RemoveFileCommand{Path: abs})
	return out.changes, err
}

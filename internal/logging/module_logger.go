package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-content/pkg/interfaces"
)

const (
	rootModule     = "content"
	parserModule   = "content.parser"
	pipelineModule = "content.pipeline"
	indexModule    = "content.index"
	queryModule    = "content.query"
	watcherModule  = "content.watcher"
	feedModule     = "content.feed"
	storageModule  = "content.storage"
	httpModule     = "content.http"
)

const (
	fieldSourcePath = "source_path"
	fieldSource     = "source"
	fieldDocumentID = "document_id"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The module identifier is
// attached as a structured field.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if strings.TrimSpace(module) == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// ParserLogger returns the logger namespace reserved for format parsers.
func ParserLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, parserModule)
}

// PipelineLogger returns the logger namespace reserved for the parse pipeline.
func PipelineLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, pipelineModule)
}

// IndexLogger returns the logger namespace reserved for the content index.
func IndexLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, indexModule)
}

// QueryLogger returns the logger namespace reserved for the query engine.
func QueryLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, queryModule)
}

// WatcherLogger returns the logger namespace reserved for the file watcher.
func WatcherLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, watcherModule)
}

// FeedLogger returns the logger namespace reserved for the change feed.
func FeedLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, feedModule)
}

// StorageLogger returns the logger namespace reserved for the persisted mirror.
func StorageLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, storageModule)
}

// HTTPLogger returns the logger namespace reserved for the query endpoint.
func HTTPLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, httpModule)
}

// WithSourceContext enriches logger with the source name and file path being
// processed. Empty values are skipped.
func WithSourceContext(logger interfaces.Logger, source, path string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(source); trimmed != "" {
		fields[fieldSource] = trimmed
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		fields[fieldSourcePath] = trimmed
	}
	return WithFields(logger, fields)
}

// WithDocument attaches the document identifier to logger.
func WithDocument(logger interfaces.Logger, id string) interfaces.Logger {
	if strings.TrimSpace(id) == "" {
		return logger
	}
	return WithFields(logger, map[string]any{fieldDocumentID: id})
}

// NoOp returns a logger that drops every entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger { return n }

func (n noopLogger) WithContext(context.Context) interfaces.Logger { return n }

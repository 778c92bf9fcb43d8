package feed

import (
	"maps"
	"slices"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// loggerAdapter routes watermill logs through the module logger.
type loggerAdapter struct {
	logger interfaces.Logger
}

func newLoggerAdapter(logger interfaces.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{logger: logger}
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error("feed.pubsub: "+msg, a.args(fields, "error", err)...)
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Debug("feed.pubsub: "+msg, a.args(fields)...)
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Trace("feed.pubsub: "+msg, a.args(fields)...)
}

func (a *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Trace("feed.pubsub: "+msg, a.args(fields)...)
}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{logger: logging.WithFields(a.logger, maps.Clone(fields))}
}

func (a *loggerAdapter) args(fields watermill.LogFields, extra ...any) []any {
	keys := slices.Sorted(maps.Keys(fields))
	args := make([]any, 0, len(keys)*2+len(extra))
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return append(args, extra...)
}

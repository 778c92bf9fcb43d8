package zaplogger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// Config controls the zap provider. When File is set entries are also
// written as JSON to a rotated file.
type Config struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Writer overrides stdout for the console core.
	Writer io.Writer
}

// Provider exposes named zap loggers.
type Provider struct {
	root   *zap.Logger
	closer io.Closer
}

var _ interfaces.LoggerProvider = (*Provider)(nil)

// NewProvider assembles a zap core tee from cfg.
func NewProvider(cfg Config) (*Provider, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if strings.TrimSpace(cfg.Level) != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(cfg.Level)))); err != nil {
			return nil, fmt.Errorf("zaplogger: invalid level %q: %w", cfg.Level, err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var consoleEncoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "json":
		consoleEncoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("zaplogger: unsupported format %q", cfg.Format)
	}

	out := cfg.Writer
	if out == nil {
		out = os.Stdout
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(out)), level),
	}

	var closer io.Closer
	if file := strings.TrimSpace(cfg.File); file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
		closer = rotator
	}

	root := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Provider{root: root, closer: closer}, nil
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// GetLogger returns a named child of the root zap logger.
func (p *Provider) GetLogger(name string) interfaces.Logger {
	if p == nil || p.root == nil {
		return logging.NoOp()
	}
	inner := p.root
	if name = strings.TrimSpace(name); name != "" {
		inner = inner.Named(name)
	}
	return &adapter{inner: inner.Sugar()}
}

// Close flushes buffered entries and releases the rotated file.
func (p *Provider) Close() error {
	if p == nil || p.root == nil {
		return nil
	}
	// stdout sync reports EINVAL on some platforms
	_ = p.root.Sync()
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

type adapter struct {
	inner *zap.SugaredLogger
}

var (
	_ interfaces.Logger       = (*adapter)(nil)
	_ interfaces.FieldsLogger = (*adapter)(nil)
)

func (a *adapter) Trace(msg string, args ...any) { a.inner.Debugw(msg, args...) }
func (a *adapter) Debug(msg string, args ...any) { a.inner.Debugw(msg, args...) }
func (a *adapter) Info(msg string, args ...any)  { a.inner.Infow(msg, args...) }
func (a *adapter) Warn(msg string, args ...any)  { a.inner.Warnw(msg, args...) }
func (a *adapter) Error(msg string, args ...any) { a.inner.Errorw(msg, args...) }

// Fatal logs at error level. The process is never terminated from a library logger.
func (a *adapter) Fatal(msg string, args ...any) { a.inner.Errorw(msg, append(args, "fatal", true)...) }

func (a *adapter) WithFields(fields map[string]any) interfaces.Logger {
	if len(fields) == 0 {
		return a
	}
	return &adapter{inner: a.inner.With(pairs(fields)...)}
}

func (a *adapter) WithContext(ctx context.Context) interfaces.Logger {
	return a.WithFields(logging.ContextFields(ctx))
}

func pairs(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		out = append(out, key, fields[key])
	}
	return out
}

package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-content/internal/logging"
)

func TestNewProviderRejectsUnknownFormat(t *testing.T) {
	if _, err := NewProvider(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewProviderBuildsModuleLoggers(t *testing.T) {
	p, err := NewProvider(Config{Level: "debug", Format: "console", Focus: []string{" content.index ", "", "content.index"}})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	logger := logging.IndexLogger(p)
	if logger == nil {
		t.Fatal("expected logger")
	}
	logger.Debug("index.ready")
}

func TestNilProviderReturnsNoOp(t *testing.T) {
	var p *Provider
	if p.GetLogger("content") == nil {
		t.Fatal("expected no-op logger")
	}
}

func TestAdapterForwardsCallsAndFields(t *testing.T) {
	stub := &stubLogger{}
	adapted := adapt(stub)

	adapted.Trace("t")
	adapted.Debug("d")
	adapted.Info("i")
	adapted.Warn("w")
	adapted.Error("e")
	adapted.Fatal("f")

	fields := map[string]any{"document_id": "content:index.md"}
	adapted.(*adapter).WithFields(fields)
	fields["document_id"] = "mutated"

	if len(stub.fields) != 1 || stub.fields[0]["document_id"] != "content:index.md" {
		t.Fatalf("expected cloned fields, got %#v", stub.fields)
	}

	ctx := logging.ContextWithFields(context.Background(), map[string]any{"request_id": "r-1"})
	adapted.WithContext(ctx)
	if len(stub.contexts) != 1 {
		t.Fatalf("expected context propagation, got %d", len(stub.contexts))
	}
	if len(stub.fields) != 2 || stub.fields[1]["request_id"] != "r-1" {
		t.Fatalf("expected context fields to be attached, got %#v", stub.fields)
	}

	want := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	if len(stub.calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), stub.calls)
	}
	for i := range want {
		if stub.calls[i] != want[i] {
			t.Fatalf("call %d: want %q got %q", i, want[i], stub.calls[i])
		}
	}
}

type stubLogger struct {
	calls    []string
	fields   []map[string]any
	contexts []context.Context
}

var (
	_ glog.Logger       = (*stubLogger)(nil)
	_ glog.FieldsLogger = (*stubLogger)(nil)
)

func (s *stubLogger) Trace(string, ...any) { s.calls = append(s.calls, "trace") }
func (s *stubLogger) Debug(string, ...any) { s.calls = append(s.calls, "debug") }
func (s *stubLogger) Info(string, ...any)  { s.calls = append(s.calls, "info") }
func (s *stubLogger) Warn(string, ...any)  { s.calls = append(s.calls, "warn") }
func (s *stubLogger) Error(string, ...any) { s.calls = append(s.calls, "error") }
func (s *stubLogger) Fatal(string, ...any) { s.calls = append(s.calls, "fatal") }

func (s *stubLogger) WithContext(ctx context.Context) glog.Logger {
	s.contexts = append(s.contexts, ctx)
	return s
}

func (s *stubLogger) WithFields(fields map[string]any) glog.Logger {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.fields = append(s.fields, copied)
	return s
}

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(nil, inner); h != inner {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestTeeLoggerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger := TeeLogger(base, slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected tee to accept debug when any handler does")
	}
	logger.With("job_id", "j1").Debug("claim chatter")
	logger.Info("job completed")

	if strings.Contains(infoBuf.String(), "claim chatter") {
		t.Fatalf("info handler received debug record: %q", infoBuf.String())
	}
	for _, want := range []string{"claim chatter", "job_id=j1", "job completed"} {
		if !strings.Contains(debugBuf.String(), want) {
			t.Fatalf("debug handler missing %q: %q", want, debugBuf.String())
		}
	}
	if !strings.Contains(infoBuf.String(), "job completed") {
		t.Fatalf("info handler missing record: %q", infoBuf.String())
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var buf bytes.Buffer
	logger := TeeLogger(nil, slog.NewTextHandler(&buf, nil))
	logger.WithGroup("req").Info("hello", "path", "/v1/jobs")
	if !strings.Contains(buf.String(), "req.path=/v1/jobs") {
		t.Fatalf("expected grouped attr, got %q", buf.String())
	}
}

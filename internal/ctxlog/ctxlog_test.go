package ctxlog

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestFromContext(t *testing.T) {
	t.Run("ReturnsAttachedLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := hclog.New(&hclog.LoggerOptions{
			Name:   "test",
			Output: &buf,
			Level:  hclog.Trace,
		})

		ctx := WithLogger(context.Background(), logger)
		FromContext(ctx).Info("hello", "k", "v")

		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("expected log output to contain message, got %q", buf.String())
		}
	})

	t.Run("FallsBackToNullLogger", func(t *testing.T) {
		logger := FromContext(context.Background())
		if logger == nil {
			t.Fatal("expected a logger, got nil")
		}
		// must not panic
		logger.Debug("discarded")
	})
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup(context.Background()); ok {
		t.Error("expected no logger on a bare context")
	}

	logger := hclog.NewNullLogger()
	got, ok := Lookup(WithLogger(context.Background(), logger))
	if !ok || got != logger {
		t.Errorf("Lookup() = %v, %v; want the attached logger", got, ok)
	}

	if _, ok := Lookup(nil); ok {
		t.Error("expected no logger on a nil context")
	}
}

package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDIsAttached(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core)).Named("test")

	ctx := WithRequestID(context.Background(), "req-1")
	l.Info(ctx, "hello", zap.Int("n", 1))
	l.Debug(context.Background(), "no request")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-1" {
		t.Errorf("expected request_id req-1, got %v", got)
	}
	if _, ok := entries[1].ContextMap()["request_id"]; ok {
		t.Errorf("did not expect request_id on entry without one")
	}
	if entries[0].LoggerName != "test" {
		t.Errorf("expected logger name test, got %q", entries[0].LoggerName)
	}
}

func TestNewRequestContextKeepsExisting(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	id, ok := RequestID(ctx)
	if !ok || id == "" {
		t.Fatalf("expected generated request id")
	}
	if again, _ := RequestID(NewRequestContext(ctx)); again != id {
		t.Errorf("expected request id to be kept, got %q want %q", again, id)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"WARNING": WARN,
		"error":   ERROR,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

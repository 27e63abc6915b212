package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		l, err := NewLogger(env)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", env, err)
		}
		if l == nil {
			t.Fatalf("NewLogger(%q) returned nil", env)
		}
	}
	if _, err := NewLogger("staging"); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger("dev", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestForPage_AddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ForPage(zap.New(core), "phones", "s-1").Info("render")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["category"] != "phones" || ctx["session_id"] != "s-1" {
		t.Errorf("unexpected fields: %v", ctx)
	}
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must never return nil")
	}
	l := zap.NewExample()
	if FromContext(ContextWithLogger(context.Background(), l)) != l {
		t.Error("logger not carried by context")
	}
}

func TestWith_EnrichesContextLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, zap.String("session_id", "abc"))

	FromContext(ctx).Info("hello")
	if got := logs.All()[0].ContextMap()["session_id"]; got != "abc" {
		t.Errorf("session_id = %v", got)
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewExample()
	if FromContextOr(context.Background(), fallback) != fallback {
		t.Error("expected fallback logger")
	}
	carried := zap.NewExample()
	if FromContextOr(ContextWithLogger(context.Background(), carried), fallback) != carried {
		t.Error("context logger must win")
	}
	if FromContextOr(context.Background(), nil) == nil {
		t.Error("FromContextOr must never return nil")
	}
}

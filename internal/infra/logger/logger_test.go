package logger

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"john.doe@example.com": "joh***@example.com",
		"a@x.com":              "a***@x.com",
		"jürgen@example.de":    "jür***@example.de",
		"@x.com":               "***@x.com",
		"":                     "",
		"not-an-email":         "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	cases := map[string]string{
		"192.168.1.100":                           "192.168.0.0/16",
		"::ffff:10.1.2.3":                         "10.1.0.0/16",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334": "2001:db8:85a3::/64",
		"":                                        "",
		"not-an-ip":                               "***",
	}
	for in, want := range cases {
		if got := MaskIP(in); got != want {
			t.Fatalf("MaskIP(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskString(t *testing.T) {
	if got := MaskString("secret123"); got != "se***23" {
		t.Fatalf("unexpected mask: %s", got)
	}
	if got := MaskString("abc"); got != "***" {
		t.Fatalf("short values must be fully masked, got %s", got)
	}
	if got := MaskString(""); got != "" {
		t.Fatalf("empty value must stay empty, got %s", got)
	}
}

func TestRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestBuildHonoursLevel(t *testing.T) {
	log, err := build("production", "warn")
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info must be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("warn must be enabled at warn level")
	}

	dev, err := build("development", "")
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("development logger must default to debug")
	}

	if _, err := build("production", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	previous := lg
	lg = zap.New(core)
	t.Cleanup(func() { lg = previous })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = context.WithValue(ctx, RequestIDKey{}, "req-1")

	WithContext(ctx).Info("lookup")
	WithContext(context.Background()).Info("bare")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["trace_id"] != traceID.String() {
		t.Fatalf("unexpected correlation fields: %v", fields)
	}
	if len(entries[1].ContextMap()) != 0 {
		t.Fatalf("expected no fields without identifiers, got %v", entries[1].ContextMap())
	}
}

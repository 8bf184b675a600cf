package telemetry

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/weather-auth/internal/infra/config"
)

func TestNewTracerProvider_DisabledWithoutEndpoint(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{ServiceName: "weather-auth"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTracerProvider returned error: %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	if span.IsRecording() {
		t.Fatalf("expected spans to be dropped without an exporter")
	}
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

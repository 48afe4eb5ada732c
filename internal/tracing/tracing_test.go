package tracing

import (
	"context"
	"testing"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(Config{Enabled: false})
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("Expected no-op span when tracing is disabled")
	}
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Expected no-op shutdown, got %v", err)
	}
}

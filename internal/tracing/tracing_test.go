package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	_, span := TraceScan(context.Background(), p.Tracer(), "auto_purchase.log")
	RecordError(span, errors.New("boom"))
	span.End()

	if span.SpanContext().IsValid() {
		t.Error("disabled provider should produce no-op spans")
	}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_EnabledWithoutExporter(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: true, SampleRate: 1})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer p.Shutdown(context.Background())

	ctx, span := TraceReport(context.Background(), p.Tracer(), "weekday", 10)
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Error("enabled provider should produce recording spans")
	}
	if ctx == nil {
		t.Error("TraceReport returned nil context")
	}
}

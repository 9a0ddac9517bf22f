package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanRecordsTraceID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	if err := InitOpenTelemetry("apibridge-test", "dev", sdktrace.WithSpanProcessor(recorder)); err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}
	defer ShutdownOpenTelemetry(context.Background())

	ctx, span := StartSpan(context.Background(), "test", "call")
	if GetTraceID(ctx) == "" {
		t.Error("Trace ID should be taken from the span")
	}
	EndSpan(span, errors.New("boom"))

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("Expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("Expected error status, got %v", ended[0].Status().Code)
	}
}

func TestWithOTLPExporter(t *testing.T) {
	opt, err := WithOTLPExporter(context.Background(), "127.0.0.1:4317")
	if err != nil {
		t.Fatalf("WithOTLPExporter failed: %v", err)
	}
	if opt == nil {
		t.Fatal("Expected a tracer provider option")
	}

	tp := sdktrace.NewTracerProvider(opt)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown with no spans failed: %v", err)
	}
}

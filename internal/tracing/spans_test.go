package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func withTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter), sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		tp.Shutdown(context.Background())
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
	})
	return exporter
}

func TestStartRunSpan(t *testing.T) {
	exporter := withTestTracer(t)

	ctx, span := StartRunSpan(context.Background(), "run-123")
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		t.Error("expected valid span in context")
	}
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if spans[0].Name != "scan.run" {
		t.Errorf("expected span name 'scan.run', got %q", spans[0].Name)
	}
}

func TestStartStageSpan(t *testing.T) {
	exporter := withTestTracer(t)

	_, span := StartStageSpan(context.Background(), "classify", "10.0.0.5")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if spans[0].Name != "stage.classify" {
		t.Errorf("expected span name 'stage.classify', got %q", spans[0].Name)
	}

	found := map[string]bool{}
	for _, attr := range spans[0].Attributes {
		found[string(attr.Key)] = true
	}
	if !found["stage.name"] || !found["stage.ip"] {
		t.Error("expected stage.name and stage.ip attributes")
	}
}

func TestStartCollectorSpan(t *testing.T) {
	exporter := withTestTracer(t)

	_, span := StartCollectorSpan(context.Background(), "ssh", "10.0.0.6")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if spans[0].Name != "collector.ssh" {
		t.Errorf("expected span name 'collector.ssh', got %q", spans[0].Name)
	}
	if spans[0].SpanKind != trace.SpanKindClient {
		t.Errorf("expected SpanKindClient, got %v", spans[0].SpanKind)
	}
}

func TestSetEndpointAttributes(t *testing.T) {
	exporter := withTestTracer(t)

	ctx, span := Tracer().Start(context.Background(), "test")
	SetEndpointAttributes(ctx, "10.0.0.7", "linux_server", 0.9)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}

	attrs := map[string]interface{}{}
	for _, attr := range spans[0].Attributes {
		attrs[string(attr.Key)] = attr.Value.AsInterface()
	}
	if attrs["endpoint.ip"] != "10.0.0.7" {
		t.Errorf("expected endpoint.ip '10.0.0.7', got %v", attrs["endpoint.ip"])
	}
	if attrs["endpoint.device_class"] != "linux_server" {
		t.Errorf("expected endpoint.device_class, got %v", attrs["endpoint.device_class"])
	}
}

func TestSetReconcileAttributes(t *testing.T) {
	exporter := withTestTracer(t)

	ctx, span := Tracer().Start(context.Background(), "test")
	SetReconcileAttributes(ctx, "asset-42", "updated")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}

	attrs := map[string]interface{}{}
	for _, attr := range spans[0].Attributes {
		attrs[string(attr.Key)] = attr.Value.AsInterface()
	}
	if attrs["reconcile.asset_id"] != "asset-42" {
		t.Errorf("expected reconcile.asset_id 'asset-42', got %v", attrs["reconcile.asset_id"])
	}
	if attrs["reconcile.action"] != "updated" {
		t.Errorf("expected reconcile.action 'updated', got %v", attrs["reconcile.action"])
	}
}

func TestRecordError_NilDoesNotPanic(t *testing.T) {
	RecordError(context.Background(), nil)
}

func TestRecordError_RecordsOnSpan(t *testing.T) {
	exporter := withTestTracer(t)

	ctx, span := Tracer().Start(context.Background(), "test")
	RecordError(ctx, errors.New("test error"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartRunSpan creates the root span for one end-to-end scan run.
func StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "scan.run",
		trace.WithAttributes(attribute.String("scan.run_id", runID)),
	)
}

// StartStageSpan creates a child span for a single endpoint's pass through
// one pipeline stage (liveness, classify, collect, normalize, reconcile).
func StartStageSpan(ctx context.Context, stage, ip string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "stage."+stage,
		trace.WithAttributes(
			attribute.String("stage.name", stage),
			attribute.String("stage.ip", ip),
		),
	)
}

// StartCollectorSpan creates a child span for a single collector attempt
// (WMI, SSH, SNMP, HTTP) against one endpoint.
func StartCollectorSpan(ctx context.Context, method, ip string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "collector."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("collector.method", method),
			attribute.String("collector.ip", ip),
		),
	)
}

// SetEndpointAttributes adds endpoint-identifying attributes to the current span.
func SetEndpointAttributes(ctx context.Context, ip, deviceClass string, confidence float64) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("endpoint.ip", ip),
		attribute.String("endpoint.device_class", deviceClass),
		attribute.Float64("endpoint.confidence", confidence),
	)
}

// SetReconcileAttributes adds reconciliation-outcome attributes to the current span.
func SetReconcileAttributes(ctx context.Context, assetID, action string) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("reconcile.asset_id", assetID),
		attribute.String("reconcile.action", action),
	)
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

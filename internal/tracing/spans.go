package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span names.
const (
	SpanReparent      = "hierarchy.reparent"
	SpanPass          = "hierarchy.consolidation_pass"
	SpanLoadDocument  = "hierarchy.load_document"
	SpanSaveDocument  = "hierarchy.save_document"
	SpanAddDataObject = "hierarchy.add_data_object"
)

// Attribute keys.
const (
	AttrItemID    = "item.id"
	AttrTargetID  = "item.target_id"
	AttrPlugin    = "plugin.name"
	AttrDelegated = "reparent.delegated"
	AttrOutcome   = "reparent.outcome"
	AttrObjectID  = "object.id"
	AttrMerged    = "pass.merged"
	AttrAdded     = "pass.added"
	AttrRemoved   = "pass.removed"
	AttrOwners    = "pass.owners_changed"
	AttrHealed    = "pass.shadows_healed"
	AttrResolved  = "pass.resolved"
	AttrDocument  = "document.path"
	AttrErrorType = "error.type"
	AttrErrorMsg  = "error.message"
)

// Event names.
const (
	EventRolledBack = "rolled_back"
	EventDelegated  = "delegated"
)

// Start opens a span on tracer, or on a no-op tracer when tracer is nil.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
}

// End records err (if any) as the span status and ends the span.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/mdm_backend/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("mdm-ledger/workflow")

// clock is consulted once per operation for audit timestamps.
var clock = func() time.Time { return time.Now().UTC() }

func startSpan(ctx context.Context, name string, schoolId string, p models.Period, kind models.ResourceKind) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("school_id", schoolId),
		attribute.String("period", p.String()),
	}
	if kind != "" {
		attrs = append(attrs, attribute.String("kind", string(kind)))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

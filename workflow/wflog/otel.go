package wflog

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each Event into an OpenTelemetry span. Events represent
// a point in time rather than a duration, so spans are started and ended
// immediately — RecordNodeLatency-style durations are carried as the
// "duration_ms" attribute rather than as span length.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter builds an OTelEmitter using tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()
	o.annotate(span, event)
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.annotate(span, event)
		span.End()
	}
	return nil
}

func (o *OTelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("agentengine.run_id", event.RunID),
		attribute.Int("agentengine.step", event.Step),
		attribute.String("agentengine.node_id", event.NodeID),
	)
	for key, value := range event.Meta {
		attrKey := attributeKey(key)
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

func attributeKey(key string) string {
	switch key {
	case "tokens_in":
		return "agentengine.llm.tokens_in"
	case "tokens_out":
		return "agentengine.llm.tokens_out"
	case "cost_usd":
		return "agentengine.llm.cost_usd"
	case "duration_ms":
		return "agentengine.node.duration_ms"
	case "model":
		return "agentengine.llm.model"
	case "handle_id":
		return "agentengine.route.handle_id"
	default:
		return key
	}
}

// Flush forces the active tracer provider to export buffered spans, if it
// supports ForceFlush (the SDK provider does; the global no-op one doesn't).
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

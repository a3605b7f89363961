package payment

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/preorder-api/internal/obs"
)

// Instrumented wraps a Gateway with spans and latency metrics.
type Instrumented struct {
	Gateway
}

// CreateSession delegates to the wrapped gateway inside a span.
func (g Instrumented) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	ctx, span := g.start(ctx, "payment.CreateSession")
	defer span.End()
	span.SetAttributes(attribute.Int("payment.line_items", len(req.LineItems)))

	started := time.Now()
	sess, err := g.Gateway.CreateSession(ctx, req)
	g.finish(span, "create_session", started, err)
	if err == nil {
		span.SetAttributes(attribute.String("payment.session_id", sess.ID))
	}
	return sess, err
}

// GetSession delegates to the wrapped gateway inside a span.
func (g Instrumented) GetSession(ctx context.Context, id string) (json.RawMessage, error) {
	ctx, span := g.start(ctx, "payment.GetSession")
	defer span.End()
	span.SetAttributes(attribute.String("payment.session_id", id))

	started := time.Now()
	raw, err := g.Gateway.GetSession(ctx, id)
	g.finish(span, "get_session", started, err)
	return raw, err
}

func (g Instrumented) start(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("payment").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("payment.provider", g.Gateway.Name()))
	return ctx, span
}

func (g Instrumented) finish(span trace.Span, operation string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorMessage(err))
	}
	if obs.GatewayLatency != nil {
		obs.GatewayLatency.WithLabelValues(operation, result).Observe(float64(time.Since(started).Milliseconds()))
	}
}

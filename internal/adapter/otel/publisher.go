package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// TracingNotifier wraps a domain.Notifier with OpenTelemetry tracing.
type TracingNotifier struct {
	next   domain.Notifier
	tracer trace.Tracer
}

// Compile-time check: TracingNotifier implements domain.Notifier.
var _ domain.Notifier = (*TracingNotifier)(nil)

// NewTracingNotifier creates a tracing decorator around the given notifier.
func NewTracingNotifier(next domain.Notifier) *TracingNotifier {
	return &TracingNotifier{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingNotifier) Publish(ctx context.Context, n domain.Notification) error {
	ctx, span := p.tracer.Start(ctx, "Notifier.Publish",
		trace.WithAttributes(
			attribute.String("notification.kind", string(n.Kind)),
			attribute.String("seller.id", n.SellerID),
		),
	)
	defer span.End()

	err := p.next.Publish(ctx, n)
	endWithError(span, err)
	return err
}

// TracingQueue wraps a domain.ProvisioningQueue with OpenTelemetry tracing.
type TracingQueue struct {
	next   domain.ProvisioningQueue
	tracer trace.Tracer
}

// Compile-time check: TracingQueue implements domain.ProvisioningQueue.
var _ domain.ProvisioningQueue = (*TracingQueue)(nil)

// NewTracingQueue creates a tracing decorator around the given queue.
func NewTracingQueue(next domain.ProvisioningQueue) *TracingQueue {
	return &TracingQueue{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (q *TracingQueue) EnqueueProvisioning(ctx context.Context, seller domain.Seller) error {
	ctx, span := q.tracer.Start(ctx, "ProvisioningQueue.EnqueueProvisioning",
		trace.WithAttributes(attribute.String("seller.id", seller.ID)),
	)
	defer span.End()

	err := q.next.EnqueueProvisioning(ctx, seller)
	endWithError(span, err)
	return err
}

package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// TracingProvisioner wraps a domain.AccessProvisioner with a span per run and
// records run counts and durations by outcome.
type TracingProvisioner struct {
	next     domain.AccessProvisioner
	tracer   trace.Tracer
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// Compile-time check: TracingProvisioner implements domain.AccessProvisioner.
var _ domain.AccessProvisioner = (*TracingProvisioner)(nil)

// NewTracingProvisioner creates an instrumented decorator around the given
// provisioner using the global tracer and meter providers.
func NewTracingProvisioner(next domain.AccessProvisioner) (*TracingProvisioner, error) {
	meter := otel.Meter(tracerName)

	runs, err := meter.Int64Counter("sellerhub.provisioning.runs",
		metric.WithDescription("Seller access provisioning runs by outcome."),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}

	duration, err := meter.Float64Histogram("sellerhub.provisioning.duration",
		metric.WithDescription("Duration of seller access provisioning runs."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &TracingProvisioner{
		next:     next,
		tracer:   otel.Tracer(tracerName),
		runs:     runs,
		duration: duration,
	}, nil
}

func (p *TracingProvisioner) ProvisionAccess(ctx context.Context, seller domain.Seller) (domain.ProvisioningRecord, error) {
	ctx, span := p.tracer.Start(ctx, "AccessProvisioner.ProvisionAccess",
		trace.WithAttributes(
			attribute.String("seller.id", seller.ID),
			attribute.String("seller.admin_id", seller.LinkedAdminID),
		),
	)
	defer span.End()

	start := time.Now()
	rec, err := p.next.ProvisionAccess(ctx, seller)

	span.SetAttributes(
		attribute.Int("provisioning.attempts", rec.Attempts),
		attribute.String("provisioning.last_step", string(rec.LastStep)),
	)
	endWithError(span, err)

	outcome := attribute.String("outcome", outcomeOf(err))
	p.runs.Add(ctx, 1, metric.WithAttributes(outcome))
	p.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(outcome))

	return rec, err
}

func outcomeOf(err error) string {
	var configErr *domain.ConfigurationError
	var missing *domain.LinkedAdminMissingError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &configErr):
		return "configuration_error"
	case errors.As(err, &missing):
		return "linked_admin_missing"
	case errors.Is(err, domain.ErrNotBankValidated):
		return "not_validated"
	default:
		return "error"
	}
}

package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

const tracerName = "github.com/neomorfeo/sellerhub/internal/adapter/otel"

// TracingRepository wraps a domain.SellerRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   domain.SellerRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.SellerRepository.
var _ domain.SellerRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.SellerRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Create(ctx context.Context, seller domain.Seller) error {
	ctx, span := r.tracer.Start(ctx, "SellerRepository.Create",
		trace.WithAttributes(
			attribute.String("seller.id", seller.ID),
			attribute.String("seller.admin_id", seller.LinkedAdminID),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, seller)
	endWithError(span, err)
	return err
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Seller, error) {
	ctx, span := r.tracer.Start(ctx, "SellerRepository.GetByID",
		trace.WithAttributes(attribute.String("seller.id", id)),
	)
	defer span.End()

	seller, err := r.next.GetByID(ctx, id)
	endWithError(span, err)
	return seller, err
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Seller, error) {
	ctx, span := r.tracer.Start(ctx, "SellerRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}
	if filter.BankValidated != nil {
		span.SetAttributes(attribute.Bool("filter.bank_validated", *filter.BankValidated))
	}

	sellers, err := r.next.List(ctx, filter)
	if err != nil {
		endWithError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(sellers)))
	}
	return sellers, err
}

func (r *TracingRepository) Update(ctx context.Context, seller domain.Seller) error {
	ctx, span := r.tracer.Start(ctx, "SellerRepository.Update",
		trace.WithAttributes(
			attribute.String("seller.id", seller.ID),
			attribute.String("seller.status", string(seller.Status)),
		),
	)
	defer span.End()

	err := r.next.Update(ctx, seller)
	endWithError(span, err)
	return err
}

func (r *TracingRepository) MarkBankValidated(ctx context.Context, caller domain.Caller, id string) (domain.Seller, bool, error) {
	ctx, span := r.tracer.Start(ctx, "SellerRepository.MarkBankValidated",
		trace.WithAttributes(
			attribute.String("seller.id", id),
			attribute.String("caller.subject", caller.Subject),
		),
	)
	defer span.End()

	seller, changed, err := r.next.MarkBankValidated(ctx, caller, id)
	span.SetAttributes(attribute.Bool("seller.bank_validation.changed", changed))
	endWithError(span, err)
	return seller, changed, err
}

func endWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

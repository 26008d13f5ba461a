package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// SellerService serves seller reads and the bank-validation trigger.
type SellerService struct {
	sellers  domain.SellerRepository
	identity domain.IdentityStore
	queue    domain.ProvisioningQueue
	notifier domain.Notifier
	logger   *slog.Logger
}

// NewSellerService creates a service with the given adapters.
func NewSellerService(sellers domain.SellerRepository, identity domain.IdentityStore, queue domain.ProvisioningQueue, notifier domain.Notifier, logger *slog.Logger) *SellerService {
	return &SellerService{
		sellers:  sellers,
		identity: identity,
		queue:    queue,
		notifier: notifier,
		logger:   logger,
	}
}

// GetByID returns a seller by its unique identifier.
func (s *SellerService) GetByID(ctx context.Context, id string) (domain.Seller, error) {
	return s.sellers.GetByID(ctx, id)
}

// List returns sellers matching the given filter.
func (s *SellerService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Seller, error) {
	return s.sellers.List(ctx, filter)
}

// SetBankValidation records the bank's decision on a seller. Approval is
// one-way: revoking an approval fails. The first approval schedules access
// provisioning and notifies the seller. Approving again re-schedules
// provisioning until the seller is provisioned, without a second notification.
func (s *SellerService) SetBankValidation(ctx context.Context, caller domain.Caller, id string, validated bool) (domain.Seller, error) {
	if err := domain.Authorize(caller, "update bank validation", domain.BankValidationPermissions...); err != nil {
		s.logger.WarnContext(ctx, "bank validation rejected",
			"seller_id", id,
			"caller", caller.Subject,
		)
		return domain.Seller{}, err
	}

	seller, err := s.sellers.GetByID(ctx, id)
	if err != nil {
		return domain.Seller{}, err
	}

	if !validated {
		if seller.BankValidated {
			return domain.Seller{}, domain.ErrBankValidationIrreversible
		}
		return seller, nil
	}
	if seller.BankValidated {
		return seller, s.reschedule(ctx, seller)
	}

	seller, changed, err := s.sellers.MarkBankValidated(ctx, caller, id)
	if err != nil {
		return domain.Seller{}, fmt.Errorf("marking seller validated: %w", err)
	}
	if !changed {
		// A concurrent approval won and notifies on its own.
		return seller, s.reschedule(ctx, seller)
	}

	s.logger.InfoContext(ctx, "seller validated by bank",
		"seller_id", seller.ID,
		"caller", caller.Subject,
	)

	// The flag is committed either way; a retried approval reschedules.
	err = s.queue.EnqueueProvisioning(ctx, seller)
	s.notify(ctx, domain.NotificationSellerValidated, seller)
	if err != nil {
		return seller, fmt.Errorf("scheduling provisioning: %w", err)
	}
	return seller, nil
}

// RequestProvisioning re-schedules provisioning for an approved seller,
// e.g. after an operator fixed a missing zone or administrator.
func (s *SellerService) RequestProvisioning(ctx context.Context, caller domain.Caller, id string) (domain.Seller, error) {
	if err := domain.Authorize(caller, "provision seller access", domain.PermUpdateSeller); err != nil {
		return domain.Seller{}, err
	}

	seller, err := s.sellers.GetByID(ctx, id)
	if err != nil {
		return domain.Seller{}, err
	}
	if !seller.BankValidated {
		return domain.Seller{}, domain.ErrNotBankValidated
	}

	if err := s.queue.EnqueueProvisioning(ctx, seller); err != nil {
		return domain.Seller{}, fmt.Errorf("scheduling provisioning: %w", err)
	}
	return seller, nil
}

// reschedule enqueues provisioning for an already validated seller that has
// not reached provisioned. The queue drops duplicates of an unfinished job.
func (s *SellerService) reschedule(ctx context.Context, seller domain.Seller) error {
	if seller.Status == domain.StatusProvisioned {
		return nil
	}
	if err := s.queue.EnqueueProvisioning(ctx, seller); err != nil {
		return fmt.Errorf("scheduling provisioning: %w", err)
	}
	s.logger.InfoContext(ctx, "provisioning rescheduled for validated seller", "seller_id", seller.ID)
	return nil
}

func (s *SellerService) notify(ctx context.Context, kind domain.NotificationKind, seller domain.Seller) {
	n := domain.Notification{
		Kind:       kind,
		SellerID:   seller.ID,
		SellerName: seller.Name,
		AdminID:    seller.LinkedAdminID,
	}

	if admin, err := s.identity.GetAdmin(ctx, seller.LinkedAdminID); err == nil {
		n.Email = admin.Email
	} else if !errors.Is(err, domain.ErrAdminNotFound) {
		s.logger.WarnContext(ctx, "resolving notification recipient",
			"seller_id", seller.ID,
			"error", err,
		)
	}

	if err := s.notifier.Publish(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "notification not queued",
			"seller_id", seller.ID,
			"error", &domain.NotificationDeliveryError{Kind: kind, Err: err},
		)
	}
}

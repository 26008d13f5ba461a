package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// SellerAccess is what provisioning has created for a seller so far. Parts
// not created yet are nil.
type SellerAccess struct {
	Seller        domain.Seller
	Channel       *domain.Channel
	Role          *domain.Role
	StockLocation *domain.StockLocation
}

// AccessService answers read queries about provisioned access.
type AccessService struct {
	sellers  domain.SellerRepository
	identity domain.IdentityStore
	channels domain.ChannelStore
	trail    domain.ProvisioningLog
}

// NewAccessService creates an access query service.
func NewAccessService(sellers domain.SellerRepository, identity domain.IdentityStore, channels domain.ChannelStore, trail domain.ProvisioningLog) *AccessService {
	return &AccessService{
		sellers:  sellers,
		identity: identity,
		channels: channels,
		trail:    trail,
	}
}

// Provisioning returns the seller's provisioning trail.
func (s *AccessService) Provisioning(ctx context.Context, sellerID string) (domain.ProvisioningRecord, error) {
	if _, err := s.sellers.GetByID(ctx, sellerID); err != nil {
		return domain.ProvisioningRecord{}, err
	}
	return s.trail.Get(ctx, sellerID)
}

// Access returns the channel, role and stock location attributed to the seller.
func (s *AccessService) Access(ctx context.Context, sellerID string) (SellerAccess, error) {
	seller, err := s.sellers.GetByID(ctx, sellerID)
	if err != nil {
		return SellerAccess{}, err
	}
	access := SellerAccess{Seller: seller}

	channel, err := s.channels.GetChannelBySeller(ctx, sellerID)
	switch {
	case err == nil:
		access.Channel = &channel
	case !errors.Is(err, domain.ErrChannelNotFound):
		return SellerAccess{}, fmt.Errorf("looking up channel: %w", err)
	}

	role, err := s.identity.GetRoleByCode(ctx, domain.SellerRoleCode(sellerID))
	switch {
	case err == nil:
		access.Role = &role
	case !errors.Is(err, domain.ErrRoleNotFound):
		return SellerAccess{}, fmt.Errorf("looking up role: %w", err)
	}

	location, err := s.channels.GetStockLocationBySeller(ctx, sellerID)
	switch {
	case err == nil:
		access.StockLocation = &location
	case !errors.Is(err, domain.ErrStockLocationNotFound):
		return SellerAccess{}, fmt.Errorf("looking up stock location: %w", err)
	}

	return access, nil
}

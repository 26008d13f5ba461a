package domain

import "context"

// SellerRepository defines the persistence contract for sellers.
// Update never writes the bank-validation flag; that field only changes
// through MarkBankValidated, which checks the caller itself and reports
// whether this call was the one that set it.
type SellerRepository interface {
	Create(ctx context.Context, seller Seller) error
	GetByID(ctx context.Context, id string) (Seller, error)
	List(ctx context.Context, filter ListFilter) ([]Seller, error)
	Update(ctx context.Context, seller Seller) error
	MarkBankValidated(ctx context.Context, caller Caller, id string) (Seller, bool, error)
}

// ListFilter holds optional criteria for listing sellers.
type ListFilter struct {
	Status        *Status
	BankValidated *bool
	Limit         int
	Offset        int
}

// IdentityStore persists administrators, roles and their linkage.
type IdentityStore interface {
	CreateAdmin(ctx context.Context, admin Administrator) error
	GetAdmin(ctx context.Context, id string) (Administrator, error)
	GetAdminByEmail(ctx context.Context, email string) (Administrator, error)
	// VerifyAdmin consumes a verification token. An unknown or used token
	// yields ErrVerificationTokenInvalid.
	VerifyAdmin(ctx context.Context, token string) (Administrator, error)
	CreateRole(ctx context.Context, caller Caller, role Role) error
	GetRoleByCode(ctx context.Context, code string) (Role, error)
	SetRoleChannels(ctx context.Context, caller Caller, roleID string, channelIDs []string) error
	AddRoleChannel(ctx context.Context, caller Caller, roleID, channelID string) error
	SetAdminRoles(ctx context.Context, caller Caller, adminID string, roleIDs []string) error
}

// ChannelStore persists zones, sales channels and stock locations.
type ChannelStore interface {
	DefaultZone(ctx context.Context, preferred string) (Zone, error)
	CreateChannel(ctx context.Context, caller Caller, channel Channel) error
	GetChannelBySeller(ctx context.Context, sellerID string) (Channel, error)
	CreateStockLocation(ctx context.Context, caller Caller, location StockLocation) error
	GetStockLocationBySeller(ctx context.Context, sellerID string) (StockLocation, error)
	AssignStockLocation(ctx context.Context, caller Caller, locationID, channelID string) error
}

// ProvisioningLog stores the per-seller provisioning trail.
type ProvisioningLog interface {
	Save(ctx context.Context, record ProvisioningRecord) error
	Get(ctx context.Context, sellerID string) (ProvisioningRecord, error)
}

// Stores groups the repositories bound to one unit of work.
type Stores struct {
	Sellers  SellerRepository
	Identity IdentityStore
}

// UnitOfWork runs fn inside a single transaction. If fn returns an error
// nothing it wrote is persisted.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(stores Stores) error) error
}

// Notifier hands notifications to the mail subsystem.
type Notifier interface {
	Publish(ctx context.Context, notification Notification) error
}

// ProvisioningQueue schedules access provisioning for an approved seller.
type ProvisioningQueue interface {
	EnqueueProvisioning(ctx context.Context, seller Seller) error
}

// AccessProvisioner creates a seller's channel, role and stock location.
type AccessProvisioner interface {
	ProvisionAccess(ctx context.Context, seller Seller) (ProvisioningRecord, error)
}

// TransitionValidator checks whether an event is valid from a given state
// and returns the resulting state.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
	Permitted(current Status, event Event) bool
}

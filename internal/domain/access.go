package domain

import (
	"slices"
	"time"
)

// Permission is a fine-grained capability checked before privileged writes.
type Permission string

const (
	PermAuthenticated       Permission = "Authenticated"
	PermSuperAdmin          Permission = "SuperAdmin"
	PermReadAsset           Permission = "ReadAsset"
	PermCreateAsset         Permission = "CreateAsset"
	PermReadCatalog         Permission = "ReadCatalog"
	PermCreateCatalog       Permission = "CreateCatalog"
	PermUpdateCatalog       Permission = "UpdateCatalog"
	PermReadProduct         Permission = "ReadProduct"
	PermCreateProduct       Permission = "CreateProduct"
	PermUpdateProduct       Permission = "UpdateProduct"
	PermDeleteProduct       Permission = "DeleteProduct"
	PermReadOrder           Permission = "ReadOrder"
	PermUpdateOrder         Permission = "UpdateOrder"
	PermReadSettings        Permission = "ReadSettings"
	PermUpdateSettings      Permission = "UpdateSettings"
	PermReadAdministrator   Permission = "ReadAdministrator"
	PermCreateAdministrator Permission = "CreateAdministrator"
	PermUpdateAdministrator Permission = "UpdateAdministrator"
	PermReadFacet           Permission = "ReadFacet"
	PermReadCollection      Permission = "ReadCollection"
	PermReadChannel         Permission = "ReadChannel"
	PermCreateChannel       Permission = "CreateChannel"
	PermUpdateChannel       Permission = "UpdateChannel"
	PermUpdateSeller        Permission = "UpdateSeller"
	PermCreateStockLocation Permission = "CreateStockLocation"
	PermUpdateStockLocation Permission = "UpdateStockLocation"
)

// SellerPermissions is the permission set granted to every seller role.
var SellerPermissions = []Permission{
	PermAuthenticated,
	PermReadAsset,
	PermCreateAsset,
	PermReadCatalog,
	PermCreateCatalog,
	PermUpdateCatalog,
	PermReadProduct,
	PermCreateProduct,
	PermUpdateProduct,
	PermDeleteProduct,
	PermReadOrder,
	PermUpdateOrder,
	PermReadSettings,
	PermReadAdministrator,
	PermReadFacet,
	PermReadCollection,
	PermReadChannel,
}

// BankValidationPermissions lists the capabilities that may approve a seller.
// Holding any one of them is sufficient.
var BankValidationPermissions = []Permission{PermUpdateSeller, PermUpdateSettings}

// SuperadminRoleCode identifies the platform-wide operator role.
const SuperadminRoleCode = "superadmin-role"

// Role groups permissions and restricts them to a set of channels.
type Role struct {
	ID          string
	Code        string
	Description string
	Permissions []Permission
	ChannelIDs  []string
	SellerID    string
	CreatedAt   time.Time
}

// Channel is a sales channel owned by exactly one seller.
type Channel struct {
	ID                    string
	Code                  string
	Token                 string
	CurrencyCode          string
	LanguageCode          string
	PricesIncludeTax      bool
	DefaultShippingZoneID string
	DefaultTaxZoneID      string
	SellerID              string
	CreatedAt             time.Time
}

// StockLocation is a warehouse assigned to one or more channels.
type StockLocation struct {
	ID          string
	Name        string
	Description string
	SellerID    string
	ChannelIDs  []string
	CreatedAt   time.Time
}

// Zone is a geographic zone used for shipping and tax defaults.
type Zone struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Caller is an explicit capability token: who is acting and what they may do.
// Privileged store writes take a Caller instead of reading permissions from
// a shared request context.
type Caller struct {
	Subject     string
	Permissions []Permission
}

// ServiceIdentity builds a Caller for an internal operation.
func ServiceIdentity(name string, perms ...Permission) Caller {
	return Caller{Subject: "service:" + name, Permissions: perms}
}

// Can reports whether the caller holds at least one of the given permissions.
// SuperAdmin satisfies every check.
func (c Caller) Can(perms ...Permission) bool {
	if slices.Contains(c.Permissions, PermSuperAdmin) {
		return true
	}
	for _, p := range perms {
		if slices.Contains(c.Permissions, p) {
			return true
		}
	}
	return false
}

// Authorize returns a PermissionDeniedError unless the caller holds one of perms.
func Authorize(c Caller, action string, perms ...Permission) error {
	if c.Can(perms...) {
		return nil
	}
	return &PermissionDeniedError{Subject: c.Subject, Action: action, Required: perms}
}

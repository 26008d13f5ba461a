package domain

import (
	"fmt"
	"time"
)

// Step names one stage of access provisioning, in execution order.
type Step string

const (
	StepResolveZone   Step = "resolve_zone"
	StepChannel       Step = "channel"
	StepRole          Step = "role"
	StepResolveAdmin  Step = "resolve_admin"
	StepAssignRoles   Step = "assign_roles"
	StepSuperadmin    Step = "superadmin_visibility"
	StepStockLocation Step = "stock_location"
	StepTransition    Step = "transition"
	StepNotify        Step = "notify"
	StepComplete      Step = "complete"
)

// ProvisioningRecord is the resume trail for one seller's provisioning.
// It is written after every step so a failed run can be inspected and retried.
type ProvisioningRecord struct {
	SellerID        string
	ChannelID       string
	RoleID          string
	AdminID         string
	StockLocationID string
	LastStep        Step
	LastError       string
	Attempts        int
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

// Completed reports whether every step has succeeded at least once.
func (r ProvisioningRecord) Completed() bool {
	return r.CompletedAt != nil
}

// ChannelCode is the deterministic channel code for a seller.
func ChannelCode(sellerID string) string {
	return "channel-" + sellerID
}

// ChannelCodeWithSuffix is used after a collision on the deterministic code.
func ChannelCodeWithSuffix(sellerID, suffix string) string {
	return fmt.Sprintf("channel-%s-%s", sellerID, suffix)
}

// SellerRoleCode is the unique role code for a seller.
func SellerRoleCode(sellerID string) string {
	return "role-seller-" + sellerID
}

// StockLocationName is the unique stock location name for a seller.
func StockLocationName(sellerID string) string {
	return "stock-" + sellerID
}

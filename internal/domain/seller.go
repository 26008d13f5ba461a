package domain

import "time"

// Status represents the onboarding state of a seller.
type Status string

const (
	StatusRegistered  Status = "registered"
	StatusProvisioned Status = "provisioned"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventAccessProvisioned Event = "access_provisioned"
)

// Transition defines a valid state change: an event moves a seller from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the seller onboarding lifecycle.
// This is domain knowledge consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventAccessProvisioned, Src: StatusRegistered, Dst: StatusProvisioned},
}

// Seller is a marketplace merchant awaiting or holding bank-backed approval.
type Seller struct {
	ID             string
	Name           string
	ShopName       string
	TaxID          string
	BankAccountRef string
	BankValidated  bool
	LinkedAdminID  string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewSeller creates a seller in the initial "registered" state, not yet
// validated by the bank.
func NewSeller(id, name, taxID, bankAccountRef, linkedAdminID string) Seller {
	now := time.Now().UTC()
	return Seller{
		ID:             id,
		Name:           name,
		TaxID:          taxID,
		BankAccountRef: bankAccountRef,
		BankValidated:  false,
		LinkedAdminID:  linkedAdminID,
		Status:         StatusRegistered,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Administrator is a back-office account. One administrator owns each seller.
type Administrator struct {
	ID                string
	Email             string
	FirstName         string
	LastName          string
	PasswordHash      string
	VerificationToken string // cleared once the email is verified
	VerifiedAt        *time.Time
	RoleIDs           []string
	CreatedAt         time.Time
}

// Verified reports whether the administrator confirmed their email address.
func (a Administrator) Verified() bool {
	return a.VerifiedAt != nil
}

// FullName joins first and last name the way seller display names are derived.
func (a Administrator) FullName() string {
	return a.FirstName + " " + a.LastName
}

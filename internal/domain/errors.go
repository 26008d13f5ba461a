package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrSellerNotFound        = errors.New("seller not found")
	ErrAdminNotFound         = errors.New("administrator not found")
	ErrRoleNotFound          = errors.New("role not found")
	ErrChannelNotFound       = errors.New("channel not found")
	ErrStockLocationNotFound = errors.New("stock location not found")
	ErrZoneNotFound          = errors.New("zone not found")
	ErrProvisioningNotFound  = errors.New("provisioning record not found")

	ErrVerificationTokenInvalid   = errors.New("verification token is invalid or already used")
	ErrBankValidationIrreversible = errors.New("bank validation cannot be revoked")
	ErrNotBankValidated           = errors.New("seller is not validated by the bank")
)

// ValidationError is returned when registration input is malformed or missing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EmailConflictError is returned when an administrator email is already in use.
type EmailConflictError struct {
	Email string
}

func (e *EmailConflictError) Error() string {
	return fmt.Sprintf("email %q is already registered", e.Email)
}

// PermissionDeniedError is returned when a caller lacks the capability for a write.
type PermissionDeniedError struct {
	Subject  string
	Action   string
	Required []Permission
}

func (e *PermissionDeniedError) Error() string {
	required := make([]string, len(e.Required))
	for i, p := range e.Required {
		required[i] = string(p)
	}
	return fmt.Sprintf("%s may not %s (requires one of: %s)", e.Subject, e.Action, strings.Join(required, ", "))
}

// ConfigurationError reports a missing deployment precondition. Provisioning
// cannot succeed until an operator fixes it, so it is never retried automatically.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Setting, e.Reason)
}

// LinkedAdminMissingError is returned when a seller's linked administrator
// cannot be resolved. Requires manual remediation.
type LinkedAdminMissingError struct {
	SellerID string
	AdminID  string
}

func (e *LinkedAdminMissingError) Error() string {
	if e.AdminID == "" {
		return fmt.Sprintf("seller %q has no linked administrator", e.SellerID)
	}
	return fmt.Sprintf("administrator %q linked to seller %q not found", e.AdminID, e.SellerID)
}

// DuplicateKeyError is returned by stores when a generated unique key collides.
type DuplicateKeyError struct {
	Entity string
	Key    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s key %q is already in use", e.Entity, e.Key)
}

// NotificationDeliveryError wraps a failure to hand a notification to the dispatcher.
type NotificationDeliveryError struct {
	Kind NotificationKind
	Err  error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("delivering %s notification: %v", e.Kind, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error {
	return e.Err
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// ProvisioningStepError records which provisioning step failed.
type ProvisioningStepError struct {
	SellerID string
	Step     Step
	Err      error
}

func (e *ProvisioningStepError) Error() string {
	return fmt.Sprintf("provisioning seller %q: step %s: %v", e.SellerID, e.Step, e.Err)
}

func (e *ProvisioningStepError) Unwrap() error {
	return e.Err
}

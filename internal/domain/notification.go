package domain

// NotificationKind identifies a domain event consumed by the mail subsystem.
type NotificationKind string

const (
	NotificationAccountRegistered       NotificationKind = "account_registered"
	NotificationSellerValidated         NotificationKind = "seller_validated"
	NotificationSellerAccessProvisioned NotificationKind = "seller_access_provisioned"
)

// Notification is the payload handed to the dispatcher. Recipient is
// resolvable from AdminID even when Email is empty.
type Notification struct {
	Kind              NotificationKind
	SellerID          string
	SellerName        string
	AdminID           string
	Email             string
	ChannelID         string
	VerificationToken string // account_registered only
}

package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// Queues keep mail delivery independent of slow provisioning runs.
const (
	QueueNotifications = "notifications"
	QueueProvisioning  = "provisioning"
)

// Compile-time checks.
var (
	_ domain.Notifier          = (*Publisher)(nil)
	_ domain.ProvisioningQueue = (*Queue)(nil)
)

// NotificationJobArgs carries a notification through the job queue. River
// serializes it as JSON, so the worker never needs to reload the seller.
type NotificationJobArgs struct {
	NotificationKind  string `json:"kind"`
	SellerID          string `json:"seller_id"`
	SellerName        string `json:"seller_name"`
	AdminID           string `json:"admin_id,omitempty"`
	Email             string `json:"email,omitempty"`
	ChannelID         string `json:"channel_id,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (NotificationJobArgs) Kind() string { return "notification.send" }

// InsertOpts routes notifications to their own queue.
func (NotificationJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueNotifications, MaxAttempts: 5}
}

func (a NotificationJobArgs) notification() domain.Notification {
	return domain.Notification{
		Kind:              domain.NotificationKind(a.NotificationKind),
		SellerID:          a.SellerID,
		SellerName:        a.SellerName,
		AdminID:           a.AdminID,
		Email:             a.Email,
		ChannelID:         a.ChannelID,
		VerificationToken: a.VerificationToken,
	}
}

// ProvisionJobArgs asks a worker to provision one seller's access.
type ProvisionJobArgs struct {
	SellerID string `json:"seller_id"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (ProvisionJobArgs) Kind() string { return "seller.provision" }

// InsertOpts keeps at most one unfinished provisioning job per seller.
// Completed jobs are left out so an operator can request another run.
func (ProvisionJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueProvisioning,
		MaxAttempts: 10,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRetryable,
				rivertype.JobStateRunning,
				rivertype.JobStateScheduled,
			},
		},
	}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.Notifier by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a notification as an async job in River.
func (p *Publisher) Publish(ctx context.Context, n domain.Notification) error {
	_, err := p.client.Insert(ctx, NotificationJobArgs{
		NotificationKind:  string(n.Kind),
		SellerID:          n.SellerID,
		SellerName:        n.SellerName,
		AdminID:           n.AdminID,
		Email:             n.Email,
		ChannelID:         n.ChannelID,
		VerificationToken: n.VerificationToken,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing notification job: %w", err)
	}
	return nil
}

// Queue implements domain.ProvisioningQueue with River jobs.
type Queue struct {
	client *Client
}

// NewQueue creates a provisioning queue backed by the given River client.
func NewQueue(client *Client) *Queue {
	return &Queue{client: client}
}

// EnqueueProvisioning schedules provisioning for seller. A seller with a
// job already waiting or running is not enqueued twice.
func (q *Queue) EnqueueProvisioning(ctx context.Context, seller domain.Seller) error {
	if _, err := q.client.Insert(ctx, ProvisionJobArgs{SellerID: seller.ID}, nil); err != nil {
		return fmt.Errorf("enqueuing provisioning job: %w", err)
	}
	return nil
}

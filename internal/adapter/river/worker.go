package river

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// Deliverer sends a notification to its recipient.
type Deliverer interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

// NotificationWorker delivers notification jobs.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationJobArgs]

	Mail Deliverer
}

// Work delivers a single notification. Failures are retried by River.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationJobArgs]) error {
	slog.InfoContext(ctx, "delivering notification",
		"kind", job.Args.NotificationKind,
		"seller_id", job.Args.SellerID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.Mail.Deliver(ctx, job.Args.notification())
}

// ProvisionWorker runs access provisioning for one seller per job.
type ProvisionWorker struct {
	river.WorkerDefaults[ProvisionJobArgs]

	Sellers     domain.SellerRepository
	Provisioner domain.AccessProvisioner
}

// Work loads the seller and provisions its access. Errors an operator must
// fix first cancel the job instead of burning retries.
func (w *ProvisionWorker) Work(ctx context.Context, job *river.Job[ProvisionJobArgs]) error {
	logger := slog.With("seller_id", job.Args.SellerID, "job_id", job.ID, "attempt", job.Attempt)
	logger.InfoContext(ctx, "processing provisioning job")

	seller, err := w.Sellers.GetByID(ctx, job.Args.SellerID)
	if errors.Is(err, domain.ErrSellerNotFound) {
		return river.JobCancel(err)
	}
	if err != nil {
		return fmt.Errorf("loading seller: %w", err)
	}

	_, err = w.Provisioner.ProvisionAccess(ctx, seller)
	if err == nil {
		return nil
	}

	var configErr *domain.ConfigurationError
	var missing *domain.LinkedAdminMissingError
	if errors.As(err, &configErr) || errors.As(err, &missing) || errors.Is(err, domain.ErrNotBankValidated) {
		logger.ErrorContext(ctx, "provisioning cancelled", "error", err)
		return river.JobCancel(err)
	}
	return err
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// Compile-time check: ProvisioningLog implements domain.ProvisioningLog.
var _ domain.ProvisioningLog = (*ProvisioningLog)(nil)

// ProvisioningLog implements domain.ProvisioningLog using SQLite.
type ProvisioningLog struct {
	q querier
}

// Save upserts the record keyed by seller id.
func (l *ProvisioningLog) Save(ctx context.Context, r domain.ProvisioningRecord) error {
	var completedAt sql.NullString
	if r.CompletedAt != nil {
		completedAt = sql.NullString{String: r.CompletedAt.Format(timeFormat), Valid: true}
	}
	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := l.q.ExecContext(ctx,
		`INSERT INTO provisioning_records (seller_id, channel_id, role_id, admin_id, stock_location_id,
		 last_step, last_error, attempts, completed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (seller_id) DO UPDATE SET
		   channel_id = excluded.channel_id,
		   role_id = excluded.role_id,
		   admin_id = excluded.admin_id,
		   stock_location_id = excluded.stock_location_id,
		   last_step = excluded.last_step,
		   last_error = excluded.last_error,
		   attempts = excluded.attempts,
		   completed_at = excluded.completed_at,
		   updated_at = excluded.updated_at`,
		r.SellerID, r.ChannelID, r.RoleID, r.AdminID, r.StockLocationID,
		string(r.LastStep), r.LastError, r.Attempts, completedAt, updatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("saving provisioning record: %w", err)
	}
	return nil
}

func (l *ProvisioningLog) Get(ctx context.Context, sellerID string) (domain.ProvisioningRecord, error) {
	var r domain.ProvisioningRecord
	var lastStep, updatedAt string
	var completedAt sql.NullString

	err := l.q.QueryRowContext(ctx,
		`SELECT seller_id, channel_id, role_id, admin_id, stock_location_id,
		 last_step, last_error, attempts, completed_at, updated_at
		 FROM provisioning_records WHERE seller_id = ?`, sellerID,
	).Scan(&r.SellerID, &r.ChannelID, &r.RoleID, &r.AdminID, &r.StockLocationID,
		&lastStep, &r.LastError, &r.Attempts, &completedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProvisioningRecord{}, domain.ErrProvisioningNotFound
		}
		return domain.ProvisioningRecord{}, fmt.Errorf("scanning provisioning record: %w", err)
	}

	r.LastStep = domain.Step(lastStep)
	r.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	if completedAt.Valid {
		t, _ := time.Parse(timeFormat, completedAt.String)
		r.CompletedAt = &t
	}
	return r, nil
}

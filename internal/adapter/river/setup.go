package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// Setup creates a River client with the notification and provisioning
// workers registered and runs River's internal migrations. Worker fields may
// be filled in after Setup as long as it happens before client.Start().
// The caller must call client.Stop() for graceful shutdown.
func Setup(ctx context.Context, db *sql.DB, notify *NotificationWorker, provision *ProvisionWorker) (*Client, error) {
	driver := riversqlite.New(db)

	// River's own tables are separate from the app's goose migrations.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("running river migrations: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, notify)
	river.AddWorker(workers, provision)

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueNotifications: {MaxWorkers: 4},
			QueueProvisioning:  {MaxWorkers: 2},
		},
		JobTimeout: time.Minute,
		Workers:    workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}

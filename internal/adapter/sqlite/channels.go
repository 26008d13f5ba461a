package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// Compile-time check: ChannelStore implements domain.ChannelStore.
var _ domain.ChannelStore = (*ChannelStore)(nil)

// ChannelStore implements domain.ChannelStore using SQLite.
type ChannelStore struct {
	q querier
}

// DefaultZone returns the zone named preferred, or the oldest zone when
// preferred is empty.
func (s *ChannelStore) DefaultZone(ctx context.Context, preferred string) (domain.Zone, error) {
	var row *sql.Row
	if preferred != "" {
		row = s.q.QueryRowContext(ctx, `SELECT id, name, created_at FROM zones WHERE name = ?`, preferred)
	} else {
		row = s.q.QueryRowContext(ctx, `SELECT id, name, created_at FROM zones ORDER BY created_at, id LIMIT 1`)
	}

	var z domain.Zone
	var createdAt string
	if err := row.Scan(&z.ID, &z.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Zone{}, domain.ErrZoneNotFound
		}
		return domain.Zone{}, fmt.Errorf("scanning zone: %w", err)
	}
	z.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return z, nil
}

// EnsureZone creates the named zone unless it already exists. Used at
// startup to seed the deployment's default zone.
func (s *ChannelStore) EnsureZone(ctx context.Context, id, name string) (domain.Zone, error) {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO zones (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return domain.Zone{}, fmt.Errorf("inserting zone: %w", err)
	}
	return s.DefaultZone(ctx, name)
}

func (s *ChannelStore) CreateChannel(ctx context.Context, caller domain.Caller, c domain.Channel) error {
	if err := domain.Authorize(caller, "create channel", domain.PermCreateChannel); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO channels (id, code, token, currency_code, language_code, prices_include_tax,
		 default_shipping_zone_id, default_tax_zone_id, seller_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Code, c.Token, c.CurrencyCode, c.LanguageCode, boolToInt(c.PricesIncludeTax),
		c.DefaultShippingZoneID, c.DefaultTaxZoneID, c.SellerID, c.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			key := c.Code
			if strings.HasSuffix(violatedColumn(err), ".seller_id") {
				key = c.SellerID
			}
			return &domain.DuplicateKeyError{Entity: "channel", Key: key}
		}
		return fmt.Errorf("inserting channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) GetChannelBySeller(ctx context.Context, sellerID string) (domain.Channel, error) {
	var c domain.Channel
	var pricesIncludeTax int
	var createdAt string

	err := s.q.QueryRowContext(ctx,
		`SELECT id, code, token, currency_code, language_code, prices_include_tax,
		 default_shipping_zone_id, default_tax_zone_id, seller_id, created_at
		 FROM channels WHERE seller_id = ?`, sellerID,
	).Scan(&c.ID, &c.Code, &c.Token, &c.CurrencyCode, &c.LanguageCode, &pricesIncludeTax,
		&c.DefaultShippingZoneID, &c.DefaultTaxZoneID, &c.SellerID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Channel{}, domain.ErrChannelNotFound
		}
		return domain.Channel{}, fmt.Errorf("scanning channel: %w", err)
	}

	c.PricesIncludeTax = pricesIncludeTax != 0
	c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return c, nil
}

func (s *ChannelStore) CreateStockLocation(ctx context.Context, caller domain.Caller, l domain.StockLocation) error {
	if err := domain.Authorize(caller, "create stock location", domain.PermCreateStockLocation); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO stock_locations (id, name, description, seller_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Description, l.SellerID, l.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.DuplicateKeyError{Entity: "stock location", Key: l.Name}
		}
		return fmt.Errorf("inserting stock location: %w", err)
	}
	return nil
}

func (s *ChannelStore) GetStockLocationBySeller(ctx context.Context, sellerID string) (domain.StockLocation, error) {
	var l domain.StockLocation
	var createdAt string

	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, description, seller_id, created_at FROM stock_locations WHERE seller_id = ?`, sellerID,
	).Scan(&l.ID, &l.Name, &l.Description, &l.SellerID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StockLocation{}, domain.ErrStockLocationNotFound
		}
		return domain.StockLocation{}, fmt.Errorf("scanning stock location: %w", err)
	}
	l.CreatedAt, _ = time.Parse(timeFormat, createdAt)

	l.ChannelIDs, err = queryStrings(ctx, s.q,
		`SELECT channel_id FROM stock_location_channels WHERE stock_location_id = ? ORDER BY channel_id`, l.ID)
	if err != nil {
		return domain.StockLocation{}, fmt.Errorf("loading stock location channels: %w", err)
	}
	return l, nil
}

// AssignStockLocation links a stock location to a channel. Assigning twice
// is a no-op.
func (s *ChannelStore) AssignStockLocation(ctx context.Context, caller domain.Caller, locationID, channelID string) error {
	if err := domain.Authorize(caller, "assign stock location", domain.PermUpdateStockLocation); err != nil {
		return err
	}

	if err := requireExists(ctx, s.q, `SELECT 1 FROM stock_locations WHERE id = ?`, locationID, domain.ErrStockLocationNotFound); err != nil {
		return err
	}
	if err := requireExists(ctx, s.q, `SELECT 1 FROM channels WHERE id = ?`, channelID, domain.ErrChannelNotFound); err != nil {
		return err
	}

	if _, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO stock_location_channels (stock_location_id, channel_id) VALUES (?, ?)`,
		locationID, channelID,
	); err != nil {
		return fmt.Errorf("assigning stock location: %w", err)
	}
	return nil
}

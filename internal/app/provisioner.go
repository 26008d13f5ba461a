package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// Compile-time check: Provisioner implements domain.AccessProvisioner.
var _ domain.AccessProvisioner = (*Provisioner)(nil)

// ProvisioningPermissions is the capability set of the provisioning identity.
var ProvisioningPermissions = []domain.Permission{
	domain.PermCreateChannel,
	domain.PermUpdateChannel,
	domain.PermCreateAdministrator,
	domain.PermUpdateAdministrator,
	domain.PermCreateStockLocation,
	domain.PermUpdateStockLocation,
}

// ProvisionerConfig holds channel defaults and provisioning behaviour.
type ProvisionerConfig struct {
	DefaultZone      string // zone name; empty means the first zone created
	CurrencyCode     string
	LanguageCode     string
	PricesIncludeTax bool
	ExtendSuperadmin bool // add each seller channel to the superadmin role
	MaxCodeAttempts  int  // channel code generation attempts before giving up
}

// DefaultProvisionerConfig returns the marketplace defaults.
func DefaultProvisionerConfig() ProvisionerConfig {
	return ProvisionerConfig{
		CurrencyCode:     "TND",
		LanguageCode:     "fr",
		PricesIncludeTax: true,
		ExtendSuperadmin: true,
		MaxCodeAttempts:  3,
	}
}

// ProvisionerDeps are the ports the provisioner writes through.
type ProvisionerDeps struct {
	Sellers   domain.SellerRepository
	Identity  domain.IdentityStore
	Channels  domain.ChannelStore
	Trail     domain.ProvisioningLog
	Notifier  domain.Notifier
	Validator domain.TransitionValidator
}

// Provisioner turns a bank-validated seller into one with an isolated
// channel, role and stock location. Every step looks up before it creates,
// keyed by the seller id, so a run can be repeated or resumed after a failure.
type Provisioner struct {
	deps    ProvisionerDeps
	cfg     ProvisionerConfig
	caller  domain.Caller
	logger  *slog.Logger
	flights singleflight.Group
}

// NewProvisioner creates a provisioner acting as the provisioning service identity.
func NewProvisioner(deps ProvisionerDeps, cfg ProvisionerConfig, logger *slog.Logger) *Provisioner {
	if cfg.MaxCodeAttempts < 1 {
		cfg.MaxCodeAttempts = 1
	}
	return &Provisioner{
		deps:   deps,
		cfg:    cfg,
		caller: domain.ServiceIdentity("seller-provisioning", ProvisioningPermissions...),
		logger: logger,
	}
}

// ProvisionAccess runs every provisioning step for seller. Concurrent calls
// for the same seller share one run. The shared run is detached from the
// caller's cancellation; a cancelled caller stops waiting and the run
// finishes for the others.
func (p *Provisioner) ProvisionAccess(ctx context.Context, seller domain.Seller) (domain.ProvisioningRecord, error) {
	flight := p.flights.DoChan(seller.ID, func() (any, error) {
		return p.provision(context.WithoutCancel(ctx), seller)
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return domain.ProvisioningRecord{SellerID: seller.ID}, ctx.Err()
	}

	rec, _ := res.Val.(domain.ProvisioningRecord)
	if err := res.Err; err != nil {
		var missing *domain.LinkedAdminMissingError
		if errors.As(err, &missing) {
			p.logger.ErrorContext(ctx, "seller access not granted: linked administrator missing, manual remediation required",
				"seller_id", missing.SellerID,
				"admin_id", missing.AdminID,
				"alert", true,
			)
		}
		return rec, err
	}
	return rec, nil
}

func (p *Provisioner) provision(ctx context.Context, seller domain.Seller) (domain.ProvisioningRecord, error) {
	if !seller.BankValidated {
		return domain.ProvisioningRecord{SellerID: seller.ID}, domain.ErrNotBankValidated
	}

	rec, err := p.deps.Trail.Get(ctx, seller.ID)
	switch {
	case errors.Is(err, domain.ErrProvisioningNotFound):
		rec = domain.ProvisioningRecord{SellerID: seller.ID}
	case err != nil:
		return domain.ProvisioningRecord{SellerID: seller.ID}, fmt.Errorf("loading provisioning trail: %w", err)
	}
	rec.Attempts++
	// The completion mark is saved only after the seller is provisioned, so a
	// run that dies in between still announces the access on its retry.
	announce := rec.CompletedAt == nil

	logger := p.logger.With("seller_id", seller.ID, "attempt", rec.Attempts)
	logger.InfoContext(ctx, "provisioning seller access")

	var (
		zone     domain.Zone
		channel  domain.Channel
		role     domain.Role
		admin    domain.Administrator
		location domain.StockLocation
	)

	steps := []struct {
		step domain.Step
		run  func() error
	}{
		{domain.StepResolveZone, func() (err error) {
			zone, err = p.resolveZone(ctx)
			return err
		}},
		{domain.StepChannel, func() (err error) {
			if channel, err = p.ensureChannel(ctx, seller, zone); err == nil {
				rec.ChannelID = channel.ID
			}
			return err
		}},
		{domain.StepRole, func() (err error) {
			if role, err = p.ensureRole(ctx, seller, channel); err == nil {
				rec.RoleID = role.ID
			}
			return err
		}},
		{domain.StepResolveAdmin, func() (err error) {
			if admin, err = p.resolveAdmin(ctx, seller); err == nil {
				rec.AdminID = admin.ID
			}
			return err
		}},
		{domain.StepAssignRoles, func() error {
			return p.deps.Identity.SetAdminRoles(ctx, p.caller, admin.ID, []string{role.ID})
		}},
		{domain.StepSuperadmin, func() error {
			return p.extendSuperadmin(ctx, logger, channel)
		}},
		{domain.StepStockLocation, func() (err error) {
			if location, err = p.ensureStockLocation(ctx, seller, channel); err == nil {
				rec.StockLocationID = location.ID
			}
			return err
		}},
	}

	for _, s := range steps {
		if err := p.record(ctx, &rec, s.step, s.run()); err != nil {
			logger.WarnContext(ctx, "provisioning step failed", "step", s.step, "error", err)
			return rec, err
		}
		logger.DebugContext(ctx, "provisioning step done", "step", s.step)
	}

	if err := p.record(ctx, &rec, domain.StepTransition, p.markProvisioned(ctx, seller.ID)); err != nil {
		return rec, err
	}

	now := time.Now().UTC()
	if rec.CompletedAt == nil {
		rec.CompletedAt = &now
	}
	if err := p.record(ctx, &rec, domain.StepComplete, nil); err != nil {
		return rec, err
	}

	if announce {
		p.notifyProvisioned(ctx, seller, admin, channel)
	}

	logger.InfoContext(ctx, "seller access provisioned",
		"channel_id", channel.ID,
		"role_id", role.ID,
		"stock_location_id", location.ID,
	)
	return rec, nil
}

// record saves the trail after a step. A failed step is stored with its
// error and returned as a ProvisioningStepError.
func (p *Provisioner) record(ctx context.Context, rec *domain.ProvisioningRecord, step domain.Step, stepErr error) error {
	rec.LastStep = step
	rec.LastError = ""
	rec.UpdatedAt = time.Now().UTC()
	if stepErr != nil {
		rec.LastError = stepErr.Error()
	}

	saveErr := p.deps.Trail.Save(ctx, *rec)
	if stepErr != nil {
		if saveErr != nil {
			p.logger.ErrorContext(ctx, "saving provisioning trail",
				"seller_id", rec.SellerID,
				"step", step,
				"error", saveErr,
			)
		}
		return &domain.ProvisioningStepError{SellerID: rec.SellerID, Step: step, Err: stepErr}
	}
	if saveErr != nil {
		return fmt.Errorf("saving provisioning trail after %s: %w", step, saveErr)
	}
	return nil
}

func (p *Provisioner) resolveZone(ctx context.Context) (domain.Zone, error) {
	zone, err := p.deps.Channels.DefaultZone(ctx, p.cfg.DefaultZone)
	if errors.Is(err, domain.ErrZoneNotFound) {
		reason := "no zone exists"
		if p.cfg.DefaultZone != "" {
			reason = fmt.Sprintf("zone %q does not exist", p.cfg.DefaultZone)
		}
		return domain.Zone{}, &domain.ConfigurationError{Setting: "DEFAULT_ZONE", Reason: reason}
	}
	if err != nil {
		return domain.Zone{}, fmt.Errorf("resolving default zone: %w", err)
	}
	return zone, nil
}

func (p *Provisioner) ensureChannel(ctx context.Context, seller domain.Seller, zone domain.Zone) (domain.Channel, error) {
	existing, err := p.deps.Channels.GetChannelBySeller(ctx, seller.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrChannelNotFound) {
		return domain.Channel{}, fmt.Errorf("looking up channel: %w", err)
	}

	code := domain.ChannelCode(seller.ID)
	for attempt := 1; ; attempt++ {
		channel := domain.Channel{
			ID:                    newID(),
			Code:                  code,
			Token:                 newToken(),
			CurrencyCode:          p.cfg.CurrencyCode,
			LanguageCode:          p.cfg.LanguageCode,
			PricesIncludeTax:      p.cfg.PricesIncludeTax,
			DefaultShippingZoneID: zone.ID,
			DefaultTaxZoneID:      zone.ID,
			SellerID:              seller.ID,
			CreatedAt:             time.Now().UTC(),
		}

		err := p.deps.Channels.CreateChannel(ctx, p.caller, channel)
		if err == nil {
			return channel, nil
		}

		var dup *domain.DuplicateKeyError
		if !errors.As(err, &dup) {
			return domain.Channel{}, fmt.Errorf("creating channel: %w", err)
		}
		// Another run may have won the race for this seller.
		if existing, lookupErr := p.deps.Channels.GetChannelBySeller(ctx, seller.ID); lookupErr == nil {
			return existing, nil
		}
		if attempt >= p.cfg.MaxCodeAttempts {
			return domain.Channel{}, fmt.Errorf("creating channel after %d attempts: %w", attempt, err)
		}
		code = domain.ChannelCodeWithSuffix(seller.ID, codeSuffix())
	}
}

func (p *Provisioner) ensureRole(ctx context.Context, seller domain.Seller, channel domain.Channel) (domain.Role, error) {
	code := domain.SellerRoleCode(seller.ID)
	want := []string{channel.ID}

	role, err := p.deps.Identity.GetRoleByCode(ctx, code)
	if err == nil {
		if !slices.Equal(role.ChannelIDs, want) {
			if err := p.deps.Identity.SetRoleChannels(ctx, p.caller, role.ID, want); err != nil {
				return domain.Role{}, fmt.Errorf("restricting role channels: %w", err)
			}
			role.ChannelIDs = want
		}
		return role, nil
	}
	if !errors.Is(err, domain.ErrRoleNotFound) {
		return domain.Role{}, fmt.Errorf("looking up role: %w", err)
	}

	role = domain.Role{
		ID:          newID(),
		Code:        code,
		Description: "Seller role for " + seller.Name,
		Permissions: slices.Clone(domain.SellerPermissions),
		ChannelIDs:  want,
		SellerID:    seller.ID,
		CreatedAt:   time.Now().UTC(),
	}
	err = p.deps.Identity.CreateRole(ctx, p.caller, role)
	var dup *domain.DuplicateKeyError
	if errors.As(err, &dup) {
		return p.deps.Identity.GetRoleByCode(ctx, code)
	}
	if err != nil {
		return domain.Role{}, fmt.Errorf("creating role: %w", err)
	}
	return role, nil
}

func (p *Provisioner) resolveAdmin(ctx context.Context, seller domain.Seller) (domain.Administrator, error) {
	if seller.LinkedAdminID == "" {
		return domain.Administrator{}, &domain.LinkedAdminMissingError{SellerID: seller.ID}
	}
	admin, err := p.deps.Identity.GetAdmin(ctx, seller.LinkedAdminID)
	if errors.Is(err, domain.ErrAdminNotFound) {
		return domain.Administrator{}, &domain.LinkedAdminMissingError{SellerID: seller.ID, AdminID: seller.LinkedAdminID}
	}
	if err != nil {
		return domain.Administrator{}, fmt.Errorf("looking up administrator: %w", err)
	}
	return admin, nil
}

func (p *Provisioner) extendSuperadmin(ctx context.Context, logger *slog.Logger, channel domain.Channel) error {
	if !p.cfg.ExtendSuperadmin {
		return nil
	}
	superadmin, err := p.deps.Identity.GetRoleByCode(ctx, domain.SuperadminRoleCode)
	if errors.Is(err, domain.ErrRoleNotFound) {
		logger.WarnContext(ctx, "superadmin role not found, channel not shared", "role_code", domain.SuperadminRoleCode)
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up superadmin role: %w", err)
	}
	return p.deps.Identity.AddRoleChannel(ctx, p.caller, superadmin.ID, channel.ID)
}

func (p *Provisioner) ensureStockLocation(ctx context.Context, seller domain.Seller, channel domain.Channel) (domain.StockLocation, error) {
	location, err := p.deps.Channels.GetStockLocationBySeller(ctx, seller.ID)
	switch {
	case errors.Is(err, domain.ErrStockLocationNotFound):
		location = domain.StockLocation{
			ID:          newID(),
			Name:        domain.StockLocationName(seller.ID),
			Description: "Stock location for " + seller.Name,
			SellerID:    seller.ID,
			CreatedAt:   time.Now().UTC(),
		}
		err = p.deps.Channels.CreateStockLocation(ctx, p.caller, location)
		var dup *domain.DuplicateKeyError
		if errors.As(err, &dup) {
			location, err = p.deps.Channels.GetStockLocationBySeller(ctx, seller.ID)
		}
		if err != nil {
			return domain.StockLocation{}, fmt.Errorf("creating stock location: %w", err)
		}
	case err != nil:
		return domain.StockLocation{}, fmt.Errorf("looking up stock location: %w", err)
	}

	if !slices.Contains(location.ChannelIDs, channel.ID) {
		if err := p.deps.Channels.AssignStockLocation(ctx, p.caller, location.ID, channel.ID); err != nil {
			return domain.StockLocation{}, fmt.Errorf("assigning stock location: %w", err)
		}
		location.ChannelIDs = append(location.ChannelIDs, channel.ID)
	}
	return location, nil
}

// markProvisioned moves the seller to provisioned. A seller already there
// is left alone.
func (p *Provisioner) markProvisioned(ctx context.Context, sellerID string) error {
	current, err := p.deps.Sellers.GetByID(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("reloading seller: %w", err)
	}
	if !p.deps.Validator.Permitted(current.Status, domain.EventAccessProvisioned) {
		return nil
	}

	status, err := p.deps.Validator.Apply(ctx, current.Status, domain.EventAccessProvisioned)
	if err != nil {
		return err
	}
	current.Status = status
	if err := p.deps.Sellers.Update(ctx, current); err != nil {
		return fmt.Errorf("updating seller: %w", err)
	}
	return nil
}

func (p *Provisioner) notifyProvisioned(ctx context.Context, seller domain.Seller, admin domain.Administrator, channel domain.Channel) {
	err := p.deps.Notifier.Publish(ctx, domain.Notification{
		Kind:       domain.NotificationSellerAccessProvisioned,
		SellerID:   seller.ID,
		SellerName: seller.Name,
		AdminID:    admin.ID,
		Email:      admin.Email,
		ChannelID:  channel.ID,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "access notification not queued",
			"seller_id", seller.ID,
			"error", &domain.NotificationDeliveryError{Kind: domain.NotificationSellerAccessProvisioned, Err: err},
		)
	}
}

package sqlite_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/neomorfeo/sellerhub/internal/adapter/sqlite"
	"github.com/neomorfeo/sellerhub/internal/domain"
)

// seedZone creates the zone every channel defaults to.
func seedZone(t *testing.T, store *sqlite.Store) domain.Zone {
	t.Helper()
	zone, err := store.Channels().EnsureZone(context.Background(), "zone-tn", "Tunisia")
	if err != nil {
		t.Fatalf("EnsureZone failed: %v", err)
	}
	return zone
}

func testChannel(id, code, sellerID string, zone domain.Zone) domain.Channel {
	return domain.Channel{
		ID:                    id,
		Code:                  code,
		Token:                 "token-" + id,
		CurrencyCode:          "TND",
		LanguageCode:          "fr",
		PricesIncludeTax:      true,
		DefaultShippingZoneID: zone.ID,
		DefaultTaxZoneID:      zone.ID,
		SellerID:              sellerID,
		CreatedAt:             time.Now().UTC(),
	}
}

func mustCreateChannel(t *testing.T, store *sqlite.Store, c domain.Channel) {
	t.Helper()
	if err := store.Channels().CreateChannel(context.Background(), provisioning, c); err != nil {
		t.Fatalf("mustCreateChannel failed: %v", err)
	}
}

func TestZones(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Channels().DefaultZone(ctx, ""); !errors.Is(err, domain.ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound on empty store, got %v", err)
	}

	first := seedZone(t, store)
	again, err := store.Channels().EnsureZone(ctx, "zone-other-id", "Tunisia")
	if err != nil {
		t.Fatalf("EnsureZone failed: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("EnsureZone created a second zone: %q != %q", again.ID, first.ID)
	}

	if _, err := store.Channels().EnsureZone(ctx, "zone-zz", "Europe"); err != nil {
		t.Fatalf("EnsureZone failed: %v", err)
	}

	got, err := store.Channels().DefaultZone(ctx, "")
	if err != nil {
		t.Fatalf("DefaultZone failed: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("DefaultZone = %q, want the oldest zone %q", got.ID, first.ID)
	}

	got, err = store.Channels().DefaultZone(ctx, "Europe")
	if err != nil || got.ID != "zone-zz" {
		t.Errorf("DefaultZone(Europe) = %+v, %v", got, err)
	}

	if _, err := store.Channels().DefaultZone(ctx, "Mars"); !errors.Is(err, domain.ErrZoneNotFound) {
		t.Errorf("expected ErrZoneNotFound, got %v", err)
	}
}

func TestChannels_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	zone := seedZone(t, store)
	mustCreateSeller(t, store, domain.NewSeller("seller-1", "A B", "123/A", "RIB001", ""))

	mustCreateChannel(t, store, testChannel("ch-1", "channel-seller-1", "seller-1", zone))

	got, err := store.Channels().GetChannelBySeller(ctx, "seller-1")
	if err != nil {
		t.Fatalf("GetChannelBySeller failed: %v", err)
	}
	if got.ID != "ch-1" || got.Code != "channel-seller-1" || got.Token != "token-ch-1" {
		t.Errorf("channel = %+v", got)
	}
	if got.CurrencyCode != "TND" || got.LanguageCode != "fr" || !got.PricesIncludeTax {
		t.Errorf("channel defaults = %+v", got)
	}
	if got.DefaultShippingZoneID != zone.ID || got.DefaultTaxZoneID != zone.ID {
		t.Errorf("zones = %s/%s", got.DefaultShippingZoneID, got.DefaultTaxZoneID)
	}

	if _, err := store.Channels().GetChannelBySeller(ctx, "seller-2"); !errors.Is(err, domain.ErrChannelNotFound) {
		t.Errorf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestChannels_PermissionDenied(t *testing.T) {
	store := newTestStore(t)
	zone := seedZone(t, store)
	mustCreateSeller(t, store, domain.NewSeller("seller-1", "A B", "123/A", "RIB001", ""))

	err := store.Channels().CreateChannel(context.Background(), viewerCaller, testChannel("ch-1", "c", "seller-1", zone))
	var denied *domain.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if _, err := store.Channels().GetChannelBySeller(context.Background(), "seller-1"); !errors.Is(err, domain.ErrChannelNotFound) {
		t.Errorf("denied write created a channel: %v", err)
	}
}

func TestChannels_DuplicateKeys(t *testing.T) {
	store := newTestStore(t)
	zone := seedZone(t, store)
	mustCreateSeller(t, store, domain.NewSeller("seller-1", "A B", "123/A", "RIB001", ""))
	mustCreateSeller(t, store, domain.NewSeller("seller-2", "C D", "456/B", "RIB002", ""))
	mustCreateChannel(t, store, testChannel("ch-1", "channel-seller-1", "seller-1", zone))

	tests := []struct {
		name    string
		channel domain.Channel
		key     string
	}{
		{"same code", testChannel("ch-2", "channel-seller-1", "seller-2", zone), "channel-seller-1"},
		{"same seller", testChannel("ch-3", "channel-seller-1-x", "seller-1", zone), "seller-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Channels().CreateChannel(context.Background(), provisioning, tt.channel)
			var dup *domain.DuplicateKeyError
			if !errors.As(err, &dup) {
				t.Fatalf("expected DuplicateKeyError, got %v", err)
			}
			if dup.Key != tt.key {
				t.Errorf("Key = %q, want %q", dup.Key, tt.key)
			}
		})
	}
}

func TestRoles_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	zone := seedZone(t, store)
	mustCreateSeller(t, store, domain.NewSeller("seller-1", "A B", "123/A", "RIB001", ""))
	mustCreateChannel(t, store, testChannel("ch-1", "channel-seller-1", "seller-1", zone))

	role := domain.Role{
		ID:          "role-1",
		Code:        domain.SellerRoleCode("seller-1"),
		Description: "Seller role for A B",
		Permissions: domain.SellerPermissions,
		ChannelIDs:  []string{"ch-1"},
		SellerID:    "seller-1",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Identity().CreateRole(ctx, viewerCaller, role); err == nil {
		t.Fatal("viewer must not create roles")
	}
	if err := store.Identity().CreateRole(ctx, provisioning, role); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	got, err := store.Identity().GetRoleByCode(ctx, role.Code)
	if err != nil {
		t.Fatalf("GetRoleByCode failed: %v", err)
	}
	if got.ID != "role-1" || got.SellerID != "seller-1" {
		t.Errorf("role = %+v", got)
	}
	if len(got.Permissions) != len(domain.SellerPermissions) {
		t.Errorf("got %d permissions, want %d", len(got.Permissions), len(domain.SellerPermissions))
	}
	if !slices.Equal(got.ChannelIDs, []string{"ch-1"}) {
		t.Errorf("ChannelIDs = %v", got.ChannelIDs)
	}

	err = store.Identity().CreateRole(ctx, provisioning, role)
	var dup *domain.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Errorf("expected DuplicateKeyError, got %v", err)
	}

	if _, err := store.Identity().GetRoleByCode(ctx, "missing"); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Errorf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestRoles_SuperadminSeeded(t *testing.T) {
	store := newTestStore(t)

	role, err := store.Identity().GetRoleByCode(context.Background(), domain.SuperadminRoleCode)
	if err != nil {
		t.Fatalf("GetRoleByCode failed: %v", err)
	}
	if !slices.Equal(role.Permissions, []domain.Permission{domain.PermSuperAdmin}) {
		t.Errorf("Permissions = %v", role.Permissions)
	}
	if len(role.ChannelIDs) != 0 {
		t.Errorf("ChannelIDs = %v, want none", role.ChannelIDs)
	}
}

func TestRoles_ChannelSets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	zone := seedZone(t, store)
	for _, id := range []string{"seller-1", "seller-2"} {
		mustCreateSeller(t, store, domain.NewSeller(id, "S", "T", "R", ""))
		mustCreateChannel(t, store, testChannel("ch-"+id, domain.ChannelCode(id), id, zone))
	}
	superadmin, _ := store.Identity().GetRoleByCode(ctx, domain.SuperadminRoleCode)

	// AddRoleChannel is additive and idempotent.
	for _, ch := range []string{"ch-seller-1", "ch-seller-2", "ch-seller-1"} {
		if err := store.Identity().AddRoleChannel(ctx, provisioning, superadmin.ID, ch); err != nil {
			t.Fatalf("AddRoleChannel(%s) failed: %v", ch, err)
		}
	}
	got, _ := store.Identity().GetRoleByCode(ctx, domain.SuperadminRoleCode)
	if !slices.Equal(got.ChannelIDs, []string{"ch-seller-1", "ch-seller-2"}) {
		t.Errorf("superadmin channels = %v", got.ChannelIDs)
	}

	// SetRoleChannels replaces.
	if err := store.Identity().SetRoleChannels(ctx, provisioning, superadmin.ID, []string{"ch-seller-2"}); err != nil {
		t.Fatalf("SetRoleChannels failed: %v", err)
	}
	got, _ = store.Identity().GetRoleByCode(ctx, domain.SuperadminRoleCode)
	if !slices.Equal(got.ChannelIDs, []string{"ch-seller-2"}) {
		t.Errorf("channels after replace = %v", got.ChannelIDs)
	}

	if err := store.Identity().AddRoleChannel(ctx, provisioning, "missing", "ch-seller-1"); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Errorf("expected ErrRoleNotFound, got %v", err)
	}
	if err := store.Identity().SetRoleChannels(ctx, viewerCaller, superadmin.ID, nil); err == nil {
		t.Error("viewer must not update roles")
	}
}

func TestAdmins_RolesReplaced(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateAdmin(t, store, domain.Administrator{ID: "admin-1", Email: "a@x.com", FirstName: "A", LastName: "B", PasswordHash: "h"})

	role := domain.Role{ID: "role-1", Code: "role-seller-1", CreatedAt: time.Now().UTC()}
	if err := store.Identity().CreateRole(ctx, provisioning, role); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	admin, _ := store.Identity().GetAdmin(ctx, "admin-1")
	if len(admin.RoleIDs) != 0 {
		t.Fatalf("new admin has roles %v", admin.RoleIDs)
	}

	if err := store.Identity().SetAdminRoles(ctx, provisioning, "admin-1", []string{"role-superadmin"}); err != nil {
		t.Fatalf("SetAdminRoles failed: %v", err)
	}
	if err := store.Identity().SetAdminRoles(ctx, provisioning, "admin-1", []string{"role-1"}); err != nil {
		t.Fatalf("SetAdminRoles failed: %v", err)
	}

	admin, _ = store.Identity().GetAdmin(ctx, "admin-1")
	if !slices.Equal(admin.RoleIDs, []string{"role-1"}) {
		t.Errorf("RoleIDs = %v, want [role-1]", admin.RoleIDs)
	}

	if err := store.Identity().SetAdminRoles(ctx, provisioning, "ghost", []string{"role-1"}); !errors.Is(err, domain.ErrAdminNotFound) {
		t.Errorf("expected ErrAdminNotFound, got %v", err)
	}
}

func TestAdmins_Verify(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateAdmin(t, store, domain.Administrator{ID: "admin-1", Email: "a@x.com", FirstName: "A", LastName: "B", PasswordHash: "h", VerificationToken: "tok-1"})
	mustCreateAdmin(t, store, domain.Administrator{ID: "admin-2", Email: "c@x.com", FirstName: "C", LastName: "D", PasswordHash: "h"})

	admin, _ := store.Identity().GetAdmin(ctx, "admin-1")
	if admin.Verified() || admin.VerificationToken != "tok-1" {
		t.Fatalf("admin = %+v, want unverified with its token", admin)
	}

	admin, err := store.Identity().VerifyAdmin(ctx, "tok-1")
	if err != nil {
		t.Fatalf("VerifyAdmin failed: %v", err)
	}
	if admin.ID != "admin-1" || !admin.Verified() || admin.VerificationToken != "" {
		t.Errorf("verified admin = %+v", admin)
	}

	for _, token := range []string{"tok-1", "unknown", ""} {
		if _, err := store.Identity().VerifyAdmin(ctx, token); !errors.Is(err, domain.ErrVerificationTokenInvalid) {
			t.Errorf("VerifyAdmin(%q): expected ErrVerificationTokenInvalid, got %v", token, err)
		}
	}

	other, _ := store.Identity().GetAdmin(ctx, "admin-2")
	if other.Verified() {
		t.Error("admin without a token must stay unverified")
	}
}

func TestAdmins_EmailConflict(t *testing.T) {
	store := newTestStore(t)
	mustCreateAdmin(t, store, domain.Administrator{ID: "admin-1", Email: "a@x.com", FirstName: "A", LastName: "B", PasswordHash: "h"})

	err := store.Identity().CreateAdmin(context.Background(), domain.Administrator{
		ID: "admin-2", Email: "a@x.com", FirstName: "C", LastName: "D", PasswordHash: "h", CreatedAt: time.Now().UTC(),
	})
	var conflict *domain.EmailConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected EmailConflictError, got %v", err)
	}
}

func TestStockLocations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	zone := seedZone(t, store)
	mustCreateSeller(t, store, domain.NewSeller("seller-1", "A B", "123/A", "RIB001", ""))
	mustCreateChannel(t, store, testChannel("ch-1", "channel-seller-1", "seller-1", zone))

	location := domain.StockLocation{
		ID:        "loc-1",
		Name:      domain.StockLocationName("seller-1"),
		SellerID:  "seller-1",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Channels().CreateStockLocation(ctx, provisioning, location); err != nil {
		t.Fatalf("CreateStockLocation failed: %v", err)
	}

	err := store.Channels().CreateStockLocation(ctx, provisioning, location)
	var dup *domain.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Errorf("expected DuplicateKeyError, got %v", err)
	}

	for range 2 {
		if err := store.Channels().AssignStockLocation(ctx, provisioning, "loc-1", "ch-1"); err != nil {
			t.Fatalf("AssignStockLocation failed: %v", err)
		}
	}

	got, err := store.Channels().GetStockLocationBySeller(ctx, "seller-1")
	if err != nil {
		t.Fatalf("GetStockLocationBySeller failed: %v", err)
	}
	if got.Name != "stock-seller-1" || !slices.Equal(got.ChannelIDs, []string{"ch-1"}) {
		t.Errorf("location = %+v", got)
	}

	if err := store.Channels().AssignStockLocation(ctx, provisioning, "loc-1", "ch-missing"); !errors.Is(err, domain.ErrChannelNotFound) {
		t.Errorf("expected ErrChannelNotFound, got %v", err)
	}
	if err := store.Channels().AssignStockLocation(ctx, viewerCaller, "loc-1", "ch-1"); err == nil {
		t.Error("viewer must not assign stock locations")
	}
	if _, err := store.Channels().GetStockLocationBySeller(ctx, "seller-2"); !errors.Is(err, domain.ErrStockLocationNotFound) {
		t.Errorf("expected ErrStockLocationNotFound, got %v", err)
	}
}

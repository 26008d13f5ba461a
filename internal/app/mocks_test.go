package app_test

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// --- Mocks ---
//
// The mocks enforce the same permission checks and uniqueness rules as the
// SQLite stores so service logic is exercised against realistic failures.

type mockSellers struct {
	mu      sync.Mutex
	sellers map[string]domain.Seller
	updates int
	getErr  error
}

func newMockSellers() *mockSellers {
	return &mockSellers{sellers: make(map[string]domain.Seller)}
}

func (m *mockSellers) Create(_ context.Context, s domain.Seller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sellers[s.ID] = s
	return nil
}

func (m *mockSellers) GetByID(_ context.Context, id string) (domain.Seller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.Seller{}, m.getErr
	}
	s, ok := m.sellers[id]
	if !ok {
		return domain.Seller{}, domain.ErrSellerNotFound
	}
	return s, nil
}

func (m *mockSellers) List(_ context.Context, filter domain.ListFilter) ([]domain.Seller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Seller, 0, len(m.sellers))
	for _, s := range m.sellers {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.BankValidated != nil && s.BankValidated != *filter.BankValidated {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Update never touches the bank-validation flag, like the real store.
func (m *mockSellers) Update(_ context.Context, s domain.Seller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sellers[s.ID]
	if !ok {
		return domain.ErrSellerNotFound
	}
	s.BankValidated = current.BankValidated
	m.sellers[s.ID] = s
	m.updates++
	return nil
}

func (m *mockSellers) MarkBankValidated(_ context.Context, caller domain.Caller, id string) (domain.Seller, bool, error) {
	if err := domain.Authorize(caller, "update bank validation", domain.BankValidationPermissions...); err != nil {
		return domain.Seller{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sellers[id]
	if !ok {
		return domain.Seller{}, false, domain.ErrSellerNotFound
	}
	changed := !s.BankValidated
	s.BankValidated = true
	m.sellers[id] = s
	return s, changed, nil
}

func (m *mockSellers) get(id string) domain.Seller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sellers[id]
}

type mockIdentity struct {
	mu        sync.Mutex
	admins    map[string]domain.Administrator
	roles     map[string]domain.Role // keyed by code
	roleCalls int
}

func newMockIdentity() *mockIdentity {
	return &mockIdentity{
		admins: make(map[string]domain.Administrator),
		roles:  make(map[string]domain.Role),
	}
}

func (m *mockIdentity) CreateAdmin(_ context.Context, a domain.Administrator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.admins {
		if existing.Email == a.Email {
			return &domain.DuplicateKeyError{Entity: "administrator", Key: a.Email}
		}
	}
	m.admins[a.ID] = a
	return nil
}

func (m *mockIdentity) GetAdmin(_ context.Context, id string) (domain.Administrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return domain.Administrator{}, domain.ErrAdminNotFound
	}
	return a, nil
}

func (m *mockIdentity) GetAdminByEmail(_ context.Context, email string) (domain.Administrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.Administrator{}, domain.ErrAdminNotFound
}

func (m *mockIdentity) VerifyAdmin(_ context.Context, token string) (domain.Administrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.admins {
		if token != "" && a.VerificationToken == token {
			now := time.Now().UTC()
			a.VerifiedAt = &now
			a.VerificationToken = ""
			m.admins[id] = a
			return a, nil
		}
	}
	return domain.Administrator{}, domain.ErrVerificationTokenInvalid
}

func (m *mockIdentity) CreateRole(_ context.Context, caller domain.Caller, r domain.Role) error {
	if err := domain.Authorize(caller, "create role", domain.PermCreateAdministrator); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[r.Code]; ok {
		return &domain.DuplicateKeyError{Entity: "role", Key: r.Code}
	}
	r.ChannelIDs = slices.Clone(r.ChannelIDs)
	m.roles[r.Code] = r
	m.roleCalls++
	return nil
}

func (m *mockIdentity) GetRoleByCode(_ context.Context, code string) (domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[code]
	if !ok {
		return domain.Role{}, domain.ErrRoleNotFound
	}
	r.ChannelIDs = slices.Clone(r.ChannelIDs)
	return r, nil
}

func (m *mockIdentity) SetRoleChannels(_ context.Context, caller domain.Caller, roleID string, channelIDs []string) error {
	if err := domain.Authorize(caller, "update role", domain.PermUpdateAdministrator); err != nil {
		return err
	}
	return m.updateRole(roleID, func(r *domain.Role) { r.ChannelIDs = slices.Clone(channelIDs) })
}

func (m *mockIdentity) AddRoleChannel(_ context.Context, caller domain.Caller, roleID, channelID string) error {
	if err := domain.Authorize(caller, "update role", domain.PermUpdateAdministrator); err != nil {
		return err
	}
	return m.updateRole(roleID, func(r *domain.Role) {
		if !slices.Contains(r.ChannelIDs, channelID) {
			r.ChannelIDs = append(r.ChannelIDs, channelID)
		}
	})
}

func (m *mockIdentity) updateRole(roleID string, fn func(*domain.Role)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, r := range m.roles {
		if r.ID == roleID {
			fn(&r)
			m.roles[code] = r
			return nil
		}
	}
	return domain.ErrRoleNotFound
}

func (m *mockIdentity) SetAdminRoles(_ context.Context, caller domain.Caller, adminID string, roleIDs []string) error {
	if err := domain.Authorize(caller, "update administrator", domain.PermUpdateAdministrator); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[adminID]
	if !ok {
		return domain.ErrAdminNotFound
	}
	a.RoleIDs = slices.Clone(roleIDs)
	m.admins[adminID] = a
	return nil
}

func (m *mockIdentity) admin(id string) domain.Administrator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[id]
}

func (m *mockIdentity) role(code string) (domain.Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[code]
	return r, ok
}

func (m *mockIdentity) seedSuperadmin() domain.Role {
	r := domain.Role{
		ID:          "role-superadmin",
		Code:        domain.SuperadminRoleCode,
		Permissions: []domain.Permission{domain.PermSuperAdmin},
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[r.Code] = r
	return r
}

type mockChannels struct {
	mu           sync.Mutex
	zones        []domain.Zone
	channels     map[string]domain.Channel // keyed by code
	locations    map[string]domain.StockLocation
	channelCalls int
	zoneErr      error
}

func newMockChannels(zones ...domain.Zone) *mockChannels {
	return &mockChannels{
		zones:     zones,
		channels:  make(map[string]domain.Channel),
		locations: make(map[string]domain.StockLocation),
	}
}

func (m *mockChannels) DefaultZone(_ context.Context, preferred string) (domain.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.zoneErr != nil {
		return domain.Zone{}, m.zoneErr
	}
	for _, z := range m.zones {
		if preferred == "" || z.Name == preferred {
			return z, nil
		}
	}
	return domain.Zone{}, domain.ErrZoneNotFound
}

func (m *mockChannels) CreateChannel(_ context.Context, caller domain.Caller, c domain.Channel) error {
	if err := domain.Authorize(caller, "create channel", domain.PermCreateChannel); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelCalls++
	if _, ok := m.channels[c.Code]; ok {
		return &domain.DuplicateKeyError{Entity: "channel", Key: c.Code}
	}
	for _, existing := range m.channels {
		if existing.SellerID != "" && existing.SellerID == c.SellerID {
			return &domain.DuplicateKeyError{Entity: "channel", Key: c.SellerID}
		}
	}
	m.channels[c.Code] = c
	return nil
}

func (m *mockChannels) GetChannelBySeller(_ context.Context, sellerID string) (domain.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.channels {
		if c.SellerID == sellerID {
			return c, nil
		}
	}
	return domain.Channel{}, domain.ErrChannelNotFound
}

func (m *mockChannels) CreateStockLocation(_ context.Context, caller domain.Caller, l domain.StockLocation) error {
	if err := domain.Authorize(caller, "create stock location", domain.PermCreateStockLocation); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.locations {
		if existing.Name == l.Name {
			return &domain.DuplicateKeyError{Entity: "stock location", Key: l.Name}
		}
	}
	m.locations[l.ID] = l
	return nil
}

func (m *mockChannels) GetStockLocationBySeller(_ context.Context, sellerID string) (domain.StockLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.locations {
		if l.SellerID == sellerID {
			l.ChannelIDs = slices.Clone(l.ChannelIDs)
			return l, nil
		}
	}
	return domain.StockLocation{}, domain.ErrStockLocationNotFound
}

func (m *mockChannels) AssignStockLocation(_ context.Context, caller domain.Caller, locationID, channelID string) error {
	if err := domain.Authorize(caller, "assign stock location", domain.PermUpdateStockLocation); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locations[locationID]
	if !ok {
		return domain.ErrStockLocationNotFound
	}
	if !slices.Contains(l.ChannelIDs, channelID) {
		l.ChannelIDs = append(l.ChannelIDs, channelID)
	}
	m.locations[locationID] = l
	return nil
}

// occupy registers a foreign channel holding code, to force a collision.
func (m *mockChannels) occupy(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[code] = domain.Channel{ID: "foreign-" + code, Code: code}
}

func (m *mockChannels) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.channels {
		if c.SellerID != "" {
			n++
		}
	}
	return n
}

type mockTrail struct {
	mu      sync.Mutex
	records map[string]domain.ProvisioningRecord
	saves   []domain.Step
	failOn  domain.Step // next Save of this step fails once
	onGet   func(ctx context.Context) error
}

func newMockTrail() *mockTrail {
	return &mockTrail{records: make(map[string]domain.ProvisioningRecord)}
}

func (m *mockTrail) Save(_ context.Context, r domain.ProvisioningRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && r.LastStep == m.failOn {
		m.failOn = ""
		return errBoom
	}
	m.records[r.SellerID] = r
	m.saves = append(m.saves, r.LastStep)
	return nil
}

func (m *mockTrail) Get(ctx context.Context, sellerID string) (domain.ProvisioningRecord, error) {
	if m.onGet != nil {
		if err := m.onGet(ctx); err != nil {
			return domain.ProvisioningRecord{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[sellerID]
	if !ok {
		return domain.ProvisioningRecord{}, domain.ErrProvisioningNotFound
	}
	return r, nil
}

// mockUoW runs fn against in-memory stores and restores their previous
// contents when fn fails.
type mockUoW struct {
	sellers  *mockSellers
	identity *mockIdentity
}

func (m *mockUoW) Do(_ context.Context, fn func(stores domain.Stores) error) error {
	m.sellers.mu.Lock()
	sellers := maps.Clone(m.sellers.sellers)
	m.sellers.mu.Unlock()
	m.identity.mu.Lock()
	admins := maps.Clone(m.identity.admins)
	m.identity.mu.Unlock()

	err := fn(domain.Stores{Sellers: m.sellers, Identity: m.identity})
	if err != nil {
		m.sellers.mu.Lock()
		m.sellers.sellers = sellers
		m.sellers.mu.Unlock()
		m.identity.mu.Lock()
		m.identity.admins = admins
		m.identity.mu.Unlock()
	}
	return err
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (m *mockNotifier) Publish(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) kinds() []domain.NotificationKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.NotificationKind, len(m.sent))
	for i, n := range m.sent {
		out[i] = n.Kind
	}
	return out
}

type mockQueue struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (m *mockQueue) EnqueueProvisioning(_ context.Context, s domain.Seller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, s.ID)
	return nil
}

var errBoom = errors.New("boom")

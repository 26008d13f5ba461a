package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// Compile-time check: IdentityStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityStore)(nil)

// IdentityStore implements domain.IdentityStore using SQLite.
type IdentityStore struct {
	q querier
}

func (s *IdentityStore) CreateAdmin(ctx context.Context, a domain.Administrator) error {
	var token sql.NullString
	if a.VerificationToken != "" {
		token = sql.NullString{String: a.VerificationToken, Valid: true}
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO administrators (id, email, first_name, last_name, password_hash, verification_token, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.FirstName, a.LastName, a.PasswordHash, token, a.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.EmailConflictError{Email: a.Email}
		}
		return fmt.Errorf("inserting administrator: %w", err)
	}
	return nil
}

func (s *IdentityStore) GetAdmin(ctx context.Context, id string) (domain.Administrator, error) {
	return s.getAdmin(ctx, `WHERE id = ?`, id)
}

func (s *IdentityStore) GetAdminByEmail(ctx context.Context, email string) (domain.Administrator, error) {
	return s.getAdmin(ctx, `WHERE email = ?`, email)
}

// VerifyAdmin marks the administrator holding token as verified and clears
// the token so it cannot be replayed.
func (s *IdentityStore) VerifyAdmin(ctx context.Context, token string) (domain.Administrator, error) {
	if token == "" {
		return domain.Administrator{}, domain.ErrVerificationTokenInvalid
	}

	var id string
	err := s.q.QueryRowContext(ctx,
		`UPDATE administrators SET verified_at = ?, verification_token = NULL
		 WHERE verification_token = ?
		 RETURNING id`,
		time.Now().UTC().Format(timeFormat), token,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Administrator{}, domain.ErrVerificationTokenInvalid
	}
	if err != nil {
		return domain.Administrator{}, fmt.Errorf("verifying administrator: %w", err)
	}
	return s.GetAdmin(ctx, id)
}

func (s *IdentityStore) getAdmin(ctx context.Context, where string, arg string) (domain.Administrator, error) {
	var a domain.Administrator
	var createdAt string
	var token, verifiedAt sql.NullString

	err := s.q.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, password_hash, verification_token, verified_at, created_at
		 FROM administrators `+where, arg,
	).Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &token, &verifiedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Administrator{}, domain.ErrAdminNotFound
		}
		return domain.Administrator{}, fmt.Errorf("scanning administrator: %w", err)
	}
	a.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	a.VerificationToken = token.String
	if verifiedAt.Valid {
		t, _ := time.Parse(timeFormat, verifiedAt.String)
		a.VerifiedAt = &t
	}

	a.RoleIDs, err = queryStrings(ctx, s.q,
		`SELECT role_id FROM administrator_roles WHERE administrator_id = ? ORDER BY role_id`, a.ID)
	if err != nil {
		return domain.Administrator{}, fmt.Errorf("loading administrator roles: %w", err)
	}
	return a, nil
}

// CreateRole inserts a role with its permissions and channels atomically.
func (s *IdentityStore) CreateRole(ctx context.Context, caller domain.Caller, r domain.Role) error {
	if err := domain.Authorize(caller, "create role", domain.PermCreateAdministrator); err != nil {
		return err
	}

	return inTx(ctx, s.q, func(tx querier) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO roles (id, code, description, seller_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.Code, r.Description, r.SellerID, r.CreatedAt.Format(timeFormat),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &domain.DuplicateKeyError{Entity: "role", Key: r.Code}
			}
			return fmt.Errorf("inserting role: %w", err)
		}

		for _, p := range r.Permissions {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO role_permissions (role_id, permission) VALUES (?, ?)`, r.ID, string(p),
			); err != nil {
				return fmt.Errorf("inserting role permission: %w", err)
			}
		}
		return insertRoleChannels(ctx, tx, r.ID, r.ChannelIDs)
	})
}

func (s *IdentityStore) GetRoleByCode(ctx context.Context, code string) (domain.Role, error) {
	var r domain.Role
	var createdAt string

	err := s.q.QueryRowContext(ctx,
		`SELECT id, code, description, seller_id, created_at FROM roles WHERE code = ?`, code,
	).Scan(&r.ID, &r.Code, &r.Description, &r.SellerID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Role{}, domain.ErrRoleNotFound
		}
		return domain.Role{}, fmt.Errorf("scanning role: %w", err)
	}
	r.CreatedAt, _ = time.Parse(timeFormat, createdAt)

	perms, err := queryStrings(ctx, s.q,
		`SELECT permission FROM role_permissions WHERE role_id = ? ORDER BY permission`, r.ID)
	if err != nil {
		return domain.Role{}, fmt.Errorf("loading role permissions: %w", err)
	}
	for _, p := range perms {
		r.Permissions = append(r.Permissions, domain.Permission(p))
	}

	r.ChannelIDs, err = queryStrings(ctx, s.q,
		`SELECT channel_id FROM role_channels WHERE role_id = ? ORDER BY channel_id`, r.ID)
	if err != nil {
		return domain.Role{}, fmt.Errorf("loading role channels: %w", err)
	}
	return r, nil
}

// SetRoleChannels replaces the role's channel set.
func (s *IdentityStore) SetRoleChannels(ctx context.Context, caller domain.Caller, roleID string, channelIDs []string) error {
	if err := domain.Authorize(caller, "update role", domain.PermUpdateAdministrator); err != nil {
		return err
	}

	return inTx(ctx, s.q, func(tx querier) error {
		if err := requireExists(ctx, tx, `SELECT 1 FROM roles WHERE id = ?`, roleID, domain.ErrRoleNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_channels WHERE role_id = ?`, roleID); err != nil {
			return fmt.Errorf("clearing role channels: %w", err)
		}
		return insertRoleChannels(ctx, tx, roleID, channelIDs)
	})
}

// AddRoleChannel grants the role visibility of one more channel, keeping
// the channels it already has.
func (s *IdentityStore) AddRoleChannel(ctx context.Context, caller domain.Caller, roleID, channelID string) error {
	if err := domain.Authorize(caller, "update role", domain.PermUpdateAdministrator); err != nil {
		return err
	}
	if err := requireExists(ctx, s.q, `SELECT 1 FROM roles WHERE id = ?`, roleID, domain.ErrRoleNotFound); err != nil {
		return err
	}
	return insertRoleChannels(ctx, s.q, roleID, []string{channelID})
}

// SetAdminRoles replaces the administrator's role set.
func (s *IdentityStore) SetAdminRoles(ctx context.Context, caller domain.Caller, adminID string, roleIDs []string) error {
	if err := domain.Authorize(caller, "update administrator", domain.PermUpdateAdministrator); err != nil {
		return err
	}

	return inTx(ctx, s.q, func(tx querier) error {
		if err := requireExists(ctx, tx, `SELECT 1 FROM administrators WHERE id = ?`, adminID, domain.ErrAdminNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM administrator_roles WHERE administrator_id = ?`, adminID); err != nil {
			return fmt.Errorf("clearing administrator roles: %w", err)
		}
		for _, roleID := range roleIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO administrator_roles (administrator_id, role_id) VALUES (?, ?)`, adminID, roleID,
			); err != nil {
				return fmt.Errorf("assigning role %q: %w", roleID, err)
			}
		}
		return nil
	})
}

func insertRoleChannels(ctx context.Context, q querier, roleID string, channelIDs []string) error {
	for _, channelID := range channelIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO role_channels (role_id, channel_id) VALUES (?, ?)`, roleID, channelID,
		); err != nil {
			return fmt.Errorf("linking role to channel %q: %w", channelID, err)
		}
	}
	return nil
}

func requireExists(ctx context.Context, q querier, query, arg string, notFound error) error {
	var one int
	err := q.QueryRowContext(ctx, query, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

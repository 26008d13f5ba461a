package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// Compile-time check: SellerRepository implements domain.SellerRepository.
var _ domain.SellerRepository = (*SellerRepository)(nil)

// SellerRepository implements domain.SellerRepository using SQLite.
type SellerRepository struct {
	q querier
}

const sellerColumns = `id, name, shop_name, tax_id, bank_account_ref, bank_validated,
	linked_admin_id, status, created_at, updated_at`

func (r *SellerRepository) Create(ctx context.Context, s domain.Seller) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sellers (`+sellerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.ShopName, s.TaxID, s.BankAccountRef, boolToInt(s.BankValidated),
		s.LinkedAdminID, string(s.Status),
		s.CreatedAt.Format(timeFormat),
		s.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.DuplicateKeyError{Entity: "seller", Key: s.ID}
		}
		return fmt.Errorf("inserting seller: %w", err)
	}
	return nil
}

func (r *SellerRepository) GetByID(ctx context.Context, id string) (domain.Seller, error) {
	return scanSeller(r.q.QueryRowContext(ctx,
		`SELECT `+sellerColumns+` FROM sellers WHERE id = ?`, id,
	))
}

func (r *SellerRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE 1 = 1`
	var args []any

	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}

	if filter.BankValidated != nil {
		query += ` AND bank_validated = ?`
		args = append(args, boolToInt(*filter.BankValidated))
	}

	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sellers: %w", err)
	}
	defer rows.Close()

	var sellers []domain.Seller
	for rows.Next() {
		s, err := scanSeller(rows)
		if err != nil {
			return nil, err
		}
		sellers = append(sellers, s)
	}

	return sellers, rows.Err()
}

// Update writes the seller's mutable profile and status. The bank-validation
// flag and the linked administrator are not part of this write.
func (r *SellerRepository) Update(ctx context.Context, s domain.Seller) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE sellers SET name = ?, shop_name = ?, tax_id = ?, bank_account_ref = ?,
		 status = ?, updated_at = ?
		 WHERE id = ?`,
		s.Name, s.ShopName, s.TaxID, s.BankAccountRef, string(s.Status),
		time.Now().UTC().Format(timeFormat), s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating seller: %w", err)
	}

	return requireRow(result, domain.ErrSellerNotFound)
}

// MarkBankValidated sets the bank-validation flag. It is the only write path
// for the flag and refuses callers without a bank-validation permission.
// changed is false when the seller was already validated, so of two
// concurrent approvals only one observes the transition.
func (r *SellerRepository) MarkBankValidated(ctx context.Context, caller domain.Caller, id string) (seller domain.Seller, changed bool, err error) {
	if err := domain.Authorize(caller, "update bank validation", domain.BankValidationPermissions...); err != nil {
		return domain.Seller{}, false, err
	}

	result, err := r.q.ExecContext(ctx,
		`UPDATE sellers SET bank_validated = 1, updated_at = ? WHERE id = ? AND bank_validated = 0`,
		time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return domain.Seller{}, false, fmt.Errorf("validating seller: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return domain.Seller{}, false, fmt.Errorf("checking rows affected: %w", err)
	}

	seller, err = r.GetByID(ctx, id)
	if err != nil {
		return domain.Seller{}, false, err
	}
	return seller, n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSeller scans a single row from QueryRow or Rows into a domain.Seller.
func scanSeller(row rowScanner) (domain.Seller, error) {
	var s domain.Seller
	var status, createdAt, updatedAt string
	var validated int

	err := row.Scan(&s.ID, &s.Name, &s.ShopName, &s.TaxID, &s.BankAccountRef, &validated,
		&s.LinkedAdminID, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Seller{}, domain.ErrSellerNotFound
		}
		return domain.Seller{}, fmt.Errorf("scanning seller: %w", err)
	}

	s.BankValidated = validated != 0
	s.Status = domain.Status(status)
	s.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	s.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return s, nil
}

func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

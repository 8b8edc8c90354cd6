package postgres

import (
	"context"
	"fmt"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
)

const (
	getCompanyByID = `
SELECT id, name, email, max_admins, max_members
FROM companies
WHERE id = $1`

	// Relative increments only. Two concurrent credits to the same company
	// serialize on the row lock and both land.
	creditCompanySlots = `
UPDATE companies
SET max_admins  = max_admins + $2,
    max_members = max_members + $3
WHERE id = $1`
)

// CompanyRepository implements ports.CompanyRepository
type CompanyRepository struct {
	pool ports.DBTX
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db ports.DBPort) *CompanyRepository {
	return &CompanyRepository{pool: db.GetDB()}
}

// GetByID retrieves a company and its slot counters
func (r *CompanyRepository) GetByID(ctx context.Context, db ports.DBTX, id int64) (*domain.Company, error) {
	var c domain.Company
	err := executor(r.pool, db).QueryRow(ctx, getCompanyByID, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.MaxAdmins, &c.MaxMembers)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NewDomainError(domain.ErrorCodeRecordNotFound, "company not found").
				WithDetail("company_id", id)
		}
		return nil, fmt.Errorf("get company by id: %w", err)
	}
	return &c, nil
}

// CreditSlots adds delta to the company counters. tx is required: crediting
// outside the completion transaction would break the one-credit-per-payment rule.
func (r *CompanyRepository) CreditSlots(ctx context.Context, tx ports.DBTX, companyID int64, delta domain.SlotDelta) error {
	if tx == nil {
		return fmt.Errorf("credit slots: transaction required")
	}
	if err := delta.Validate(); err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}

	tag, err := tx.Exec(ctx, creditCompanySlots, companyID, delta.Admins, delta.Members)
	if err != nil {
		return fmt.Errorf("credit company slots: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeRecordNotFound, "company not found").
			WithDetail("company_id", companyID)
	}
	return nil
}

package billing

import (
	"context"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"go.uber.org/zap"
)

// CompanySlots is the current slot allowance of a company
type CompanySlots struct {
	CompanyID  int64 `json:"companyId"`
	MaxAdmins  int   `json:"maxAdmins"`
	MaxMembers int   `json:"maxMembers"`
}

// QueryService serves the read side of billing: payment records and slot counters
type QueryService struct {
	records   ports.PaymentRecordRepository
	companies ports.CompanyRepository
	logger    *zap.Logger
}

// NewQueryService creates a new billing query service
func NewQueryService(records ports.PaymentRecordRepository, companies ports.CompanyRepository, logger *zap.Logger) *QueryService {
	return &QueryService{
		records:   records,
		companies: companies,
		logger:    logger,
	}
}

// GetPaymentRecord returns a record to an actor allowed to manage its company
func (s *QueryService) GetPaymentRecord(ctx context.Context, actor domain.Actor, id int64) (*domain.PaymentRecord, error) {
	if id <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "payment record id is required")
	}

	rec, err := s.records.GetByID(ctx, nil, id)
	if err != nil {
		return nil, readError("load payment record", err)
	}
	if !actor.CanManageCompany(rec.CompanyID) {
		s.logger.Warn("payment record read denied",
			zap.String("actor", actor.String()),
			zap.Int64("payment_record_id", id))
		return nil, domain.ErrForbidden
	}
	return rec, nil
}

// GetCompanySlots returns the counters of a company to any of its members
func (s *QueryService) GetCompanySlots(ctx context.Context, actor domain.Actor, companyID int64) (*CompanySlots, error) {
	if !actor.CanViewCompany(companyID) {
		return nil, domain.ErrForbidden
	}

	company, err := s.companies.GetByID(ctx, nil, companyID)
	if err != nil {
		return nil, readError("load company", err)
	}
	return &CompanySlots{
		CompanyID:  company.ID,
		MaxAdmins:  company.MaxAdmins,
		MaxMembers: company.MaxMembers,
	}, nil
}

func readError(op string, err error) error {
	if domain.IsDomainError(err, domain.ErrorCodeRecordNotFound) {
		return err
	}
	return domain.WrapError(domain.ErrorCodeDatabaseError, op, err)
}

package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UpsertPriceRequest sets the price of one slot type
type UpsertPriceRequest struct {
	SlotType     string          `validate:"required,oneof=admin member"`
	Currency     string          `validate:"required,iso4217"`
	PricePerUnit decimal.Decimal `validate:"-"`
}

// Service is the pricing catalog. Prices are never defaulted: a missing entry
// is PRICING_NOT_CONFIGURED.
type Service struct {
	repo     ports.PricingRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a new pricing service
func NewService(repo ports.PricingRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetPrice returns the configured price for slotType
func (s *Service) GetPrice(ctx context.Context, slotType domain.SlotType) (*domain.PricingEntry, error) {
	if !slotType.IsValid() {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "unknown slot type").
			WithDetail("slot_type", string(slotType))
	}

	entry, err := s.repo.Get(ctx, nil, slotType)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodePricingNotConfigured) {
			return nil, domain.NewDomainError(domain.ErrorCodePricingNotConfigured, "no price configured for slot type").
				WithDetail("slot_type", string(slotType))
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load price", err)
	}
	return entry, nil
}

// UpsertPrice creates or replaces the price for a slot type. Operators only.
func (s *Service) UpsertPrice(ctx context.Context, actor domain.Actor, req UpsertPriceRequest) (*domain.PricingEntry, error) {
	if !actor.IsOperator() {
		s.logger.Warn("price change rejected",
			zap.String("actor", actor.String()),
			zap.String("role", actor.Role))
		return nil, domain.ErrForbidden
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, validationMessage(err), err)
	}
	if !req.PricePerUnit.IsPositive() {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "price_per_unit must be greater than zero").
			WithDetail("price_per_unit", req.PricePerUnit.String())
	}
	if !domain.FitsMinorUnit(req.PricePerUnit, req.Currency) {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed,
			fmt.Sprintf("price_per_unit has more precision than %s supports", req.Currency)).
			WithDetail("price_per_unit", req.PricePerUnit.String()).
			WithDetail("currency", req.Currency)
	}

	entry := &domain.PricingEntry{
		SlotType:     domain.SlotType(req.SlotType),
		PricePerUnit: req.PricePerUnit,
		Currency:     req.Currency,
	}
	if err := s.repo.Upsert(ctx, nil, entry); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "upsert price", err)
	}

	s.logger.Info("price updated",
		zap.String("actor", actor.String()),
		zap.String("slot_type", req.SlotType),
		zap.String("price_per_unit", entry.PricePerUnit.String()),
		zap.String("currency", entry.Currency))

	return entry, nil
}

// ListPrices returns every configured price
func (s *Service) ListPrices(ctx context.Context) ([]*domain.PricingEntry, error) {
	entries, err := s.repo.List(ctx, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list prices", err)
	}
	return entries, nil
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid pricing request"
	}
	fe := verrs[0]
	switch fe.Field() {
	case "SlotType":
		return "slot_type must be 'admin' or 'member'"
	case "Currency":
		return "currency must be a 3-letter ISO 4217 code"
	default:
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
}

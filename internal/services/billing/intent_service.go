package billing

import (
	"context"
	"fmt"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"github.com/kevin07696/slot-billing/pkg/observability"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceCatalog resolves the authoritative unit price of a slot type
type PriceCatalog interface {
	GetPrice(ctx context.Context, slotType domain.SlotType) (*domain.PricingEntry, error)
}

// PurchaseRequest is a request to buy slots for a company. There is no
// amount field: the charge is always computed from the catalog.
type PurchaseRequest struct {
	SlotType  domain.SlotType
	CompanyID int64
	Quantity  int
}

// PurchaseIntent is returned to the client to complete payment at the gateway
type PurchaseIntent struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Currency        string          `json:"currency"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentRecordID int64           `json:"paymentRecordId"`
}

// IntentService opens payment intents for slot purchases
type IntentService struct {
	catalog   PriceCatalog
	records   ports.PaymentRecordRepository
	companies ports.CompanyRepository
	gateway   ports.PaymentGateway
	logger    *zap.Logger
}

// NewIntentService creates a new payment intent initiator
func NewIntentService(
	catalog PriceCatalog,
	records ports.PaymentRecordRepository,
	companies ports.CompanyRepository,
	gateway ports.PaymentGateway,
	logger *zap.Logger,
) *IntentService {
	return &IntentService{
		catalog:   catalog,
		records:   records,
		companies: companies,
		gateway:   gateway,
		logger:    logger,
	}
}

// CreatePurchaseIntent persists a pending PaymentRecord and opens a gateway
// intent carrying the record's correlation metadata. If the gateway call
// fails the pending record is kept as an audit trail.
func (s *IntentService) CreatePurchaseIntent(ctx context.Context, actor domain.Actor, req PurchaseRequest) (*PurchaseIntent, error) {
	if !actor.CanManageCompany(req.CompanyID) {
		observability.RecordPurchaseIntent(string(req.SlotType), "rejected")
		return nil, domain.ErrForbidden
	}
	if err := domain.ValidatePurchase(req.SlotType, req.Quantity); err != nil {
		observability.RecordPurchaseIntent(string(req.SlotType), "rejected")
		return nil, err
	}

	price, err := s.catalog.GetPrice(ctx, req.SlotType)
	if err != nil {
		observability.RecordPurchaseIntent(string(req.SlotType), "rejected")
		return nil, err
	}

	if _, err := s.companies.GetByID(ctx, nil, req.CompanyID); err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeRecordNotFound) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load company", err)
	}

	rec := &domain.PaymentRecord{
		CompanyID: req.CompanyID,
		SlotType:  req.SlotType,
		Quantity:  req.Quantity,
		Amount:    price.Total(req.Quantity),
		Currency:  price.Currency,
		Status:    domain.PaymentStatusPending,
		CreatedBy: actor.String(),
	}
	if err := s.records.Create(ctx, nil, rec); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "create payment record", err)
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, &ports.PaymentIntentRequest{
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		Metadata:       rec.Metadata().ToMap(),
		IdempotencyKey: fmt.Sprintf("purchase-intent-%d", rec.ID),
		Description:    fmt.Sprintf("%d %s slot(s) for company %d", rec.Quantity, rec.SlotType, rec.CompanyID),
	})
	if err != nil {
		observability.RecordPurchaseIntent(string(req.SlotType), "gateway_error")
		s.logger.Error("gateway intent creation failed; payment record left pending",
			zap.Int64("payment_record_id", rec.ID),
			zap.Int64("company_id", rec.CompanyID),
			zap.Error(err))
		if domain.IsDomainError(err, domain.ErrorCodeGatewayError) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "create payment intent", err)
	}

	if err := s.records.SetGatewayIntentID(ctx, nil, rec.ID, intent.ID); err != nil {
		// The intent still carries the record id in its metadata, so
		// reconciliation can correlate it without the stored link.
		s.logger.Error("failed to link gateway intent to payment record",
			zap.Int64("payment_record_id", rec.ID),
			zap.String("payment_intent_id", intent.ID),
			zap.Error(err))
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "link payment intent", err)
	}

	observability.RecordPurchaseIntent(string(req.SlotType), "created")
	s.logger.Info("purchase intent created",
		zap.Int64("payment_record_id", rec.ID),
		zap.Int64("company_id", rec.CompanyID),
		zap.String("slot_type", string(rec.SlotType)),
		zap.Int("quantity", rec.Quantity),
		zap.String("amount", rec.Amount.String()),
		zap.String("currency", rec.Currency),
		zap.String("payment_intent_id", intent.ID))

	return &PurchaseIntent{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PaymentRecordID: rec.ID,
		Amount:          rec.Amount,
		Currency:        rec.Currency,
	}, nil
}

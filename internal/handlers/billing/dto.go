package billing

import (
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
	svc "github.com/kevin07696/slot-billing/internal/services/billing"
	"github.com/shopspring/decimal"
)

// PurchaseIntentRequest is the body of POST /api/v1/billing/purchase-intents
type PurchaseIntentRequest struct {
	SlotType  string `json:"slotType" validate:"required,oneof=admin member"`
	CompanyID int64  `json:"companyId" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=1000"`
}

// VerifyPaymentRequest is the body of POST /api/v1/billing/verify
type VerifyPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required,startswith=pi_"`
	PaymentRecordID int64  `json:"paymentRecordId" validate:"required,gt=0"`
}

// UpsertPriceRequest is the body of PUT /api/v1/billing/pricing
type UpsertPriceRequest struct {
	SlotType     string          `json:"slotType" validate:"required"`
	Currency     string          `json:"currency" validate:"required"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
}

// VerifyPaymentResponse reports the outcome of a reconciliation
type VerifyPaymentResponse struct {
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	Status           string          `json:"status"`
	ReceiptNumber    string          `json:"receiptNumber"`
	TransactionID    string          `json:"transactionId,omitempty"`
	Currency         string          `json:"currency"`
	SlotType         string          `json:"slotType"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentRecordID  int64           `json:"paymentRecordId"`
	Quantity         int             `json:"quantity"`
	AlreadyProcessed bool            `json:"alreadyProcessed"`
}

// WebhookResponse acknowledges a webhook delivery
type WebhookResponse struct {
	Status   string `json:"status"`
	EventID  string `json:"eventId,omitempty"`
	Received bool   `json:"received"`
}

// PriceResponse is one entry of the pricing catalog
type PriceResponse struct {
	UpdatedAt    time.Time       `json:"updatedAt"`
	SlotType     string          `json:"slotType"`
	Currency     string          `json:"currency"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
}

// PaymentRecordResponse exposes a payment record to its company admins
type PaymentRecordResponse struct {
	CreatedAt            time.Time       `json:"createdAt"`
	PaidAt               *time.Time      `json:"paidAt,omitempty"`
	GatewayIntentID      string          `json:"paymentIntentId,omitempty"`
	GatewayTransactionID string          `json:"transactionId,omitempty"`
	ReceiptNumber        string          `json:"receiptNumber,omitempty"`
	Status               string          `json:"status"`
	SlotType             string          `json:"slotType"`
	Currency             string          `json:"currency"`
	Amount               decimal.Decimal `json:"amount"`
	ID                   int64           `json:"id"`
	CompanyID            int64           `json:"companyId"`
	Quantity             int             `json:"quantity"`
	NotificationSent     bool            `json:"notificationSent"`
}

func toPurchaseRequest(req PurchaseIntentRequest) svc.PurchaseRequest {
	return svc.PurchaseRequest{
		SlotType:  domain.SlotType(req.SlotType),
		CompanyID: req.CompanyID,
		Quantity:  req.Quantity,
	}
}

func toVerifyResponse(result *domain.CompletionResult) VerifyPaymentResponse {
	rec := result.Record
	return VerifyPaymentResponse{
		PaidAt:           rec.PaidAt,
		Status:           string(rec.Status),
		ReceiptNumber:    deref(rec.ReceiptNumber),
		TransactionID:    deref(rec.GatewayTransactionID),
		Currency:         rec.Currency,
		SlotType:         string(rec.SlotType),
		Amount:           rec.Amount,
		PaymentRecordID:  rec.ID,
		Quantity:         rec.Quantity,
		AlreadyProcessed: result.AlreadyProcessed,
	}
}

func toPriceResponse(e *domain.PricingEntry) PriceResponse {
	return PriceResponse{
		UpdatedAt:    e.UpdatedAt,
		SlotType:     string(e.SlotType),
		Currency:     e.Currency,
		PricePerUnit: e.PricePerUnit,
	}
}

func toPaymentRecordResponse(rec *domain.PaymentRecord) PaymentRecordResponse {
	return PaymentRecordResponse{
		CreatedAt:            rec.CreatedAt,
		PaidAt:               rec.PaidAt,
		GatewayIntentID:      deref(rec.GatewayIntentID),
		GatewayTransactionID: deref(rec.GatewayTransactionID),
		ReceiptNumber:        deref(rec.ReceiptNumber),
		Status:               string(rec.Status),
		SlotType:             string(rec.SlotType),
		Currency:             rec.Currency,
		Amount:               rec.Amount,
		ID:                   rec.ID,
		CompanyID:            rec.CompanyID,
		Quantity:             rec.Quantity,
		NotificationSent:     rec.NotificationSent,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

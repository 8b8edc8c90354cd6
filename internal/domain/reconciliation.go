package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationSource names the trigger that drove a completion attempt
type ReconciliationSource string

const (
	SourceWebhook ReconciliationSource = "webhook"
	SourceVerify  ReconciliationSource = "verify"
)

// Completion is the input to the guarded pending -> paid transition
type Completion struct {
	ReceiptNumber        string
	GatewayTransactionID string
	Currency             string
	ExpectedAmount       decimal.Decimal
	PaymentRecordID      int64
	CompanyID            int64
	Delta                SlotDelta
}

// CompletionResult is returned by both reconciliation entry points.
// AlreadyProcessed is a success outcome: another trigger completed the record first.
type CompletionResult struct {
	Record           *PaymentRecord
	AlreadyProcessed bool
}

// PaymentNotification is the receipt payload handed to notifiers
type PaymentNotification struct {
	PaymentDate   time.Time       `json:"payment_date"`
	CompanyName   string          `json:"company_name"`
	CompanyEmail  string          `json:"company_email"`
	ReceiptNumber string          `json:"receipt_number"`
	Currency      string          `json:"currency"`
	SlotType      SlotType        `json:"slot_type"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentRecord int64           `json:"payment_record_id"`
	CompanyID     int64           `json:"company_id"`
	SlotQuantity  int             `json:"slot_quantity"`
}

// NewPaymentNotification builds the receipt payload for a paid record
func NewPaymentNotification(rec *PaymentRecord, company *Company) PaymentNotification {
	n := PaymentNotification{
		CompanyName:   company.Name,
		CompanyEmail:  company.Email,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		SlotType:      rec.SlotType,
		SlotQuantity:  rec.Quantity,
		PaymentRecord: rec.ID,
		CompanyID:     rec.CompanyID,
	}
	if rec.ReceiptNumber != nil {
		n.ReceiptNumber = *rec.ReceiptNumber
	}
	if rec.GatewayTransactionID != nil {
		n.TransactionID = *rec.GatewayTransactionID
	}
	if rec.PaidAt != nil {
		n.PaymentDate = *rec.PaidAt
	}
	return n
}

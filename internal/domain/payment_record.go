package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a PaymentRecord.
// Only pending -> paid is implemented; failed and refunded are reserved.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// MaxSlotsPerPurchase bounds a single purchase
const MaxSlotsPerPurchase = 1000

// Gateway metadata keys attached to every payment intent
const (
	MetadataPaymentRecordID = "paymentRecordId"
	MetadataCompanyID       = "companyId"
	MetadataSlotType        = "slotType"
	MetadataQuantity        = "quantity"
)

// PaymentRecord is the internal ledger row for one purchase attempt
type PaymentRecord struct {
	CreatedAt            time.Time       `json:"created_at"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	GatewayIntentID      *string         `json:"gateway_intent_id,omitempty"`
	GatewayTransactionID *string         `json:"gateway_transaction_id,omitempty"`
	ReceiptNumber        *string         `json:"receipt_number,omitempty"`
	Status               PaymentStatus   `json:"status"`
	SlotType             SlotType        `json:"slot_type"`
	Currency             string          `json:"currency"`
	CreatedBy            string          `json:"created_by"`
	Amount               decimal.Decimal `json:"amount"`
	ID                   int64           `json:"id"`
	CompanyID            int64           `json:"company_id"`
	Quantity             int             `json:"quantity"`
	NotificationSent     bool            `json:"notification_sent"`
}

// IsPaid returns true once the record has been reconciled
func (p *PaymentRecord) IsPaid() bool {
	return p.Status == PaymentStatusPaid
}

// CanTransitionTo enforces the pending -> paid state machine
func (p *PaymentRecord) CanTransitionTo(next PaymentStatus) bool {
	return p.Status == PaymentStatusPending && next == PaymentStatusPaid
}

// SlotDelta returns the slot credit this record grants when paid
func (p *PaymentRecord) SlotDelta() SlotDelta {
	return DeltaFor(p.SlotType, p.Quantity)
}

// Metadata returns the correlation metadata sent to the gateway
func (p *PaymentRecord) Metadata() PaymentMetadata {
	return PaymentMetadata{
		PaymentRecordID: p.ID,
		CompanyID:       p.CompanyID,
		SlotType:        p.SlotType,
		Quantity:        p.Quantity,
	}
}

// ValidatePurchase checks the caller-controlled inputs of a purchase
func ValidatePurchase(slotType SlotType, quantity int) error {
	if !slotType.IsValid() {
		return NewDomainError(ErrorCodeValidationFailed, "slot_type must be 'admin' or 'member'").
			WithDetail("slot_type", string(slotType))
	}
	if quantity <= 0 || quantity > MaxSlotsPerPurchase {
		return NewDomainError(ErrorCodeValidationFailed,
			fmt.Sprintf("quantity must be between 1 and %d", MaxSlotsPerPurchase)).
			WithDetail("quantity", quantity)
	}
	return nil
}

// ReceiptNumber derives the receipt for a record from persisted fields only,
// so every retry of the same payment produces the same value.
// Format: PREFIX-YYYYMMDD-NNNNNN (creation date in UTC, id zero padded to 6).
func ReceiptNumber(prefix string, createdAt time.Time, id int64) string {
	return fmt.Sprintf("%s-%s-%06d", prefix, createdAt.UTC().Format("20060102"), id)
}

// PaymentMetadata is the opaque correlation payload carried by a gateway intent
type PaymentMetadata struct {
	SlotType        SlotType
	PaymentRecordID int64
	CompanyID       int64
	Quantity        int
}

// ToMap encodes the metadata as gateway key/value pairs
func (m PaymentMetadata) ToMap() map[string]string {
	return map[string]string{
		MetadataPaymentRecordID: strconv.FormatInt(m.PaymentRecordID, 10),
		MetadataCompanyID:       strconv.FormatInt(m.CompanyID, 10),
		MetadataSlotType:        string(m.SlotType),
		MetadataQuantity:        strconv.Itoa(m.Quantity),
	}
}

// ParsePaymentMetadata decodes gateway key/value pairs. Missing or malformed
// keys are reported as tampering since we always write all four.
func ParsePaymentMetadata(raw map[string]string) (PaymentMetadata, error) {
	var m PaymentMetadata

	recordID, err := strconv.ParseInt(raw[MetadataPaymentRecordID], 10, 64)
	if err != nil {
		return m, WrapError(ErrorCodeMetadataTampering, "invalid paymentRecordId metadata", err)
	}
	companyID, err := strconv.ParseInt(raw[MetadataCompanyID], 10, 64)
	if err != nil {
		return m, WrapError(ErrorCodeMetadataTampering, "invalid companyId metadata", err)
	}
	quantity, err := strconv.Atoi(raw[MetadataQuantity])
	if err != nil {
		return m, WrapError(ErrorCodeMetadataTampering, "invalid quantity metadata", err)
	}

	m.PaymentRecordID = recordID
	m.CompanyID = companyID
	m.SlotType = SlotType(raw[MetadataSlotType])
	m.Quantity = quantity
	return m, nil
}

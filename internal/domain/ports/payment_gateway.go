package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// IntentStatus mirrors the gateway's payment intent lifecycle
type IntentStatus string

const (
	IntentStatusSucceeded       IntentStatus = "succeeded"
	IntentStatusProcessing      IntentStatus = "processing"
	IntentStatusRequiresPayment IntentStatus = "requires_payment_method"
	IntentStatusCanceled        IntentStatus = "canceled"
)

// EventPaymentIntentSucceeded is the only webhook event that triggers reconciliation
const EventPaymentIntentSucceeded = "payment_intent.succeeded"

// PaymentIntentRequest opens a new intent at the gateway
type PaymentIntentRequest struct {
	Metadata       map[string]string
	Currency       string
	Description    string
	IdempotencyKey string
	Amount         decimal.Decimal
}

// PaymentIntent is the gateway's view of a payment, in major currency units
type PaymentIntent struct {
	Metadata      map[string]string
	ID            string
	ClientSecret  string
	Currency      string
	TransactionID string
	Status        IntentStatus
	Amount        decimal.Decimal
}

// GatewayEvent is a verified, decoded webhook delivery
type GatewayEvent struct {
	Intent *PaymentIntent
	ID     string
	Type   string
}

// PaymentGateway is the external payment provider
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntent, error)

	// GetPaymentIntent fetches the authoritative intent state
	GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)

	// ParseWebhookEvent verifies the signature header against the raw payload
	// and decodes the event. Intent is nil for non payment_intent events.
	ParseWebhookEvent(payload []byte, signatureHeader string) (*GatewayEvent, error)
}

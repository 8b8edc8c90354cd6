package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
)

// ValidSignature is the only signature header the fake gateway accepts
const ValidSignature = "t=1,v1=valid"

// Gateway is an in-memory payment gateway
type Gateway struct {
	intents map[string]ports.PaymentIntent

	// Error injection
	CreateErr error
	GetErr    error
	ParseErr  error

	Requests []ports.PaymentIntentRequest

	mu     sync.Mutex
	nextID int
}

// NewGateway creates an empty fake gateway
func NewGateway() *Gateway {
	return &Gateway{intents: make(map[string]ports.PaymentIntent)}
}

func (g *Gateway) CreatePaymentIntent(_ context.Context, req *ports.PaymentIntentRequest) (*ports.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, *req)
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.nextID++
	id := fmt.Sprintf("pi_test_%d", g.nextID)
	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	intent := ports.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       ports.IntentStatusRequiresPayment,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Metadata:     meta,
	}
	g.intents[id] = intent
	return cloneIntent(intent), nil
}

func (g *Gateway) GetPaymentIntent(_ context.Context, intentID string) (*ports.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.GetErr != nil {
		return nil, g.GetErr
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayError, "no such payment intent")
	}
	return cloneIntent(intent), nil
}

// Succeed marks an intent as paid, as if the client completed checkout
func (g *Gateway) Succeed(intentID, chargeID string) {
	g.Update(intentID, func(pi *ports.PaymentIntent) {
		pi.Status = ports.IntentStatusSucceeded
		pi.TransactionID = chargeID
	})
}

// Update mutates a stored intent, e.g. to simulate tampered metadata
func (g *Gateway) Update(intentID string, fn func(pi *ports.PaymentIntent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent := g.intents[intentID]
	fn(&intent)
	g.intents[intentID] = intent
}

type fakeEvent struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	IntentID string `json:"intent_id"`
}

// WebhookPayload builds a raw webhook body for an event about intentID
func (g *Gateway) WebhookPayload(eventID, eventType, intentID string) []byte {
	b, _ := json.Marshal(fakeEvent{ID: eventID, Type: eventType, IntentID: intentID})
	return b
}

func (g *Gateway) ParseWebhookEvent(payload []byte, signatureHeader string) (*ports.GatewayEvent, error) {
	if g.ParseErr != nil {
		return nil, g.ParseErr
	}
	if signatureHeader != ValidSignature {
		return nil, domain.ErrInvalidSignature
	}
	var ev fakeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "malformed webhook event", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	out := &ports.GatewayEvent{ID: ev.ID, Type: ev.Type}
	if intent, ok := g.intents[ev.IntentID]; ok {
		out.Intent = cloneIntent(intent)
	}
	return out, nil
}

func cloneIntent(pi ports.PaymentIntent) *ports.PaymentIntent {
	meta := make(map[string]string, len(pi.Metadata))
	for k, v := range pi.Metadata {
		meta[k] = v
	}
	pi.Metadata = meta
	return &pi
}

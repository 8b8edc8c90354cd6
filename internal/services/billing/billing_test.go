package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"github.com/kevin07696/slot-billing/internal/services/billing"
	"github.com/kevin07696/slot-billing/internal/services/notification"
	"github.com/kevin07696/slot-billing/internal/services/pricing"
	"github.com/kevin07696/slot-billing/internal/testutil/fixtures"
	"github.com/kevin07696/slot-billing/internal/testutil/mocks"
	"github.com/kevin07696/slot-billing/pkg/resilience"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var createdAt = time.Date(2026, 1, 18, 9, 30, 0, 0, time.UTC)

type harness struct {
	store      *mocks.Store
	gateway    *mocks.Gateway
	email      *mocks.Notifier
	intents    *billing.IntentService
	recon      *billing.ReconciliationService
	dispatcher *notification.Dispatcher
}

// newStore seeds the fixture company, both prices and a fixed clock
func newStore() *mocks.Store {
	store := mocks.NewStore()
	store.PutCompany(fixtures.Company())
	store.PutPrice(fixtures.AdminPrice())
	store.PutPrice(fixtures.MemberPrice())
	store.SetNow(func() time.Time { return createdAt })
	return store
}

func newHarness(t *testing.T, dedupe ports.EventDeduplicator) *harness {
	return newHarnessWithStore(t, newStore(), dedupe)
}

func newHarnessWithStore(t *testing.T, store *mocks.Store, dedupe ports.EventDeduplicator) *harness {
	t.Helper()

	gateway := mocks.NewGateway()
	email := mocks.NewNotifier("email")
	logger := zap.NewNop()

	dispatcher := notification.NewDispatcher(
		store.Records(),
		store.Companies(),
		[]ports.Notifier{email},
		notification.Config{
			Timeouts:    resilience.TestTimeoutConfig(),
			Backoff:     &resilience.FixedBackoff{Delay: time.Millisecond},
			MaxAttempts: 2,
		},
		logger,
	)

	h := &harness{
		store:      store,
		gateway:    gateway,
		email:      email,
		dispatcher: dispatcher,
		intents: billing.NewIntentService(
			pricing.NewService(store.Pricing(), logger),
			store.Records(),
			store.Companies(),
			gateway,
			logger,
		),
		recon: billing.NewReconciliationService(
			store.TxManager(),
			store.Records(),
			store.Companies(),
			gateway,
			dispatcher,
			dedupe,
			billing.ReconciliationConfig{ReceiptPrefix: "RCPT"},
			logger,
		),
	}
	t.Cleanup(func() { h.waitNotifications(t) })
	return h
}

// purchase opens an intent as the company admin
func (h *harness) purchase(t *testing.T, slotType domain.SlotType, quantity int) *billing.PurchaseIntent {
	t.Helper()
	intent, err := h.intents.CreatePurchaseIntent(context.Background(), fixtures.CompanyAdmin(), billing.PurchaseRequest{
		CompanyID: fixtures.CompanyID,
		SlotType:  slotType,
		Quantity:  quantity,
	})
	require.NoError(t, err)
	return intent
}

// pay simulates the client completing checkout at the gateway
func (h *harness) pay(intent *billing.PurchaseIntent) {
	h.gateway.Succeed(intent.PaymentIntentID, "ch_"+intent.PaymentIntentID)
}

func (h *harness) webhook(t *testing.T, eventID string, intent *billing.PurchaseIntent) (*billing.WebhookResult, error) {
	t.Helper()
	payload := h.gateway.WebhookPayload(eventID, ports.EventPaymentIntentSucceeded, intent.PaymentIntentID)
	return h.recon.HandleWebhook(context.Background(), payload, mocks.ValidSignature)
}

func (h *harness) waitNotifications(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.dispatcher.Wait(ctx))
}

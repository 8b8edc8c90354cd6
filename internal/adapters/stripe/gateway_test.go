package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"github.com/kevin07696/slot-billing/pkg/resilience"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test"

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGateway(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		BaseURL:       srv.URL,
		Timeout:       5 * time.Second,
		Breaker:       resilience.BreakerConfig{MaxFailures: 2, CoolDown: time.Minute},
	}, zap.NewNop())
	require.NoError(t, err)
	return g
}

func writeIntent(w http.ResponseWriter, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func sign(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestNewGateway_RequiresSecrets(t *testing.T) {
	_, err := NewGateway(Config{WebhookSecret: "whsec"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewGateway(Config{SecretKey: "sk"}, zap.NewNop())
	assert.Error(t, err)
}

func TestGateway_CreatePaymentIntent(t *testing.T) {
	var gotForm map[string]string
	var gotIdempotency string

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.NoError(t, r.ParseForm())

		gotIdempotency = r.Header.Get("Idempotency-Key")
		gotForm = map[string]string{
			"amount":                    r.PostForm.Get("amount"),
			"currency":                  r.PostForm.Get("currency"),
			"metadata[companyId]":       r.PostForm.Get("metadata[companyId]"),
			"metadata[paymentRecordId]": r.PostForm.Get("metadata[paymentRecordId]"),
		}

		writeIntent(w, map[string]interface{}{
			"id":            "pi_123",
			"object":        "payment_intent",
			"amount":        150000,
			"currency":      "ngn",
			"status":        "requires_payment_method",
			"client_secret": "pi_123_secret_abc",
			"metadata":      map[string]string{"companyId": "7", "paymentRecordId": "42"},
		})
	})

	intent, err := g.CreatePaymentIntent(context.Background(), &ports.PaymentIntentRequest{
		Amount:         decimal.NewFromInt(1500),
		Currency:       "NGN",
		IdempotencyKey: "purchase-intent-42",
		Metadata:       map[string]string{"companyId": "7", "paymentRecordId": "42"},
	})
	require.NoError(t, err)

	assert.Equal(t, "150000", gotForm["amount"], "amounts are sent in minor units")
	assert.Equal(t, "ngn", gotForm["currency"])
	assert.Equal(t, "7", gotForm["metadata[companyId]"])
	assert.Equal(t, "42", gotForm["metadata[paymentRecordId]"])
	assert.Equal(t, "purchase-intent-42", gotIdempotency)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, "NGN", intent.Currency)
	assert.True(t, decimal.NewFromInt(1500).Equal(intent.Amount))
	assert.Equal(t, ports.IntentStatusRequiresPayment, intent.Status)
}

func TestGateway_GetPaymentIntent(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents/pi_123", r.URL.Path)
		writeIntent(w, map[string]interface{}{
			"id":       "pi_123",
			"object":   "payment_intent",
			"amount":   100000,
			"currency": "ngn",
			"status":   "succeeded",
			"metadata": map[string]string{"paymentRecordId": "42"},
			"charges": map[string]interface{}{
				"object": "list",
				"data":   []map[string]interface{}{{"id": "ch_987", "object": "charge"}},
			},
		})
	})

	intent, err := g.GetPaymentIntent(context.Background(), "pi_123")
	require.NoError(t, err)

	assert.Equal(t, ports.IntentStatusSucceeded, intent.Status)
	assert.Equal(t, "ch_987", intent.TransactionID)
	assert.True(t, decimal.NewFromInt(1000).Equal(intent.Amount))
	assert.Equal(t, "42", intent.Metadata["paymentRecordId"])
}

func TestGateway_ErrorsMapToGatewayError(t *testing.T) {
	var hits int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent"}}`))
	})

	for i := 0; i < 3; i++ {
		_, err := g.GetPaymentIntent(context.Background(), "pi_missing")
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayError))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "client errors do not open the breaker")
}

func TestGateway_BreakerOpensOnUpstreamFailures(t *testing.T) {
	var hits int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	})

	for i := 0; i < 3; i++ {
		_, err := g.GetPaymentIntent(context.Background(), "pi_123")
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayError))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "third call fails fast")
	assert.Equal(t, resilience.BreakerOpen, g.breaker.State())
}

func TestGateway_CreatePaymentIntent_RejectsSubMinorAmounts(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called")
	})

	_, err := g.CreatePaymentIntent(context.Background(), &ports.PaymentIntentRequest{
		Amount:   decimal.RequireFromString("10.005"),
		Currency: "NGN",
	})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayError))
}

func succeededEvent(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":     "evt_1",
		"object": "event",
		"type":   "payment_intent.succeeded",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "pi_123",
				"object":   "payment_intent",
				"amount":   150000,
				"currency": "ngn",
				"status":   "succeeded",
				"metadata": map[string]string{
					"paymentRecordId": "42",
					"companyId":       "7",
					"slotType":        "admin",
					"quantity":        "3",
				},
				"charges": map[string]interface{}{
					"object": "list",
					"data":   []map[string]interface{}{{"id": "ch_1", "object": "charge"}},
				},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestGateway_ParseWebhookEvent(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := succeededEvent(t)

	event, err := g.ParseWebhookEvent(payload, sign(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, ports.EventPaymentIntentSucceeded, event.Type)
	require.NotNil(t, event.Intent)
	assert.Equal(t, "pi_123", event.Intent.ID)
	assert.Equal(t, "ch_1", event.Intent.TransactionID)
	assert.True(t, decimal.NewFromInt(1500).Equal(event.Intent.Amount))
	assert.Equal(t, "NGN", event.Intent.Currency)
	assert.Equal(t, "3", event.Intent.Metadata["quantity"])
}

func TestGateway_ParseWebhookEvent_RejectsBadSignatures(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := succeededEvent(t)

	tests := []struct {
		name   string
		header string
		body   []byte
	}{
		{name: "missing header", header: "", body: payload},
		{name: "wrong secret", header: sign(payload, "whsec_other", time.Now()), body: payload},
		{name: "stale timestamp", header: sign(payload, testWebhookSecret, time.Now().Add(-time.Hour)), body: payload},
		{name: "body modified after signing", header: sign(payload, testWebhookSecret, time.Now()), body: append(append([]byte(nil), payload...), ' ')},
		{name: "garbage header", header: "not-a-signature", body: payload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := g.ParseWebhookEvent(tt.body, tt.header)
			assert.Nil(t, event)
			assert.True(t, domain.IsDomainError(err, domain.ErrorCodeInvalidSignature), "got %v", err)
		})
	}
}

func TestGateway_ParseWebhookEvent_NonIntentEvent(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	event, err := g.ParseWebhookEvent(payload, sign(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "customer.created", event.Type)
	assert.Nil(t, event.Intent)
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		minor    int64
	}{
		{amount: "500", currency: "NGN", minor: 50000},
		{amount: "12.34", currency: "usd", minor: 1234},
		{amount: "1500", currency: "JPY", minor: 1500},
	}
	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			minor, err := toMinorUnits(amount, tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.minor, minor)
			assert.True(t, amount.Equal(fromMinorUnits(minor, tt.currency)))
		})
	}

	_, err := toMinorUnits(decimal.RequireFromString("1.5"), "JPY")
	assert.Error(t, err)
	_, err = toMinorUnits(decimal.Zero, "USD")
	assert.Error(t, err)
}

package mailgun

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testNotification() domain.PaymentNotification {
	return domain.PaymentNotification{
		PaymentDate:   time.Date(2026, 1, 18, 9, 30, 0, 0, time.UTC),
		CompanyName:   "Acme Logistics",
		CompanyEmail:  "billing@acme.test",
		ReceiptNumber: "RCPT-20260118-000042",
		Currency:      "NGN",
		SlotType:      domain.SlotTypeAdmin,
		TransactionID: "ch_1",
		Amount:        decimal.NewFromInt(1500),
		PaymentRecord: 42,
		CompanyID:     7,
		SlotQuantity:  3,
	}
}

func TestRenderReceipt(t *testing.T) {
	body, err := renderReceipt(testNotification())
	require.NoError(t, err)

	assert.Contains(t, body, "Hello Acme Logistics")
	assert.Contains(t, body, "RCPT-20260118-000042")
	assert.Contains(t, body, "18 Jan 2026 09:30 UTC")
	assert.Contains(t, body, "3 admin slot(s)")
	assert.Contains(t, body, "1500.00 NGN")
	assert.Contains(t, body, "ch_1")
	assert.Equal(t, "Payment receipt RCPT-20260118-000042", receiptSubject(testNotification()))
}

func TestEmailNotifier_Notify(t *testing.T) {
	var gotPath, gotTo, gotSubject, gotFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			_ = r.ParseForm()
		}
		gotTo = r.FormValue("to")
		gotSubject = r.FormValue("subject")
		gotFrom = r.FormValue("from")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"<20260118.1@mg.acme.test>","message":"Queued. Thank you."}`))
	}))
	defer srv.Close()

	n, err := NewEmailNotifier(Config{
		Domain:  "mg.acme.test",
		APIKey:  "key-test",
		APIBase: srv.URL + "/v3",
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "email", n.Name())

	require.NoError(t, n.Notify(context.Background(), testNotification()))

	assert.Equal(t, "/v3/mg.acme.test/messages", gotPath)
	assert.Equal(t, "billing@acme.test", gotTo)
	assert.Equal(t, "Payment receipt RCPT-20260118-000042", gotSubject)
	assert.True(t, strings.HasPrefix(gotFrom, "billing@mg.acme.test"))
}

func TestEmailNotifier_ProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n, err := NewEmailNotifier(Config{Domain: "mg.acme.test", APIKey: "key-test", APIBase: srv.URL + "/v3"}, zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, n.Notify(context.Background(), testNotification()))
}

func TestEmailNotifier_MissingRecipient(t *testing.T) {
	n, err := NewEmailNotifier(Config{Domain: "mg.acme.test", APIKey: "key-test"}, zap.NewNop())
	require.NoError(t, err)

	p := testNotification()
	p.CompanyEmail = ""
	assert.Error(t, n.Notify(context.Background(), p))
}

func TestNewEmailNotifier_RequiresCredentials(t *testing.T) {
	_, err := NewEmailNotifier(Config{Domain: "mg.acme.test"}, zap.NewNop())
	assert.Error(t, err)
}

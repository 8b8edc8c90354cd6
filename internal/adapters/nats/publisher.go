// Package nats publishes payment events for the push-notification service.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPaymentCompleted carries one event per paid record
const SubjectPaymentCompleted = "billing.payment.completed"

// Publisher is the subset of *nats.Conn the notifier needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

// PaymentCompletedEvent is the message body published on SubjectPaymentCompleted
type PaymentCompletedEvent struct {
	PaymentDate   time.Time       `json:"paymentDate"`
	ReceiptNumber string          `json:"receiptNumber"`
	SlotType      domain.SlotType `json:"slotType"`
	Currency      string          `json:"currency"`
	Amount        string          `json:"amount"`
	TransactionID string          `json:"transactionId"`
	PaymentRecord int64           `json:"paymentRecordId"`
	CompanyID     int64           `json:"companyId"`
	SlotQuantity  int             `json:"slotQuantity"`
}

// PushNotifier implements ports.Notifier by publishing to NATS
type PushNotifier struct {
	pub     Publisher
	subject string
	logger  *zap.Logger
}

// NewPushNotifier creates a notifier publishing on subject
// (SubjectPaymentCompleted when empty)
func NewPushNotifier(pub Publisher, subject string, logger *zap.Logger) *PushNotifier {
	if subject == "" {
		subject = SubjectPaymentCompleted
	}
	return &PushNotifier{pub: pub, subject: subject, logger: logger}
}

func (n *PushNotifier) Name() string { return "push" }

// Notify publishes the event. Publish is fire-and-forget on the client
// buffer, so ctx is only checked before sending.
func (n *PushNotifier) Notify(ctx context.Context, p domain.PaymentNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(PaymentCompletedEvent{
		PaymentDate:   p.PaymentDate,
		ReceiptNumber: p.ReceiptNumber,
		SlotType:      p.SlotType,
		Currency:      p.Currency,
		Amount:        p.Amount.String(),
		TransactionID: p.TransactionID,
		PaymentRecord: p.PaymentRecord,
		CompanyID:     p.CompanyID,
		SlotQuantity:  p.SlotQuantity,
	})
	if err != nil {
		return fmt.Errorf("encode payment event: %w", err)
	}

	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}

	n.logger.Debug("payment event published",
		zap.String("subject", n.subject),
		zap.Int64("payment_record_id", p.PaymentRecord))
	return nil
}

// Connect dials NATS with reconnect logging. An empty url disables push
// notifications and returns a nil connection.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}

	nc, err := nats.Connect(url,
		nats.Name("slot-billing"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// HealthCheck reports whether the connection is usable
func HealthCheck(nc *nats.Conn) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if nc == nil || !nc.IsConnected() {
			return fmt.Errorf("nats not connected")
		}
		return nil
	}
}

// Package mailgun sends payment receipts by email through Mailgun.
package mailgun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
	pkghttp "github.com/kevin07696/slot-billing/pkg/http"
	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"
)

// Config holds Mailgun settings
type Config struct {
	Domain  string
	APIKey  string
	From    string
	APIBase string // empty for the US region default
	Timeout time.Duration
}

// EmailNotifier implements ports.Notifier by emailing the company a receipt
type EmailNotifier struct {
	mg     mailgun.Mailgun
	from   string
	logger *zap.Logger
}

// NewEmailNotifier creates a Mailgun receipt sender
func NewEmailNotifier(cfg Config, logger *zap.Logger) (*EmailNotifier, error) {
	if cfg.Domain == "" || cfg.APIKey == "" {
		return nil, errors.New("mailgun domain and api key are required")
	}
	if cfg.From == "" {
		cfg.From = "billing@" + cfg.Domain
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	mg.SetClient(pkghttp.NewHTTPClient(pkghttp.NotificationClientConfig(), cfg.Timeout))
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}

	return &EmailNotifier{mg: mg, from: cfg.From, logger: logger}, nil
}

func (n *EmailNotifier) Name() string { return "email" }

// Notify sends one receipt email
func (n *EmailNotifier) Notify(ctx context.Context, p domain.PaymentNotification) error {
	if p.CompanyEmail == "" {
		return fmt.Errorf("company %d has no billing email", p.CompanyID)
	}

	body, err := renderReceipt(p)
	if err != nil {
		return err
	}

	msg := n.mg.NewMessage(n.from, receiptSubject(p), body, p.CompanyEmail)
	msg.AddTag("receipt")

	_, id, err := n.mg.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}

	n.logger.Info("receipt email sent",
		zap.Int64("payment_record_id", p.PaymentRecord),
		zap.String("receipt_number", p.ReceiptNumber),
		zap.String("message_id", id))
	return nil
}

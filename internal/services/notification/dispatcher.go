package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"github.com/kevin07696/slot-billing/pkg/observability"
	"github.com/kevin07696/slot-billing/pkg/resilience"
	"github.com/kevin07696/slot-billing/pkg/shutdown"
	"go.uber.org/zap"
)

// Config holds dispatcher settings
type Config struct {
	Timeouts    *resilience.TimeoutConfig
	Backoff     resilience.BackoffStrategy
	MaxAttempts int
}

// DefaultConfig returns production settings
func DefaultConfig() Config {
	return Config{
		Timeouts:    resilience.DefaultTimeoutConfig(),
		Backoff:     resilience.NotificationBackoff(),
		MaxAttempts: 3,
	}
}

// Dispatcher sends payment receipts over every configured channel. It is best
// effort: failures are logged and left for the retry sweep, never returned to
// the reconciliation path.
type Dispatcher struct {
	records   ports.PaymentRecordRepository
	companies ports.CompanyRepository
	notifiers []ports.Notifier
	inflight  *shutdown.InFlightTracker
	cfg       Config
	logger    *zap.Logger
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(
	records ports.PaymentRecordRepository,
	companies ports.CompanyRepository,
	notifiers []ports.Notifier,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.Timeouts == nil {
		cfg.Timeouts = resilience.DefaultTimeoutConfig()
	}
	if cfg.Backoff == nil {
		cfg.Backoff = resilience.NotificationBackoff()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Dispatcher{
		records:   records,
		companies: companies,
		notifiers: notifiers,
		inflight:  shutdown.NewInFlightTracker("notifications", logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// DispatchAsync delivers the receipt for a paid record on a tracked goroutine
func (d *Dispatcher) DispatchAsync(paymentRecordID int64) {
	started := d.inflight.Go(func() {
		ctx, cancel := d.cfg.Timeouts.NotificationContext()
		defer cancel()
		d.Deliver(ctx, paymentRecordID)
	})
	if !started {
		d.logger.Warn("shutting down; receipt left for retry sweep",
			zap.Int64("payment_record_id", paymentRecordID))
	}
}

// Deliver sends the receipt for a paid record and, when every channel
// succeeded, flags the record as notified. It never panics into the caller.
func (d *Dispatcher) Deliver(ctx context.Context, paymentRecordID int64) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic during receipt delivery",
				zap.Int64("payment_record_id", paymentRecordID),
				zap.Any("panic", r))
			delivered = false
		}
	}()

	n, err := d.buildNotification(ctx, paymentRecordID)
	if err != nil {
		d.logger.Error("cannot build payment notification",
			zap.Int64("payment_record_id", paymentRecordID),
			zap.Error(err))
		return false
	}

	if !d.Notify(ctx, n) {
		return false
	}

	if err := d.records.MarkNotificationSent(ctx, nil, paymentRecordID); err != nil {
		d.logger.Warn("receipt sent but notification flag not saved",
			zap.Int64("payment_record_id", paymentRecordID),
			zap.Error(err))
	}
	return true
}

// Notify sends n over every channel, retrying each with backoff. Returns true
// only if all channels succeeded.
func (d *Dispatcher) Notify(ctx context.Context, n domain.PaymentNotification) bool {
	ok := true
	for _, notifier := range d.notifiers {
		err := resilience.Retry(ctx, d.cfg.MaxAttempts, d.cfg.Backoff, nil, func(ctx context.Context) error {
			return d.safeNotify(ctx, notifier, n)
		})
		if err != nil {
			ok = false
			observability.RecordNotification(notifier.Name(), "failed")
			d.logger.Warn("payment notification failed",
				zap.String("channel", notifier.Name()),
				zap.Int64("payment_record_id", n.PaymentRecord),
				zap.String("receipt_number", n.ReceiptNumber),
				zap.Error(err))
			continue
		}
		observability.RecordNotification(notifier.Name(), "sent")
	}
	return ok
}

func (d *Dispatcher) safeNotify(ctx context.Context, notifier ports.Notifier, n domain.PaymentNotification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s notifier panicked: %v", notifier.Name(), r)
		}
	}()
	return notifier.Notify(ctx, n)
}

func (d *Dispatcher) buildNotification(ctx context.Context, paymentRecordID int64) (domain.PaymentNotification, error) {
	rec, err := d.records.GetByID(ctx, nil, paymentRecordID)
	if err != nil {
		return domain.PaymentNotification{}, fmt.Errorf("load payment record: %w", err)
	}
	if !rec.IsPaid() {
		return domain.PaymentNotification{}, errors.New("payment record " + strconv.FormatInt(rec.ID, 10) + " is not paid")
	}

	company, err := d.companies.GetByID(ctx, nil, rec.CompanyID)
	if err != nil {
		return domain.PaymentNotification{}, fmt.Errorf("load company: %w", err)
	}

	return domain.NewPaymentNotification(rec, company), nil
}

// Shutdown stops accepting async deliveries and waits for in-flight ones
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	return d.inflight.Shutdown(ctx)
}

// Wait blocks until in-flight deliveries finish
func (d *Dispatcher) Wait(ctx context.Context) error {
	return d.inflight.Wait(ctx)
}

package billing

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"github.com/kevin07696/slot-billing/pkg/observability"
	"go.uber.org/zap"
)

// Webhook acknowledgement statuses
const (
	WebhookStatusProcessed = "processed"
	WebhookStatusDuplicate = "duplicate"
	WebhookStatusIgnored   = "ignored"
)

// ReceiptDispatcher delivers receipts for freshly paid records without
// blocking the caller
type ReceiptDispatcher interface {
	DispatchAsync(paymentRecordID int64)
}

// WebhookResult is the outcome of one webhook delivery
type WebhookResult struct {
	Completion *domain.CompletionResult
	EventID    string
	EventType  string
	Status     string
}

// ReconciliationConfig holds reconciliation settings
type ReconciliationConfig struct {
	ReceiptPrefix string
}

// ReconciliationService turns gateway confirmations into paid records and
// slot credits. Webhooks and client verification polls race freely; the
// guarded update in completePaymentAndCreditSlots lets exactly one win.
type ReconciliationService struct {
	db         ports.TransactionManager
	records    ports.PaymentRecordRepository
	companies  ports.CompanyRepository
	gateway    ports.PaymentGateway
	dispatcher ReceiptDispatcher
	dedupe     ports.EventDeduplicator
	cfg        ReconciliationConfig
	logger     *zap.Logger
}

// NewReconciliationService creates a new reconciliation engine.
// dedupe may be nil; the database guard alone is sufficient.
func NewReconciliationService(
	db ports.TransactionManager,
	records ports.PaymentRecordRepository,
	companies ports.CompanyRepository,
	gateway ports.PaymentGateway,
	dispatcher ReceiptDispatcher,
	dedupe ports.EventDeduplicator,
	cfg ReconciliationConfig,
	logger *zap.Logger,
) *ReconciliationService {
	if cfg.ReceiptPrefix == "" {
		cfg.ReceiptPrefix = "RCPT"
	}
	return &ReconciliationService{
		db:         db,
		records:    records,
		companies:  companies,
		gateway:    gateway,
		dispatcher: dispatcher,
		dedupe:     dedupe,
		cfg:        cfg,
		logger:     logger,
	}
}

// HandleWebhook verifies and processes one gateway webhook delivery.
// Only payment_intent.succeeded is acted on; other events are acknowledged.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (result *WebhookResult, err error) {
	start := time.Now()
	outcome := WebhookStatusIgnored
	defer func() {
		observability.RecordReconciliation(string(domain.SourceWebhook), outcomeLabel(outcome, err), time.Since(start).Seconds())
	}()

	event, err := s.gateway.ParseWebhookEvent(payload, signatureHeader)
	if err != nil {
		if domain.GetErrorCode(err) == "" {
			err = domain.WrapError(domain.ErrorCodeInvalidSignature, "invalid webhook payload", err)
		}
		if domain.IsSecurityEvent(err) {
			s.logger.Warn("webhook signature verification failed",
				zap.Bool("security_event", true),
				zap.Int("payload_bytes", len(payload)),
				zap.Error(err))
		} else {
			s.logger.Info("webhook rejected",
				zap.String("code", string(domain.GetErrorCode(err))),
				zap.Int("payload_bytes", len(payload)),
				zap.Error(err))
		}
		return nil, err
	}

	result = &WebhookResult{EventID: event.ID, EventType: event.Type, Status: WebhookStatusIgnored}

	if event.Type != ports.EventPaymentIntentSucceeded || event.Intent == nil {
		s.logger.Debug("ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		return result, nil
	}

	if s.seen(ctx, event.ID) {
		outcome = WebhookStatusDuplicate
		result.Status = WebhookStatusDuplicate
		return result, nil
	}

	meta, err := domain.ParsePaymentMetadata(event.Intent.Metadata)
	if err != nil {
		s.logTampering(domain.SourceWebhook, 0, event.Intent.ID, err)
		return nil, err
	}

	rec, err := s.loadRecord(ctx, meta.PaymentRecordID)
	if err != nil {
		return nil, err
	}

	completion, err := s.reconcile(ctx, domain.SourceWebhook, rec, meta, event.Intent)
	if err != nil {
		return nil, err
	}

	s.markSeen(ctx, event.ID)

	outcome = completionOutcome(completion)
	result.Status = WebhookStatusProcessed
	if completion.AlreadyProcessed {
		result.Status = WebhookStatusDuplicate
	}
	result.Completion = completion
	return result, nil
}

// VerifyPayment is the client-driven path. The intent is always fetched from
// the gateway; nothing the client sends besides the two ids is trusted.
func (s *ReconciliationService) VerifyPayment(ctx context.Context, actor domain.Actor, paymentIntentID string, paymentRecordID int64) (result *domain.CompletionResult, err error) {
	start := time.Now()
	defer func() {
		observability.RecordReconciliation(string(domain.SourceVerify), outcomeLabel(completionOutcome(result), err), time.Since(start).Seconds())
	}()

	if paymentIntentID == "" || paymentRecordID <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "paymentIntentId and paymentRecordId are required")
	}

	rec, err := s.loadRecord(ctx, paymentRecordID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageCompany(rec.CompanyID) {
		return nil, domain.ErrForbidden
	}

	intent, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeGatewayError) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "retrieve payment intent", err)
	}

	if intent.Status != ports.IntentStatusSucceeded {
		return nil, domain.NewDomainError(domain.ErrorCodePaymentNotSucceeded, "payment has not succeeded at the gateway").
			WithDetail("gateway_status", string(intent.Status))
	}

	meta, err := domain.ParsePaymentMetadata(intent.Metadata)
	if err != nil {
		s.logTampering(domain.SourceVerify, paymentRecordID, intent.ID, err)
		return nil, err
	}

	return s.reconcile(ctx, domain.SourceVerify, rec, meta, intent)
}

// reconcile checks correlation and then runs the guarded transition
func (s *ReconciliationService) reconcile(
	ctx context.Context,
	source domain.ReconciliationSource,
	rec *domain.PaymentRecord,
	meta domain.PaymentMetadata,
	intent *ports.PaymentIntent,
) (*domain.CompletionResult, error) {
	if err := correlate(rec, meta, intent); err != nil {
		s.logTampering(source, rec.ID, intent.ID, err)
		return nil, err
	}

	transactionID := intent.TransactionID
	if transactionID == "" {
		transactionID = intent.ID
	}

	return s.completePaymentAndCreditSlots(ctx, source, domain.Completion{
		PaymentRecordID:      rec.ID,
		CompanyID:            rec.CompanyID,
		ReceiptNumber:        domain.ReceiptNumber(s.cfg.ReceiptPrefix, rec.CreatedAt, rec.ID),
		GatewayTransactionID: transactionID,
		ExpectedAmount:       rec.Amount,
		Currency:             rec.Currency,
		Delta:                rec.SlotDelta(),
	})
}

// correlate rejects any mismatch between the gateway's view and the record
func correlate(rec *domain.PaymentRecord, meta domain.PaymentMetadata, intent *ports.PaymentIntent) error {
	mismatch := func(field string, expected, actual interface{}) error {
		return domain.NewDomainError(domain.ErrorCodeMetadataTampering, "gateway metadata does not match payment record").
			WithDetail("field", field).
			WithDetail("expected", expected).
			WithDetail("actual", actual)
	}

	switch {
	case meta.PaymentRecordID != rec.ID:
		return mismatch("paymentRecordId", rec.ID, meta.PaymentRecordID)
	case meta.CompanyID != rec.CompanyID:
		return mismatch("companyId", rec.CompanyID, meta.CompanyID)
	case meta.SlotType != rec.SlotType:
		return mismatch("slotType", rec.SlotType, meta.SlotType)
	case meta.Quantity != rec.Quantity:
		return mismatch("quantity", rec.Quantity, meta.Quantity)
	case rec.GatewayIntentID != nil && *rec.GatewayIntentID != intent.ID:
		return mismatch("paymentIntentId", *rec.GatewayIntentID, intent.ID)
	case !intent.Amount.Equal(rec.Amount):
		return mismatch("amount", rec.Amount.String(), intent.Amount.String())
	case !strings.EqualFold(intent.Currency, rec.Currency):
		return mismatch("currency", rec.Currency, intent.Currency)
	}
	return nil
}

// completePaymentAndCreditSlots is the single transition shared by both
// entry points. Step A flips the record only while it is still pending;
// step B credits slots only if step A matched a row. Both commit or neither.
func (s *ReconciliationService) completePaymentAndCreditSlots(ctx context.Context, source domain.ReconciliationSource, c domain.Completion) (*domain.CompletionResult, error) {
	fresh := false

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		updated, err := s.records.MarkPaid(ctx, tx, c)
		if err != nil {
			return err
		}
		if !updated {
			return nil
		}
		if err := s.companies.CreditSlots(ctx, tx, c.CompanyID, c.Delta); err != nil {
			return err
		}
		fresh = true
		return nil
	})
	if err != nil {
		fresh = false
		s.logger.Error("payment completion rolled back",
			zap.String("source", string(source)),
			zap.Int64("payment_record_id", c.PaymentRecordID),
			zap.Int64("company_id", c.CompanyID),
			zap.Error(err))
		if domain.GetErrorCode(err) != "" {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "complete payment", err)
	}

	rec, err := s.records.GetByID(ctx, nil, c.PaymentRecordID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "reload payment record", err)
	}

	// A no-op on a record that is still pending means the guard's amount or
	// company predicate failed even though correlation passed.
	if !fresh && !rec.IsPaid() {
		s.logTampering(source, c.PaymentRecordID, "", domain.ErrMetadataTampering)
		return nil, domain.NewDomainError(domain.ErrorCodeMetadataTampering, "payment record did not match completion guard").
			WithDetail("payment_record_id", c.PaymentRecordID)
	}

	if fresh {
		observability.RecordSlotsCredited(string(rec.SlotType), rec.Quantity)
		s.logger.Info("payment completed and slots credited",
			zap.String("source", string(source)),
			zap.Int64("payment_record_id", rec.ID),
			zap.Int64("company_id", rec.CompanyID),
			zap.String("slot_type", string(rec.SlotType)),
			zap.Int("quantity", rec.Quantity),
			zap.String("receipt_number", c.ReceiptNumber))

		if s.dispatcher != nil {
			s.dispatcher.DispatchAsync(rec.ID)
		}
	} else {
		s.logger.Info("payment already processed",
			zap.String("source", string(source)),
			zap.Int64("payment_record_id", rec.ID))
	}

	return &domain.CompletionResult{Record: rec, AlreadyProcessed: !fresh}, nil
}

func (s *ReconciliationService) loadRecord(ctx context.Context, id int64) (*domain.PaymentRecord, error) {
	rec, err := s.records.GetByID(ctx, nil, id)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeRecordNotFound) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load payment record", err)
	}
	return rec, nil
}

func (s *ReconciliationService) seen(ctx context.Context, eventID string) bool {
	if s.dedupe == nil || eventID == "" {
		return false
	}
	seen, err := s.dedupe.Seen(ctx, eventID)
	if err != nil {
		s.logger.Warn("event dedupe lookup failed; falling back to database guard",
			zap.String("event_id", eventID),
			zap.Error(err))
		return false
	}
	return seen
}

func (s *ReconciliationService) markSeen(ctx context.Context, eventID string) {
	if s.dedupe == nil || eventID == "" {
		return
	}
	if err := s.dedupe.MarkSeen(ctx, eventID); err != nil {
		s.logger.Warn("failed to record processed event",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

func (s *ReconciliationService) logTampering(source domain.ReconciliationSource, recordID int64, intentID string, err error) {
	s.logger.Warn("payment correlation failed",
		zap.Bool("security_event", true),
		zap.String("source", string(source)),
		zap.Int64("payment_record_id", recordID),
		zap.String("payment_intent_id", intentID),
		zap.Error(err))
}

func completionOutcome(c *domain.CompletionResult) string {
	switch {
	case c == nil:
		return WebhookStatusIgnored
	case c.AlreadyProcessed:
		return "already_processed"
	default:
		return "completed"
	}
}

func outcomeLabel(outcome string, err error) string {
	if err != nil {
		if code := domain.GetErrorCode(err); code != "" {
			return string(code)
		}
		return "error"
	}
	return outcome
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
)

const paymentRecordColumns = `id, company_id, slot_type, quantity, amount, currency, status,
       gateway_intent_id, gateway_transaction_id, receipt_number,
       notification_sent, created_by, created_at, paid_at`

const (
	createPaymentRecord = `
INSERT INTO payment_records (company_id, slot_type, quantity, amount, currency, status, created_by)
VALUES ($1, $2, $3, $4, $5, 'pending', $6)
RETURNING id, created_at`

	getPaymentRecordByID = `
SELECT ` + paymentRecordColumns + `
FROM payment_records
WHERE id = $1`

	getPaymentRecordByIntentID = `
SELECT ` + paymentRecordColumns + `
FROM payment_records
WHERE gateway_intent_id = $1`

	setPaymentRecordIntentID = `
UPDATE payment_records
SET gateway_intent_id = $2
WHERE id = $1
  AND status = 'pending'
  AND (gateway_intent_id IS NULL OR gateway_intent_id = $2)`

	// The guard. Concurrent completions of one record take the row lock in
	// turn; the loser re-checks status = 'pending' after the winner commits
	// and matches zero rows. Amount and currency are re-asserted so a
	// mismatched charge can never flip the record.
	markPaymentRecordPaid = `
UPDATE payment_records
SET status                 = 'paid',
    receipt_number         = $3,
    gateway_transaction_id = $4,
    notification_sent      = false,
    paid_at                = now()
WHERE id = $1
  AND company_id = $2
  AND status = 'pending'
  AND amount = $5
  AND currency = $6`

	markPaymentRecordNotified = `
UPDATE payment_records
SET notification_sent = true
WHERE id = $1 AND status = 'paid'`

	listUnnotifiedPaymentRecords = `
SELECT ` + paymentRecordColumns + `
FROM payment_records
WHERE status = 'paid' AND notification_sent = false AND paid_at <= $1
ORDER BY paid_at
LIMIT $2`
)

// PaymentRecordRepository implements ports.PaymentRecordRepository
type PaymentRecordRepository struct {
	pool ports.DBTX
}

// NewPaymentRecordRepository creates a new payment record repository
func NewPaymentRecordRepository(db ports.DBPort) *PaymentRecordRepository {
	return &PaymentRecordRepository{pool: db.GetDB()}
}

// Create inserts a pending record and fills rec.ID and rec.CreatedAt
func (r *PaymentRecordRepository) Create(ctx context.Context, db ports.DBTX, rec *domain.PaymentRecord) error {
	amount, err := decimalToNumeric(rec.Amount)
	if err != nil {
		return err
	}

	var createdAt pgtype.Timestamptz
	err = executor(r.pool, db).QueryRow(ctx, createPaymentRecord,
		rec.CompanyID,
		string(rec.SlotType),
		rec.Quantity,
		amount,
		rec.Currency,
		rec.CreatedBy,
	).Scan(&rec.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("create payment record: %w", err)
	}

	rec.CreatedAt = createdAt.Time
	rec.Status = domain.PaymentStatusPending
	return nil
}

// GetByID retrieves a payment record by its ID
func (r *PaymentRecordRepository) GetByID(ctx context.Context, db ports.DBTX, id int64) (*domain.PaymentRecord, error) {
	rec, err := scanPaymentRecord(executor(r.pool, db).QueryRow(ctx, getPaymentRecordByID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NewDomainError(domain.ErrorCodeRecordNotFound, "payment record not found").
				WithDetail("payment_record_id", id)
		}
		return nil, fmt.Errorf("get payment record by id: %w", err)
	}
	return rec, nil
}

// GetByGatewayIntentID retrieves the record linked to a gateway intent
func (r *PaymentRecordRepository) GetByGatewayIntentID(ctx context.Context, db ports.DBTX, intentID string) (*domain.PaymentRecord, error) {
	rec, err := scanPaymentRecord(executor(r.pool, db).QueryRow(ctx, getPaymentRecordByIntentID, intentID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NewDomainError(domain.ErrorCodeRecordNotFound, "payment record not found").
				WithDetail("gateway_intent_id", intentID)
		}
		return nil, fmt.Errorf("get payment record by intent id: %w", err)
	}
	return rec, nil
}

// SetGatewayIntentID links a pending record to its gateway intent. Re-linking
// the same intent is a no-op; linking a different one is rejected.
func (r *PaymentRecordRepository) SetGatewayIntentID(ctx context.Context, db ports.DBTX, id int64, intentID string) error {
	tag, err := executor(r.pool, db).Exec(ctx, setPaymentRecordIntentID, id, intentID)
	if err != nil {
		return fmt.Errorf("set gateway intent id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeRecordNotFound, "no pending payment record to link").
			WithDetail("payment_record_id", id)
	}
	return nil
}

// MarkPaid runs the guarded pending -> paid update. A false return with a nil
// error means another trigger already completed the record.
func (r *PaymentRecordRepository) MarkPaid(ctx context.Context, tx ports.DBTX, c domain.Completion) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("mark paid: transaction required")
	}

	amount, err := decimalToNumeric(c.ExpectedAmount)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, markPaymentRecordPaid,
		c.PaymentRecordID,
		c.CompanyID,
		c.ReceiptNumber,
		c.GatewayTransactionID,
		amount,
		c.Currency,
	)
	if err != nil {
		return false, fmt.Errorf("mark payment record paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkNotificationSent flags a paid record as notified
func (r *PaymentRecordRepository) MarkNotificationSent(ctx context.Context, db ports.DBTX, id int64) error {
	if _, err := executor(r.pool, db).Exec(ctx, markPaymentRecordNotified, id); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// ListPendingNotifications returns paid records still waiting for a receipt, oldest first.
// Records paid after paidBefore are left to the in-process dispatcher.
func (r *PaymentRecordRepository) ListPendingNotifications(ctx context.Context, db ports.DBTX, paidBefore time.Time, limit int) ([]*domain.PaymentRecord, error) {
	rows, err := executor(r.pool, db).Query(ctx, listUnnotifiedPaymentRecords, paidBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list unnotified payment records: %w", err)
	}
	defer rows.Close()

	var records []*domain.PaymentRecord
	for rows.Next() {
		rec, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unnotified payment records: %w", err)
	}
	return records, nil
}

func scanPaymentRecord(row rowScanner) (*domain.PaymentRecord, error) {
	var (
		rec                  domain.PaymentRecord
		slotType, status     string
		amount               pgtype.Numeric
		intentID, gatewayTxn pgtype.Text
		receipt              pgtype.Text
		createdAt, paidAt    pgtype.Timestamptz
	)

	err := row.Scan(
		&rec.ID,
		&rec.CompanyID,
		&slotType,
		&rec.Quantity,
		&amount,
		&rec.Currency,
		&status,
		&intentID,
		&gatewayTxn,
		&receipt,
		&rec.NotificationSent,
		&rec.CreatedBy,
		&createdAt,
		&paidAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Amount, err = pgNumericToDecimal(amount)
	if err != nil {
		return nil, err
	}
	rec.SlotType = domain.SlotType(slotType)
	rec.Status = domain.PaymentStatus(status)
	rec.GatewayIntentID = textPtr(intentID)
	rec.GatewayTransactionID = textPtr(gatewayTxn)
	rec.ReceiptNumber = textPtr(receipt)
	rec.CreatedAt = createdAt.Time
	rec.PaidAt = timePtr(paidAt)

	return &rec, nil
}

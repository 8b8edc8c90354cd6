package ports

import (
	"context"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
)

// PricingRepository persists the per-slot-type price catalog
type PricingRepository interface {
	// Get returns domain.ErrPricingNotConfigured when no row exists
	Get(ctx context.Context, db DBTX, slotType domain.SlotType) (*domain.PricingEntry, error)

	// Upsert inserts or replaces the entry for entry.SlotType
	Upsert(ctx context.Context, db DBTX, entry *domain.PricingEntry) error

	List(ctx context.Context, db DBTX) ([]*domain.PricingEntry, error)
}

// PaymentRecordRepository persists the internal payment ledger
type PaymentRecordRepository interface {
	// Create inserts a pending record and fills ID and CreatedAt
	Create(ctx context.Context, db DBTX, rec *domain.PaymentRecord) error

	GetByID(ctx context.Context, db DBTX, id int64) (*domain.PaymentRecord, error)
	GetByGatewayIntentID(ctx context.Context, db DBTX, intentID string) (*domain.PaymentRecord, error)

	// SetGatewayIntentID links a pending record to its gateway intent
	SetGatewayIntentID(ctx context.Context, db DBTX, id int64, intentID string) error

	// MarkPaid performs the guarded pending -> paid transition.
	// Returns false, nil when the record was no longer pending (already processed).
	MarkPaid(ctx context.Context, tx DBTX, c domain.Completion) (bool, error)

	MarkNotificationSent(ctx context.Context, db DBTX, id int64) error

	// ListPendingNotifications returns paid records whose notification was not delivered
	// and that were paid at or before paidBefore
	ListPendingNotifications(ctx context.Context, db DBTX, paidBefore time.Time, limit int) ([]*domain.PaymentRecord, error)
}

// CompanyRepository reads companies and credits their slot counters
type CompanyRepository interface {
	GetByID(ctx context.Context, db DBTX, id int64) (*domain.Company, error)

	// CreditSlots adds delta to the counters. Must run inside the completion transaction.
	CreditSlots(ctx context.Context, tx DBTX, companyID int64, delta domain.SlotDelta) error
}

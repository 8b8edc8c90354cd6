// Package mocks provides shared in-memory fakes for service tests. The store
// enforces the same guarded pending -> paid semantics as the Postgres
// repositories so concurrency properties can be tested without a database.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
)

// Store is an in-memory database. Use Pricing, Records, Companies and
// TxManager to get the port implementations.
type Store struct {
	prices    map[domain.SlotType]domain.PricingEntry
	companies map[int64]domain.Company
	records   map[int64]domain.PaymentRecord
	now       func() time.Time

	// Error injection
	CreditSlotsErr      error
	MarkNotificationErr error

	mu     sync.Mutex
	txMu   sync.Mutex
	nextID int64
}

// NewStore creates an empty store whose record ids start at 1
func NewStore() *Store {
	return &Store{
		prices:    make(map[domain.SlotType]domain.PricingEntry),
		companies: make(map[int64]domain.Company),
		records:   make(map[int64]domain.PaymentRecord),
		now:       func() time.Time { return time.Now().UTC() },
		nextID:    1,
	}
}

// SetNow fixes the clock used for created_at and paid_at
func (s *Store) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = fn
}

// SetNextID sets the id the next created record receives
func (s *Store) SetNextID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = id
}

// PutCompany seeds a company
func (s *Store) PutCompany(c domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
}

// PutPrice seeds a pricing entry
func (s *Store) PutPrice(e domain.PricingEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[e.SlotType] = e
}

// Company returns a copy of the stored company
func (s *Store) Company(id int64) domain.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.companies[id]
}

// Record returns a copy of the stored record
func (s *Store) Record(id int64) domain.PaymentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecord(s.records[id])
}

// RecordCount returns how many payment records exist
func (s *Store) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Pricing returns the pricing repository view
func (s *Store) Pricing() ports.PricingRepository { return pricingRepo{s} }

// Records returns the payment record repository view
func (s *Store) Records() ports.PaymentRecordRepository { return recordRepo{s} }

// Companies returns the company repository view
func (s *Store) Companies() ports.CompanyRepository { return companyRepo{s} }

// TxManager returns a transaction manager that serializes transactions and
// restores a snapshot when fn fails
func (s *Store) TxManager() ports.TransactionManager { return txManager{s} }

type txManager struct{ s *Store }

func (t txManager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.Lock()
	companies := make(map[int64]domain.Company, len(t.s.companies))
	for k, v := range t.s.companies {
		companies[k] = v
	}
	records := make(map[int64]domain.PaymentRecord, len(t.s.records))
	for k, v := range t.s.records {
		records[k] = cloneRecord(v)
	}
	t.s.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		t.s.mu.Lock()
		t.s.companies = companies
		t.s.records = records
		t.s.mu.Unlock()
		return err
	}
	return nil
}

func (t txManager) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type pricingRepo struct{ s *Store }

func (r pricingRepo) Get(_ context.Context, _ ports.DBTX, slotType domain.SlotType) (*domain.PricingEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.prices[slotType]
	if !ok {
		return nil, domain.ErrPricingNotConfigured
	}
	return &e, nil
}

func (r pricingRepo) Upsert(_ context.Context, _ ports.DBTX, entry *domain.PricingEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.UpdatedAt = r.s.now()
	r.s.prices[entry.SlotType] = *entry
	return nil
}

func (r pricingRepo) List(_ context.Context, _ ports.DBTX) ([]*domain.PricingEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.PricingEntry
	for _, st := range []domain.SlotType{domain.SlotTypeAdmin, domain.SlotTypeMember} {
		if e, ok := r.s.prices[st]; ok {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

type recordRepo struct{ s *Store }

func (r recordRepo) Create(_ context.Context, _ ports.DBTX, rec *domain.PaymentRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec.ID = r.s.nextID
	r.s.nextID++
	rec.CreatedAt = r.s.now()
	rec.Status = domain.PaymentStatusPending
	r.s.records[rec.ID] = cloneRecord(*rec)
	return nil
}

func (r recordRepo) GetByID(_ context.Context, _ ports.DBTX, id int64) (*domain.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.records[id]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeRecordNotFound, "payment record not found")
	}
	c := cloneRecord(rec)
	return &c, nil
}

func (r recordRepo) GetByGatewayIntentID(_ context.Context, _ ports.DBTX, intentID string) (*domain.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.records {
		if rec.GatewayIntentID != nil && *rec.GatewayIntentID == intentID {
			c := cloneRecord(rec)
			return &c, nil
		}
	}
	return nil, domain.NewDomainError(domain.ErrorCodeRecordNotFound, "payment record not found")
}

func (r recordRepo) SetGatewayIntentID(_ context.Context, _ ports.DBTX, id int64, intentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.records[id]
	if !ok || rec.Status != domain.PaymentStatusPending ||
		(rec.GatewayIntentID != nil && *rec.GatewayIntentID != intentID) {
		return domain.NewDomainError(domain.ErrorCodeRecordNotFound, "no pending payment record to link")
	}
	rec.GatewayIntentID = &intentID
	r.s.records[id] = rec
	return nil
}

// MarkPaid mirrors the conditional UPDATE: it matches only a pending record
// with the expected company, amount and currency.
func (r recordRepo) MarkPaid(_ context.Context, _ ports.DBTX, c domain.Completion) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.records[c.PaymentRecordID]
	if !ok || rec.Status != domain.PaymentStatusPending || rec.CompanyID != c.CompanyID ||
		!rec.Amount.Equal(c.ExpectedAmount) || rec.Currency != c.Currency {
		return false, nil
	}
	receipt, txn, paidAt := c.ReceiptNumber, c.GatewayTransactionID, r.s.now()
	rec.Status = domain.PaymentStatusPaid
	rec.ReceiptNumber = &receipt
	rec.GatewayTransactionID = &txn
	rec.PaidAt = &paidAt
	rec.NotificationSent = false
	r.s.records[rec.ID] = rec
	return true, nil
}

func (r recordRepo) MarkNotificationSent(_ context.Context, _ ports.DBTX, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.MarkNotificationErr != nil {
		return r.s.MarkNotificationErr
	}
	rec, ok := r.s.records[id]
	if ok && rec.Status == domain.PaymentStatusPaid {
		rec.NotificationSent = true
		r.s.records[id] = rec
	}
	return nil
}

func (r recordRepo) ListPendingNotifications(_ context.Context, _ ports.DBTX, paidBefore time.Time, limit int) ([]*domain.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.PaymentRecord
	for id := int64(1); id < r.s.nextID && len(out) < limit; id++ {
		rec, ok := r.s.records[id]
		if ok && rec.Status == domain.PaymentStatusPaid && !rec.NotificationSent &&
			rec.PaidAt != nil && !rec.PaidAt.After(paidBefore) {
			c := cloneRecord(rec)
			out = append(out, &c)
		}
	}
	return out, nil
}

type companyRepo struct{ s *Store }

func (r companyRepo) GetByID(_ context.Context, _ ports.DBTX, id int64) (*domain.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeRecordNotFound, "company not found")
	}
	return &c, nil
}

func (r companyRepo) CreditSlots(_ context.Context, _ ports.DBTX, companyID int64, delta domain.SlotDelta) error {
	if err := delta.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.CreditSlotsErr != nil {
		return r.s.CreditSlotsErr
	}
	c, ok := r.s.companies[companyID]
	if !ok {
		return domain.NewDomainError(domain.ErrorCodeRecordNotFound, "company not found")
	}
	r.s.companies[companyID] = c.Apply(delta)
	return nil
}

func cloneRecord(rec domain.PaymentRecord) domain.PaymentRecord {
	if rec.GatewayIntentID != nil {
		v := *rec.GatewayIntentID
		rec.GatewayIntentID = &v
	}
	if rec.GatewayTransactionID != nil {
		v := *rec.GatewayTransactionID
		rec.GatewayTransactionID = &v
	}
	if rec.ReceiptNumber != nil {
		v := *rec.ReceiptNumber
		rec.ReceiptNumber = &v
	}
	if rec.PaidAt != nil {
		v := *rec.PaidAt
		rec.PaidAt = &v
	}
	return rec
}

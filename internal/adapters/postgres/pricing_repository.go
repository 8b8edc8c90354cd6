package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
)

const (
	getPricingEntry = `
SELECT slot_type, price_per_unit, currency, updated_at
FROM pricing_entries
WHERE slot_type = $1`

	upsertPricingEntry = `
INSERT INTO pricing_entries (slot_type, price_per_unit, currency, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (slot_type) DO UPDATE
SET price_per_unit = EXCLUDED.price_per_unit,
    currency       = EXCLUDED.currency,
    updated_at     = now()
RETURNING updated_at`

	listPricingEntries = `
SELECT slot_type, price_per_unit, currency, updated_at
FROM pricing_entries
ORDER BY slot_type`
)

// PricingRepository implements ports.PricingRepository
type PricingRepository struct {
	pool ports.DBTX
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db ports.DBPort) *PricingRepository {
	return &PricingRepository{pool: db.GetDB()}
}

// Get returns the entry for slotType or domain.ErrPricingNotConfigured
func (r *PricingRepository) Get(ctx context.Context, db ports.DBTX, slotType domain.SlotType) (*domain.PricingEntry, error) {
	row := executor(r.pool, db).QueryRow(ctx, getPricingEntry, string(slotType))

	entry, err := scanPricingEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrPricingNotConfigured
		}
		return nil, fmt.Errorf("get pricing entry: %w", err)
	}
	return entry, nil
}

// Upsert writes the entry in one statement; concurrent upserts for the same
// slot type resolve to last writer wins without a unique violation.
func (r *PricingRepository) Upsert(ctx context.Context, db ports.DBTX, entry *domain.PricingEntry) error {
	price, err := decimalToNumeric(entry.PricePerUnit)
	if err != nil {
		return err
	}

	var updatedAt pgtype.Timestamptz
	err = executor(r.pool, db).
		QueryRow(ctx, upsertPricingEntry, string(entry.SlotType), price, entry.Currency).
		Scan(&updatedAt)
	if err != nil {
		return fmt.Errorf("upsert pricing entry: %w", err)
	}

	entry.UpdatedAt = updatedAt.Time
	return nil
}

// List returns every configured entry ordered by slot type
func (r *PricingRepository) List(ctx context.Context, db ports.DBTX) ([]*domain.PricingEntry, error) {
	rows, err := executor(r.pool, db).Query(ctx, listPricingEntries)
	if err != nil {
		return nil, fmt.Errorf("list pricing entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.PricingEntry
	for rows.Next() {
		entry, err := scanPricingEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pricing entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pricing entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPricingEntry(row rowScanner) (*domain.PricingEntry, error) {
	var (
		slotType  string
		price     pgtype.Numeric
		currency  string
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&slotType, &price, &currency, &updatedAt); err != nil {
		return nil, err
	}

	amount, err := pgNumericToDecimal(price)
	if err != nil {
		return nil, err
	}

	return &domain.PricingEntry{
		SlotType:     domain.SlotType(slotType),
		PricePerUnit: amount,
		Currency:     currency,
		UpdatedAt:    updatedAt.Time,
	}, nil
}

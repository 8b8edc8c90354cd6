package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SlotType identifies a purchasable seat category
type SlotType string

const (
	SlotTypeAdmin  SlotType = "admin"
	SlotTypeMember SlotType = "member"
)

// IsValid returns true for the slot types the catalog knows about
func (s SlotType) IsValid() bool {
	return s == SlotTypeAdmin || s == SlotTypeMember
}

// ParseSlotType converts user input into a SlotType
func ParseSlotType(s string) (SlotType, error) {
	st := SlotType(s)
	if !st.IsValid() {
		return "", NewDomainError(ErrorCodeValidationFailed, "slot_type must be 'admin' or 'member'").
			WithDetail("slot_type", s)
	}
	return st, nil
}

// PricingEntry is the price of one slot of a given type. One row per slot type.
type PricingEntry struct {
	UpdatedAt    time.Time       `json:"updated_at"`
	SlotType     SlotType        `json:"slot_type"`
	Currency     string          `json:"currency"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

// Total returns the authoritative charge for quantity units
func (p *PricingEntry) Total(quantity int) decimal.Decimal {
	return p.PricePerUnit.Mul(decimal.NewFromInt(int64(quantity)))
}

// SlotDelta is an additive change to a company's slot counters.
// Deltas only; absolute values are never written during reconciliation.
type SlotDelta struct {
	Admins  int
	Members int
}

// DeltaFor builds the delta credited by a purchase of quantity slots of slotType
func DeltaFor(slotType SlotType, quantity int) SlotDelta {
	switch slotType {
	case SlotTypeAdmin:
		return SlotDelta{Admins: quantity}
	case SlotTypeMember:
		return SlotDelta{Members: quantity}
	default:
		return SlotDelta{}
	}
}

// IsZero reports whether applying the delta would change nothing
func (d SlotDelta) IsZero() bool {
	return d.Admins == 0 && d.Members == 0
}

// Validate rejects negative deltas
func (d SlotDelta) Validate() error {
	if d.Admins < 0 || d.Members < 0 {
		return NewDomainError(ErrorCodeValidationFailed, "slot deltas must be non-negative").
			WithDetail("admins", d.Admins).
			WithDetail("members", d.Members)
	}
	return nil
}

// Package fixtures provides test data builders and helpers.
package fixtures

import (
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/shopspring/decimal"
)

// Default fixture ids
const (
	CompanyID      int64 = 7
	OtherCompanyID int64 = 8
)

// Company returns a company with 5 admin and 10 member slots
func Company() domain.Company {
	return domain.Company{
		ID:         CompanyID,
		Name:       "Acme Logistics",
		Email:      "billing@acme.test",
		MaxAdmins:  5,
		MaxMembers: 10,
	}
}

// AdminPrice is 500 NGN per admin slot
func AdminPrice() domain.PricingEntry {
	return domain.PricingEntry{
		SlotType:     domain.SlotTypeAdmin,
		PricePerUnit: decimal.NewFromInt(500),
		Currency:     "NGN",
		UpdatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// MemberPrice is 200 NGN per member slot
func MemberPrice() domain.PricingEntry {
	return domain.PricingEntry{
		SlotType:     domain.SlotTypeMember,
		PricePerUnit: decimal.NewFromInt(200),
		Currency:     "NGN",
		UpdatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// CompanyAdmin is an admin of the fixture company
func CompanyAdmin() domain.Actor {
	return domain.Actor{UserID: "user-admin", Role: domain.RoleAdmin, CompanyID: CompanyID}
}

// CompanyMember is a non-admin member of the fixture company
func CompanyMember() domain.Actor {
	return domain.Actor{UserID: "user-member", Role: domain.RoleMember, CompanyID: CompanyID}
}

// Operator is a platform operator
func Operator() domain.Actor {
	return domain.Actor{UserID: "ops", Role: domain.RoleOperator}
}

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// TimePtr returns a pointer to the given time.Time.
func TimePtr(t time.Time) *time.Time {
	return &t
}

package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/services/billing"
	"github.com/kevin07696/slot-billing/internal/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueryService_GetPaymentRecord(t *testing.T) {
	h := newHarness(t, nil)
	intent := h.purchase(t, domain.SlotTypeAdmin, 3)
	queries := billing.NewQueryService(h.store.Records(), h.store.Companies(), zap.NewNop())
	ctx := context.Background()

	rec, err := queries.GetPaymentRecord(ctx, fixtures.CompanyAdmin(), intent.PaymentRecordID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, rec.Status)
	assert.Equal(t, "1500", rec.Amount.String())

	_, err = queries.GetPaymentRecord(ctx, fixtures.Operator(), intent.PaymentRecordID)
	assert.NoError(t, err)

	_, err = queries.GetPaymentRecord(ctx, fixtures.CompanyMember(), intent.PaymentRecordID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	outsider := domain.Actor{UserID: "other", Role: domain.RoleAdmin, CompanyID: fixtures.OtherCompanyID}
	_, err = queries.GetPaymentRecord(ctx, outsider, intent.PaymentRecordID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = queries.GetPaymentRecord(ctx, fixtures.CompanyAdmin(), 9999)
	assert.True(t, errors.Is(err, domain.ErrRecordNotFound))

	_, err = queries.GetPaymentRecord(ctx, fixtures.CompanyAdmin(), 0)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
}

func TestQueryService_GetCompanySlots(t *testing.T) {
	h := newHarness(t, nil)
	queries := billing.NewQueryService(h.store.Records(), h.store.Companies(), zap.NewNop())
	ctx := context.Background()

	slots, err := queries.GetCompanySlots(ctx, fixtures.CompanyMember(), fixtures.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, &billing.CompanySlots{CompanyID: fixtures.CompanyID, MaxAdmins: 5, MaxMembers: 10}, slots)

	intent := h.purchase(t, domain.SlotTypeMember, 4)
	h.pay(intent)
	_, err = h.recon.VerifyPayment(ctx, fixtures.CompanyAdmin(), intent.PaymentIntentID, intent.PaymentRecordID)
	require.NoError(t, err)

	slots, err = queries.GetCompanySlots(ctx, fixtures.CompanyAdmin(), fixtures.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, 14, slots.MaxMembers)

	_, err = queries.GetCompanySlots(ctx, fixtures.CompanyMember(), fixtures.OtherCompanyID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = queries.GetCompanySlots(ctx, fixtures.Operator(), 404)
	assert.True(t, errors.Is(err, domain.ErrRecordNotFound))
}

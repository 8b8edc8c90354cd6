package pricing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"github.com/kevin07696/slot-billing/internal/services/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockPricingRepository struct {
	mock.Mock
}

func (m *MockPricingRepository) Get(ctx context.Context, db ports.DBTX, slotType domain.SlotType) (*domain.PricingEntry, error) {
	args := m.Called(ctx, db, slotType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricingEntry), args.Error(1)
}

func (m *MockPricingRepository) Upsert(ctx context.Context, db ports.DBTX, entry *domain.PricingEntry) error {
	args := m.Called(ctx, db, entry)
	return args.Error(0)
}

func (m *MockPricingRepository) List(ctx context.Context, db ports.DBTX) ([]*domain.PricingEntry, error) {
	args := m.Called(ctx, db)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PricingEntry), args.Error(1)
}

var operator = domain.Actor{UserID: "ops-1", Role: domain.RoleOperator}

func TestService_GetPrice_NotConfigured(t *testing.T) {
	repo := new(MockPricingRepository)
	svc := pricing.NewService(repo, zap.NewNop())

	repo.On("Get", mock.Anything, nil, domain.SlotTypeMember).Return(nil, domain.ErrPricingNotConfigured)

	entry, err := svc.GetPrice(context.Background(), domain.SlotTypeMember)

	assert.Nil(t, entry)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodePricingNotConfigured))
	repo.AssertExpectations(t)
}

func TestService_GetPrice_DatabaseError(t *testing.T) {
	repo := new(MockPricingRepository)
	svc := pricing.NewService(repo, zap.NewNop())

	repo.On("Get", mock.Anything, nil, domain.SlotTypeAdmin).Return(nil, errors.New("connection refused"))

	_, err := svc.GetPrice(context.Background(), domain.SlotTypeAdmin)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeDatabaseError))
}

func TestService_UpsertPrice_Success(t *testing.T) {
	repo := new(MockPricingRepository)
	svc := pricing.NewService(repo, zap.NewNop())

	repo.On("Upsert", mock.Anything, nil, mock.MatchedBy(func(e *domain.PricingEntry) bool {
		return e.SlotType == domain.SlotTypeAdmin && e.Currency == "NGN" && e.PricePerUnit.Equal(decimal.NewFromInt(500))
	})).Return(nil)

	entry, err := svc.UpsertPrice(context.Background(), operator, pricing.UpsertPriceRequest{
		SlotType:     "admin",
		PricePerUnit: decimal.NewFromInt(500),
		Currency:     " ngn ",
	})

	require.NoError(t, err)
	assert.Equal(t, "NGN", entry.Currency)
	repo.AssertExpectations(t)
}

func TestService_UpsertPrice_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		actor    domain.Actor
		req      pricing.UpsertPriceRequest
		wantCode domain.ErrorCode
	}{
		{
			name:     "company admin is not an operator",
			actor:    domain.Actor{Role: domain.RoleAdmin, CompanyID: 1},
			req:      pricing.UpsertPriceRequest{SlotType: "admin", PricePerUnit: decimal.NewFromInt(1), Currency: "USD"},
			wantCode: domain.ErrorCodeForbidden,
		},
		{
			name:     "zero price",
			actor:    operator,
			req:      pricing.UpsertPriceRequest{SlotType: "admin", PricePerUnit: decimal.Zero, Currency: "USD"},
			wantCode: domain.ErrorCodeValidationFailed,
		},
		{
			name:     "negative price",
			actor:    operator,
			req:      pricing.UpsertPriceRequest{SlotType: "member", PricePerUnit: decimal.NewFromInt(-5), Currency: "USD"},
			wantCode: domain.ErrorCodeValidationFailed,
		},
		{
			name:     "unknown currency",
			actor:    operator,
			req:      pricing.UpsertPriceRequest{SlotType: "member", PricePerUnit: decimal.NewFromInt(5), Currency: "XYZ"},
			wantCode: domain.ErrorCodeValidationFailed,
		},
		{
			name:     "sub-cent USD price",
			actor:    operator,
			req:      pricing.UpsertPriceRequest{SlotType: "admin", PricePerUnit: decimal.RequireFromString("10.005"), Currency: "USD"},
			wantCode: domain.ErrorCodeValidationFailed,
		},
		{
			name:     "fractional JPY price",
			actor:    operator,
			req:      pricing.UpsertPriceRequest{SlotType: "member", PricePerUnit: decimal.RequireFromString("500.5"), Currency: "jpy"},
			wantCode: domain.ErrorCodeValidationFailed,
		},
		{
			name:     "unknown slot type",
			actor:    operator,
			req:      pricing.UpsertPriceRequest{SlotType: "owner", PricePerUnit: decimal.NewFromInt(5), Currency: "USD"},
			wantCode: domain.ErrorCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPricingRepository)
			svc := pricing.NewService(repo, zap.NewNop())

			_, err := svc.UpsertPrice(context.Background(), tt.actor, tt.req)

			assert.Equal(t, tt.wantCode, domain.GetErrorCode(err))
			repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_UpsertPrice_MinorUnitPrecision(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		currency string
	}{
		{name: "USD cents", price: "10.01", currency: "USD"},
		{name: "USD trailing zeros", price: "10.0100", currency: "USD"},
		{name: "JPY whole yen", price: "500", currency: "JPY"},
		{name: "JPY with zero fraction", price: "500.00", currency: "JPY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPricingRepository)
			svc := pricing.NewService(repo, zap.NewNop())
			repo.On("Upsert", mock.Anything, nil, mock.Anything).Return(nil)

			_, err := svc.UpsertPrice(context.Background(), operator, pricing.UpsertPriceRequest{
				SlotType:     "admin",
				PricePerUnit: decimal.RequireFromString(tt.price),
				Currency:     tt.currency,
			})

			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

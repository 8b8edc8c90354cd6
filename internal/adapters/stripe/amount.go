package stripe

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kevin07696/slot-billing/internal/domain"
)

func exponent(currency string) int32 {
	return domain.CurrencyExponent(currency)
}

// toMinorUnits converts a major unit amount (500.00 NGN) to the integer the
// gateway expects (50000 kobo). Fractions smaller than the minor unit are rejected.
func toMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if !domain.FitsMinorUnit(amount, currency) {
		return 0, fmt.Errorf("amount %s has more precision than %s supports", amount, strings.ToUpper(currency))
	}
	minor := amount.Shift(exponent(currency))
	if minor.Sign() <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %s", amount)
	}
	return minor.IntPart(), nil
}

func fromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -exponent(currency))
}

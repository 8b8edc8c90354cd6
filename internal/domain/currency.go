package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are charged in whole units (no minor unit)
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// CurrencyExponent returns the number of minor-unit digits for an ISO 4217 code
func CurrencyExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// FitsMinorUnit reports whether amount can be expressed exactly in the
// currency's smallest unit (10.01 USD yes, 10.005 USD no, 500.5 JPY no).
func FitsMinorUnit(amount decimal.Decimal, currency string) bool {
	return amount.Shift(CurrencyExponent(currency)).IsInteger()
}

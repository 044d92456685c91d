package domain

import (
	"math"
	"strings"

	"golang.org/x/text/currency"
)

// ValidCurrency reports whether code is a well-formed ISO 4217 currency code.
func ValidCurrency(code string) bool {
	_, err := currency.ParseISO(strings.TrimSpace(code))
	return err == nil
}

// CurrencyScale returns the number of minor-unit digits for the currency,
// defaulting to 2 when the code is unknown.
func CurrencyScale(code string) int {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// RoundMinorUnits rounds a fractional minor-unit amount half away from zero.
func RoundMinorUnits(amount float64) int64 {
	return int64(math.Round(amount))
}

// FlashUnitPrice applies a percentage discount to a minor-unit price and
// rounds the result to a whole minor unit.
func FlashUnitPrice(price int64, discountPercent int64) int64 {
	if discountPercent <= 0 {
		return price
	}
	if discountPercent >= 100 {
		return 0
	}
	return RoundMinorUnits(float64(price) * float64(100-discountPercent) / 100)
}

// PercentageDiscount computes value percent of the subtotal, rounded to a
// whole minor unit.
func PercentageDiscount(subtotal int64, value int64) int64 {
	return RoundMinorUnits(float64(subtotal) * float64(value) / 100)
}

// ConvertTotal applies a caller-supplied exchange rate to a minor-unit total.
// A non-positive rate is treated as identity.
func ConvertTotal(total int64, rate float64) int64 {
	if rate <= 0 {
		return total
	}
	return RoundMinorUnits(float64(total) * rate)
}

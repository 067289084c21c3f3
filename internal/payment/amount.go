package payment

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a decimal currency amount to integer minor units
// (rupees to paise), rounding half up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to decimal currency.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

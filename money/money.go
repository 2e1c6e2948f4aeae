package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultExponent = 2

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrTooPrecise    = errors.New("amount has more decimals than the currency allows")
)

// ISO-4217 currencies whose minor unit is not the cent
var exponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// Exponent is the number of decimals of one minor unit of currency
func Exponent(currency string) int32 {
	exponent, found := exponents[strings.ToUpper(strings.TrimSpace(currency))]
	if !found {
		return DefaultExponent
	}
	return exponent
}

// Decimal converts minor units to the currency's major unit
func Decimal(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -Exponent(currency))
}

// Format renders minor units with the currency's decimals, e.g. 12500 KES is "125.00"
func Format(amount int64, currency string) string {
	return Decimal(amount, currency).StringFixed(Exponent(currency))
}

// Parse converts a major unit string such as "125.5" into minor units
func Parse(s, currency string) (amount int64, err error) {
	value, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, err)
	}
	minor := value.Shift(Exponent(currency))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s %s", ErrTooPrecise, s, currency)
	}
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, s)
	}
	return minor.IntPart(), nil
}

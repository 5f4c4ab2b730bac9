// Package money holds the display-boundary helpers for currency and weight
// amounts. Inside the core every amount stays an unrounded decimal.Decimal;
// rounding happens here, when a figure leaves the process.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// CurrencyPlaces is the number of decimal places shown for currency amounts.
	CurrencyPlaces = 2
	// QuantityPlaces is the finest fraction accepted for a sale quantity or
	// a kilogram figure (one gram).
	QuantityPlaces = 3

	// maxExponent bounds the exponent of an accepted value in both
	// directions so range checks never rescale a huge coefficient.
	maxExponent = 18
)

// MaxAmount is the largest magnitude accepted for any amount or quantity.
var MaxAmount = decimal.New(1, 9)

var (
	ErrTooPrecise = errors.New("too many decimal places")
	ErrOutOfRange = errors.New("value out of range")
)

// Parse reads a user-supplied amount. Thousands separators and surrounding
// spaces are tolerated; anything else that is not a number is rejected.
func Parse(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

// CheckAmount accepts a currency amount with at most two decimal places
// and a magnitude no larger than MaxAmount.
func CheckAmount(v decimal.Decimal) error {
	return check(v, CurrencyPlaces)
}

// CheckQuantity accepts a quantity with at most three decimal places and a
// magnitude no larger than MaxAmount.
func CheckQuantity(v decimal.Decimal) error {
	return check(v, QuantityPlaces)
}

func check(v decimal.Decimal, places int32) error {
	exp := v.Exponent()
	if exp < -maxExponent {
		return ErrTooPrecise
	}
	if exp > maxExponent {
		return ErrOutOfRange
	}
	if !v.Equal(v.Truncate(places)) {
		return ErrTooPrecise
	}
	if v.Abs().GreaterThan(MaxAmount) {
		return ErrOutOfRange
	}
	return nil
}

// Round rounds an amount to currency precision (half away from zero).
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CurrencyPlaces)
}

// Format renders an amount with thousands separators and two decimals,
// prefixed with the currency code when one is given: "KES 1,250.50".
func Format(amount decimal.Decimal, currency string) string {
	fixed := Round(amount).StringFixed(CurrencyPlaces)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := sign + b.String() + "." + frac
	if currency = strings.TrimSpace(currency); currency != "" {
		return currency + " " + out
	}
	return out
}

// FormatKg renders a kilogram figure, dropping trailing zeros: "12.5 kg".
func FormatKg(kg decimal.Decimal) string {
	return kg.Round(3).String() + " kg"
}

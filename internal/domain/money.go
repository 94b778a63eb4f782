package domain

import (
	"fmt"
	"strings"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"JPY": {},
	"KRW": {},
	"VND": {},
}

// CurrencyExponent returns the number of minor-unit digits for the currency.
func CurrencyExponent(code string) int {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return 0
	}
	return 2
}

// FormatMinorUnits renders an amount held in minor units as a plain decimal
// string for the given currency, e.g. 4999 USD minor units as "49.99".
func FormatMinorUnits(amount int64, code string) string {
	exponent := CurrencyExponent(code)
	if exponent == 0 {
		return fmt.Sprintf("%d", amount)
	}

	negative := amount < 0
	if negative {
		amount = -amount
	}

	divisor := int64(1)
	for i := 0; i < exponent; i++ {
		divisor *= 10
	}

	formatted := fmt.Sprintf("%d.%0*d", amount/divisor, exponent, amount%divisor)
	if negative {
		return "-" + formatted
	}
	return formatted
}

// FormatOrderTotal renders the order total with the currency symbol directly
// before the amount and the currency code after it, e.g. "$49.99 USD".
func FormatOrderTotal(symbol string, amount int64, code string) string {
	return symbol + FormatMinorUnits(amount, code) + " " + strings.ToUpper(strings.TrimSpace(code))
}

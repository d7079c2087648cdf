package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents) of a currency.
// Arithmetic stays in int64; decimals only appear at the edges.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// currencies whose minor unit is not 1/100
var minorExponents = map[string]int32{
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3,
}

// MinorExponent returns how many decimal digits the currency's minor unit has.
func MinorExponent(currency string) int32 {
	if e, ok := minorExponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

func Zero(currency string) Money { return Money{Currency: strings.ToUpper(currency)} }

func NewMoney(minor int64, currency string) Money {
	return Money{Amount: minor, Currency: strings.ToUpper(currency)}
}

func (m Money) IsZero() bool { return m.Amount == 0 }

func (m Money) SameCurrency(o Money) bool { return strings.EqualFold(m.Currency, o.Currency) }

func (m Money) Add(o Money) Money { return Money{Amount: m.Amount + o.Amount, Currency: m.Currency} }

func (m Money) Sub(o Money) Money { return Money{Amount: m.Amount - o.Amount, Currency: m.Currency} }

func (m Money) Mul(n int64) Money { return Money{Amount: m.Amount * n, Currency: m.Currency} }

func (m Money) Less(o Money) bool { return m.Amount < o.Amount }

// Major converts to major units for display or form round-trips.
func (m Money) Major() decimal.Decimal {
	return decimal.New(m.Amount, -MinorExponent(m.Currency))
}

// FromMajor converts a major-unit amount into Money. Amounts with more
// fractional digits than the currency allows are rejected, not rounded.
func FromMajor(d decimal.Decimal, currency string) (Money, error) {
	exp := MinorExponent(currency)
	minor := d.Shift(exp)
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, fmt.Errorf("amount %s has more than %d decimals for %s", d.String(), exp, currency)
	}
	if minor.Abs().GreaterThan(decimal.New(1, 17)) {
		return Money{}, fmt.Errorf("amount %s out of range", d.String())
	}
	return NewMoney(minor.IntPart(), currency), nil
}

// ParseMajor parses a major-unit string such as "1000.50".
func ParseMajor(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromMajor(d, currency)
}

package httpserver

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"travel_desk/internal/domain"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount in its own currency, e.g. "USD 2,700.00"
// or "JPY 12,000". This is the only place minor units become text. The
// fraction digits follow the domain's minor unit, not CLDR's.
func FormatMoney(m domain.Money) string {
	code := strings.ToUpper(m.Currency)
	if u, err := currency.ParseISO(code); err == nil {
		code = u.String()
	}
	exp := domain.MinorExponent(m.Currency)
	amount := moneyPrinter.Sprint(number.Decimal(m.Major().InexactFloat64(), number.Scale(int(exp))))
	return code + " " + amount
}

// displayMoney is Money plus its rendering, for API responses.
type displayMoney struct {
	domain.Money
	Display string `json:"display"`
}

func display(m domain.Money) displayMoney { return displayMoney{Money: m, Display: FormatMoney(m)} }

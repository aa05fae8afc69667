package currency

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const Default = money.ARS

// Format renders amount with the conventions of the given ISO code, for
// ARS "$1.234,56". Unknown codes fall back to ARS.
func Format(amount float64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	cur := money.GetCurrency(code)
	if cur == nil {
		code = Default
		cur = money.GetCurrency(code)
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), code).Display()
}

// Formatter binds a currency code.
type Formatter struct {
	Code string
}

func (f Formatter) Format(amount float64) string {
	return Format(amount, f.Code)
}

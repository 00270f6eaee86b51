package export

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts with locale grouping separators and a fixed currency suffix.
type Formatter struct {
	printer    *message.Printer
	Currency   string
	Unit       string
	DateLayout string
	Location   *time.Location
}

func NewFormatter(lang, currency, unit, dateLayout string) *Formatter {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return &Formatter{
		printer:    message.NewPrinter(tag),
		Currency:   currency,
		Unit:       unit,
		DateLayout: dateLayout,
		Location:   time.Local,
	}
}

// Number formats v with grouping and at most two fraction digits.
func (f *Formatter) Number(v float64) string {
	return f.decimal(v, 2)
}

func (f *Formatter) decimal(v float64, digits int) string {
	return f.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(digits)))
}

// Amount is Number followed by the currency, e.g. "2,500 FCFA".
func (f *Formatter) Amount(v float64) string {
	return fmt.Sprintf("%s %s", f.Number(v), f.Currency)
}

// Quantity keeps gram precision, e.g. "0.125 kg".
func (f *Formatter) Quantity(v float64) string {
	return fmt.Sprintf("%s %s", f.decimal(v, 3), f.Unit)
}

// UnitPrice is the per-unit price, e.g. "1,000 FCFA/kg".
func (f *Formatter) UnitPrice(v float64) string {
	return fmt.Sprintf("%s/%s", f.Amount(v), f.Unit)
}

func (f *Formatter) Date(t time.Time) string {
	return t.In(f.Location).Format(f.DateLayout)
}

// Package money parses user-entered amounts and formats decimals for display.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Errors returned by ParseAmount.
var (
	ErrEmpty    = errors.New("amount is empty")
	ErrTooLarge = errors.New("amount is too large")
)

// MaxAmount is the smallest magnitude ParseAmount rejects. Stored amounts
// have at most 12 integer digits and 2 fraction digits.
var MaxAmount = decimal.New(1, 12)

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// Symbols lists the currency symbols accepted in front of an amount.
const Symbols = "$€£¥₹"

var codeSymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
}

// ParseAmount parses amount text into a non-negative magnitude.
// A single leading currency symbol and a leading sign are accepted and dropped.
// What remains must be digits with at most two fraction digits, below
// MaxAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "+-")
	for _, r := range Symbols {
		if trimmed, ok := strings.CutPrefix(s, string(r)); ok {
			s = trimmed
			break
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmpty
	}

	if !amountPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("parsing amount %q: want digits with up to two decimals", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if d.GreaterThanOrEqual(MaxAmount) {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, ErrTooLarge)
	}
	return d, nil
}

// Formatter renders amounts for one locale and currency.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter returns a formatter for the given BCP 47 locale and ISO 4217
// currency code. Unknown locales fall back to English and unknown codes are
// printed as a prefix.
func NewFormatter(locale, currency string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	symbol, ok := codeSymbols[currency]
	if !ok {
		symbol = currency + " "
	}

	return &Formatter{
		printer: message.NewPrinter(tag),
		symbol:  symbol,
	}
}

// Format renders d with two fraction digits and grouping, e.g. "$1,234.50".
// Negative values keep a leading minus before the symbol.
func (f *Formatter) Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + f.symbol + f.number(d.Abs())
}

// FormatSigned is Format with an explicit "+" for positive values.
func (f *Formatter) FormatSigned(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + f.Format(d)
	}
	return f.Format(d)
}

func (f *Formatter) number(d decimal.Decimal) string {
	whole := d.Truncate(0)
	cents := d.Sub(whole).Mul(decimal.NewFromInt(100)).Round(0)
	if cents.Equal(decimal.NewFromInt(100)) {
		whole = whole.Add(decimal.NewFromInt(1))
		cents = decimal.Zero
	}
	return fmt.Sprintf("%s.%02d", f.printer.Sprintf("%d", whole.IntPart()), cents.IntPart())
}

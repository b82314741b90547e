package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain integer", input: "50", want: "50"},
		{name: "two decimals", input: "12.50", want: "12.5"},
		{name: "dollar symbol", input: "$500", want: "500"},
		{name: "rupee symbol", input: "₹200", want: "200"},
		{name: "negative becomes magnitude", input: "-75.25", want: "75.25"},
		{name: "surrounding spaces", input: "  9.99 ", want: "9.99"},
		{name: "empty", input: "", wantErr: true},
		{name: "symbol only", input: "$", wantErr: true},
		{name: "letters", input: "ten", wantErr: true},
		{name: "one decimal", input: "7.5", want: "7.5"},
		{name: "largest storable", input: "999999999999.99", want: "999999999999.99"},
		{name: "scientific notation", input: "1e3", wantErr: true},
		{name: "sub-cent fraction", input: "0.001", wantErr: true},
		{name: "three decimals", input: "12.345", wantErr: true},
		{name: "beyond storage", input: "99999999999999999999", wantErr: true},
		{name: "exactly the limit", input: "1000000000000", wantErr: true},
		{name: "thousands separator", input: "1,000", wantErr: true},
		{name: "trailing dot", input: "12.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAmountEmpty(t *testing.T) {
	if _, err := ParseAmount("   "); !errors.Is(err, ErrEmpty) {
		t.Errorf("got %v, want ErrEmpty", err)
	}
}

func TestParseAmountTooLarge(t *testing.T) {
	if _, err := ParseAmount("$1000000000000"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("got %v, want ErrTooLarge", err)
	}
}

func TestFormat(t *testing.T) {
	f := NewFormatter("en", "USD")

	tests := []struct {
		amount string
		want   string
		signed string
	}{
		{amount: "0", want: "$0.00", signed: "$0.00"},
		{amount: "12.5", want: "$12.50", signed: "+$12.50"},
		{amount: "1234.56", want: "$1,234.56", signed: "+$1,234.56"},
		{amount: "-50", want: "-$50.00", signed: "-$50.00"},
		{amount: "999.999", want: "$1,000.00", signed: "+$1,000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			d := decimal.RequireFromString(tt.amount)
			if got := f.Format(d); got != tt.want {
				t.Errorf("Format(%s) = %q, want %q", tt.amount, got, tt.want)
			}
			if got := f.FormatSigned(d); got != tt.signed {
				t.Errorf("FormatSigned(%s) = %q, want %q", tt.amount, got, tt.signed)
			}
		})
	}
}

func TestFormatUnknownCurrency(t *testing.T) {
	f := NewFormatter("not a locale", "chf")
	if got, want := f.Format(decimal.NewFromInt(3)), "CHF 3.00"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

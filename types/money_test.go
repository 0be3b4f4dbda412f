package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"EUR", EUR(10499), 10499, "eur", "€104.99"},
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"CHF", CHF(2550), 2550, "chf", "CHF 25.50"},
		{"JPY", JPY(100), 100, "jpy", "¥100"},
		{"Zero EUR", Zero("EUR"), 0, "eur", "€0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyDecimal(t *testing.T) {
	tests := []struct {
		money Money
		want  string
	}{
		{EUR(10000), "100"},
		{EUR(10499), "104.99"},
		{EUR(1), "0.01"},
		{EUR(-250), "-2.5"},
		{JPY(1234), "1234"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			want := decimal.RequireFromString(tt.want)
			if got := tt.money.Decimal(); !got.Equal(want) {
				t.Errorf("Decimal: got %s, want %s", got, want)
			}
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		want     Money
		wantErr  bool
	}{
		{"104.99", "eur", EUR(10499), false},
		{"104,99", "EUR", EUR(10499), false},
		{" 12 ", "eur", EUR(1200), false},
		{"0.005", "eur", EUR(1), false},
		{"", "eur", Zero("eur"), false},
		{"1500", "jpy", JPY(1500), false},
		{"abc", "eur", Money{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in, tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMoney(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseMoney(%q): got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return EUR(100).Add(EUR(200)) }, EUR(300)},
		{"Subtract", func() Money { return EUR(500).Subtract(EUR(200)) }, EUR(300)},
		{"Abs positive", func() Money { return EUR(100).Abs() }, EUR(100)},
		{"Abs negative", func() Money { return EUR(100).Subtract(EUR(10499)).Abs() }, EUR(10399)},
		{"Max", func() Money { return EUR(10000).Max(EUR(10499)) }, EUR(10499)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = EUR(100).Add(USD(100))
}

func TestMoneyPredicates(t *testing.T) {
	tests := []struct {
		name       string
		money      Money
		isZero     bool
		isPositive bool
		isNegative bool
	}{
		{"Zero", EUR(0), true, false, false},
		{"Positive", EUR(100), false, true, false},
		{"Negative", EUR(-100), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.IsZero(); got != tt.isZero {
				t.Errorf("IsZero: got %v, want %v", got, tt.isZero)
			}
			if got := tt.money.IsPositive(); got != tt.isPositive {
				t.Errorf("IsPositive: got %v, want %v", got, tt.isPositive)
			}
			if got := tt.money.IsNegative(); got != tt.isNegative {
				t.Errorf("IsNegative: got %v, want %v", got, tt.isNegative)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{EUR(4900), "49.00"},
		{EUR(1), "0.01"},
		{EUR(0), "0.00"},
		{EUR(-4900), "-49.00"},
		{JPY(12345), "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(EUR(10499))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"amount":10499,"currency":"eur","display":"€104.99"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", string(data), expected)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Money
		expected Money
	}{
		{"Empty", []Money{}, Zero("eur")},
		{"Single", []Money{EUR(100)}, EUR(100)},
		{"Multiple", []Money{EUR(100), EUR(200), EUR(300)}, EUR(600)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Sum(tt.values...); !result.Equal(tt.expected) {
				t.Errorf("Sum: got %v, want %v", result, tt.expected)
			}
		})
	}
}

func BenchmarkMoneyDecimal(b *testing.B) {
	m := EUR(10499)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Decimal()
	}
}

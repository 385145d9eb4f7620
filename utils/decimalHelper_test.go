package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"plain string", "1200.50", "1200.50"},
		{"thousands separator", "1,200.50", "1200.50"},
		{"currency prefix", "Rs 1,200", "1200"},
		{"inr prefix negative", "INR -500", "-500"},
		{"rupee symbol", "₹2500.75", "2500.75"},
		{"int", 500, "500"},
		{"int64", int64(12000), "12000"},
		{"float64", 99.99, "99.99"},
		{"decimal passthrough", decimal.RequireFromString("42.42"), "42.42"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("ParseAmount(%v) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, input := range []interface{}{"", "abc", nil, true} {
		if _, err := ParseAmount(input); err == nil {
			t.Fatalf("ParseAmount(%v) should fail", input)
		}
	}
}

func TestMoneyRoundsToPaise(t *testing.T) {
	if got := Money(decimal.RequireFromString("3299.666")); !got.Equal(decimal.RequireFromString("3299.67")) {
		t.Fatalf("Money = %s, want 3299.67", got)
	}
}

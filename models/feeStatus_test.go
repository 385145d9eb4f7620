package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestResolveFeeStatus(t *testing.T) {
	today := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		net     string
		paid    string
		dueDate *time.Time
		want    FeeStatus
	}{
		{"fully paid", "10000", "10000", &past, FeeStatusPaid},
		{"overpaid edge treated as paid", "10000", "10000.01", &past, FeeStatusPaid},
		{"partial payment beats overdue", "10000", "4000", &past, FeeStatusPartiallyPaid},
		{"unpaid past due", "10000", "0", &past, FeeStatusOverdue},
		{"unpaid before due", "10000", "0", &future, FeeStatusPending},
		{"unpaid no due date", "10000", "0", nil, FeeStatusPending},
		{"due today is not overdue", "10000", "0", &today, FeeStatusPending},
		{"zero net zero paid is paid", "0", "0", &past, FeeStatusPaid},
		{"one cent short stays partial", "10000", "9999.99", &past, FeeStatusPartiallyPaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveFeeStatus(d(tc.net), d(tc.paid), tc.dueDate, today)
			if got != tc.want {
				t.Fatalf("ResolveFeeStatus(%s, %s) = %q, want %q", tc.net, tc.paid, got, tc.want)
			}
		})
	}
}

func TestStudentFeeAccessors(t *testing.T) {
	fee := StudentFee{
		TotalAmount:    d("10000"),
		DiscountAmount: d("2000"),
		FineAmount:     d("160"),
		PaidAmount:     d("5000"),
	}
	if got := fee.NetAmount(); !got.Equal(d("8160")) {
		t.Fatalf("NetAmount = %s, want 8160", got)
	}
	if got := fee.BalanceAmount(); !got.Equal(d("3160")) {
		t.Fatalf("BalanceAmount = %s, want 3160", got)
	}
}

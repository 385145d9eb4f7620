package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testSchedule() []FeeInstallment {
	due := func(m time.Month) time.Time {
		return time.Date(2026, m, 10, 0, 0, 0, 0, time.UTC)
	}
	return []FeeInstallment{
		{InstallmentNumber: 1, Amount: d("3000"), PaidAmount: decimal.Zero, DueDate: due(time.April), Status: InstallmentStatusPending},
		{InstallmentNumber: 2, Amount: d("3000"), PaidAmount: decimal.Zero, DueDate: due(time.July), Status: InstallmentStatusPending},
		{InstallmentNumber: 3, Amount: d("4000"), PaidAmount: decimal.Zero, DueDate: due(time.October), Status: InstallmentStatusPending},
	}
}

func TestDistributeAcrossInstallmentsOldestFirst(t *testing.T) {
	today := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	installments := testSchedule()

	leftover := distributeAcrossInstallments(installments, d("5000"), today)
	if !leftover.IsZero() {
		t.Fatalf("leftover = %s, want 0", leftover)
	}
	if !installments[0].PaidAmount.Equal(d("3000")) || installments[0].Status != InstallmentStatusPaid {
		t.Fatalf("installment 1 = %s/%s, want 3000/Paid", installments[0].PaidAmount, installments[0].Status)
	}
	if !installments[1].PaidAmount.Equal(d("2000")) || installments[1].Status != InstallmentStatusPending {
		t.Fatalf("installment 2 = %s/%s, want 2000/Pending", installments[1].PaidAmount, installments[1].Status)
	}
	if !installments[2].PaidAmount.IsZero() {
		t.Fatalf("installment 3 = %s, want 0", installments[2].PaidAmount)
	}
}

func TestDistributeSkipsSettledInstallments(t *testing.T) {
	today := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	installments := testSchedule()
	installments[0].PaidAmount = d("3000")
	installments[0].Status = InstallmentStatusPaid

	leftover := distributeAcrossInstallments(installments, d("3500"), today)
	if !leftover.IsZero() {
		t.Fatalf("leftover = %s, want 0", leftover)
	}
	if !installments[1].PaidAmount.Equal(d("3000")) || installments[1].Status != InstallmentStatusPaid {
		t.Fatalf("installment 2 = %s/%s, want 3000/Paid", installments[1].PaidAmount, installments[1].Status)
	}
	if !installments[2].PaidAmount.Equal(d("500")) {
		t.Fatalf("installment 3 = %s, want 500", installments[2].PaidAmount)
	}
}

func TestDistributeReturnsLeftoverBeyondSchedule(t *testing.T) {
	today := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	installments := testSchedule()

	leftover := distributeAcrossInstallments(installments, d("11000"), today)
	if !leftover.Equal(d("1000")) {
		t.Fatalf("leftover = %s, want 1000", leftover)
	}
	for i := range installments {
		if installments[i].Status != InstallmentStatusPaid {
			t.Fatalf("installment %d status = %s, want Paid", i+1, installments[i].Status)
		}
	}
}

func TestReverseAcrossInstallmentsNewestFirst(t *testing.T) {
	today := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	installments := testSchedule()
	distributeAcrossInstallments(installments, d("8000"), today)
	// state: 3000 / 3000 / 2000

	leftover := reverseAcrossInstallments(installments, d("4000"), today)
	if !leftover.IsZero() {
		t.Fatalf("leftover = %s, want 0", leftover)
	}
	if !installments[2].PaidAmount.IsZero() {
		t.Fatalf("installment 3 = %s, want 0", installments[2].PaidAmount)
	}
	if !installments[1].PaidAmount.Equal(d("1000")) || installments[1].Status != InstallmentStatusPending {
		t.Fatalf("installment 2 = %s/%s, want 1000/Pending", installments[1].PaidAmount, installments[1].Status)
	}
	if !installments[0].PaidAmount.Equal(d("3000")) || installments[0].Status != InstallmentStatusPaid {
		t.Fatalf("installment 1 = %s/%s, want 3000/Paid", installments[0].PaidAmount, installments[0].Status)
	}
}

func TestReverseMarksOverdueAfterDueDate(t *testing.T) {
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	installments := testSchedule()
	distributeAcrossInstallments(installments, d("6000"), today)
	// state: 3000 / 3000 / 0, installments 1 and 2 Paid

	reverseAcrossInstallments(installments, d("3000"), today)
	if installments[1].Status != InstallmentStatusOverdue {
		t.Fatalf("installment 2 status = %s, want Overdue (due July, today August)", installments[1].Status)
	}
	if installments[0].Status != InstallmentStatusPaid {
		t.Fatalf("installment 1 status = %s, want Paid", installments[0].Status)
	}
}

func TestDistributeThenReverseRoundTrips(t *testing.T) {
	today := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	installments := testSchedule()

	distributeAcrossInstallments(installments, d("7250"), today)
	reverseAcrossInstallments(installments, d("7250"), today)

	for i := range installments {
		if !installments[i].PaidAmount.IsZero() {
			t.Fatalf("installment %d paid = %s after round trip, want 0", i+1, installments[i].PaidAmount)
		}
		if installments[i].Status == InstallmentStatusPaid {
			t.Fatalf("installment %d still Paid after full reversal", i+1)
		}
	}
}

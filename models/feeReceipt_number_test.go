package models

import (
	"regexp"
	"testing"
	"time"
)

func TestFormatReceiptNumber(t *testing.T) {
	date := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)

	got := formatReceiptNumber(date, 1)
	if got != "RCP-202604-00001" {
		t.Fatalf("formatReceiptNumber = %q, want RCP-202604-00001", got)
	}

	got = formatReceiptNumber(date, 12345)
	if got != "RCP-202604-12345" {
		t.Fatalf("formatReceiptNumber = %q, want RCP-202604-12345", got)
	}

	// sequences past the pad width keep growing instead of wrapping
	got = formatReceiptNumber(date, 123456)
	if got != "RCP-202604-123456" {
		t.Fatalf("formatReceiptNumber = %q, want RCP-202604-123456", got)
	}

	pattern := regexp.MustCompile(`^RCP-\d{6}-\d{5,}$`)
	for _, seq := range []int64{1, 99, 99999, 100000} {
		if s := formatReceiptNumber(date, seq); !pattern.MatchString(s) {
			t.Fatalf("receipt number %q does not match RCP-YYYYMM-NNNNN", s)
		}
	}
}

func TestFormatReceiptNumberMonthRollover(t *testing.T) {
	march := formatReceiptNumber(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), 250)
	april := formatReceiptNumber(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), 1)
	if march != "RCP-202603-00250" {
		t.Fatalf("march = %q", march)
	}
	if april != "RCP-202604-00001" {
		t.Fatalf("april = %q", april)
	}
}

func TestBuildInstallmentsGroupsByNumber(t *testing.T) {
	due1 := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	due2 := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	structure := &FeeStructure{
		Details: []FeeStructureDetail{
			{FeeCategoryId: 1, Amount: d("3000"), InstallmentNumber: 1, DueDate: &due1},
			{FeeCategoryId: 2, Amount: d("500"), InstallmentNumber: 1, DueDate: &due1},
			{FeeCategoryId: 1, Amount: d("3000"), InstallmentNumber: 2, DueDate: &due2},
		},
	}

	installments := buildInstallments(7, 42, structure)
	if len(installments) != 2 {
		t.Fatalf("got %d installments, want 2", len(installments))
	}
	if !installments[0].Amount.Equal(d("3500")) {
		t.Fatalf("installment 1 amount = %s, want 3500", installments[0].Amount)
	}
	if !installments[1].Amount.Equal(d("3000")) {
		t.Fatalf("installment 2 amount = %s, want 3000", installments[1].Amount)
	}

	total := installments[0].Amount.Add(installments[1].Amount)
	if !total.Equal(structureTotal(structure.Details)) {
		t.Fatalf("installment sum %s != structure total %s", total, structureTotal(structure.Details))
	}
}

func TestBuildInstallmentsSingleInstallmentHasNoRows(t *testing.T) {
	structure := &FeeStructure{
		Details: []FeeStructureDetail{
			{FeeCategoryId: 1, Amount: d("3000"), InstallmentNumber: 1},
			{FeeCategoryId: 2, Amount: d("500"), InstallmentNumber: 1},
		},
	}
	if got := buildInstallments(7, 42, structure); len(got) != 0 {
		t.Fatalf("got %d installments for single-installment structure, want 0", len(got))
	}
}

package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/fees_backend/utils"
)

func TestCalculateConcessionAmount(t *testing.T) {
	cases := []struct {
		name  string
		mode  ConcessionMode
		value string
		base  string
		want  string
	}{
		{"percentage of total", ConcessionModePercentage, "20", "10000", "2000"},
		{"percentage rounds to paise", ConcessionModePercentage, "33", "9999", "3299.67"},
		{"hundred percent", ConcessionModePercentage, "100", "10000", "10000"},
		{"zero percent", ConcessionModePercentage, "0", "10000", "0"},
		{"fixed within base", ConcessionModeFixedAmount, "1500", "10000", "1500"},
		{"fixed capped at base", ConcessionModeFixedAmount, "12000", "10000", "10000"},
		{"fixed on zero base", ConcessionModeFixedAmount, "500", "0", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CalculateConcessionAmount(tc.mode, d(tc.value), d(tc.base))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(d(tc.want)) {
				t.Fatalf("CalculateConcessionAmount(%s, %s, %s) = %s, want %s", tc.mode, tc.value, tc.base, got, tc.want)
			}
		})
	}
}

func TestCalculateConcessionAmountRejectsBadInput(t *testing.T) {
	if _, err := CalculateConcessionAmount(ConcessionModePercentage, d("120"), d("10000")); !utils.IsValidation(err) {
		t.Fatalf("expected validation error for >100 percent, got %v", err)
	}
	if _, err := CalculateConcessionAmount(ConcessionModeFixedAmount, d("-10"), d("10000")); !utils.IsValidation(err) {
		t.Fatalf("expected validation error for negative value, got %v", err)
	}
	if _, err := CalculateConcessionAmount(ConcessionMode("Sliding"), d("10"), d("10000")); !utils.IsValidation(err) {
		t.Fatalf("expected validation error for unknown mode, got %v", err)
	}
}

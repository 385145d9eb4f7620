package config

import (
	"os"
	"strconv"
	"strings"
)

// AutoFineSweepEnabled turns on the in-process daily sweep that applies
// late-payment fines to overdue student fees. When disabled the sweep can
// still be triggered through the API endpoint.
//
// Set via env:
// - AUTO_FINE_SWEEP=true
func AutoFineSweepEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTO_FINE_SWEEP")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AutoFinePercentage is the percentage of the outstanding balance applied as
// an automatic late fine by the sweep. Defaults to 2.0.
//
// Set via env:
// - AUTO_FINE_PERCENTAGE=2.5
func AutoFinePercentage() float64 {
	raw := strings.TrimSpace(os.Getenv("AUTO_FINE_PERCENTAGE"))
	if raw == "" {
		return 2.0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 2.0
	}
	return v
}

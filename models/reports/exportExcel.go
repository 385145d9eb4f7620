package reports

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

func writeHeadings(f *excelize.File, headings ...string) {
	for i, h := range headings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
	}
}

func writeExcel(w http.ResponseWriter, f *excelize.File, filename string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(w); err != nil {
		http.Error(w, "failed to write file", http.StatusInternalServerError)
	}
}

// ExportCollectionReportExcel streams the date-range collection report as an
// xlsx download.
func ExportCollectionReportExcel(ctx context.Context, w http.ResponseWriter, fromDate, toDate time.Time) error {
	report, err := GetCollectionReport(ctx, fromDate, toDate)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(exportSheet); err != nil {
		return err
	}
	writeHeadings(f, "ReceiptNumber", "PaymentDate", "Student", "AdmissionNo", "Class", "Structure", "Mode", "Amount")

	for i, r := range report.Rows {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(exportSheet, "A"+row, r.ReceiptNumber)
		f.SetCellValue(exportSheet, "B"+row, r.PaymentDate.Format("2006-01-02"))
		f.SetCellValue(exportSheet, "C"+row, r.StudentName)
		f.SetCellValue(exportSheet, "D"+row, r.AdmissionNumber)
		f.SetCellValue(exportSheet, "E"+row, r.ClassName)
		f.SetCellValue(exportSheet, "F"+row, r.StructureName)
		f.SetCellValue(exportSheet, "G"+row, r.PaymentMode)
		f.SetCellValue(exportSheet, "H"+row, r.AmountPaid.StringFixed(2))
	}

	filename := fmt.Sprintf("collection_%s_%s.xlsx", fromDate.Format("20060102"), toDate.Format("20060102"))
	writeExcel(w, f, filename)
	return nil
}

// ExportDefaulterListExcel streams the defaulter list as an xlsx download,
// guardian contact included for follow-up calls.
func ExportDefaulterListExcel(ctx context.Context, w http.ResponseWriter, sessionId int) error {
	rows, err := GetDefaulterList(ctx, sessionId, decimal.Zero)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(exportSheet); err != nil {
		return err
	}
	writeHeadings(f, "Student", "AdmissionNo", "Class", "GuardianPhone", "GuardianEmail", "OverdueFees", "DaysOverdue", "TotalBalance")

	for i, r := range rows {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(exportSheet, "A"+row, r.StudentName)
		f.SetCellValue(exportSheet, "B"+row, r.AdmissionNumber)
		f.SetCellValue(exportSheet, "C"+row, r.ClassName)
		f.SetCellValue(exportSheet, "D"+row, r.GuardianPhone)
		f.SetCellValue(exportSheet, "E"+row, r.GuardianEmail)
		f.SetCellValue(exportSheet, "F"+row, r.OverdueFees)
		f.SetCellValue(exportSheet, "G"+row, r.DaysOverdue)
		f.SetCellValue(exportSheet, "H"+row, r.TotalBalance.StringFixed(2))
	}

	writeExcel(w, f, fmt.Sprintf("defaulters_session_%d.xlsx", sessionId))
	return nil
}

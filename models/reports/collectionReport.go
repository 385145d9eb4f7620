package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/shopspring/decimal"
)

// CollectionReportRow is one receipt line of the collection report.
type CollectionReportRow struct {
	ReceiptNumber   string          `json:"receiptNumber"`
	PaymentDate     time.Time       `json:"paymentDate"`
	PaymentMode     string          `json:"paymentMode"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	StudentName     string          `json:"studentName"`
	AdmissionNumber string          `json:"admissionNumber"`
	ClassName       string          `json:"className"`
	StructureName   string          `json:"structureName"`
}

// CollectionReport is the date-range collection listing plus its mode split.
type CollectionReport struct {
	FromDate       time.Time                  `json:"fromDate"`
	ToDate         time.Time                  `json:"toDate"`
	Rows           []*CollectionReportRow     `json:"rows"`
	TotalCollected decimal.Decimal            `json:"totalCollected"`
	ModeSplit      map[string]decimal.Decimal `json:"modeSplit"`
}

func GetCollectionReport(ctx context.Context, fromDate, toDate time.Time) (*CollectionReport, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	sql := `
SELECT
    fr.receipt_number,
    fr.payment_date,
    fr.payment_mode,
    fr.amount_paid,
    students.full_name AS student_name,
    students.admission_number,
    CONCAT(classes.class_name, ' ', classes.section) AS class_name,
    fee_structures.structure_name
FROM
    fee_receipts fr
    INNER JOIN student_fees sf ON sf.id = fr.student_fee_id
    INNER JOIN students ON students.id = sf.student_id
    LEFT JOIN classes ON classes.id = students.class_id
    LEFT JOIN fee_structures ON fee_structures.id = sf.fee_structure_id
WHERE
    fr.tenant_id = @tenantId
    AND fr.status = 'Verified'
    AND fr.payment_date BETWEEN @fromDate AND @toDate
ORDER BY
    fr.payment_date, fr.receipt_number;
`

	from := utils.DateOnly(fromDate)
	to := utils.DateOnly(toDate)

	db := config.GetDB()
	var rows []*CollectionReportRow
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"tenantId": tenantId,
		"fromDate": from,
		"toDate":   to,
	}).Scan(&rows).Error; err != nil {
		return nil, err
	}

	report := &CollectionReport{
		FromDate:  from,
		ToDate:    to,
		Rows:      rows,
		ModeSplit: map[string]decimal.Decimal{},
	}
	for _, r := range rows {
		report.TotalCollected = report.TotalCollected.Add(r.AmountPaid)
		report.ModeSplit[r.PaymentMode] = report.ModeSplit[r.PaymentMode].Add(r.AmountPaid)
	}
	return report, nil
}

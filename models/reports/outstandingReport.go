package reports

import (
	"context"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/shopspring/decimal"
)

// OutstandingRow is one student fee with money still owed, net and balance
// recomputed from the child rows rather than the stored accumulators.
type OutstandingRow struct {
	StudentFeeId    int64           `json:"studentFeeId"`
	StudentId       int             `json:"studentId"`
	StudentName     string          `json:"studentName"`
	AdmissionNumber string          `json:"admissionNumber"`
	ClassName       string          `json:"className"`
	StructureName   string          `json:"structureName"`
	NetAmount       decimal.Decimal `json:"netAmount"`
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	BalanceAmount   decimal.Decimal `json:"balanceAmount"`
	Status          string          `json:"status"`
}

// outstandingSQL derives net and balance per fee from the concession, fine
// and receipt tables, so the report holds even if an accumulator drifted.
const outstandingSQL = `
SELECT
    sf.id AS student_fee_id,
    sf.student_id,
    students.full_name AS student_name,
    students.admission_number,
    CONCAT(classes.class_name, ' ', classes.section) AS class_name,
    fee_structures.structure_name,
    sf.total_amount - COALESCE(conc.total_discount, 0) + COALESCE(fn.total_fine, 0) AS net_amount,
    COALESCE(rc.total_paid, 0) AS paid_amount,
    sf.total_amount - COALESCE(conc.total_discount, 0) + COALESCE(fn.total_fine, 0) - COALESCE(rc.total_paid, 0) AS balance_amount,
    sf.status
FROM
    student_fees sf
    INNER JOIN students ON students.id = sf.student_id
    LEFT JOIN classes ON classes.id = students.class_id
    LEFT JOIN fee_structures ON fee_structures.id = sf.fee_structure_id
    LEFT JOIN (
        SELECT student_fee_id, SUM(actual_discount) AS total_discount
        FROM student_fee_concessions
        WHERE tenant_id = @tenantId AND is_active = 1
        GROUP BY student_fee_id
    ) conc ON conc.student_fee_id = sf.id
    LEFT JOIN (
        SELECT student_fee_id, SUM(fine_amount) AS total_fine
        FROM fee_fines
        WHERE tenant_id = @tenantId AND waived = 0
        GROUP BY student_fee_id
    ) fn ON fn.student_fee_id = sf.id
    LEFT JOIN (
        SELECT student_fee_id, SUM(amount_paid) AS total_paid
        FROM fee_receipts
        WHERE tenant_id = @tenantId AND status = 'Verified'
        GROUP BY student_fee_id
    ) rc ON rc.student_fee_id = sf.id
WHERE
    sf.tenant_id = @tenantId
    AND sf.session_id = @sessionId
HAVING
    balance_amount > 0
ORDER BY
    balance_amount DESC;
`

func GetOutstandingReport(ctx context.Context, sessionId int) ([]*OutstandingRow, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	db := config.GetDB()
	var rows []*OutstandingRow
	if err := db.WithContext(ctx).Raw(outstandingSQL, map[string]interface{}{
		"tenantId":  tenantId,
		"sessionId": sessionId,
	}).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClassCollectionRow is one class's collection performance for a session.
type ClassCollectionRow struct {
	ClassId           int             `json:"classId"`
	ClassName         string          `json:"className"`
	StudentCount      int             `json:"studentCount"`
	TotalNet          decimal.Decimal `json:"totalNet"`
	TotalPaid         decimal.Decimal `json:"totalPaid"`
	CollectionPercent decimal.Decimal `json:"collectionPercent"`
}

func GetClassWiseCollection(ctx context.Context, sessionId int) ([]*ClassCollectionRow, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	sql := `
SELECT
    classes.id AS class_id,
    CONCAT(classes.class_name, ' ', classes.section) AS class_name,
    COUNT(DISTINCT sf.student_id) AS student_count,
    SUM(sf.total_amount - COALESCE(conc.total_discount, 0) + COALESCE(fn.total_fine, 0)) AS total_net,
    SUM(COALESCE(rc.total_paid, 0)) AS total_paid,
    ROUND(
        SUM(COALESCE(rc.total_paid, 0)) * 100 /
        NULLIF(SUM(sf.total_amount - COALESCE(conc.total_discount, 0) + COALESCE(fn.total_fine, 0)), 0),
    2) AS collection_percent
FROM
    student_fees sf
    INNER JOIN students ON students.id = sf.student_id
    INNER JOIN classes ON classes.id = students.class_id
    LEFT JOIN (
        SELECT student_fee_id, SUM(actual_discount) AS total_discount
        FROM student_fee_concessions
        WHERE tenant_id = @tenantId AND is_active = 1
        GROUP BY student_fee_id
    ) conc ON conc.student_fee_id = sf.id
    LEFT JOIN (
        SELECT student_fee_id, SUM(fine_amount) AS total_fine
        FROM fee_fines
        WHERE tenant_id = @tenantId AND waived = 0
        GROUP BY student_fee_id
    ) fn ON fn.student_fee_id = sf.id
    LEFT JOIN (
        SELECT student_fee_id, SUM(amount_paid) AS total_paid
        FROM fee_receipts
        WHERE tenant_id = @tenantId AND status = 'Verified'
        GROUP BY student_fee_id
    ) rc ON rc.student_fee_id = sf.id
WHERE
    sf.tenant_id = @tenantId
    AND sf.session_id = @sessionId
GROUP BY
    classes.id, classes.class_name, classes.section
ORDER BY
    classes.class_name, classes.section;
`

	db := config.GetDB()
	var rows []*ClassCollectionRow
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"tenantId":  tenantId,
		"sessionId": sessionId,
	}).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DefaulterRow is one student whose overdue balance crosses the threshold,
// with guardian contact for follow-up.
type DefaulterRow struct {
	StudentId       int             `json:"studentId"`
	StudentName     string          `json:"studentName"`
	AdmissionNumber string          `json:"admissionNumber"`
	ClassName       string          `json:"className"`
	GuardianPhone   string          `json:"guardianPhone"`
	GuardianEmail   string          `json:"guardianEmail"`
	OverdueFees     int             `json:"overdueFees"`
	DaysOverdue     int             `json:"daysOverdue"`
	TotalBalance    decimal.Decimal `json:"totalBalance"`
}

func GetDefaulterList(ctx context.Context, sessionId int, minBalance decimal.Decimal) ([]*DefaulterRow, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	sql := `
SELECT
    students.id AS student_id,
    students.full_name AS student_name,
    students.admission_number,
    CONCAT(classes.class_name, ' ', classes.section) AS class_name,
    students.guardian_phone,
    students.guardian_email,
    COUNT(sf.id) AS overdue_fees,
    DATEDIFF(CURRENT_DATE(), MIN(sf.due_date)) AS days_overdue,
    SUM(sf.total_amount - COALESCE(conc.total_discount, 0) + COALESCE(fn.total_fine, 0) - COALESCE(rc.total_paid, 0)) AS total_balance
FROM
    student_fees sf
    INNER JOIN students ON students.id = sf.student_id
    LEFT JOIN classes ON classes.id = students.class_id
    LEFT JOIN (
        SELECT student_fee_id, SUM(actual_discount) AS total_discount
        FROM student_fee_concessions
        WHERE tenant_id = @tenantId AND is_active = 1
        GROUP BY student_fee_id
    ) conc ON conc.student_fee_id = sf.id
    LEFT JOIN (
        SELECT student_fee_id, SUM(fine_amount) AS total_fine
        FROM fee_fines
        WHERE tenant_id = @tenantId AND waived = 0
        GROUP BY student_fee_id
    ) fn ON fn.student_fee_id = sf.id
    LEFT JOIN (
        SELECT student_fee_id, SUM(amount_paid) AS total_paid
        FROM fee_receipts
        WHERE tenant_id = @tenantId AND status = 'Verified'
        GROUP BY student_fee_id
    ) rc ON rc.student_fee_id = sf.id
WHERE
    sf.tenant_id = @tenantId
    AND sf.session_id = @sessionId
    AND sf.due_date IS NOT NULL
    AND sf.due_date < CURRENT_DATE()
GROUP BY
    students.id, students.full_name, students.admission_number,
    classes.class_name, classes.section,
    students.guardian_phone, students.guardian_email
HAVING
    total_balance >= @minBalance
ORDER BY
    total_balance DESC;
`

	db := config.GetDB()
	var rows []*DefaulterRow
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"tenantId":   tenantId,
		"sessionId":  sessionId,
		"minBalance": minBalance,
	}).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

package models

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StudentFee is the ledger aggregate: one row per (student, session,
// structure). total_amount is frozen at assignment; discount_amount,
// fine_amount and paid_amount are accumulators maintained by the concession,
// fine and payment paths. net/balance are never stored; CalculateTotals is
// the single source of truth and the accessors below mirror it.
type StudentFee struct {
	ID             int64           `gorm:"primary_key" json:"id"`
	TenantId       int             `gorm:"uniqueIndex:unique_student_session_fee;index;not null" json:"tenant_id"`
	StudentId      int             `gorm:"uniqueIndex:unique_student_session_fee;index;not null" json:"student_id"`
	SessionId      int             `gorm:"uniqueIndex:unique_student_session_fee;index;not null" json:"session_id"`
	FeeStructureId int64           `gorm:"uniqueIndex:unique_student_session_fee;index;not null" json:"fee_structure_id"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"discount_amount"`
	FineAmount     decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"fine_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"paid_amount"`
	DiscountReason string          `gorm:"type:text" json:"discount_reason"`
	Status         FeeStatus       `gorm:"type:varchar(20);index;default:'Pending'" json:"status"`
	AssignedDate   time.Time       `gorm:"index" json:"assigned_date"`
	DueDate        *time.Time      `json:"due_date"`
	Remarks        string          `gorm:"type:text" json:"remarks"`
	CreatedBy      int             `gorm:"default:null" json:"created_by"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Concessions  []StudentFeeConcession `gorm:"foreignKey:StudentFeeId" json:"concessions,omitempty"`
	Fines        []FeeFine              `gorm:"foreignKey:StudentFeeId" json:"fines,omitempty"`
	Receipts     []FeeReceipt           `gorm:"foreignKey:StudentFeeId" json:"receipts,omitempty"`
	Installments []FeeInstallment       `gorm:"foreignKey:StudentFeeId" json:"installments,omitempty"`
}

// NetAmount = total - discount + fine.
func (sf *StudentFee) NetAmount() decimal.Decimal {
	return sf.TotalAmount.Sub(sf.DiscountAmount).Add(sf.FineAmount)
}

// BalanceAmount = net - paid. Never negative by construction: payments that
// would overshoot are rejected before they land.
func (sf *StudentFee) BalanceAmount() decimal.Decimal {
	return sf.NetAmount().Sub(sf.PaidAmount)
}

// ResolveFeeStatus computes the lifecycle status from the ledger numbers.
// Status is never set directly by a caller; every mutation re-resolves it
// through this function.
func ResolveFeeStatus(netAmount, paidAmount decimal.Decimal, dueDate *time.Time, today time.Time) FeeStatus {
	if paidAmount.GreaterThanOrEqual(netAmount) {
		return FeeStatusPaid
	}
	if paidAmount.GreaterThan(decimal.Zero) {
		return FeeStatusPartiallyPaid
	}
	if dueDate != nil && today.After(*dueDate) {
		return FeeStatusOverdue
	}
	return FeeStatusPending
}

// FeeBreakdown is the read-side projection of one student fee's ledger,
// recomputed from the underlying rows (not from the accumulators).
type FeeBreakdown struct {
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FineAmount     decimal.Decimal `json:"fine_amount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	BalanceAmount  decimal.Decimal `json:"balance_amount"`
	Status         FeeStatus       `json:"status"`
}

// calculateTotalsTx recomputes the breakdown inside the caller's transaction:
// active concessions, non-waived fines and verified receipts are summed from
// their rows. Every mutating path calls this after writing, so the
// accumulators on StudentFee can never drift without being corrected.
func calculateTotalsTx(ctx context.Context, tx *gorm.DB, studentFee *StudentFee, today time.Time) (*FeeBreakdown, error) {
	var totalDiscount, totalFine, totalPaid decimal.Decimal

	err := tx.WithContext(ctx).Model(&StudentFeeConcession{}).
		Where("tenant_id = ? AND student_fee_id = ? AND is_active = ?", studentFee.TenantId, studentFee.ID, true).
		Select("COALESCE(SUM(actual_discount), 0)").
		Scan(&totalDiscount).Error
	if err != nil {
		return nil, err
	}

	err = tx.WithContext(ctx).Model(&FeeFine{}).
		Where("tenant_id = ? AND student_fee_id = ? AND waived = ?", studentFee.TenantId, studentFee.ID, false).
		Select("COALESCE(SUM(fine_amount), 0)").
		Scan(&totalFine).Error
	if err != nil {
		return nil, err
	}

	err = tx.WithContext(ctx).Model(&FeeReceipt{}).
		Where("tenant_id = ? AND student_fee_id = ? AND status = ?", studentFee.TenantId, studentFee.ID, PaymentStatusVerified).
		Select("COALESCE(SUM(amount_paid), 0)").
		Scan(&totalPaid).Error
	if err != nil {
		return nil, err
	}

	netAmount := studentFee.TotalAmount.Sub(totalDiscount).Add(totalFine)
	balance := netAmount.Sub(totalPaid)

	return &FeeBreakdown{
		TotalAmount:    studentFee.TotalAmount,
		DiscountAmount: totalDiscount,
		FineAmount:     totalFine,
		NetAmount:      netAmount,
		PaidAmount:     totalPaid,
		BalanceAmount:  balance,
		Status:         ResolveFeeStatus(netAmount, totalPaid, studentFee.DueDate, today),
	}, nil
}

// applyBreakdownTx writes a freshly computed breakdown back onto the
// aggregate row. Callers hold the row lock from fetchStudentFeeForUpdate.
func applyBreakdownTx(ctx context.Context, tx *gorm.DB, studentFee *StudentFee, breakdown *FeeBreakdown) error {
	studentFee.DiscountAmount = breakdown.DiscountAmount
	studentFee.FineAmount = breakdown.FineAmount
	studentFee.PaidAmount = breakdown.PaidAmount
	studentFee.Status = breakdown.Status
	return tx.WithContext(ctx).Model(studentFee).Updates(map[string]interface{}{
		"discount_amount": breakdown.DiscountAmount,
		"fine_amount":     breakdown.FineAmount,
		"paid_amount":     breakdown.PaidAmount,
		"status":          breakdown.Status,
	}).Error
}

// CalculateTotals recomputes one student fee's ledger breakdown.
func CalculateTotals(ctx context.Context, studentFeeId int64) (*FeeBreakdown, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	studentFee, err := utils.FetchModel[StudentFee](ctx, tenantId, studentFeeId)
	if err != nil {
		return nil, utils.NewNotFoundError("student fee")
	}
	return calculateTotalsTx(ctx, config.GetDB(), studentFee, utils.Today())
}

// fetchStudentFeeForUpdate loads the aggregate row with an exclusive row lock
// so concurrent ledger mutations on the same fee serialize. Must run inside a
// transaction.
func fetchStudentFeeForUpdate(ctx context.Context, tx *gorm.DB, tenantId int, id int64) (*StudentFee, error) {
	var result StudentFee
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ?", tenantId).
		First(&result, id).Error
	if err != nil {
		return nil, utils.NewNotFoundError("student fee")
	}
	return &result, nil
}

type NewStudentFeeAssignment struct {
	StudentId      int   `json:"student_id" validate:"required"`
	SessionId      int   `json:"session_id" validate:"required"`
	FeeStructureId int64 `json:"fee_structure_id" validate:"required"`
}

// AssignFeeToStudent creates the ledger aggregate for one student under one
// structure. Idempotent: an existing (tenant, student, session, structure)
// assignment is returned unchanged. Installment rows are created when the
// structure splits into more than one installment number; their amounts sum
// to total_amount by construction.
func AssignFeeToStudent(ctx context.Context, input *NewStudentFeeAssignment) (*StudentFee, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()

	var existing StudentFee
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND student_id = ? AND session_id = ? AND fee_structure_id = ?",
			tenantId, input.StudentId, input.SessionId, input.FeeStructureId).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}

	structure, err := utils.FetchModel[FeeStructure](ctx, tenantId, input.FeeStructureId, "Details")
	if err != nil {
		return nil, utils.NewNotFoundError("fee structure")
	}
	if err := utils.ValidateResourceId[Student](ctx, tenantId, input.StudentId); err != nil {
		return nil, utils.NewNotFoundError("student")
	}

	studentFee := StudentFee{
		TenantId:       tenantId,
		StudentId:      input.StudentId,
		SessionId:      input.SessionId,
		FeeStructureId: input.FeeStructureId,
		TotalAmount:    structureTotal(structure.Details),
		Status:         FeeStatusPending,
		AssignedDate:   utils.Today(),
		DueDate:        structure.ValidTo,
		CreatedBy:      userId,
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&studentFee).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	installments := buildInstallments(tenantId, studentFee.ID, structure)
	if len(installments) > 0 {
		if err := tx.WithContext(ctx).Create(&installments).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &studentFee, nil
}

// buildInstallments groups structure details by installment number and sums
// the amounts per group. A single-installment structure produces no rows: the
// aggregate itself carries the schedule.
func buildInstallments(tenantId int, studentFeeId int64, structure *FeeStructure) []FeeInstallment {
	type group struct {
		amount  decimal.Decimal
		dueDate *time.Time
	}
	groups := map[int]*group{}
	for i := range structure.Details {
		d := &structure.Details[i]
		g, ok := groups[d.InstallmentNumber]
		if !ok {
			due := d.DueDate
			if due == nil {
				due = structure.ValidTo
			}
			g = &group{amount: decimal.Zero, dueDate: due}
			groups[d.InstallmentNumber] = g
		}
		g.amount = g.amount.Add(d.Amount)
	}
	if len(groups) <= 1 {
		return nil
	}

	numbers := make([]int, 0, len(groups))
	for n := range groups {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	installments := make([]FeeInstallment, 0, len(numbers))
	for _, n := range numbers {
		g := groups[n]
		due := utils.Today()
		if g.dueDate != nil {
			due = *g.dueDate
		}
		installments = append(installments, FeeInstallment{
			TenantId:          tenantId,
			StudentFeeId:      studentFeeId,
			InstallmentNumber: n,
			InstallmentName:   installmentName(n),
			DueDate:           due,
			Amount:            g.amount,
			Status:            InstallmentStatusPending,
		})
	}
	return installments
}

// BulkAssignFeesToClass assigns one structure to every active student of a
// class. Items are isolated: a failing student is logged and skipped, and the
// count of successful assignments is returned.
func BulkAssignFeesToClass(ctx context.Context, classId int, sessionId int, feeStructureId int64) (int, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return 0, utils.NewValidationError("tenant id is required")
	}

	students, err := getActiveStudentsByClass(ctx, tenantId, classId)
	if err != nil {
		return 0, err
	}

	logger := config.GetLogger()
	count := 0
	for _, student := range students {
		_, err := AssignFeeToStudent(ctx, &NewStudentFeeAssignment{
			StudentId:      student.ID,
			SessionId:      sessionId,
			FeeStructureId: feeStructureId,
		})
		if err != nil {
			config.LogError(logger, "studentFee.go", "BulkAssignFeesToClass", "AssignFeeToStudent", student.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

// DeleteStudentFee removes an assignment that has never collected money.
// Fees with verified payments (or any receipts at all) must have their
// receipts reversed first.
func DeleteStudentFee(ctx context.Context, id int64) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return utils.NewValidationError("tenant id is required")
	}

	studentFee, err := utils.FetchModel[StudentFee](ctx, tenantId, id)
	if err != nil {
		return utils.NewNotFoundError("student fee")
	}
	if studentFee.PaidAmount.GreaterThan(decimal.Zero) {
		return utils.NewValidationError("cannot delete student fee: payments have already been received")
	}
	receipts, err := utils.ResourceCountWhere[FeeReceipt](ctx, tenantId, "student_fee_id = ?", id)
	if err != nil {
		return err
	}
	if receipts > 0 {
		return utils.NewValidationError("cannot delete student fee: receipts exist for this fee")
	}

	db := config.GetDB()
	tx := db.Begin()
	for _, child := range []interface{}{&StudentFeeConcession{}, &FeeFine{}, &FeeInstallment{}} {
		if err := tx.WithContext(ctx).Where("student_fee_id = ?", id).Delete(child).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.WithContext(ctx).Delete(studentFee).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func GetStudentFee(ctx context.Context, id int64) (*StudentFee, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	result, err := utils.FetchModel[StudentFee](ctx, tenantId, id, "Concessions", "Fines", "Receipts", "Installments")
	if err != nil {
		return nil, utils.NewNotFoundError("student fee")
	}
	return result, nil
}

func GetStudentFees(ctx context.Context, studentId *int, sessionId *int, status *FeeStatus) ([]*StudentFee, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if studentId != nil && *studentId > 0 {
		dbCtx = dbCtx.Where("student_id = ?", *studentId)
	}
	if sessionId != nil && *sessionId > 0 {
		dbCtx = dbCtx.Where("session_id = ?", *sessionId)
	}
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*StudentFee
	if err := dbCtx.Order("assigned_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// StudentFeeDetails is the full projection served to fee-detail screens:
// the recomputed breakdown plus receipts and installments.
type StudentFeeDetails struct {
	StudentFee   *StudentFee      `json:"student_fee"`
	Breakdown    *FeeBreakdown    `json:"breakdown"`
	Receipts     []FeeReceipt     `json:"receipts"`
	Installments []FeeInstallment `json:"installments"`
}

func GetStudentFeeDetails(ctx context.Context, id int64) (*StudentFeeDetails, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	studentFee, err := utils.FetchModel[StudentFee](ctx, tenantId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("student fee")
	}

	breakdown, err := calculateTotalsTx(ctx, config.GetDB(), studentFee, utils.Today())
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var receipts []FeeReceipt
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND student_fee_id = ? AND status = ?", tenantId, id, PaymentStatusVerified).
		Order("payment_date DESC").
		Find(&receipts).Error; err != nil {
		return nil, err
	}

	installments, err := loadInstallmentsAsc(ctx, db, tenantId, id)
	if err != nil {
		return nil, err
	}

	return &StudentFeeDetails{
		StudentFee:   studentFee,
		Breakdown:    breakdown,
		Receipts:     receipts,
		Installments: installments,
	}, nil
}

package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/shopspring/decimal"
)

// FeeFine is one penalty on one student fee. A fine is never deleted; waiving
// sets waived=true and the row stays for the audit trail.
type FeeFine struct {
	ID           int64           `gorm:"primary_key" json:"id"`
	TenantId     int             `gorm:"index;not null" json:"tenant_id"`
	StudentFeeId int64           `gorm:"index;not null" json:"student_fee_id"`
	FineType     FineType        `gorm:"type:varchar(30);not null" json:"fine_type"`
	FineAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"fine_amount"`
	Reason       string          `gorm:"type:text" json:"reason"`
	FineDate     time.Time       `gorm:"index;not null" json:"fine_date"`
	Waived       bool            `gorm:"default:false" json:"waived"`
	WaivedBy     int             `gorm:"default:null" json:"waived_by"`
	WaivedReason string          `gorm:"type:text" json:"waived_reason"`
	IsAutomatic  bool            `gorm:"default:false" json:"is_automatic"`
	CreatedBy    int             `gorm:"default:null" json:"created_by"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFine struct {
	StudentFeeId int64           `json:"student_fee_id" validate:"required"`
	FineType     FineType        `json:"fine_type" validate:"required"`
	FineAmount   decimal.Decimal `json:"fine_amount" validate:"required"`
	Reason       string          `json:"reason"`
	FineDate     *time.Time      `json:"fine_date"`
}

// ApplyFine records a penalty against a student fee and recomputes the
// aggregate under a row lock.
func ApplyFine(ctx context.Context, input *NewFine) (*FeeFine, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if _, err := ParseFineType(string(input.FineType)); err != nil {
		return nil, utils.NewValidationError("invalid fine type")
	}
	if !input.FineAmount.GreaterThan(decimal.Zero) {
		return nil, utils.NewValidationError("fine amount must be positive")
	}

	fineDate := utils.Today()
	if input.FineDate != nil {
		fineDate = utils.DateOnly(*input.FineDate)
	}

	db := config.GetDB()
	tx := db.Begin()

	studentFee, err := fetchStudentFeeForUpdate(ctx, tx, tenantId, input.StudentFeeId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	fine := FeeFine{
		TenantId:     tenantId,
		StudentFeeId: input.StudentFeeId,
		FineType:     input.FineType,
		FineAmount:   utils.Money(input.FineAmount),
		Reason:       input.Reason,
		FineDate:     fineDate,
		CreatedBy:    userId,
	}
	if err := tx.WithContext(ctx).Create(&fine).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	breakdown, err := calculateTotalsTx(ctx, tx, studentFee, utils.Today())
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := applyBreakdownTx(ctx, tx, studentFee, breakdown); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &fine, nil
}

// WaiveFine cancels a fine's effect on the ledger without deleting the row.
func WaiveFine(ctx context.Context, id int64, reason string) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return utils.NewValidationError("tenant id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	fine, err := utils.FetchModel[FeeFine](ctx, tenantId, id)
	if err != nil {
		return utils.NewNotFoundError("fine")
	}
	if fine.Waived {
		return nil
	}

	db := config.GetDB()
	tx := db.Begin()

	studentFee, err := fetchStudentFeeForUpdate(ctx, tx, tenantId, fine.StudentFeeId)
	if err != nil {
		tx.Rollback()
		return err
	}

	err = tx.WithContext(ctx).Model(fine).Updates(map[string]interface{}{
		"waived":        true,
		"waived_by":     userId,
		"waived_reason": reason,
	}).Error
	if err != nil {
		tx.Rollback()
		return err
	}

	breakdown, err := calculateTotalsTx(ctx, tx, studentFee, utils.Today())
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := applyBreakdownTx(ctx, tx, studentFee, breakdown); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// AutoApplyLateFines sweeps all overdue unpaid fees of one tenant and applies
// a late payment fine of the configured percentage of the outstanding
// balance. Idempotent per day: a fee that already carries an automatic late
// payment fine dated today is skipped. Items are isolated; the count of fines
// applied is returned.
func AutoApplyLateFines(ctx context.Context, tenantId int) (int, error) {
	today := utils.Today()
	percentage := decimal.NewFromFloat(config.AutoFinePercentage())

	db := config.GetDB()
	var candidates []StudentFee
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND due_date IS NOT NULL AND due_date < ? AND status IN ?",
			tenantId, today, []FeeStatus{FeeStatusPending, FeeStatusPartiallyPaid, FeeStatusOverdue}).
		Find(&candidates).Error
	if err != nil {
		return 0, err
	}

	logger := config.GetLogger()
	count := 0
	for _, fee := range candidates {
		applied, err := autoFineOne(ctx, tenantId, fee.ID, percentage, today)
		if err != nil {
			config.LogError(logger, "feeFine.go", "AutoApplyLateFines", "autoFineOne", fee.ID, err)
			continue
		}
		if applied {
			count++
		}
	}
	return count, nil
}

func autoFineOne(ctx context.Context, tenantId int, studentFeeId int64, percentage decimal.Decimal, today time.Time) (bool, error) {
	db := config.GetDB()
	tx := db.Begin()

	studentFee, err := fetchStudentFeeForUpdate(ctx, tx, tenantId, studentFeeId)
	if err != nil {
		tx.Rollback()
		return false, err
	}

	// idempotency guard: one automatic late fine per fee per day
	var existing int64
	err = tx.WithContext(ctx).Model(&FeeFine{}).
		Where("tenant_id = ? AND student_fee_id = ? AND fine_type = ? AND fine_date = ? AND is_automatic = ?",
			tenantId, studentFeeId, FineTypeLatePayment, today, true).
		Count(&existing).Error
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if existing > 0 {
		tx.Rollback()
		return false, nil
	}

	breakdown, err := calculateTotalsTx(ctx, tx, studentFee, today)
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if !breakdown.BalanceAmount.GreaterThan(decimal.Zero) {
		tx.Rollback()
		return false, nil
	}

	fineAmount := utils.Money(breakdown.BalanceAmount.Mul(percentage).Div(decimal.NewFromInt(100)))
	if !fineAmount.GreaterThan(decimal.Zero) {
		tx.Rollback()
		return false, nil
	}

	fine := FeeFine{
		TenantId:     tenantId,
		StudentFeeId: studentFeeId,
		FineType:     FineTypeLatePayment,
		FineAmount:   fineAmount,
		Reason:       "Automatic late payment fine",
		FineDate:     today,
		IsAutomatic:  true,
	}
	if err := tx.WithContext(ctx).Create(&fine).Error; err != nil {
		tx.Rollback()
		return false, err
	}

	after, err := calculateTotalsTx(ctx, tx, studentFee, today)
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if err := applyBreakdownTx(ctx, tx, studentFee, after); err != nil {
		tx.Rollback()
		return false, err
	}
	if err := tx.Commit().Error; err != nil {
		return false, err
	}
	return true, nil
}

package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/shopspring/decimal"
)

// StudentFeeConcession is one discount granted on one student fee.
// ActualDiscount is frozen at grant time from the fee's total as it stood
// then; later changes to the fee never restate an existing concession.
type StudentFeeConcession struct {
	ID              int64           `gorm:"primary_key" json:"id"`
	TenantId        int             `gorm:"index;not null" json:"tenant_id"`
	StudentFeeId    int64           `gorm:"index;not null" json:"student_fee_id"`
	ConcessionType  ConcessionType  `gorm:"type:varchar(30);not null" json:"concession_type"`
	ConcessionMode  ConcessionMode  `gorm:"type:varchar(20);not null" json:"concession_mode"`
	ConcessionValue decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"concession_value"`
	ActualDiscount  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"actual_discount"`
	Reason          string          `gorm:"type:text" json:"reason"`
	ApprovedBy      int             `gorm:"default:null" json:"approved_by"`
	IsActive        bool            `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// CalculateConcessionAmount resolves a concession's money value against a
// base amount. Percentage mode takes value% of the base; fixed mode is capped
// at the base so a grant can never push the discount past what remains.
func CalculateConcessionAmount(mode ConcessionMode, value, baseAmount decimal.Decimal) (decimal.Decimal, error) {
	if value.IsNegative() {
		return decimal.Zero, utils.NewValidationError("concession value cannot be negative")
	}
	switch mode {
	case ConcessionModePercentage:
		if value.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, utils.NewValidationError("percentage concession cannot exceed 100")
		}
		return utils.Money(baseAmount.Mul(value).Div(decimal.NewFromInt(100))), nil
	case ConcessionModeFixedAmount:
		if value.GreaterThan(baseAmount) {
			return utils.Money(baseAmount), nil
		}
		return utils.Money(value), nil
	}
	return decimal.Zero, utils.NewValidationError("invalid concession mode")
}

type NewConcession struct {
	StudentFeeId    int64           `json:"student_fee_id" validate:"required"`
	ConcessionType  ConcessionType  `json:"concession_type" validate:"required"`
	ConcessionMode  ConcessionMode  `json:"concession_mode" validate:"required"`
	ConcessionValue decimal.Decimal `json:"concession_value" validate:"required"`
	Reason          string          `json:"reason"`
}

// ApplyConcession grants a discount on one student fee. The discount is
// resolved against the undiscounted remainder (total minus already active
// discounts), frozen, and the aggregate is recomputed under a row lock.
func ApplyConcession(ctx context.Context, input *NewConcession) (*StudentFeeConcession, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if _, err := ParseConcessionType(string(input.ConcessionType)); err != nil {
		return nil, utils.NewValidationError("invalid concession type")
	}
	if _, err := ParseConcessionMode(string(input.ConcessionMode)); err != nil {
		return nil, utils.NewValidationError("invalid concession mode")
	}

	db := config.GetDB()
	tx := db.Begin()

	studentFee, err := fetchStudentFeeForUpdate(ctx, tx, tenantId, input.StudentFeeId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	current, err := calculateTotalsTx(ctx, tx, studentFee, utils.Today())
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	base := studentFee.TotalAmount.Sub(current.DiscountAmount)
	if base.IsNegative() {
		base = decimal.Zero
	}
	actualDiscount, err := CalculateConcessionAmount(input.ConcessionMode, input.ConcessionValue, base)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	concession := StudentFeeConcession{
		TenantId:        tenantId,
		StudentFeeId:    input.StudentFeeId,
		ConcessionType:  input.ConcessionType,
		ConcessionMode:  input.ConcessionMode,
		ConcessionValue: utils.Money(input.ConcessionValue),
		ActualDiscount:  actualDiscount,
		Reason:          input.Reason,
		ApprovedBy:      userId,
		IsActive:        true,
	}
	if err := tx.WithContext(ctx).Create(&concession).Error; err != nil {
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
	return &concession, nil
}

// DeactivateConcession withdraws a granted discount. The frozen row stays for
// the audit trail with is_active false, and the aggregate is recomputed.
func DeactivateConcession(ctx context.Context, id int64) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return utils.NewValidationError("tenant id is required")
	}

	concession, err := utils.FetchModel[StudentFeeConcession](ctx, tenantId, id)
	if err != nil {
		return utils.NewNotFoundError("concession")
	}
	if !concession.IsActive {
		return nil
	}

	db := config.GetDB()
	tx := db.Begin()

	studentFee, err := fetchStudentFeeForUpdate(ctx, tx, tenantId, concession.StudentFeeId)
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.WithContext(ctx).Model(concession).Update("is_active", false).Error; err != nil {
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

type BulkConcessionInput struct {
	Category        string          `json:"category" validate:"required"`
	SessionId       int             `json:"session_id" validate:"required"`
	ConcessionType  ConcessionType  `json:"concession_type" validate:"required"`
	ConcessionMode  ConcessionMode  `json:"concession_mode" validate:"required"`
	ConcessionValue decimal.Decimal `json:"concession_value" validate:"required"`
	Reason          string          `json:"reason"`
}

// BulkApplyConcessionsByCategory grants the same concession to every fee of
// every active student in an admission category for one session. Items are
// isolated: one student's failure does not stop the sweep.
func BulkApplyConcessionsByCategory(ctx context.Context, input *BulkConcessionInput) (int, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return 0, utils.NewValidationError("tenant id is required")
	}

	students, err := getActiveStudentsByCategory(ctx, tenantId, input.Category)
	if err != nil {
		return 0, err
	}

	db := config.GetDB()
	logger := config.GetLogger()
	count := 0
	for _, student := range students {
		var fees []StudentFee
		err := db.WithContext(ctx).
			Where("tenant_id = ? AND student_id = ? AND session_id = ?", tenantId, student.ID, input.SessionId).
			Find(&fees).Error
		if err != nil {
			config.LogError(logger, "feeConcession.go", "BulkApplyConcessionsByCategory", "fetch fees", student.ID, err)
			continue
		}
		for _, fee := range fees {
			_, err := ApplyConcession(ctx, &NewConcession{
				StudentFeeId:    fee.ID,
				ConcessionType:  input.ConcessionType,
				ConcessionMode:  input.ConcessionMode,
				ConcessionValue: input.ConcessionValue,
				Reason:          input.Reason,
			})
			if err != nil {
				config.LogError(logger, "feeConcession.go", "BulkApplyConcessionsByCategory", "ApplyConcession", fee.ID, err)
				continue
			}
			count++
		}
	}
	return count, nil
}

package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/shopspring/decimal"
)

// FeeStructure bundles fee categories for one (session, class) pair with a
// validity window. Details carry one row per (category, installment number).
type FeeStructure struct {
	ID            int64                `gorm:"primary_key" json:"id"`
	TenantId      int                  `gorm:"index;not null" json:"tenant_id"`
	SessionId     int                  `gorm:"index;not null" json:"session_id" binding:"required"`
	ClassId       int                  `gorm:"index;not null" json:"class_id" binding:"required"`
	StructureName string               `gorm:"size:200;not null" json:"structure_name" binding:"required"`
	Description   string               `gorm:"type:text" json:"description"`
	ValidFrom     time.Time            `gorm:"not null" json:"valid_from"`
	ValidTo       *time.Time           `json:"valid_to"`
	IsActive      bool                 `gorm:"default:true" json:"is_active"`
	Details       []FeeStructureDetail `gorm:"foreignKey:FeeStructureId" json:"details"`
	CreatedBy     int                  `gorm:"default:null" json:"created_by"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type FeeStructureDetail struct {
	ID                int64           `gorm:"primary_key" json:"id"`
	TenantId          int             `gorm:"index;not null" json:"tenant_id"`
	FeeStructureId    int64           `gorm:"uniqueIndex:unique_structure_category_installment;index;not null" json:"fee_structure_id"`
	FeeCategoryId     int64           `gorm:"uniqueIndex:unique_structure_category_installment;index;not null" json:"fee_category_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	DueDate           *time.Time      `json:"due_date"`
	InstallmentNumber int             `gorm:"uniqueIndex:unique_structure_category_installment;default:1" json:"installment_number"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFeeStructure struct {
	SessionId     int                      `json:"session_id" validate:"required"`
	ClassId       int                      `json:"class_id" validate:"required"`
	StructureName string                   `json:"structure_name" validate:"required,max=200"`
	Description   string                   `json:"description"`
	ValidFrom     time.Time                `json:"valid_from" validate:"required"`
	ValidTo       *time.Time               `json:"valid_to"`
	Details       []NewFeeStructureDetail  `json:"details" validate:"required,min=1,dive"`
}

type NewFeeStructureDetail struct {
	FeeCategoryId     int64           `json:"fee_category_id" validate:"required"`
	Amount            decimal.Decimal `json:"amount" validate:"required"`
	DueDate           *time.Time      `json:"due_date"`
	InstallmentNumber int             `json:"installment_number"`
}

func CreateFeeStructure(ctx context.Context, input *NewFeeStructure) (*FeeStructure, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	details := make([]FeeStructureDetail, 0, len(input.Details))
	for _, d := range input.Details {
		if err := utils.ValidateResourceId[FeeCategory](ctx, tenantId, d.FeeCategoryId); err != nil {
			return nil, utils.NewNotFoundError("fee category")
		}
		if d.Amount.IsNegative() {
			return nil, utils.NewValidationError("detail amount cannot be negative")
		}
		instNum := d.InstallmentNumber
		if instNum <= 0 {
			instNum = 1
		}
		details = append(details, FeeStructureDetail{
			TenantId:          tenantId,
			FeeCategoryId:     d.FeeCategoryId,
			Amount:            utils.Money(d.Amount),
			DueDate:           d.DueDate,
			InstallmentNumber: instNum,
		})
	}

	structure := FeeStructure{
		TenantId:      tenantId,
		SessionId:     input.SessionId,
		ClassId:       input.ClassId,
		StructureName: input.StructureName,
		Description:   input.Description,
		ValidFrom:     input.ValidFrom,
		ValidTo:       input.ValidTo,
		IsActive:      true,
		Details:       details,
		CreatedBy:     userId,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&structure).Error; err != nil {
		return nil, err
	}
	return &structure, nil
}

func GetFeeStructure(ctx context.Context, id int64) (*FeeStructure, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	result, err := utils.FetchModel[FeeStructure](ctx, tenantId, id, "Details")
	if err != nil {
		return nil, utils.NewNotFoundError("fee structure")
	}
	return result, nil
}

func GetFeeStructures(ctx context.Context, sessionId *int, classId *int) ([]*FeeStructure, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId).Preload("Details")
	if sessionId != nil && *sessionId > 0 {
		dbCtx = dbCtx.Where("session_id = ?", *sessionId)
	}
	if classId != nil && *classId > 0 {
		dbCtx = dbCtx.Where("class_id = ?", *classId)
	}
	var results []*FeeStructure
	if err := dbCtx.Order("valid_from DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteFeeStructure removes a structure that has not been assigned to any
// student. Assigned structures must have their student fees removed first.
func DeleteFeeStructure(ctx context.Context, id int64) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return utils.NewValidationError("tenant id is required")
	}

	structure, err := utils.FetchModel[FeeStructure](ctx, tenantId, id)
	if err != nil {
		return utils.NewNotFoundError("fee structure")
	}

	assigned, err := utils.ResourceCountWhere[StudentFee](ctx, tenantId, "fee_structure_id = ?", id)
	if err != nil {
		return err
	}
	if assigned > 0 {
		return utils.NewValidationError("cannot delete fee structure: it has been assigned to students")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Where("fee_structure_id = ?", id).Delete(&FeeStructureDetail{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.WithContext(ctx).Delete(structure).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// structureTotal sums the detail amounts; this becomes the immutable
// StudentFee.total_amount at assignment time.
func structureTotal(details []FeeStructureDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.Amount)
	}
	return total
}

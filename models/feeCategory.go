package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
)

// FeeCategory is a named fee component (Tuition, Library, Lab, Sports...).
// Categories referenced by a fee structure detail cannot be deleted.
type FeeCategory struct {
	ID           int64     `gorm:"primary_key" json:"id"`
	TenantId     int       `gorm:"uniqueIndex:unique_tenant_category_code;index;not null" json:"tenant_id"`
	CategoryName string    `gorm:"size:100;not null" json:"category_name" binding:"required"`
	CategoryCode string    `gorm:"size:20;uniqueIndex:unique_tenant_category_code;not null" json:"category_code" binding:"required"`
	Description  string    `gorm:"type:text" json:"description"`
	IsMandatory  bool      `gorm:"default:true" json:"is_mandatory"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	DisplayOrder int       `gorm:"default:0" json:"display_order"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFeeCategory struct {
	CategoryName string `json:"category_name" validate:"required,max=100"`
	CategoryCode string `json:"category_code" validate:"required,max=20"`
	Description  string `json:"description"`
	IsMandatory  *bool  `json:"is_mandatory"`
	DisplayOrder int    `json:"display_order"`
}

func CreateFeeCategory(ctx context.Context, input *NewFeeCategory) (*FeeCategory, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	if err := utils.ValidateUnique[FeeCategory](ctx, tenantId, "category_code", input.CategoryCode, 0); err != nil {
		return nil, err
	}

	category := FeeCategory{
		TenantId:     tenantId,
		CategoryName: input.CategoryName,
		CategoryCode: input.CategoryCode,
		Description:  input.Description,
		IsMandatory:  utils.DereferencePtr(input.IsMandatory, true),
		IsActive:     true,
		DisplayOrder: input.DisplayOrder,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func UpdateFeeCategory(ctx context.Context, id int64, input *NewFeeCategory) (*FeeCategory, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	category, err := utils.FetchModel[FeeCategory](ctx, tenantId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("fee category")
	}
	if err := utils.ValidateUnique[FeeCategory](ctx, tenantId, "category_code", input.CategoryCode, id); err != nil {
		return nil, err
	}

	category.CategoryName = input.CategoryName
	category.CategoryCode = input.CategoryCode
	category.Description = input.Description
	category.IsMandatory = utils.DereferencePtr(input.IsMandatory, category.IsMandatory)
	category.DisplayOrder = input.DisplayOrder

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

func ToggleFeeCategoryStatus(ctx context.Context, id int64) (*FeeCategory, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	category, err := utils.FetchModel[FeeCategory](ctx, tenantId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("fee category")
	}
	category.IsActive = !category.IsActive

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteFeeCategory removes an unreferenced category. Categories used by any
// fee structure detail are immutable and the delete is rejected.
func DeleteFeeCategory(ctx context.Context, id int64) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return utils.NewValidationError("tenant id is required")
	}

	category, err := utils.FetchModel[FeeCategory](ctx, tenantId, id)
	if err != nil {
		return utils.NewNotFoundError("fee category")
	}

	refs, err := utils.ResourceCountWhere[FeeStructureDetail](ctx, tenantId, "fee_category_id = ?", id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return utils.NewValidationError("cannot delete category: it is used in one or more fee structures")
	}

	db := config.GetDB()
	return db.WithContext(ctx).Delete(category).Error
}

func GetFeeCategory(ctx context.Context, id int64) (*FeeCategory, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	result, err := utils.FetchModel[FeeCategory](ctx, tenantId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("fee category")
	}
	return result, nil
}

func GetFeeCategories(ctx context.Context, activeOnly bool) ([]*FeeCategory, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	var results []*FeeCategory
	if err := dbCtx.Order("display_order, category_name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

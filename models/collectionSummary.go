package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeeCollectionSummary is the per-tenant per-day rollup of verified
// collections, split by payment mode bucket. It is derived data: the payment
// and reversal paths keep it rolled forward, and RebuildCollectionSummary can
// restate any day from the receipts.
type FeeCollectionSummary struct {
	ID               int64           `gorm:"primary_key" json:"id"`
	TenantId         int             `gorm:"uniqueIndex:unique_tenant_summary_date;index;not null" json:"tenant_id"`
	SummaryDate      time.Time       `gorm:"uniqueIndex:unique_tenant_summary_date;not null" json:"summary_date"`
	TotalCollected   decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"total_collected"`
	CashAmount       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"cash_amount"`
	ChequeAmount     decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"cheque_amount"`
	OnlineAmount     decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"online_amount"`
	OtherAmount      decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"other_amount"`
	TransactionCount int             `gorm:"default:0" json:"transaction_count"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// summaryBucket maps a payment mode to its summary column.
func summaryBucket(mode PaymentMode) string {
	switch {
	case mode == PaymentModeCash:
		return "cash_amount"
	case mode == PaymentModeCheque || mode == PaymentModeDemandDraft:
		return "cheque_amount"
	case mode.IsOnlineMode():
		return "online_amount"
	}
	return "other_amount"
}

// upsertCollectionSummaryTx rolls one verified payment into the day's row,
// creating it on first collection of the day.
func upsertCollectionSummaryTx(ctx context.Context, tx *gorm.DB, tenantId int, paymentDate time.Time, mode PaymentMode, amount decimal.Decimal) error {
	day := utils.DateOnly(paymentDate)

	var summary FeeCollectionSummary
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND summary_date = ?", tenantId, day).
		First(&summary).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return err
		}
		summary = FeeCollectionSummary{TenantId: tenantId, SummaryDate: day}
		if err := tx.WithContext(ctx).Create(&summary).Error; err != nil {
			return err
		}
	}

	bucket := summaryBucket(mode)
	return tx.WithContext(ctx).Model(&summary).Updates(map[string]interface{}{
		"total_collected":   gorm.Expr("total_collected + ?", amount),
		bucket:              gorm.Expr(bucket+" + ?", amount),
		"transaction_count": gorm.Expr("transaction_count + 1"),
	}).Error
}

// decrementCollectionSummaryTx unwinds a reversed payment from the day's row.
// Best effort: a missing row is not an error, and every column is floored at
// zero so a drifted summary can never go negative.
func decrementCollectionSummaryTx(ctx context.Context, tx *gorm.DB, tenantId int, paymentDate time.Time, mode PaymentMode, amount decimal.Decimal) error {
	day := utils.DateOnly(paymentDate)

	var summary FeeCollectionSummary
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND summary_date = ?", tenantId, day).
		First(&summary).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	floor := func(d decimal.Decimal) decimal.Decimal {
		if d.IsNegative() {
			return decimal.Zero
		}
		return d
	}

	updates := map[string]interface{}{
		"total_collected": floor(summary.TotalCollected.Sub(amount)),
	}
	switch summaryBucket(mode) {
	case "cash_amount":
		updates["cash_amount"] = floor(summary.CashAmount.Sub(amount))
	case "cheque_amount":
		updates["cheque_amount"] = floor(summary.ChequeAmount.Sub(amount))
	case "online_amount":
		updates["online_amount"] = floor(summary.OnlineAmount.Sub(amount))
	default:
		updates["other_amount"] = floor(summary.OtherAmount.Sub(amount))
	}
	if summary.TransactionCount > 0 {
		updates["transaction_count"] = summary.TransactionCount - 1
	}
	return tx.WithContext(ctx).Model(&summary).Updates(updates).Error
}

// RebuildCollectionSummary restates one day's summary directly from the
// verified receipts, repairing any drift the incremental path accumulated.
func RebuildCollectionSummary(ctx context.Context, date time.Time) (*FeeCollectionSummary, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	day := utils.DateOnly(date)

	db := config.GetDB()
	var receipts []FeeReceipt
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND payment_date = ? AND status = ?", tenantId, day, PaymentStatusVerified).
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}

	rebuilt := FeeCollectionSummary{TenantId: tenantId, SummaryDate: day}
	for _, r := range receipts {
		rebuilt.TotalCollected = rebuilt.TotalCollected.Add(r.AmountPaid)
		switch summaryBucket(r.PaymentMode) {
		case "cash_amount":
			rebuilt.CashAmount = rebuilt.CashAmount.Add(r.AmountPaid)
		case "cheque_amount":
			rebuilt.ChequeAmount = rebuilt.ChequeAmount.Add(r.AmountPaid)
		case "online_amount":
			rebuilt.OnlineAmount = rebuilt.OnlineAmount.Add(r.AmountPaid)
		default:
			rebuilt.OtherAmount = rebuilt.OtherAmount.Add(r.AmountPaid)
		}
		rebuilt.TransactionCount++
	}

	tx := db.Begin()
	var existing FeeCollectionSummary
	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND summary_date = ?", tenantId, day).
		First(&existing).Error
	if err == nil {
		rebuilt.ID = existing.ID
		rebuilt.CreatedAt = existing.CreatedAt
		if err := tx.WithContext(ctx).Save(&rebuilt).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	} else if err == gorm.ErrRecordNotFound {
		if err := tx.WithContext(ctx).Create(&rebuilt).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	} else {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &rebuilt, nil
}

func GetCollectionSummary(ctx context.Context, date time.Time) (*FeeCollectionSummary, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	day := utils.DateOnly(date)

	db := config.GetDB()
	var result FeeCollectionSummary
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND summary_date = ?", tenantId, day).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// no collections that day: an all-zero summary, not an error
			return &FeeCollectionSummary{TenantId: tenantId, SummaryDate: day}, nil
		}
		return nil, err
	}
	return &result, nil
}

func GetCollectionSummaries(ctx context.Context, from, to time.Time) ([]*FeeCollectionSummary, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	db := config.GetDB()
	var results []*FeeCollectionSummary
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND summary_date >= ? AND summary_date <= ?",
			tenantId, utils.DateOnly(from), utils.DateOnly(to)).
		Order("summary_date ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

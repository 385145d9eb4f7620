package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeeInstallment is one slice of a multi-installment fee schedule. Rows exist
// only when the structure splits into more than one installment; single-shot
// fees carry their schedule on the aggregate itself.
type FeeInstallment struct {
	ID                int64           `gorm:"primary_key" json:"id"`
	TenantId          int             `gorm:"index;not null" json:"tenant_id"`
	StudentFeeId      int64           `gorm:"uniqueIndex:unique_fee_installment;index;not null" json:"student_fee_id"`
	InstallmentNumber int             `gorm:"uniqueIndex:unique_fee_installment;not null" json:"installment_number"`
	InstallmentName   string          `gorm:"size:50" json:"installment_name"`
	DueDate           time.Time       `gorm:"index;not null" json:"due_date"`
	Amount            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaidAmount        decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"paid_amount"`
	Status            InstallmentStatus `gorm:"type:varchar(20);default:'Pending'" json:"status"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func installmentName(n int) string {
	return fmt.Sprintf("Installment %d", n)
}

func resolveInstallmentStatus(amount, paid decimal.Decimal, dueDate time.Time, today time.Time) InstallmentStatus {
	if paid.GreaterThanOrEqual(amount) {
		return InstallmentStatusPaid
	}
	if today.After(dueDate) {
		return InstallmentStatusOverdue
	}
	return InstallmentStatusPending
}

// distributeAcrossInstallments spreads a payment over installments oldest
// first: each installment absorbs up to its unpaid remainder before the next
// one sees any money. The slice must be ordered by installment number
// ascending; entries are mutated in place and the leftover (zero unless the
// payment exceeds all remainders) is returned.
func distributeAcrossInstallments(installments []FeeInstallment, amount decimal.Decimal, today time.Time) decimal.Decimal {
	remaining := amount
	for i := range installments {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		inst := &installments[i]
		unpaid := inst.Amount.Sub(inst.PaidAmount)
		if !unpaid.GreaterThan(decimal.Zero) {
			continue
		}
		applied := remaining
		if applied.GreaterThan(unpaid) {
			applied = unpaid
		}
		inst.PaidAmount = inst.PaidAmount.Add(applied)
		inst.Status = resolveInstallmentStatus(inst.Amount, inst.PaidAmount, inst.DueDate, today)
		remaining = remaining.Sub(applied)
	}
	return remaining
}

// reverseAcrossInstallments unwinds a reversed payment newest first, the
// mirror image of distribution. The slice must be ordered by installment
// number ascending; the leftover that could not be unwound is returned.
func reverseAcrossInstallments(installments []FeeInstallment, amount decimal.Decimal, today time.Time) decimal.Decimal {
	remaining := amount
	for i := len(installments) - 1; i >= 0; i-- {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		inst := &installments[i]
		if !inst.PaidAmount.GreaterThan(decimal.Zero) {
			continue
		}
		removed := remaining
		if removed.GreaterThan(inst.PaidAmount) {
			removed = inst.PaidAmount
		}
		inst.PaidAmount = inst.PaidAmount.Sub(removed)
		inst.Status = resolveInstallmentStatus(inst.Amount, inst.PaidAmount, inst.DueDate, today)
		remaining = remaining.Sub(removed)
	}
	return remaining
}

func loadInstallmentsAsc(ctx context.Context, tx *gorm.DB, tenantId int, studentFeeId int64) ([]FeeInstallment, error) {
	var installments []FeeInstallment
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND student_fee_id = ?", tenantId, studentFeeId).
		Order("installment_number ASC").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

// loadInstallmentsForUpdate locks the schedule rows for the payment and
// reversal paths. Must run inside a transaction.
func loadInstallmentsForUpdate(ctx context.Context, tx *gorm.DB, tenantId int, studentFeeId int64) ([]FeeInstallment, error) {
	var installments []FeeInstallment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND student_fee_id = ?", tenantId, studentFeeId).
		Order("installment_number ASC").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func saveInstallmentsTx(ctx context.Context, tx *gorm.DB, installments []FeeInstallment) error {
	for i := range installments {
		inst := &installments[i]
		err := tx.WithContext(ctx).Model(inst).Updates(map[string]interface{}{
			"paid_amount": inst.PaidAmount,
			"status":      inst.Status,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

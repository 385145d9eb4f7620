package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const receiptNumberMaxAttempts = 5

// FeeReceipt is one verified payment against one student fee. Receipts are
// immutable once issued; reversal flips Status to Reversed and records who
// and why, the row itself never changes amount or number.
type FeeReceipt struct {
	ID             int64           `gorm:"primary_key" json:"id"`
	TenantId       int             `gorm:"uniqueIndex:unique_tenant_receipt_number;index;not null" json:"tenant_id"`
	StudentFeeId   int64           `gorm:"index;not null" json:"student_fee_id"`
	ReceiptNumber  string          `gorm:"size:30;uniqueIndex:unique_tenant_receipt_number;not null" json:"receipt_number"`
	SequenceNo     int64           `gorm:"not null" json:"sequence_no"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount_paid"`
	PaymentDate    time.Time       `gorm:"index;not null" json:"payment_date"`
	PaymentMode    PaymentMode     `gorm:"type:varchar(20);not null" json:"payment_mode"`
	TransactionRef string          `gorm:"size:100" json:"transaction_ref"`
	ChequeNumber   string          `gorm:"size:50" json:"cheque_number"`
	BankName       string          `gorm:"size:100" json:"bank_name"`
	Status         PaymentStatus   `gorm:"type:varchar(20);index;default:'Verified'" json:"status"`
	Remarks        string          `gorm:"type:text" json:"remarks"`
	CollectedBy    int             `gorm:"default:null" json:"collected_by"`
	ReversedBy     int             `gorm:"default:null" json:"reversed_by"`
	ReversedAt     *time.Time      `json:"reversed_at"`
	ReversalReason string          `gorm:"type:text" json:"reversal_reason"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// formatReceiptNumber renders RCP-YYYYMM-NNNNN for a payment date and a
// per-tenant per-month sequence.
func formatReceiptNumber(paymentDate time.Time, sequenceNo int64) string {
	return fmt.Sprintf("RCP-%s-%05d", paymentDate.Format("200601"), sequenceNo)
}

// nextReceiptNumber reserves a candidate (number, sequence) pair from the
// redis-backed monthly counter. The storage unique index on
// (tenant_id, receipt_number) stays the final arbiter; callers retry with a
// bumped counter when the insert loses a race.
func nextReceiptNumber(ctx context.Context, tenantId int, paymentDate time.Time) (string, int64, error) {
	monthStart, monthEnd := utils.MonthBounds(paymentDate)
	seqNo, err := utils.GetMonthlySequence[FeeReceipt](ctx, tenantId, "payment_date", monthStart, monthEnd)
	if err != nil {
		return "", 0, err
	}
	return formatReceiptNumber(paymentDate, seqNo), seqNo, nil
}

type NewPayment struct {
	StudentFeeId   int64       `json:"student_fee_id" validate:"required"`
	Amount         interface{} `json:"amount" validate:"required"`
	PaymentMode    PaymentMode `json:"payment_mode" validate:"required"`
	PaymentDate    *time.Time  `json:"payment_date"`
	TransactionRef string      `json:"transaction_ref"`
	ChequeNumber   string      `json:"cheque_number"`
	BankName       string      `json:"bank_name"`
	Remarks        string      `json:"remarks"`
}

// ProcessPayment collects money against a student fee. Under one transaction
// and an exclusive lock on the aggregate it checks the payment against the
// outstanding balance, issues the receipt, spreads the amount across
// installments oldest first, recomputes the ledger and rolls the day's
// collection summary forward. Overpayment is rejected outright; there is no
// advance credit.
func ProcessPayment(ctx context.Context, input *NewPayment) (*FeeReceipt, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	amount, err := utils.ParseAmount(input.Amount)
	if err != nil {
		return nil, utils.NewValidationError("invalid payment amount")
	}
	if !amount.GreaterThan(decimal.Zero) {
		return nil, utils.NewValidationError("payment amount must be positive")
	}
	if _, err := ParsePaymentMode(string(input.PaymentMode)); err != nil {
		return nil, utils.NewValidationError("invalid payment mode")
	}

	paymentDate := utils.Today()
	if input.PaymentDate != nil {
		paymentDate = utils.DateOnly(*input.PaymentDate)
	}

	db := config.GetDB()
	today := utils.Today()

	var receipt *FeeReceipt
	for attempt := 0; attempt < receiptNumberMaxAttempts; attempt++ {
		receipt, err = processPaymentOnce(ctx, db, tenantId, userId, input, amount, paymentDate, today)
		if err == nil {
			return receipt, nil
		}
		if !utils.IsDuplicateKey(err) {
			return nil, err
		}
		// lost the receipt number race; advance the counter and retry
		if _, bumpErr := utils.BumpMonthlySequence[FeeReceipt](ctx, tenantId, utils.DateOnly(paymentDate)); bumpErr != nil {
			return nil, bumpErr
		}
	}
	return nil, utils.NewConflictError("could not allocate a unique receipt number, please retry")
}

func processPaymentOnce(ctx context.Context, db *gorm.DB, tenantId, userId int, input *NewPayment,
	amount decimal.Decimal, paymentDate, today time.Time) (*FeeReceipt, error) {

	tx := db.Begin()

	studentFee, err := fetchStudentFeeForUpdate(ctx, tx, tenantId, input.StudentFeeId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	before, err := calculateTotalsTx(ctx, tx, studentFee, today)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if amount.GreaterThan(before.BalanceAmount) {
		tx.Rollback()
		return nil, utils.NewValidationError(fmt.Sprintf(
			"payment amount %s exceeds outstanding balance %s",
			amount.StringFixed(2), before.BalanceAmount.StringFixed(2)))
	}

	receiptNumber, seqNo, err := nextReceiptNumber(ctx, tenantId, paymentDate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	receipt := FeeReceipt{
		TenantId:       tenantId,
		StudentFeeId:   input.StudentFeeId,
		ReceiptNumber:  receiptNumber,
		SequenceNo:     seqNo,
		AmountPaid:     utils.Money(amount),
		PaymentDate:    paymentDate,
		PaymentMode:    input.PaymentMode,
		TransactionRef: input.TransactionRef,
		ChequeNumber:   input.ChequeNumber,
		BankName:       input.BankName,
		Status:         PaymentStatusVerified,
		Remarks:        input.Remarks,
		CollectedBy:    userId,
	}
	if err := tx.WithContext(ctx).Create(&receipt).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	installments, err := loadInstallmentsForUpdate(ctx, tx, tenantId, input.StudentFeeId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if len(installments) > 0 {
		distributeAcrossInstallments(installments, amount, today)
		if err := saveInstallmentsTx(ctx, tx, installments); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	after, err := calculateTotalsTx(ctx, tx, studentFee, today)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := applyBreakdownTx(ctx, tx, studentFee, after); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := upsertCollectionSummaryTx(ctx, tx, tenantId, paymentDate, input.PaymentMode, amount); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

// DeleteReceipt reverses a payment. The receipt row survives with status
// Reversed; paid_amount is recomputed from the remaining verified receipts,
// installment allocations are unwound newest first, and the day's collection
// summary is decremented best effort, floored at zero.
func DeleteReceipt(ctx context.Context, id int64, reason string) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return utils.NewValidationError("tenant id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	today := utils.Today()

	tx := db.Begin()

	var receipt FeeReceipt
	err := tx.WithContext(ctx).Where("tenant_id = ?", tenantId).First(&receipt, id).Error
	if err != nil {
		tx.Rollback()
		return utils.NewNotFoundError("receipt")
	}
	if receipt.Status != PaymentStatusVerified {
		tx.Rollback()
		return utils.NewValidationError("only verified receipts can be reversed")
	}

	studentFee, err := fetchStudentFeeForUpdate(ctx, tx, tenantId, receipt.StudentFeeId)
	if err != nil {
		tx.Rollback()
		return err
	}

	now := time.Now().UTC()
	err = tx.WithContext(ctx).Model(&receipt).Updates(map[string]interface{}{
		"status":          PaymentStatusReversed,
		"reversed_by":     userId,
		"reversed_at":     now,
		"reversal_reason": reason,
	}).Error
	if err != nil {
		tx.Rollback()
		return err
	}

	installments, err := loadInstallmentsForUpdate(ctx, tx, tenantId, receipt.StudentFeeId)
	if err != nil {
		tx.Rollback()
		return err
	}
	if len(installments) > 0 {
		reverseAcrossInstallments(installments, receipt.AmountPaid, today)
		if err := saveInstallmentsTx(ctx, tx, installments); err != nil {
			tx.Rollback()
			return err
		}
	}

	breakdown, err := calculateTotalsTx(ctx, tx, studentFee, today)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := applyBreakdownTx(ctx, tx, studentFee, breakdown); err != nil {
		tx.Rollback()
		return err
	}

	if err := decrementCollectionSummaryTx(ctx, tx, tenantId, receipt.PaymentDate, receipt.PaymentMode, receipt.AmountPaid); err != nil {
		// best effort: the summary is derived data and can be rebuilt
		config.LogWarn(config.GetLogger(), "feeReceipt.go", "DeleteReceipt", "decrement summary", err.Error())
	}

	return tx.Commit().Error
}

func GetReceipt(ctx context.Context, id int64) (*FeeReceipt, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	result, err := utils.FetchModel[FeeReceipt](ctx, tenantId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("receipt")
	}
	return result, nil
}

func GetReceiptByNumber(ctx context.Context, receiptNumber string) (*FeeReceipt, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	var result FeeReceipt
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND receipt_number = ?", tenantId, receiptNumber).
		First(&result).Error
	if err != nil {
		return nil, utils.NewNotFoundError("receipt")
	}
	return &result, nil
}

func GetReceipts(ctx context.Context, studentFeeId *int64, from, to *time.Time) ([]*FeeReceipt, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId <= 0 {
		return nil, utils.NewValidationError("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if studentFeeId != nil && *studentFeeId > 0 {
		dbCtx = dbCtx.Where("student_fee_id = ?", *studentFeeId)
	}
	if from != nil {
		dbCtx = dbCtx.Where("payment_date >= ?", utils.DateOnly(*from))
	}
	if to != nil {
		dbCtx = dbCtx.Where("payment_date <= ?", utils.DateOnly(*to))
	}
	var results []*FeeReceipt
	if err := dbCtx.Order("payment_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

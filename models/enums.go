package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// All enums in this package are closed string unions. They cross the storage
// boundary only through the Value/Scan pair below, and enter business logic
// only through their Parse function, so an unknown string can never leak into
// ledger computations.

func scanEnumString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported enum column type %T", value)
	}
}

type FeeStatus string

const (
	FeeStatusPending       FeeStatus = "Pending"
	FeeStatusPartiallyPaid FeeStatus = "Partially Paid"
	FeeStatusPaid          FeeStatus = "Paid"
	FeeStatusOverdue       FeeStatus = "Overdue"
	FeeStatusWaived        FeeStatus = "Waived"
	FeeStatusCancelled     FeeStatus = "Cancelled"
)

func ParseFeeStatus(s string) (FeeStatus, error) {
	switch FeeStatus(s) {
	case FeeStatusPending, FeeStatusPartiallyPaid, FeeStatusPaid,
		FeeStatusOverdue, FeeStatusWaived, FeeStatusCancelled:
		return FeeStatus(s), nil
	}
	return "", errors.New("invalid fee status")
}

func (t FeeStatus) Value() (driver.Value, error) {
	if _, err := ParseFeeStatus(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

func (t *FeeStatus) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseFeeStatus(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "Cash"
	PaymentModeCheque       PaymentMode = "Cheque"
	PaymentModeUPI          PaymentMode = "UPI"
	PaymentModeBankTransfer PaymentMode = "Bank Transfer"
	PaymentModeDemandDraft  PaymentMode = "Demand Draft"
	PaymentModeDebitCard    PaymentMode = "Debit Card"
	PaymentModeCreditCard   PaymentMode = "Credit Card"
	PaymentModeOnline       PaymentMode = "Online"
	PaymentModeOther        PaymentMode = "Other"
)

func ParsePaymentMode(s string) (PaymentMode, error) {
	switch PaymentMode(s) {
	case PaymentModeCash, PaymentModeCheque, PaymentModeUPI, PaymentModeBankTransfer,
		PaymentModeDemandDraft, PaymentModeDebitCard, PaymentModeCreditCard,
		PaymentModeOnline, PaymentModeOther:
		return PaymentMode(s), nil
	}
	return "", errors.New("invalid payment mode")
}

func (t PaymentMode) Value() (driver.Value, error) {
	if _, err := ParsePaymentMode(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

func (t *PaymentMode) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParsePaymentMode(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsOnlineMode groups the modes that the collection summary buckets as
// "online": UPI, Online and Bank Transfer.
func (t PaymentMode) IsOnlineMode() bool {
	return t == PaymentModeUPI || t == PaymentModeOnline || t == PaymentModeBankTransfer
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusVerified  PaymentStatus = "Verified"
	PaymentStatusCancelled PaymentStatus = "Cancelled"
	PaymentStatusReversed  PaymentStatus = "Reversed"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusVerified, PaymentStatusCancelled, PaymentStatusReversed:
		return PaymentStatus(s), nil
	}
	return "", errors.New("invalid payment status")
}

func (t PaymentStatus) Value() (driver.Value, error) {
	if _, err := ParsePaymentStatus(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

func (t *PaymentStatus) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParsePaymentStatus(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type ConcessionType string

const (
	ConcessionTypeScholarship     ConcessionType = "Scholarship"
	ConcessionTypeCategoryBased   ConcessionType = "Category Based"
	ConcessionTypeSiblingDiscount ConcessionType = "Sibling Discount"
	ConcessionTypeMeritBased      ConcessionType = "Merit Based"
	ConcessionTypeStaffChild      ConcessionType = "Staff Child"
	ConcessionTypeSportsQuota     ConcessionType = "Sports Quota"
	ConcessionTypeFinancialAid    ConcessionType = "Financial Aid"
	ConcessionTypeOther           ConcessionType = "Other"
)

func ParseConcessionType(s string) (ConcessionType, error) {
	switch ConcessionType(s) {
	case ConcessionTypeScholarship, ConcessionTypeCategoryBased, ConcessionTypeSiblingDiscount,
		ConcessionTypeMeritBased, ConcessionTypeStaffChild, ConcessionTypeSportsQuota,
		ConcessionTypeFinancialAid, ConcessionTypeOther:
		return ConcessionType(s), nil
	}
	return "", errors.New("invalid concession type")
}

func (t ConcessionType) Value() (driver.Value, error) {
	if _, err := ParseConcessionType(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

func (t *ConcessionType) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseConcessionType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type ConcessionMode string

const (
	ConcessionModePercentage  ConcessionMode = "Percentage"
	ConcessionModeFixedAmount ConcessionMode = "Fixed Amount"
)

func ParseConcessionMode(s string) (ConcessionMode, error) {
	switch ConcessionMode(s) {
	case ConcessionModePercentage, ConcessionModeFixedAmount:
		return ConcessionMode(s), nil
	}
	return "", errors.New("invalid concession mode")
}

func (t ConcessionMode) Value() (driver.Value, error) {
	if _, err := ParseConcessionMode(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

func (t *ConcessionMode) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseConcessionMode(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type FineType string

const (
	FineTypeLatePayment   FineType = "Late Payment"
	FineTypeBouncedCheque FineType = "Bounced Cheque"
	FineTypePenalty       FineType = "Penalty"
	FineTypeOther         FineType = "Other"
)

func ParseFineType(s string) (FineType, error) {
	switch FineType(s) {
	case FineTypeLatePayment, FineTypeBouncedCheque, FineTypePenalty, FineTypeOther:
		return FineType(s), nil
	}
	return "", errors.New("invalid fine type")
}

func (t FineType) Value() (driver.Value, error) {
	if _, err := ParseFineType(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

func (t *FineType) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseFineType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "Pending"
	InstallmentStatusPaid    InstallmentStatus = "Paid"
	InstallmentStatusOverdue InstallmentStatus = "Overdue"
	InstallmentStatusWaived  InstallmentStatus = "Waived"
)

func ParseInstallmentStatus(s string) (InstallmentStatus, error) {
	switch InstallmentStatus(s) {
	case InstallmentStatusPending, InstallmentStatusPaid, InstallmentStatusOverdue, InstallmentStatusWaived:
		return InstallmentStatus(s), nil
	}
	return "", errors.New("invalid installment status")
}

func (t InstallmentStatus) Value() (driver.Value, error) {
	if _, err := ParseInstallmentStatus(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

func (t *InstallmentStatus) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseInstallmentStatus(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "Active"
	StudentStatusInactive    StudentStatus = "Inactive"
	StudentStatusTransferred StudentStatus = "Transferred"
	StudentStatusAlumni      StudentStatus = "Alumni"
)

func ParseStudentStatus(s string) (StudentStatus, error) {
	switch StudentStatus(s) {
	case StudentStatusActive, StudentStatusInactive, StudentStatusTransferred, StudentStatusAlumni:
		return StudentStatus(s), nil
	}
	return "", errors.New("invalid student status")
}

func (t StudentStatus) Value() (driver.Value, error) {
	if _, err := ParseStudentStatus(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

func (t *StudentStatus) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseStudentStatus(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

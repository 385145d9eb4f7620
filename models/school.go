package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
)

// The school-facing entities below are owned by the surrounding admissions
// system; this service only reads them (bulk assignment, defaulter reports)
// and references them by foreign key.

type Tenant struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Slug      string    `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type AcademicSession struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  int       `gorm:"index;not null" json:"tenant_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsCurrent bool      `gorm:"default:false" json:"is_current"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Class struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  int       `gorm:"index;not null" json:"tenant_id"`
	ClassName string    `gorm:"size:50;not null" json:"class_name"`
	Section   string    `gorm:"size:10" json:"section"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Student struct {
	ID              int           `gorm:"primary_key" json:"id"`
	TenantId        int           `gorm:"index;not null" json:"tenant_id"`
	ClassId         int           `gorm:"index" json:"class_id"`
	FullName        string        `gorm:"size:200;not null" json:"full_name"`
	AdmissionNumber string        `gorm:"size:50;index" json:"admission_number"`
	Category        string        `gorm:"size:50" json:"category"`
	GuardianPhone   string        `gorm:"size:20" json:"guardian_phone"`
	GuardianEmail   string        `gorm:"size:120" json:"guardian_email"`
	Status          StudentStatus `gorm:"type:varchar(20);default:'Active'" json:"status"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetStudent(ctx context.Context, tenantId int, id int) (*Student, error) {
	db := config.GetDB()
	var result Student
	err := db.WithContext(ctx).Where("tenant_id = ?", tenantId).First(&result, id).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// active students of a class, used by bulk fee assignment
func getActiveStudentsByClass(ctx context.Context, tenantId int, classId int) ([]*Student, error) {
	db := config.GetDB()
	var results []*Student
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND class_id = ? AND status = ?", tenantId, classId, StudentStatusActive).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// active students of an admission category (SC/ST/OBC and the like),
// used by bulk concessions
func getActiveStudentsByCategory(ctx context.Context, tenantId int, category string) ([]*Student, error) {
	db := config.GetDB()
	var results []*Student
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND category = ? AND status = ?", tenantId, category, StudentStatusActive).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

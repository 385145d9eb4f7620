package models

import (
	"bitbucket.org/mmdatafocus/fees_backend/config"
)

// MigrateTable keeps the schema in sync on startup. Order matters: parents
// before children so foreign keys resolve.
func MigrateTable() error {
	db := config.GetDB()
	err := db.AutoMigrate(
		&Tenant{},
		&AcademicSession{},
		&Class{},
		&Student{},
		&FeeCategory{},
		&FeeStructure{},
		&FeeStructureDetail{},
		&StudentFee{},
		&StudentFeeConcession{},
		&FeeFine{},
		&FeeInstallment{},
		&FeeReceipt{},
		&FeeCollectionSummary{},
	)
	if err != nil {
		config.LogError(config.GetLogger(), "migration.go", "MigrateTable", "AutoMigrate", nil, err)
		return err
	}
	return nil
}

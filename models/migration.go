package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates the tables the sync service touches.
// Production schemas are owned by the console; this is for local runs and tests.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&ReportStatus{}, &Company{}, &User{},
		&Report{}, &ReportStatusHistory{},
		&SyncRun{}, &SyncError{},
	)
}

package models

import (
	"log"

	"github.com/mmdatafocus/mdm_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := AutoMigrateAll(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&DailyAttendanceRecord{},
		&RateConfig{},
		&RiceLedger{}, &AmountLedger{},
		&PeriodCompletion{}, &LedgerLockEvent{},
		&RiceReportSnapshot{}, &AmountReportSnapshot{}, &PurchaseBill{},
		&History{}, &IdempotencyKey{},
	)
}

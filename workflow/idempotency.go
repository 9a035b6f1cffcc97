package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const attendanceEventHandler = "attendance_changed"

// beginIdempotency inserts a STARTED key inside tx. skip is true when the
// message was already applied. A concurrent insert of the same key blocks on
// the unique index until the other transaction finishes.
func beginIdempotency(tx *gorm.DB, schoolId, handlerName, messageId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		SchoolId:    schoolId,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !utils.IsDuplicateKeyError(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("school_id = ? AND handler_name = ? AND message_id = ?", schoolId, handlerName, messageId).
		First(&existing).Error; err != nil {
		return false, err
	}
	return existing.Status == models.IdempotencyStatusSucceeded, nil
}

func markIdempotencySucceeded(tx *gorm.DB, schoolId, handlerName, messageId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("school_id = ? AND handler_name = ? AND message_id = ?", schoolId, handlerName, messageId).
		Update("status", models.IdempotencyStatusSucceeded).Error
}

// ProcessAttendanceEvent applies a pushed attendance-change message once per
// message id. Redelivered messages return (nil, true, nil).
func ProcessAttendanceEvent(ctx context.Context, db *gorm.DB, logger *logrus.Logger, schoolId string, messageId string, date time.Time) (changed []models.ReportSnapshot, duplicate bool, err error) {
	p := models.PeriodOf(date)
	ctx, span := startSpan(ctx, "workflow.ProcessAttendanceEvent", schoolId, p, "")
	defer func() { endSpan(span, err) }()

	var changes staleChanges
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skip, err := beginIdempotency(tx, schoolId, attendanceEventHandler, messageId)
		if err != nil || skip {
			duplicate = skip
			return err
		}
		if err := markPeriodStale(tx, schoolId, p, models.StaleReasonAttendanceEdit, clock(), &changes, models.ResourceKinds...); err != nil {
			return err
		}
		return markIdempotencySucceeded(tx, schoolId, attendanceEventHandler, messageId)
	})
	if err != nil {
		config.LogError(logger, "idempotency.go", "ProcessAttendanceEvent", "transaction", messageId, err)
		return nil, false, err
	}
	changes.announce(ctx, logger)
	return changes.snapshots(), duplicate, nil
}

package workflow

import (
	"context"
	"errors"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/models/reports"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Preflight lists the issues that would block GenerateReport.
func Preflight(ctx context.Context, db *gorm.DB, kind models.ResourceKind, schoolId string, p models.Period) ([]models.PreflightIssue, error) {
	return models.CanGenerate(db.WithContext(ctx), kind, schoolId, p)
}

func GenerateReport(ctx context.Context, db *gorm.DB, logger *logrus.Logger, kind models.ResourceKind, schoolId string, p models.Period, actor models.Actor) (snap models.ReportSnapshot, err error) {
	ctx, span := startSpan(ctx, "workflow.GenerateReport", schoolId, p, kind)
	defer func() { endSpan(span, err) }()

	err = withPeriodLocks(ctx, db, periodLockKeys(schoolId, p, kind), "GenerateReport", func(tx *gorm.DB) error {
		var err error
		snap, err = models.GenerateReport(tx, kind, schoolId, p, actor, clock())
		return err
	})
	if err != nil {
		logReportError(logger, "GenerateReport", p, err)
		return nil, err
	}
	if err := reports.InvalidateSnapshot(ctx, kind, schoolId, p); err != nil {
		config.LogError(logger, "reportWorkflow.go", "GenerateReport", "InvalidateSnapshot", p.String(), err)
	}
	return snap, nil
}

// RegenerateReport replaces the period's snapshot with a fresh, non-stale one.
func RegenerateReport(ctx context.Context, db *gorm.DB, logger *logrus.Logger, kind models.ResourceKind, schoolId string, p models.Period, actor models.Actor) (snap models.ReportSnapshot, err error) {
	ctx, span := startSpan(ctx, "workflow.RegenerateReport", schoolId, p, kind)
	defer func() { endSpan(span, err) }()

	err = withPeriodLocks(ctx, db, periodLockKeys(schoolId, p, kind), "RegenerateReport", func(tx *gorm.DB) error {
		var err error
		snap, err = models.RegenerateReport(tx, kind, schoolId, p, actor, clock())
		if err != nil {
			return err
		}
		return models.SaveHistoryCreate(tx, schoolId, snap.GetId(), string(kind)+"_report_snapshots", nil, "Regenerated "+string(kind)+" report for "+p.String())
	})
	if err != nil {
		logReportError(logger, "RegenerateReport", p, err)
		return nil, err
	}
	if err := reports.InvalidateSnapshot(ctx, kind, schoolId, p); err != nil {
		config.LogError(logger, "reportWorkflow.go", "RegenerateReport", "InvalidateSnapshot", p.String(), err)
	}
	return snap, nil
}

func AddPurchaseBill(ctx context.Context, db *gorm.DB, logger *logrus.Logger, schoolId string, p models.Period, input models.NewPurchaseBill) (bill *models.PurchaseBill, err error) {
	err = withPeriodLocks(ctx, db, periodLockKeys(schoolId, p, models.ResourceAmount), "AddPurchaseBill", func(tx *gorm.DB) error {
		snap, err := models.GetReportSnapshot(tx, models.ResourceAmount, schoolId, p)
		if err != nil {
			return err
		}
		bill, err = models.AddPurchaseBill(tx, snap.(*models.AmountReportSnapshot), input)
		return err
	})
	if err != nil {
		logReportError(logger, "AddPurchaseBill", p, err)
		return nil, err
	}
	if err := reports.InvalidateSnapshot(ctx, models.ResourceAmount, schoolId, p); err != nil {
		config.LogError(logger, "reportWorkflow.go", "AddPurchaseBill", "InvalidateSnapshot", p.String(), err)
	}
	return bill, nil
}

// Expected rejections are not logged as errors.
func logReportError(logger *logrus.Logger, funcName string, p models.Period, err error) {
	for _, expected := range []error{models.ErrConfigurationMissing, models.ErrNoSourceData, models.ErrDuplicateGeneration, models.ErrInvalidPercentages, models.ErrSnapshotNotFound} {
		if errors.Is(err, expected) {
			logger.WithFields(logrus.Fields{"period": p.String(), "reason": err.Error()}).Info(funcName + " rejected")
			return
		}
	}
	config.LogError(logger, "reportWorkflow.go", funcName, "report transaction", p.String(), err)
}

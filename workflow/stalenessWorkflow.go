package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CheckSnapshot runs checkAndMarkStale on one snapshot and, if that turned it
// stale, cascades to every later snapshot of the school.
func CheckSnapshot(ctx context.Context, db *gorm.DB, logger *logrus.Logger, kind models.ResourceKind, schoolId string, p models.Period) (stale bool, err error) {
	ctx, span := startSpan(ctx, "workflow.CheckSnapshot", schoolId, p, kind)
	defer func() { endSpan(span, err) }()

	var changes staleChanges
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap, err := models.GetReportSnapshotForUpdate(tx, kind, schoolId, p)
		if err != nil {
			return err
		}
		wasStale := snap.StalenessState().IsStale
		stale, err = models.CheckAndMarkStale(tx, snap, clock())
		if err != nil || !stale || wasStale {
			return err
		}
		changes.add(false, snap)
		cascaded, err := models.CascadeStale(tx, schoolId, p, models.StaleReasonSourceChanged, clock())
		if err != nil {
			return err
		}
		changes.add(true, cascaded...)
		return nil
	})
	if err != nil {
		config.LogError(logger, "stalenessWorkflow.go", "CheckSnapshot", "checkAndMarkStale", p.String(), err)
		return false, err
	}
	changes.announce(ctx, logger)
	return stale, nil
}

type RevalidationResult struct {
	Checked    int      `json:"checked"`
	NewlyStale []string `json:"newly_stale"`
	Cascaded   []string `json:"cascaded"`
	StillStale int      `json:"still_stale"`
	Fresh      []string `json:"fresh"`
}

func snapshotLabel(s models.ReportSnapshot) string {
	return string(s.Kind()) + ":" + s.Period().String()
}

// RevalidateSnapshots sweeps every snapshot of the school oldest first,
// rehashing attendance and cascading from each period that turned stale.
func RevalidateSnapshots(ctx context.Context, db *gorm.DB, logger *logrus.Logger, schoolId string) (result *RevalidationResult, err error) {
	ctx, span := startSpan(ctx, "workflow.RevalidateSnapshots", schoolId, models.Period{}, "")
	defer func() { endSpan(span, err) }()

	result = &RevalidationResult{NewlyStale: []string{}, Cascaded: []string{}, Fresh: []string{}}
	var changes staleChanges
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snaps, err := models.ListSchoolSnapshots(tx, schoolId)
		if err != nil {
			return err
		}
		at := clock()
		for i, snap := range snaps {
			result.Checked++
			wasStale := snap.StalenessState().IsStale
			stale, err := models.CheckAndMarkStale(tx, snap, at)
			if err != nil {
				return err
			}
			switch {
			case !stale:
				result.Fresh = append(result.Fresh, snapshotLabel(snap))
				continue
			case wasStale:
				result.StillStale++
				continue
			}
			result.NewlyStale = append(result.NewlyStale, snapshotLabel(snap))
			changes.add(false, snap)

			cascaded, err := models.CascadeStaleIn(tx, snaps[i+1:], snap.Period(), models.StaleReasonSourceChanged, at)
			if err != nil {
				return err
			}
			for _, s := range cascaded {
				result.Cascaded = append(result.Cascaded, snapshotLabel(s))
			}
			changes.add(true, cascaded...)
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "stalenessWorkflow.go", "RevalidateSnapshots", "sweep", schoolId, err)
		return nil, err
	}
	changes.announce(ctx, logger)
	logger.WithFields(logrus.Fields{
		"school_id":   schoolId,
		"checked":     result.Checked,
		"newly_stale": len(result.NewlyStale),
		"cascaded":    len(result.Cascaded),
	}).Info("RevalidateSnapshots")
	return result, nil
}

// NotifyAttendanceChanged is called by the attendance subsystem after a
// record on date changes. It flags the period's reports and every later one.
func NotifyAttendanceChanged(ctx context.Context, db *gorm.DB, logger *logrus.Logger, schoolId string, date time.Time) (changed []models.ReportSnapshot, err error) {
	p := models.PeriodOf(date)
	ctx, span := startSpan(ctx, "workflow.NotifyAttendanceChanged", schoolId, p, "")
	defer func() { endSpan(span, err) }()

	var changes staleChanges
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return markPeriodStale(tx, schoolId, p, models.StaleReasonAttendanceEdit, clock(), &changes, models.ResourceKinds...)
	})
	if err != nil {
		config.LogError(logger, "stalenessWorkflow.go", "NotifyAttendanceChanged", "markPeriodStale", date, err)
		return nil, err
	}
	changes.announce(ctx, logger)
	return changes.snapshots(), nil
}

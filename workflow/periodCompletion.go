package workflow

import (
	"context"
	"sort"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CompletePeriod completes both ledgers of a period in one transaction:
// sync consumed from attendance, stamp completion, write the PeriodCompletion
// audit row and bootstrap the successor ledgers by carry-forward. A successor
// created earlier without a carry-forward and still without activity is
// reseeded; its reports are marked stale.
//
// It returns (false, nil) when either ledger is already completed or locked.
// Any failure rolls everything back and comes back as *models.CompletionError.
func CompletePeriod(ctx context.Context, db *gorm.DB, logger *logrus.Logger, schoolId string, p models.Period, actor models.Actor, notes string) (completed bool, err error) {
	ctx, span := startSpan(ctx, "workflow.CompletePeriod", schoolId, p, "")
	defer func() { endSpan(span, err) }()

	if err := p.Validate(); err != nil {
		return false, err
	}

	keys := append(periodLockKeys(schoolId, p, models.ResourceKinds...), periodLockKeys(schoolId, p.Next(), models.ResourceKinds...)...)
	sort.Strings(keys)
	var changes staleChanges
	err = withPeriodLocks(ctx, db, keys, "CompletePeriod", func(tx *gorm.DB) error {
		rice, err := models.GetOrCreateLedger(tx, models.ResourceRice, schoolId, p, true)
		if err != nil {
			return err
		}
		amount, err := models.GetOrCreateLedger(tx, models.ResourceAmount, schoolId, p, true)
		if err != nil {
			return err
		}
		for _, l := range []models.PeriodLedger{rice, amount} {
			if st := l.State(); st.IsCompleted || st.IsLocked {
				return nil
			}
		}

		// (1) sync consumed
		for _, l := range []models.PeriodLedger{rice, amount} {
			if err := models.SyncConsumedFromAttendance(tx, l); err != nil {
				return err
			}
		}

		// (2) completion stamp
		at := clock()
		for _, l := range []models.PeriodLedger{rice, amount} {
			models.MarkLedgerCompleted(l, actor, notes, at)
			if err := models.SaveLedger(tx, l); err != nil {
				return err
			}
		}

		// (3) audit
		records, err := models.ListAttendanceForPeriod(tx, schoolId, p)
		if err != nil {
			return err
		}
		if _, err := models.CreatePeriodCompletion(tx, rice.(*models.RiceLedger), amount.(*models.AmountLedger), records, actor, notes, at); err != nil {
			return err
		}

		// (4) successor, seeded from the closings just persisted
		for _, l := range []models.PeriodLedger{rice, amount} {
			next, err := models.GetOrCreateLedger(tx, l.Kind(), schoolId, p.Next(), true)
			if err != nil {
				return err
			}
			reseeded, err := models.ReseedFromPrevious(tx, next, l)
			if err != nil {
				return err
			}
			if reseeded {
				if err := markPeriodStale(tx, schoolId, p.Next(), models.StaleReasonCarryForward, at, &changes, l.Kind()); err != nil {
					return err
				}
			}
		}
		completed = true
		return nil
	})
	if err != nil {
		cerr := &models.CompletionError{SchoolId: schoolId, Period: p, Err: err}
		config.LogError(logger, "periodCompletion.go", "CompletePeriod", "complete transaction", p.String(), cerr)
		return false, cerr
	}
	changes.announce(ctx, logger)

	logger.WithFields(logrus.Fields{
		"school_id": schoolId,
		"period":    p.String(),
		"completed": completed,
		"actor":     actor.Name,
	}).Info("CompletePeriod")
	return completed, nil
}

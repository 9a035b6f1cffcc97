package workflow

import (
	"context"
	"errors"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GetLedgerBalance returns the period's balance, creating the ledger (with
// carry-forward) on first access. Reads take no period lock.
func GetLedgerBalance(ctx context.Context, db *gorm.DB, logger *logrus.Logger, kind models.ResourceKind, schoolId string, p models.Period) (*models.LedgerBalance, error) {
	ledger, err := models.GetOrCreateLedger(db.WithContext(ctx), kind, schoolId, p, false)
	if err != nil {
		config.LogError(logger, "ledgerWorkflow.go", "GetLedgerBalance", "GetOrCreateLedger", p.String(), err)
		return nil, err
	}
	balance := ledger.Balance()
	return &balance, nil
}

func SyncLedger(ctx context.Context, db *gorm.DB, logger *logrus.Logger, kind models.ResourceKind, schoolId string, p models.Period) (balance *models.LedgerBalance, err error) {
	ctx, span := startSpan(ctx, "workflow.SyncLedger", schoolId, p, kind)
	defer func() { endSpan(span, err) }()

	err = withPeriodLocks(ctx, db, periodLockKeys(schoolId, p, kind), "SyncLedger", func(tx *gorm.DB) error {
		ledger, err := models.GetOrCreateLedger(tx, kind, schoolId, p, true)
		if err != nil {
			return err
		}
		if err := models.SyncConsumedFromAttendance(tx, ledger); err != nil {
			return err
		}
		b := ledger.Balance()
		balance = &b
		return nil
	})
	if err != nil {
		config.LogError(logger, "ledgerWorkflow.go", "SyncLedger", "SyncConsumedFromAttendance", p.String(), err)
		return nil, err
	}
	return balance, nil
}

// SetRiceInbound replaces one section's lifted/arranged rice and marks the
// period's rice report (and every later rice report) stale.
func SetRiceInbound(ctx context.Context, db *gorm.DB, logger *logrus.Logger, schoolId string, p models.Period, section models.Section, lifted, arranged decimal.Decimal) (*models.LedgerBalance, error) {
	return editLedger(ctx, db, logger, models.ResourceRice, schoolId, p, "SetRiceInbound", func(tx *gorm.DB, l models.PeriodLedger) error {
		return models.SetRiceInbound(tx, l.(*models.RiceLedger), section, lifted, arranged)
	})
}

func SetAmountReceived(ctx context.Context, db *gorm.DB, logger *logrus.Logger, schoolId string, p models.Period, section models.Section, received decimal.Decimal) (*models.LedgerBalance, error) {
	return editLedger(ctx, db, logger, models.ResourceAmount, schoolId, p, "SetAmountReceived", func(tx *gorm.DB, l models.PeriodLedger) error {
		return models.SetAmountReceived(tx, l.(*models.AmountLedger), section, received)
	})
}

func editLedger(ctx context.Context, db *gorm.DB, logger *logrus.Logger, kind models.ResourceKind, schoolId string, p models.Period, funcName string, edit func(tx *gorm.DB, l models.PeriodLedger) error) (balance *models.LedgerBalance, err error) {
	ctx, span := startSpan(ctx, "workflow."+funcName, schoolId, p, kind)
	defer func() { endSpan(span, err) }()

	var changes staleChanges
	err = withPeriodLocks(ctx, db, periodLockKeys(schoolId, p, kind), funcName, func(tx *gorm.DB) error {
		ledger, err := models.GetOrCreateLedger(tx, kind, schoolId, p, true)
		if err != nil {
			return err
		}
		if err := edit(tx, ledger); err != nil {
			return err
		}
		b := ledger.Balance()
		balance = &b
		return markPeriodStale(tx, schoolId, p, models.StaleReasonLedgerInbound, clock(), &changes, kind)
	})
	if err != nil {
		if !errors.Is(err, models.ErrLedgerLocked) {
			config.LogError(logger, "ledgerWorkflow.go", funcName, "edit ledger", p.String(), err)
		}
		return nil, err
	}
	changes.announce(ctx, logger)
	return balance, nil
}

// LockLedger locks one ledger. With LOCK_REQUIRES_COMPLETION the ledger must be completed first.
func LockLedger(ctx context.Context, db *gorm.DB, logger *logrus.Logger, kind models.ResourceKind, schoolId string, p models.Period, actor models.Actor, reason string) (*models.LedgerBalance, error) {
	return transitionLedger(ctx, db, logger, kind, schoolId, p, "LockLedger", func(tx *gorm.DB, l models.PeriodLedger) error {
		return models.LockLedger(tx, l, actor, reason, clock())
	})
}

func UnlockLedger(ctx context.Context, db *gorm.DB, logger *logrus.Logger, kind models.ResourceKind, schoolId string, p models.Period, actor models.Actor, reason string) (*models.LedgerBalance, error) {
	return transitionLedger(ctx, db, logger, kind, schoolId, p, "UnlockLedger", func(tx *gorm.DB, l models.PeriodLedger) error {
		return models.UnlockLedger(tx, l, actor, reason, clock())
	})
}

func transitionLedger(ctx context.Context, db *gorm.DB, logger *logrus.Logger, kind models.ResourceKind, schoolId string, p models.Period, funcName string, transition func(tx *gorm.DB, l models.PeriodLedger) error) (balance *models.LedgerBalance, err error) {
	ctx, span := startSpan(ctx, "workflow."+funcName, schoolId, p, kind)
	defer func() { endSpan(span, err) }()

	err = withPeriodLocks(ctx, db, periodLockKeys(schoolId, p, kind), funcName, func(tx *gorm.DB) error {
		ledger, err := models.GetOrCreateLedger(tx, kind, schoolId, p, true)
		if err != nil {
			return err
		}
		if err := transition(tx, ledger); err != nil {
			return err
		}
		b := ledger.Balance()
		balance = &b
		return nil
	})
	if err != nil {
		config.LogError(logger, "ledgerWorkflow.go", funcName, "transition", p.String(), err)
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"school_id": schoolId,
		"period":    p.String(),
		"kind":      kind,
		"status":    balance.Status,
	}).Info(funcName)
	return balance, nil
}

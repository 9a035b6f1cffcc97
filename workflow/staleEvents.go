package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/models/reports"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type staleChange struct {
	snap    models.ReportSnapshot
	cascade bool
}

// staleChanges collects snapshots turned stale inside a transaction; they are
// announced only after commit.
type staleChanges []staleChange

func (c *staleChanges) add(cascade bool, snaps ...models.ReportSnapshot) {
	for _, s := range snaps {
		*c = append(*c, staleChange{snap: s, cascade: cascade})
	}
}

func (c staleChanges) snapshots() []models.ReportSnapshot {
	out := make([]models.ReportSnapshot, 0, len(c))
	for _, ch := range c {
		out = append(out, ch.snap)
	}
	return out
}

// announce drops cached copies and publishes a stale event per snapshot.
// Failures are logged; the database already holds the stale flag.
func (c staleChanges) announce(ctx context.Context, logger *logrus.Logger) {
	if len(c) == 0 {
		return
	}
	if err := reports.InvalidateSnapshots(ctx, c.snapshots()...); err != nil {
		config.LogError(logger, "staleEvents.go", "announce", "InvalidateSnapshots", len(c), err)
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	for _, ch := range c {
		st := ch.snap.StalenessState()
		evt := config.SnapshotStaleEvent{
			SchoolId:      ch.snap.GetSchoolId(),
			ReportKind:    string(ch.snap.Kind()),
			Period:        ch.snap.Period().String(),
			Reason:        st.StaleReason,
			Cascade:       ch.cascade,
			CorrelationId: cid,
		}
		if st.StaleSince != nil {
			evt.StaleSince = *st.StaleSince
		} else {
			evt.StaleSince = time.Now().UTC()
		}
		if _, err := config.PublishSnapshotStale(ctx, evt); err != nil {
			config.LogError(logger, "staleEvents.go", "announce", "PublishSnapshotStale", evt, err)
		}
	}
	logger.WithFields(logrus.Fields{
		"count":          len(c),
		"correlation_id": cid,
	}).Info("snapshots marked stale")
}

// markPeriodStale flags the given report kinds of period p with reason and
// cascades to every later snapshot of those kinds. The caller must hold the
// period lock of each kind it passes.
func markPeriodStale(tx *gorm.DB, schoolId string, p models.Period, reason string, at time.Time, changes *staleChanges, kinds ...models.ResourceKind) error {
	for _, kind := range kinds {
		snap, err := models.GetReportSnapshotForUpdate(tx, kind, schoolId, p)
		if err != nil {
			if errors.Is(err, models.ErrSnapshotNotFound) {
				continue
			}
			return err
		}
		changed, err := models.MarkSnapshotStale(tx, snap, reason, at)
		if err != nil {
			return err
		}
		if changed {
			changes.add(false, snap)
		}
	}
	if len(kinds) == 0 {
		return nil
	}
	cascaded, err := models.CascadeStale(tx, schoolId, p, reason, at, kinds...)
	if err != nil {
		return err
	}
	changes.add(true, cascaded...)
	return nil
}

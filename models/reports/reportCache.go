package reports

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	ms := int64(500)
	if v := strings.TrimSpace(os.Getenv("REPORT_SLOW_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ms = n
		}
	}
	return ms
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra logrus.Fields) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	config.GetLogger().WithFields(extra).WithFields(config.ScopeFields(ctx)).WithFields(logrus.Fields{
		"report": name,
		"ms":     d.Milliseconds(),
	}).Warn("slow_report")
}

func snapshotCacheKey(kind models.ResourceKind, schoolId string, p models.Period) string {
	return fmt.Sprintf("ReportSnapshot:%s:%s:%s", kind, schoolId, p)
}

// GetSnapshot reads a snapshot, going through Redis when ENABLE_REPORT_CACHE
// is set. Cache failures fall back to the database.
func GetSnapshot(ctx context.Context, db *gorm.DB, kind models.ResourceKind, schoolId string, p models.Period) (models.ReportSnapshot, error) {
	defer logSlowReport(ctx, "GetSnapshot", time.Now(), logrus.Fields{"kind": kind, "period": p.String()})
	if !config.ReportCacheEnabled() {
		return models.GetReportSnapshot(db.WithContext(ctx), kind, schoolId, p)
	}

	key := snapshotCacheKey(kind, schoolId, p)
	var cached models.ReportSnapshot
	switch kind {
	case models.ResourceRice:
		cached = &models.RiceReportSnapshot{}
	case models.ResourceAmount:
		cached = &models.AmountReportSnapshot{}
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	if exists, err := config.GetRedisObject(ctx, key, cached); err == nil && exists {
		return cached, nil
	} else if err != nil {
		config.LogError(config.GetLogger(), "reportCache.go", "GetSnapshot", "GetRedisObject", key, err)
	}

	snap, err := models.GetReportSnapshot(db.WithContext(ctx), kind, schoolId, p)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, key, snap, config.ReportCacheTTL()); err != nil {
		config.LogError(config.GetLogger(), "reportCache.go", "GetSnapshot", "SetRedisObject", key, err)
	}
	return snap, nil
}

// InvalidateSnapshot drops the cached copy of one period's snapshot.
func InvalidateSnapshot(ctx context.Context, kind models.ResourceKind, schoolId string, p models.Period) error {
	return config.RemoveRedisKey(ctx, snapshotCacheKey(kind, schoolId, p))
}

func InvalidateSnapshots(ctx context.Context, snaps ...models.ReportSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	keys := make([]string, 0, len(snaps))
	for _, s := range snaps {
		keys = append(keys, snapshotCacheKey(s.Kind(), s.GetSchoolId(), s.Period()))
	}
	return config.RemoveRedisKey(ctx, keys...)
}

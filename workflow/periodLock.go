package workflow

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/utils"
	"gorm.io/gorm"
)

// MySQL caps user lock names at 64 characters.
const maxAdvisoryLockName = 64

func advisoryLockName(key string) string {
	if len(key) <= maxAdvisoryLockName {
		return key
	}
	sum := sha1.Sum([]byte(key))
	return "periodLock:" + hex.EncodeToString(sum[:])
}

// AcquirePeriodLock serializes work on one (school, period, kind) across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that runs the transaction.
func AcquirePeriodLock(tx *gorm.DB, key string) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", advisoryLockName(key)).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire period lock %s", key)
	}
	return nil
}

func ReleasePeriodLock(tx *gorm.DB, key string) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", advisoryLockName(key)).Scan(&_ok).Error
}

func periodLockKeys(schoolId string, p models.Period, kinds ...models.ResourceKind) []string {
	keys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		keys = append(keys, utils.PeriodLockKey(schoolId, p.String(), string(k)))
	}
	sort.Strings(keys)
	return keys
}

// withPeriodLocks holds the process/Redis locks for every key, then runs fn in
// one transaction that also holds the MySQL advisory locks. Keys are taken in
// sorted order.
func withPeriodLocks(ctx context.Context, db *gorm.DB, keys []string, funcName string, fn func(tx *gorm.DB) error) error {
	for _, key := range keys {
		unlock, err := utils.LockPeriod(ctx, key, "workflow", funcName)
		if err != nil {
			return err
		}
		defer unlock()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			if err := AcquirePeriodLock(tx, key); err != nil {
				return err
			}
			defer ReleasePeriodLock(tx, key)
		}
		return fn(tx)
	})
}

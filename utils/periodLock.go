package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/mdm_backend/config"
)

const periodLockTTL = 30 * time.Second

var periodMutexes = NewKeyedMutex()

// PeriodLockKey names the unit of mutual exclusion: one resource kind of one school's period.
func PeriodLockKey(schoolId string, period string, kind string) string {
	return fmt.Sprintf("periodLock:%s:%s:%s", kind, schoolId, period)
}

// LockPeriod serializes work on key inside this process and, when Redis is
// connected, across instances. The returned func releases both.
func LockPeriod(ctx context.Context, key string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	unlockLocal := periodMutexes.Lock(key)

	locker := config.GetRedisLock()
	if locker == nil {
		return unlockLocal, nil
	}

	lock, err := locker.Obtain(ctx, key, periodLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		unlockLocal()
		config.LogError(logger, moduleName, functionName, "Could not obtain period lock", key, err)
		return nil, fmt.Errorf("period is busy, retry later (%s)", key)
	} else if err != nil {
		unlockLocal()
		config.LogError(logger, moduleName, functionName, "Error obtaining period lock", key, err)
		return nil, err
	}

	return func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			config.LogError(logger, moduleName, functionName, "Releasing period lock", key, releaseErr)
		}
		unlockLocal()
	}, nil
}

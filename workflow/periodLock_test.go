package workflow

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/utils"
)

// These tests are DB-free: Redis is not connected, so LockPeriod falls back
// to the in-process keyed mutex.

func TestPeriodLockKeys_SortedAndDistinctPerKind(t *testing.T) {
	p := models.Period{Year: 2024, Month: 3}
	keys := periodLockKeys("school-1", p, models.ResourceRice, models.ResourceAmount)
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}
	if keys[0] != "periodLock:amount:school-1:2024-03" || keys[1] != "periodLock:rice:school-1:2024-03" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestAdvisoryLockName_Caps64(t *testing.T) {
	short := "periodLock:rice:s1:2024-03"
	if advisoryLockName(short) != short {
		t.Fatalf("short names must pass through")
	}
	long := utils.PeriodLockKey(strings.Repeat("x", 80), "2024-03", "amount")
	name := advisoryLockName(long)
	if len(name) > maxAdvisoryLockName {
		t.Fatalf("name too long: %d", len(name))
	}
	if name != advisoryLockName(long) {
		t.Fatalf("hashing must be stable")
	}
	other := advisoryLockName(utils.PeriodLockKey(strings.Repeat("x", 80), "2024-04", "amount"))
	if name == other {
		t.Fatalf("different keys must not collide")
	}
}

// Holders of one period key run one at a time, so a check-then-set under the
// key happens exactly once.
func TestLockPeriod_SerializesHoldersOfOneKey(t *testing.T) {
	for run := 0; run < 50; run++ {
		key := utils.PeriodLockKey("school-1", "2024-03", "rice")
		var (
			mu      sync.Mutex
			exists  bool
			creates int
			wg      sync.WaitGroup
		)
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := utils.LockPeriod(context.Background(), key, "periodLock_test.go", "getOrCreate")
				if err != nil {
					t.Errorf("LockPeriod: %v", err)
					return
				}
				defer unlock()
				mu.Lock()
				seen := exists
				mu.Unlock()
				if !seen {
					mu.Lock()
					exists = true
					creates++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if creates != 1 {
			t.Fatalf("run=%d expected exactly one create, got %d", run, creates)
		}
	}
}

func TestStaleChanges_KeepsOrderAndCascadeFlag(t *testing.T) {
	march := &models.RiceReportSnapshot{SchoolId: "s1", Year: 2024, Month: 3}
	april := &models.AmountReportSnapshot{SchoolId: "s1", Year: 2024, Month: 4}

	var changes staleChanges
	changes.add(false, march)
	changes.add(true, april)

	snaps := changes.snapshots()
	if len(snaps) != 2 || snaps[0] != models.ReportSnapshot(march) || snaps[1] != models.ReportSnapshot(april) {
		t.Fatalf("unexpected snapshots %v", snaps)
	}
	if changes[0].cascade || !changes[1].cascade {
		t.Fatalf("cascade flags not preserved: %+v", changes)
	}
}

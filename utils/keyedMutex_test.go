package utils

import (
	"sync"
	"testing"
)

// NOTE: DB-free. Models the per-(school, period, kind) serialization that
// LockPeriod provides before any Redis or MySQL lock is taken.

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("periodLock:rice:school-1:2024-03")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most 1 holder at a time, saw %d", maxSeen)
	}
	if k.Len() != 0 {
		t.Fatalf("expected all keys released, got %d", k.Len())
	}
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyedMutex()
	unlockRice := k.Lock(PeriodLockKey("school-1", "2024-03", "rice"))
	defer unlockRice()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock(PeriodLockKey("school-1", "2024-03", "amount"))
		unlock()
		close(done)
	}()
	<-done

	if k.Len() != 1 {
		t.Fatalf("expected only the rice key held, got %d", k.Len())
	}
}

func TestKeyedMutex_UnlockIsIdempotent(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	unlock()
	if k.Len() != 0 {
		t.Fatalf("double unlock must not corrupt refcount, got %d", k.Len())
	}
	again := k.Lock("a")
	again()
}

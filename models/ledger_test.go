package models

import (
	"errors"
	"testing"
	"time"
)

func TestRiceLedger_RecomputeTotals_Example(t *testing.T) {
	l := RiceLedger{PrimaryOpening: dec("100"), PrimaryLifted: dec("50"), PrimaryArranged: dec("0"), PrimaryConsumed: dec("9.5")}
	l.RecomputeTotals()
	if !l.PrimaryTotalAvailable.Equal(dec("150")) {
		t.Fatalf("expected total available 150, got %s", l.PrimaryTotalAvailable)
	}
	if !l.PrimaryClosing.Equal(dec("140.5")) {
		t.Fatalf("expected closing 140.5, got %s", l.PrimaryClosing)
	}
}

func TestRiceLedger_NegativeClosingIsKept(t *testing.T) {
	l := RiceLedger{MiddleOpening: dec("5"), MiddleConsumed: dec("9.5")}
	l.RecomputeTotals()
	if !l.MiddleClosing.Equal(dec("-4.5")) {
		t.Fatalf("expected -4.5, got %s", l.MiddleClosing)
	}
}

func TestAmountLedger_RecomputeRoundsOnlyClosing(t *testing.T) {
	l := AmountLedger{PrimaryOpening: dec("10.0049"), PrimaryReceived: dec("0.0001"), PrimaryConsumed: dec("3")}
	l.RecomputeTotals()
	if !l.PrimaryTotalAvailable.Equal(dec("10.005")) {
		t.Fatalf("total available must not be rounded, got %s", l.PrimaryTotalAvailable)
	}
	if !l.PrimaryClosing.Equal(dec("7.01")) {
		t.Fatalf("expected closing 7.01, got %s", l.PrimaryClosing)
	}
}

func TestSeedFromPrevious_CarriesClosing(t *testing.T) {
	prev := &RiceLedger{ID: 7, SchoolId: "school-1", Year: 2024, Month: 2, PrimaryClosing: dec("12.25"), MiddleClosing: dec("-3")}
	next := &RiceLedger{}
	next.init("school-1", Period{Year: 2024, Month: 3})

	if err := seedFromPrevious(next, prev); err != nil {
		t.Fatalf("seedFromPrevious: %v", err)
	}
	next.RecomputeTotals()

	if !next.PrimaryOpening.Equal(dec("12.25")) || !next.MiddleOpening.Equal(dec("-3")) {
		t.Fatalf("expected openings 12.25/-3, got %s/%s", next.PrimaryOpening, next.MiddleOpening)
	}
	if !next.CarriedForward || next.PreviousLedgerId == nil || *next.PreviousLedgerId != 7 {
		t.Fatalf("expected carried-forward link to ledger 7, got %+v", next.LedgerLifecycle)
	}
	if !next.PrimaryClosing.Equal(dec("12.25")) {
		t.Fatalf("closing before any activity should equal opening, got %s", next.PrimaryClosing)
	}
}

func TestSeedFromPrevious_RequiresCompletionWhenFlagged(t *testing.T) {
	t.Setenv("CARRY_FORWARD_REQUIRES_COMPLETION", "true")

	prev := &AmountLedger{ID: 3, SchoolId: "school-1", Year: 2023, Month: 12, PrimaryClosing: dec("50")}
	next := &AmountLedger{}
	next.init("school-1", Period{Year: 2024, Month: 1})

	if err := seedFromPrevious(next, prev); err != nil {
		t.Fatalf("seedFromPrevious: %v", err)
	}
	if !next.PrimaryOpening.IsZero() || next.CarriedForward {
		t.Fatalf("draft predecessor must not seed when completion is required")
	}

	prev.IsCompleted = true
	if err := seedFromPrevious(next, prev); err != nil {
		t.Fatalf("seedFromPrevious: %v", err)
	}
	if !next.PrimaryOpening.Equal(dec("50")) || !next.CarriedForward {
		t.Fatalf("completed predecessor should seed opening, got %s", next.PrimaryOpening)
	}
}

func TestSeedFromPrevious_RejectsBrokenChain(t *testing.T) {
	row := &RiceLedger{}
	row.init("school-1", Period{Year: 2024, Month: 4})

	cases := map[string]PeriodLedger{
		"later period":   &RiceLedger{ID: 9, SchoolId: "school-1", Year: 2024, Month: 5, PrimaryClosing: dec("1")},
		"same period":    &RiceLedger{ID: 9, SchoolId: "school-1", Year: 2024, Month: 4},
		"other school":   &RiceLedger{ID: 9, SchoolId: "school-2", Year: 2024, Month: 3},
		"other resource": &AmountLedger{ID: 9, SchoolId: "school-1", Year: 2024, Month: 3},
	}
	for name, prev := range cases {
		if err := seedFromPrevious(row, prev); !errors.Is(err, ErrLedgerChain) {
			t.Fatalf("%s: got %v, want ErrLedgerChain", name, err)
		}
		if row.PreviousLedgerId != nil || row.CarriedForward {
			t.Fatalf("%s: rejected predecessor must not be linked", name)
		}
	}
}

func TestReseedFromPrevious_SkipsLedgersThatMoved(t *testing.T) {
	prev := &RiceLedger{ID: 3, SchoolId: "school-1", Year: 2024, Month: 3, PrimaryClosing: dec("31")}
	prev.IsCompleted = true

	withInbound := &RiceLedger{}
	withInbound.init("school-1", Period{Year: 2024, Month: 4})
	withInbound.SetInbound(SectionMiddle, dec("5"), dec("0"))

	withConsumption := &RiceLedger{}
	withConsumption.init("school-1", Period{Year: 2024, Month: 4})
	withConsumption.SetConsumed(dec("0"), dec("2.5"))

	carried := &RiceLedger{}
	carried.init("school-1", Period{Year: 2024, Month: 4})
	carried.CarriedForward = true

	locked := &RiceLedger{}
	locked.init("school-1", Period{Year: 2024, Month: 4})
	locked.IsLocked = true

	// None of these reach the database.
	for name, next := range map[string]*RiceLedger{
		"inbound":     withInbound,
		"consumption": withConsumption,
		"carried":     carried,
		"locked":      locked,
	} {
		reseeded, err := ReseedFromPrevious(nil, next, prev)
		if err != nil || reseeded {
			t.Fatalf("%s: ReseedFromPrevious = %v, %v; want false, nil", name, reseeded, err)
		}
		if !next.PrimaryOpening.IsZero() {
			t.Fatalf("%s: opening must stay untouched, got %s", name, next.PrimaryOpening)
		}
	}
}

func TestLedgerLifecycle_Transitions(t *testing.T) {
	var l LedgerLifecycle
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	actor := Actor{Id: 4, Name: "Head Teacher"}

	if l.Status() != LedgerStatusDraft || !l.CanEdit() {
		t.Fatalf("new ledger should be an editable draft")
	}
	l.markCompleted(actor, "March closed", at)
	if l.Status() != LedgerStatusCompleted || !l.CanEdit() {
		t.Fatalf("completed ledger should stay editable until locked")
	}
	l.markLocked(actor, "audit", at)
	if l.Status() != LedgerStatusLocked || l.CanEdit() {
		t.Fatalf("locked ledger must not be editable")
	}
	l.markUnlocked(actor, "correction", at.Add(time.Hour))
	if l.Status() != LedgerStatusCompleted || !l.CanEdit() {
		t.Fatalf("unlock should return to completed, got %s", l.Status())
	}
	if l.UnlockReason != "correction" || l.UnlockedBy != 4 || l.UnlockedAt == nil {
		t.Fatalf("unlock audit fields not recorded: %+v", l)
	}
}

func TestLedgerLifecycle_LockWithoutCompletion(t *testing.T) {
	var l LedgerLifecycle
	l.markLocked(Actor{Id: 1, Name: "Admin"}, "inspection", time.Now())
	if l.Status() != LedgerStatusLocked || l.IsCompleted {
		t.Fatalf("a draft may be locked directly")
	}
}

func TestConsumedFromAttendance_MatchesSnapshotTotals(t *testing.T) {
	rates := riceRates("100", "150")
	records := []DailyAttendanceRecord{attendance(1, 4, 50, 30), attendance(2, 5, 41, 17)}
	primary, middle := ConsumedFromAttendance(ResourceRice, records, rates)

	ledger := &RiceLedger{PrimaryOpening: dec("20"), MiddleOpening: dec("20")}
	ledger.RecomputeTotals()
	snap := BuildRiceSnapshot("school-1", Period{Year: 2024, Month: 3}, rates, ledger, records)
	if !snap.ConsumedPrimary.Equal(primary) || !snap.ConsumedMiddle.Equal(middle) {
		t.Fatalf("ledger sync %s/%s differs from report %s/%s", primary, middle, snap.ConsumedPrimary, snap.ConsumedMiddle)
	}
}

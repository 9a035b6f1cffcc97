package models

import (
	"bytes"
	"errors"
	"testing"
)

func marchRecords() []DailyAttendanceRecord {
	return []DailyAttendanceRecord{
		attendance(11, 1, 50, 30),
		attendance(12, 2, 48, 29),
		attendance(13, 4, 52, 31),
	}
}

func TestBuildRiceSnapshot_Totals(t *testing.T) {
	rates := riceRates("100", "150")
	ledger := &RiceLedger{ID: 5, PrimaryOpening: dec("10"), PrimaryLifted: dec("20"), MiddleOpening: dec("5")}
	ledger.RecomputeTotals()

	snap := BuildRiceSnapshot("school-1", Period{Year: 2024, Month: 3}, rates, ledger, marchRecords())

	if snap.ServedPrimary != 150 || snap.ServedMiddle != 90 || snap.AttendanceDays != 3 {
		t.Fatalf("unexpected served totals %d/%d days=%d", snap.ServedPrimary, snap.ServedMiddle, snap.AttendanceDays)
	}
	if !snap.ConsumedPrimary.Equal(dec("15")) || !snap.ConsumedMiddle.Equal(dec("13.5")) {
		t.Fatalf("unexpected consumed %s/%s", snap.ConsumedPrimary, snap.ConsumedMiddle)
	}
	if !snap.ClosingPrimary.Equal(dec("15")) || !snap.ClosingMiddle.Equal(dec("-8.5")) {
		t.Fatalf("unexpected closing %s/%s", snap.ClosingPrimary, snap.ClosingMiddle)
	}
	daily := snap.DailyBreakdown.Data()
	if len(daily) != 3 || !daily[2].BalanceMiddle.Equal(snap.ClosingMiddle) {
		t.Fatalf("last daily balance must equal closing, got %+v", daily)
	}
	if snap.SourceHash != HashAttendance(marchRecords()) {
		t.Fatalf("snapshot must carry the attendance hash")
	}
}

func TestBuildAmountSnapshot_SaltAndFrozenPercentages(t *testing.T) {
	rates := DefaultRates()
	rates.SaltPercentages = SaltPercentages{Common: dec("40"), Chilli: dec("20"), Turmeric: dec("20"), Coriander: dec("10"), Other: dec("10")}
	ledger := &AmountLedger{PrimaryReceived: dec("1000"), MiddleReceived: dec("1000")}
	ledger.RecomputeTotals()

	snap := BuildAmountSnapshot("school-1", Period{Year: 2024, Month: 3}, rates, ledger, marchRecords())

	if !snap.SaltTotal.Equal(snap.Primary.Salt.Add(snap.Middle.Salt)) {
		t.Fatalf("salt total must combine both sections")
	}
	if snap.Salt.Sum().Sub(snap.SaltTotal).Abs().GreaterThan(dec("0.01")) {
		t.Fatalf("salt breakdown %s must sum to salt total %s", snap.Salt.Sum(), snap.SaltTotal)
	}
	if !snap.SaltPercentages.Common.Equal(dec("40")) {
		t.Fatalf("snapshot must freeze the percentages in effect, got %+v", snap.SaltPercentages)
	}

	// editing the rate set afterwards must not reach the snapshot
	rates.SaltPercentages.Common = dec("10")
	if !snap.SaltPercentages.Common.Equal(dec("40")) {
		t.Fatalf("snapshot percentages changed with the rate set")
	}
	wantTotal := snap.Primary.Total.Add(snap.Middle.Total)
	if !snap.ConsumedTotal.Equal(wantTotal) {
		t.Fatalf("consumed total %s != %s", snap.ConsumedTotal, wantTotal)
	}
}

func TestSnapshotPayload_DeterministicAcrossBuilds(t *testing.T) {
	rates := DefaultRates()
	ledger := &AmountLedger{ID: 1, PrimaryOpening: dec("12.5")}
	ledger.RecomputeTotals()
	p := Period{Year: 2024, Month: 3}

	first := BuildAmountSnapshot("school-1", p, rates, ledger, marchRecords())
	first.ID, first.GenerationId = 1, "gen-a"
	shuffled := []DailyAttendanceRecord{marchRecords()[2], marchRecords()[0], marchRecords()[1]}
	second := BuildAmountSnapshot("school-1", p, rates, ledger, shuffled)
	second.ID, second.GenerationId = 2, "gen-b"
	second.MarkStale("source data changed", second.GeneratedAt)

	a, err := first.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	b, err := second.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("payloads differ:\n%s\n%s", a, b)
	}
}

func TestPreflightError_MapsFirstIssue(t *testing.T) {
	if PreflightError(nil) != nil {
		t.Fatalf("no issues means no error")
	}
	err := PreflightError([]PreflightIssue{
		{Code: IssueNoSourceData, Message: "No attendance records for 2024-03"},
		{Code: IssueDuplicateGeneration, Message: "exists"},
	})
	if !errors.Is(err, ErrNoSourceData) {
		t.Fatalf("expected ErrNoSourceData, got %v", err)
	}
}

package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func exportRecords() []models.DailyAttendanceRecord {
	day := func(id, d, p, m int) models.DailyAttendanceRecord {
		return models.DailyAttendanceRecord{ID: id, SchoolId: "school-1", Date: time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC), ServedPrimary: p, ServedMiddle: m}
	}
	return []models.DailyAttendanceRecord{day(1, 1, 50, 30), day(2, 4, 40, 20)}
}

func TestExportSnapshot_Rice(t *testing.T) {
	ledger := &models.RiceLedger{PrimaryOpening: decimal.NewFromInt(10), PrimaryLifted: decimal.NewFromInt(5)}
	ledger.RecomputeTotals()
	snap := models.BuildRiceSnapshot("school-1", models.Period{Year: 2024, Month: 3}, models.DefaultRates(), ledger, exportRecords())

	var buf bytes.Buffer
	if err := ExportSnapshot(snap, &buf); err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	period, err := f.GetCellValue(summarySheet, "B2")
	if err != nil || period != "2024-03" {
		t.Fatalf("period cell = %q, %v", period, err)
	}
	rows, err := f.GetRows(dailySheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 daily rows, got %d", len(rows))
	}
	// 90 primary served x 100g = 9kg from 15kg available
	if last := rows[2]; last[0] != "2024-03-04" || last[6] != "6.00" {
		t.Fatalf("unexpected last daily row %v", last)
	}
}

func TestExportSnapshot_AmountListsSaltSplit(t *testing.T) {
	ledger := &models.AmountLedger{PrimaryReceived: decimal.NewFromInt(1000)}
	ledger.RecomputeTotals()
	snap := models.BuildAmountSnapshot("school-1", models.Period{Year: 2024, Month: 3}, models.DefaultRates(), ledger, exportRecords())

	var buf bytes.Buffer
	if err := ExportSnapshot(snap, &buf); err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range rows {
		if len(r) >= 3 && r[0] == "Salt: common" {
			found = true
			if r[1] != snap.Salt.Common.StringFixed(2) || r[2] != "30%" {
				t.Fatalf("unexpected salt row %v", r)
			}
		}
	}
	if !found {
		t.Fatalf("summary sheet has no salt split rows")
	}
	if name := ExportFileName(snap); name != "amount-report-school-1-2024-03.xlsx" {
		t.Fatalf("ExportFileName = %q", name)
	}
}

func TestSnapshotCacheKey(t *testing.T) {
	got := snapshotCacheKey(models.ResourceRice, "school-1", models.Period{Year: 2024, Month: 11})
	if got != "ReportSnapshot:rice:school-1:2024-11" {
		t.Fatalf("snapshotCacheKey = %q", got)
	}
}

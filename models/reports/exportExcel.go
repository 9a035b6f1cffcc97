package reports

import (
	"fmt"
	"io"

	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	dailySheet   = "Daily"
)

// ExportFileName is the attachment name used for a snapshot export.
func ExportFileName(snap models.ReportSnapshot) string {
	return fmt.Sprintf("%s-report-%s-%s.xlsx", snap.Kind(), snap.GetSchoolId(), snap.Period())
}

// ExportSnapshot writes the snapshot's totals and daily breakdown as xlsx.
func ExportSnapshot(snap models.ReportSnapshot, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(dailySheet); err != nil {
		return err
	}

	var err error
	switch s := snap.(type) {
	case *models.RiceReportSnapshot:
		err = writeRiceSnapshot(f, s)
	case *models.AmountReportSnapshot:
		err = writeAmountSnapshot(f, s)
	default:
		err = fmt.Errorf("unsupported snapshot type %T", snap)
	}
	if err != nil {
		return err
	}
	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeSummary(f *excelize.File, rows [][]interface{}) error {
	for i, r := range rows {
		if err := setRow(f, summarySheet, i+1, r...); err != nil {
			return err
		}
	}
	return nil
}

func staleLabel(st *models.Staleness) string {
	if !st.IsStale {
		return "No"
	}
	return "Yes: " + st.StaleReason
}

func writeRiceSnapshot(f *excelize.File, s *models.RiceReportSnapshot) error {
	err := writeSummary(f, [][]interface{}{
		{"School", s.SchoolId},
		{"Period", s.Period().String()},
		{"Attendance days", s.AttendanceDays},
		{"", "Primary", "Middle"},
		{"Students served", s.ServedPrimary, s.ServedMiddle},
		{"Opening (kg)", s.OpeningPrimary.String(), s.OpeningMiddle.String()},
		{"Inbound (kg)", s.InboundPrimary.String(), s.InboundMiddle.String()},
		{"Available (kg)", s.AvailablePrimary.String(), s.AvailableMiddle.String()},
		{"Consumed (kg)", s.ConsumedPrimary.String(), s.ConsumedMiddle.String()},
		{"Closing (kg)", s.ClosingPrimary.StringFixed(2), s.ClosingMiddle.StringFixed(2)},
		{"Grams per student", s.RicePrimaryGrams.String(), s.RiceMiddleGrams.String()},
		{"Stale", staleLabel(&s.Staleness)},
	})
	if err != nil {
		return err
	}
	if err := setRow(f, dailySheet, 1, "Date", "Served primary", "Served middle", "Consumed primary", "Consumed middle", "Consumed total", "Balance primary", "Balance middle"); err != nil {
		return err
	}
	for i, d := range s.DailyBreakdown.Data() {
		err := setRow(f, dailySheet, i+2, d.Date, d.ServedPrimary, d.ServedMiddle,
			d.ConsumedPrimary.StringFixed(2), d.ConsumedMiddle.StringFixed(2), d.ConsumedTotal.StringFixed(2),
			d.BalancePrimary.StringFixed(2), d.BalanceMiddle.StringFixed(2))
		if err != nil {
			return err
		}
	}
	return nil
}

func writeAmountSnapshot(f *excelize.File, s *models.AmountReportSnapshot) error {
	err := writeSummary(f, [][]interface{}{
		{"School", s.SchoolId},
		{"Period", s.Period().String()},
		{"Attendance days", s.AttendanceDays},
		{"", "Primary", "Middle"},
		{"Students served", s.ServedPrimary, s.ServedMiddle},
		{"Opening", s.OpeningPrimary.StringFixed(2), s.OpeningMiddle.StringFixed(2)},
		{"Received", s.ReceivedPrimary.StringFixed(2), s.ReceivedMiddle.StringFixed(2)},
		{"Available", s.AvailablePrimary.StringFixed(2), s.AvailableMiddle.StringFixed(2)},
		{"Pulses", s.Primary.Pulses.StringFixed(2), s.Middle.Pulses.StringFixed(2)},
		{"Vegetables", s.Primary.Vegetables.StringFixed(2), s.Middle.Vegetables.StringFixed(2)},
		{"Oil", s.Primary.Oil.StringFixed(2), s.Middle.Oil.StringFixed(2)},
		{"Salt", s.Primary.Salt.StringFixed(2), s.Middle.Salt.StringFixed(2)},
		{"Fuel", s.Primary.Fuel.StringFixed(2), s.Middle.Fuel.StringFixed(2)},
		{"Consumed", s.Primary.Total.StringFixed(2), s.Middle.Total.StringFixed(2)},
		{"Closing", s.ClosingPrimary.StringFixed(2), s.ClosingMiddle.StringFixed(2)},
		{"Salt total", s.SaltTotal.StringFixed(2)},
		{"Salt: common", s.Salt.Common.StringFixed(2), s.SaltPercentages.Common.String() + "%"},
		{"Salt: chilli", s.Salt.Chilli.StringFixed(2), s.SaltPercentages.Chilli.String() + "%"},
		{"Salt: turmeric", s.Salt.Turmeric.StringFixed(2), s.SaltPercentages.Turmeric.String() + "%"},
		{"Salt: coriander", s.Salt.Coriander.StringFixed(2), s.SaltPercentages.Coriander.String() + "%"},
		{"Salt: other", s.Salt.Other.StringFixed(2), s.SaltPercentages.Other.String() + "%"},
		{"Purchase bills", len(s.Bills)},
		{"Stale", staleLabel(&s.Staleness)},
	})
	if err != nil {
		return err
	}
	header := []interface{}{"Date", "Served primary", "Served middle",
		"Pulses", "Vegetables", "Oil", "Salt", "Fuel", "Consumed total",
		"Common salt", "Chilli", "Turmeric", "Coriander", "Other", "Balance primary", "Balance middle"}
	if err := setRow(f, dailySheet, 1, header...); err != nil {
		return err
	}
	for i, d := range s.DailyBreakdown.Data() {
		c := d.Primary.Add(d.Middle)
		err := setRow(f, dailySheet, i+2, d.Date, d.ServedPrimary, d.ServedMiddle,
			c.Pulses.StringFixed(2), c.Vegetables.StringFixed(2), c.Oil.StringFixed(2), c.Salt.StringFixed(2), c.Fuel.StringFixed(2),
			d.ConsumedTotal.StringFixed(2),
			d.Salt.Common.StringFixed(2), d.Salt.Chilli.StringFixed(2), d.Salt.Turmeric.StringFixed(2), d.Salt.Coriander.StringFixed(2), d.Salt.Other.StringFixed(2),
			d.BalancePrimary.StringFixed(2), d.BalanceMiddle.StringFixed(2))
		if err != nil {
			return err
		}
	}
	return nil
}

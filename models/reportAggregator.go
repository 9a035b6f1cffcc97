package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CanGenerate returns every condition that would block generation. An empty
// slice means GenerateReport will not fail on pre-flight grounds.
func CanGenerate(tx *gorm.DB, kind ResourceKind, schoolId string, p Period) ([]PreflightIssue, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	issues := make([]PreflightIssue, 0)

	rc, ok, err := rateConfigExists(tx, schoolId, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		issues = append(issues, PreflightIssue{
			Code:    IssueConfigurationMissing,
			Message: fmt.Sprintf("No rate configuration for %s", p),
		})
	} else if !rc.SaltPercentages.IsZero() {
		if err := rc.SaltPercentages.Validate(); err != nil {
			issues = append(issues, PreflightIssue{
				Code:    IssueInvalidPercentages,
				Message: fmt.Sprintf("Salt percentages for %s sum to %s, expected 100", p, rc.SaltPercentages.Sum().StringFixed(2)),
			})
		}
	}

	count, err := CountAttendanceForPeriod(tx, schoolId, p)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		issues = append(issues, PreflightIssue{
			Code:    IssueNoSourceData,
			Message: fmt.Sprintf("No attendance records for %s", p),
		})
	}

	exists, err := snapshotExists(tx, kind, schoolId, p)
	if err != nil {
		return nil, err
	}
	if exists {
		issues = append(issues, PreflightIssue{
			Code:    IssueDuplicateGeneration,
			Message: fmt.Sprintf("A %s report for %s already exists; regenerate it instead", kind, p),
		})
	}
	return issues, nil
}

// PreflightError maps the first blocking issue to its sentinel error.
func PreflightError(issues []PreflightIssue) error {
	if len(issues) == 0 {
		return nil
	}
	var sentinel error
	switch issues[0].Code {
	case IssueConfigurationMissing:
		sentinel = ErrConfigurationMissing
	case IssueInvalidPercentages:
		sentinel = ErrInvalidPercentages
	case IssueNoSourceData:
		sentinel = ErrNoSourceData
	case IssueDuplicateGeneration:
		sentinel = ErrDuplicateGeneration
	default:
		return errors.New(issues[0].Message)
	}
	return fmt.Errorf("%w: %s", sentinel, issues[0].Message)
}

func snapshotExists(tx *gorm.DB, kind ResourceKind, schoolId string, p Period) (bool, error) {
	var count int64
	q := tx.Where("school_id = ? AND year = ? AND month = ?", schoolId, p.Year, p.Month)
	switch kind {
	case ResourceRice:
		q = q.Model(&RiceReportSnapshot{})
	case ResourceAmount:
		q = q.Model(&AmountReportSnapshot{})
	default:
		return false, fmt.Errorf("unknown resource kind %q", kind)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// BuildRiceSnapshot replays the period's records against the ledger's
// available stock. It does not touch the database.
func BuildRiceSnapshot(schoolId string, p Period, rates Rates, ledger *RiceLedger, records []DailyAttendanceRecord) *RiceReportSnapshot {
	ordered := SortAttendance(records)
	primarySteps := CumulativeBalances(ordered, ledger.PrimaryTotalAvailable, func(r DailyAttendanceRecord) decimal.Decimal {
		return RiceConsumed(r.ServedPrimary, r.ServedMiddle, rates).Primary
	})
	middleSteps := CumulativeBalances(ordered, ledger.MiddleTotalAvailable, func(r DailyAttendanceRecord) decimal.Decimal {
		return RiceConsumed(r.ServedPrimary, r.ServedMiddle, rates).Middle
	})

	daily := make([]RiceDailyEntry, 0, len(ordered))
	consumedPrimary, consumedMiddle := decimal.Zero, decimal.Zero
	for i, r := range ordered {
		c := RiceConsumed(r.ServedPrimary, r.ServedMiddle, rates)
		consumedPrimary = consumedPrimary.Add(c.Primary)
		consumedMiddle = consumedMiddle.Add(c.Middle)
		daily = append(daily, RiceDailyEntry{
			RecordId:        r.ID,
			Date:            r.DateString(),
			ServedPrimary:   r.ServedPrimary,
			ServedMiddle:    r.ServedMiddle,
			ConsumedPrimary: c.Primary,
			ConsumedMiddle:  c.Middle,
			ConsumedTotal:   c.Total,
			BalancePrimary:  utils.Round2(primarySteps[i].BalanceAfter),
			BalanceMiddle:   utils.Round2(middleSteps[i].BalanceAfter),
		})
	}
	servedPrimary, servedMiddle := TotalServed(ordered)

	return &RiceReportSnapshot{
		SchoolId:         schoolId,
		Year:             p.Year,
		Month:            p.Month,
		LedgerId:         ledger.ID,
		AttendanceDays:   len(ordered),
		ServedPrimary:    servedPrimary,
		ServedMiddle:     servedMiddle,
		OpeningPrimary:   ledger.PrimaryOpening,
		OpeningMiddle:    ledger.MiddleOpening,
		InboundPrimary:   ledger.PrimaryLifted.Add(ledger.PrimaryArranged),
		InboundMiddle:    ledger.MiddleLifted.Add(ledger.MiddleArranged),
		AvailablePrimary: ledger.PrimaryTotalAvailable,
		AvailableMiddle:  ledger.MiddleTotalAvailable,
		ConsumedPrimary:  consumedPrimary,
		ConsumedMiddle:   consumedMiddle,
		ConsumedTotal:    consumedPrimary.Add(consumedMiddle),
		ClosingPrimary:   utils.Round2(ledger.PrimaryTotalAvailable.Sub(consumedPrimary)),
		ClosingMiddle:    utils.Round2(ledger.MiddleTotalAvailable.Sub(consumedMiddle)),
		RicePrimaryGrams: rates.RicePrimaryGrams,
		RiceMiddleGrams:  rates.RiceMiddleGrams,
		DailyBreakdown:   datatypes.NewJSONType(daily),
		Staleness:        Staleness{SourceHash: HashAttendance(ordered)},
	}
}

func BuildAmountSnapshot(schoolId string, p Period, rates Rates, ledger *AmountLedger, records []DailyAttendanceRecord) *AmountReportSnapshot {
	ordered := SortAttendance(records)
	pct := rates.SaltPercentages
	if pct.IsZero() {
		pct = DefaultSaltPercentages()
	}
	primarySteps := CumulativeBalances(ordered, ledger.PrimaryTotalAvailable, func(r DailyAttendanceRecord) decimal.Decimal {
		return AmountConsumed(r.ServedPrimary, r.ServedMiddle, rates).Primary.Total
	})
	middleSteps := CumulativeBalances(ordered, ledger.MiddleTotalAvailable, func(r DailyAttendanceRecord) decimal.Decimal {
		return AmountConsumed(r.ServedPrimary, r.ServedMiddle, rates).Middle.Total
	})

	daily := make([]AmountDailyEntry, 0, len(ordered))
	var primary, middle CategoryAmounts
	for i, r := range ordered {
		c := AmountConsumed(r.ServedPrimary, r.ServedMiddle, rates)
		primary = primary.Add(c.Primary)
		middle = middle.Add(c.Middle)
		daily = append(daily, AmountDailyEntry{
			RecordId:       r.ID,
			Date:           r.DateString(),
			ServedPrimary:  r.ServedPrimary,
			ServedMiddle:   r.ServedMiddle,
			Primary:        c.Primary,
			Middle:         c.Middle,
			ConsumedTotal:  c.Total,
			Salt:           SaltBreakdownOf(c.Primary.Salt.Add(c.Middle.Salt), pct),
			BalancePrimary: utils.Round2(primarySteps[i].BalanceAfter),
			BalanceMiddle:  utils.Round2(middleSteps[i].BalanceAfter),
		})
	}
	servedPrimary, servedMiddle := TotalServed(ordered)
	saltTotal := primary.Salt.Add(middle.Salt)

	return &AmountReportSnapshot{
		SchoolId:         schoolId,
		Year:             p.Year,
		Month:            p.Month,
		LedgerId:         ledger.ID,
		AttendanceDays:   len(ordered),
		ServedPrimary:    servedPrimary,
		ServedMiddle:     servedMiddle,
		OpeningPrimary:   ledger.PrimaryOpening,
		OpeningMiddle:    ledger.MiddleOpening,
		ReceivedPrimary:  ledger.PrimaryReceived,
		ReceivedMiddle:   ledger.MiddleReceived,
		AvailablePrimary: ledger.PrimaryTotalAvailable,
		AvailableMiddle:  ledger.MiddleTotalAvailable,
		Primary:          primary,
		Middle:           middle,
		ConsumedTotal:    primary.Total.Add(middle.Total),
		ClosingPrimary:   utils.Round2(ledger.PrimaryTotalAvailable.Sub(primary.Total)),
		ClosingMiddle:    utils.Round2(ledger.MiddleTotalAvailable.Sub(middle.Total)),
		SaltTotal:        saltTotal,
		Salt:             SaltBreakdownOf(saltTotal, pct),
		SaltPercentages:  pct,
		PrimaryRates:     rates.Primary,
		MiddleRates:      rates.Middle,
		DailyBreakdown:   datatypes.NewJSONType(daily),
		Staleness:        Staleness{SourceHash: HashAttendance(ordered)},
	}
}

// GenerateReport builds and persists a snapshot for the period. It requires a
// RateConfig row for the exact period, valid salt percentages, at least one
// attendance record, and no existing snapshot.
func GenerateReport(tx *gorm.DB, kind ResourceKind, schoolId string, p Period, actor Actor, at time.Time) (ReportSnapshot, error) {
	issues, err := CanGenerate(tx, kind, schoolId, p)
	if err != nil {
		return nil, err
	}
	if err := PreflightError(issues); err != nil {
		return nil, err
	}

	rc, err := GetRateConfig(tx, schoolId, p)
	if err != nil {
		return nil, err
	}
	rates := rc.Rates()
	records, err := ListAttendanceForPeriod(tx, schoolId, p)
	if err != nil {
		return nil, err
	}

	var snap ReportSnapshot
	switch kind {
	case ResourceRice:
		ledger, err := GetOrCreateRiceLedger(tx, schoolId, p)
		if err != nil {
			return nil, err
		}
		s := BuildRiceSnapshot(schoolId, p, rates, ledger, records)
		s.GenerationId = uuid.NewString()
		s.GeneratedBy, s.GeneratedByName, s.GeneratedAt = actor.Id, actor.Name, at
		snap = s
	case ResourceAmount:
		ledger, err := GetOrCreateAmountLedger(tx, schoolId, p)
		if err != nil {
			return nil, err
		}
		s := BuildAmountSnapshot(schoolId, p, rates, ledger, records)
		s.GenerationId = uuid.NewString()
		s.GeneratedBy, s.GeneratedByName, s.GeneratedAt = actor.Id, actor.Name, at
		snap = s
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	if err := tx.Create(snap).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateGeneration, kind, p)
		}
		return nil, err
	}
	return snap, nil
}

// RegenerateReport deletes the period's snapshot (and any purchase bills on
// it) and generates a fresh, non-stale one.
func RegenerateReport(tx *gorm.DB, kind ResourceKind, schoolId string, p Period, actor Actor, at time.Time) (ReportSnapshot, error) {
	existing, err := GetReportSnapshotForUpdate(tx, kind, schoolId, p)
	if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
		return nil, err
	}
	if existing != nil {
		if err := DeleteReportSnapshot(tx, existing); err != nil {
			return nil, err
		}
	}
	snap, err := GenerateReport(tx, kind, schoolId, p, actor, at)
	if err != nil {
		return nil, err
	}
	if err := ClearSnapshotStale(tx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func DeleteReportSnapshot(tx *gorm.DB, snap ReportSnapshot) error {
	if amount, ok := snap.(*AmountReportSnapshot); ok {
		if err := deleteBillsForSnapshot(tx, amount); err != nil {
			return err
		}
	}
	if err := tx.Where("school_id = ?", snap.GetSchoolId()).Delete(snap).Error; err != nil {
		return err
	}
	return SaveHistoryDelete(tx, snap.GetSchoolId(), snap.GetId(), string(snap.Kind())+"_report_snapshots", nil,
		fmt.Sprintf("Deleted %s report for %s", snap.Kind(), snap.Period()))
}

// GetReportSnapshot returns ErrSnapshotNotFound when the period has none.
func GetReportSnapshot(tx *gorm.DB, kind ResourceKind, schoolId string, p Period) (ReportSnapshot, error) {
	return getReportSnapshot(tx, kind, schoolId, p, false)
}

// GetReportSnapshotForUpdate holds the snapshot row with SELECT ... FOR UPDATE
// until tx ends. A row deleted by a concurrent regenerate reads as
// ErrSnapshotNotFound.
func GetReportSnapshotForUpdate(tx *gorm.DB, kind ResourceKind, schoolId string, p Period) (ReportSnapshot, error) {
	return getReportSnapshot(tx, kind, schoolId, p, true)
}

func getReportSnapshot(tx *gorm.DB, kind ResourceKind, schoolId string, p Period, forUpdate bool) (ReportSnapshot, error) {
	q := tx.Where("school_id = ? AND year = ? AND month = ?", schoolId, p.Year, p.Month)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var err error
	switch kind {
	case ResourceRice:
		var s RiceReportSnapshot
		if err = q.First(&s).Error; err == nil {
			return &s, nil
		}
	case ResourceAmount:
		var s AmountReportSnapshot
		if err = q.Preload("Bills").First(&s).Error; err == nil {
			return &s, nil
		}
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s %s", ErrSnapshotNotFound, kind, p)
	}
	return nil, err
}

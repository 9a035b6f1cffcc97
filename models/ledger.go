package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PeriodLedger is implemented by *RiceLedger and *AmountLedger.
type PeriodLedger interface {
	GetId() int
	GetSchoolId() string
	Kind() ResourceKind
	Period() Period
	State() *LedgerLifecycle
	Closing(section Section) decimal.Decimal
	TotalAvailable(section Section) decimal.Decimal
	SetOpening(primary, middle decimal.Decimal)
	SetConsumed(primary, middle decimal.Decimal)
	RecomputeTotals()
	Balance() LedgerBalance
}

type ledgerRow[T any] interface {
	*T
	PeriodLedger
	init(schoolId string, p Period)
}

func findLedger[T any, PT ledgerRow[T]](tx *gorm.DB, schoolId string, p Period, forUpdate bool) (PT, bool, error) {
	row := PT(new(T))
	q := tx.Where("school_id = ? AND year = ? AND month = ?", schoolId, p.Year, p.Month)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// getOrCreateLedger is an insert-if-absent keyed by the (school, year, month)
// unique index. A new ledger's opening is the predecessor's closing when one
// exists (and, with CARRY_FORWARD_REQUIRES_COMPLETION, only if completed).
func getOrCreateLedger[T any, PT ledgerRow[T]](tx *gorm.DB, schoolId string, p Period, forUpdate bool) (PT, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	existing, ok, err := findLedger[T, PT](tx, schoolId, p, forUpdate)
	if err != nil {
		return nil, err
	}
	if ok {
		return existing, nil
	}

	row := PT(new(T))
	row.init(schoolId, p)
	prev, ok, err := findLedger[T, PT](tx, schoolId, p.Previous(), false)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := seedFromPrevious(row, prev); err != nil {
			return nil, err
		}
	}
	row.RecomputeTotals()

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil && !utils.IsDuplicateKeyError(res.Error) {
		return nil, res.Error
	}
	if res.Error == nil && res.RowsAffected == 1 && row.GetId() > 0 {
		return row, nil
	}

	// Lost the race; a locking read sees the committed winner.
	winner, ok, err := findLedger[T, PT](tx, schoolId, p, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ledger %s/%s/%s vanished after insert conflict", row.Kind(), schoolId, p)
	}
	return winner, nil
}

// seedFromPrevious copies prev's closings into row's openings and links the
// two. prev must be an earlier ledger of the same school and kind.
func seedFromPrevious(row PeriodLedger, prev PeriodLedger) error {
	if !prev.Period().Before(row.Period()) || prev.Kind() != row.Kind() || prev.GetSchoolId() != row.GetSchoolId() {
		return fmt.Errorf("%w: %s %s/%s after %s/%s", ErrLedgerChain, row.Kind(), row.GetSchoolId(), row.Period(), prev.GetSchoolId(), prev.Period())
	}
	if config.CarryForwardRequiresCompletion() && !prev.State().IsCompleted {
		return nil
	}
	row.SetOpening(prev.Closing(SectionPrimary), prev.Closing(SectionMiddle))
	id := prev.GetId()
	row.State().CarriedForward = true
	row.State().PreviousLedgerId = &id
	return nil
}

func hasActivity(l PeriodLedger) bool {
	b := l.Balance()
	for _, s := range []SectionBalance{b.Primary, b.Middle} {
		if !s.Inbound.IsZero() || !s.Consumed.IsZero() {
			return true
		}
	}
	return false
}

// ReseedFromPrevious carries prev's closings into a successor that was
// created before prev could seed it (CARRY_FORWARD_REQUIRES_COMPLETION).
// Only a draft that was never carried forward and has no inbound or
// consumption is touched. Reports whether next was reseeded and saved.
func ReseedFromPrevious(tx *gorm.DB, next, prev PeriodLedger) (bool, error) {
	st := next.State()
	if st.CarriedForward || st.IsCompleted || st.IsLocked || hasActivity(next) {
		return false, nil
	}
	if err := seedFromPrevious(next, prev); err != nil {
		return false, err
	}
	if !st.CarriedForward {
		return false, nil
	}
	return true, SaveLedger(tx, next)
}

func GetOrCreateRiceLedger(tx *gorm.DB, schoolId string, p Period) (*RiceLedger, error) {
	return getOrCreateLedger[RiceLedger](tx, schoolId, p, false)
}

func GetOrCreateAmountLedger(tx *gorm.DB, schoolId string, p Period) (*AmountLedger, error) {
	return getOrCreateLedger[AmountLedger](tx, schoolId, p, false)
}

// GetOrCreateLedger returns the ledger of the given kind, creating it lazily.
// With forUpdate the row is held with SELECT ... FOR UPDATE until tx ends.
func GetOrCreateLedger(tx *gorm.DB, kind ResourceKind, schoolId string, p Period, forUpdate bool) (PeriodLedger, error) {
	switch kind {
	case ResourceRice:
		return getOrCreateLedger[RiceLedger](tx, schoolId, p, forUpdate)
	case ResourceAmount:
		return getOrCreateLedger[AmountLedger](tx, schoolId, p, forUpdate)
	}
	return nil, fmt.Errorf("unknown resource kind %q", kind)
}

// FindLedger returns (nil, nil) when the ledger does not exist.
func FindLedger(tx *gorm.DB, kind ResourceKind, schoolId string, p Period) (PeriodLedger, error) {
	var (
		l   PeriodLedger
		ok  bool
		err error
	)
	switch kind {
	case ResourceRice:
		l, ok, err = findLedger[RiceLedger](tx, schoolId, p, false)
	case ResourceAmount:
		l, ok, err = findLedger[AmountLedger](tx, schoolId, p, false)
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	if err != nil || !ok {
		return nil, err
	}
	return l, nil
}

func SaveLedger(tx *gorm.DB, l PeriodLedger) error {
	l.RecomputeTotals()
	return tx.Save(l).Error
}

// ConsumedFromAttendance sums per-record consumption for the ledger's kind.
func ConsumedFromAttendance(kind ResourceKind, records []DailyAttendanceRecord, rates Rates) (decimal.Decimal, decimal.Decimal) {
	primary, middle := decimal.Zero, decimal.Zero
	for _, r := range records {
		switch kind {
		case ResourceRice:
			c := RiceConsumed(r.ServedPrimary, r.ServedMiddle, rates)
			primary = primary.Add(c.Primary)
			middle = middle.Add(c.Middle)
		case ResourceAmount:
			c := AmountConsumed(r.ServedPrimary, r.ServedMiddle, rates)
			primary = primary.Add(c.Primary.Total)
			middle = middle.Add(c.Middle.Total)
		}
	}
	return primary, middle
}

// SyncConsumedFromAttendance recomputes consumed for both sections from the
// period's attendance records and persists the ledger. A period with no
// attendance syncs to zero consumption.
func SyncConsumedFromAttendance(tx *gorm.DB, l PeriodLedger) error {
	if !l.State().CanEdit() {
		return ErrLedgerLocked
	}
	p := l.Period()
	rates, err := ResolveRates(tx, l.GetSchoolId(), p)
	if err != nil {
		return err
	}
	if rates.IsDefault && !config.AllowDefaultRates() {
		return fmt.Errorf("%w: %s", ErrConfigurationMissing, p)
	}
	records, err := ListAttendanceForPeriod(tx, l.GetSchoolId(), p)
	if err != nil {
		return err
	}
	primary, middle := ConsumedFromAttendance(l.Kind(), records, rates)
	l.SetConsumed(primary, middle)
	return SaveLedger(tx, l)
}

// SetRiceInbound replaces one section's lifted/arranged quantities.
func SetRiceInbound(tx *gorm.DB, l *RiceLedger, section Section, lifted, arranged decimal.Decimal) error {
	if !l.CanEdit() {
		return ErrLedgerLocked
	}
	if lifted.IsNegative() || arranged.IsNegative() {
		return fmt.Errorf("%w: inbound quantities must not be negative", utils.ErrValidation)
	}
	before := l.Balance()
	l.SetInbound(section, lifted, arranged)
	if err := SaveLedger(tx, l); err != nil {
		return err
	}
	return SaveHistoryUpdate(tx, l.SchoolId, l.ID, "rice_ledgers", before, l.Balance(),
		fmt.Sprintf("Rice inbound (%s) set to lifted %s kg, arranged %s kg for %s", section, lifted, arranged, l.Period()))
}

func SetAmountReceived(tx *gorm.DB, l *AmountLedger, section Section, received decimal.Decimal) error {
	if !l.CanEdit() {
		return ErrLedgerLocked
	}
	if received.IsNegative() {
		return fmt.Errorf("%w: received amount must not be negative", utils.ErrValidation)
	}
	before := l.Balance()
	l.SetReceived(section, received)
	if err := SaveLedger(tx, l); err != nil {
		return err
	}
	return SaveHistoryUpdate(tx, l.SchoolId, l.ID, "amount_ledgers", before, l.Balance(),
		fmt.Sprintf("Amount received (%s) set to %s for %s", section, received, l.Period()))
}

// LockLedger moves the ledger to Locked and appends a LedgerLockEvent.
func LockLedger(tx *gorm.DB, l PeriodLedger, actor Actor, reason string, at time.Time) error {
	st := l.State()
	if st.IsLocked {
		return ErrLedgerLocked
	}
	if config.LockRequiresCompletion() && !st.IsCompleted {
		return ErrLedgerNotCompleted
	}
	st.markLocked(actor, reason, at)
	if err := tx.Save(l).Error; err != nil {
		return err
	}
	return recordLockEvent(tx, l, LedgerLockActionLock, actor, reason, at)
}

func UnlockLedger(tx *gorm.DB, l PeriodLedger, actor Actor, reason string, at time.Time) error {
	st := l.State()
	if !st.IsLocked {
		return ErrLedgerNotLocked
	}
	st.markUnlocked(actor, reason, at)
	if err := tx.Save(l).Error; err != nil {
		return err
	}
	return recordLockEvent(tx, l, LedgerLockActionUnlock, actor, reason, at)
}

// MarkLedgerCompleted only sets the lifecycle fields; the caller persists.
func MarkLedgerCompleted(l PeriodLedger, actor Actor, notes string, at time.Time) {
	l.State().markCompleted(actor, notes, at)
}

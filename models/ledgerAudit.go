package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PeriodCompletion is the immutable record written when a period is completed:
// served counts, consumed totals and closings of both ledgers.
type PeriodCompletion struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	SchoolId              string          `gorm:"size:64;not null;index:idx_period_completion" json:"school_id"`
	Year                  int             `gorm:"not null;index:idx_period_completion" json:"year"`
	Month                 int             `gorm:"not null;index:idx_period_completion" json:"month"`
	RiceLedgerId          int             `gorm:"not null" json:"rice_ledger_id"`
	AmountLedgerId        int             `gorm:"not null" json:"amount_ledger_id"`
	ServedPrimary         int             `gorm:"not null;default:0" json:"served_primary"`
	ServedMiddle          int             `gorm:"not null;default:0" json:"served_middle"`
	AttendanceDays        int             `gorm:"not null;default:0" json:"attendance_days"`
	RiceConsumedPrimary   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rice_consumed_primary"`
	RiceConsumedMiddle    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rice_consumed_middle"`
	AmountConsumedPrimary decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_consumed_primary"`
	AmountConsumedMiddle  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_consumed_middle"`
	RiceClosingPrimary    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rice_closing_primary"`
	RiceClosingMiddle     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rice_closing_middle"`
	AmountClosingPrimary  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_closing_primary"`
	AmountClosingMiddle   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_closing_middle"`
	CompletedBy           int             `gorm:"not null;default:0" json:"completed_by"`
	CompletedByName       string          `gorm:"size:100" json:"completed_by_name"`
	Notes                 string          `gorm:"type:text" json:"notes"`
	CompletedAt           time.Time       `gorm:"not null" json:"completed_at"`
}

func CreatePeriodCompletion(tx *gorm.DB, rice *RiceLedger, amount *AmountLedger, records []DailyAttendanceRecord, actor Actor, notes string, at time.Time) (*PeriodCompletion, error) {
	primary, middle := TotalServed(records)
	pc := PeriodCompletion{
		SchoolId:              rice.SchoolId,
		Year:                  rice.Year,
		Month:                 rice.Month,
		RiceLedgerId:          rice.ID,
		AmountLedgerId:        amount.ID,
		ServedPrimary:         primary,
		ServedMiddle:          middle,
		AttendanceDays:        len(records),
		RiceConsumedPrimary:   rice.PrimaryConsumed,
		RiceConsumedMiddle:    rice.MiddleConsumed,
		AmountConsumedPrimary: amount.PrimaryConsumed,
		AmountConsumedMiddle:  amount.MiddleConsumed,
		RiceClosingPrimary:    rice.PrimaryClosing,
		RiceClosingMiddle:     rice.MiddleClosing,
		AmountClosingPrimary:  amount.PrimaryClosing,
		AmountClosingMiddle:   amount.MiddleClosing,
		CompletedBy:           actor.Id,
		CompletedByName:       actor.Name,
		Notes:                 notes,
		CompletedAt:           at,
	}
	if err := tx.Create(&pc).Error; err != nil {
		return nil, err
	}
	return &pc, nil
}

func ListPeriodCompletions(tx *gorm.DB, schoolId string, p Period) ([]PeriodCompletion, error) {
	var results []PeriodCompletion
	err := tx.Where("school_id = ? AND year = ? AND month = ?", schoolId, p.Year, p.Month).
		Order("completed_at ASC").Order("id ASC").
		Find(&results).Error
	return results, err
}

// LedgerLockEvent is the append-only audit trail of lock and unlock transitions.
type LedgerLockEvent struct {
	ID         int              `gorm:"primary_key" json:"id"`
	SchoolId   string           `gorm:"size:64;not null;index:idx_ledger_lock_event" json:"school_id"`
	LedgerKind ResourceKind     `gorm:"size:10;not null;index:idx_ledger_lock_event" json:"ledger_kind"`
	LedgerId   int              `gorm:"not null;index:idx_ledger_lock_event" json:"ledger_id"`
	Year       int              `gorm:"not null" json:"year"`
	Month      int              `gorm:"not null" json:"month"`
	Action     LedgerLockAction `gorm:"size:10;not null" json:"action"`
	ActorId    int              `gorm:"not null;default:0" json:"actor_id"`
	ActorName  string           `gorm:"size:100" json:"actor_name"`
	Reason     string           `gorm:"type:text" json:"reason"`
	OccurredAt time.Time        `gorm:"not null" json:"occurred_at"`
}

func recordLockEvent(tx *gorm.DB, l PeriodLedger, action LedgerLockAction, actor Actor, reason string, at time.Time) error {
	p := l.Period()
	evt := LedgerLockEvent{
		SchoolId:   l.GetSchoolId(),
		LedgerKind: l.Kind(),
		LedgerId:   l.GetId(),
		Year:       p.Year,
		Month:      p.Month,
		Action:     action,
		ActorId:    actor.Id,
		ActorName:  actor.Name,
		Reason:     reason,
		OccurredAt: at,
	}
	return tx.Create(&evt).Error
}

func ListLockEvents(tx *gorm.DB, l PeriodLedger) ([]LedgerLockEvent, error) {
	var results []LedgerLockEvent
	err := tx.Where("school_id = ? AND ledger_kind = ? AND ledger_id = ?", l.GetSchoolId(), l.Kind(), l.GetId()).
		Order("occurred_at ASC").Order("id ASC").
		Find(&results).Error
	return results, err
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerLifecycle is the completion/lock state shared by both ledger kinds.
// Draft -> Completed -> Locked, with Unlock returning to the previous state.
type LedgerLifecycle struct {
	CarriedForward   bool       `gorm:"not null;default:false" json:"carried_forward"`
	PreviousLedgerId *int       `gorm:"index" json:"previous_ledger_id"`
	IsCompleted      bool       `gorm:"not null;default:false" json:"is_completed"`
	CompletedBy      int        `gorm:"default:0" json:"completed_by"`
	CompletedByName  string     `gorm:"size:100" json:"completed_by_name"`
	CompletedAt      *time.Time `json:"completed_at"`
	CompletionNotes  string     `gorm:"type:text" json:"completion_notes"`
	IsLocked         bool       `gorm:"not null;default:false" json:"is_locked"`
	LockedBy         int        `gorm:"default:0" json:"locked_by"`
	LockedByName     string     `gorm:"size:100" json:"locked_by_name"`
	LockedAt         *time.Time `json:"locked_at"`
	LockReason       string     `gorm:"type:text" json:"lock_reason"`
	UnlockedBy       int        `gorm:"default:0" json:"unlocked_by"`
	UnlockedByName   string     `gorm:"size:100" json:"unlocked_by_name"`
	UnlockedAt       *time.Time `json:"unlocked_at"`
	UnlockReason     string     `gorm:"type:text" json:"unlock_reason"`
}

func (l LedgerLifecycle) Status() LedgerStatus {
	switch {
	case l.IsLocked:
		return LedgerStatusLocked
	case l.IsCompleted:
		return LedgerStatusCompleted
	}
	return LedgerStatusDraft
}

// CanEdit gates inbound edits. Completion alone does not freeze a ledger.
func (l LedgerLifecycle) CanEdit() bool {
	return !l.IsLocked
}

func (l *LedgerLifecycle) markCompleted(actor Actor, notes string, at time.Time) {
	l.IsCompleted = true
	l.CompletedBy = actor.Id
	l.CompletedByName = actor.Name
	l.CompletedAt = &at
	l.CompletionNotes = notes
}

func (l *LedgerLifecycle) markLocked(actor Actor, reason string, at time.Time) {
	l.IsLocked = true
	l.LockedBy = actor.Id
	l.LockedByName = actor.Name
	l.LockedAt = &at
	l.LockReason = reason
}

func (l *LedgerLifecycle) markUnlocked(actor Actor, reason string, at time.Time) {
	l.IsLocked = false
	l.UnlockedBy = actor.Id
	l.UnlockedByName = actor.Name
	l.UnlockedAt = &at
	l.UnlockReason = reason
}

type SectionBalance struct {
	Opening        decimal.Decimal `json:"opening"`
	Inbound        decimal.Decimal `json:"inbound"`
	Consumed       decimal.Decimal `json:"consumed"`
	TotalAvailable decimal.Decimal `json:"total_available"`
	Closing        decimal.Decimal `json:"closing"`
}

// LedgerBalance is the read model returned by balance queries.
type LedgerBalance struct {
	Id               int             `json:"id"`
	SchoolId         string          `json:"school_id"`
	Kind             ResourceKind    `json:"kind"`
	Period           string          `json:"period"`
	Status           LedgerStatus    `json:"status"`
	CanEdit          bool            `json:"can_edit"`
	CarriedForward   bool            `json:"carried_forward"`
	PreviousLedgerId *int            `json:"previous_ledger_id"`
	Primary          SectionBalance  `json:"primary"`
	Middle           SectionBalance  `json:"middle"`
	Lifecycle        LedgerLifecycle `json:"lifecycle"`
}

package models

import (
	"time"

	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/shopspring/decimal"
)

// RiceLedger tracks rice stock in kilograms per section for one school period.
type RiceLedger struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	SchoolId              string          `gorm:"size:64;not null;index:uniq_rice_ledger_period,unique" json:"school_id"`
	Year                  int             `gorm:"not null;index:uniq_rice_ledger_period,unique" json:"year"`
	Month                 int             `gorm:"not null;index:uniq_rice_ledger_period,unique" json:"month"`
	PrimaryOpening        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_opening"`
	PrimaryLifted         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_lifted"`
	PrimaryArranged       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_arranged"`
	PrimaryConsumed       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_consumed"`
	PrimaryTotalAvailable decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_total_available"`
	PrimaryClosing        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_closing"`
	MiddleOpening         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_opening"`
	MiddleLifted          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_lifted"`
	MiddleArranged        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_arranged"`
	MiddleConsumed        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_consumed"`
	MiddleTotalAvailable  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_total_available"`
	MiddleClosing         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_closing"`
	LedgerLifecycle       `gorm:"embedded"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (l *RiceLedger) init(schoolId string, p Period) {
	l.SchoolId = schoolId
	l.Year = p.Year
	l.Month = p.Month
}

func (l *RiceLedger) GetId() int { return l.ID }
func (l *RiceLedger) GetSchoolId() string { return l.SchoolId }
func (l *RiceLedger) Kind() ResourceKind { return ResourceRice }
func (l *RiceLedger) Period() Period { return Period{Year: l.Year, Month: l.Month} }
func (l *RiceLedger) State() *LedgerLifecycle { return &l.LedgerLifecycle }

func (l *RiceLedger) Closing(section Section) decimal.Decimal {
	if section == SectionMiddle {
		return l.MiddleClosing
	}
	return l.PrimaryClosing
}

func (l *RiceLedger) TotalAvailable(section Section) decimal.Decimal {
	if section == SectionMiddle {
		return l.MiddleTotalAvailable
	}
	return l.PrimaryTotalAvailable
}

func (l *RiceLedger) SetOpening(primary, middle decimal.Decimal) {
	l.PrimaryOpening = primary
	l.MiddleOpening = middle
}

func (l *RiceLedger) SetConsumed(primary, middle decimal.Decimal) {
	l.PrimaryConsumed = primary
	l.MiddleConsumed = middle
}

// SetInbound replaces lifted and arranged quantities for one section.
func (l *RiceLedger) SetInbound(section Section, lifted, arranged decimal.Decimal) {
	if section == SectionMiddle {
		l.MiddleLifted = lifted
		l.MiddleArranged = arranged
		return
	}
	l.PrimaryLifted = lifted
	l.PrimaryArranged = arranged
}

// RecomputeTotals derives totalAvailable and closing. Only the final
// subtraction is rounded; the closing may be negative.
func (l *RiceLedger) RecomputeTotals() {
	l.PrimaryTotalAvailable = l.PrimaryOpening.Add(l.PrimaryLifted).Add(l.PrimaryArranged)
	l.PrimaryClosing = utils.Round2(l.PrimaryTotalAvailable.Sub(l.PrimaryConsumed))
	l.MiddleTotalAvailable = l.MiddleOpening.Add(l.MiddleLifted).Add(l.MiddleArranged)
	l.MiddleClosing = utils.Round2(l.MiddleTotalAvailable.Sub(l.MiddleConsumed))
}

func (l *RiceLedger) Balance() LedgerBalance {
	return LedgerBalance{
		Id:               l.ID,
		SchoolId:         l.SchoolId,
		Kind:             ResourceRice,
		Period:           l.Period().String(),
		Status:           l.Status(),
		CanEdit:          l.CanEdit(),
		CarriedForward:   l.CarriedForward,
		PreviousLedgerId: l.PreviousLedgerId,
		Primary: SectionBalance{
			Opening:        l.PrimaryOpening,
			Inbound:        l.PrimaryLifted.Add(l.PrimaryArranged),
			Consumed:       l.PrimaryConsumed,
			TotalAvailable: l.PrimaryTotalAvailable,
			Closing:        l.PrimaryClosing,
		},
		Middle: SectionBalance{
			Opening:        l.MiddleOpening,
			Inbound:        l.MiddleLifted.Add(l.MiddleArranged),
			Consumed:       l.MiddleConsumed,
			TotalAvailable: l.MiddleTotalAvailable,
			Closing:        l.MiddleClosing,
		},
		Lifecycle: l.LedgerLifecycle,
	}
}

package models

import (
	"time"

	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/shopspring/decimal"
)

// AmountLedger tracks cooking-cost money per section for one school period.
type AmountLedger struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	SchoolId              string          `gorm:"size:64;not null;index:uniq_amount_ledger_period,unique" json:"school_id"`
	Year                  int             `gorm:"not null;index:uniq_amount_ledger_period,unique" json:"year"`
	Month                 int             `gorm:"not null;index:uniq_amount_ledger_period,unique" json:"month"`
	PrimaryOpening        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_opening"`
	PrimaryReceived       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_received"`
	PrimaryConsumed       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_consumed"`
	PrimaryTotalAvailable decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_total_available"`
	PrimaryClosing        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"primary_closing"`
	MiddleOpening         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_opening"`
	MiddleReceived        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_received"`
	MiddleConsumed        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_consumed"`
	MiddleTotalAvailable  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_total_available"`
	MiddleClosing         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_closing"`
	LedgerLifecycle       `gorm:"embedded"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (l *AmountLedger) init(schoolId string, p Period) {
	l.SchoolId = schoolId
	l.Year = p.Year
	l.Month = p.Month
}

func (l *AmountLedger) GetId() int { return l.ID }
func (l *AmountLedger) GetSchoolId() string { return l.SchoolId }
func (l *AmountLedger) Kind() ResourceKind { return ResourceAmount }
func (l *AmountLedger) Period() Period { return Period{Year: l.Year, Month: l.Month} }
func (l *AmountLedger) State() *LedgerLifecycle { return &l.LedgerLifecycle }

func (l *AmountLedger) Closing(section Section) decimal.Decimal {
	if section == SectionMiddle {
		return l.MiddleClosing
	}
	return l.PrimaryClosing
}

func (l *AmountLedger) TotalAvailable(section Section) decimal.Decimal {
	if section == SectionMiddle {
		return l.MiddleTotalAvailable
	}
	return l.PrimaryTotalAvailable
}

func (l *AmountLedger) SetOpening(primary, middle decimal.Decimal) {
	l.PrimaryOpening = primary
	l.MiddleOpening = middle
}

func (l *AmountLedger) SetConsumed(primary, middle decimal.Decimal) {
	l.PrimaryConsumed = primary
	l.MiddleConsumed = middle
}

func (l *AmountLedger) SetReceived(section Section, received decimal.Decimal) {
	if section == SectionMiddle {
		l.MiddleReceived = received
		return
	}
	l.PrimaryReceived = received
}

func (l *AmountLedger) RecomputeTotals() {
	l.PrimaryTotalAvailable = l.PrimaryOpening.Add(l.PrimaryReceived)
	l.PrimaryClosing = utils.Round2(l.PrimaryTotalAvailable.Sub(l.PrimaryConsumed))
	l.MiddleTotalAvailable = l.MiddleOpening.Add(l.MiddleReceived)
	l.MiddleClosing = utils.Round2(l.MiddleTotalAvailable.Sub(l.MiddleConsumed))
}

func (l *AmountLedger) Balance() LedgerBalance {
	return LedgerBalance{
		Id:               l.ID,
		SchoolId:         l.SchoolId,
		Kind:             ResourceAmount,
		Period:           l.Period().String(),
		Status:           l.Status(),
		CanEdit:          l.CanEdit(),
		CarriedForward:   l.CarriedForward,
		PreviousLedgerId: l.PreviousLedgerId,
		Primary: SectionBalance{
			Opening:        l.PrimaryOpening,
			Inbound:        l.PrimaryReceived,
			Consumed:       l.PrimaryConsumed,
			TotalAvailable: l.PrimaryTotalAvailable,
			Closing:        l.PrimaryClosing,
		},
		Middle: SectionBalance{
			Opening:        l.MiddleOpening,
			Inbound:        l.MiddleReceived,
			Consumed:       l.MiddleConsumed,
			TotalAvailable: l.MiddleTotalAvailable,
			Closing:        l.MiddleClosing,
		},
		Lifecycle: l.LedgerLifecycle,
	}
}

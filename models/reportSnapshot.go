package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ReportSnapshot is implemented by *RiceReportSnapshot and *AmountReportSnapshot.
type ReportSnapshot interface {
	GetId() int
	GetSchoolId() string
	Kind() ResourceKind
	Period() Period
	StalenessState() *Staleness
	// Payload is the canonical content: everything except identity,
	// timestamps and staleness. Regenerating over unchanged inputs
	// yields the same bytes.
	Payload() ([]byte, error)
}

type RiceDailyEntry struct {
	RecordId        int             `json:"record_id"`
	Date            string          `json:"date"`
	ServedPrimary   int             `json:"served_primary"`
	ServedMiddle    int             `json:"served_middle"`
	ConsumedPrimary decimal.Decimal `json:"consumed_primary"`
	ConsumedMiddle  decimal.Decimal `json:"consumed_middle"`
	ConsumedTotal   decimal.Decimal `json:"consumed_total"`
	BalancePrimary  decimal.Decimal `json:"balance_primary"`
	BalanceMiddle   decimal.Decimal `json:"balance_middle"`
}

type RiceReportSnapshot struct {
	ID               int                                  `gorm:"primary_key" json:"id"`
	SchoolId         string                               `gorm:"size:64;not null;index:uniq_rice_snapshot_period,unique" json:"school_id"`
	Year             int                                  `gorm:"not null;index:uniq_rice_snapshot_period,unique" json:"year"`
	Month            int                                  `gorm:"not null;index:uniq_rice_snapshot_period,unique" json:"month"`
	GenerationId     string                               `gorm:"size:36;not null" json:"generation_id"`
	LedgerId         int                                  `gorm:"not null" json:"ledger_id"`
	AttendanceDays   int                                  `gorm:"not null;default:0" json:"attendance_days"`
	ServedPrimary    int                                  `gorm:"not null;default:0" json:"served_primary"`
	ServedMiddle     int                                  `gorm:"not null;default:0" json:"served_middle"`
	OpeningPrimary   decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"opening_primary"`
	OpeningMiddle    decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"opening_middle"`
	InboundPrimary   decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"inbound_primary"`
	InboundMiddle    decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"inbound_middle"`
	AvailablePrimary decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"available_primary"`
	AvailableMiddle  decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"available_middle"`
	ConsumedPrimary  decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"consumed_primary"`
	ConsumedMiddle   decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"consumed_middle"`
	ConsumedTotal    decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"consumed_total"`
	ClosingPrimary   decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"closing_primary"`
	ClosingMiddle    decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"closing_middle"`
	RicePrimaryGrams decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"rice_primary_grams"`
	RiceMiddleGrams  decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"rice_middle_grams"`
	DailyBreakdown   datatypes.JSONType[[]RiceDailyEntry] `json:"daily_breakdown"`
	Staleness        `gorm:"embedded"`
	GeneratedBy      int       `gorm:"not null;default:0" json:"generated_by"`
	GeneratedByName  string    `gorm:"size:100" json:"generated_by_name"`
	GeneratedAt      time.Time `gorm:"not null" json:"generated_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (s *RiceReportSnapshot) GetId() int { return s.ID }
func (s *RiceReportSnapshot) GetSchoolId() string { return s.SchoolId }
func (s *RiceReportSnapshot) Kind() ResourceKind { return ResourceRice }
func (s *RiceReportSnapshot) Period() Period { return Period{Year: s.Year, Month: s.Month} }
func (s *RiceReportSnapshot) StalenessState() *Staleness { return &s.Staleness }

type ricePayload struct {
	SchoolId         string           `json:"school_id"`
	Period           string           `json:"period"`
	AttendanceDays   int              `json:"attendance_days"`
	ServedPrimary    int              `json:"served_primary"`
	ServedMiddle     int              `json:"served_middle"`
	OpeningPrimary   decimal.Decimal  `json:"opening_primary"`
	OpeningMiddle    decimal.Decimal  `json:"opening_middle"`
	InboundPrimary   decimal.Decimal  `json:"inbound_primary"`
	InboundMiddle    decimal.Decimal  `json:"inbound_middle"`
	AvailablePrimary decimal.Decimal  `json:"available_primary"`
	AvailableMiddle  decimal.Decimal  `json:"available_middle"`
	ConsumedPrimary  decimal.Decimal  `json:"consumed_primary"`
	ConsumedMiddle   decimal.Decimal  `json:"consumed_middle"`
	ConsumedTotal    decimal.Decimal  `json:"consumed_total"`
	ClosingPrimary   decimal.Decimal  `json:"closing_primary"`
	ClosingMiddle    decimal.Decimal  `json:"closing_middle"`
	RicePrimaryGrams decimal.Decimal  `json:"rice_primary_grams"`
	RiceMiddleGrams  decimal.Decimal  `json:"rice_middle_grams"`
	SourceHash       string           `json:"source_hash"`
	Daily            []RiceDailyEntry `json:"daily"`
}

func (s *RiceReportSnapshot) Payload() ([]byte, error) {
	return json.Marshal(ricePayload{
		SchoolId:         s.SchoolId,
		Period:           s.Period().String(),
		AttendanceDays:   s.AttendanceDays,
		ServedPrimary:    s.ServedPrimary,
		ServedMiddle:     s.ServedMiddle,
		OpeningPrimary:   s.OpeningPrimary,
		OpeningMiddle:    s.OpeningMiddle,
		InboundPrimary:   s.InboundPrimary,
		InboundMiddle:    s.InboundMiddle,
		AvailablePrimary: s.AvailablePrimary,
		AvailableMiddle:  s.AvailableMiddle,
		ConsumedPrimary:  s.ConsumedPrimary,
		ConsumedMiddle:   s.ConsumedMiddle,
		ConsumedTotal:    s.ConsumedTotal,
		ClosingPrimary:   s.ClosingPrimary,
		ClosingMiddle:    s.ClosingMiddle,
		RicePrimaryGrams: s.RicePrimaryGrams,
		RiceMiddleGrams:  s.RiceMiddleGrams,
		SourceHash:       s.SourceHash,
		Daily:            s.DailyBreakdown.Data(),
	})
}

type AmountDailyEntry struct {
	RecordId       int             `json:"record_id"`
	Date           string          `json:"date"`
	ServedPrimary  int             `json:"served_primary"`
	ServedMiddle   int             `json:"served_middle"`
	Primary        CategoryAmounts `json:"primary"`
	Middle         CategoryAmounts `json:"middle"`
	ConsumedTotal  decimal.Decimal `json:"consumed_total"`
	Salt           SaltBreakdown   `json:"salt"`
	BalancePrimary decimal.Decimal `json:"balance_primary"`
	BalanceMiddle  decimal.Decimal `json:"balance_middle"`
}

type AmountReportSnapshot struct {
	ID               int                                    `gorm:"primary_key" json:"id"`
	SchoolId         string                                 `gorm:"size:64;not null;index:uniq_amount_snapshot_period,unique" json:"school_id"`
	Year             int                                    `gorm:"not null;index:uniq_amount_snapshot_period,unique" json:"year"`
	Month            int                                    `gorm:"not null;index:uniq_amount_snapshot_period,unique" json:"month"`
	GenerationId     string                                 `gorm:"size:36;not null" json:"generation_id"`
	LedgerId         int                                    `gorm:"not null" json:"ledger_id"`
	AttendanceDays   int                                    `gorm:"not null;default:0" json:"attendance_days"`
	ServedPrimary    int                                    `gorm:"not null;default:0" json:"served_primary"`
	ServedMiddle     int                                    `gorm:"not null;default:0" json:"served_middle"`
	OpeningPrimary   decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"opening_primary"`
	OpeningMiddle    decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"opening_middle"`
	ReceivedPrimary  decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"received_primary"`
	ReceivedMiddle   decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"received_middle"`
	AvailablePrimary decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"available_primary"`
	AvailableMiddle  decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"available_middle"`
	Primary          CategoryAmounts                        `gorm:"embedded;embeddedPrefix:primary_" json:"primary"`
	Middle           CategoryAmounts                        `gorm:"embedded;embeddedPrefix:middle_" json:"middle"`
	ConsumedTotal    decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"consumed_total"`
	ClosingPrimary   decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"closing_primary"`
	ClosingMiddle    decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"closing_middle"`
	SaltTotal        decimal.Decimal                        `gorm:"type:decimal(20,4);default:0" json:"salt_total"`
	Salt             SaltBreakdown                          `gorm:"embedded;embeddedPrefix:salt_" json:"salt"`
	SaltPercentages  SaltPercentages                        `gorm:"embedded;embeddedPrefix:salt_pct_" json:"salt_percentages"`
	PrimaryRates     CategoryRates                          `gorm:"embedded;embeddedPrefix:primary_rate_" json:"primary_rates"`
	MiddleRates      CategoryRates                          `gorm:"embedded;embeddedPrefix:middle_rate_" json:"middle_rates"`
	DailyBreakdown   datatypes.JSONType[[]AmountDailyEntry] `json:"daily_breakdown"`
	Bills            []PurchaseBill                         `gorm:"foreignKey:AmountSnapshotId" json:"bills"`
	Staleness        `gorm:"embedded"`
	GeneratedBy      int       `gorm:"not null;default:0" json:"generated_by"`
	GeneratedByName  string    `gorm:"size:100" json:"generated_by_name"`
	GeneratedAt      time.Time `gorm:"not null" json:"generated_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (s *AmountReportSnapshot) GetId() int { return s.ID }
func (s *AmountReportSnapshot) GetSchoolId() string { return s.SchoolId }
func (s *AmountReportSnapshot) Kind() ResourceKind { return ResourceAmount }
func (s *AmountReportSnapshot) Period() Period { return Period{Year: s.Year, Month: s.Month} }
func (s *AmountReportSnapshot) StalenessState() *Staleness { return &s.Staleness }

type amountPayload struct {
	SchoolId         string             `json:"school_id"`
	Period           string             `json:"period"`
	AttendanceDays   int                `json:"attendance_days"`
	ServedPrimary    int                `json:"served_primary"`
	ServedMiddle     int                `json:"served_middle"`
	OpeningPrimary   decimal.Decimal    `json:"opening_primary"`
	OpeningMiddle    decimal.Decimal    `json:"opening_middle"`
	ReceivedPrimary  decimal.Decimal    `json:"received_primary"`
	ReceivedMiddle   decimal.Decimal    `json:"received_middle"`
	AvailablePrimary decimal.Decimal    `json:"available_primary"`
	AvailableMiddle  decimal.Decimal    `json:"available_middle"`
	Primary          CategoryAmounts    `json:"primary"`
	Middle           CategoryAmounts    `json:"middle"`
	ConsumedTotal    decimal.Decimal    `json:"consumed_total"`
	ClosingPrimary   decimal.Decimal    `json:"closing_primary"`
	ClosingMiddle    decimal.Decimal    `json:"closing_middle"`
	SaltTotal        decimal.Decimal    `json:"salt_total"`
	Salt             SaltBreakdown      `json:"salt"`
	SaltPercentages  SaltPercentages    `json:"salt_percentages"`
	PrimaryRates     CategoryRates      `json:"primary_rates"`
	MiddleRates      CategoryRates      `json:"middle_rates"`
	SourceHash       string             `json:"source_hash"`
	Daily            []AmountDailyEntry `json:"daily"`
}

func (s *AmountReportSnapshot) Payload() ([]byte, error) {
	return json.Marshal(amountPayload{
		SchoolId:         s.SchoolId,
		Period:           s.Period().String(),
		AttendanceDays:   s.AttendanceDays,
		ServedPrimary:    s.ServedPrimary,
		ServedMiddle:     s.ServedMiddle,
		OpeningPrimary:   s.OpeningPrimary,
		OpeningMiddle:    s.OpeningMiddle,
		ReceivedPrimary:  s.ReceivedPrimary,
		ReceivedMiddle:   s.ReceivedMiddle,
		AvailablePrimary: s.AvailablePrimary,
		AvailableMiddle:  s.AvailableMiddle,
		Primary:          s.Primary,
		Middle:           s.Middle,
		ConsumedTotal:    s.ConsumedTotal,
		ClosingPrimary:   s.ClosingPrimary,
		ClosingMiddle:    s.ClosingMiddle,
		SaltTotal:        s.SaltTotal,
		Salt:             s.Salt,
		SaltPercentages:  s.SaltPercentages,
		PrimaryRates:     s.PrimaryRates,
		MiddleRates:      s.MiddleRates,
		SourceHash:       s.SourceHash,
		Daily:            s.DailyBreakdown.Data(),
	})
}

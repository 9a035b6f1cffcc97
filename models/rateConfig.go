package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryRates are per-student-served cost rates for one section.
type CategoryRates struct {
	Pulses     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pulses"`
	Vegetables decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vegetables"`
	Oil        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"oil"`
	Salt       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"salt"`
	Fuel       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fuel"`
}

func (r CategoryRates) Total() decimal.Decimal {
	return r.Pulses.Add(r.Vegetables).Add(r.Oil).Add(r.Salt).Add(r.Fuel)
}

// SaltPercentages subdivide the salt amount. They must sum to 100 (±0.01).
type SaltPercentages struct {
	Common    decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"common"`
	Chilli    decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"chilli"`
	Turmeric  decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"turmeric"`
	Coriander decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"coriander"`
	Other     decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"other"`
}

func DefaultSaltPercentages() SaltPercentages {
	return SaltPercentages{
		Common:    decimal.NewFromInt(30),
		Chilli:    decimal.NewFromInt(20),
		Turmeric:  decimal.NewFromInt(20),
		Coriander: decimal.NewFromInt(15),
		Other:     decimal.NewFromInt(15),
	}
}

func (p SaltPercentages) Sum() decimal.Decimal {
	return p.Common.Add(p.Chilli).Add(p.Turmeric).Add(p.Coriander).Add(p.Other)
}

func (p SaltPercentages) IsZero() bool {
	return p.Sum().IsZero()
}

func (p SaltPercentages) Validate() error {
	for _, v := range []decimal.Decimal{p.Common, p.Chilli, p.Turmeric, p.Coriander, p.Other} {
		if v.IsNegative() {
			return fmt.Errorf("%w: negative percentage %s", ErrInvalidPercentages, v)
		}
	}
	if !utils.WithinTolerance(p.Sum(), decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: got %s", ErrInvalidPercentages, p.Sum())
	}
	return nil
}

// RateConfig is the per-school, per-period rate set maintained by the
// configuration screens. Rows are read-only to the ledger and report code.
type RateConfig struct {
	ID               int             `gorm:"primary_key" json:"id"`
	SchoolId         string          `gorm:"size:64;not null;index:uniq_rate_config_period,unique" json:"school_id"`
	Year             int             `gorm:"not null;index:uniq_rate_config_period,unique" json:"year"`
	Month            int             `gorm:"not null;index:uniq_rate_config_period,unique" json:"month"`
	RicePrimaryGrams decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rice_primary_grams"`
	RiceMiddleGrams  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rice_middle_grams"`
	Primary          CategoryRates   `gorm:"embedded;embeddedPrefix:primary_" json:"primary"`
	Middle           CategoryRates   `gorm:"embedded;embeddedPrefix:middle_" json:"middle"`
	SaltPercentages  SaltPercentages `gorm:"embedded;embeddedPrefix:salt_pct_" json:"salt_percentages"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRateConfig struct {
	Period           Period          `json:"period"`
	RicePrimaryGrams decimal.Decimal `json:"rice_primary_grams"`
	RiceMiddleGrams  decimal.Decimal `json:"rice_middle_grams"`
	Primary          CategoryRates   `json:"primary"`
	Middle           CategoryRates   `json:"middle"`
	SaltPercentages  SaltPercentages `json:"salt_percentages"`
}

func (rc RateConfig) Period() Period {
	return Period{Year: rc.Year, Month: rc.Month}
}

// SaveRateConfig upserts the rate row for a period. It exists for the
// configuration subsystem and test fixtures; snapshots already generated
// keep the values frozen at their generation time.
func SaveRateConfig(tx *gorm.DB, schoolId string, input NewRateConfig) (*RateConfig, error) {
	if err := input.Period.Validate(); err != nil {
		return nil, err
	}
	if !input.SaltPercentages.IsZero() {
		if err := input.SaltPercentages.Validate(); err != nil {
			return nil, err
		}
	}
	rc := RateConfig{
		SchoolId:         schoolId,
		Year:             input.Period.Year,
		Month:            input.Period.Month,
		RicePrimaryGrams: input.RicePrimaryGrams,
		RiceMiddleGrams:  input.RiceMiddleGrams,
		Primary:          input.Primary,
		Middle:           input.Middle,
		SaltPercentages:  input.SaltPercentages,
	}
	err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rc).Error
	if err != nil {
		return nil, err
	}
	return GetRateConfig(tx, schoolId, input.Period)
}

// GetRateConfig returns gorm.ErrRecordNotFound when the period has no row.
func GetRateConfig(tx *gorm.DB, schoolId string, p Period) (*RateConfig, error) {
	var rc RateConfig
	err := tx.Where("school_id = ? AND year = ? AND month = ?", schoolId, p.Year, p.Month).First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func rateConfigExists(tx *gorm.DB, schoolId string, p Period) (*RateConfig, bool, error) {
	rc, err := GetRateConfig(tx, schoolId, p)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rc, true, nil
}

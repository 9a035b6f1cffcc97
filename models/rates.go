package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rates is the resolved rate set used by the consumption calculator.
type Rates struct {
	RicePrimaryGrams decimal.Decimal `json:"rice_primary_grams"`
	RiceMiddleGrams  decimal.Decimal `json:"rice_middle_grams"`
	Primary          CategoryRates   `json:"primary"`
	Middle           CategoryRates   `json:"middle"`
	SaltPercentages  SaltPercentages `json:"salt_percentages"`
	// IsDefault is set when no RateConfig row exists for the period.
	IsDefault bool `json:"is_default"`
}

// DefaultRates are the national meal norms.
func DefaultRates() Rates {
	return Rates{
		RicePrimaryGrams: decimal.NewFromInt(100),
		RiceMiddleGrams:  decimal.NewFromInt(150),
		Primary: CategoryRates{
			Pulses:     decimal.RequireFromString("1.50"),
			Vegetables: decimal.RequireFromString("1.60"),
			Oil:        decimal.RequireFromString("0.80"),
			Salt:       decimal.RequireFromString("0.25"),
			Fuel:       decimal.RequireFromString("1.30"),
		},
		Middle: CategoryRates{
			Pulses:     decimal.RequireFromString("2.25"),
			Vegetables: decimal.RequireFromString("2.40"),
			Oil:        decimal.RequireFromString("1.20"),
			Salt:       decimal.RequireFromString("0.37"),
			Fuel:       decimal.RequireFromString("1.95"),
		},
		SaltPercentages: DefaultSaltPercentages(),
		IsDefault:       true,
	}
}

func (rc RateConfig) Rates() Rates {
	r := Rates{
		RicePrimaryGrams: rc.RicePrimaryGrams,
		RiceMiddleGrams:  rc.RiceMiddleGrams,
		Primary:          rc.Primary,
		Middle:           rc.Middle,
		SaltPercentages:  rc.SaltPercentages,
	}
	if r.SaltPercentages.IsZero() {
		r.SaltPercentages = DefaultSaltPercentages()
	}
	return r
}

func (r Rates) CategoryRates(section Section) CategoryRates {
	if section == SectionMiddle {
		return r.Middle
	}
	return r.Primary
}

func (r Rates) RiceGrams(section Section) decimal.Decimal {
	if section == SectionMiddle {
		return r.RiceMiddleGrams
	}
	return r.RicePrimaryGrams
}

// ResolveRates looks up the exact period's RateConfig and falls back to
// DefaultRates when none exists. Rates never come from neighbouring periods.
func ResolveRates(tx *gorm.DB, schoolId string, p Period) (Rates, error) {
	rc, ok, err := rateConfigExists(tx, schoolId, p)
	if err != nil {
		return Rates{}, err
	}
	if !ok {
		return DefaultRates(), nil
	}
	return rc.Rates(), nil
}

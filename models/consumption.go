package models

import (
	"sort"

	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/shopspring/decimal"
)

var gramsPerKg = decimal.NewFromInt(1000)

type RiceConsumption struct {
	Primary decimal.Decimal `json:"primary"`
	Middle  decimal.Decimal `json:"middle"`
	Total   decimal.Decimal `json:"total"`
}

func (c RiceConsumption) Section(section Section) decimal.Decimal {
	if section == SectionMiddle {
		return c.Middle
	}
	return c.Primary
}

// RiceConsumed returns kilograms: served * grams / 1000, each section rounded to 2dp.
func RiceConsumed(servedPrimary int, servedMiddle int, rates Rates) RiceConsumption {
	primary := utils.Round2(decimal.NewFromInt(int64(servedPrimary)).Mul(rates.RicePrimaryGrams).Div(gramsPerKg))
	middle := utils.Round2(decimal.NewFromInt(int64(servedMiddle)).Mul(rates.RiceMiddleGrams).Div(gramsPerKg))
	return RiceConsumption{Primary: primary, Middle: middle, Total: primary.Add(middle)}
}

// CategoryAmounts are money amounts per ingredient category.
type CategoryAmounts struct {
	Pulses     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pulses"`
	Vegetables decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vegetables"`
	Oil        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"oil"`
	Salt       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"salt"`
	Fuel       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fuel"`
	Total      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
}

func (a CategoryAmounts) Add(o CategoryAmounts) CategoryAmounts {
	return CategoryAmounts{
		Pulses:     a.Pulses.Add(o.Pulses),
		Vegetables: a.Vegetables.Add(o.Vegetables),
		Oil:        a.Oil.Add(o.Oil),
		Salt:       a.Salt.Add(o.Salt),
		Fuel:       a.Fuel.Add(o.Fuel),
		Total:      a.Total.Add(o.Total),
	}
}

func (a CategoryAmounts) Category(c IngredientCategory) decimal.Decimal {
	switch c {
	case IngredientPulses:
		return a.Pulses
	case IngredientVegetables:
		return a.Vegetables
	case IngredientOil:
		return a.Oil
	case IngredientSalt:
		return a.Salt
	case IngredientFuel:
		return a.Fuel
	}
	return decimal.Zero
}

func categoryAmounts(served int, rates CategoryRates) CategoryAmounts {
	n := decimal.NewFromInt(int64(served))
	a := CategoryAmounts{
		Pulses:     utils.Round2(n.Mul(rates.Pulses)),
		Vegetables: utils.Round2(n.Mul(rates.Vegetables)),
		Oil:        utils.Round2(n.Mul(rates.Oil)),
		Salt:       utils.Round2(n.Mul(rates.Salt)),
		Fuel:       utils.Round2(n.Mul(rates.Fuel)),
	}
	a.Total = a.Pulses.Add(a.Vegetables).Add(a.Oil).Add(a.Salt).Add(a.Fuel)
	return a
}

type AmountConsumption struct {
	Primary CategoryAmounts `json:"primary"`
	Middle  CategoryAmounts `json:"middle"`
	Total   decimal.Decimal `json:"total"`
}

func (c AmountConsumption) Section(section Section) decimal.Decimal {
	if section == SectionMiddle {
		return c.Middle.Total
	}
	return c.Primary.Total
}

// Combined sums both sections per category.
func (c AmountConsumption) Combined() CategoryAmounts {
	return c.Primary.Add(c.Middle)
}

func AmountConsumed(servedPrimary int, servedMiddle int, rates Rates) AmountConsumption {
	primary := categoryAmounts(servedPrimary, rates.Primary)
	middle := categoryAmounts(servedMiddle, rates.Middle)
	return AmountConsumption{Primary: primary, Middle: middle, Total: primary.Total.Add(middle.Total)}
}

type SaltBreakdown struct {
	Common    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"common"`
	Chilli    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"chilli"`
	Turmeric  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"turmeric"`
	Coriander decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"coriander"`
	Other     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"other"`
}

func (s SaltBreakdown) Sum() decimal.Decimal {
	return s.Common.Add(s.Chilli).Add(s.Turmeric).Add(s.Coriander).Add(s.Other)
}

// SaltBreakdownOf splits totalSalt by pct, each part rounded to 2dp. When the
// percentages are valid and per-part rounding drifts the sum past the 0.01
// tolerance, the residual is absorbed by Other so the parts still add up.
// Non-positive totals yield all zeros; missing percentages use the defaults.
func SaltBreakdownOf(totalSalt decimal.Decimal, pct SaltPercentages) SaltBreakdown {
	if !totalSalt.IsPositive() {
		return SaltBreakdown{}
	}
	if pct.IsZero() {
		pct = DefaultSaltPercentages()
	}
	b := SaltBreakdown{
		Common:    utils.Percent(totalSalt, pct.Common),
		Chilli:    utils.Percent(totalSalt, pct.Chilli),
		Turmeric:  utils.Percent(totalSalt, pct.Turmeric),
		Coriander: utils.Percent(totalSalt, pct.Coriander),
		Other:     utils.Percent(totalSalt, pct.Other),
	}
	if pct.Validate() == nil && !utils.WithinTolerance(b.Sum(), totalSalt) {
		b.Other = totalSalt.Sub(b.Common).Sub(b.Chilli).Sub(b.Turmeric).Sub(b.Coriander)
	}
	return b
}

// BalanceStep is one row of a running-balance replay.
type BalanceStep struct {
	Record       DailyAttendanceRecord
	Consumed     decimal.Decimal
	BalanceAfter decimal.Decimal
}

// CumulativeBalances folds records in ascending (date, id) order, subtracting
// consumed(record) from the running balance. Balances may go negative.
func CumulativeBalances(records []DailyAttendanceRecord, opening decimal.Decimal, consumed func(DailyAttendanceRecord) decimal.Decimal) []BalanceStep {
	ordered := SortAttendance(records)
	steps := make([]BalanceStep, 0, len(ordered))
	balance := opening
	for _, r := range ordered {
		c := consumed(r)
		balance = balance.Sub(c)
		steps = append(steps, BalanceStep{Record: r, Consumed: c, BalanceAfter: balance})
	}
	return steps
}

// SortAttendance returns a copy ordered by (date, id).
func SortAttendance(records []DailyAttendanceRecord) []DailyAttendanceRecord {
	ordered := make([]DailyAttendanceRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// Served totals.
func TotalServed(records []DailyAttendanceRecord) (int, int) {
	var primary, middle int
	for _, r := range records {
		primary += r.ServedPrimary
		middle += r.ServedMiddle
	}
	return primary, middle
}

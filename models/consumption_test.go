package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func riceRates(primaryGrams, middleGrams string) Rates {
	r := DefaultRates()
	r.RicePrimaryGrams = dec(primaryGrams)
	r.RiceMiddleGrams = dec(middleGrams)
	return r
}

func attendance(id int, day int, primary, middle int) DailyAttendanceRecord {
	return DailyAttendanceRecord{
		ID:            id,
		SchoolId:      "school-1",
		Date:          time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		ServedPrimary: primary,
		ServedMiddle:  middle,
	}
}

func TestRiceConsumed_Example(t *testing.T) {
	c := RiceConsumed(50, 30, riceRates("100", "150"))
	if !c.Primary.Equal(dec("5")) {
		t.Fatalf("expected primary 5.0, got %s", c.Primary)
	}
	if !c.Middle.Equal(dec("4.5")) {
		t.Fatalf("expected middle 4.5, got %s", c.Middle)
	}
	if !c.Total.Equal(dec("9.5")) {
		t.Fatalf("expected total 9.5, got %s", c.Total)
	}
}

func TestRiceConsumed_RoundsEachSection(t *testing.T) {
	// 7 * 0.1125 = 0.7875 -> 0.79
	c := RiceConsumed(7, 0, riceRates("112.5", "150"))
	if !c.Primary.Equal(dec("0.79")) {
		t.Fatalf("expected 0.79, got %s", c.Primary)
	}
	if !c.Middle.IsZero() || !c.Total.Equal(dec("0.79")) {
		t.Fatalf("unexpected middle/total %s/%s", c.Middle, c.Total)
	}
}

func TestAmountConsumed_SumsRoundedCategories(t *testing.T) {
	rates := DefaultRates()
	rates.Primary = CategoryRates{
		Pulses:     dec("1.333"),
		Vegetables: dec("1"),
		Oil:        dec("0.5"),
		Salt:       dec("0.25"),
		Fuel:       dec("1.1"),
	}
	c := AmountConsumed(3, 0, rates)
	// pulses 3.999 -> 4.00
	if !c.Primary.Pulses.Equal(dec("4")) {
		t.Fatalf("expected pulses 4.00, got %s", c.Primary.Pulses)
	}
	want := dec("4").Add(dec("3")).Add(dec("1.5")).Add(dec("0.75")).Add(dec("3.3"))
	if !c.Primary.Total.Equal(want) {
		t.Fatalf("expected primary total %s, got %s", want, c.Primary.Total)
	}
	if !c.Middle.Total.IsZero() {
		t.Fatalf("expected zero middle, got %s", c.Middle.Total)
	}
	if !c.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, c.Total)
	}
}

func TestSaltBreakdown_Example(t *testing.T) {
	b := SaltBreakdownOf(dec("20"), DefaultSaltPercentages())
	expected := SaltBreakdown{Common: dec("6"), Chilli: dec("4"), Turmeric: dec("4"), Coriander: dec("3"), Other: dec("3")}
	for name, pair := range map[string][2]decimal.Decimal{
		"common":    {b.Common, expected.Common},
		"chilli":    {b.Chilli, expected.Chilli},
		"turmeric":  {b.Turmeric, expected.Turmeric},
		"coriander": {b.Coriander, expected.Coriander},
		"other":     {b.Other, expected.Other},
	} {
		if !pair[0].Equal(pair[1]) {
			t.Fatalf("%s: expected %s, got %s", name, pair[1], pair[0])
		}
	}
	if !b.Sum().Equal(dec("20")) {
		t.Fatalf("expected sum 20, got %s", b.Sum())
	}
}

func TestSaltBreakdown_NonPositiveAndMissing(t *testing.T) {
	if b := SaltBreakdownOf(dec("-1"), DefaultSaltPercentages()); !b.Sum().IsZero() {
		t.Fatalf("expected zeros for negative salt, got %+v", b)
	}
	if b := SaltBreakdownOf(decimal.Zero, DefaultSaltPercentages()); !b.Sum().IsZero() {
		t.Fatalf("expected zeros for zero salt, got %+v", b)
	}
	b := SaltBreakdownOf(dec("10"), SaltPercentages{})
	if !b.Common.Equal(dec("3")) || !b.Other.Equal(dec("1.5")) {
		t.Fatalf("expected default percentages to apply, got %+v", b)
	}
}

func TestSaltBreakdown_SumStaysWithinTolerance(t *testing.T) {
	for _, total := range []string{"0.07", "0.13", "1.01", "3.33", "17.77", "0.01"} {
		b := SaltBreakdownOf(dec(total), DefaultSaltPercentages())
		if b.Sum().Sub(dec(total)).Abs().GreaterThan(dec("0.01")) {
			t.Fatalf("total %s: breakdown sum %s drifted past tolerance", total, b.Sum())
		}
	}
}

func TestCumulativeBalances_GoesNegativeWithoutClamping(t *testing.T) {
	rates := riceRates("100", "150")
	records := []DailyAttendanceRecord{attendance(1, 4, 50, 30)}
	steps := CumulativeBalances(records, dec("5"), func(r DailyAttendanceRecord) decimal.Decimal {
		return RiceConsumed(r.ServedPrimary, r.ServedMiddle, rates).Total
	})
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if !steps[0].BalanceAfter.Equal(dec("-4.5")) {
		t.Fatalf("expected -4.5, got %s", steps[0].BalanceAfter)
	}
}

func TestCumulativeBalances_OrdersByDateThenId(t *testing.T) {
	records := []DailyAttendanceRecord{
		attendance(3, 5, 10, 0),
		attendance(2, 4, 20, 0),
		attendance(1, 5, 30, 0),
	}
	consumed := func(r DailyAttendanceRecord) decimal.Decimal { return decimal.NewFromInt(int64(r.ServedPrimary)) }

	steps := CumulativeBalances(records, dec("100"), consumed)
	gotIds := []int{steps[0].Record.ID, steps[1].Record.ID, steps[2].Record.ID}
	if gotIds[0] != 2 || gotIds[1] != 1 || gotIds[2] != 3 {
		t.Fatalf("expected order [2 1 3], got %v", gotIds)
	}
	if !steps[2].BalanceAfter.Equal(dec("40")) {
		t.Fatalf("expected final balance 40, got %s", steps[2].BalanceAfter)
	}

	again := CumulativeBalances(records, dec("100"), consumed)
	for i := range steps {
		if !steps[i].BalanceAfter.Equal(again[i].BalanceAfter) || steps[i].Record.ID != again[i].Record.ID {
			t.Fatalf("replay %d differs: %+v vs %+v", i, steps[i], again[i])
		}
	}
	if records[0].ID != 3 {
		t.Fatalf("input slice must not be reordered")
	}
}

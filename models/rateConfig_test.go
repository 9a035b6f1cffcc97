package models

import (
	"errors"
	"testing"
)

func TestSaltPercentages_Validate(t *testing.T) {
	if err := DefaultSaltPercentages().Validate(); err != nil {
		t.Fatalf("default percentages should be valid: %v", err)
	}

	withinTolerance := SaltPercentages{Common: dec("30.005"), Chilli: dec("20"), Turmeric: dec("20"), Coriander: dec("15"), Other: dec("15")}
	if err := withinTolerance.Validate(); err != nil {
		t.Fatalf("100.005 is within tolerance: %v", err)
	}

	off := SaltPercentages{Common: dec("30"), Chilli: dec("20"), Turmeric: dec("20"), Coriander: dec("15"), Other: dec("14")}
	if err := off.Validate(); !errors.Is(err, ErrInvalidPercentages) {
		t.Fatalf("expected ErrInvalidPercentages for sum 99, got %v", err)
	}

	negative := SaltPercentages{Common: dec("110"), Chilli: dec("-10")}
	if err := negative.Validate(); !errors.Is(err, ErrInvalidPercentages) {
		t.Fatalf("expected ErrInvalidPercentages for negative entry, got %v", err)
	}
}

func TestRateConfig_RatesSubstitutesMissingPercentages(t *testing.T) {
	rc := RateConfig{RicePrimaryGrams: dec("100"), RiceMiddleGrams: dec("150")}
	r := rc.Rates()
	if r.IsDefault {
		t.Fatalf("rates from a config row must not be flagged default")
	}
	if !r.SaltPercentages.Common.Equal(dec("30")) || !r.SaltPercentages.Sum().Equal(dec("100")) {
		t.Fatalf("expected default salt percentages, got %+v", r.SaltPercentages)
	}
}

func TestDefaultRates(t *testing.T) {
	r := DefaultRates()
	if !r.IsDefault {
		t.Fatalf("expected IsDefault")
	}
	if !r.Primary.Total().Equal(dec("5.45")) {
		t.Fatalf("expected primary daily cost 5.45, got %s", r.Primary.Total())
	}
	if !r.Middle.Total().Equal(dec("8.17")) {
		t.Fatalf("expected middle daily cost 8.17, got %s", r.Middle.Total())
	}
	if !r.RiceGrams(SectionMiddle).Equal(dec("150")) {
		t.Fatalf("expected middle 150g, got %s", r.RiceGrams(SectionMiddle))
	}
}

package models

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-03")
	if err != nil {
		t.Fatalf("ParsePeriod error: %v", err)
	}
	if p.Year != 2024 || p.Month != 3 {
		t.Fatalf("expected 2024-03, got %+v", p)
	}
	if p.String() != "2024-03" {
		t.Fatalf("expected String 2024-03, got %s", p.String())
	}

	for _, in := range []string{"", "2024-13", "2024/03", "24-03", "1999-12"} {
		if _, err := ParsePeriod(in); !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("ParsePeriod(%q) expected ErrInvalidPeriod, got %v", in, err)
		}
	}
}

func TestPeriod_NextPreviousAcrossYear(t *testing.T) {
	dec := Period{Year: 2023, Month: 12}
	if got := dec.Next(); got != (Period{Year: 2024, Month: 1}) {
		t.Fatalf("expected 2024-01, got %s", got)
	}
	jan := Period{Year: 2024, Month: 1}
	if got := jan.Previous(); got != dec {
		t.Fatalf("expected 2023-12, got %s", got)
	}
	if !dec.Before(jan) || !jan.After(dec) {
		t.Fatalf("expected 2023-12 < 2024-01")
	}
	if jan.Index()-dec.Index() != 1 {
		t.Fatalf("expected consecutive indexes, got %d and %d", dec.Index(), jan.Index())
	}
}

func TestPeriod_DateRange(t *testing.T) {
	first, last := Period{Year: 2024, Month: 2}.DateRange()
	if !first.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first day %s", first)
	}
	if !last.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last day %s (leap year)", last)
	}
	if !(Period{Year: 2024, Month: 2}).Contains(last) {
		t.Fatalf("expected period to contain its last day")
	}
}

package utils

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"Rs 20,000", "20000"},
		{"₹ -40", "-40"},
		{"  INR 1,234.50  ", "1234.5"},
		{"12.5 kg", "12.5"},
	}
	for _, tc := range cases {
		d, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseAmount(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
	if _, err := ParseAmount("kg"); err == nil {
		t.Fatalf("expected error for an amount without digits")
	}
}

func TestWithinTolerance(t *testing.T) {
	a := decimal.RequireFromString("100.00")
	if !WithinTolerance(a, decimal.RequireFromString("100.01")) {
		t.Fatalf("0.01 apart must be within tolerance")
	}
	if WithinTolerance(a, decimal.RequireFromString("99.98")) {
		t.Fatalf("0.02 apart must not be within tolerance")
	}
}

func TestPercent_RoundsToTwoPlaces(t *testing.T) {
	got := Percent(decimal.RequireFromString("0.07"), decimal.NewFromInt(15))
	if !got.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("expected 0.01, got %s", got)
	}
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	var req struct {
		Lifted   *Amount `json:"lifted"`
		Received Amount  `json:"received"`
		Skipped  *Amount `json:"skipped"`
	}
	if err := json.Unmarshal([]byte(`{"lifted":"Rs 1,250","received":12.345,"skipped":null}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Lifted == nil || req.Lifted.String() != "1250" {
		t.Fatalf("expected lifted 1250, got %v", req.Lifted)
	}
	if req.Received.String() != "12.345" {
		t.Fatalf("expected received 12.345, got %s", req.Received)
	}
	if req.Skipped != nil {
		t.Fatalf("null must leave the pointer nil")
	}

	var bad struct {
		Amount Amount `json:"amount"`
	}
	err := json.Unmarshal([]byte(`{"amount":"kg"}`), &bad)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for an amount without digits, got %v", err)
	}
}

func TestAmount_MarshalsAsDecimal(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Amount `json:"amount"`
	}{NewAmount(decimal.RequireFromString("40.5"))})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":"40.5"}` {
		t.Fatalf("unexpected json %s", b)
	}
}

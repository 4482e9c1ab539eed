package extractor

import (
	"testing"
)

func TestSanitizeNormalizesDates(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"2023-01-15", "2023-01-15"},
		{"01/15/2023", "2023-01-15"},
		{"January 15, 2023", "2023-01-15"},
		{"Jan 15, 2023", "2023-01-15"},
		{"2023/01/15", "2023-01-15"},
	}
	for _, tc := range cases {
		data := Sanitize(map[string]any{"date": tc.input})
		if data["date"] != tc.want {
			t.Fatalf("Sanitize date %q = %v, want %q", tc.input, data["date"], tc.want)
		}
	}
}

func TestSanitizeRejectsInvalidDate(t *testing.T) {
	data := Sanitize(map[string]any{"grant_date": "sometime in spring"})
	if data["grant_date"] != nil {
		t.Fatalf("invalid date should be nulled, got %v", data["grant_date"])
	}
	warnings, ok := data["_validation_warnings"].([]string)
	if !ok || len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", data["_validation_warnings"])
	}
}

func TestSanitizeCoercesNumericStrings(t *testing.T) {
	data := Sanitize(map[string]any{
		"shares":          "1,000,000",
		"price_per_share": "$0.001",
		"amount":          " 50000 ",
	})
	if data["shares"] != float64(1000000) {
		t.Fatalf("shares = %v (%T)", data["shares"], data["shares"])
	}
	if data["price_per_share"] != 0.001 {
		t.Fatalf("price_per_share = %v", data["price_per_share"])
	}
	if data["amount"] != float64(50000) {
		t.Fatalf("amount = %v", data["amount"])
	}
	if _, ok := data["_validation_warnings"]; ok {
		t.Fatalf("no warnings expected, got %v", data["_validation_warnings"])
	}
}

func TestSanitizeRejectsNonNumeric(t *testing.T) {
	data := Sanitize(map[string]any{"shares": "one hundred", "valuation_cap": []any{}})
	if data["shares"] != nil || data["valuation_cap"] != nil {
		t.Fatalf("bad numerics should be nulled: %v", data)
	}
	warnings, _ := data["_validation_warnings"].([]string)
	if len(warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", warnings)
	}
}

func TestSanitizeLeavesUnknownFieldsAlone(t *testing.T) {
	data := Sanitize(map[string]any{"vesting_schedule": "4 years, 1 year cliff"})
	if data["vesting_schedule"] != "4 years, 1 year cliff" {
		t.Fatalf("untyped field modified: %v", data["vesting_schedule"])
	}
}

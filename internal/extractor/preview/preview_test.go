package preview

import (
	"encoding/base64"
	"testing"

	"capaudit/internal/audit"
)

func sampleSpans() []audit.TextSpan {
	return []audit.TextSpan{
		{Page: 1, Text: "STOCK PURCHASE AGREEMENT", BBox: [4]float64{72, 720, 400, 736}},
		{Page: 1, Text: "Jane Roe purchases 100,000 shares", BBox: [4]float64{72, 500, 420, 514}},
		{Page: 1, Text: "at a price of $0.0100 per share", BBox: [4]float64{72, 480, 380, 494}},
	}
}

func TestFindLocationsMatchesSharesAndPrice(t *testing.T) {
	extracted := map[string]any{
		"shareholder":     "Jane Roe",
		"shares":          float64(100000),
		"price_per_share": 0.01,
	}
	locations := FindLocations(extracted, sampleSpans())
	if len(locations) != 2 {
		t.Fatalf("expected shares + price locations, got %d: %+v", len(locations), locations)
	}
	if locations[0].DataType != "shares" || locations[1].DataType != "price" {
		t.Fatalf("unexpected data types: %+v", locations)
	}
}

func TestFindLocationsRequiresParty(t *testing.T) {
	extracted := map[string]any{"shares": float64(100000)}
	if locations := FindLocations(extracted, sampleSpans()); locations != nil {
		t.Fatalf("expected no locations without a named party, got %+v", locations)
	}
}

func TestFindLocationsNegativeSharesMatchAbsolute(t *testing.T) {
	extracted := map[string]any{
		"shareholder": "Jane Roe",
		"shares":      float64(-100000),
	}
	locations := FindLocations(extracted, sampleSpans())
	if len(locations) != 1 {
		t.Fatalf("repurchase share counts should match by absolute value: %+v", locations)
	}
}

func TestGenerateProducesOverlayAndFocus(t *testing.T) {
	g := NewGenerator(nil)
	extracted := map[string]any{
		"shareholder":     "Jane Roe",
		"shares":          float64(100000),
		"price_per_share": 0.01,
	}
	overlay, focusY := g.Generate(extracted, sampleSpans())
	if overlay == "" {
		t.Fatal("expected overlay image")
	}
	if _, err := base64.StdEncoding.DecodeString(overlay); err != nil {
		t.Fatalf("overlay is not valid base64: %v", err)
	}
	if focusY == nil || *focusY <= 0 || *focusY >= 1 {
		t.Fatalf("focus fraction out of range: %v", focusY)
	}
}

func TestGenerateNoMatchIsSilent(t *testing.T) {
	g := NewGenerator(nil)
	extracted := map[string]any{"shareholder": "Jane Roe", "shares": float64(42)}
	overlay, focusY := g.Generate(extracted, sampleSpans())
	if overlay != "" || focusY != nil {
		t.Fatal("expected no output when values are absent from spans")
	}
}

func TestShareholderColorStable(t *testing.T) {
	a := shareholderColor("Jane Roe")
	b := shareholderColor("Jane Roe")
	if a != b {
		t.Fatal("color must be stable per shareholder")
	}
}

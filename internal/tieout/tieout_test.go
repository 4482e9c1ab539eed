package tieout

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"capaudit/internal/audit"
)

func writeCartaFixture(t *testing.T) string {
	t.Helper()
	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	cells := map[string]any{
		"A1": "Acme Robotics, Inc. - Capitalization Summary",
		"A2": "Stakeholder Name", "B2": "Outstanding Shares", "C2": "Fully Diluted Ownership",
		"A3": "Alex Roe", "B3": "100,000", "C3": "40%",
		"A4": "Alex Roe", "B4": "50,000", "C4": "20%",
		"A5": "Jane Doe", "B5": "100,000", "C5": "40%",
		"A6": "Total Outstanding", "B6": "250,000",
	}
	for cell, value := range cells {
		if err := workbook.SetCellValue(sheet, cell, value); err != nil {
			t.Fatalf("set cell %s: %v", cell, err)
		}
	}

	path := filepath.Join(t.TempDir(), "carta.xlsx")
	if err := workbook.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestParseCartaAggregatesDuplicates(t *testing.T) {
	table, err := ParseCarta(writeCartaFixture(t))
	if err != nil {
		t.Fatalf("ParseCarta: %v", err)
	}
	if len(table.Shareholders) != 2 {
		t.Fatalf("expected 2 shareholders, got %+v", table.Shareholders)
	}
	if table.Shareholders[0].Name != "Alex Roe" || table.Shareholders[0].Shares != 150000 {
		t.Fatalf("duplicate rows must aggregate: %+v", table.Shareholders[0])
	}
	if table.TotalShares != 250000 {
		t.Fatalf("total = %v, want 250000", table.TotalShares)
	}
	if table.Shareholders[0].OwnershipPct != 60 {
		t.Fatalf("ownership = %v, want 60", table.Shareholders[0].OwnershipPct)
	}
}

func TestParseCartaSkipsSummaryRows(t *testing.T) {
	table, err := ParseCarta(writeCartaFixture(t))
	if err != nil {
		t.Fatalf("ParseCarta: %v", err)
	}
	for _, entry := range table.Shareholders {
		if strings.Contains(strings.ToLower(entry.Name), "total") {
			t.Fatalf("total row leaked into shareholders: %+v", entry)
		}
	}
}

func hasIssue(found []audit.Issue, severity, fragment string) bool {
	for _, issue := range found {
		if issue.Severity == severity && strings.Contains(issue.Description, fragment) {
			return true
		}
	}
	return false
}

func TestCompareCleanTieOut(t *testing.T) {
	carta := []Shareholder{{Name: "Jane Roe", Shares: 800000}}
	generated := []audit.CapTableEntry{{Shareholder: "Jane Roe", Shares: 800000}}
	if found := Compare(carta, generated, DefaultThresholds()); len(found) != 0 {
		t.Fatalf("clean tie-out must yield no issues: %+v", found)
	}
}

func TestCompareShareMismatchIsCritical(t *testing.T) {
	carta := []Shareholder{{Name: "Jane Roe", Shares: 800000}}
	generated := []audit.CapTableEntry{{Shareholder: "Jane Roe", Shares: 500000}}
	found := Compare(carta, generated, DefaultThresholds())
	if !hasIssue(found, audit.SeverityCritical, "Share mismatch") {
		t.Fatalf("share mismatch missing: %+v", found)
	}
	if !hasIssue(found, audit.SeverityCritical, "Total share mismatch") {
		t.Fatalf("total mismatch missing: %+v", found)
	}
}

func TestCompareRejectsNearNames(t *testing.T) {
	carta := []Shareholder{{Name: "Jane Smith", Shares: 100000}}
	generated := []audit.CapTableEntry{{Shareholder: "John Smith", Shares: 100000}}
	found := Compare(carta, generated, DefaultThresholds())
	if !hasIssue(found, audit.SeverityWarning, "not found in source documents") {
		t.Fatalf("unmatched Carta holder missing: %+v", found)
	}
	if !hasIssue(found, audit.SeverityWarning, "not in Carta") {
		t.Fatalf("unmatched source holder missing: %+v", found)
	}
}

func TestCompareToleratesPunctuationDrift(t *testing.T) {
	carta := []Shareholder{{Name: "Acme Holdings, Inc.", Shares: 100000}}
	generated := []audit.CapTableEntry{{Shareholder: "Acme Holdings Inc", Shares: 100000}}
	if found := Compare(carta, generated, DefaultThresholds()); len(found) != 0 {
		t.Fatalf("punctuation drift must still match: %+v", found)
	}
}

func TestCompareFlagsDuplicates(t *testing.T) {
	generated := []audit.CapTableEntry{
		{Shareholder: "Jane Roe", Shares: 500000},
		{Shareholder: "jane roe", Shares: 300000},
	}
	carta := []Shareholder{{Name: "Jane Roe", Shares: 800000}}
	found := Compare(carta, generated, DefaultThresholds())
	if !hasIssue(found, audit.SeverityWarning, "duplicate shareholder entries") {
		t.Fatalf("duplicate warning missing: %+v", found)
	}
	if hasIssue(found, audit.SeverityCritical, "Share mismatch") {
		t.Fatalf("aggregated shares should match: %+v", found)
	}
}

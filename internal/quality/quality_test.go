package quality

import (
	"strings"
	"testing"

	"capaudit/internal/audit"
	"capaudit/internal/extractor"
)

func hasReason(reasons []string, fragment string) bool {
	for _, reason := range reasons {
		if strings.Contains(reason, fragment) {
			return true
		}
	}
	return false
}

func TestBuildReportCleanAuditPasses(t *testing.T) {
	docs := []audit.Document{
		{Filename: "charter.pdf", ParseStatus: audit.ParseSuccess},
		{Filename: "spa.pdf", ParseStatus: audit.ParsePartial},
	}
	events := []audit.EquityEvent{{
		EventType:     audit.EventIssuance,
		EventDate:     "2021-04-01",
		ApprovalDocID: "3",
		Compliance:    audit.ComplianceVerified,
		Summary:       "Jane Roe received 800,000 Common Stock shares on 2021-04-01.",
	}}

	report := BuildReport(docs, events, nil)
	if report.ReviewRequired {
		t.Fatalf("clean audit must not require review: %+v", report.BlockingReasons)
	}
	if report.ParsedSuccessfully != 2 || report.ParseFailures != 0 {
		t.Fatalf("parse counters wrong: %+v", report)
	}
}

func TestBuildReportParseFailureBlocks(t *testing.T) {
	docs := []audit.Document{{Filename: "scan.pdf", ParseStatus: audit.ParseError}}
	report := BuildReport(docs, nil, nil)
	if !report.ReviewRequired || report.ParseFailures != 1 {
		t.Fatalf("parse failure must block: %+v", report)
	}
	if !hasReason(report.BlockingReasons, "Document parsing failed: scan.pdf") {
		t.Fatalf("reason missing: %+v", report.BlockingReasons)
	}
}

func TestBuildReportMissingApprovalBlocks(t *testing.T) {
	events := []audit.EquityEvent{{
		EventType:  audit.EventIssuance,
		EventDate:  "2021-04-01",
		Compliance: audit.ComplianceWarning,
	}}
	report := BuildReport(nil, events, nil)
	if report.MissingApprovals != 1 {
		t.Fatalf("missing approval not counted: %+v", report)
	}
	if !hasReason(report.BlockingReasons, "Missing approval for issuance on 2021-04-01") {
		t.Fatalf("reason missing: %+v", report.BlockingReasons)
	}
}

func TestBuildReportPlaceholderSummaryBlocks(t *testing.T) {
	events := []audit.EquityEvent{{
		EventType:     audit.EventIssuance,
		EventDate:     "2021-04-01",
		ApprovalDocID: "3",
		Summary:       "Unknown shareholder received shares.",
	}}
	report := BuildReport(nil, events, nil)
	if !hasReason(report.BlockingReasons, "Unresolved summary placeholders") {
		t.Fatalf("placeholder not flagged: %+v", report.BlockingReasons)
	}
}

func TestBuildReportCriticalComplianceBlocks(t *testing.T) {
	events := []audit.EquityEvent{{
		EventType:  audit.EventSAFE,
		EventDate:  "2022-11-01",
		Compliance: audit.ComplianceCritical,
	}}
	report := BuildReport(nil, events, nil)
	if report.CriticalComplianceCount != 1 {
		t.Fatalf("critical compliance not counted: %+v", report)
	}
}

func TestBuildReportLowConfidenceAndErrorsCounted(t *testing.T) {
	docs := []audit.Document{{
		Filename:    "safe.pdf",
		ParseStatus: audit.ParseSuccess,
		Extraction: map[string]any{
			extractor.KeySAFE: map[string]any{
				"low_confidence":     true,
				"confidence_warning": "Low extraction confidence (40%) for safe.pdf. Manual review recommended.",
			},
			extractor.KeyStock: []map[string]any{
				{"error": "Extraction failed: rate limited", "source_doc": "safe.pdf"},
			},
		},
	}}

	report := BuildReport(docs, nil, nil)
	if report.LowConfidenceCount != 1 || report.ExtractionFailures != 1 {
		t.Fatalf("counters wrong: %+v", report)
	}
	if !report.ReviewRequired {
		t.Fatal("low confidence must require review")
	}
}

func TestBuildReportCriticalIssuesBlockAndDedupe(t *testing.T) {
	found := []audit.Issue{
		{Severity: audit.SeverityCritical, Category: "Missing Document", Description: "No charter."},
		{Severity: audit.SeverityCritical, Category: "Cap Table Integrity", Description: "Over-issued."},
		{Severity: audit.SeverityWarning, Category: "Equity Compliance", Description: "No 83(b)."},
	}
	docs := []audit.Document{
		{Filename: "a.pdf", ParseStatus: audit.ParseError},
		{Filename: "a.pdf", ParseStatus: audit.ParseError},
	}

	report := BuildReport(docs, nil, found)
	if report.CriticalIssueCount != 2 {
		t.Fatalf("critical issues = %d, want 2", report.CriticalIssueCount)
	}
	if !hasReason(report.BlockingReasons, "2 critical compliance issue(s)") {
		t.Fatalf("summary reason missing: %+v", report.BlockingReasons)
	}
	count := 0
	for _, reason := range report.BlockingReasons {
		if reason == "Document parsing failed: a.pdf" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("blocking reasons must dedupe: %+v", report.BlockingReasons)
	}
}

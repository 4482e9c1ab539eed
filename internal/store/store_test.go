package store

import (
	"context"
	"path/filepath"
	"testing"

	"capaudit/internal/audit"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenPath(filepath.Join(t.TempDir(), "capaudit.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetAudit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateAudit(ctx, "audit-1")
	if err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}
	if created.State != audit.StateQueued || created.Progress != "Queued" {
		t.Fatalf("unexpected initial audit: %+v", created)
	}

	missing, err := s.GetAudit(ctx, "nope")
	if err != nil {
		t.Fatalf("GetAudit: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing audit should be nil, got %+v", missing)
	}
}

func TestUpdateProgressAndMarkError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAudit(ctx, "audit-1"); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}
	if err := s.UpdateProgress(ctx, "audit-1", audit.StateClassifying, "Classifying documents"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	record, err := s.GetAudit(ctx, "audit-1")
	if err != nil {
		t.Fatalf("GetAudit: %v", err)
	}
	if record.State != audit.StateClassifying || record.Progress != "Classifying documents" {
		t.Fatalf("progress not persisted: %+v", record)
	}

	if err := s.MarkError(ctx, "audit-1", "pipeline timed out"); err != nil {
		t.Fatalf("MarkError: %v", err)
	}
	record, _ = s.GetAudit(ctx, "audit-1")
	if record.State != audit.StateError || record.ErrorMessage != "pipeline timed out" {
		t.Fatalf("error not persisted: %+v", record)
	}
}

func TestInsertDocumentsAssignsIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAudit(ctx, "audit-1"); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}
	docs := []audit.Document{
		{Filename: "charter.pdf", Category: audit.CategoryCharter, ParseStatus: audit.ParseSuccess},
		{Filename: "spa.pdf", Category: audit.CategoryStockPurchase, ParseStatus: audit.ParseSuccess},
	}
	if err := s.InsertDocuments(ctx, "audit-1", docs); err != nil {
		t.Fatalf("InsertDocuments: %v", err)
	}
	if docs[0].DocumentID == 0 || docs[1].DocumentID == 0 {
		t.Fatalf("document ids not assigned: %+v", docs)
	}
	if docs[0].DocumentID == docs[1].DocumentID {
		t.Fatalf("ids must be distinct: %+v", docs)
	}
}

func TestInsertAndReadEquityEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAudit(ctx, "audit-1"); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}
	events := []audit.EquityEvent{{
		EventDate:       "2021-04-01",
		EventType:       audit.EventIssuance,
		ShareholderName: "Jane Roe",
		ShareClass:      "Common Stock",
		ShareDelta:      800000,
		SourceDocID:     2,
		Compliance:      audit.ComplianceVerified,
		Summary:         "Jane Roe received 800,000 Common Stock shares.",
		Details:         map[string]any{"price_per_share": 0.01},
	}}
	if err := s.InsertEquityEvents(ctx, "audit-1", events); err != nil {
		t.Fatalf("InsertEquityEvents: %v", err)
	}

	loaded, err := s.EquityEvents(ctx, "audit-1")
	if err != nil {
		t.Fatalf("EquityEvents: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 event, got %d", len(loaded))
	}
	event := loaded[0]
	if event.ShareDelta != 800000 || event.Compliance != audit.ComplianceVerified {
		t.Fatalf("event round trip: %+v", event)
	}
	if event.Details["price_per_share"] != 0.01 {
		t.Fatalf("details lost: %+v", event.Details)
	}
}

func TestAppendIssuesAccumulates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAudit(ctx, "audit-1"); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}
	first := []audit.Issue{{Severity: audit.SeverityCritical, Category: "Missing Document", Description: "No charter."}}
	second := []audit.Issue{{Severity: audit.SeverityWarning, Category: "Cap Table Tie-Out", Description: "Share mismatch."}}

	if err := s.AppendIssues(ctx, "audit-1", first); err != nil {
		t.Fatalf("AppendIssues: %v", err)
	}
	if err := s.AppendIssues(ctx, "audit-1", second); err != nil {
		t.Fatalf("AppendIssues: %v", err)
	}

	record, err := s.GetAudit(ctx, "audit-1")
	if err != nil {
		t.Fatalf("GetAudit: %v", err)
	}
	if len(record.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %+v", record.Issues)
	}
	if record.Issues[0].Category != "Missing Document" || record.Issues[1].Category != "Cap Table Tie-Out" {
		t.Fatalf("issue order lost: %+v", record.Issues)
	}
}

func TestUpdateResultsSetsTerminalState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAudit(ctx, "audit-1"); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}
	results := &audit.Results{
		CompanyName: "Acme Robotics, Inc.",
		CapTable:    []audit.CapTableEntry{{Shareholder: "Jane Roe", ShareClass: "Common Stock", Shares: 800000, OwnershipPct: 100}},
		Issues:      []audit.Issue{{Severity: audit.SeverityWarning, Category: "Equity Compliance", Description: "No 83(b)."}},
	}
	report := &audit.QualityReport{
		SchemaVersion:   "v1",
		BlockingReasons: []string{"Missing approval for issuance on 2021-04-01"},
		ReviewRequired:  true,
	}

	if err := s.UpdateResults(ctx, "audit-1", results, report, audit.StateNeedsReview); err != nil {
		t.Fatalf("UpdateResults: %v", err)
	}

	record, err := s.GetAudit(ctx, "audit-1")
	if err != nil {
		t.Fatalf("GetAudit: %v", err)
	}
	if record.State != audit.StateNeedsReview || !record.ReviewRequired {
		t.Fatalf("terminal state wrong: %+v", record)
	}
	if record.CompanyName != "Acme Robotics, Inc." {
		t.Fatalf("company name missing: %+v", record)
	}
	if record.Results == nil || len(record.Results.CapTable) != 1 {
		t.Fatalf("results lost: %+v", record.Results)
	}
	if record.QualityReport == nil || len(record.QualityReport.BlockingReasons) != 1 {
		t.Fatalf("report lost: %+v", record.QualityReport)
	}
}

func TestListAuditsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAudit(ctx, "audit-1"); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}
	if _, err := s.CreateAudit(ctx, "audit-2"); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}

	audits, err := s.ListAudits(ctx)
	if err != nil {
		t.Fatalf("ListAudits: %v", err)
	}
	if len(audits) != 2 {
		t.Fatalf("expected 2 audits, got %d", len(audits))
	}
}

package approval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"capaudit/internal/audit"
)

type stubCompleter struct {
	response string
	err      error
	called   bool
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.called = true
	return s.response, s.err
}

func issuanceEvent() audit.EquityEvent {
	return audit.EquityEvent{
		EventDate:       "2023-01-15",
		EventType:       audit.EventIssuance,
		ShareholderName: "Jane Roe",
		ShareDelta:      100000,
		SourceSnippet:   "100,000 shares of Common Stock to Jane Roe",
	}
}

func consentDoc() audit.Document {
	return audit.Document{
		DocumentID: 3,
		Filename:   "consent.pdf",
		Category:   audit.CategoryMinutes,
		Text:       "RESOLVED, that the issuance of 100,000 shares of Common Stock to Jane Roe is approved.",
	}
}

func TestMatchEscalatesWithoutApprovalDocs(t *testing.T) {
	stub := &stubCompleter{}
	m := New(stub, nil)

	events := []audit.EquityEvent{
		issuanceEvent(),
		{EventType: audit.EventFormation, EventDate: "2021-03-10"},
		{EventType: audit.EventSAFE, EventDate: "2022-11-01", ShareholderName: "Seed Fund LP"},
	}
	docs := []audit.Document{{DocumentID: 1, Filename: "spa.pdf", Category: audit.CategoryStockPurchase}}

	m.Match(context.Background(), events, docs)
	if stub.called {
		t.Fatal("model must not be called when no approval docs exist")
	}
	if events[0].Compliance != audit.ComplianceCritical {
		t.Fatalf("issuance should be CRITICAL: %+v", events[0])
	}
	if events[1].Compliance != audit.ComplianceVerified {
		t.Fatalf("formation should stay VERIFIED: %+v", events[1])
	}
	if events[2].Compliance != audit.ComplianceWarning {
		t.Fatalf("SAFE should be WARNING: %+v", events[2])
	}
}

func TestMatchAppliesModelVerdicts(t *testing.T) {
	stub := &stubCompleter{response: `[
		{"tx_index": 0, "approval_doc_id": "3", "approval_quote": "RESOLVED, that the issuance...", "compliance_status": "VERIFIED", "compliance_note": "Board consent covers the issuance."}
	]`}
	m := New(stub, nil)

	events := []audit.EquityEvent{issuanceEvent()}
	docs := []audit.Document{consentDoc()}

	m.Match(context.Background(), events, docs)
	if !stub.called {
		t.Fatal("model should be called")
	}
	event := events[0]
	if event.Compliance != audit.ComplianceVerified || event.ApprovalDocID != "3" {
		t.Fatalf("verdict not applied: %+v", event)
	}
	if event.ApprovalSnippet == "" {
		t.Fatalf("quote not carried: %+v", event)
	}
}

func TestMatchRejectsHallucinatedDocID(t *testing.T) {
	stub := &stubCompleter{response: `[
		{"tx_index": 0, "approval_doc_id": "99", "compliance_status": "VERIFIED", "compliance_note": "Approved."}
	]`}
	m := New(stub, nil)

	events := []audit.EquityEvent{issuanceEvent()}
	docs := []audit.Document{consentDoc()}

	m.Match(context.Background(), events, docs)
	event := events[0]
	if event.ApprovalDocID != "" {
		t.Fatalf("hallucinated id must not be stored: %+v", event)
	}
	if event.Compliance != audit.ComplianceWarning {
		t.Fatalf("hallucination must downgrade to WARNING: %+v", event)
	}
	if !strings.Contains(event.ComplianceNote, "Auto-corrected") {
		t.Fatalf("note missing annotation: %q", event.ComplianceNote)
	}
}

func TestMatchToleratesNumericDocID(t *testing.T) {
	stub := &stubCompleter{response: `[
		{"tx_index": 0, "approval_doc_id": 3, "compliance_status": "VERIFIED", "compliance_note": "ok"}
	]`}
	m := New(stub, nil)

	events := []audit.EquityEvent{issuanceEvent()}
	m.Match(context.Background(), events, []audit.Document{consentDoc()})
	if events[0].ApprovalDocID != "3" {
		t.Fatalf("numeric id should normalize: %+v", events[0])
	}
}

func TestMatchKeepsDefaultsOnModelFailure(t *testing.T) {
	stub := &stubCompleter{err: errors.New("rate limited")}
	m := New(stub, nil)

	events := []audit.EquityEvent{issuanceEvent()}
	m.Match(context.Background(), events, []audit.Document{consentDoc()})
	event := events[0]
	if event.Compliance != audit.ComplianceWarning {
		t.Fatalf("defaults should stand on failure: %+v", event)
	}
	if !strings.Contains(event.ComplianceNote, "Approval matching failed") {
		t.Fatalf("failure not annotated: %q", event.ComplianceNote)
	}
}

func TestMatchIgnoresOutOfRangeIndexes(t *testing.T) {
	stub := &stubCompleter{response: `[
		{"tx_index": 5, "approval_doc_id": "3", "compliance_status": "VERIFIED", "compliance_note": "x"},
		{"approval_doc_id": "3", "compliance_status": "VERIFIED", "compliance_note": "y"}
	]`}
	m := New(stub, nil)

	events := []audit.EquityEvent{issuanceEvent()}
	m.Match(context.Background(), events, []audit.Document{consentDoc()})
	if events[0].Compliance != audit.ComplianceWarning || events[0].ApprovalDocID != "" {
		t.Fatalf("bad indexes must leave defaults: %+v", events[0])
	}
}

package issues

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"capaudit/internal/audit"
	"capaudit/internal/extractor"
	"capaudit/internal/services"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return s.response, s.err
}

func hasIssue(found []audit.Issue, category, fragment string) bool {
	for _, issue := range found {
		if issue.Category == category && strings.Contains(issue.Description, fragment) {
			return true
		}
	}
	return false
}

func TestCheckDeterministicMissingCharter(t *testing.T) {
	docs := []audit.Document{{Filename: "spa.pdf", Category: audit.CategoryStockPurchase}}
	found := CheckDeterministic(docs, nil, nil)
	if !hasIssue(found, "Missing Document", "No Certificate of Incorporation") {
		t.Fatalf("missing charter not flagged: %+v", found)
	}
	if !hasIssue(found, "Equity Compliance", "no Board Minutes") {
		t.Fatalf("unapproved stock not flagged: %+v", found)
	}
	if !hasIssue(found, "Equity Compliance", "83(b)") {
		t.Fatalf("missing 83(b) not flagged: %+v", found)
	}
}

func TestCheckDeterministicIssuedExceedsAuthorized(t *testing.T) {
	docs := []audit.Document{{
		Filename: "charter.pdf",
		Category: audit.CategoryCharter,
		Extraction: map[string]any{extractor.KeyCharter: map[string]any{
			"authorized_shares": float64(10000000),
		}},
	}}
	capTable := []audit.CapTableEntry{
		{Shareholder: "Jane Roe", ShareClass: "Common Stock", Shares: 12000000, OwnershipPct: 100},
	}
	found := CheckDeterministic(docs, capTable, nil)
	if !hasIssue(found, "Cap Table Integrity", "exceed authorized shares") {
		t.Fatalf("over-issuance not flagged: %+v", found)
	}
}

func TestCheckDeterministicChronology(t *testing.T) {
	timelineEvents := []audit.TimelineEvent{
		{Date: "2021-03-10", EventType: "formation"},
		{Date: "2020-05-01", EventType: "stock_issuance"},
	}
	found := CheckDeterministic(nil, nil, timelineEvents)
	if !hasIssue(found, "Chronological Integrity", "predates company formation") {
		t.Fatalf("pre-formation event not flagged: %+v", found)
	}
}

func TestCheckDeterministicRepurchaseMissingShares(t *testing.T) {
	docs := []audit.Document{{
		Filename: "repurchase.pdf",
		Category: audit.CategoryRepurchase,
		Extraction: map[string]any{extractor.KeyRepurchase: map[string]any{
			"shareholder": "Jane Roe",
			"date":        "2023-06-01",
		}},
	}}
	found := CheckDeterministic(docs, nil, nil)
	if !hasIssue(found, "Missing Data", "missing share count") {
		t.Fatalf("missing repurchase shares not flagged: %+v", found)
	}
}

func TestCheckDeterministicOptionPoolOverGranted(t *testing.T) {
	docs := []audit.Document{
		{
			Filename: "plan.pdf",
			Category: audit.CategoryIncentivePlan,
			Text:     "The Board has reserved a pool of 1,000,000 shares for issuance under the Plan.",
		},
		{
			Filename: "grant.pdf",
			Category: audit.CategoryOptionGrant,
			Extraction: map[string]any{extractor.KeyOption: map[string]any{
				"shares": float64(1500000),
			}},
		},
	}
	found := CheckDeterministic(docs, nil, nil)
	if !hasIssue(found, "Option Pool Integrity", "exceed pool size") {
		t.Fatalf("pool overrun not flagged: %+v", found)
	}
}

func TestCheckDeterministicLowConfidence(t *testing.T) {
	docs := []audit.Document{
		{
			Filename: "charter.pdf",
			Category: audit.CategoryCharter,
			Extraction: map[string]any{extractor.KeyCharter: map[string]any{
				"low_confidence":     true,
				"confidence_warning": "Low extraction confidence (50%) for charter.pdf. Manual review recommended.",
			}},
		},
	}
	found := CheckDeterministic(docs, nil, nil)
	if !hasIssue(found, "Extraction Quality", "Manual review recommended") {
		t.Fatalf("low confidence not surfaced: %+v", found)
	}
}

func TestGenerateMergesModelIssues(t *testing.T) {
	stub := &stubCompleter{response: `[
		{"severity": "note", "category": "Governance", "description": "Consider adopting bylaws."}
	]`}
	d := New(stub, nil)
	docs := []audit.Document{{Filename: "charter.pdf", Category: audit.CategoryCharter}}

	found := d.Generate(context.Background(), docs, nil, nil)
	if !hasIssue(found, "Governance", "bylaws") {
		t.Fatalf("model issue missing: %+v", found)
	}
}

func TestGenerateRateLimitDegrades(t *testing.T) {
	stub := &stubCompleter{err: fmt.Errorf("model call: %w", services.ErrRateLimited)}
	d := New(stub, nil)
	docs := []audit.Document{{Filename: "spa.pdf", Category: audit.CategoryStockPurchase}}

	found := d.Generate(context.Background(), docs, nil, nil)
	if !hasIssue(found, "System", "rate limiting") {
		t.Fatalf("rate limit warning missing: %+v", found)
	}
	if !hasIssue(found, "Missing Document", "No Certificate of Incorporation") {
		t.Fatalf("deterministic findings must survive: %+v", found)
	}
}

func TestGenerateFailureDegrades(t *testing.T) {
	stub := &stubCompleter{err: fmt.Errorf("boom")}
	d := New(stub, nil)

	found := d.Generate(context.Background(), nil, nil, nil)
	if !hasIssue(found, "System", "issue analysis failed") {
		t.Fatalf("failure warning missing: %+v", found)
	}
}

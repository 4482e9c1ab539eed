package timeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"capaudit/internal/audit"
	"capaudit/internal/extractor"
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

func richDocs() []audit.Document {
	return []audit.Document{
		{Filename: "charter.pdf", Extraction: map[string]any{extractor.KeyCharter: map[string]any{
			"incorporation_date": "2021-03-10", "company_name": "Acme Robotics, Inc.",
		}}},
		{Filename: "spa.pdf", Extraction: map[string]any{extractor.KeyStock: []map[string]any{
			{"date": "2021-04-01", "shareholder": "Jane Roe", "shares": float64(800000), "share_class": "Common Stock"},
		}}},
		{Filename: "minutes.pdf", Extraction: map[string]any{extractor.KeyMinutes: map[string]any{
			"meeting_date": "2021-04-01", "meeting_type": "Board Meeting",
			"key_decisions": []any{"Approved stock issuance", "Adopted bylaws", "Third decision"},
		}}},
	}
}

func TestBuildProgrammaticOrdersAndDescribes(t *testing.T) {
	events := BuildProgrammatic(richDocs())
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].EventType != "formation" {
		t.Fatalf("formation must sort first: %+v", events[0])
	}
	if !strings.Contains(events[0].Description, "Acme Robotics, Inc.") {
		t.Fatalf("formation description: %q", events[0].Description)
	}
	var issuance audit.TimelineEvent
	for _, event := range events {
		if event.EventType == "stock_issuance" {
			issuance = event
		}
	}
	if !strings.Contains(issuance.Description, "800,000") {
		t.Fatalf("share count should be grouped: %q", issuance.Description)
	}
}

func TestBuildProgrammaticTruncatesDecisions(t *testing.T) {
	events := BuildProgrammatic(richDocs())
	var board audit.TimelineEvent
	for _, event := range events {
		if event.EventType == "board_action" {
			board = event
		}
	}
	if !strings.Contains(board.Description, "Approved stock issuance; Adopted bylaws") {
		t.Fatalf("first two decisions expected: %q", board.Description)
	}
	if strings.Contains(board.Description, "Third decision") {
		t.Fatalf("only two decisions should survive: %q", board.Description)
	}
}

func TestBuildProgrammaticSkipsErrorAndIncompletePayloads(t *testing.T) {
	docs := []audit.Document{
		{Filename: "bad.pdf", Extraction: map[string]any{extractor.KeySAFE: map[string]any{
			"error": "Extraction failed",
		}}},
		{Filename: "partial.pdf", Extraction: map[string]any{extractor.KeyNote: map[string]any{
			"investor": "Seed Fund LP",
		}}},
	}
	if events := BuildProgrammatic(docs); len(events) != 0 {
		t.Fatalf("expected no events: %+v", events)
	}
}

func TestSynthesizeSkipsModelWhenDense(t *testing.T) {
	stub := &stubCompleter{}
	s := New(stub, nil)
	events := s.Synthesize(context.Background(), richDocs())
	if stub.called {
		t.Fatal("model must not be called for dense data")
	}
	if len(events) != 3 {
		t.Fatalf("expected programmatic events: %+v", events)
	}
}

func TestSynthesizeFallsBackToModelWhenSparse(t *testing.T) {
	stub := &stubCompleter{response: `[
		{"date": "2021-03-10", "event_type": "formation", "description": "Incorporated", "source_docs": ["charter.pdf"]},
		{"date": "2021-02-01", "event_type": "other", "description": "Name reserved", "source_docs": []}
	]`}
	s := New(stub, nil)
	events := s.Synthesize(context.Background(), nil)
	if !stub.called {
		t.Fatal("model should be called for sparse data")
	}
	if len(events) != 2 || events[0].Date != "2021-02-01" {
		t.Fatalf("model events should be sorted by date: %+v", events)
	}
}

func TestSynthesizeModelFailureKeepsProgrammatic(t *testing.T) {
	stub := &stubCompleter{err: errors.New("rate limited")}
	s := New(stub, nil)
	docs := richDocs()[:1]
	events := s.Synthesize(context.Background(), docs)
	if len(events) != 1 || events[0].EventType != "formation" {
		t.Fatalf("programmatic result should survive model failure: %+v", events)
	}
}

func TestCompanyNamePrefersStructuredData(t *testing.T) {
	s := New(&stubCompleter{}, nil)
	name := s.CompanyName(context.Background(), richDocs(), nil)
	if name != "Acme Robotics, Inc." {
		t.Fatalf("name = %q", name)
	}
}

func TestCompanyNameUnknownWithoutCharters(t *testing.T) {
	s := New(&stubCompleter{}, nil)
	name := s.CompanyName(context.Background(), []audit.Document{{Filename: "spa.pdf"}}, nil)
	if name != "Unknown Company" {
		t.Fatalf("name = %q", name)
	}
}

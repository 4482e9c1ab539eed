package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"capaudit/internal/audit"
	"capaudit/internal/config"
	"capaudit/internal/logging"
	"capaudit/internal/store"
)

var _ Store = (*store.Store)(nil)

type fakeParser struct {
	results map[string]audit.ParseResult
}

func (f *fakeParser) Parse(ctx context.Context, path string) audit.ParseResult {
	if result, ok := f.results[filepath.Base(path)]; ok {
		return result
	}
	return audit.ParseResult{ParseStatus: audit.ParseError, ParseError: "failed to parse: unknown fixture"}
}

type stubCompleter struct {
	err error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return "", s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Claude.APIKey = "test-key"
	base := t.TempDir()
	cfg.Paths.WorkDir = base
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.PreviewDir = filepath.Join(base, "previews")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DatabaseDir = filepath.Join(base, "db")
	return &cfg
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "capaudit.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProcessAuditDegradesParseFailures(t *testing.T) {
	cfg := testConfig(t)
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateAudit(ctx, "audit-1"); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}

	parser := &fakeParser{results: map[string]audit.ParseResult{
		"charter.pdf": {
			Text:        "CERTIFICATE OF INCORPORATION of Acme Robotics, Inc. The total number of shares authorized is 10,000,000.",
			ParseStatus: audit.ParseSuccess,
		},
		"broken.pdf": {
			ParseStatus: audit.ParseError,
			ParseError:  "failed to parse: timed out after 45s",
		},
	}}

	o := New(cfg, st, parser, &stubCompleter{err: errors.New("model unavailable")}, nil)
	if err := o.ProcessAudit(ctx, "audit-1", []string{"/uploads/charter.pdf", "/uploads/broken.pdf"}); err != nil {
		t.Fatalf("ProcessAudit: %v", err)
	}

	record, err := st.GetAudit(ctx, "audit-1")
	if err != nil {
		t.Fatalf("GetAudit: %v", err)
	}
	if record.State != audit.StateNeedsReview {
		t.Fatalf("state = %s, want %s", record.State, audit.StateNeedsReview)
	}
	if record.Results == nil || len(record.Results.Documents) != 2 {
		t.Fatalf("results must carry both documents: %+v", record.Results)
	}
	if len(record.Results.FailedDocuments) != 1 || record.Results.FailedDocuments[0].Filename != "broken.pdf" {
		t.Fatalf("failed documents wrong: %+v", record.Results.FailedDocuments)
	}
	if record.QualityReport == nil || record.QualityReport.ParseFailures != 1 {
		t.Fatalf("quality report wrong: %+v", record.QualityReport)
	}

	var charter audit.Document
	for _, doc := range record.Results.Documents {
		if doc.Filename == "charter.pdf" {
			charter = doc
		}
	}
	if charter.Category != audit.CategoryCharter {
		t.Fatalf("keyword classification failed: %+v", charter)
	}
	if charter.DocumentID == 0 {
		t.Fatalf("document id not assigned: %+v", charter)
	}
	if charter.ExtractedData == nil || charter.ExtractedData.SchemaVersion != "v1" {
		t.Fatalf("envelope not attached: %+v", charter.ExtractedData)
	}
}

// trackingParser records call order and fails the test if two parses overlap.
type trackingParser struct {
	mu     sync.Mutex
	active int
	order  []string
	onFail func(format string, args ...any)
}

func (p *trackingParser) Parse(ctx context.Context, path string) audit.ParseResult {
	p.mu.Lock()
	p.active++
	if p.active > 1 {
		p.onFail("parse of %s overlapped another document", path)
	}
	p.order = append(p.order, filepath.Base(path))
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	return audit.ParseResult{Text: "document body text", ParseStatus: audit.ParseSuccess}
}

type nopStore struct{}

func (nopStore) UpdateProgress(ctx context.Context, id string, state audit.State, progress string) error {
	return nil
}

func (nopStore) InsertDocuments(ctx context.Context, auditID string, docs []audit.Document) error {
	return nil
}

func (nopStore) InsertEquityEvents(ctx context.Context, auditID string, events []audit.EquityEvent) error {
	return nil
}

func (nopStore) UpdateResults(ctx context.Context, id string, results *audit.Results, report *audit.QualityReport, state audit.State) error {
	return nil
}

func (nopStore) MarkError(ctx context.Context, id, message string) error {
	return nil
}

func TestParseStageRunsOneDocumentAtATime(t *testing.T) {
	cfg := testConfig(t)
	parser := &trackingParser{onFail: t.Errorf}

	o := New(cfg, nopStore{}, parser, &stubCompleter{err: errors.New("unused")}, nil)
	paths := []string{
		"/uploads/charter.pdf",
		"/uploads/minutes.docx",
		"/uploads/safe.pdf",
		"/uploads/notes.txt",
	}
	docs := o.parseStage(context.Background(), "audit-1", paths, logging.NewNop())

	if len(docs) != len(paths) {
		t.Fatalf("expected %d documents, got %d", len(paths), len(docs))
	}
	want := []string{"charter.pdf", "minutes.docx", "safe.pdf", "notes.txt"}
	if !reflect.DeepEqual(parser.order, want) {
		t.Fatalf("parse order = %v, want %v", parser.order, want)
	}
	for i, doc := range docs {
		if doc.Filename != want[i] {
			t.Fatalf("document %d = %s, want %s", i, doc.Filename, want[i])
		}
	}
}

func TestProcessAuditTimesOut(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.PipelineTimeoutSeconds = 0
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateAudit(ctx, "audit-1"); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}

	o := New(cfg, st, &fakeParser{}, &stubCompleter{err: errors.New("unused")}, nil)
	err := o.ProcessAudit(ctx, "audit-1", []string{"/uploads/doc.pdf"})
	if err == nil || !strings.Contains(err.Error(), "pipeline timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}

	record, getErr := st.GetAudit(ctx, "audit-1")
	if getErr != nil {
		t.Fatalf("GetAudit: %v", getErr)
	}
	if record.State != audit.StateError {
		t.Fatalf("state = %s, want %s", record.State, audit.StateError)
	}
	if !strings.Contains(record.ErrorMessage, "pipeline timed out") {
		t.Fatalf("error message missing: %+v", record)
	}
}

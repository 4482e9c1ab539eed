package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestParseFilePlainText(t *testing.T) {
	path := writeFixture(t, "charter.txt", "CERTIFICATE OF INCORPORATION\nAuthorized shares: 10,000,000")
	result, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if !strings.Contains(result.Text, "Authorized shares") {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}

func TestParseFileStripsNulBytes(t *testing.T) {
	path := writeFixture(t, "notes.md", "board approval\x00 for issuance of shares")
	result, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if strings.Contains(result.Text, "\x00") {
		t.Fatal("NUL bytes must be stripped")
	}
}

func TestParseFileRejectsNearEmptyDocument(t *testing.T) {
	path := writeFixture(t, "stub.txt", "hi")
	_, err := ParseFile(path)
	if err == nil {
		t.Fatal("expected error for near-empty document")
	}
	if !strings.Contains(err.Error(), "empty or unreadable") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseFileRejectsUnsupportedExtension(t *testing.T) {
	path := writeFixture(t, "deck.pptx", "not really a deck")
	_, err := ParseFile(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported file type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestParseFileReportsCorruptInput(t *testing.T) {
	path := writeFixture(t, "broken.pdf", "this is not a pdf")
	_, err := ParseFile(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("expected parse failure, got %v", err)
	}
}

func TestIsSupportedExtension(t *testing.T) {
	for _, name := range []string{"a.pdf", "b.DOCX", "c.xlsx", "d.txt", "e.md"} {
		if !IsSupportedExtension(name) {
			t.Fatalf("%s should be supported", name)
		}
	}
	for _, name := range []string{"a.pptx", "b.zip", "noext"} {
		if IsSupportedExtension(name) {
			t.Fatalf("%s should not be supported", name)
		}
	}
}

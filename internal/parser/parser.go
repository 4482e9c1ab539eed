package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"capaudit/internal/audit"
)

// minReadableChars is the threshold below which an extraction is treated as
// an empty or unreadable document.
const minReadableChars = 10

// SupportedExtensions lists file extensions this pipeline can parse.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".xlsx": true,
	".txt":  true,
	".md":   true,
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Result carries the extracted text plus any positioned spans.
type Result struct {
	Text  string
	Spans []audit.TextSpan
}

// ParseFile extracts text from a document, routing on its extension.
func ParseFile(path string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var result Result
	var err error
	switch ext {
	case ".pdf":
		result, err = parsePDF(path)
	case ".docx":
		result.Text, err = parseDOCX(path)
	case ".xlsx":
		result.Text, err = parseXLSX(path)
	case ".txt", ".md":
		result.Text, err = parsePlainText(path)
	default:
		return Result{}, fmt.Errorf("unsupported file type: %s", ext)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse: %w", err)
	}

	result.Text = audit.CleanText(result.Text)
	if len(strings.TrimSpace(result.Text)) < minReadableChars {
		return Result{}, fmt.Errorf("document appears to be empty or unreadable")
	}
	return result, nil
}

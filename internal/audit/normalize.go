package audit

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Severity levels for issues, mildest to most severe.
const (
	SeverityNote     = "note"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Issue is a normalized finding surfaced to reviewers.
type Issue struct {
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Description string `json:"description"`
	SourceDoc   string `json:"source_doc,omitempty"`
}

// TransactableCategories are the document categories that generate equity
// transactions.
var TransactableCategories = []string{
	CategoryStockPurchase,
	CategorySAFE,
	CategoryOptionGrant,
	CategoryRepurchase,
	CategoryConvertibleNote,
}

// IsTransactableCategory reports whether a category yields equity events.
func IsTransactableCategory(category string) bool {
	for _, c := range TransactableCategories {
		if c == category {
			return true
		}
	}
	return false
}

var shareClassAliases = map[string]string{
	"common":               "Common Stock",
	"common stock":         "Common Stock",
	"common shares":        "Common Stock",
	"class a common":       "Common Stock",
	"class a common stock": "Common Stock",
	"ordinary shares":      "Common Stock",
	"ordinary stock":       "Common Stock",

	"series seed":                 "Series Seed Preferred",
	"series seed preferred":       "Series Seed Preferred",
	"series seed preferred stock": "Series Seed Preferred",
	"seed preferred":              "Series Seed Preferred",

	"series a":                 "Series A Preferred",
	"series a preferred":       "Series A Preferred",
	"series a preferred stock": "Series A Preferred",
	"series a-1":               "Series A Preferred",
	"series a-1 preferred":     "Series A Preferred",

	"series b":                 "Series B Preferred",
	"series b preferred":       "Series B Preferred",
	"series b preferred stock": "Series B Preferred",

	"safe": "SAFE",
	"simple agreement for future equity": "SAFE",

	"convertible note":            "Convertible Note",
	"convertible promissory note": "Convertible Note",

	"option":       "Option",
	"stock option": "Option",
	"iso":          "Option",
	"nso":          "Option",
	"nqso":         "Option",
}

var titleCaser = cases.Title(language.English)

// NormalizeShareholderName canonicalizes a shareholder name for grouping:
// lowercase, "Last, First" flipped to "first last", whitespace collapsed.
func NormalizeShareholderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if before, after, found := strings.Cut(name, ","); found {
		last := strings.TrimSpace(before)
		first := strings.TrimSpace(after)
		if last != "" && first != "" {
			name = first + " " + last
		}
	}
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeShareClass maps share class spellings to their canonical names.
// Unknown classes pass through title-cased; empty defaults to Common Stock.
func NormalizeShareClass(shareClass string) string {
	trimmed := strings.TrimSpace(shareClass)
	if trimmed == "" {
		return "Common Stock"
	}
	if canonical, ok := shareClassAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return titleCaser.String(trimmed)
}

// NormalizeComplianceStatus coerces model output into the known grades,
// falling back when the value is unrecognized.
func NormalizeComplianceStatus(value string, fallback ComplianceStatus) ComplianceStatus {
	switch ComplianceStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case ComplianceVerified:
		return ComplianceVerified
	case ComplianceWarning:
		return ComplianceWarning
	case ComplianceCritical:
		return ComplianceCritical
	default:
		return fallback
	}
}

func normalizeSeverity(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityWarning:
		return SeverityWarning
	case SeverityInfo:
		return SeverityInfo
	case SeverityNote:
		return SeverityNote
	case "":
		return SeverityNote
	default:
		return SeverityWarning
	}
}

// NormalizeIssue coerces an arbitrary issue payload (string or object from
// model output) into a well-formed Issue. Unrecognized payload shapes degrade
// to a System Error warning rather than failing the pipeline.
func NormalizeIssue(payload any) Issue {
	switch v := payload.(type) {
	case string:
		return Issue{Severity: SeverityNote, Category: "General", Description: v}
	case Issue:
		normalized := v
		normalized.Severity = normalizeSeverity(v.Severity)
		if strings.TrimSpace(normalized.Category) == "" {
			normalized.Category = "General"
		}
		if strings.TrimSpace(normalized.Description) == "" {
			normalized.Description = "Unspecified issue"
		}
		return normalized
	case map[string]any:
		issue := Issue{
			Severity: normalizeSeverity(stringField(v, "severity")),
			Category: stringField(v, "category"),
		}
		if issue.Category == "" {
			issue.Category = "General"
		}
		issue.Description = stringField(v, "description")
		if issue.Description == "" {
			issue.Description = stringField(v, "message")
		}
		if issue.Description == "" {
			issue.Description = "Unspecified issue"
		}
		issue.SourceDoc = stringField(v, "source_doc")
		return issue
	default:
		return Issue{
			Severity:    SeverityWarning,
			Category:    "System Error",
			Description: "Unsupported issue payload",
		}
	}
}

func stringField(m map[string]any, key string) string {
	value, ok := m[key]
	if !ok || value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// CleanText strips NUL bytes and normalizes carriage returns so text is safe
// for storage and JSON round-trips.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.ReplaceAll(text, "\r", "\n")
}

// BuildEnvelope splits a document's type-keyed extraction payload from its
// metadata and wraps it in the versioned persistence schema.
func BuildEnvelope(doc *Document) Envelope {
	envelope := Envelope{
		SchemaVersion: "v1",
		Category:      doc.Category,
		ParseStatus:   doc.ParseStatus,
		ParseError:    doc.ParseError,
		Extraction:    map[string]any{},
		Warnings:      []string{},
	}
	if envelope.Category == "" {
		envelope.Category = CategoryOther
	}
	if envelope.ParseStatus == "" {
		envelope.ParseStatus = ParseSuccess
	}
	for key, value := range doc.Extraction {
		envelope.Extraction[key] = value
	}
	if doc.ParseError != "" {
		envelope.Warnings = append(envelope.Warnings, doc.ParseError)
	}
	return envelope
}

// FormatParagraphs renders plain text as numbered paragraphs so extraction
// prompts can reference them. Paragraphs under 21 characters are dropped.
func FormatParagraphs(text string) string {
	if text == "" {
		return text
	}
	var formatted []string
	var current []string
	paragraphNum := 1

	flush := func() {
		if len(current) == 0 {
			return
		}
		paragraph := strings.Join(current, " ")
		current = current[:0]
		if len(paragraph) > 20 {
			formatted = append(formatted, fmt.Sprintf("[¶%d] %s", paragraphNum, paragraph))
			paragraphNum++
		}
	}

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			flush()
			continue
		}
		current = append(current, stripped)
	}
	flush()
	return strings.Join(formatted, "\n\n")
}

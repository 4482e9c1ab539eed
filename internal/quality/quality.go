package quality

import (
	"fmt"
	"strings"

	"capaudit/internal/audit"
)

// placeholderTokens in an event summary mean the model left a gap a reviewer
// has to fill.
var placeholderTokens = []string{"n/a", "none", "unknown", "null"}

// BuildReport aggregates parse, extraction, approval, and issue signals into
// the review decision.
func BuildReport(docs []audit.Document, events []audit.EquityEvent, found []audit.Issue) audit.QualityReport {
	report := audit.QualityReport{
		SchemaVersion: "v1",
		DocumentCount: len(docs),
	}

	for i := range docs {
		doc := &docs[i]
		filename := doc.Filename
		if filename == "" {
			filename = "unknown"
		}

		if doc.ParseStatus == audit.ParseSuccess || doc.ParseStatus == audit.ParsePartial {
			report.ParsedSuccessfully++
		} else {
			report.ParseFailures++
			report.BlockingReasons = append(report.BlockingReasons,
				"Document parsing failed: "+filename)
		}

		for _, warning := range scanLowConfidence(doc.Extraction) {
			report.LowConfidenceCount++
			report.Warnings = append(report.Warnings, warning)
			report.BlockingReasons = append(report.BlockingReasons,
				"Low-confidence extraction requires review: "+filename)
		}

		for _, failure := range scanExtractionErrors(doc.Extraction) {
			report.ExtractionFailures++
			report.Warnings = append(report.Warnings, failure)
			report.BlockingReasons = append(report.BlockingReasons,
				"Extraction failed: "+filename)
		}
	}

	for i := range events {
		event := &events[i]

		if event.EventType.RequiresApproval() && event.ApprovalDocID == "" {
			report.MissingApprovals++
			report.BlockingReasons = append(report.BlockingReasons,
				fmt.Sprintf("Missing approval for %s on %s", event.EventType, event.EventDate))
		}

		summary := strings.ToLower(strings.TrimSpace(event.Summary))
		if summary != "" && containsAny(summary, placeholderTokens) {
			report.BlockingReasons = append(report.BlockingReasons,
				"Unresolved summary placeholders for event on "+event.EventDate)
		}

		status := audit.NormalizeComplianceStatus(string(event.Compliance), audit.ComplianceWarning)
		if status == audit.ComplianceCritical {
			report.CriticalComplianceCount++
			report.BlockingReasons = append(report.BlockingReasons,
				fmt.Sprintf("Critical compliance gap for %s on %s", event.EventType, event.EventDate))
		}
	}

	for _, issue := range found {
		if audit.NormalizeIssue(issue).Severity == audit.SeverityCritical {
			report.CriticalIssueCount++
		}
	}
	if report.CriticalIssueCount > 0 {
		report.BlockingReasons = append(report.BlockingReasons,
			fmt.Sprintf("%d critical compliance issue(s)", report.CriticalIssueCount))
	}

	report.Warnings = dedupe(report.Warnings)
	report.BlockingReasons = dedupe(report.BlockingReasons)
	report.ReviewRequired = len(report.BlockingReasons) > 0
	return report
}

func scanLowConfidence(extraction map[string]any) []string {
	var warnings []string
	scan := func(payload map[string]any) {
		if payload["low_confidence"] != true {
			return
		}
		warning, _ := payload["confidence_warning"].(string)
		if warning == "" {
			warning = "Low confidence extraction"
		}
		warnings = append(warnings, warning)
	}
	for _, value := range extraction {
		switch payload := value.(type) {
		case map[string]any:
			scan(payload)
		case []map[string]any:
			for _, item := range payload {
				scan(item)
			}
		}
	}
	return warnings
}

func scanExtractionErrors(extraction map[string]any) []string {
	var failures []string
	scan := func(key string, payload map[string]any) {
		if message, ok := payload["error"].(string); ok && message != "" {
			failures = append(failures, key+": "+message)
		}
	}
	for key, value := range extraction {
		switch payload := value.(type) {
		case map[string]any:
			scan(key, payload)
		case []map[string]any:
			for _, item := range payload {
				scan(key, item)
			}
		}
	}
	return failures
}

func containsAny(value string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(value, token) {
			return true
		}
	}
	return false
}

// dedupe removes duplicates while preserving first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := values[:0]
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, value)
	}
	return result
}

package transaction

import (
	"fmt"
	"sort"
	"strings"

	"capaudit/internal/audit"
	"capaudit/internal/extractor"
)

// metadataKeys are extraction fields excluded from the partial-data dump in
// Incomplete Extraction warnings.
var metadataKeys = map[string]bool{
	"source_doc":           true,
	"verification":         true,
	"low_confidence":       true,
	"confidence_warning":   true,
	"_validation_warnings": true,
	"error":                true,
}

// Build converts document extraction payloads into equity events. The second
// return value carries one warning per extraction that was dropped for
// missing required fields.
func Build(docs []audit.Document) ([]audit.EquityEvent, []audit.Issue) {
	var events []audit.EquityEvent
	var warnings []audit.Issue

	for i := range docs {
		doc := &docs[i]

		if issuances, ok := doc.Extraction[extractor.KeyStock].([]map[string]any); ok {
			for _, issuance := range issuances {
				if event, ok := buildIssuance(doc, issuance, &warnings); ok {
					events = append(events, event)
				}
			}
		}
		if safe, ok := payload(doc, extractor.KeySAFE); ok {
			if event, ok := buildSAFE(doc, safe, &warnings); ok {
				events = append(events, event)
			}
		}
		if note, ok := payload(doc, extractor.KeyNote); ok {
			if event, ok := buildConvertibleNote(doc, note, &warnings); ok {
				events = append(events, event)
			}
		}
		if option, ok := payload(doc, extractor.KeyOption); ok {
			if event, ok := buildOptionGrant(doc, option, &warnings); ok {
				events = append(events, event)
			}
		}
		if repurchase, ok := payload(doc, extractor.KeyRepurchase); ok {
			if event, ok := buildRepurchase(doc, repurchase, &warnings); ok {
				events = append(events, event)
			}
		}
		if charter, ok := payload(doc, extractor.KeyCharter); ok {
			if event, ok := buildFormation(doc, charter); ok {
				events = append(events, event)
			}
		}
	}

	return events, warnings
}

func payload(doc *audit.Document, key string) (map[string]any, bool) {
	data, ok := doc.Extraction[key].(map[string]any)
	if !ok || data == nil {
		return nil, false
	}
	if _, failed := data["error"]; failed {
		return nil, false
	}
	return data, true
}

// warnIncomplete records a data-loss warning when required fields are
// missing. Returns true when the extraction must be skipped.
func warnIncomplete(warnings *[]audit.Issue, docType, filename string, required []string, data map[string]any) bool {
	var missing []string
	for _, field := range required {
		if isEmpty(data[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return false
	}

	partial := make(map[string]any)
	for key, value := range data {
		if !metadataKeys[key] && value != nil {
			partial[key] = value
		}
	}
	*warnings = append(*warnings, audit.Issue{
		Severity: audit.SeverityWarning,
		Category: "Incomplete Extraction",
		Description: fmt.Sprintf(
			"%s from '%s' excluded from cap table - missing: %s. Partial data: %s",
			docType, filename, strings.Join(missing, ", "), formatPartial(partial)),
		SourceDoc: filename,
	})
	return true
}

func formatPartial(partial map[string]any) string {
	if len(partial) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(partial))
	for key := range partial {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, partial[key]))
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

func buildIssuance(doc *audit.Document, issuance map[string]any, warnings *[]audit.Issue) (audit.EquityEvent, bool) {
	if _, failed := issuance["error"]; failed {
		return audit.EquityEvent{}, false
	}
	if warnIncomplete(warnings, "Stock issuance", doc.Filename, []string{"date", "shareholder", "shares"}, issuance) {
		return audit.EquityEvent{}, false
	}
	shares, ok := asFloat(issuance["shares"])
	if !ok {
		*warnings = append(*warnings, audit.Issue{
			Severity: audit.SeverityWarning,
			Category: "Incomplete Extraction",
			Description: fmt.Sprintf("Stock issuance from '%s' has non-numeric shares (%v) - excluded.",
				doc.Filename, issuance["shares"]),
			SourceDoc: doc.Filename,
		})
		return audit.EquityEvent{}, false
	}
	if shares < 0 {
		shares = -shares
	}

	details := map[string]any{
		"price_per_share": issuance["price_per_share"],
		"verification":    issuance["verification"],
	}
	attachFocus(doc, details)
	return audit.EquityEvent{
		EventDate:       stringOf(issuance["date"]),
		EventType:       audit.EventIssuance,
		ShareholderName: stringOf(issuance["shareholder"]),
		ShareClass:      stringOr(issuance["share_class"], "Common Stock"),
		ShareDelta:      shares,
		SourceDocID:     doc.DocumentID,
		SourceSnippet: stringOr(issuance["source_quote"],
			fmt.Sprintf("%v - %v shares", issuance["shareholder"], issuance["shares"])),
		PreviewImage: doc.PreviewImage,
		Summary:      docSummary(doc),
		Details:      details,
	}, true
}

func buildSAFE(doc *audit.Document, safe map[string]any, warnings *[]audit.Issue) (audit.EquityEvent, bool) {
	if warnIncomplete(warnings, "SAFE", doc.Filename, []string{"date", "investor"}, safe) {
		return audit.EquityEvent{}, false
	}
	details := map[string]any{
		"amount":        safe["amount"],
		"valuation_cap": safe["valuation_cap"],
		"discount_rate": safe["discount_rate"],
	}
	attachFocus(doc, details)
	return audit.EquityEvent{
		EventDate:       stringOf(safe["date"]),
		EventType:       audit.EventSAFE,
		ShareholderName: stringOf(safe["investor"]),
		ShareClass:      "SAFE",
		ShareDelta:      0,
		SourceDocID:     doc.DocumentID,
		SourceSnippet: stringOr(safe["source_quote"],
			fmt.Sprintf("SAFE investment by %v", safe["investor"])),
		PreviewImage: doc.PreviewImage,
		Summary:      docSummary(doc),
		Details:      details,
	}, true
}

func buildConvertibleNote(doc *audit.Document, note map[string]any, warnings *[]audit.Issue) (audit.EquityEvent, bool) {
	if warnIncomplete(warnings, "Convertible note", doc.Filename, []string{"date", "investor"}, note) {
		return audit.EquityEvent{}, false
	}
	details := map[string]any{
		"principal":     note["principal"],
		"interest_rate": note["interest_rate"],
		"maturity_date": note["maturity_date"],
		"valuation_cap": note["valuation_cap"],
		"discount_rate": note["discount_rate"],
	}
	attachFocus(doc, details)
	return audit.EquityEvent{
		EventDate:       stringOf(note["date"]),
		EventType:       audit.EventConvertibleNote,
		ShareholderName: stringOf(note["investor"]),
		ShareClass:      "Convertible Note",
		ShareDelta:      0,
		SourceDocID:     doc.DocumentID,
		SourceSnippet: stringOr(note["source_quote"],
			fmt.Sprintf("Convertible note from %v", note["investor"])),
		PreviewImage: doc.PreviewImage,
		Summary:      docSummary(doc),
		Details:      details,
	}, true
}

func buildOptionGrant(doc *audit.Document, option map[string]any, warnings *[]audit.Issue) (audit.EquityEvent, bool) {
	if warnIncomplete(warnings, "Option grant", doc.Filename, []string{"grant_date", "recipient"}, option) {
		return audit.EquityEvent{}, false
	}
	shares, _ := asFloat(option["shares"])
	details := map[string]any{
		"strike_price":     option["strike_price"],
		"vesting_schedule": option["vesting_schedule"],
	}
	attachFocus(doc, details)
	return audit.EquityEvent{
		EventDate:       stringOf(option["grant_date"]),
		EventType:       audit.EventOptionGrant,
		ShareholderName: stringOf(option["recipient"]),
		ShareClass:      "Option",
		ShareDelta:      shares,
		SourceDocID:     doc.DocumentID,
		SourceSnippet: stringOr(option["source_quote"],
			fmt.Sprintf("Option grant to %v", option["recipient"])),
		PreviewImage: doc.PreviewImage,
		Summary:      docSummary(doc),
		Details:      details,
	}, true
}

func buildRepurchase(doc *audit.Document, repurchase map[string]any, warnings *[]audit.Issue) (audit.EquityEvent, bool) {
	if warnIncomplete(warnings, "Share repurchase", doc.Filename, []string{"date", "shareholder"}, repurchase) {
		return audit.EquityEvent{}, false
	}
	shares, ok := asFloat(repurchase["shares"])
	if !ok || shares == 0 {
		*warnings = append(*warnings, audit.Issue{
			Severity: audit.SeverityWarning,
			Category: "Incomplete Extraction",
			Description: fmt.Sprintf("Repurchase from '%s' has missing/non-numeric shares (%v) - excluded from cap table.",
				doc.Filename, repurchase["shares"]),
			SourceDoc: doc.Filename,
		})
		return audit.EquityEvent{}, false
	}
	if shares > 0 {
		shares = -shares
	}

	details := map[string]any{"price_per_share": repurchase["price_per_share"]}
	attachFocus(doc, details)
	return audit.EquityEvent{
		EventDate:       stringOf(repurchase["date"]),
		EventType:       audit.EventRepurchase,
		ShareholderName: stringOf(repurchase["shareholder"]),
		ShareClass:      stringOr(repurchase["share_class"], "Common Stock"),
		ShareDelta:      shares,
		SourceDocID:     doc.DocumentID,
		SourceSnippet: stringOr(repurchase["source_quote"],
			fmt.Sprintf("Repurchase from %v", repurchase["shareholder"])),
		PreviewImage: doc.PreviewImage,
		Summary:      docSummary(doc),
		Details:      details,
	}, true
}

func buildFormation(doc *audit.Document, charter map[string]any) (audit.EquityEvent, bool) {
	if isEmpty(charter["incorporation_date"]) {
		return audit.EquityEvent{}, false
	}
	return audit.EquityEvent{
		EventDate:   stringOf(charter["incorporation_date"]),
		EventType:   audit.EventFormation,
		ShareDelta:  0,
		SourceDocID: doc.DocumentID,
		SourceSnippet: stringOr(charter["source_quote"],
			fmt.Sprintf("Company incorporated: %v", charter["company_name"])),
		Details: map[string]any{
			"company_name":      charter["company_name"],
			"authorized_shares": charter["authorized_shares"],
			"share_classes":     charter["share_classes"],
		},
	}, true
}

func attachFocus(doc *audit.Document, details map[string]any) {
	if doc.PreviewFocusY != nil {
		details["preview_focus_y"] = *doc.PreviewFocusY
	}
}

func docSummary(doc *audit.Document) string {
	if summary, ok := doc.Extraction["summary"].(string); ok {
		return summary
	}
	return ""
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case float64:
		return v == 0
	case int:
		return v == 0
	case bool:
		return !v
	default:
		return false
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func stringOf(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func stringOr(value any, fallback string) string {
	if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

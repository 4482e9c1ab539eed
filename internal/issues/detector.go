package issues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"capaudit/internal/audit"
	"capaudit/internal/extractor"
	"capaudit/internal/logging"
	"capaudit/internal/services"
	"capaudit/internal/services/claude"
)

const trackerPrompt = `You are auditing corporate governance records for issues and inconsistencies.

DOCUMENTS PROVIDED:
---
%s
---

CAP TABLE DATA:
---
%s
---

TIMELINE DATA:
---
%s
---

Identify potential issues such as:
1. Missing foundational documents (Charter, Bylaws if no Charter found, Board Minutes)
2. Issued shares exceeding authorized shares
3. Stock classes in agreements not mentioned in Charter
4. Board meetings without proper documentation
5. SAFEs without clear conversion terms
6. Inconsistent or conflicting information

For each issue:
- severity: "critical", "warning", or "note"
- category: Brief category label (e.g., "Missing Document", "Share Count Mismatch")
- description: Clear description of the issue

Respond ONLY with valid JSON (array of issues):
[{"severity": "...", "category": "...", "description": "..."}]

If no issues found, return empty array: []`

var grouper = message.NewPrinter(language.English)

var optionPoolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:reserve|pool|allocated?|set aside)\s+(?:of\s+)?(\d{1,3}(?:,\d{3})*(?:\.\d+)?)\s*(?:shares|options)`),
	regexp.MustCompile(`(\d{1,3}(?:,\d{3})*(?:\.\d+)?)\s*shares?\s+(?:reserved|allocated|in\s+the\s+pool)`),
}

// Detector runs deterministic and model-assisted compliance checks.
type Detector struct {
	completer claude.Completer
	logger    *slog.Logger
}

// New constructs a Detector.
func New(completer claude.Completer, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{completer: completer, logger: logging.NewComponentLogger(logger, "issues")}
}

// CheckDeterministic applies the rule-based checks. It never calls the model
// and never fails.
func CheckDeterministic(docs []audit.Document, capTable []audit.CapTableEntry, timelineEvents []audit.TimelineEvent) []audit.Issue {
	var found []audit.Issue

	categories := make([]string, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, doc.Category)
	}

	if !anyContains(categories, "Charter") {
		found = append(found, audit.Issue{
			Severity:    audit.SeverityCritical,
			Category:    "Missing Document",
			Description: "No Certificate of Incorporation or Charter Document found.",
		})
	}

	hasStock := anyContains(categories, "Stock Purchase") || anyContains(categories, "Stock Certificate")
	hasConsent := anyContains(categories, "Minutes") || anyContains(categories, "Board")
	if hasStock && !hasConsent {
		found = append(found, audit.Issue{
			Severity:    audit.SeverityCritical,
			Category:    "Equity Compliance",
			Description: "Stock issuances found but no Board Minutes or Written Consents documenting approval.",
		})
	}

	if authorized := authorizedShares(docs); authorized > 0 && len(capTable) > 0 {
		totalIssued := 0.0
		for _, entry := range capTable {
			totalIssued += entry.Shares
		}
		if totalIssued > float64(authorized) {
			found = append(found, audit.Issue{
				Severity: audit.SeverityCritical,
				Category: "Cap Table Integrity",
				Description: grouper.Sprintf("Issued shares (%.0f) exceed authorized shares (%d).",
					totalIssued, authorized),
			})
		}
	}

	if anyContains(categories, "Stock Purchase") && !anyContains(categories, "83(b)") {
		found = append(found, audit.Issue{
			Severity:    audit.SeverityWarning,
			Category:    "Equity Compliance",
			Description: "Stock Purchase Agreements found but no 83(b) election forms.",
		})
	}

	found = checkBoardGovernance(timelineEvents, docs, found)

	if anyContains(categories, "Option Grant") && !anyContains(categories, "Equity Incentive Plan") && !anyContains(categories, "Stock Plan") {
		found = append(found, audit.Issue{
			Severity:    audit.SeverityNote,
			Category:    "Equity Compliance",
			Description: "Option Grant Agreements found but no Equity Incentive Plan document.",
		})
	}

	found = checkRepurchaseShareCounts(docs, found)
	found = checkChronologicalIntegrity(timelineEvents, found)
	found = checkOptionPool(docs, found)
	found = checkReferencedDocs(docs, found)
	found = flagLowConfidence(docs, found)

	return found
}

// Generate combines the deterministic checks with one model pass. Model
// failure keeps the deterministic findings and appends a system warning so
// the gap is visible downstream.
func (d *Detector) Generate(ctx context.Context, docs []audit.Document, capTable []audit.CapTableEntry, timelineEvents []audit.TimelineEvent) []audit.Issue {
	deterministic := CheckDeterministic(docs, capTable, timelineEvents)

	modelIssues, err := d.modelPass(ctx, docs, capTable, timelineEvents)
	if err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			d.logger.Warn("issue analysis rate limited", logging.Error(err))
			deterministic = append(deterministic, audit.Issue{
				Severity:    audit.SeverityWarning,
				Category:    "System",
				Description: "AI-enhanced issue analysis was skipped due to rate limiting. Only deterministic checks are included. Manual review recommended.",
			})
		} else {
			d.logger.Error("issue analysis failed", logging.Error(err))
			deterministic = append(deterministic, audit.Issue{
				Severity:    audit.SeverityWarning,
				Category:    "System",
				Description: fmt.Sprintf("AI-enhanced issue analysis failed (%v). Only deterministic checks are included. Manual review recommended.", err),
			})
		}
		return normalizeAll(deterministic)
	}

	d.logger.Info("issue analysis complete",
		logging.Int("deterministic", len(deterministic)),
		logging.Int("model", len(modelIssues)))
	return normalizeAll(append(deterministic, modelIssues...))
}

func (d *Detector) modelPass(ctx context.Context, docs []audit.Document, capTable []audit.CapTableEntry, timelineEvents []audit.TimelineEvent) ([]audit.Issue, error) {
	if d.completer == nil {
		return nil, fmt.Errorf("no model client configured")
	}

	type docSummary struct {
		Filename string `json:"filename"`
		Category string `json:"category"`
	}
	summaries := make([]docSummary, 0, len(docs))
	for _, doc := range docs {
		category := doc.Category
		if category == "" {
			category = audit.CategoryOther
		}
		summaries = append(summaries, docSummary{Filename: doc.Filename, Category: category})
	}

	docsJSON, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	capTableJSON, err := json.MarshalIndent(capTable, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode cap table: %w", err)
	}
	timelineJSON, err := json.MarshalIndent(timelineEvents, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}

	response, err := d.completer.Complete(ctx,
		fmt.Sprintf(trackerPrompt, docsJSON, capTableJSON, timelineJSON), 4096)
	if err != nil {
		return nil, err
	}

	var decoded []map[string]any
	if err := claude.DecodeJSON(response, &decoded); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}

	found := make([]audit.Issue, 0, len(decoded))
	for _, raw := range decoded {
		found = append(found, audit.NormalizeIssue(raw))
	}
	return found, nil
}

func normalizeAll(found []audit.Issue) []audit.Issue {
	normalized := make([]audit.Issue, 0, len(found))
	for _, issue := range found {
		normalized = append(normalized, audit.NormalizeIssue(issue))
	}
	return normalized
}

func anyContains(values []string, substr string) bool {
	for _, value := range values {
		if strings.Contains(value, substr) {
			return true
		}
	}
	return false
}

// authorizedShares returns the first charter's authorized share count, or 0.
func authorizedShares(docs []audit.Document) int64 {
	for i := range docs {
		charter, ok := docs[i].Extraction[extractor.KeyCharter].(map[string]any)
		if !ok || charter == nil {
			continue
		}
		if _, failed := charter["error"]; failed {
			continue
		}
		if shares, ok := asFloat(charter["authorized_shares"]); ok && shares > 0 {
			return int64(shares)
		}
	}
	return 0
}

func checkBoardGovernance(timelineEvents []audit.TimelineEvent, docs []audit.Document, found []audit.Issue) []audit.Issue {
	var dates []string
	for _, event := range timelineEvents {
		if event.Date != "" {
			dates = append(dates, event.Date)
		}
	}
	if len(dates) == 0 {
		return found
	}
	sort.Strings(dates)

	first, err := time.Parse("2006-01-02", dates[0])
	if err != nil {
		return found
	}
	last, err := time.Parse("2006-01-02", dates[len(dates)-1])
	if err != nil {
		return found
	}
	years := last.Sub(first).Hours() / 24 / 365.25

	boardMeetings := 0
	for _, doc := range docs {
		if strings.Contains(doc.Category, "Minutes") || strings.Contains(doc.Category, "Board") {
			boardMeetings++
		}
	}
	if years >= 3 && boardMeetings < 3 {
		found = append(found, audit.Issue{
			Severity: audit.SeverityWarning,
			Category: "Board Governance",
			Description: fmt.Sprintf("Company has %.1f years of history but only %d documented board meeting(s).",
				years, boardMeetings),
		})
	}
	return found
}

func checkRepurchaseShareCounts(docs []audit.Document, found []audit.Issue) []audit.Issue {
	for i := range docs {
		doc := &docs[i]
		repurchase, ok := doc.Extraction[extractor.KeyRepurchase].(map[string]any)
		if !ok || repurchase == nil {
			continue
		}
		if _, failed := repurchase["error"]; failed {
			continue
		}
		shareholder, _ := repurchase["shareholder"].(string)
		date, _ := repurchase["date"].(string)
		if shareholder == "" || date == "" {
			continue
		}
		if repurchase["shares"] == nil {
			found = append(found, audit.Issue{
				Severity: audit.SeverityCritical,
				Category: "Missing Data",
				Description: fmt.Sprintf("Repurchase from %s on %s missing share count. Document: %s.",
					shareholder, date, doc.Filename),
				SourceDoc: doc.Filename,
			})
		}
	}
	return found
}

func checkChronologicalIntegrity(timelineEvents []audit.TimelineEvent, found []audit.Issue) []audit.Issue {
	var formation time.Time
	var earliest time.Time
	var earliestType string

	for _, event := range timelineEvents {
		if event.Date == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", event.Date)
		if err != nil {
			continue
		}
		if event.EventType == "formation" {
			if formation.IsZero() || parsed.Before(formation) {
				formation = parsed
			}
		} else if earliest.IsZero() || parsed.Before(earliest) {
			earliest = parsed
			earliestType = event.EventType
		}
	}

	if !formation.IsZero() && !earliest.IsZero() && earliest.Before(formation) {
		found = append(found, audit.Issue{
			Severity: audit.SeverityCritical,
			Category: "Chronological Integrity",
			Description: fmt.Sprintf("Event dated %s (%s) predates company formation (%s).",
				earliest.Format("2006-01-02"), earliestType, formation.Format("2006-01-02")),
		})
	}
	return found
}

func checkOptionPool(docs []audit.Document, found []audit.Issue) []audit.Issue {
	var poolSize int64
	for i := range docs {
		doc := &docs[i]
		if !strings.Contains(doc.Category, "Equity Incentive Plan") && !strings.Contains(doc.Category, "Stock Plan") {
			continue
		}
		text := strings.ToLower(doc.Text)
		for _, pattern := range optionPoolPatterns {
			match := pattern.FindStringSubmatch(text)
			if match == nil {
				continue
			}
			if parsed, ok := parseGroupedInt(match[1]); ok {
				poolSize = parsed
				break
			}
		}
		if poolSize > 0 {
			break
		}
	}
	if poolSize == 0 {
		return found
	}

	var totalGrants int64
	for i := range docs {
		option, ok := docs[i].Extraction[extractor.KeyOption].(map[string]any)
		if !ok || option == nil {
			continue
		}
		if _, failed := option["error"]; failed {
			continue
		}
		if shares, ok := asFloat(option["shares"]); ok {
			totalGrants += int64(shares)
		}
	}

	switch {
	case totalGrants > poolSize:
		found = append(found, audit.Issue{
			Severity:    audit.SeverityCritical,
			Category:    "Option Pool Integrity",
			Description: grouper.Sprintf("Option grants (%d) exceed pool size (%d).", totalGrants, poolSize),
		})
	case totalGrants > 0:
		utilization := float64(totalGrants) / float64(poolSize) * 100
		if utilization > 90 {
			found = append(found, audit.Issue{
				Severity: audit.SeverityWarning,
				Category: "Option Pool Integrity",
				Description: grouper.Sprintf("Option pool %.1f%% utilized (%d of %d).",
					utilization, totalGrants, poolSize),
			})
		}
	}
	return found
}

// checkReferencedDocs infers missing documents from board minute decisions
// that reference transactions with no matching document in the set.
func checkReferencedDocs(docs []audit.Document, found []audit.Issue) []audit.Issue {
	type reference struct {
		docType  string
		decision string
	}
	var references []reference

	for i := range docs {
		minutes, ok := docs[i].Extraction[extractor.KeyMinutes].(map[string]any)
		if !ok || minutes == nil {
			continue
		}
		if _, failed := minutes["error"]; failed {
			continue
		}
		decisions, _ := minutes["key_decisions"].([]any)
		for _, raw := range decisions {
			decision, _ := raw.(string)
			lowered := strings.ToLower(decision)
			if strings.Contains(lowered, "option grant") && strings.Contains(lowered, "approved") {
				references = append(references, reference{"Option Grant Agreement", decision})
			}
			if strings.Contains(lowered, "stock issuance") || strings.Contains(lowered, "issue shares") {
				references = append(references, reference{"Stock Purchase Agreement", decision})
			}
			if strings.Contains(lowered, "safe") && strings.Contains(lowered, "approved") {
				references = append(references, reference{"SAFE", decision})
			}
		}
	}

	for _, ref := range references {
		present := false
		for _, doc := range docs {
			if strings.Contains(doc.Category, ref.docType) {
				present = true
				break
			}
		}
		if !present {
			decision := ref.decision
			if len(decision) > 80 {
				decision = decision[:80]
			}
			found = append(found, audit.Issue{
				Severity: audit.SeverityWarning,
				Category: "Missing Document",
				Description: fmt.Sprintf("Board minutes reference '%s...' but no %s document found.",
					decision, ref.docType),
			})
		}
	}
	return found
}

func flagLowConfidence(docs []audit.Document, found []audit.Issue) []audit.Issue {
	flag := func(payload map[string]any, filename string) []audit.Issue {
		if payload["low_confidence"] != true {
			return found
		}
		warning, _ := payload["confidence_warning"].(string)
		if warning == "" {
			warning = fmt.Sprintf("Low confidence for %s.", filename)
		}
		return append(found, audit.Issue{
			Severity:    audit.SeverityWarning,
			Category:    "Extraction Quality",
			Description: warning,
		})
	}

	for i := range docs {
		doc := &docs[i]
		filename := doc.Filename
		if filename == "" {
			filename = "unknown"
		}
		for _, value := range doc.Extraction {
			switch payload := value.(type) {
			case map[string]any:
				found = flag(payload, filename)
			case []map[string]any:
				for _, item := range payload {
					found = flag(item, filename)
				}
			}
		}
	}
	return found
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

func parseGroupedInt(value string) (int64, bool) {
	cleaned := strings.ReplaceAll(value, ",", "")
	if dot := strings.Index(cleaned, "."); dot >= 0 {
		cleaned = cleaned[:dot]
	}
	var parsed int64
	if _, err := fmt.Sscanf(cleaned, "%d", &parsed); err != nil {
		return 0, false
	}
	return parsed, true
}

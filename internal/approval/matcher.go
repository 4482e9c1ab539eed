package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"capaudit/internal/audit"
	"capaudit/internal/logging"
	"capaudit/internal/services/claude"
)

const matchingPrompt = `You are auditing equity transactions for board approval evidence.

TRANSACTIONS:
---
%s
---

APPROVAL DOCUMENTS (board minutes, written consents, charter documents):
---
%s
---

For each transaction, determine whether one of the approval documents
authorizes it (matching parties, share counts, dates, or explicit resolution
language).

For each transaction, provide:
- tx_index: The transaction's index from the input
- approval_doc_id: The doc_id of the authorizing document, or null if none
- approval_quote: Short verbatim quote evidencing the approval, or null
- compliance_status: "VERIFIED" (clear approval), "WARNING" (ambiguous), or "CRITICAL" (explicitly contradicted or clearly unauthorized)
- compliance_note: One sentence explaining the determination

Respond ONLY with valid JSON (array, one entry per transaction):
[{"tx_index": 0, "approval_doc_id": "...", "approval_quote": "...", "compliance_status": "...", "compliance_note": "..."}]`

const (
	excerptChars = 2000
	snippetChars = 500
)

// Matcher assigns compliance grades to equity events.
type Matcher struct {
	completer claude.Completer
	logger    *slog.Logger
}

// New constructs a Matcher.
func New(completer claude.Completer, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{completer: completer, logger: logging.NewComponentLogger(logger, "approval")}
}

type docManifestEntry struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Category string `json:"category"`
	Excerpt  string `json:"excerpt"`
}

type txManifestEntry struct {
	TxIndex     int     `json:"tx_index"`
	EventDate   string  `json:"event_date"`
	EventType   string  `json:"event_type"`
	Shareholder string  `json:"shareholder"`
	Shares      float64 `json:"shares"`
	Snippet     string  `json:"snippet"`
}

type matchResult struct {
	TxIndex          *int   `json:"tx_index"`
	ApprovalDocID    any    `json:"approval_doc_id"`
	ApprovalQuote    string `json:"approval_quote"`
	ComplianceStatus string `json:"compliance_status"`
	ComplianceNote   string `json:"compliance_note"`
}

// Match grades every event in place. Events requiring approval default to
// WARNING; when the document set holds no approval documents at all they
// escalate to CRITICAL without a model call. Model failures leave the
// conservative defaults standing with an explanatory note.
func (m *Matcher) Match(ctx context.Context, events []audit.EquityEvent, docs []audit.Document) {
	if len(events) == 0 {
		return
	}

	for i := range events {
		applyDefault(&events[i])
	}

	approvalDocs := filterApprovalDocs(docs)
	if len(approvalDocs) == 0 {
		m.logger.Warn("no approval documents found, escalating approval-required events")
		for i := range events {
			escalateMissingApprovals(&events[i])
		}
		return
	}

	if err := m.matchBatch(ctx, events, approvalDocs); err != nil {
		m.logger.Error("batch approval matching failed", logging.Error(err))
		for i := range events {
			events[i].ComplianceNote = "Approval matching failed: " + err.Error()
		}
	}
}

func applyDefault(event *audit.EquityEvent) {
	event.ApprovalDocID = ""
	event.ApprovalSnippet = ""
	switch {
	case event.EventType.RequiresApproval():
		event.Compliance = audit.ComplianceWarning
		event.ComplianceNote = "Approval evidence not matched automatically. Manual review required."
	case event.EventType == audit.EventFormation:
		event.Compliance = audit.ComplianceVerified
		event.ComplianceNote = "Formation evidence sourced from charter document."
	default:
		event.Compliance = audit.ComplianceWarning
		event.ComplianceNote = "Approval linkage not required but evidence should be reviewed."
	}
}

func escalateMissingApprovals(event *audit.EquityEvent) {
	switch {
	case event.EventType.RequiresApproval():
		event.Compliance = audit.ComplianceCritical
		event.ComplianceNote = "No board approval documents found in document set"
	case event.EventType == audit.EventFormation:
		event.Compliance = audit.ComplianceVerified
		event.ComplianceNote = "Formation evidence sourced from charter document"
	default:
		event.Compliance = audit.ComplianceWarning
		event.ComplianceNote = "No approval documents found to validate this financing event"
	}
}

func filterApprovalDocs(docs []audit.Document) []audit.Document {
	var filtered []audit.Document
	for _, doc := range docs {
		if audit.IsApprovalCategory(doc.Category) && doc.DocumentID != 0 {
			filtered = append(filtered, doc)
		}
	}
	return filtered
}

func (m *Matcher) matchBatch(ctx context.Context, events []audit.EquityEvent, approvalDocs []audit.Document) error {
	if m.completer == nil {
		return fmt.Errorf("no model client configured")
	}

	docManifest := make([]docManifestEntry, 0, len(approvalDocs))
	validIDs := make(map[string]bool, len(approvalDocs))
	for _, doc := range approvalDocs {
		id := strconv.FormatInt(doc.DocumentID, 10)
		validIDs[id] = true
		excerpt := doc.Text
		if len(excerpt) > excerptChars {
			excerpt = excerpt[:excerptChars]
		}
		docManifest = append(docManifest, docManifestEntry{
			DocID:    id,
			Filename: doc.Filename,
			Category: doc.Category,
			Excerpt:  excerpt,
		})
	}

	txManifest := make([]txManifestEntry, 0, len(events))
	for i, event := range events {
		snippet := event.SourceSnippet
		if len(snippet) > snippetChars {
			snippet = snippet[:snippetChars]
		}
		txManifest = append(txManifest, txManifestEntry{
			TxIndex:     i,
			EventDate:   event.EventDate,
			EventType:   string(event.EventType),
			Shareholder: event.ShareholderName,
			Shares:      event.ShareDelta,
			Snippet:     snippet,
		})
	}

	txJSON, err := json.MarshalIndent(txManifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transaction manifest: %w", err)
	}
	docJSON, err := json.MarshalIndent(docManifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document manifest: %w", err)
	}

	m.logger.Info("matching events against approval documents",
		logging.Int("events", len(events)),
		logging.Int("approval_docs", len(approvalDocs)))

	response, err := m.completer.Complete(ctx, fmt.Sprintf(matchingPrompt, txJSON, docJSON), 8000)
	if err != nil {
		return err
	}

	var matches []matchResult
	if err := claude.DecodeJSON(response, &matches); err != nil {
		return fmt.Errorf("decode approval matches: %w", err)
	}

	for _, match := range matches {
		if match.TxIndex == nil {
			continue
		}
		idx := *match.TxIndex
		if idx < 0 || idx >= len(events) {
			continue
		}
		event := &events[idx]

		returnedID := normalizeDocID(match.ApprovalDocID)
		if returnedID != "" && !validIDs[returnedID] {
			m.logger.Warn("model referenced non-approval document",
				logging.String("approval_doc_id", returnedID),
				logging.Int("tx_index", idx))
			event.Compliance = audit.ComplianceWarning
			event.ComplianceNote = strings.TrimSpace(
				match.ComplianceNote + " [Auto-corrected: AI returned non-approval document reference]")
			continue
		}

		event.ApprovalDocID = returnedID
		event.ApprovalSnippet = match.ApprovalQuote
		fallback := audit.ComplianceWarning
		if event.EventType == audit.EventFormation {
			fallback = audit.ComplianceVerified
		}
		event.Compliance = audit.NormalizeComplianceStatus(match.ComplianceStatus, fallback)
		event.ComplianceNote = match.ComplianceNote
	}

	m.logger.Info("batch approval matching complete", logging.Int("matches", len(matches)))
	return nil
}

// normalizeDocID tolerates the model returning the id as a number.
func normalizeDocID(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

package audit

import (
	"strings"
	"time"
)

// ParseStatus describes the outcome of byte-level document parsing.
type ParseStatus string

const (
	ParsePending ParseStatus = "pending"
	ParseSuccess ParseStatus = "success"
	ParsePartial ParseStatus = "partial"
	ParseError   ParseStatus = "error"
)

// State represents the coarse pipeline state of an audit job.
type State string

const (
	StateQueued      State = "queued"
	StateParsing     State = "parsing"
	StateClassifying State = "classifying"
	StateExtracting  State = "extracting"
	StateReconciling State = "reconciling"
	StateNeedsReview State = "needs_review"
	StateComplete    State = "complete"
	StateError       State = "error"
)

var allStates = []State{
	StateQueued,
	StateParsing,
	StateClassifying,
	StateExtracting,
	StateReconciling,
	StateNeedsReview,
	StateComplete,
	StateError,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// AllStates returns the ordered list of known pipeline states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a state ends the pipeline.
func (s State) IsTerminal() bool {
	switch s {
	case StateNeedsReview, StateComplete, StateError:
		return true
	default:
		return false
	}
}

// Document categories. The classifier only ever assigns values from this
// taxonomy; free-form model output outside it degrades to CategoryOther.
const (
	CategoryCharter          = "Charter Document"
	CategoryMinutes          = "Board/Shareholder Minutes"
	CategoryStockPurchase    = "Stock Purchase Agreement"
	CategorySAFE             = "SAFE"
	CategoryConvertibleNote  = "Convertible Note"
	CategoryOptionGrant      = "Option Grant Agreement"
	CategoryIncentivePlan    = "Equity Incentive Plan"
	CategoryStockCertificate = "Stock Certificate"
	Category83bElection      = "83(b) Election"
	CategoryRepurchase       = "Share Repurchase Agreement"
	CategoryFinancial        = "Financial Statement"
	CategoryEmployment       = "Employment Agreement"
	CategoryIndemnification  = "Indemnification Agreement"
	CategoryIPAgreement      = "IP/Proprietary Info Agreement"
	CategoryCorporateRecords = "Corporate Records"
	CategoryOther            = "Other"
)

// ApprovalCategories are the document categories that can authorize an
// equity transaction.
var ApprovalCategories = []string{CategoryMinutes, CategoryCharter}

// IsApprovalCategory reports whether a category can approve transactions.
func IsApprovalCategory(category string) bool {
	for _, c := range ApprovalCategories {
		if c == category {
			return true
		}
	}
	return false
}

// TextSpan is a positioned text fragment from the source document, used to
// locate extracted values for preview highlighting.
type TextSpan struct {
	Page int        `json:"page"`
	Text string     `json:"text"`
	BBox [4]float64 `json:"bbox"` // x0, y0, x1, y1 in page units
}

// Envelope is the versioned schema persisted as a document's extracted data.
type Envelope struct {
	SchemaVersion string         `json:"schema_version"`
	Category      string         `json:"category"`
	ParseStatus   ParseStatus    `json:"parse_status"`
	ParseError    string         `json:"parse_error,omitempty"`
	Extraction    map[string]any `json:"extraction"`
	Warnings      []string       `json:"warnings"`
}

// Document is one parsed input file flowing through the pipeline. Created at
// parse time, mutated by the classify and extract stages, immutable once
// persisted.
type Document struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	Type          string         `json:"type,omitempty"` // file extension
	Category      string         `json:"category"`
	Summary       string         `json:"summary,omitempty"`
	ParseStatus   ParseStatus    `json:"parse_status"`
	ParseError    string         `json:"parse_error,omitempty"`
	Text          string         `json:"text,omitempty"`
	PDFPath       string         `json:"pdf_path,omitempty"`
	TextSpans     []TextSpan     `json:"text_spans,omitempty"`
	PreviewImage  string         `json:"preview_image,omitempty"`
	PreviewFocusY *float64       `json:"preview_focus_y,omitempty"`
	Extraction    map[string]any `json:"-"` // type-keyed extraction payloads, enveloped at persist time
	ExtractedData *Envelope      `json:"extracted_data,omitempty"`
	DocumentID    int64          `json:"document_id,omitempty"` // store-assigned key
}

// ParseResult is the degraded-or-successful outcome of one isolated parse.
type ParseResult struct {
	Text        string      `json:"text"`
	ParseStatus ParseStatus `json:"parse_status"`
	ParseError  string      `json:"parse_error,omitempty"`
	TextSpans   []TextSpan  `json:"text_spans,omitempty"`
}

// EventType identifies the kind of equity transaction.
type EventType string

const (
	EventFormation       EventType = "formation"
	EventIssuance        EventType = "issuance"
	EventSAFE            EventType = "safe"
	EventConvertibleNote EventType = "convertible_note"
	EventOptionGrant     EventType = "option_grant"
	EventRepurchase      EventType = "repurchase"
)

// ComplianceStatus grades a transaction's approval evidence.
type ComplianceStatus string

const (
	ComplianceVerified ComplianceStatus = "VERIFIED"
	ComplianceWarning  ComplianceStatus = "WARNING"
	ComplianceCritical ComplianceStatus = "CRITICAL"
)

// RequiresApproval reports whether the event type needs a board approval
// linkage to be considered compliant.
func (t EventType) RequiresApproval() bool {
	switch t {
	case EventIssuance, EventRepurchase, EventOptionGrant:
		return true
	default:
		return false
	}
}

// EquityEvent is the uniform transaction record built from type-specific
// extractions. Never mutated after persistence.
type EquityEvent struct {
	EventDate       string           `json:"event_date"`
	EventType       EventType        `json:"event_type"`
	ShareholderName string           `json:"shareholder_name,omitempty"`
	ShareClass      string           `json:"share_class,omitempty"`
	ShareDelta      float64          `json:"share_delta"`
	SourceDocID     int64            `json:"source_doc_id,omitempty"`
	SourceSnippet   string           `json:"source_snippet,omitempty"`
	ApprovalDocID   string           `json:"approval_doc_id,omitempty"`
	ApprovalSnippet string           `json:"approval_snippet,omitempty"`
	Compliance      ComplianceStatus `json:"compliance_status"`
	ComplianceNote  string           `json:"compliance_note,omitempty"`
	Summary         string           `json:"summary,omitempty"`
	PreviewImage    string           `json:"preview_image,omitempty"`
	Details         map[string]any   `json:"details,omitempty"`
}

// CapTableEntry is one shareholder/class row of the synthesized cap table.
type CapTableEntry struct {
	Shareholder  string  `json:"shareholder"`
	ShareClass   string  `json:"share_class"`
	Shares       float64 `json:"shares"`
	OwnershipPct float64 `json:"ownership_pct"`
}

// TimelineEvent is one entry of the deterministic company timeline.
type TimelineEvent struct {
	Date        string   `json:"date"`
	EventType   string   `json:"event_type"`
	Description string   `json:"description"`
	SourceDocs  []string `json:"source_docs"`
}

// QualityReport aggregates pipeline signals into the review decision.
type QualityReport struct {
	SchemaVersion           string   `json:"schema_version"`
	DocumentCount           int      `json:"document_count"`
	ParsedSuccessfully      int      `json:"parsed_successfully"`
	ParseFailures           int      `json:"parse_failures"`
	ExtractionFailures      int      `json:"extraction_failures"`
	LowConfidenceCount      int      `json:"low_confidence_count"`
	MissingApprovals        int      `json:"missing_approvals"`
	CriticalComplianceCount int      `json:"critical_compliance_event_count"`
	CriticalIssueCount      int      `json:"critical_issue_count"`
	BlockingReasons         []string `json:"blocking_reasons"`
	Warnings                []string `json:"warnings"`
	ReviewRequired          bool     `json:"review_required"`
}

// Results is the cross-document synthesis persisted when a job finishes.
type Results struct {
	CompanyName     string          `json:"company_name"`
	Documents       []Document      `json:"documents"`
	Timeline        []TimelineEvent `json:"timeline"`
	CapTable        []CapTableEntry `json:"cap_table"`
	Issues          []Issue         `json:"issues"`
	FailedDocuments []Document      `json:"failed_documents"`
}

// Audit is the aggregate root owned by the orchestrator.
type Audit struct {
	ID             string         `json:"id"`
	CompanyName    string         `json:"company_name,omitempty"`
	State          State          `json:"state"`
	Progress       string         `json:"progress,omitempty"`
	Results        *Results       `json:"results,omitempty"`
	Issues         []Issue        `json:"issues,omitempty"`
	QualityReport  *QualityReport `json:"quality_report,omitempty"`
	ReviewRequired bool           `json:"review_required"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

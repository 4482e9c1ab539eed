package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"capaudit/internal/audit"
	"capaudit/internal/extractor/preview"
	"capaudit/internal/logging"
	"capaudit/internal/services/claude"
)

// Extraction payload keys, one per document category.
const (
	KeyCharter     = "charter_data"
	KeyStock       = "stock_issuances"
	KeySAFE        = "safe_data"
	KeyNote        = "convertible_note_data"
	KeyMinutes     = "minutes_data"
	KeyOption      = "option_data"
	KeyRepurchase  = "repurchase_data"
	KeyPreview     = "preview_image"
	KeyFocusY      = "preview_focus_y"
	KeySummary     = "summary"
)

// Extractor routes classified documents to type-specific prompts.
type Extractor struct {
	completer claude.Completer
	previews  *preview.Generator
	logger    *slog.Logger
}

// New constructs an Extractor. The preview generator may be nil to disable
// highlight overlays.
func New(completer claude.Completer, previews *preview.Generator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		completer: completer,
		previews:  previews,
		logger:    logging.NewComponentLogger(logger, "extractor"),
	}
}

type extractOptions struct {
	textLimit     int
	useParagraphs bool
	verify        bool
	maxTokens     int
}

// extract runs the shared pipeline: slice text, prompt, decode, sanitize,
// verify. Failures return a payload carrying an error key instead of an
// error so one bad document never aborts the batch.
func (e *Extractor) extract(ctx context.Context, doc *audit.Document, promptTemplate string, opts extractOptions) map[string]any {
	if opts.textLimit <= 0 {
		opts.textLimit = 15000
	}
	if opts.maxTokens <= 0 {
		opts.maxTokens = 1024
	}

	text := doc.Text
	if len(text) > opts.textLimit {
		text = text[:opts.textLimit]
	}
	if opts.useParagraphs {
		text = audit.FormatParagraphs(text)
	}

	result, err := e.completeObject(ctx, fmt.Sprintf(promptTemplate, text), opts.maxTokens)
	if err != nil {
		return map[string]any{"error": err.Error(), "source_doc": doc.Filename}
	}

	result = Sanitize(result)
	result["source_doc"] = doc.Filename

	if opts.verify {
		e.attachVerification(doc, result, opts.textLimit)
	}
	return result
}

func (e *Extractor) completeObject(ctx context.Context, prompt string, maxTokens int) (map[string]any, error) {
	if e.completer == nil {
		return nil, fmt.Errorf("no model client configured")
	}
	response, err := e.completer.Complete(ctx, prompt, maxTokens)
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := claude.DecodeJSON(response, &decoded); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}
	return decoded, nil
}

func (e *Extractor) attachVerification(doc *audit.Document, result map[string]any, textLimit int) {
	source := doc.Text
	if len(source) > textLimit {
		source = source[:textLimit]
	}
	verification := Verify(source, result)
	result["verification"] = verification
	if verification.ConfidenceScore < lowConfidenceFloor {
		e.logger.Warn("low extraction confidence",
			logging.String("filename", doc.Filename),
			logging.Int("confidence", verification.ConfidenceScore))
		result["low_confidence"] = true
		result["confidence_warning"] = fmt.Sprintf(
			"Low confidence (%d%%) for %s. Manual review recommended.",
			verification.ConfidenceScore, doc.Filename)
	}
}

// ExtractCharter pulls company identity and authorized share structure.
func (e *Extractor) ExtractCharter(ctx context.Context, doc *audit.Document) map[string]any {
	return e.extract(ctx, doc, charterPrompt, extractOptions{textLimit: 20000, verify: true})
}

// ExtractStock pulls every issuance from a stock purchase agreement. Each
// issuance is sanitized and verified individually.
func (e *Extractor) ExtractStock(ctx context.Context, doc *audit.Document) []map[string]any {
	text := doc.Text
	if len(text) > 20000 {
		text = text[:20000]
	}
	formatted := audit.FormatParagraphs(text)

	degrade := func(err error) []map[string]any {
		e.logger.Warn("stock extraction failed",
			logging.String("filename", doc.Filename),
			logging.Error(err))
		return []map[string]any{{"error": err.Error(), "source_doc": doc.Filename}}
	}

	if e.completer == nil {
		return degrade(fmt.Errorf("no model client configured"))
	}
	response, err := e.completer.Complete(ctx, fmt.Sprintf(stockPrompt, formatted), 2048)
	if err != nil {
		return degrade(err)
	}

	issuances, err := decodeObjectList(response)
	if err != nil {
		return degrade(err)
	}

	for _, issuance := range issuances {
		Sanitize(issuance)
		issuance["source_doc"] = doc.Filename
		e.attachVerification(doc, issuance, 20000)
	}
	return issuances
}

// decodeObjectList tolerates the model returning a single object where an
// array was requested.
func decodeObjectList(response string) ([]map[string]any, error) {
	var list []map[string]any
	if err := claude.DecodeJSON(response, &list); err == nil {
		return list, nil
	}
	var single map[string]any
	if err := claude.DecodeJSON(response, &single); err != nil {
		return nil, fmt.Errorf("decode extraction list: %w", err)
	}
	return []map[string]any{single}, nil
}

// ExtractSAFE pulls investor, amount, and conversion terms.
func (e *Extractor) ExtractSAFE(ctx context.Context, doc *audit.Document) map[string]any {
	return e.extract(ctx, doc, safePrompt, extractOptions{useParagraphs: true, verify: true})
}

// ExtractConvertibleNote pulls principal and conversion terms.
func (e *Extractor) ExtractConvertibleNote(ctx context.Context, doc *audit.Document) map[string]any {
	return e.extract(ctx, doc, convertibleNotePrompt, extractOptions{verify: true})
}

// ExtractMinutes pulls meeting metadata and key decisions. Minutes are not
// verified: decision summaries rarely appear verbatim in the source.
func (e *Extractor) ExtractMinutes(ctx context.Context, doc *audit.Document) map[string]any {
	return e.extract(ctx, doc, minutesPrompt, extractOptions{verify: false})
}

// ExtractOptionGrant pulls recipient, share count, and vesting terms.
func (e *Extractor) ExtractOptionGrant(ctx context.Context, doc *audit.Document) map[string]any {
	return e.extract(ctx, doc, optionGrantPrompt, extractOptions{useParagraphs: true, verify: true})
}

// ExtractRepurchase pulls the buyback terms. Shares come back negative so
// downstream aggregation subtracts them.
func (e *Extractor) ExtractRepurchase(ctx context.Context, doc *audit.Document) map[string]any {
	result := e.extract(ctx, doc, repurchasePrompt, extractOptions{useParagraphs: true, verify: true})
	if shares, ok := asFloat(result["shares"]); ok {
		if shares < 0 {
			shares = -shares
		}
		result["shares"] = -shares
	}
	return result
}

// ExtractCompanyName asks the model for the legal entity name given charter
// document texts.
func (e *Extractor) ExtractCompanyName(ctx context.Context, charterTexts string) (string, error) {
	if e.completer == nil {
		return "", fmt.Errorf("no model client configured")
	}
	response, err := e.completer.Complete(ctx, fmt.Sprintf(companyNamePrompt, charterTexts), 128)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(response)
	name = strings.Trim(name, `"`)
	return name, nil
}

// Extract routes a document to its type-specific extraction and stores the
// payload on the document under the category's payload key. Equity documents
// also get a preview overlay and a one-line event summary.
func (e *Extractor) Extract(ctx context.Context, doc *audit.Document) {
	if doc.Extraction == nil {
		doc.Extraction = map[string]any{}
	}
	category := doc.Category

	switch {
	case strings.Contains(category, "Charter"):
		doc.Extraction[KeyCharter] = e.ExtractCharter(ctx, doc)
	case strings.Contains(category, "Stock Purchase"):
		doc.Extraction[KeyStock] = e.ExtractStock(ctx, doc)
	case strings.Contains(category, "SAFE"):
		doc.Extraction[KeySAFE] = e.ExtractSAFE(ctx, doc)
	case strings.Contains(category, "Convertible Note"):
		doc.Extraction[KeyNote] = e.ExtractConvertibleNote(ctx, doc)
	case strings.Contains(category, "Minutes"):
		doc.Extraction[KeyMinutes] = e.ExtractMinutes(ctx, doc)
	case strings.Contains(category, "Option Grant"):
		doc.Extraction[KeyOption] = e.ExtractOptionGrant(ctx, doc)
	case strings.Contains(category, "Repurchase"):
		doc.Extraction[KeyRepurchase] = e.ExtractRepurchase(ctx, doc)
	default:
		return
	}

	if isEquityCategory(category) {
		e.attachPreview(doc)
	}
}

func isEquityCategory(category string) bool {
	for _, kw := range []string{"Stock Purchase", "Option Grant", "SAFE", "Repurchase"} {
		if strings.Contains(category, kw) {
			return true
		}
	}
	return false
}

// attachPreview generates the highlight overlay and event summary for the
// primary extraction payload of an equity document.
func (e *Extractor) attachPreview(doc *audit.Document) {
	extracted := primaryPayload(doc)
	if extracted == nil {
		return
	}
	if _, failed := extracted["error"]; failed {
		return
	}

	if e.previews != nil && len(doc.TextSpans) > 0 {
		if overlay, focusY := e.previews.Generate(extracted, doc.TextSpans); overlay != "" {
			doc.Extraction[KeyPreview] = overlay
			doc.PreviewImage = overlay
			if focusY != nil {
				doc.Extraction[KeyFocusY] = *focusY
				doc.PreviewFocusY = focusY
			}
		}
	}

	doc.Extraction[KeySummary] = EventSummary(extracted, eventTypeForCategory(doc.Category))
}

// primaryPayload picks the extraction payload the preview should highlight.
// For stock purchase agreements with multiple issuances, prefer the first one
// carrying substantive fields.
func primaryPayload(doc *audit.Document) map[string]any {
	if issuances, ok := doc.Extraction[KeyStock].([]map[string]any); ok {
		if len(issuances) == 0 {
			return nil
		}
		for _, issuance := range issuances {
			if issuance["shares"] != nil || issuance["price_per_share"] != nil || issuance["shareholder"] != nil {
				return issuance
			}
		}
		return issuances[0]
	}
	for _, key := range []string{KeySAFE, KeyNote, KeyOption, KeyRepurchase, KeyCharter, KeyMinutes} {
		if payload, ok := doc.Extraction[key].(map[string]any); ok {
			return payload
		}
	}
	return nil
}

func eventTypeForCategory(category string) string {
	switch {
	case strings.Contains(category, "Stock Purchase"):
		return "stock_issuance"
	case strings.Contains(category, "Option Grant"):
		return "option_grant"
	case strings.Contains(category, "SAFE"):
		return "safe"
	case strings.Contains(category, "Repurchase"):
		return "repurchase"
	default:
		return "unknown"
	}
}

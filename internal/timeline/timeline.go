package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"capaudit/internal/audit"
	"capaudit/internal/extractor"
	"capaudit/internal/logging"
	"capaudit/internal/services/claude"
)

const synthesisPrompt = `You are synthesizing a corporate event timeline from extracted data.

EXTRACTED DATA (from all documents):
---
%s
---

Create a chronological timeline of major corporate events. Include:
- Formation/incorporation
- Financing rounds (SAFE, stock issuances)
- Board/shareholder meetings
- Option grants
- Any other significant corporate actions

For each event, provide:
- date: YYYY-MM-DD format
- event_type: "formation", "financing", "stock_issuance", "board_action", "option_grant", or "other"
- description: Brief description (one sentence)
- source_docs: Array of source document filenames

Respond ONLY with valid JSON (array of events sorted by date):
[{"date": "...", "event_type": "...", "description": "...", "source_docs": []}]`

// minDeterministicEvents is the threshold below which the structured data is
// considered too sparse and the model fallback kicks in.
const minDeterministicEvents = 3

var grouper = message.NewPrinter(language.English)

// Synthesizer produces timelines and company names from extractions.
type Synthesizer struct {
	completer claude.Completer
	logger    *slog.Logger
}

// New constructs a Synthesizer.
func New(completer claude.Completer, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Synthesizer{completer: completer, logger: logging.NewComponentLogger(logger, "timeline")}
}

// BuildProgrammatic derives timeline events from structured extraction data
// alone. Payloads carrying an error marker or missing their anchoring date
// are skipped.
func BuildProgrammatic(docs []audit.Document) []audit.TimelineEvent {
	var events []audit.TimelineEvent

	for i := range docs {
		doc := &docs[i]
		filename := doc.Filename
		if filename == "" {
			filename = "unknown"
		}

		if charter, ok := cleanPayload(doc, extractor.KeyCharter); ok {
			if date := stringOf(charter["incorporation_date"]); date != "" {
				events = append(events, audit.TimelineEvent{
					Date:        date,
					EventType:   "formation",
					Description: "Company incorporated: " + stringOr(charter["company_name"], "Unknown Company"),
					SourceDocs:  []string{filename},
				})
			}
		}

		if issuances, ok := doc.Extraction[extractor.KeyStock].([]map[string]any); ok {
			for _, issuance := range issuances {
				date := stringOf(issuance["date"])
				shareholder := stringOf(issuance["shareholder"])
				shares, hasShares := asFloat(issuance["shares"])
				if date == "" || shareholder == "" || !hasShares {
					continue
				}
				events = append(events, audit.TimelineEvent{
					Date:      date,
					EventType: "stock_issuance",
					Description: grouper.Sprintf("%s received %.0f shares of %s",
						shareholder, shares, stringOr(issuance["share_class"], "stock")),
					SourceDocs: []string{filename},
				})
			}
		}

		if safe, ok := cleanPayload(doc, extractor.KeySAFE); ok {
			date := stringOf(safe["date"])
			investor := stringOf(safe["investor"])
			if date != "" && investor != "" {
				amount, _ := asFloat(safe["amount"])
				events = append(events, audit.TimelineEvent{
					Date:        date,
					EventType:   "financing",
					Description: grouper.Sprintf("SAFE investment by %s for $%.0f", investor, amount),
					SourceDocs:  []string{filename},
				})
			}
		}

		if note, ok := cleanPayload(doc, extractor.KeyNote); ok {
			date := stringOf(note["date"])
			investor := stringOf(note["investor"])
			if date != "" && investor != "" {
				principal, _ := asFloat(note["principal"])
				rate, _ := asFloat(note["interest_rate"])
				events = append(events, audit.TimelineEvent{
					Date:      date,
					EventType: "financing",
					Description: grouper.Sprintf("Convertible note from %s for $%.0f at %v%% interest (maturity: %s)",
						investor, principal, rate, stringOr(note["maturity_date"], "unspecified")),
					SourceDocs: []string{filename},
				})
			}
		}

		if minutes, ok := cleanPayload(doc, extractor.KeyMinutes); ok {
			if date := stringOf(minutes["meeting_date"]); date != "" {
				events = append(events, audit.TimelineEvent{
					Date:      date,
					EventType: "board_action",
					Description: fmt.Sprintf("%s: %s",
						stringOr(minutes["meeting_type"], "Meeting"), decisionSummary(minutes)),
					SourceDocs: []string{filename},
				})
			}
		}

		if option, ok := cleanPayload(doc, extractor.KeyOption); ok {
			date := stringOf(option["grant_date"])
			recipient := stringOf(option["recipient"])
			if date != "" && recipient != "" {
				shares, _ := asFloat(option["shares"])
				events = append(events, audit.TimelineEvent{
					Date:        date,
					EventType:   "option_grant",
					Description: grouper.Sprintf("Option grant to %s for %.0f shares", recipient, shares),
					SourceDocs:  []string{filename},
				})
			}
		}

		if repurchase, ok := cleanPayload(doc, extractor.KeyRepurchase); ok {
			date := stringOf(repurchase["date"])
			shareholder := stringOf(repurchase["shareholder"])
			if date != "" && shareholder != "" {
				shares, _ := asFloat(repurchase["shares"])
				if shares < 0 {
					shares = -shares
				}
				description := "Share repurchase transaction with " + shareholder
				if shares > 0 {
					description = grouper.Sprintf("Company repurchased %.0f shares from %s", shares, shareholder)
				}
				events = append(events, audit.TimelineEvent{
					Date:        date,
					EventType:   "repurchase",
					Description: description,
					SourceDocs:  []string{filename},
				})
			}
		}
	}

	sortByDate(events)
	return events
}

// Synthesize builds the timeline, asking the model only when the structured
// data yields too few events.
func (s *Synthesizer) Synthesize(ctx context.Context, docs []audit.Document) []audit.TimelineEvent {
	programmatic := BuildProgrammatic(docs)
	if len(programmatic) >= minDeterministicEvents {
		return programmatic
	}

	enhanced, err := s.synthesizeWithModel(ctx, docs)
	if err != nil {
		s.logger.Warn("timeline enhancement failed, using programmatic result", logging.Error(err))
		return programmatic
	}
	s.logger.Info("using model-enhanced timeline", logging.Int("events", len(enhanced)))
	return enhanced
}

func (s *Synthesizer) synthesizeWithModel(ctx context.Context, docs []audit.Document) ([]audit.TimelineEvent, error) {
	if s.completer == nil {
		return nil, fmt.Errorf("no model client configured")
	}

	manifest := make([]map[string]any, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		entry := map[string]any{"filename": doc.Filename, "category": doc.Category}
		for key, value := range doc.Extraction {
			entry[key] = value
		}
		manifest = append(manifest, entry)
	}

	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode extractions: %w", err)
	}

	response, err := s.completer.Complete(ctx, fmt.Sprintf(synthesisPrompt, encoded), 4096)
	if err != nil {
		return nil, err
	}

	var events []audit.TimelineEvent
	if err := claude.DecodeJSON(response, &events); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	sortByDate(events)
	return events, nil
}

// CompanyName resolves the company's legal name, preferring structured
// charter data and falling back to a model pass over raw charter text. The
// answer is never an error: unresolvable names come back as
// "Unknown Company".
func (s *Synthesizer) CompanyName(ctx context.Context, docs []audit.Document, ex *extractor.Extractor) string {
	var charterTexts []string
	for i := range docs {
		doc := &docs[i]
		charter, hasCharter := doc.Extraction[extractor.KeyCharter].(map[string]any)
		if !hasCharter {
			continue
		}
		if name := stringOf(charter["company_name"]); name != "" {
			return name
		}
		if doc.Text != "" {
			text := doc.Text
			if len(text) > 5000 {
				text = text[:5000]
			}
			charterTexts = append(charterTexts, text)
		}
	}

	if len(charterTexts) == 0 || ex == nil {
		return "Unknown Company"
	}

	name, err := ex.ExtractCompanyName(ctx, strings.Join(charterTexts, "\n\n---\n\n"))
	if err != nil || name == "" {
		if err != nil {
			s.logger.Warn("company name extraction failed", logging.Error(err))
		}
		return "Unknown Company"
	}
	return name
}

func decisionSummary(minutes map[string]any) string {
	decisions, _ := minutes["key_decisions"].([]any)
	var parts []string
	for _, decision := range decisions {
		if text := stringOf(decision); text != "" {
			parts = append(parts, text)
		}
		if len(parts) == 2 {
			break
		}
	}
	if len(parts) == 0 {
		return "corporate actions discussed"
	}
	return strings.Join(parts, "; ")
}

func sortByDate(events []audit.TimelineEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date < events[j].Date })
}

func cleanPayload(doc *audit.Document, key string) (map[string]any, bool) {
	data, ok := doc.Extraction[key].(map[string]any)
	if !ok || data == nil {
		return nil, false
	}
	if _, failed := data["error"]; failed {
		return nil, false
	}
	return data, true
}

func stringOf(value any) string {
	s, _ := value.(string)
	return s
}

func stringOr(value any, fallback string) string {
	if s, ok := value.(string); ok && s != "" {
		return s
	}
	return fallback
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

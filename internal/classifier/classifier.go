package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"capaudit/internal/audit"
	"capaudit/internal/logging"
	"capaudit/internal/services/claude"
)

// modelSampleChars bounds the excerpt sent to the model.
const modelSampleChars = 10000

type keywordPattern struct {
	pattern  *regexp.Regexp
	category string
	summary  string
}

// keywordPatterns is the high-confidence cascade. Order matters: the most
// specific patterns come first so "amended and restated certificate of
// incorporation" wins over plain "certificate of incorporation".
var keywordPatterns = []keywordPattern{
	{regexp.MustCompile(`(?i)83\s*\(\s*b\s*\)`), audit.Category83bElection, "83(b) election form"},
	{regexp.MustCompile(`(?i)simple\s+agreement\s+for\s+future\s+equity|(?:^|\s)SAFE(?:\s|$)`), audit.CategorySAFE, "SAFE investment agreement"},
	{regexp.MustCompile(`(?i)stock\s+certificate|certificate\s+(no\.?|number)\s*\d+`), audit.CategoryStockCertificate, "Stock certificate"},
	{regexp.MustCompile(`(?i)amended\s+and\s+restated\s+certificate\s+of\s+incorporation`), audit.CategoryCharter, "Amended and Restated Certificate of Incorporation"},
	{regexp.MustCompile(`(?i)certificate\s+of\s+(incorporation|formation)`), audit.CategoryCharter, "Certificate of Incorporation"},
	{regexp.MustCompile(`(?i)articles\s+of\s+incorporation`), audit.CategoryCharter, "Articles of Incorporation"},
	{regexp.MustCompile(`(?i)articles\s+of\s+organization`), audit.CategoryCharter, "Articles of Organization (LLC)"},
	{regexp.MustCompile(`(?i)articles\s+of\s+association`), audit.CategoryCharter, "Articles of Association"},
	{regexp.MustCompile(`(?i)amended\s+and\s+restated\s+bylaws`), audit.CategoryCharter, "Amended and Restated Bylaws"},
	{regexp.MustCompile(`(?i)bylaws`), audit.CategoryCharter, "Corporate bylaws"},
	{regexp.MustCompile(`(?i)operating\s+agreement`), audit.CategoryCharter, "LLC Operating Agreement"},
	{regexp.MustCompile(`(?i)stock\s+purchase\s+agreement|restricted\s+stock\s+purchase`), audit.CategoryStockPurchase, "Stock purchase agreement"},
	{regexp.MustCompile(`(?i)subscription\s+agreement`), audit.CategoryStockPurchase, "Subscription agreement"},
	{regexp.MustCompile(`(?i)(share|stock)\s+repurchase\s+agreement`), audit.CategoryRepurchase, "Share repurchase agreement"},
	{regexp.MustCompile(`(?i)consent\s+of\s+(board|directors|stockholders)|written\s+consent`), audit.CategoryMinutes, "Written consent document"},
	{regexp.MustCompile(`(?i)minutes\s+of.*meeting|meeting\s+of\s+the\s+(board|directors)`), audit.CategoryMinutes, "Board/shareholder meeting minutes"},
	{regexp.MustCompile(`(?i)investor\s+rights\s+agreement`), audit.CategoryMinutes, "Investor rights agreement"},
	{regexp.MustCompile(`(?i)(?:voting|stockholder|shareholder)s?\s+agreement`), audit.CategoryMinutes, "Voting/shareholder agreement"},
	{regexp.MustCompile(`(?i)option\s+grant\s+(agreement|notice)|stock\s+option\s+agreement`), audit.CategoryOptionGrant, "Stock option grant agreement"},
	{regexp.MustCompile(`(?i)equity\s+incentive\s+plan|\d+\s+stock\s+plan`), audit.CategoryIncentivePlan, "Equity incentive plan document"},
	{regexp.MustCompile(`(?i)warrant\s+(agreement|certificate)`), audit.CategoryStockPurchase, "Warrant agreement"},
	{regexp.MustCompile(`(?i)convertible\s+note|promissory\s+note`), audit.CategoryConvertibleNote, "Convertible promissory note"},
	{regexp.MustCompile(`(?i)series\s+seed\s+preferred\s+stock`), audit.CategoryStockPurchase, "Series Seed financing agreement"},
	{regexp.MustCompile(`(?i)form\s+d|sec\s+form\s+d|notice\s+of\s+exempt`), audit.CategoryCorporateRecords, "SEC Form D filing"},
	{regexp.MustCompile(`(?i)indemnification\s+agreement`), audit.CategoryIndemnification, "Director/officer indemnification agreement"},
	{regexp.MustCompile(`(?i)proprietary\s+information.*agreement|PIIA`), audit.CategoryIPAgreement, "Proprietary information and inventions agreement"},
	{regexp.MustCompile(`(?i)employment\s+agreement|offer\s+letter`), audit.CategoryEmployment, "Employment agreement"},
	{regexp.MustCompile(`(?i)cap(?:italization)?\s+table|cap\s+table\s+summary|ownership\s+summary`), audit.CategoryFinancial, "Capitalization table"},
}

const classificationPrompt = `You are an expert paralegal AI specializing in corporate governance for startups.

Your task is to analyze the following document excerpt and classify it into ONE category.

DOCUMENT EXCERPT:
---
%s
---

CATEGORIES:
- Charter Document (Certificate of Incorporation, Articles of Incorporation, Bylaws)
- Board/Shareholder Minutes (Meeting Minutes, Written Consent, Board Resolutions)
- Stock Purchase Agreement (Stock issuance agreements, subscription agreements)
- SAFE (Simple Agreement for Future Equity)
- Convertible Note (Convertible debt instruments)
- Option Grant Agreement (Stock option grants, RSU agreements)
- Equity Incentive Plan (Stock option plans, equity compensation plans)
- Financial Statement (Balance sheets, income statements, cap tables)
- Employment Agreement (Employment contracts, offer letters)
- Other (anything that doesn't fit above)

INSTRUCTIONS:
1. Classify the document into ONE category from the list above
2. Provide a one-sentence summary of the document's purpose
3. Respond ONLY with valid JSON in this exact format:

{"doc_type": "Category Name", "summary": "One sentence summary"}

Do not include any markdown formatting, code blocks, or explanatory text. Only return the JSON object.`

// Classifier categorizes documents by keyword cascade with a model fallback.
type Classifier struct {
	completer   claude.Completer
	sampleChars int
	logger      *slog.Logger
}

// New constructs a Classifier. sampleChars bounds the text slice scanned by
// the keyword cascade.
func New(completer claude.Completer, sampleChars int, logger *slog.Logger) *Classifier {
	if sampleChars <= 0 {
		sampleChars = 3000
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Classifier{
		completer:   completer,
		sampleChars: sampleChars,
		logger:      logging.NewComponentLogger(logger, "classifier"),
	}
}

// ClassifyByKeywords scans the leading slice of the text against the pattern
// cascade. Returns empty category when nothing matches.
func (c *Classifier) ClassifyByKeywords(text string) (category, summary string) {
	sample := text
	if len(sample) > c.sampleChars {
		sample = sample[:c.sampleChars]
	}
	for _, kp := range keywordPatterns {
		if kp.pattern.MatchString(sample) {
			return kp.category, kp.summary
		}
	}
	return "", ""
}

// Classify assigns a category and summary to the document in place. Parse
// failures and model errors never propagate: the document degrades to Other.
func (c *Classifier) Classify(ctx context.Context, doc *audit.Document) {
	if doc.ParseStatus == audit.ParseError || strings.TrimSpace(doc.Text) == "" {
		doc.Category = audit.CategoryOther
		doc.Summary = "Failed to parse document"
		return
	}

	if category, summary := c.ClassifyByKeywords(doc.Text); category != "" {
		doc.Category = category
		doc.Summary = summary
		c.logger.Info("classified by keywords",
			logging.String("filename", doc.Filename),
			logging.String("category", category))
		return
	}

	category, summary, err := c.classifyByModel(ctx, doc.Text)
	if err != nil {
		doc.Category = audit.CategoryOther
		doc.Summary = "Classification failed: " + err.Error()
		c.logger.Warn("model classification failed",
			logging.String("filename", doc.Filename),
			logging.Error(err))
		return
	}
	doc.Category = category
	doc.Summary = summary
	c.logger.Info("classified by model",
		logging.String("filename", doc.Filename),
		logging.String("category", category))
}

func (c *Classifier) classifyByModel(ctx context.Context, text string) (string, string, error) {
	if c.completer == nil {
		return "", "", fmt.Errorf("no model client configured")
	}
	sample := text
	if len(sample) > modelSampleChars {
		sample = sample[:modelSampleChars]
	}
	response, err := c.completer.Complete(ctx, fmt.Sprintf(classificationPrompt, sample), 512)
	if err != nil {
		return "", "", err
	}

	var decoded struct {
		DocType string `json:"doc_type"`
		Summary string `json:"summary"`
	}
	if err := claude.DecodeJSON(response, &decoded); err != nil {
		return "", "", fmt.Errorf("decode classification: %w", err)
	}
	category := strings.TrimSpace(decoded.DocType)
	if category == "" {
		category = audit.CategoryOther
	}
	summary := strings.TrimSpace(decoded.Summary)
	if summary == "" {
		summary = "No summary available"
	}
	return category, summary, nil
}

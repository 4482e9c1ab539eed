package captable

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"capaudit/internal/audit"
	"capaudit/internal/extractor"
)

// Holding is one shareholder/class position fed into aggregation.
type Holding struct {
	Shareholder string
	ShareClass  string
	Shares      *decimal.Decimal // nil when the document names no count
}

var oneHundred = decimal.NewFromInt(100)

// BuildRaw aggregates holdings into cap table entries with ownership
// percentages. Zero and negative net positions are excluded from the table
// and reported as issues: zero means a full repurchase, negative means more
// shares bought back than issued.
func BuildRaw(holdings []Holding) ([]audit.CapTableEntry, []audit.Issue) {
	type key struct {
		name  string
		class string
	}

	aggregated := map[key]decimal.Decimal{}
	displayNames := map[string]string{}
	var order []key

	for _, holding := range holdings {
		rawName := holding.Shareholder
		if rawName == "" {
			rawName = "Unknown"
		}
		normName := audit.NormalizeShareholderName(rawName)
		if _, seen := displayNames[normName]; !seen {
			displayNames[normName] = rawName
		}
		shareClass := audit.NormalizeShareClass(holding.ShareClass)

		k := key{name: normName, class: shareClass}
		if _, seen := aggregated[k]; !seen {
			aggregated[k] = decimal.Zero
			order = append(order, k)
		}
		if holding.Shares != nil {
			aggregated[k] = aggregated[k].Add(*holding.Shares)
		}
	}

	var issues []audit.Issue
	var positive []key
	total := decimal.Zero
	for _, k := range order {
		shares := aggregated[k]
		name := displayNames[k.name]
		switch {
		case shares.IsZero():
			issues = append(issues, audit.Issue{
				Severity:    audit.SeverityInfo,
				Category:    "Cap Table",
				Description: fmt.Sprintf("%s has 0 net shares (%s) after repurchase.", name, k.class),
			})
		case shares.IsNegative():
			issues = append(issues, audit.Issue{
				Severity: audit.SeverityCritical,
				Category: "Data Integrity",
				Description: fmt.Sprintf("%s has %s net shares (%s). More repurchased than issued - possible missing document.",
					name, shares.String(), k.class),
			})
		default:
			positive = append(positive, k)
			total = total.Add(shares)
		}
	}

	entries := make([]audit.CapTableEntry, 0, len(positive))
	for _, k := range positive {
		shares := aggregated[k]
		pct := decimal.Zero
		if total.IsPositive() {
			pct = shares.Div(total).Mul(oneHundred).Round(2)
		}
		sharesFloat, _ := shares.Float64()
		pctFloat, _ := pct.Float64()
		entries = append(entries, audit.CapTableEntry{
			Shareholder:  displayNames[k.name],
			ShareClass:   k.class,
			Shares:       sharesFloat,
			OwnershipPct: pctFloat,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].OwnershipPct != entries[j].OwnershipPct {
			return entries[i].OwnershipPct > entries[j].OwnershipPct
		}
		if entries[i].Shareholder != entries[j].Shareholder {
			return entries[i].Shareholder < entries[j].Shareholder
		}
		return entries[i].ShareClass < entries[j].ShareClass
	})

	// The largest holder absorbs the rounding residual so the column sums
	// to exactly 100.00.
	if len(entries) > 0 {
		sum := decimal.Zero
		for _, entry := range entries {
			sum = sum.Add(decimal.NewFromFloat(entry.OwnershipPct))
		}
		if !sum.Equal(oneHundred) {
			adjustment := oneHundred.Sub(sum)
			adjusted := decimal.NewFromFloat(entries[0].OwnershipPct).Add(adjustment).Round(2)
			entries[0].OwnershipPct, _ = adjusted.Float64()
		}
	}

	return entries, issues
}

// Synthesize collects equity data from document extraction payloads and
// builds the cap table. Repurchases with no extracted share count infer it
// from the shareholder's prior issuances, modeling a full buyback.
func Synthesize(docs []audit.Document) ([]audit.CapTableEntry, []audit.Issue) {
	var holdings []Holding

	for i := range docs {
		doc := &docs[i]

		if issuances, ok := doc.Extraction[extractor.KeyStock].([]map[string]any); ok {
			for _, issuance := range issuances {
				if _, failed := issuance["error"]; failed {
					continue
				}
				holdings = append(holdings, Holding{
					Shareholder: stringOf(firstOf(issuance, "shareholder", "investor", "recipient")),
					ShareClass:  stringOf(issuance["share_class"]),
					Shares:      decimalOf(issuance["shares"]),
				})
			}
		}

		if safe, ok := cleanPayload(doc, extractor.KeySAFE); ok {
			holdings = append(holdings, Holding{
				Shareholder: stringOf(safe["investor"]),
				ShareClass:  "SAFE",
			})
		}

		if note, ok := cleanPayload(doc, extractor.KeyNote); ok {
			holdings = append(holdings, Holding{
				Shareholder: stringOf(note["investor"]),
				ShareClass:  "Convertible Note",
			})
		}

		if repurchase, ok := cleanPayload(doc, extractor.KeyRepurchase); ok {
			shareholder := stringOf(repurchase["shareholder"])
			shares := decimalOf(repurchase["shares"])

			if shares == nil && shareholder != "" {
				shares = inferredShares(holdings, shareholder)
			}
			if shares != nil && !shares.IsZero() {
				negated := shares.Abs().Neg()
				holdings = append(holdings, Holding{
					Shareholder: shareholder,
					ShareClass:  stringOr(repurchase["share_class"], "Common Stock"),
					Shares:      &negated,
				})
			}
		}
	}

	if len(holdings) == 0 {
		return nil, nil
	}
	return BuildRaw(holdings)
}

// inferredShares sums the shareholder's positive prior positions.
func inferredShares(holdings []Holding, shareholder string) *decimal.Decimal {
	norm := audit.NormalizeShareholderName(shareholder)
	sum := decimal.Zero
	found := false
	for _, holding := range holdings {
		if audit.NormalizeShareholderName(holding.Shareholder) != norm {
			continue
		}
		if holding.Shares != nil && holding.Shares.IsPositive() {
			sum = sum.Add(*holding.Shares)
			found = true
		}
	}
	if !found {
		return nil
	}
	return &sum
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

func firstOf(data map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := data[key]; ok && value != nil {
			return value
		}
	}
	return nil
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

func decimalOf(value any) *decimal.Decimal {
	switch v := value.(type) {
	case float64:
		d := decimal.NewFromFloat(v)
		return &d
	case int:
		d := decimal.NewFromInt(int64(v))
		return &d
	case int64:
		d := decimal.NewFromInt(v)
		return &d
	default:
		return nil
	}
}

package extractor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dateFields = map[string]bool{
	"date":               true,
	"incorporation_date": true,
	"grant_date":         true,
	"meeting_date":       true,
	"maturity_date":      true,
	"issuance_date":      true,
	"repurchase_date":    true,
}

var numericFields = map[string]bool{
	"shares":             true,
	"shares_issued":      true,
	"shares_granted":     true,
	"shares_repurchased": true,
	"price_per_share":    true,
	"strike_price":       true,
	"amount":             true,
	"investment_amount":  true,
	"principal":          true,
	"authorized_shares":  true,
	"valuation_cap":      true,
	"discount_rate":      true,
	"interest_rate":      true,
	"total_amount":       true,
}

var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

// Sanitize validates and coerces extracted field types after model parsing.
// Dates are normalized to ISO form, numeric fields stripped of currency
// punctuation. Invalid values are nulled out and reported as warnings under
// the _validation_warnings key.
func Sanitize(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	var warnings []string

	for field := range dateFields {
		raw, ok := data[field]
		if !ok || raw == nil {
			continue
		}
		value := strings.TrimSpace(fmt.Sprintf("%v", raw))
		if iso, ok := normalizeDate(value); ok {
			data[field] = iso
		} else {
			warnings = append(warnings, fmt.Sprintf("Invalid date '%s' for '%s' - removed", value, field))
			data[field] = nil
		}
	}

	for field := range numericFields {
		raw, ok := data[field]
		if !ok || raw == nil {
			continue
		}
		switch value := raw.(type) {
		case int, int64, float64:
			continue
		case string:
			cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(value)
			cleaned = strings.TrimSpace(cleaned)
			if parsed, err := parseNumber(cleaned); err == nil {
				data[field] = parsed
			} else {
				warnings = append(warnings, fmt.Sprintf("Non-numeric '%s' for '%s' - removed", value, field))
				data[field] = nil
			}
		default:
			warnings = append(warnings, fmt.Sprintf("Unexpected type %T for '%s' - removed", raw, field))
			data[field] = nil
		}
	}

	if len(warnings) > 0 {
		data["_validation_warnings"] = warnings
	}
	return data
}

func normalizeDate(value string) (string, bool) {
	for _, layout := range dateFormats {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("2006-01-02"), true
		}
	}
	return "", false
}

func parseNumber(value string) (any, error) {
	if value == "" {
		return nil, strconv.ErrSyntax
	}
	if !strings.Contains(value, ".") {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return float64(n), nil
		}
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}

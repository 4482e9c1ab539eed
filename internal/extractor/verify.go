package extractor

import (
	"fmt"
	"strings"
	"time"
)

// lowConfidenceFloor is the verification score below which an extraction is
// flagged for manual review.
const lowConfidenceFloor = 70

// Verification is the cross-check result attached to every verified
// extraction under the verification key.
type Verification struct {
	ConfidenceScore int      `json:"confidence_score"`
	VerifiedFields  int      `json:"verified_fields"`
	TotalChecks     int      `json:"total_checks"`
	Warnings        []string `json:"warnings,omitempty"`
}

var verifyNumericFields = []string{"shares", "amount", "principal", "authorized_shares", "valuation_cap"}
var verifyTextFields = []string{"shareholder", "investor", "recipient", "company_name"}
var verifyDateFields = []string{"date", "incorporation_date", "grant_date", "meeting_date", "maturity_date"}

// Verify cross-checks extracted values against the source text. Each field
// present in the extraction counts as one check; fields that are null or not
// found in the source lower the confidence score.
func Verify(sourceText string, data map[string]any) Verification {
	var warnings []string
	verified := 0
	totalChecks := 0

	normalized := strings.Join(strings.Fields(strings.ToLower(sourceText)), " ")
	denormalized := strings.ReplaceAll(normalized, ",", "")

	for _, field := range verifyNumericFields {
		raw, ok := data[field]
		if !ok {
			continue
		}
		totalChecks++
		value, isNumber := asFloat(raw)
		if !isNumber || value == 0 {
			warnings = append(warnings, fmt.Sprintf("Field '%s' present but empty/null", field))
			continue
		}
		candidates := []string{
			fmt.Sprintf("%d", int64(value)),
			groupDigits(int64(value)),
			fmt.Sprintf("%.2f", value),
		}
		found := false
		for _, candidate := range candidates {
			if strings.Contains(denormalized, strings.ReplaceAll(candidate, ",", "")) {
				found = true
				break
			}
		}
		if found {
			verified++
		} else {
			warnings = append(warnings, fmt.Sprintf("%s=%v not found in source text", field, raw))
		}
	}

	for _, field := range verifyTextFields {
		raw, ok := data[field]
		if !ok {
			continue
		}
		totalChecks++
		value := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", raw)))
		if raw == nil || value == "" {
			warnings = append(warnings, fmt.Sprintf("Field '%s' present but empty/null", field))
			continue
		}
		if strings.Contains(normalized, value) {
			verified++
			continue
		}
		parts := strings.Fields(value)
		allFound := len(parts) > 1
		for _, part := range parts {
			if !strings.Contains(normalized, part) {
				allFound = false
				break
			}
		}
		if allFound {
			verified++
		} else {
			warnings = append(warnings, fmt.Sprintf("%s='%v' not found in source text", field, raw))
		}
	}

	for _, field := range verifyDateFields {
		raw, ok := data[field]
		if !ok {
			continue
		}
		totalChecks++
		value, _ := raw.(string)
		if raw == nil || strings.TrimSpace(value) == "" {
			warnings = append(warnings, fmt.Sprintf("Field '%s' present but empty/null", field))
			continue
		}
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Field '%s' has unparseable date: %s", field, value))
			continue
		}
		yearFound := strings.Contains(normalized, fmt.Sprintf("%d", parsed.Year()))
		monthFound := strings.Contains(normalized, strings.ToLower(parsed.Month().String())) ||
			strings.Contains(normalized, fmt.Sprintf("%d", int(parsed.Month())))
		dayFound := strings.Contains(normalized, fmt.Sprintf("%d", parsed.Day()))
		if yearFound && (monthFound || dayFound) {
			verified++
		} else {
			warnings = append(warnings, fmt.Sprintf("%s=%s not clearly found in source text", field, value))
		}
	}

	confidence := 0
	if totalChecks > 0 {
		confidence = verified * 100 / totalChecks
	}
	return Verification{
		ConfidenceScore: confidence,
		VerifiedFields:  verified,
		TotalChecks:     totalChecks,
		Warnings:        warnings,
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

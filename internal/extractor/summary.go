package extractor

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var digitGrouper = message.NewPrinter(language.English)

func groupDigits(n int64) string {
	return digitGrouper.Sprintf("%d", n)
}

// EventSummary renders a one-line human description of an equity event from
// its extraction payload.
func EventSummary(extracted map[string]any, eventType string) string {
	shareholder := firstString(extracted, "shareholder", "recipient", "investor")
	if shareholder == "" {
		shareholder = "Unknown party"
	}
	shares, hasShares := asFloat(firstValue(extracted, "shares", "shares_issued"))
	shareClass := firstString(extracted, "share_type", "share_class")
	if shareClass == "" {
		shareClass = "Common"
	}
	price, hasPrice := asFloat(extracted["price_per_share"])
	date := firstString(extracted, "date", "issuance_date", "grant_date")
	if date == "" {
		date = "Unknown date"
	}

	displayShares := shares
	if eventType == "repurchase" && displayShares < 0 {
		displayShares = -displayShares
	}
	sharesStr := "unspecified"
	if hasShares && displayShares != 0 {
		sharesStr = groupDigits(int64(displayShares))
	}
	priceStr := "unspecified price"
	if hasPrice && price != 0 {
		priceStr = fmt.Sprintf("$%.4f", price)
	}

	switch eventType {
	case "stock_issuance":
		return fmt.Sprintf("%s received %s %s shares at %s per share on %s", shareholder, sharesStr, shareClass, priceStr, date)
	case "option_grant":
		return fmt.Sprintf("%s granted %s %s options at %s strike price on %s", shareholder, sharesStr, shareClass, priceStr, date)
	case "safe":
		amountStr := "unspecified amount"
		if amount, ok := asFloat(firstValue(extracted, "amount", "investment_amount")); ok && amount != 0 {
			amountStr = "$" + groupDigits(int64(amount))
		}
		return fmt.Sprintf("%s invested %s via SAFE on %s", shareholder, amountStr, date)
	case "repurchase":
		return fmt.Sprintf("Company repurchased %s %s shares from %s on %s", sharesStr, shareClass, shareholder, date)
	default:
		return fmt.Sprintf("%s - %s shares on %s", shareholder, sharesStr, date)
	}
}

func firstString(extracted map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := extracted[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func firstValue(extracted map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := extracted[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

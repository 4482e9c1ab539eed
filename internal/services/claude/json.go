package claude

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var trailingCommaPattern = regexp.MustCompile(`,(\s*[\]}])`)

// DecodeJSON decodes JSON from a model response, tolerating the common
// formatting quirks: markdown code fences, prose around the payload, and
// trailing commas. Attempts, in order: direct parse, fence strip, outermost
// balanced bracket extraction, trailing-comma repair.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	stripped := stripCodeFenceBlock(trimmed)
	if stripped != trimmed {
		if err := json.Unmarshal([]byte(stripped), target); err == nil {
			return nil
		}
	}

	for _, extracted := range extractOutermostJSON(stripped) {
		if err := json.Unmarshal([]byte(extracted), target); err == nil {
			return nil
		}
	}

	repaired := trailingCommaPattern.ReplaceAllString(stripped, "$1")
	if repaired != stripped {
		if err := json.Unmarshal([]byte(repaired), target); err == nil {
			return nil
		}
		for _, extracted := range extractOutermostJSON(repaired) {
			if err := json.Unmarshal([]byte(extracted), target); err == nil {
				return nil
			}
		}
	}

	return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizeSnippet(trimmed))
}

// extractOutermostJSON finds the outermost JSON object and array by bracket
// counting, skipping bracket characters inside string literals. Both candidates
// are returned when present; the target type decides which one decodes.
func extractOutermostJSON(text string) []string {
	var candidates []string
	for _, pair := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		start := strings.IndexByte(text, pair[0])
		if start < 0 {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' && inString {
				escaped = true
				continue
			}
			if c == '"' {
				inString = !inString
				continue
			}
			if inString {
				continue
			}
			switch c {
			case pair[0]:
				depth++
			case pair[1]:
				depth--
				if depth == 0 {
					candidate := text[start : i+1]
					if json.Valid([]byte(candidate)) {
						candidates = append(candidates, candidate)
					}
					i = len(text) // abandon this bracket type
				}
			}
		}
	}
	return candidates
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}

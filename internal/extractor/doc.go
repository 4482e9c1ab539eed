// Package extractor performs type-specific field extraction from classified
// documents. Each category routes to its own prompt; the raw model output is
// sanitized (dates and numbers coerced, invalid values dropped with warnings)
// and then verified against the source text to produce a confidence score.
// Extractions scoring under the confidence floor are flagged for review, not
// discarded.
package extractor

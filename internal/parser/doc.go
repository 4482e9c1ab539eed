// Package parser extracts plain text from the document formats accepted by
// the pipeline. Extraction failures are reported as errors; callers decide
// whether to degrade or abort. PDF extraction also records positioned text
// spans used later for preview highlighting.
package parser

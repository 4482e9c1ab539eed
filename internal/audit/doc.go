// Package audit defines the shared domain model for the document audit
// pipeline: documents and their extraction envelopes, equity events, cap
// table entries, issues, quality reports, and the audit aggregate with its
// pipeline state machine. It also holds the normalization helpers that keep
// shareholder names, share classes, and issue payloads canonical before any
// grouping or persistence.
package audit

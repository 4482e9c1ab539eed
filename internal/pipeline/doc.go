// Package pipeline orchestrates a document audit end to end: parsing,
// classification, extraction, transaction building, approval matching, cap
// table synthesis, timeline and issue generation, and the quality gate.
// Per-document work runs on a bounded worker pool; a wall-clock ceiling is
// enforced at stage boundaries so a stuck stage cannot hold an audit open
// forever. Individual document failures degrade, never abort the audit.
package pipeline

// Package services defines the shared error taxonomy and context annotation
// helpers used across pipeline components. Degraded-but-continuing outcomes
// (failed parses, low-confidence extractions, unmatched approvals) are values,
// not errors; only the sentinel-tagged failures defined here propagate to the
// orchestrator boundary.
package services

// Package timeline builds the chronological event history of a company from
// extracted document data. The deterministic builder covers the common cases;
// the model is consulted only when the structured data yields fewer than
// three events, and a model failure falls back to the deterministic result.
package timeline

// Command capaudit runs corporate document audits from the command line:
// ingest a document set, process it through the pipeline, inspect results,
// and reconcile against a Carta export.
package main

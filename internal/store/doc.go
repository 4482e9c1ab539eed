// Package store persists audits, their documents, and equity events in
// SQLite. Writes from the pipeline are best-effort progress plus one final
// results update; reads serve the CLI status views.
package store

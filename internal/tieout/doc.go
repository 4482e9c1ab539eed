// Package tieout reconciles the generated cap table against a Carta export.
// Parsing tolerates the layout drift of real exports (preamble rows, varying
// column names, total rows); comparison uses fuzzy name matching with a
// best-versus-second-best margin so near-ties never silently match.
package tieout

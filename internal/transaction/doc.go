// Package transaction structures per-document extraction payloads into the
// uniform equity event records used for cap table synthesis. Extractions
// missing their required fields are excluded and surface as Incomplete
// Extraction warnings instead of silently vanishing.
package transaction

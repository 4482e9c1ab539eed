// Package config loads, defaults, normalizes, and validates the TOML
// configuration for the audit pipeline.
package config
